package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyCSS(t *testing.T) {
	assert.Equal(t, `input[autocomplete="username"]`,
		BySelector("selector", `input[autocomplete="username"]`).CSS())

	assert.Equal(t, `input[placeholder*="password" i]`,
		ByPlaceholder("placeholder", "password").CSS())

	assert.Equal(t, `input[name="username"]`,
		ByName("name", "username").CSS())

	// Role strategies match by text, not by a standalone selector.
	assert.Equal(t, `div[role="button"]`,
		ByRole("role", `div[role="button"]`, `/log ?in/i`).CSS())
}

func TestChainConstruction(t *testing.T) {
	visible := NewChain("login submit",
		BySelector("submit input", `input[type="submit"]`),
		ByRole("login role", `div[role="button"]`, `/log ?in/i`),
	)
	assert.Equal(t, "login submit", visible.Name)
	assert.True(t, visible.RequireVisible)
	assert.Len(t, visible.Strategies, 2)

	attached := NewAttachedChain("file input",
		BySelector("any file input", `input[type="file"]`),
	)
	assert.False(t, attached.RequireVisible)
}

func TestStrategyKinds(t *testing.T) {
	assert.Equal(t, KindSelector, BySelector("d", "s").Kind)
	assert.Equal(t, KindPlaceholder, ByPlaceholder("d", "t").Kind)
	assert.Equal(t, KindName, ByName("d", "n").Kind)

	role := ByRole("d", "button", "/^post$/i")
	assert.Equal(t, KindRole, role.Kind)
	assert.Equal(t, "/^post$/i", role.Text)
}
