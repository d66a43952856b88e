// Package resolver locates UI affordances on a third-party page whose markup
// is unstable. Every logical control is described by an ordered chain of
// independent strategies; the first one that yields a usable element wins,
// and a chain with no match is an explicit outcome, not an error.
package resolver

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
)

// Kind discriminates how a strategy matches.
type Kind int

const (
	// KindSelector matches a CSS selector.
	KindSelector Kind = iota
	// KindPlaceholder matches an input by placeholder substring.
	KindPlaceholder
	// KindName matches an input by its name attribute.
	KindName
	// KindRole matches elements of a selector whose text matches a pattern.
	KindRole
)

// Strategy is one way of locating an affordance.
type Strategy struct {
	Kind     Kind
	Selector string
	Text     string // placeholder substring, name value, or text regex
	Desc     string
}

// BySelector matches a plain CSS selector.
func BySelector(desc, selector string) Strategy {
	return Strategy{Kind: KindSelector, Selector: selector, Desc: desc}
}

// ByPlaceholder matches an input whose placeholder contains text.
func ByPlaceholder(desc, text string) Strategy {
	return Strategy{Kind: KindPlaceholder, Text: text, Desc: desc}
}

// ByName matches an input by exact name attribute.
func ByName(desc, name string) Strategy {
	return Strategy{Kind: KindName, Text: name, Desc: desc}
}

// ByRole matches elements of selector whose visible text matches the
// JS-style regex pattern, e.g. "/^post$/i".
func ByRole(desc, selector, pattern string) Strategy {
	return Strategy{Kind: KindRole, Selector: selector, Text: pattern, Desc: desc}
}

// CSS renders the strategy's effective CSS selector. KindRole has none.
func (s Strategy) CSS() string {
	switch s.Kind {
	case KindPlaceholder:
		return fmt.Sprintf(`input[placeholder*=%q i]`, s.Text)
	case KindName:
		return fmt.Sprintf(`input[name=%q]`, s.Text)
	default:
		return s.Selector
	}
}

// Chain is an ordered list of strategies for one logical affordance.
// RequireVisible is false for controls that are legitimately hidden, such as
// file-upload inputs, where attachment is sufficient.
type Chain struct {
	Name           string
	RequireVisible bool
	Strategies     []Strategy
}

// NewChain builds a chain requiring visibility.
func NewChain(name string, strategies ...Strategy) Chain {
	return Chain{Name: name, RequireVisible: true, Strategies: strategies}
}

// NewAttachedChain builds a chain where attachment alone satisfies a match.
func NewAttachedChain(name string, strategies ...Strategy) Chain {
	return Chain{Name: name, RequireVisible: false, Strategies: strategies}
}

// Resolve evaluates the chain top to bottom, probing each strategy for at
// most probe. The first visible (or attached) match wins. A false result
// means no strategy matched; callers must check it before acting.
func (c Chain) Resolve(page *rod.Page, probe time.Duration) (*rod.Element, bool) {
	for _, strategy := range c.Strategies {
		el, err := strategy.locate(page, probe)
		if err != nil || el == nil {
			continue
		}
		el = el.CancelTimeout()
		if c.RequireVisible {
			visible, err := el.Visible()
			if err != nil || !visible {
				continue
			}
		}
		return el, true
	}
	return nil, false
}

// ResolveWithin keeps re-evaluating the chain until it matches or the wait
// budget elapses. Used for preconditions that appear after a page settles.
func (c Chain) ResolveWithin(page *rod.Page, probe, wait time.Duration) (*rod.Element, bool) {
	deadline := time.Now().Add(wait)
	for {
		if el, ok := c.Resolve(page, probe); ok {
			return el, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
	}
}

// All returns every current match of the first strategy that yields any,
// filtered to visible elements. Unlike Resolve it does not wait: it reflects
// what is rendered right now.
func (c Chain) All(page *rod.Page) []*rod.Element {
	for _, strategy := range c.Strategies {
		if strategy.Kind == KindRole {
			continue
		}
		els, err := page.Elements(strategy.CSS())
		if err != nil || len(els) == 0 {
			continue
		}
		var visible []*rod.Element
		for _, el := range els {
			if v, err := el.Visible(); err == nil && v {
				visible = append(visible, el)
			}
		}
		if len(visible) > 0 {
			return visible
		}
	}
	return nil
}

func (s Strategy) locate(page *rod.Page, probe time.Duration) (el *rod.Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			el, err = nil, fmt.Errorf("locate %s panicked: %v", s.Desc, r)
		}
	}()

	p := page.Timeout(probe)
	if s.Kind == KindRole {
		return p.ElementR(s.Selector, s.Text)
	}
	return p.Element(s.CSS())
}
