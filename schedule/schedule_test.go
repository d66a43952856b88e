package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSchedule(t *testing.T) {
	assert.Equal(t, "0 * * * * *", NormalizeSchedule("* * * * *"),
		"five-field expressions gain a seconds column")
	assert.Equal(t, "0 * * * * *", NormalizeSchedule("0 * * * * *"),
		"six-field expressions pass through")
	assert.Equal(t, "*/30 * * * * *", NormalizeSchedule("*/30 * * * * *"))
}
