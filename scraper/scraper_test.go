package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAbbreviatedNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"0", 0},
		{"42", 42},
		{"1,234", 1234},
		{"10.5K", 10500},
		{"1K", 1000},
		{"2.3M", 2300000},
		{"1B", 1000000000},
		{"10m", 10000000},
		{" 1,5K ", 15000},
		{"", 0},
		{"abc", 0},
		{"K", 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseAbbreviatedNumber(tc.in), "input %q", tc.in)
	}
}

func TestProfileURL(t *testing.T) {
	assert.Equal(t, "https://www.threads.net/@alice",
		ProfileURL("https://www.threads.net", "alice"))
	assert.Equal(t, "https://www.threads.net/@bob",
		ProfileURL("https://www.threads.net/", "bob"))
}
