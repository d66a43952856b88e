// Package scraper reads public profile statistics for managed accounts.
package scraper

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nguyenanhtuan21/threads-manager/logger"
	"github.com/nguyenanhtuan21/threads-manager/resolver"
	"github.com/nguyenanhtuan21/threads-manager/session"
)

// Metrics are the scraped profile counters.
type Metrics struct {
	Followers int
	Following int
	Posts     int
}

// Options bound the scraper's waits.
type Options struct {
	BaseURL    string
	NavTimeout time.Duration
	Probe      time.Duration
}

// Scraper scrapes one session's account profile.
type Scraper struct {
	sess   *session.Session
	opts   Options
	logger *logrus.Logger
	flow   *logger.FlowLog
}

var followerChain = resolver.NewChain("follower counter",
	resolver.BySelector("followers link", `a[href$="/followers/"]`),
	resolver.ByRole("followers span", "span", `/followers|người theo dõi/i`),
)

var numberPattern = regexp.MustCompile(`([\d.,]+[KMB]?)`)

// New creates a scraper over the session.
func New(sess *session.Session, opts Options, log *logrus.Logger, flow *logger.FlowLog) *Scraper {
	return &Scraper{sess: sess, opts: opts, logger: log, flow: flow}
}

// ProfileURL renders the public profile URL for a username.
func ProfileURL(baseURL, username string) string {
	return strings.TrimRight(baseURL, "/") + "/@" + username
}

// ScrapeProfile loads the account's profile page and extracts its counters.
// Counters that cannot be located stay zero; only navigation failure is an
// error.
func (s *Scraper) ScrapeProfile(ctx context.Context, username string) (*Metrics, error) {
	url := ProfileURL(s.opts.BaseURL, username)
	s.flow.Printf("Navigating to %s", url)

	if err := s.sess.Navigate(ctx, url, s.opts.NavTimeout); err != nil {
		return nil, err
	}
	time.Sleep(3 * time.Second)

	metrics := &Metrics{}
	if el, ok := followerChain.Resolve(s.sess.Page(), s.opts.Probe); ok {
		text, err := el.Text()
		if err == nil {
			if match := numberPattern.FindString(text); match != "" {
				metrics.Followers = ParseAbbreviatedNumber(match)
			}
		}
	}

	s.flow.Printf("Scraped -> followers: %d | following: %d | posts: %d",
		metrics.Followers, metrics.Following, metrics.Posts)
	return metrics, nil
}

// ParseAbbreviatedNumber converts display strings like "10.5K", "1,234" or
// "10M" to integers. Unparseable input yields zero.
func ParseAbbreviatedNumber(s string) int {
	sanitized := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if sanitized == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(sanitized, "K"):
		multiplier = 1e3
		sanitized = strings.TrimSuffix(sanitized, "K")
	case strings.HasSuffix(sanitized, "M"):
		multiplier = 1e6
		sanitized = strings.TrimSuffix(sanitized, "M")
	case strings.HasSuffix(sanitized, "B"):
		multiplier = 1e9
		sanitized = strings.TrimSuffix(sanitized, "B")
	}

	value, err := strconv.ParseFloat(sanitized, 64)
	if err != nil {
		return 0
	}
	return int(math.Floor(value * multiplier))
}
