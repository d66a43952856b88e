// Package engage runs the timed, randomized scroll/like/follow session
// against an authenticated feed page. Interaction attempts are gated by
// fixed probabilities to model human browsing variance; a single failed
// click never aborts the loop, and only the wall-clock budget ends it.
package engage

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/sirupsen/logrus"

	"github.com/nguyenanhtuan21/threads-manager/logger"
	"github.com/nguyenanhtuan21/threads-manager/resolver"
	"github.com/nguyenanhtuan21/threads-manager/storage"
)

// Range is an inclusive [Min,Max] draw range in arbitrary units.
type Range struct {
	Min int
	Max int
}

// Draw returns a uniform value in [Min,Max]. Min==Max is deterministic; an
// inverted range collapses to Min.
func (r Range) Draw(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

// DrawDuration returns a uniform duration in [Min,Max] interpreted per unit.
func (r Range) DrawDuration(rng *rand.Rand, unit time.Duration) time.Duration {
	return time.Duration(r.Draw(rng)) * unit
}

// Goals are the per-session targets, drawn once from the farm config.
type Goals struct {
	Duration     time.Duration
	LikeTarget   int
	FollowTarget int
	EnableLike   bool
	EnableFollow bool
}

// DrawGoals draws session goals from the config's ranges.
func DrawGoals(cfg *storage.FarmConfig, rng *rand.Rand) Goals {
	return Goals{
		Duration:     Range{cfg.ScrollTimeMin, cfg.ScrollTimeMax}.DrawDuration(rng, time.Second),
		LikeTarget:   Range{cfg.LikeCountMin, cfg.LikeCountMax}.Draw(rng),
		FollowTarget: Range{cfg.FollowCountMin, cfg.FollowCountMax}.Draw(rng),
		EnableLike:   cfg.EnableLike,
		EnableFollow: cfg.EnableFollow,
	}
}

// Tuning carries the empirical interaction constants. They are configuration,
// not contract; defaults mirror observed human-like rates.
type Tuning struct {
	LikeProbability   float64
	FollowProbability float64
	ScrollDelta       Range
	Pause             Range // milliseconds between scroll steps
}

// Controller runs one engagement session on an already-authenticated page.
type Controller struct {
	page   *rod.Page
	tuning Tuning
	logger *logrus.Logger
	flow   *logger.FlowLog
	rng    *rand.Rand
}

var likeChain = resolver.Chain{
	Name: "like buttons",
	Strategies: []resolver.Strategy{
		resolver.BySelector("like svg", `svg[aria-label="Like"]`),
		resolver.BySelector("like aria label", `[aria-label="Like"]`),
	},
}

// New creates a controller for the page.
func New(page *rod.Page, tuning Tuning, log *logrus.Logger, flow *logger.FlowLog) *Controller {
	return &Controller{
		page:   page,
		tuning: tuning,
		logger: log,
		flow:   flow,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// shouldAttempt reports whether an interaction type is still in play:
// enabled and under its quota. Quota exhaustion disables the type without
// ending the session.
func shouldAttempt(enabled bool, count, target int) bool {
	return enabled && count < target
}

// Run executes the engagement loop until the wall-clock budget elapses.
// Context cancellation is the only early exit.
func (c *Controller) Run(ctx context.Context, goals Goals) error {
	start := time.Now()
	liked, followed := 0, 0

	c.flow.Printf("Goal: scroll %ds | like %d | follow %d",
		int(goals.Duration.Seconds()), goals.LikeTarget, goals.FollowTarget)

	for time.Since(start) < goals.Duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.scrollOnce()
		c.sleep(c.tuning.Pause.DrawDuration(c.rng, time.Millisecond))

		if shouldAttempt(goals.EnableLike, liked, goals.LikeTarget) {
			if c.attemptLike() {
				liked++
				c.flow.Printf("Liked a post. Total: %d/%d", liked, goals.LikeTarget)
				c.sleep(Range{1000, 2000}.DrawDuration(c.rng, time.Millisecond))
			}
		}

		if shouldAttempt(goals.EnableFollow, followed, goals.FollowTarget) {
			if c.attemptFollow() {
				followed++
				c.flow.Printf("Followed a user. Total: %d/%d", followed, goals.FollowTarget)
				c.sleep(Range{1000, 2000}.DrawDuration(c.rng, time.Millisecond))
			}
		}
	}

	c.flow.Printf("Engagement session completed: liked %d, followed %d", liked, followed)
	return nil
}

func (c *Controller) scrollOnce() {
	delta := c.tuning.ScrollDelta.Draw(c.rng)
	if err := c.page.Mouse.Scroll(0, float64(delta), 1); err != nil {
		c.logger.WithError(err).Debug("Scroll failed")
	}
}

// attemptLike picks one rendered like affordance at random and, passing the
// probability gate, clicks it. Any failure is swallowed: the affordance may
// have scrolled away or been re-rendered, which costs one attempt, not the
// session.
func (c *Controller) attemptLike() bool {
	candidates := likeChain.All(c.page)
	if len(candidates) == 0 {
		return false
	}
	if c.rng.Float64() >= c.tuning.LikeProbability {
		return false
	}

	target := candidates[c.rng.Intn(len(candidates))]
	button := clickableAncestor(target)
	return c.clickElement(button)
}

// attemptFollow mirrors attemptLike for follow buttons. Follow controls are
// text-labeled, so candidates are role buttons filtered by label.
func (c *Controller) attemptFollow() bool {
	candidates := c.followCandidates()
	if len(candidates) == 0 {
		return false
	}
	if c.rng.Float64() >= c.tuning.FollowProbability {
		return false
	}

	target := candidates[c.rng.Intn(len(candidates))]
	return c.clickElement(target)
}

func (c *Controller) followCandidates() []*rod.Element {
	els, err := c.page.Elements(`div[role="button"]`)
	if err != nil {
		return nil
	}
	var candidates []*rod.Element
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		label := strings.TrimSpace(text)
		if !strings.EqualFold(label, "Follow") {
			continue
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		candidates = append(candidates, el)
	}
	return candidates
}

func (c *Controller) clickElement(el *rod.Element) bool {
	if el == nil {
		return false
	}
	if err := el.ScrollIntoView(); err != nil {
		return false
	}
	c.sleep(500 * time.Millisecond)
	if err := el.Click("left", 1); err != nil {
		c.logger.WithError(err).Debug("Interaction click failed")
		return false
	}
	return true
}

// clickableAncestor walks up from an icon to the button wrapping it. Threads
// nests the like SVG two levels below the actual button.
func clickableAncestor(el *rod.Element) *rod.Element {
	current := el
	for i := 0; i < 2; i++ {
		parent, err := current.Parent()
		if err != nil || parent == nil {
			return current
		}
		current = parent
	}
	return current
}

func (c *Controller) sleep(d time.Duration) {
	time.Sleep(d)
}
