// Package posting publishes one post from one account: compose, fill,
// upload media, submit, settle, then capture fresh cookies. Each step has a
// bounded wait on its precondition; the first unmet precondition aborts this
// account's run only.
package posting

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nguyenanhtuan21/threads-manager/logger"
	"github.com/nguyenanhtuan21/threads-manager/navigator"
	"github.com/nguyenanhtuan21/threads-manager/resolver"
	"github.com/nguyenanhtuan21/threads-manager/session"
	"github.com/nguyenanhtuan21/threads-manager/storage"
)

// Options bound the pipeline's waits.
type Options struct {
	Probe       time.Duration // per-strategy probe budget
	StepWait    time.Duration // bound on each step's precondition
	SettleDelay time.Duration // fixed wait after submitting
	TypeDelay   time.Duration // pause after filling the text area
}

// Pipeline posts content through one authenticated session.
type Pipeline struct {
	sess   *session.Session
	nav    *navigator.Navigator
	opts   Options
	logger *logrus.Logger
	flow   *logger.FlowLog
}

var (
	composeAreaChain = resolver.NewChain("compose text area",
		resolver.BySelector("contenteditable", `[contenteditable="true"]`),
		resolver.ByPlaceholder("start a thread placeholder", "start a thread"),
		resolver.ByPlaceholder("what's new placeholder", "what's new"),
	)

	// File inputs are routinely hidden, so attachment is the precondition.
	fileInputChain = resolver.NewAttachedChain("file upload input",
		resolver.BySelector("image input", `input[type="file"][accept*="image"]`),
		resolver.BySelector("video input", `input[type="file"][accept*="video"]`),
		resolver.BySelector("any file input", `input[type="file"]`),
	)

	postSubmitChain = resolver.NewChain("post submit button",
		resolver.ByRole("post button role", "button", `/^post$|^đăng$|^thread it$/i`),
		resolver.BySelector("post button testid", `[data-testid="post-btn"]`),
		resolver.ByRole("post div role", `div[role="button"]`, `/^post$/i`),
	)
)

// New creates a posting pipeline over the session.
func New(sess *session.Session, nav *navigator.Navigator, opts Options, log *logrus.Logger, flow *logger.FlowLog) *Pipeline {
	return &Pipeline{sess: sess, nav: nav, opts: opts, logger: log, flow: flow}
}

// FilterExistingMedia drops media paths that do not exist on local disk.
// Missing files are skipped silently; they never fail the run.
func FilterExistingMedia(paths []string) []string {
	var valid []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			valid = append(valid, p)
		}
	}
	return valid
}

// Publish runs the pipeline for one account and returns the freshly captured
// cookie payload on success.
func (p *Pipeline) Publish(ctx context.Context, username, password string, post *storage.Post) (string, error) {
	page := p.sess.Page()

	// Confirm authenticated state, logging in inline if needed.
	state, err := p.nav.Open(ctx)
	if err != nil {
		return "", err
	}
	if state != navigator.StateAuthenticated {
		p.flow.Printf("Not logged in, attempting inline login")
		if err := p.nav.Login(ctx, username, password); err != nil {
			return "", err
		}
	}

	compose, ok := navigator.ComposeChain().ResolveWithin(page, p.opts.Probe, p.opts.StepWait)
	if !ok {
		return "", fmt.Errorf("compose button not found")
	}
	if err := compose.Click("left", 1); err != nil {
		return "", fmt.Errorf("failed to open composer: %w", err)
	}
	p.flow.Printf("Composer opened")
	time.Sleep(1500 * time.Millisecond)

	if post.Content != nil && *post.Content != "" {
		area, ok := composeAreaChain.ResolveWithin(page, p.opts.Probe, p.opts.StepWait)
		if !ok {
			return "", fmt.Errorf("compose text area not found")
		}
		if err := area.Click("left", 1); err != nil {
			return "", fmt.Errorf("failed to focus compose area: %w", err)
		}
		if err := area.Input(*post.Content); err != nil {
			return "", fmt.Errorf("failed to fill post content: %w", err)
		}
		p.flow.Printf("Post content filled")
		time.Sleep(p.opts.TypeDelay)
	}

	if media := FilterExistingMedia(post.MediaList()); len(media) > 0 {
		input, ok := fileInputChain.ResolveWithin(page, p.opts.Probe, p.opts.StepWait)
		if !ok {
			return "", fmt.Errorf("file upload input not found")
		}
		if err := input.SetFiles(media); err != nil {
			return "", fmt.Errorf("failed to upload media: %w", err)
		}
		p.flow.Printf("Uploaded %d media file(s)", len(media))
		time.Sleep(2 * time.Second)
	}

	submit, ok := postSubmitChain.ResolveWithin(page, p.opts.Probe, p.opts.StepWait)
	if !ok {
		return "", fmt.Errorf("post submit button not found")
	}
	if err := submit.Click("left", 1); err != nil {
		return "", fmt.Errorf("failed to submit post: %w", err)
	}
	p.flow.Printf("Post submitted, settling")

	time.Sleep(p.opts.SettleDelay)

	cookies, err := p.sess.CaptureCookies()
	if err != nil {
		return "", fmt.Errorf("post submitted but cookie capture failed: %w", err)
	}
	return cookies, nil
}
