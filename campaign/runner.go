// Package campaign sequences accounts through the posting pipeline or the
// engagement loop. One account's failure is recorded on its join record and
// never crosses the account boundary; the aggregate status reflects
// completion, not success.
package campaign

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nguyenanhtuan21/threads-manager/config"
	"github.com/nguyenanhtuan21/threads-manager/engage"
	"github.com/nguyenanhtuan21/threads-manager/logger"
	"github.com/nguyenanhtuan21/threads-manager/navigator"
	"github.com/nguyenanhtuan21/threads-manager/posting"
	"github.com/nguyenanhtuan21/threads-manager/scraper"
	"github.com/nguyenanhtuan21/threads-manager/session"
	"github.com/nguyenanhtuan21/threads-manager/storage"
)

// Runner owns the long-running automation flows. Independent flows may run
// concurrently; each acquires and closes its own browser session, so no
// browser state is shared between accounts.
type Runner struct {
	store  *storage.Store
	cfg    *config.Config
	logger *logrus.Logger
	rng    *rand.Rand
}

// NewRunner creates a runner over the record store.
func NewRunner(store *storage.Store, cfg *config.Config, log *logrus.Logger) *Runner {
	return &Runner{
		store:  store,
		cfg:    cfg,
		logger: log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AggregateStatus recomputes a campaign's final status from its join
// records: anything still pending means the run was interrupted.
func AggregateStatus(hasPending bool) string {
	if hasPending {
		return storage.CampaignStatusStopped
	}
	return storage.CampaignStatusCompleted
}

// RunCampaign posts the campaign's content from every pending account in
// sequence, spacing accounts with the campaign's jitter delay. It returns an
// error only for an unknown id; per-account failures are recorded on the
// join records.
func (r *Runner) RunCampaign(ctx context.Context, campaignID string) error {
	c, err := r.store.GetCampaign(campaignID)
	if err != nil {
		return err
	}

	if err := r.store.UpdateCampaignStatus(c.ID, storage.CampaignStatusRunning); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"campaign": c.Name,
		"accounts": len(c.Accounts),
	}).Info("Campaign started")

	for i, join := range c.Accounts {
		if i > 0 {
			if err := r.jitterSleep(ctx, c.DelayMin, c.DelayMax); err != nil {
				break
			}
		}
		r.runPostAccount(ctx, join, c.Post)
	}

	hasPending, err := r.store.CampaignHasPending(c.ID)
	if err != nil {
		return err
	}
	final := AggregateStatus(hasPending)
	if err := r.store.UpdateCampaignStatus(c.ID, final); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"campaign": c.Name,
		"status":   final,
	}).Info("Campaign finished")
	return nil
}

// runPostAccount runs the posting pipeline for one join record. Every error
// is captured verbatim on the join record and the sequence moves on.
func (r *Runner) runPostAccount(ctx context.Context, join *storage.CampaignAccount, post *storage.Post) {
	account := join.Account
	flow, err := logger.NewFlowLog(r.cfg.Storage.LogsDir, "post", account.ID)
	if err != nil {
		r.logger.WithError(err).Warn("Flow log unavailable")
		flow, _ = logger.NewFlowLog(".", "post", account.ID)
	}

	r.store.UpdateCampaignAccountStatus(join.ID, storage.JoinStatusRunning, nil)
	flow.Printf("Posting as %s", account.Username)

	sess, err := session.Acquire(ctx, r.sessionOptions(account), r.logger)
	if err != nil {
		r.failJoin(join.ID, flow, err)
		return
	}
	defer sess.Close()

	nav := navigator.New(sess, r.navigatorOptions(), r.logger)
	pipeline := posting.New(sess, nav, posting.Options{
		Probe:       r.cfg.Browser.ElementProbe,
		StepWait:    r.cfg.Browser.LoginWait,
		SettleDelay: r.cfg.Posting.SettleDelay,
		TypeDelay:   r.cfg.Posting.TypeDelay,
	}, r.logger, flow)

	cookies, err := pipeline.Publish(ctx, account.Username, account.Password, post)
	if err != nil {
		r.failJoin(join.ID, flow, err)
		return
	}

	if err := r.store.UpdateAccountCookies(account.ID, cookies); err != nil {
		r.logger.WithError(err).Warn("Failed to persist refreshed cookies")
	}
	r.store.UpdateCampaignAccountStatus(join.ID, storage.JoinStatusSuccess, nil)
	flow.Printf("Post published successfully")
}

// RunFarmCampaign sequences every pending account of a farm campaign with
// the campaign's jitter delay, then recomputes the aggregate status.
func (r *Runner) RunFarmCampaign(ctx context.Context, farmCampaignID string) error {
	c, err := r.store.GetFarmCampaign(farmCampaignID)
	if err != nil {
		return err
	}

	joins, err := r.store.ListPendingFarmAccounts(c.ID)
	if err != nil {
		return err
	}

	if err := r.store.UpdateFarmCampaignStatus(c.ID, storage.CampaignStatusRunning); err != nil {
		return err
	}

	for i, join := range joins {
		if i > 0 {
			if err := r.jitterSleep(ctx, c.DelayMin, c.DelayMax); err != nil {
				break
			}
		}
		if err := r.RunFarmCampaignAccount(ctx, join.ID); err != nil {
			r.logger.WithError(err).Warn("Farm account flow rejected")
		}
	}

	hasPending, err := r.store.FarmCampaignHasPending(c.ID)
	if err != nil {
		return err
	}
	return r.store.UpdateFarmCampaignStatus(c.ID, AggregateStatus(hasPending))
}

// RunFarmCampaignAccount runs one engagement session for one join record.
// It returns an error only for an unknown id.
func (r *Runner) RunFarmCampaignAccount(ctx context.Context, joinID string) error {
	join, err := r.store.GetFarmCampaignAccount(joinID)
	if err != nil {
		return err
	}
	account := join.Account
	cfg := join.FarmCampaign.Config

	flow, err := logger.NewFlowLog(r.cfg.Storage.LogsDir, "farm", account.ID)
	if err != nil {
		r.logger.WithError(err).Warn("Flow log unavailable")
		flow, _ = logger.NewFlowLog(".", "farm", account.ID)
	}

	r.store.UpdateFarmCampaignAccountStatus(join.ID, storage.JoinStatusRunning, nil)
	flow.Printf("Starting farm session")

	sess, err := session.Acquire(ctx, r.sessionOptions(account), r.logger)
	if err != nil {
		r.failFarmJoin(join.ID, flow, err)
		return nil
	}
	defer sess.Close()

	nav := navigator.New(sess, r.navigatorOptions(), r.logger)
	state, err := nav.Open(ctx)
	if err != nil {
		r.failFarmJoin(join.ID, flow, err)
		return nil
	}
	if state == navigator.StateAnonymous {
		r.failFarmJoin(join.ID, flow, errors.New("NOT_LOGGED_IN"))
		return nil
	}

	controller := engage.New(sess.Page(), engage.Tuning{
		LikeProbability:   r.cfg.Engagement.LikeProbability,
		FollowProbability: r.cfg.Engagement.FollowProbability,
		ScrollDelta:       engage.Range{Min: r.cfg.Engagement.ScrollDeltaMin, Max: r.cfg.Engagement.ScrollDeltaMax},
		Pause: engage.Range{
			Min: int(r.cfg.Engagement.PauseMin.Milliseconds()),
			Max: int(r.cfg.Engagement.PauseMax.Milliseconds()),
		},
	}, r.logger, flow)

	goals := engage.DrawGoals(cfg, r.rng)
	if err := controller.Run(ctx, goals); err != nil {
		r.failFarmJoin(join.ID, flow, err)
		return nil
	}

	r.store.UpdateFarmCampaignAccountStatus(join.ID, storage.JoinStatusSuccess, nil)
	flow.Printf("Farm session completed successfully")
	return nil
}

// RunScraper scrapes profile statistics for each account in turn. Unknown
// or failing accounts are logged and skipped; the batch always visits every
// id.
func (r *Runner) RunScraper(ctx context.Context, accountIDs []string) error {
	for _, id := range accountIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.scrapeAccount(ctx, id)
	}
	return nil
}

func (r *Runner) scrapeAccount(ctx context.Context, accountID string) {
	flow, err := logger.NewFlowLog(r.cfg.Storage.LogsDir, "scraper", accountID)
	if err != nil {
		r.logger.WithError(err).Warn("Flow log unavailable")
		flow, _ = logger.NewFlowLog(".", "scraper", accountID)
	}

	account, err := r.store.GetAccount(accountID)
	if err != nil {
		flow.Printf("Account not found")
		return
	}

	flow.Printf("Starting scraper for %s", account.Username)

	sess, err := session.Acquire(ctx, r.sessionOptions(account), r.logger)
	if err != nil {
		flow.Printf("Failed to scrape - error: %v", err)
		return
	}
	defer sess.Close()

	sc := scraper.New(sess, scraper.Options{
		BaseURL:    r.cfg.Threads.BaseURL,
		NavTimeout: r.cfg.Browser.NavTimeout,
		Probe:      r.cfg.Browser.ElementProbe,
	}, r.logger, flow)

	metrics, err := sc.ScrapeProfile(ctx, account.Username)
	if err != nil {
		flow.Printf("Failed to scrape - error: %v", err)
		return
	}

	if err := r.store.UpdateAccountMetrics(account.ID, metrics.Followers, metrics.Following, metrics.Posts); err != nil {
		flow.Printf("Failed to store metrics - error: %v", err)
		return
	}
	flow.Printf("Finished scraper successfully")
}

// CheckAccountLive verifies an account's session, logging in if needed. It
// persists LIVE status plus fresh cookies on success and ERROR on any
// handled failure; only an unknown id is returned as an error.
func (r *Runner) CheckAccountLive(ctx context.Context, accountID string) (bool, error) {
	account, err := r.store.GetAccount(accountID)
	if err != nil {
		return false, err
	}

	flow, err := logger.NewFlowLog(r.cfg.Storage.LogsDir, "checklive", account.ID)
	if err != nil {
		r.logger.WithError(err).Warn("Flow log unavailable")
		flow, _ = logger.NewFlowLog(".", "checklive", account.ID)
	}
	flow.Printf("Checking account %s", account.Username)

	sess, err := session.Acquire(ctx, r.sessionOptions(account), r.logger)
	if err != nil {
		flow.Printf("Session setup failed: %v", err)
		r.store.UpdateAccountStatus(account.ID, storage.AccountStatusError)
		return false, nil
	}
	defer sess.Close()

	nav := navigator.New(sess, r.navigatorOptions(), r.logger)
	cookies, err := nav.EnsureLoggedIn(ctx, account.Username, account.Password)
	if err != nil {
		flow.Printf("Login failed: %v", err)
		r.store.UpdateAccountStatus(account.ID, storage.AccountStatusError)
		return false, nil
	}

	if err := r.store.UpdateAccountAuth(account.ID, storage.AccountStatusLive, cookies); err != nil {
		return false, err
	}
	flow.Printf("Account is LIVE, cookies refreshed")
	return true, nil
}

// sessionOptions builds the per-account acquisition config: the account's
// proxy and cookies, its fingerprint override or the configured default.
func (r *Runner) sessionOptions(account *storage.Account) session.Options {
	opts := session.Options{
		Headless:  r.cfg.Browser.Headless,
		Isolation: session.IsolationEphemeral,
		Fingerprint: session.Fingerprint{
			UserAgent:      r.cfg.Browser.UserAgent,
			ViewportWidth:  r.cfg.Browser.ViewportWidth,
			ViewportHeight: r.cfg.Browser.ViewportHeight,
		},
	}
	if account.UserAgent != nil && *account.UserAgent != "" {
		opts.Fingerprint.UserAgent = *account.UserAgent
	}
	if account.Cookies != nil {
		opts.CookiePayload = *account.Cookies
	}
	if account.Proxy != nil {
		opts.Proxy = ProxyFromRecord(account.Proxy)
	}
	if r.cfg.Browser.ProfileDir != "" {
		opts.Isolation = session.IsolationNamed
		opts.ProfileDir = session.ProfilePath(r.cfg.Browser.ProfileDir)
	}
	return opts
}

// ProxyFromRecord converts a stored proxy row to a session proxy config.
func ProxyFromRecord(p *storage.Proxy) *session.ProxyConfig {
	cfg := &session.ProxyConfig{
		Protocol: p.Protocol,
		Host:     p.Host,
		Port:     p.Port,
	}
	if p.Username != nil {
		cfg.Username = *p.Username
	}
	if p.Password != nil {
		cfg.Password = *p.Password
	}
	return cfg
}

func (r *Runner) navigatorOptions() navigator.Options {
	return navigator.Options{
		BaseURL:     r.cfg.Threads.BaseURL,
		AuthedRoute: r.cfg.Threads.AuthedRoutePattern,
		NavTimeout:  r.cfg.Browser.NavTimeout,
		Probe:       r.cfg.Browser.ElementProbe,
		LoginWait:   r.cfg.Browser.LoginWait,
	}
}

// jitterSleep waits a uniform number of seconds in [min,max], the primary
// bot-detection countermeasure between accounts.
func (r *Runner) jitterSleep(ctx context.Context, minSec, maxSec int) error {
	delay := JitterDelay(r.rng, minSec, maxSec)
	r.logger.WithField("delay", delay).Info("Waiting before next account")
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JitterDelay draws a uniform delay in [minSec,maxSec] seconds.
func JitterDelay(rng *rand.Rand, minSec, maxSec int) time.Duration {
	if maxSec <= minSec {
		return time.Duration(minSec) * time.Second
	}
	return time.Duration(minSec+rng.Intn(maxSec-minSec+1)) * time.Second
}

func (r *Runner) failJoin(joinID string, flow *logger.FlowLog, cause error) {
	msg := cause.Error()
	flow.Printf("Run failed: %s", msg)
	if err := r.store.UpdateCampaignAccountStatus(joinID, storage.JoinStatusFailed, &msg); err != nil {
		r.logger.WithError(err).Error("Failed to record join failure")
	}
}

func (r *Runner) failFarmJoin(joinID string, flow *logger.FlowLog, cause error) {
	msg := cause.Error()
	flow.Printf("Farm failed: %s", msg)
	if err := r.store.UpdateFarmCampaignAccountStatus(joinID, storage.JoinStatusFailed, &msg); err != nil {
		r.logger.WithError(err).Error("Failed to record farm join failure")
	}
}
