// Package schedule fires due scheduled campaigns. A campaign in SCHEDULED
// status with a scheduled_at in the past is picked up on the next tick and
// handed to the runner; each campaign fires at most once because the runner
// moves it to RUNNING before any account work starts.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nguyenanhtuan21/threads-manager/campaign"
	"github.com/nguyenanhtuan21/threads-manager/storage"
)

// Scheduler polls the store for due scheduled campaigns.
type Scheduler struct {
	cron     *cron.Cron
	store    *storage.Store
	runner   *campaign.Runner
	schedule string
	logger   *logrus.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler ticking on the given cron expression.
func NewScheduler(store *storage.Store, runner *campaign.Runner, schedule string, log *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		store:    store,
		runner:   runner,
		schedule: schedule,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the polling job and starts the cron loop.
func (s *Scheduler) Start() error {
	expr := NormalizeSchedule(s.schedule)
	id, err := s.cron.AddFunc(expr, s.fireDueCampaigns)
	if err != nil {
		return fmt.Errorf("failed to schedule campaign poller: %w", err)
	}
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"job":      id,
		"schedule": expr,
	}).Info("Campaign scheduler started")
	return nil
}

// Stop stops the cron loop and cancels any in-flight runs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info("Campaign scheduler stopped")
}

// fireDueCampaigns launches every due campaign. Runs are sequential within a
// tick so a long backlog cannot open a browser per campaign at once.
func (s *Scheduler) fireDueCampaigns() {
	due, err := s.store.ListDueScheduledCampaigns(time.Now())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list scheduled campaigns")
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.WithField("count", len(due)).Info("Firing due campaigns")
	for _, c := range due {
		if s.ctx.Err() != nil {
			return
		}
		if err := s.runner.RunCampaign(s.ctx, c.ID); err != nil {
			s.logger.WithError(err).WithField("campaign", c.ID).Error("Scheduled campaign run failed")
		}
	}
}

// NormalizeSchedule pads a standard 5-field cron expression for a parser
// configured with seconds support.
func NormalizeSchedule(expr string) string {
	if len(strings.Fields(expr)) == 5 {
		return "0 " + expr
	}
	return expr
}
