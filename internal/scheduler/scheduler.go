// Package scheduler runs the four periodic maintenance loops: token
// refresh, webhook renewal, failed-call retry and retention cleanup.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/config"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/metrics"
)

// TokenMaintainer is the slice of the auth service the scheduler drives.
type TokenMaintainer interface {
	RefreshExpiringTokens(ctx context.Context, window time.Duration) (int, error)
	CleanupExpiredTokens(ctx context.Context, retention time.Duration) (int64, error)
}

// MailMaintainer is the slice of the mail service the scheduler drives.
type MailMaintainer interface {
	RenewExpiringWebhooks(ctx context.Context, window time.Duration) (int, error)
	RetryFailedCalls(ctx context.Context) (int, error)
	CleanupOldHistory(ctx context.Context, retention time.Duration) (int64, error)
	CleanupInactiveWebhooks(ctx context.Context, retention time.Duration) (int64, error)
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running bool                 `json:"running"`
	Jobs    map[string]JobStatus `json:"jobs"`
}

// JobStatus reports one loop's schedule.
type JobStatus struct {
	NextRun time.Time `json:"next_run"`
	LastRun time.Time `json:"last_run"`
}

// Scheduler owns the cron instance and the job registrations.
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	config  *config.SchedulerConfig
	auth    TokenMaintainer
	mail    MailMaintainer
	metrics *metrics.Metrics
	logger  *logrus.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

func NewScheduler(cfg *config.SchedulerConfig, auth TokenMaintainer, mail MailMaintainer, m *metrics.Metrics, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		config:  cfg,
		auth:    auth,
		mail:    mail,
		metrics: m,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the four loops and starts the cron. Starting an
// already-running scheduler is an error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// A stopped scheduler can be started again; the cron and context are
	// rebuilt because Stop cancels and drains them.
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New()
	s.entries = make(map[string]cron.EntryID)

	// Jobs capture this start's context at registration. A job still
	// draining from a previous run must never observe a context created
	// by a later restart.
	ctx := s.ctx

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"token_refresh", s.config.TokenRefreshInterval, s.refreshTokens},
		{"webhook_renewal", s.config.WebhookRenewalInterval, s.renewWebhooks},
		{"failed_call_retry", s.config.FailedCallInterval, s.retryFailedCalls},
		{"cleanup", s.config.CleanupInterval, s.cleanup},
	}

	for _, job := range jobs {
		run := job.run
		entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", job.interval), s.wrap(job.name, func() { run(ctx) }))
		if err != nil {
			return fmt.Errorf("failed to add %s job: %w", job.name, err)
		}
		s.entries[job.name] = entryID
	}

	s.cron.Start()
	s.isRunning = true
	if s.metrics != nil {
		s.metrics.SchedulerRunning.Set(1)
	}

	s.logger.WithFields(logrus.Fields{
		"token_refresh_interval":   s.config.TokenRefreshInterval.String(),
		"webhook_renewal_interval": s.config.WebhookRenewalInterval.String(),
		"failed_call_interval":     s.config.FailedCallInterval.String(),
		"cleanup_interval":         s.config.CleanupInterval.String(),
	}).Info("Scheduler started")
	return nil
}

// Stop halts the cron and waits for in-flight jobs. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		s.logger.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	if s.metrics != nil {
		s.metrics.SchedulerRunning.Set(0)
	}
	return nil
}

// IsRunning reports whether the scheduler is started.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the running flag and per-job schedule times.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{Running: s.isRunning, Jobs: make(map[string]JobStatus, len(s.entries))}
	if !s.isRunning {
		return status
	}
	for name, entryID := range s.entries {
		entry := s.cron.Entry(entryID)
		status.Jobs[name] = JobStatus{NextRun: entry.Next, LastRun: entry.Prev}
	}
	return status
}

// RunOnce executes every loop immediately, for manual triggering.
func (s *Scheduler) RunOnce() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	s.refreshTokens(ctx)
	s.renewWebhooks(ctx)
	s.retryFailedCalls(ctx)
	s.cleanup(ctx)
}

// Wait blocks until all in-flight jobs have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// wrap guards a job body with the running check and the wait group.
func (s *Scheduler) wrap(name string, run func()) func() {
	return func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.wg.Add(1)
		defer s.wg.Done()

		started := time.Now()
		run()
		s.logger.WithFields(logrus.Fields{
			"job":      name,
			"duration": time.Since(started).String(),
		}).Debug("Scheduler job completed")
	}
}

func (s *Scheduler) refreshTokens(ctx context.Context) {
	refreshed, err := s.auth.RefreshExpiringTokens(ctx, s.config.TokenRefreshWindow)
	if err != nil {
		s.logger.WithError(err).Error("Token refresh sweep failed")
		return
	}
	if refreshed > 0 {
		s.logger.WithField("refreshed", refreshed).Info("Token refresh sweep completed")
	}
}

func (s *Scheduler) renewWebhooks(ctx context.Context) {
	renewed, err := s.mail.RenewExpiringWebhooks(ctx, s.config.WebhookRenewalWindow)
	if err != nil {
		s.logger.WithError(err).Error("Webhook renewal sweep failed")
		return
	}
	if renewed > 0 {
		s.logger.WithField("renewed", renewed).Info("Webhook renewal sweep completed")
	}
}

func (s *Scheduler) retryFailedCalls(ctx context.Context) {
	succeeded, err := s.mail.RetryFailedCalls(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed-call retry sweep failed")
		return
	}
	if succeeded > 0 {
		s.logger.WithField("succeeded", succeeded).Info("Failed-call retry sweep completed")
	}
}

func (s *Scheduler) cleanup(ctx context.Context) {
	day := 24 * time.Hour

	if _, err := s.auth.CleanupExpiredTokens(ctx, time.Duration(s.config.TokenRetentionDays)*day); err != nil {
		s.logger.WithError(err).Error("Token cleanup failed")
	}
	if _, err := s.mail.CleanupOldHistory(ctx, time.Duration(s.config.LogRetentionDays)*day); err != nil {
		s.logger.WithError(err).Error("History cleanup failed")
	}
	if _, err := s.mail.CleanupInactiveWebhooks(ctx, time.Duration(s.config.WebhookRetentionDays)*day); err != nil {
		s.logger.WithError(err).Error("Webhook cleanup failed")
	}
}
