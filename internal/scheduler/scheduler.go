// Package scheduler drives the periodic upload job: a cron cadence plus
// on-demand kicks after local mutations, with exponential backoff on
// transient failure. The job itself is a black box returning success, a
// transient error (retried) or a permanent one (dropped until next trigger).
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/silkfinik/fairsplit/internal/remote"
)

const (
	defaultSpec = "@every 5m"
	maxAttempts = 5
	baseDelay   = 2 * time.Second
)

// Scheduler runs the upload job periodically and on demand.
type Scheduler struct {
	job    func(context.Context) error
	logger *slog.Logger
	cron   *cron.Cron
	spec   string

	kick   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// New creates a Scheduler for the given job. spec is a cron expression
// (robfig/cron syntax); empty means every five minutes.
func New(job func(context.Context) error, spec string, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = defaultSpec
	}
	return &Scheduler{
		job:    job,
		logger: logger,
		spec:   spec,
		kick:   make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine and the cron trigger.
func (s *Scheduler) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, s.Kick); err != nil {
		cancel()
		return err
	}
	s.cron.Start()

	go s.run(ctx)
	s.logger.Info("upload scheduler started", "cadence", s.spec)
	return nil
}

// Kick requests an upload cycle as soon as possible. Never blocks; kicks
// while a cycle is already pending coalesce into one.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Stop halts the cron trigger and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.logger.Info("upload scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
			s.runWithRetry(ctx)
		}
	}
}

// runWithRetry executes one upload cycle, retrying transient failures with
// exponential backoff. Permanent failures are logged and dropped; the next
// trigger starts fresh.
func (s *Scheduler) runWithRetry(ctx context.Context) {
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.job(ctx)
		if err == nil {
			return
		}
		if !remote.IsTransient(err) {
			s.logger.Error("upload cycle failed permanently", "error", err)
			return
		}
		if attempt == maxAttempts {
			s.logger.Warn("upload cycle gave up, will retry on next trigger",
				"attempts", attempt, "error", err)
			return
		}
		s.logger.Debug("upload cycle failed, backing off",
			"attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}
