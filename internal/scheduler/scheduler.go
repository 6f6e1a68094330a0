// Package scheduler decides which users are due for an appointment check and
// dispatches them onto a bounded worker pool, at most one run per user.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/visabot-io/visabot/internal/models"
)

// Store is the slice of persistence the scheduler needs.
type Store interface {
	ListPendingUsers() ([]*models.User, error)
}

// Runner executes one user's automation run to completion.
type Runner func(ctx context.Context, user *models.User)

// Options configure the dispatch loop.
type Options struct {
	CheckInterval time.Duration
	RetryInterval time.Duration
	MaxConcurrent int
	// RunTimeout bounds one run's wall-clock time so a hung session cannot
	// pin a worker slot forever. Zero disables the bound.
	RunTimeout time.Duration
}

// Scheduler owns the scan loop and the worker pool.
type Scheduler struct {
	store    Store
	registry *Registry
	runner   Runner
	opts     Options
	sem      chan struct{}
	log      *zap.SugaredLogger

	// now is swapped in tests.
	now func() time.Time
}

// New builds a scheduler. The registry is shared with the HTTP layer for the
// monitoring endpoints.
func New(store Store, registry *Registry, runner Runner, opts Options, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		store:    store,
		registry: registry,
		runner:   runner,
		opts:     opts,
		sem:      make(chan struct{}, opts.MaxConcurrent),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run scans on a fixed interval until the context is cancelled. A failed
// scan is logged and retried on the next tick; it never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Infow("scheduler started",
		"check_interval", s.opts.CheckInterval,
		"retry_interval", s.opts.RetryInterval,
		"max_concurrent", s.opts.MaxConcurrent,
	)

	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// tick computes the due set and dispatches every eligible user. Each user is
// reserved in the registry before the worker is launched, closing the race
// between two consecutive scans.
func (s *Scheduler) tick(ctx context.Context) {
	users, err := s.store.ListPendingUsers()
	if err != nil {
		s.log.Errorw("failed to scan for pending users", "error", err)
		return
	}

	for _, user := range users {
		if s.registry.Active(user.ID) {
			continue
		}
		if !s.isDue(user) {
			continue
		}
		if !s.registry.TryReserve(user.ID) {
			continue
		}
		s.log.Infow("dispatching user", "user_id", user.ID)
		s.dispatch(ctx, user)
	}
}

// isDue applies the retry-interval gate. A missing or unparsable timestamp
// counts as due: better a redundant check than a user silently stuck.
func (s *Scheduler) isDue(user *models.User) bool {
	if user.LastChecked == "" {
		return true
	}
	checked, err := models.ParseLastChecked(user.LastChecked)
	if err != nil {
		s.log.Warnw("failed to parse last_checked, treating user as due",
			"user_id", user.ID, "last_checked", user.LastChecked, "error", err)
		return true
	}
	return s.now().Sub(checked) >= s.opts.RetryInterval
}

// dispatch hands the reserved user to a worker goroutine. Submissions beyond
// the pool capacity queue on the semaphore; they are never dropped. The slot
// is released even when the run panics.
func (s *Scheduler) dispatch(ctx context.Context, user *models.User) {
	go func() {
		defer s.registry.Release(user.ID)

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-s.sem }()

		defer func() {
			if r := recover(); r != nil {
				s.log.Errorw("automation run panicked", "user_id", user.ID, "panic", r)
			}
		}()

		runCtx := ctx
		if s.opts.RunTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
			defer cancel()
		}

		s.runner(runCtx, user)
	}()
}
