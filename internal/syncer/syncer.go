// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/store"
)

const defaultConcurrency = 2

// Scheduler runs user syncs periodically and on demand.
type Scheduler struct {
	store        store.Store
	newClient    ClientFactory
	opts         Options
	logger       *slog.Logger
	syncInterval time.Duration
	concurrency  int

	mu      sync.Mutex
	base    context.Context // Start's context, inherited by triggered syncs
	running map[int64]bool
	wg      sync.WaitGroup
}

// NewScheduler creates a new Scheduler instance.
func NewScheduler(st store.Store, newClient ClientFactory, opts Options, logger *slog.Logger, interval time.Duration, concurrency int) (*Scheduler, error) {
	if _, err := parseRepoIdentifiers(opts.ExtraRepos); err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Scheduler{
		store:        st,
		newClient:    newClient,
		opts:         opts,
		logger:       logger,
		syncInterval: interval,
		concurrency:  concurrency,
		running:      make(map[int64]bool),
	}, nil
}

// Start resets flags left over by an interrupted process and runs a sync cycle every
// interval until ctx is done. A zero interval disables periodic cycles. Triggers are
// accepted from the moment Start is called until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	s.recoverInterrupted(ctx)

	if s.syncInterval <= 0 {
		s.logger.Info("Periodic sync disabled")
		return
	}

	s.logger.Info("Starting scheduler", "interval", s.syncInterval.String(), "concurrency", s.concurrency)
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	s.runSyncCycle(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.runSyncCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Scheduler shutting down", "reason", ctx.Err())
			return
		}
	}
}

// Trigger starts a background sync for userID. It fails with ErrSchedulerNotRunning
// before Start is called or once its context is done, with ErrUserNotFound for unknown users and with
// ErrSyncInProgress when the user is already syncing.
func (s *Scheduler) Trigger(ctx context.Context, userID int64) error {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()
	if base == nil || base.Err() != nil {
		return custom_errors.ErrSchedulerNotRunning
	}

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return custom_errors.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.SyncInProgress || !s.acquire(userID) {
		return custom_errors.ErrSyncInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(userID)
		if err := s.syncUser(base, userID); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Triggered sync failed", "user_id", userID, "error", err)
		}
	}()
	return nil
}

// Exclusive runs fn while holding userID's slot in the running set, so neither a
// cycle nor a trigger can start a sync for the user until fn returns. It fails with
// ErrSyncInProgress, without calling fn, when a sync of this process holds the slot.
func (s *Scheduler) Exclusive(userID int64, fn func() error) error {
	if !s.acquire(userID) {
		return custom_errors.ErrSyncInProgress
	}
	defer s.release(userID)
	return fn()
}

// Wait blocks until every triggered sync has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// runSyncCycle syncs every user that is not already syncing, a few at a time.
func (s *Scheduler) runSyncCycle(ctx context.Context) {
	s.logger.Info("Starting new sync cycle")
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, user := range users {
		if user.SyncInProgress || !s.acquire(user.ID) {
			s.logger.Info("Sync already in progress, skipping user", "user_id", user.ID)
			continue
		}
		userID := user.ID
		g.Go(func() error {
			defer s.release(userID)
			if gctx.Err() != nil {
				return nil
			}
			err := s.syncUser(gctx, userID)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Failed to sync user", "user_id", userID, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Sync cycle finished with an error", "error", err)
	} else {
		s.logger.Info("Sync cycle finished")
	}
}

func (s *Scheduler) syncUser(ctx context.Context, userID int64) error {
	o, err := NewOrchestrator(userID, s.store, s.newClient, s.opts, s.logger)
	if err != nil {
		return err
	}
	return o.Sync(ctx)
}

// recoverInterrupted clears in-progress flags no sync of this process owns. They are
// left behind when the process stops in the middle of a run.
func (s *Scheduler) recoverInterrupted(ctx context.Context) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return
	}
	for _, user := range users {
		if !user.SyncInProgress || !s.acquire(user.ID) {
			continue
		}
		user.SyncInProgress = false
		if err := s.store.SaveUser(ctx, &user); err != nil {
			s.logger.Error("Failed to reset interrupted sync", "user_id", user.ID, "error", err)
		} else {
			s.logger.Warn("Reset interrupted sync", "user_id", user.ID)
		}
		s.release(user.ID)
	}
}

func (s *Scheduler) acquire(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[userID] {
		return false
	}
	s.running[userID] = true
	return true
}

func (s *Scheduler) release(userID int64) {
	s.mu.Lock()
	delete(s.running, userID)
	s.mu.Unlock()
}
