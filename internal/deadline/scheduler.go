package deadline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sumire/taskboard/internal/domain"
)

// PendingStore is the notification storage the scheduler sweeps.
type PendingStore interface {
	ListPendingDeadlines(ctx context.Context, userID int64) ([]domain.Notification, error)
	MarkShown(ctx context.Context, id int64) error
	MarkOverdueShown(ctx context.Context, userID int64, now time.Time) error
	MarkAllOverdueShown(ctx context.Context, now time.Time) error
}

// Registry exposes the connected users the scheduler can deliver to.
type Registry interface {
	ConnectedUserIDs() []int64
	PushToUser(userID int64, event string, payload any) bool
}

// Scheduler runs the periodic deadline sweep. Each run walks the connected
// users, delivers every deadline record whose window is open, and marks it
// shown so it never fires twice.
type Scheduler struct {
	cron     *cron.Cron
	store    PendingStore
	registry Registry
	window   *Window
	now      func() time.Time
	log      *slog.Logger
	spec     string
}

// NewScheduler creates a Scheduler. spec is a cron expression; a run that is
// still going when the next tick arrives suppresses that tick.
func NewScheduler(store PendingStore, registry Registry, window *Window, spec string, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		store:    store,
		registry: registry,
		window:   window,
		now:      time.Now,
		spec:     spec,
		log:      log,
	}
}

// Start registers the sweep job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("deadline scheduler started", slog.String("spec", s.spec))
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("deadline scheduler stopped")
}

// Sweep performs one full pass: every connected user's pending deadline
// records are evaluated against the current time. A failure for one user
// never blocks the others. The pass ends by retiring overdue records for
// everyone, connected or not.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now()
	for _, userID := range s.registry.ConnectedUserIDs() {
		if err := s.sweepUser(ctx, userID, now); err != nil {
			s.log.Error("deadline sweep failed for user",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	if err := s.store.MarkAllOverdueShown(ctx, now); err != nil {
		s.log.Error("retiring overdue deadline records failed", slog.Any("error", err))
	}
}

func (s *Scheduler) sweepUser(ctx context.Context, userID int64, now time.Time) error {
	pending, err := s.store.ListPendingDeadlines(ctx, userID)
	if err != nil {
		return err
	}

	var due []domain.Notification
	for _, n := range pending {
		ok, err := s.window.IsDue(n.DeadlineAt, n.NotifyBefore, n.NotifyUnit, now)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidNotifyUnit) {
				s.log.Warn("skipping deadline record with unknown notify unit",
					slog.Int64("notification_id", n.ID), slog.String("unit", string(n.NotifyUnit)))
				continue
			}
			return err
		}
		if !ok {
			continue
		}
		if err := s.store.MarkShown(ctx, n.ID); err != nil {
			return err
		}
		n.Shown = true
		n.HappenedAt = now
		due = append(due, n)
	}

	if len(due) > 0 {
		s.registry.PushToUser(userID, "deadline-notifications", due)
	}

	return s.store.MarkOverdueShown(ctx, userID, now)
}
