package deadline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sumire/taskboard/internal/domain"
)

type fakePendingStore struct {
	pending map[int64][]domain.Notification
	listErr map[int64]error

	shown         []int64
	overdueUsers  []int64
	overdueGlobal int
}

func (s *fakePendingStore) ListPendingDeadlines(_ context.Context, userID int64) ([]domain.Notification, error) {
	if err := s.listErr[userID]; err != nil {
		return nil, err
	}
	return s.pending[userID], nil
}

func (s *fakePendingStore) MarkShown(_ context.Context, id int64) error {
	s.shown = append(s.shown, id)
	return nil
}

func (s *fakePendingStore) MarkOverdueShown(_ context.Context, userID int64, _ time.Time) error {
	s.overdueUsers = append(s.overdueUsers, userID)
	return nil
}

func (s *fakePendingStore) MarkAllOverdueShown(_ context.Context, _ time.Time) error {
	s.overdueGlobal++
	return nil
}

type push struct {
	userID  int64
	event   string
	payload any
}

type fakeRegistry struct {
	connected []int64
	pushes    []push
}

func (r *fakeRegistry) ConnectedUserIDs() []int64 { return r.connected }

func (r *fakeRegistry) PushToUser(userID int64, event string, payload any) bool {
	r.pushes = append(r.pushes, push{userID: userID, event: event, payload: payload})
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testScheduler(store *fakePendingStore, registry *fakeRegistry, now time.Time) *Scheduler {
	s := NewScheduler(store, registry, NewWindow(time.UTC), "30 * * * *", discardLogger())
	s.now = func() time.Time { return now }
	return s
}

func deadlineRecord(id, userID int64, deadlineAt string, notifyBefore int, unit domain.NotifyUnit) domain.Notification {
	return domain.Notification{
		ID:             id,
		ActorID:        userID,
		ImpactedUserID: userID,
		ObjectID:       100,
		Kind:           domain.KindDeadline,
		DeadlineAt:     deadlineAt,
		NotifyBefore:   notifyBefore,
		NotifyUnit:     unit,
	}
}

func TestSweepDeliversDueRecords(t *testing.T) {
	now := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	store := &fakePendingStore{
		pending: map[int64][]domain.Notification{
			7: {
				deadlineRecord(1, 7, "2026-08-27 15:00", 1, domain.UnitHour),
				deadlineRecord(2, 7, "2026-08-27 23:00", 1, domain.UnitHour),
			},
		},
	}
	registry := &fakeRegistry{connected: []int64{7}}

	testScheduler(store, registry, now).Sweep(context.Background())

	if len(store.shown) != 1 || store.shown[0] != 1 {
		t.Fatalf("shown = %v, want [1]", store.shown)
	}
	if len(registry.pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(registry.pushes))
	}
	p := registry.pushes[0]
	if p.userID != 7 || p.event != "deadline-notifications" {
		t.Fatalf("push = %+v, want user 7 / deadline-notifications", p)
	}
	delivered, ok := p.payload.([]domain.Notification)
	if !ok || len(delivered) != 1 {
		t.Fatalf("payload = %#v, want one notification", p.payload)
	}
	if !delivered[0].Shown {
		t.Error("delivered record should be flagged shown")
	}
	if !delivered[0].HappenedAt.Equal(now) {
		t.Errorf("HappenedAt = %v, want %v", delivered[0].HappenedAt, now)
	}
}

func TestSweepNothingDueNoPush(t *testing.T) {
	now := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	store := &fakePendingStore{
		pending: map[int64][]domain.Notification{
			7: {deadlineRecord(1, 7, "2026-08-27 23:00", 1, domain.UnitHour)},
		},
	}
	registry := &fakeRegistry{connected: []int64{7}}

	testScheduler(store, registry, now).Sweep(context.Background())

	if len(registry.pushes) != 0 {
		t.Fatalf("pushes = %v, want none", registry.pushes)
	}
	if len(store.shown) != 0 {
		t.Fatalf("shown = %v, want none", store.shown)
	}
}

func TestSweepSkipsInvalidUnit(t *testing.T) {
	now := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	store := &fakePendingStore{
		pending: map[int64][]domain.Notification{
			7: {
				deadlineRecord(1, 7, "2026-08-27 15:00", 1, domain.NotifyUnit("eon")),
				deadlineRecord(2, 7, "2026-08-27 15:00", 1, domain.UnitHour),
			},
		},
	}
	registry := &fakeRegistry{connected: []int64{7}}

	testScheduler(store, registry, now).Sweep(context.Background())

	if len(store.shown) != 1 || store.shown[0] != 2 {
		t.Fatalf("shown = %v, want only the valid record", store.shown)
	}
}

func TestSweepIsolatesUserFailures(t *testing.T) {
	now := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	store := &fakePendingStore{
		pending: map[int64][]domain.Notification{
			8: {deadlineRecord(3, 8, "2026-08-27 15:00", 1, domain.UnitHour)},
		},
		listErr: map[int64]error{7: errors.New("connection reset")},
	}
	registry := &fakeRegistry{connected: []int64{7, 8}}

	testScheduler(store, registry, now).Sweep(context.Background())

	if len(registry.pushes) != 1 || registry.pushes[0].userID != 8 {
		t.Fatalf("pushes = %+v, want one push to user 8", registry.pushes)
	}
	if store.overdueGlobal != 1 {
		t.Errorf("global overdue passes = %d, want 1", store.overdueGlobal)
	}
}

func TestSweepRunsOverduePasses(t *testing.T) {
	now := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	store := &fakePendingStore{pending: map[int64][]domain.Notification{}}
	registry := &fakeRegistry{connected: []int64{1, 2}}

	testScheduler(store, registry, now).Sweep(context.Background())

	if len(store.overdueUsers) != 2 {
		t.Fatalf("per-user overdue passes = %v, want both users", store.overdueUsers)
	}
	if store.overdueGlobal != 1 {
		t.Errorf("global overdue passes = %d, want 1", store.overdueGlobal)
	}
}
