package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/efreeman/landgrab/internal/model"
)

// memStore is an in-memory TimeoutStore.
type memStore struct {
	mu   sync.Mutex
	recs map[string]model.TimeoutRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]model.TimeoutRecord)}
}

func (m *memStore) SaveTimeout(_ context.Context, rec model.TimeoutRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
	return nil
}

func (m *memStore) DeleteTimeout(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

func (m *memStore) ListTimeouts(_ context.Context) ([]model.TimeoutRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TimeoutRecord, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func fixedScheduler(store *memStore, at time.Time) *Scheduler {
	s := New(store)
	s.now = func() time.Time { return at }
	return s
}

func TestRegisterPersistsBeforeArming(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScheduler(store, base)
	defer s.Stop()

	id, err := s.Register(context.Background(), "turn-boundary", base.Add(time.Hour), model.PolicyIncrementDay)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if store.count() != 1 {
		t.Fatalf("expected 1 persisted record, got %d", store.count())
	}
	due, ok := s.QueryID(id)
	if !ok || !due.Equal(base.Add(time.Hour)) {
		t.Errorf("QueryID = %v, %v", due, ok)
	}
}

func TestIDsNotReusedWhileLive(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScheduler(store, base)
	defer s.Stop()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := s.Register(context.Background(), "shot-clock", base.Add(time.Hour), model.PolicyDelete)
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("id %q issued twice while live", id)
		}
		seen[id] = true
	}
}

func TestCancelAllOfKind(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScheduler(store, base)
	defer s.Stop()

	ctx := context.Background()
	s.Register(ctx, "shot-clock", base.Add(time.Hour), model.PolicyDelete)
	s.Register(ctx, "shot-clock", base.Add(2*time.Hour), model.PolicyDelete)
	keep, _ := s.Register(ctx, "turn-boundary", base.Add(3*time.Hour), model.PolicyIncrementDay)

	removed := s.CancelAllOfKind(ctx, "shot-clock")
	if len(removed) != 2 {
		t.Fatalf("removed %d records, want 2", len(removed))
	}
	if store.count() != 1 {
		t.Errorf("store holds %d records, want 1", store.count())
	}
	if _, ok := s.QueryID(keep); !ok {
		t.Error("unrelated kind was cancelled")
	}
	// Second cancel is a no-op.
	if again := s.CancelAllOfKind(ctx, "shot-clock"); len(again) != 0 {
		t.Errorf("repeat cancel removed %d records", len(again))
	}
}

func TestFireDeliversOnceAndDeletes(t *testing.T) {
	store := newMemStore()
	s := New(store)
	defer s.Stop()

	var mu sync.Mutex
	fired := 0
	done := make(chan struct{})
	s.Handle("shot-clock", func(_ context.Context, rec model.TimeoutRecord) {
		mu.Lock()
		fired++
		mu.Unlock()
		close(done)
	})

	id, err := s.Register(context.Background(), "shot-clock", time.Now().Add(10*time.Millisecond), model.PolicyDelete)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}

	mu.Lock()
	n := fired
	mu.Unlock()
	if n != 1 {
		t.Fatalf("fired %d times, want 1", n)
	}
	if store.count() != 0 {
		t.Errorf("record not deleted after firing")
	}
	if _, ok := s.QueryID(id); ok {
		t.Error("record still queryable after firing")
	}
}

func TestCallbackPanicDoesNotKillScheduler(t *testing.T) {
	store := newMemStore()
	s := New(store)
	defer s.Stop()

	done := make(chan struct{})
	s.Handle("draft-slot", func(_ context.Context, _ model.TimeoutRecord) {
		defer close(done)
		panic("boom")
	})

	s.Register(context.Background(), "draft-slot", time.Now().Add(5*time.Millisecond), model.PolicyInvoke)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}

	// The scheduler must still accept work afterwards.
	if _, err := s.Register(context.Background(), "draft-slot", time.Now().Add(time.Hour), model.PolicyInvoke); err != nil {
		t.Fatalf("register after panic: %v", err)
	}
}

func TestRecoverInvokesPastDue(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	store.SaveTimeout(ctx, model.TimeoutRecord{ID: "7", Kind: "draft-slot", DueAt: base.Add(-time.Minute), Policy: model.PolicyInvoke})

	s := fixedScheduler(store, base)
	defer s.Stop()

	var got []string
	s.Handle("draft-slot", func(_ context.Context, rec model.TimeoutRecord) {
		got = append(got, rec.ID)
	})
	if err := s.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(got) != 1 || got[0] != "7" {
		t.Fatalf("invoked %v, want [7]", got)
	}
	if store.count() != 0 {
		t.Errorf("past-due invoke record not deleted")
	}
}

func TestRecoverDropsStaleDeletePolicy(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	store.SaveTimeout(ctx, model.TimeoutRecord{ID: "3", Kind: "shot-clock", DueAt: base.Add(-time.Hour), Policy: model.PolicyDelete})

	s := fixedScheduler(store, base)
	defer s.Stop()

	fired := false
	s.Handle("shot-clock", func(_ context.Context, _ model.TimeoutRecord) { fired = true })
	if err := s.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if fired {
		t.Error("delete-policy record fired on recovery")
	}
	if store.count() != 0 {
		t.Errorf("stale record not deleted, store holds %d", store.count())
	}
}

func TestRecoverAdvancesIncrementDayMinimally(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// Due 2.5 days ago at 21:00; the smallest whole-day advance landing at or
	// after now is 21:00 on the 10th.
	due := time.Date(2026, 3, 7, 21, 0, 0, 0, time.UTC)
	store.SaveTimeout(ctx, model.TimeoutRecord{ID: "9", Kind: "turn-boundary", DueAt: due, Policy: model.PolicyIncrementDay})

	s := fixedScheduler(store, base)
	defer s.Stop()
	s.Handle("turn-boundary", func(_ context.Context, _ model.TimeoutRecord) {})

	if err := s.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	want := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)
	got, ok := s.QueryID("9")
	if !ok {
		t.Fatal("record gone after recovery")
	}
	if !got.Equal(want) {
		t.Errorf("advanced to %v, want %v", got, want)
	}
}

func TestRecoverAdvancesIncrementHour(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)
	due := time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)
	store.SaveTimeout(ctx, model.TimeoutRecord{ID: "4", Kind: "turn-boundary", DueAt: due, Policy: model.PolicyIncrementHour})

	s := fixedScheduler(store, base)
	defer s.Stop()
	s.Handle("turn-boundary", func(_ context.Context, _ model.TimeoutRecord) {})

	if err := s.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	want := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	if got, _ := s.QueryID("4"); !got.Equal(want) {
		t.Errorf("advanced to %v, want %v", got, want)
	}
}

func TestRecoverRearmsFutureRecords(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := base.Add(2 * time.Hour)
	store.SaveTimeout(ctx, model.TimeoutRecord{ID: "12", Kind: "turn-boundary", DueAt: due, Policy: model.PolicyIncrementDay})

	s := fixedScheduler(store, base)
	defer s.Stop()
	if err := s.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got, ok := s.QueryID("12"); !ok || !got.Equal(due) {
		t.Errorf("future record = %v, %v; want %v, true", got, ok, due)
	}
	// Allocator must not hand out the recovered ID again.
	id, err := s.Register(ctx, "turn-boundary", due, model.PolicyIncrementDay)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == "12" {
		t.Error("recovered id reissued while live")
	}
}

func TestPostponeMovesDeadlineWithoutNewRecord(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScheduler(store, base)
	defer s.Stop()

	ctx := context.Background()
	id, _ := s.Register(ctx, "shot-clock", base.Add(time.Minute), model.PolicyDelete)

	moved := s.Postpone(ctx, "shot-clock", base.Add(time.Hour))
	if len(moved) != 1 || moved[0] != id {
		t.Fatalf("postponed %v, want [%s]", moved, id)
	}
	if store.count() != 1 {
		t.Errorf("postpone changed record count to %d", store.count())
	}
	if got, _ := s.QueryID(id); !got.Equal(base.Add(time.Hour)) {
		t.Errorf("due = %v, want %v", got, base.Add(time.Hour))
	}
}

func TestQueryEarliestOfKind(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScheduler(store, base)
	defer s.Stop()

	ctx := context.Background()
	s.Register(ctx, "draft-slot", base.Add(3*time.Hour), model.PolicyInvoke)
	s.Register(ctx, "draft-slot", base.Add(time.Hour), model.PolicyInvoke)

	got, ok := s.Query("draft-slot")
	if !ok || !got.Equal(base.Add(time.Hour)) {
		t.Errorf("Query = %v, %v", got, ok)
	}
	if _, ok := s.Query("turn-boundary"); ok {
		t.Error("Query found records of an absent kind")
	}
}
