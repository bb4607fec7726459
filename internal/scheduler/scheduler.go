// Package scheduler implements durable single-fire timed callbacks. Records
// are persisted before any timer is armed, and reconciled against the wall
// clock on startup, so scheduled work survives process restarts without being
// lost or duplicated. In-memory timers are never the source of truth.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/efreeman/landgrab/internal/model"
	"github.com/efreeman/landgrab/internal/repository"
)

// idSpace bounds the integer ID allocator; allocation scans upward from the
// last-used value and wraps only after exhausting the live set.
const idSpace = 1 << 31

// Callback handles a fired timeout. Errors are logged, never retried: the
// record is already deleted when the callback runs (at-most-once delivery).
type Callback func(ctx context.Context, rec model.TimeoutRecord)

// Scheduler owns all TimeoutRecords and is the only component permitted to
// arm or disarm the underlying timers.
type Scheduler struct {
	mu       sync.Mutex
	store    repository.TimeoutStore
	handlers map[string]Callback
	records  map[string]model.TimeoutRecord
	timers   map[string]*time.Timer
	lastID   int

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Scheduler over a timeout store. Call Handle for every kind
// before Recover.
func New(store repository.TimeoutStore) *Scheduler {
	return &Scheduler{
		store:    store,
		handlers: make(map[string]Callback),
		records:  make(map[string]model.TimeoutRecord),
		timers:   make(map[string]*time.Timer),
		now:      time.Now,
	}
}

// Handle registers the callback invoked when a record of the given kind
// fires. A kind without a handler still fires (and deletes its record) with a
// logged warning.
func (s *Scheduler) Handle(kind string, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = cb
}

// Register persists a new record and arms a timer for max(0, dueAt-now).
// The write-through to the store is synchronous; the returned ID is live
// until the callback fires or the record is cancelled.
func (s *Scheduler) Register(ctx context.Context, kind string, dueAt time.Time, policy string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.nextIDLocked()
	if err != nil {
		return "", err
	}
	rec := model.TimeoutRecord{ID: id, Kind: kind, DueAt: dueAt, Policy: policy}
	if err := s.store.SaveTimeout(ctx, rec); err != nil {
		return "", fmt.Errorf("save timeout: %w", err)
	}
	s.records[id] = rec
	s.armLocked(rec)

	log.Debug().Str("id", id).Str("kind", kind).Time("dueAt", dueAt).Msg("Timeout registered")
	return id, nil
}

// nextIDLocked scans upward from the last-used integer for a free ID.
func (s *Scheduler) nextIDLocked() (string, error) {
	for i := 1; i <= idSpace; i++ {
		cand := strconv.Itoa((s.lastID + i) % idSpace)
		if _, live := s.records[cand]; !live {
			s.lastID = (s.lastID + i) % idSpace
			return cand, nil
		}
	}
	return "", fmt.Errorf("timeout id space exhausted")
}

// armLocked starts the single in-memory timer for a live record.
func (s *Scheduler) armLocked(rec model.TimeoutRecord) {
	delay := rec.DueAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	id := rec.ID
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

// fire deletes the record first, then invokes the handler. Deleting before
// any other work means a concurrent cancel or a crashed callback can never
// cause a duplicate delivery.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		// Cancelled between timer expiry and lock acquisition.
		s.mu.Unlock()
		return
	}
	s.dropLocked(id)
	s.mu.Unlock()

	s.invoke(context.Background(), rec)
}

// invoke runs the handler for a record, catching panics so a failing callback
// never takes down the scheduler. The record is already gone either way.
func (s *Scheduler) invoke(ctx context.Context, rec model.TimeoutRecord) {
	s.mu.Lock()
	cb := s.handlers[rec.Kind]
	s.mu.Unlock()

	if cb == nil {
		log.Warn().Str("id", rec.ID).Str("kind", rec.Kind).Msg("Timeout fired with no handler")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("id", rec.ID).Str("kind", rec.Kind).
				Interface("panic", r).Msg("Timeout callback panicked")
		}
	}()
	cb(ctx, rec)
}

// dropLocked removes a record from memory and storage and disarms its timer.
func (s *Scheduler) dropLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	delete(s.records, id)
	if err := s.store.DeleteTimeout(context.Background(), id); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to delete timeout record")
	}
}

// CancelAllOfKind disarms and deletes every live record of a kind. Idempotent;
// returns the removed IDs so callers can log race-condition cleanup.
func (s *Scheduler) CancelAllOfKind(ctx context.Context, kind string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, rec := range s.records {
		if rec.Kind == kind {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	for _, id := range removed {
		s.dropLocked(id)
	}
	if len(removed) > 0 {
		log.Debug().Str("kind", kind).Strs("ids", removed).Msg("Timeouts cancelled")
	}
	return removed
}

// Postpone re-arms all live records of a kind to a new due time without
// changing their IDs. Used to push back an imminent deadline when a human is
// mid-action, instead of creating a duplicate record.
func (s *Scheduler) Postpone(ctx context.Context, kind string, newDueAt time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var moved []string
	for id, rec := range s.records {
		if rec.Kind != kind {
			continue
		}
		rec.DueAt = newDueAt
		if err := s.store.SaveTimeout(ctx, rec); err != nil {
			log.Error().Err(err).Str("id", id).Msg("Failed to persist postponed timeout")
			continue
		}
		s.records[id] = rec
		if t, ok := s.timers[id]; ok {
			t.Stop()
		}
		s.armLocked(rec)
		moved = append(moved, id)
	}
	sort.Strings(moved)
	return moved
}

// Query returns the earliest due time among live records of a kind.
func (s *Scheduler) Query(kind string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest time.Time
	found := false
	for _, rec := range s.records {
		if rec.Kind != kind {
			continue
		}
		if !found || rec.DueAt.Before(earliest) {
			earliest = rec.DueAt
			found = true
		}
	}
	return earliest, found
}

// QueryID returns the due time of a live record by ID.
func (s *Scheduler) QueryID(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec.DueAt, ok
}

// Recover reads every persisted record and reconciles it against the wall
// clock. Invoked once at process start, before any Register call races it.
// Past-due records are resolved per their policy; future records simply
// re-arm for the remaining delay. Each past-due Invoke fires exactly once,
// synchronously with respect to recovery order.
func (s *Scheduler) Recover(ctx context.Context) error {
	recs, err := s.store.ListTimeouts(ctx)
	if err != nil {
		return fmt.Errorf("list timeouts: %w", err)
	}

	now := s.now()
	var invoke []model.TimeoutRecord

	s.mu.Lock()
	for _, rec := range recs {
		s.trackIDLocked(rec.ID)

		if rec.DueAt.After(now) {
			s.records[rec.ID] = rec
			s.armLocked(rec)
			continue
		}

		switch rec.Policy {
		case model.PolicyInvoke:
			s.records[rec.ID] = rec
			s.dropLocked(rec.ID)
			invoke = append(invoke, rec)
		case model.PolicyDelete:
			s.records[rec.ID] = rec
			s.dropLocked(rec.ID)
			log.Info().Str("id", rec.ID).Str("kind", rec.Kind).Msg("Dropped stale timeout")
		case model.PolicyIncrementDay, model.PolicyIncrementHour:
			unit := 24 * time.Hour
			if rec.Policy == model.PolicyIncrementHour {
				unit = time.Hour
			}
			// Smallest whole-unit advance that lands at or after now.
			for rec.DueAt.Before(now) {
				rec.DueAt = rec.DueAt.Add(unit)
			}
			if err := s.store.SaveTimeout(ctx, rec); err != nil {
				log.Error().Err(err).Str("id", rec.ID).Msg("Failed to persist advanced timeout")
			}
			s.records[rec.ID] = rec
			s.armLocked(rec)
			log.Info().Str("id", rec.ID).Str("kind", rec.Kind).
				Time("dueAt", rec.DueAt).Msg("Advanced stale recurring timeout")
		default:
			log.Error().Str("id", rec.ID).Str("policy", rec.Policy).Msg("Unknown past-due policy, dropping record")
			s.records[rec.ID] = rec
			s.dropLocked(rec.ID)
		}
	}
	s.mu.Unlock()

	for _, rec := range invoke {
		log.Info().Str("id", rec.ID).Str("kind", rec.Kind).Msg("Invoking past-due timeout")
		s.invoke(ctx, rec)
	}

	log.Info().Int("recovered", len(recs)).Int("invoked", len(invoke)).Msg("Scheduler recovered")
	return nil
}

// trackIDLocked keeps the allocator ahead of recovered numeric IDs.
func (s *Scheduler) trackIDLocked(id string) {
	if n, err := strconv.Atoi(id); err == nil && n > s.lastID {
		s.lastID = n
	}
}

// Stop disarms every in-memory timer. Records stay persisted for the next
// Recover.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
