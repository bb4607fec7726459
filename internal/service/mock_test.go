package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/efreeman/landgrab/internal/model"
)

type mockSeasonRepo struct {
	mu        sync.Mutex
	seasons   map[string]*model.Season
	players   map[string][]model.SeasonPlayer
	snapshots map[string][]model.TurnSnapshot
}

func newMockSeasonRepo() *mockSeasonRepo {
	return &mockSeasonRepo{
		seasons:   make(map[string]*model.Season),
		players:   make(map[string][]model.SeasonPlayer),
		snapshots: make(map[string][]model.TurnSnapshot),
	}
}

func (m *mockSeasonRepo) Create(_ context.Context, name, gameKind string) (*model.Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &model.Season{
		ID:        fmt.Sprintf("season-%d", len(m.seasons)+1),
		Name:      name,
		GameKind:  gameKind,
		Status:    "waiting",
		CreatedAt: time.Now(),
	}
	m.seasons[s.ID] = s
	return s, nil
}

func (m *mockSeasonRepo) FindByID(_ context.Context, id string) (*model.Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seasons[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Players = m.players[id]
	return &cp, nil
}

func (m *mockSeasonRepo) ListActive(_ context.Context) ([]model.Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Season
	for _, s := range m.seasons {
		if s.Status == "active" {
			cp := *s
			cp.Players = m.players[s.ID]
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockSeasonRepo) JoinSeason(_ context.Context, seasonID, playerID, name, color string, isNPC bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[seasonID] = append(m.players[seasonID], model.SeasonPlayer{
		SeasonID: seasonID,
		PlayerID: playerID,
		Name:     name,
		Color:    color,
		IsNPC:    isNPC,
		JoinedAt: time.Now(),
	})
	return nil
}

func (m *mockSeasonRepo) SetActive(_ context.Context, seasonID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.seasons[seasonID]; ok {
		s.Status = "active"
		now := time.Now()
		s.StartedAt = &now
	}
	return nil
}

func (m *mockSeasonRepo) SetTurn(_ context.Context, seasonID string, turn int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.seasons[seasonID]; ok {
		s.Turn = turn
	}
	return nil
}

func (m *mockSeasonRepo) SetFinished(_ context.Context, seasonID string, winners []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.seasons[seasonID]; ok {
		s.Status = "finished"
		s.Winners = winners
		now := time.Now()
		s.FinishedAt = &now
	}
	return nil
}

func (m *mockSeasonRepo) SaveSnapshot(_ context.Context, seasonID string, turn int, state json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[seasonID] = append(m.snapshots[seasonID], model.TurnSnapshot{
		ID:        fmt.Sprintf("snap-%d", len(m.snapshots[seasonID])+1),
		SeasonID:  seasonID,
		Turn:      turn,
		State:     append(json.RawMessage(nil), state...),
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *mockSeasonRepo) LatestSnapshot(_ context.Context, seasonID string) (*model.TurnSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := m.snapshots[seasonID]
	if len(snaps) == 0 {
		return nil, nil
	}
	cp := snaps[len(snaps)-1]
	return &cp, nil
}

type mockCache struct {
	mu        sync.Mutex
	states    map[string]json.RawMessage
	summaries map[string]string
}

func newMockCache() *mockCache {
	return &mockCache{
		states:    make(map[string]json.RawMessage),
		summaries: make(map[string]string),
	}
}

func (m *mockCache) SetGameState(_ context.Context, seasonID string, state json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[seasonID] = append(json.RawMessage(nil), state...)
	return nil
}

func (m *mockCache) GetGameState(_ context.Context, seasonID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[seasonID]
	if !ok {
		return nil, nil
	}
	return state, nil
}

func (m *mockCache) SetLastSummary(_ context.Context, seasonID, summary string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[seasonID] = summary
	return nil
}

func (m *mockCache) GetLastSummary(_ context.Context, seasonID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaries[seasonID], nil
}

func (m *mockCache) DeleteSeasonData(_ context.Context, seasonID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, seasonID)
	delete(m.summaries, seasonID)
	return nil
}

type mockTimeoutStore struct {
	mu   sync.Mutex
	recs map[string]model.TimeoutRecord
}

func newMockTimeoutStore() *mockTimeoutStore {
	return &mockTimeoutStore{recs: make(map[string]model.TimeoutRecord)}
}

func (m *mockTimeoutStore) SaveTimeout(_ context.Context, rec model.TimeoutRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
	return nil
}

func (m *mockTimeoutStore) DeleteTimeout(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

func (m *mockTimeoutStore) ListTimeouts(_ context.Context) ([]model.TimeoutRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TimeoutRecord, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	return out, nil
}

// recordingBroadcaster captures events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	seasonID  string
	eventType string
	data      any
}

func (b *recordingBroadcaster) BroadcastSeasonEvent(seasonID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{seasonID: seasonID, eventType: eventType, data: data})
}

func (b *recordingBroadcaster) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var types []string
	for _, e := range b.events {
		types = append(types, e.eventType)
	}
	return types
}

func (b *recordingBroadcaster) has(eventType string) bool {
	for _, t := range b.eventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}
