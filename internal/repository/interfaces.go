package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/efreeman/landgrab/internal/model"
)

// TimeoutStore persists scheduler timeout records. The scheduler is the only
// writer; implementations just move records in and out of durable storage.
type TimeoutStore interface {
	SaveTimeout(ctx context.Context, rec model.TimeoutRecord) error
	DeleteTimeout(ctx context.Context, id string) error
	ListTimeouts(ctx context.Context) ([]model.TimeoutRecord, error)
}

// SeasonRepository defines season and player data operations.
type SeasonRepository interface {
	Create(ctx context.Context, name, gameKind string) (*model.Season, error)
	FindByID(ctx context.Context, id string) (*model.Season, error)
	ListActive(ctx context.Context) ([]model.Season, error)
	JoinSeason(ctx context.Context, seasonID, playerID, name, color string, isNPC bool) error
	SetActive(ctx context.Context, seasonID string) error
	SetTurn(ctx context.Context, seasonID string, turn int) error
	SetFinished(ctx context.Context, seasonID string, winners []string) error
	SaveSnapshot(ctx context.Context, seasonID string, turn int, state json.RawMessage) error
	LatestSnapshot(ctx context.Context, seasonID string) (*model.TurnSnapshot, error)
}

// GameCache defines live game state operations (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, seasonID string, state json.RawMessage) error
	GetGameState(ctx context.Context, seasonID string) (json.RawMessage, error)
	SetLastSummary(ctx context.Context, seasonID, summary string, ttl time.Duration) error
	GetLastSummary(ctx context.Context, seasonID string) (string, error)
	DeleteSeasonData(ctx context.Context, seasonID string) error
}
