package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/efreeman/landgrab/internal/model"
)

// SeasonRepo handles season and season_player database operations.
type SeasonRepo struct {
	db *sql.DB
}

// NewSeasonRepo creates a SeasonRepo.
func NewSeasonRepo(db *sql.DB) *SeasonRepo {
	return &SeasonRepo{db: db}
}

// Create inserts a new season in "waiting" status.
func (r *SeasonRepo) Create(ctx context.Context, name, gameKind string) (*model.Season, error) {
	var s model.Season
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO seasons (id, name, game_kind) VALUES ($1, $2, $3)
		 RETURNING id, name, game_kind, status, turn, created_at`,
		uuid.NewString(), name, gameKind,
	).Scan(&s.ID, &s.Name, &s.GameKind, &s.Status, &s.Turn, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create season: %w", err)
	}
	return &s, nil
}

// FindByID returns a season by ID with its players, or nil if absent.
func (r *SeasonRepo) FindByID(ctx context.Context, id string) (*model.Season, error) {
	var s model.Season
	var winners pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, game_kind, status, turn, winners, created_at, started_at, finished_at
		 FROM seasons WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.GameKind, &s.Status, &s.Turn, &winners, &s.CreatedAt, &s.StartedAt, &s.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find season: %w", err)
	}
	s.Winners = winners

	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Players = players
	return &s, nil
}

// ListActive returns all seasons with status 'active', including players.
func (r *SeasonRepo) ListActive(ctx context.Context) ([]model.Season, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, game_kind, status, turn, created_at
		 FROM seasons WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active seasons: %w", err)
	}
	defer rows.Close()

	var seasons []model.Season
	for rows.Next() {
		var s model.Season
		if err := rows.Scan(&s.ID, &s.Name, &s.GameKind, &s.Status, &s.Turn, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		players, err := r.ListPlayers(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Players = players
		seasons = append(seasons, s)
	}
	return seasons, rows.Err()
}

// JoinSeason adds a player to a season.
func (r *SeasonRepo) JoinSeason(ctx context.Context, seasonID, playerID, name, color string, isNPC bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO season_players (season_id, player_id, name, color, is_npc) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING`,
		seasonID, playerID, name, color, isNPC,
	)
	if err != nil {
		return fmt.Errorf("join season: %w", err)
	}
	return nil
}

// ListPlayers returns all players in a season, in join order.
func (r *SeasonRepo) ListPlayers(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT season_id, player_id, name, color, is_npc, joined_at
		 FROM season_players WHERE season_id = $1 ORDER BY joined_at`,
		seasonID,
	)
	if err != nil {
		return nil, fmt.Errorf("list season players: %w", err)
	}
	defer rows.Close()

	var players []model.SeasonPlayer
	for rows.Next() {
		var p model.SeasonPlayer
		var color sql.NullString
		if err := rows.Scan(&p.SeasonID, &p.PlayerID, &p.Name, &color, &p.IsNPC, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan season player: %w", err)
		}
		p.Color = color.String
		players = append(players, p)
	}
	return players, rows.Err()
}

// SetActive marks a season as started.
func (r *SeasonRepo) SetActive(ctx context.Context, seasonID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE seasons SET status = 'active', started_at = now() WHERE id = $1`, seasonID)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

// SetTurn records the season's current turn number.
func (r *SeasonRepo) SetTurn(ctx context.Context, seasonID string, turn int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE seasons SET turn = $1 WHERE id = $2`, turn, seasonID)
	if err != nil {
		return fmt.Errorf("set turn: %w", err)
	}
	return nil
}

// SetFinished marks a season finished and records its winners in placement
// order.
func (r *SeasonRepo) SetFinished(ctx context.Context, seasonID string, winners []string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE seasons SET status = 'finished', winners = $1, finished_at = now() WHERE id = $2`,
		pq.StringArray(winners), seasonID)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// SaveSnapshot writes the turn's durable state blob.
func (r *SeasonRepo) SaveSnapshot(ctx context.Context, seasonID string, turn int, state json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO turn_snapshots (id, season_id, turn, state) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), seasonID, turn, []byte(state))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for a season, or nil if
// none has been written.
func (r *SeasonRepo) LatestSnapshot(ctx context.Context, seasonID string) (*model.TurnSnapshot, error) {
	var snap model.TurnSnapshot
	var state []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, season_id, turn, state, created_at FROM turn_snapshots
		 WHERE season_id = $1 ORDER BY created_at DESC, turn DESC LIMIT 1`,
		seasonID,
	).Scan(&snap.ID, &snap.SeasonID, &snap.Turn, &state, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.State = json.RawMessage(state)
	return &snap, nil
}
