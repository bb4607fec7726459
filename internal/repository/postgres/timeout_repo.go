package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/efreeman/landgrab/internal/model"
)

// TimeoutRepo persists scheduler timeout records.
type TimeoutRepo struct {
	db *sql.DB
}

// NewTimeoutRepo creates a TimeoutRepo.
func NewTimeoutRepo(db *sql.DB) *TimeoutRepo {
	return &TimeoutRepo{db: db}
}

// SaveTimeout upserts a timeout record. Register and Postpone both write
// through here, so the same ID may be saved more than once.
func (r *TimeoutRepo) SaveTimeout(ctx context.Context, rec model.TimeoutRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO timeouts (id, kind, due_at, policy) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET kind = $2, due_at = $3, policy = $4`,
		rec.ID, rec.Kind, rec.DueAt, rec.Policy,
	)
	if err != nil {
		return fmt.Errorf("save timeout: %w", err)
	}
	return nil
}

// DeleteTimeout removes a timeout record. Deleting an absent ID is not an
// error.
func (r *TimeoutRepo) DeleteTimeout(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM timeouts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timeout: %w", err)
	}
	return nil
}

// ListTimeouts returns every persisted record, earliest due first.
func (r *TimeoutRepo) ListTimeouts(ctx context.Context) ([]model.TimeoutRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, due_at, policy FROM timeouts ORDER BY due_at`)
	if err != nil {
		return nil, fmt.Errorf("list timeouts: %w", err)
	}
	defer rows.Close()

	var recs []model.TimeoutRecord
	for rows.Next() {
		var rec model.TimeoutRecord
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.DueAt, &rec.Policy); err != nil {
			return nil, fmt.Errorf("scan timeout: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
