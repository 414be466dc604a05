package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

// GetRateWindow fetches the counter row for a (user, kind, start) window.
func (r *Repository) GetRateWindow(ctx context.Context, userID, kind string, start time.Time) (*domain.RateLimitWindow, error) {
	const query = `SELECT id, user_id, window_type, window_start, request_count
		FROM ai_rate_limits WHERE user_id = $1 AND window_type = $2 AND window_start = $3`
	row := r.pool.QueryRow(ctx, query, userID, kind, start)
	var w domain.RateLimitWindow
	if err := row.Scan(&w.ID, &w.UserID, &w.WindowKind, &w.WindowStart, &w.RequestCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// IncrementRateWindow bumps a window counter, creating the row at 1 when
// absent. The upsert is atomic per window row.
func (r *Repository) IncrementRateWindow(ctx context.Context, userID, kind string, start time.Time) error {
	const query = `INSERT INTO ai_rate_limits (id, user_id, window_type, window_start, request_count)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (user_id, window_type, window_start)
		DO UPDATE SET request_count = ai_rate_limits.request_count + 1`
	_, err := r.pool.Exec(ctx, query, uuid.NewString(), userID, kind, start)
	return err
}
