package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/mzivlin/timecraft/libs/db"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/model"
)

// DefaultTimezone is assumed for users who never saved a template.
const DefaultTimezone = "Asia/Jerusalem"

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// Get returns the user's weekly template, or an empty default when none
// has been saved yet.
func (r *AvailabilityRepository) Get(ctx context.Context, userID string) (model.Availability, error) {
	var av model.Availability
	var windowsJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, timezone, windows, updated_at
		FROM availability
		WHERE user_id = $1
	`, userID).Scan(&av.UserID, &av.Timezone, &windowsJSON, &av.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Availability{
			UserID:   userID,
			Timezone: DefaultTimezone,
			Windows:  map[string][]model.Window{},
		}, nil
	}
	if err != nil {
		return model.Availability{}, err
	}
	if err := json.Unmarshal(windowsJSON, &av.Windows); err != nil {
		return model.Availability{}, err
	}
	return av, nil
}

// Put replaces the user's template wholesale.
func (r *AvailabilityRepository) Put(ctx context.Context, av model.Availability) error {
	windowsJSON, err := json.Marshal(av.Windows)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO availability (user_id, timezone, windows, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			windows = EXCLUDED.windows,
			updated_at = now()
	`, av.UserID, av.Timezone, windowsJSON)
	return err
}
