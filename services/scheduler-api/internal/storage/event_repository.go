package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mzivlin/timecraft/libs/db"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/model"
)

type EventRepository struct {
	pool *db.Pool
}

func NewEventRepository(pool *db.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *EventRepository) Create(ctx context.Context, tx pgx.Tx, evt *model.Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO events (id, user_id, title, start_time, end_time, immutable, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evt.ID, evt.UserID, evt.Title, evt.StartTime, evt.EndTime, evt.Immutable, evt.Source)
	return err
}

func (r *EventRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, userID, eventID string) (model.Event, error) {
	var evt model.Event
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, title, start_time, end_time, immutable, COALESCE(source, ''), created_at, updated_at
		FROM events
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, eventID, userID).Scan(
		&evt.ID,
		&evt.UserID,
		&evt.Title,
		&evt.StartTime,
		&evt.EndTime,
		&evt.Immutable,
		&evt.Source,
		&evt.CreatedAt,
		&evt.UpdatedAt,
	)
	if err != nil {
		return model.Event{}, err
	}
	return evt, nil
}

func (r *EventRepository) Update(ctx context.Context, tx pgx.Tx, evt *model.Event) error {
	_, err := tx.Exec(ctx, `
		UPDATE events
		SET title = $3,
			start_time = $4,
			end_time = $5,
			immutable = $6,
			updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, evt.ID, evt.UserID, evt.Title, evt.StartTime, evt.EndTime, evt.Immutable)
	return err
}

func (r *EventRepository) Delete(ctx context.Context, tx pgx.Tx, userID, eventID string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		DELETE FROM events
		WHERE id = $1 AND user_id = $2
	`, eventID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListOverlapping returns events intersecting [start, end), ordered by
// start. The half-open comparison keeps back-to-back events out of each
// other's range queries.
func (r *EventRepository) ListOverlapping(ctx context.Context, userID string, start, end time.Time) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, start_time, end_time, immutable, COALESCE(source, ''), created_at, updated_at
		FROM events
		WHERE user_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var evt model.Event
		if err := rows.Scan(
			&evt.ID,
			&evt.UserID,
			&evt.Title,
			&evt.StartTime,
			&evt.EndTime,
			&evt.Immutable,
			&evt.Source,
			&evt.CreatedAt,
			&evt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
