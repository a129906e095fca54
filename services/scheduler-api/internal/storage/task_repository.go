package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mzivlin/timecraft/libs/db"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/model"
)

type TaskRepository struct {
	pool *db.Pool
}

func NewTaskRepository(pool *db.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *model.Task) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO tasks (id, user_id, title, duration_min, category, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, task.ID, task.UserID, task.Title, task.DurationMin, task.Category, task.Notes)
	return err
}

func (r *TaskRepository) Get(ctx context.Context, userID, taskID string) (model.Task, error) {
	var task model.Task
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, duration_min, COALESCE(category, ''), COALESCE(notes, ''), created_at
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, taskID, userID).Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.DurationMin,
		&task.Category,
		&task.Notes,
		&task.CreatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) List(ctx context.Context, userID string) ([]model.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, duration_min, COALESCE(category, ''), COALESCE(notes, ''), created_at
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var task model.Task
		if err := rows.Scan(
			&task.ID,
			&task.UserID,
			&task.Title,
			&task.DurationMin,
			&task.Category,
			&task.Notes,
			&task.CreatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return tasks, nil
}

func (r *TaskRepository) Delete(ctx context.Context, tx pgx.Tx, userID, taskID string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		DELETE FROM tasks
		WHERE id = $1 AND user_id = $2
	`, taskID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
