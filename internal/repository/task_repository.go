package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskpanel/internal/common"
	"taskpanel/internal/models"
)

var ErrTaskNotFound = common.NewError(common.ErrNotFound, "task not found")

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, user_id, title, description, completed, deleted`

func (r *TaskRepository) Create(ctx context.Context, task models.Task) error {
	const query = `
		INSERT INTO tasks (
			id, user_id, title, description, completed, deleted, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Completed,
		task.Deleted,
	)
	return err
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (models.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// List returns tasks in creation order, all of them when userID is empty.
func (r *TaskRepository) List(ctx context.Context, userID string) ([]models.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	const query = `
		UPDATE tasks
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    completed = COALESCE($4, completed),
		    deleted = COALESCE($5, deleted),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + taskColumns

	row := r.pool.QueryRow(ctx, query, id, patch.Title, patch.Description, patch.Completed, patch.Deleted)
	return scanTask(row)
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (models.Task, error) {
	var task models.Task
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&task.Deleted,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}
