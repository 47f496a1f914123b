package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapmine/backend/internal/models"
)

const taskDefColumns = `id, title, description, kind, reward_points, required_amount, active, action, target`

const progressColumns = `id, account_id, task_id, progress, completed, completed_at, created_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func scanTaskDefinition(row pgx.Row) (*models.TaskDefinition, error) {
	var d models.TaskDefinition
	err := row.Scan(&d.ID, &d.Title, &d.Description, &d.Kind, &d.RewardPoints, &d.RequiredAmount, &d.Active, &d.Action, &d.Target)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *TaskRepo) GetDefinition(ctx context.Context, id uuid.UUID) (*models.TaskDefinition, error) {
	return scanTaskDefinition(r.pool.QueryRow(ctx, `SELECT `+taskDefColumns+` FROM task_definitions WHERE id = $1`, id))
}

// ListDefinitions returns active catalog tasks, optionally filtered by kind.
func (r *TaskRepo) ListDefinitions(ctx context.Context, kind string) ([]*models.TaskDefinition, error) {
	query := `SELECT ` + taskDefColumns + ` FROM task_definitions WHERE active`
	args := []any{}
	if kind != "" {
		query += ` AND kind = $1`
		args = append(args, kind)
	}
	query += ` ORDER BY title`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TaskDefinition
	for rows.Next() {
		d, err := scanTaskDefinition(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// GetProgressForUpdate locks the progress row for update. Call within a
// transaction. Returns pgx.ErrNoRows when the account has never reported
// progress on the task.
func (r *TaskRepo) GetProgressForUpdate(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID) (*models.TaskProgress, error) {
	var p models.TaskProgress
	err := tx.QueryRow(ctx, `
		SELECT `+progressColumns+` FROM task_progress
		WHERE account_id = $1 AND task_id = $2 FOR UPDATE
	`, accountID, taskID).Scan(&p.ID, &p.AccountID, &p.TaskID, &p.Progress, &p.Completed, &p.CompletedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *TaskRepo) CreateProgressTx(ctx context.Context, tx pgx.Tx, p *models.TaskProgress) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO task_progress (id, account_id, task_id, progress, completed, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.AccountID, p.TaskID, p.Progress, p.Completed, p.CompletedAt, p.CreatedAt)
	return err
}

func (r *TaskRepo) UpdateProgressTx(ctx context.Context, tx pgx.Tx, p *models.TaskProgress) error {
	_, err := tx.Exec(ctx, `
		UPDATE task_progress SET progress = $2, completed = $3, completed_at = $4 WHERE id = $1
	`, p.ID, p.Progress, p.Completed, p.CompletedAt)
	return err
}

// ListProgressForAccount returns the account's progress rows joined with
// their definitions.
func (r *TaskRepo) ListProgressForAccount(ctx context.Context, accountID uuid.UUID) ([]*models.TaskProgress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tp.id, tp.account_id, tp.task_id, tp.progress, tp.completed, tp.completed_at, tp.created_at,
		       td.id, td.title, td.description, td.kind, td.reward_points, td.required_amount, td.active, td.action, td.target
		FROM task_progress tp
		JOIN task_definitions td ON td.id = tp.task_id
		WHERE tp.account_id = $1
		ORDER BY tp.created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TaskProgress
	for rows.Next() {
		var p models.TaskProgress
		var d models.TaskDefinition
		if err := rows.Scan(&p.ID, &p.AccountID, &p.TaskID, &p.Progress, &p.Completed, &p.CompletedAt, &p.CreatedAt,
			&d.ID, &d.Title, &d.Description, &d.Kind, &d.RewardPoints, &d.RequiredAmount, &d.Active, &d.Action, &d.Target); err != nil {
			return nil, err
		}
		p.Definition = &d
		list = append(list, &p)
	}
	return list, rows.Err()
}
