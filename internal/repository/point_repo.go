package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapmine/backend/internal/models"
)

type PointRepo struct {
	pool *pgxpool.Pool
}

func NewPointRepo(pool *pgxpool.Pool) *PointRepo {
	return &PointRepo{pool: pool}
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *PointRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.PointEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO point_ledger (id, account_id, reference_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.AccountID, e.ReferenceID, e.EntryType, e.Amount, e.BalanceAfter).Scan(&e.CreatedAt)
}

func (r *PointRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.PointEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, reference_id, entry_type, amount, balance_after, created_at
		FROM point_ledger WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PointEntry
	for rows.Next() {
		var e models.PointEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.ReferenceID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
