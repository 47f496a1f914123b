package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapmine/backend/internal/models"
)

const accountColumns = `id, telegram_id, first_name, last_name, username, photo_url, level, points, base_rate, last_settled_at, referral_code, referred_by, completed_task_count, boost_purchase_count, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.TelegramID, &a.FirstName, &a.LastName, &a.Username, &a.PhotoURL, &a.Level, &a.Points, &a.BaseRate, &a.LastSettledAt, &a.ReferralCode, &a.ReferredBy, &a.CompletedTaskCount, &a.BoostPurchaseCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, telegram_id, first_name, last_name, username, photo_url, level, points, base_rate, last_settled_at, referral_code, referred_by, completed_task_count, boost_purchase_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`, a.ID, a.TelegramID, a.FirstName, a.LastName, a.Username, a.PhotoURL, a.Level, a.Points, a.BaseRate, a.LastSettledAt, a.ReferralCode, a.ReferredBy, a.CompletedTaskCount, a.BoostPurchaseCount).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepo) GetByTelegramID(ctx context.Context, telegramID string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE telegram_id = $1`, telegramID))
}

func (r *AccountRepo) GetByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1`, code))
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// UpdateSettlement persists the fields the accrual engine mutates. Call after
// GetByIDForUpdate in the same tx.
func (r *AccountRepo) UpdateSettlement(ctx context.Context, tx pgx.Tx, a *models.Account) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts SET points = $2, level = $3, last_settled_at = $4, updated_at = now() WHERE id = $1
	`, a.ID, a.Points, a.Level, a.LastSettledAt)
	return err
}

// DeductPoints atomically deducts amount if the balance covers it. Returns
// the new balance; pgx.ErrNoRows when the balance was insufficient.
func (r *AccountRepo) DeductPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET points = points - $1, updated_at = now()
		WHERE id = $2 AND points >= $1
		RETURNING points
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddPoints adds amount to the balance and returns the new balance.
func (r *AccountRepo) AddPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET points = points + $1, updated_at = now()
		WHERE id = $2
		RETURNING points
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

func (r *AccountRepo) SetLevel(ctx context.Context, tx pgx.Tx, id uuid.UUID, level int) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET level = $2, updated_at = now() WHERE id = $1`, id, level)
	return err
}

func (r *AccountRepo) SetBaseRate(ctx context.Context, tx pgx.Tx, id uuid.UUID, rate int) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET base_rate = $2, updated_at = now() WHERE id = $1`, id, rate)
	return err
}

// SetReferredBy links the account to its referrer. referred_by is written at
// most once; a second write is rejected by the WHERE clause.
func (r *AccountRepo) SetReferredBy(ctx context.Context, tx pgx.Tx, id uuid.UUID, code string) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts SET referred_by = $2, updated_at = now()
		WHERE id = $1 AND referred_by IS NULL
	`, id, code)
	return err
}

func (r *AccountRepo) IncrementBoostCount(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET boost_purchase_count = boost_purchase_count + 1, updated_at = now() WHERE id = $1`, id)
	return err
}

func (r *AccountRepo) IncrementCompletedTaskCount(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET completed_task_count = completed_task_count + 1, updated_at = now() WHERE id = $1`, id)
	return err
}
