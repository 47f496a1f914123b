package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapmine/backend/internal/models"
)

type ReferralRepo struct {
	pool *pgxpool.Pool
}

func NewReferralRepo(pool *pgxpool.Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

// CreateTx inserts a referral record inside the given transaction.
func (r *ReferralRepo) CreateTx(ctx context.Context, tx pgx.Tx, ref *models.Referral) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_id, bonus_points, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ref.ID, ref.ReferrerID, ref.ReferredID, ref.BonusPoints, ref.CreatedAt)
	return err
}

// ListByReferrer returns the referrer's records joined with a summary of each
// referred account.
func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.Referral, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rf.id, rf.referrer_id, rf.referred_id, rf.bonus_points, rf.created_at,
		       a.id, a.telegram_id, a.first_name, a.last_name, a.username, a.photo_url, a.level, a.points, a.base_rate, a.last_settled_at, a.referral_code, a.referred_by, a.completed_task_count, a.boost_purchase_count, a.created_at, a.updated_at
		FROM referrals rf
		JOIN accounts a ON a.id = rf.referred_id
		WHERE rf.referrer_id = $1
		ORDER BY rf.created_at DESC
	`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Referral
	for rows.Next() {
		var ref models.Referral
		var a models.Account
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.BonusPoints, &ref.CreatedAt,
			&a.ID, &a.TelegramID, &a.FirstName, &a.LastName, &a.Username, &a.PhotoURL, &a.Level, &a.Points, &a.BaseRate, &a.LastSettledAt, &a.ReferralCode, &a.ReferredBy, &a.CompletedTaskCount, &a.BoostPurchaseCount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		ref.Referred = &a
		list = append(list, &ref)
	}
	return list, rows.Err()
}

func (r *ReferralRepo) CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, referrerID).Scan(&n)
	return n, err
}
