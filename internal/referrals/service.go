package referrals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tapmine/backend/internal/models"
)

// ErrUnknownReferralCode is returned when no account holds the code.
var ErrUnknownReferralCode = errors.New("unknown referral code")

// ErrAlreadyReferred is returned when the referred account already carries a
// referrer. The retry of a replayed creation lands here and is a no-op.
var ErrAlreadyReferred = errors.New("account already referred")

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountRepo is the minimal account repository interface for referrals.
type AccountRepo interface {
	GetByReferralCode(ctx context.Context, code string) (*models.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	AddPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	SetLevel(ctx context.Context, tx pgx.Tx, id uuid.UUID, level int) error
	SetBaseRate(ctx context.Context, tx pgx.Tx, id uuid.UUID, rate int) error
	SetReferredBy(ctx context.Context, tx pgx.Tx, id uuid.UUID, code string) error
}

// Repo is the referral record repository interface.
type Repo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, ref *models.Referral) error
}

// PointRepo records the referrer bonus in the point ledger.
type PointRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.PointEntry) error
}

// Settler settles pending accrual for a locked account row. The referrer is
// settled before the rate uplift so the new rate never reaches back over
// already-elapsed time.
type Settler interface {
	SettleLocked(ctx context.Context, tx pgx.Tx, acc *models.Account, now time.Time) (int, error)
}

// Service records referrer/referred pairs. Creating a record is the only
// event that permanently raises a referrer's base rate.
type Service struct {
	pool     TxBeginner
	accounts AccountRepo
	repo     Repo
	points   PointRepo
	settler  Settler
}

func NewService(pool TxBeginner, accounts AccountRepo, repo Repo, points PointRepo, settler Settler) *Service {
	return &Service{pool: pool, accounts: accounts, repo: repo, points: points, settler: settler}
}

// CreateReferral links the referred account to the holder of code, then
// credits the referrer with the one-time bonus and the permanent rate uplift.
// The two sides are two sequential single-account transactions: a crash
// between them leaves the referred account linked without a referrer bonus,
// and the referred_by guard makes a retry return ErrAlreadyReferred rather
// than double-credit.
func (s *Service) CreateReferral(ctx context.Context, code string, referred *models.Account, now time.Time) (*models.Referral, error) {
	if referred.ReferredBy != nil {
		return nil, ErrAlreadyReferred
	}
	referrer, err := s.accounts.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownReferralCode
		}
		return nil, err
	}

	ref := &models.Referral{
		ID:          uuid.New(),
		ReferrerID:  referrer.ID,
		ReferredID:  referred.ID,
		BonusPoints: models.ReferralBonusPoints,
		CreatedAt:   now,
	}

	// Transaction 1: mark the referred account and record the pair.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	if _, err := s.accounts.GetByIDForUpdate(ctx, tx, referred.ID); err != nil {
		return nil, err
	}
	if err := s.accounts.SetReferredBy(ctx, tx, referred.ID, code); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTx(ctx, tx, ref); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	referred.ReferredBy = &code

	// Transaction 2: credit the referrer.
	tx2, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx2.Rollback(ctx)
	locked, err := s.accounts.GetByIDForUpdate(ctx, tx2, referrer.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.settler.SettleLocked(ctx, tx2, locked, now); err != nil {
		return nil, err
	}
	newBalance, err := s.accounts.AddPoints(ctx, tx2, referrer.ID, ref.BonusPoints)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.SetLevel(ctx, tx2, referrer.ID, models.LevelForPoints(newBalance)); err != nil {
		return nil, err
	}
	newRate := locked.BaseRate * models.ReferralRatePercent / 100
	if err := s.accounts.SetBaseRate(ctx, tx2, referrer.ID, newRate); err != nil {
		return nil, err
	}
	if err := s.points.CreateTx(ctx, tx2, &models.PointEntry{
		ID:           uuid.New(),
		AccountID:    referrer.ID,
		ReferenceID:  &ref.ID,
		EntryType:    models.PointEntryReferralBonus,
		Amount:       ref.BonusPoints,
		BalanceAfter: &newBalance,
	}); err != nil {
		return nil, err
	}
	if err := tx2.Commit(ctx); err != nil {
		return nil, err
	}
	return ref, nil
}
