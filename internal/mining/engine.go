package mining

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tapmine/backend/internal/boosts"
	"github.com/tapmine/backend/internal/models"
)

// SettlementUnit is the accrual granularity. Rewards are credited per whole
// unit boundary crossed since the last settlement, never pro-rated.
const SettlementUnit = time.Hour

// UnitsElapsed counts whole settlement units between lastSettled and now.
// Returns 0 when now precedes lastSettled.
func UnitsElapsed(lastSettled, now time.Time) int {
	if !now.After(lastSettled) {
		return 0
	}
	return int(now.Sub(lastSettled) / SettlementUnit)
}

// EffectiveRate combines the base rate with a composed boost multiplier,
// flooring the product.
func EffectiveRate(baseRate, multiplierPermille int) int {
	return baseRate * multiplierPermille / models.BaseMultiplierPermille
}

// Settle applies pending accrual to acc in place and returns the points
// credited. The checkpoint advances by whole units only, so partial units
// keep accruing toward the next boundary. One effective rate covers the
// whole span: boosts bought or expired mid-span are not pro-rated.
func Settle(acc *models.Account, instances []*models.BoostInstance, now time.Time) int {
	units := UnitsElapsed(acc.LastSettledAt, now)
	if units <= 0 {
		return 0
	}
	rate := EffectiveRate(acc.BaseRate, boosts.EffectiveMultiplierPermille(instances, now))
	credited := units * rate
	acc.Points += credited
	acc.Level = models.LevelForPoints(acc.Points)
	acc.LastSettledAt = acc.LastSettledAt.Add(time.Duration(units) * SettlementUnit)
	return credited
}

// AccountRepo is the minimal account repository interface for settlement.
type AccountRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	UpdateSettlement(ctx context.Context, tx pgx.Tx, a *models.Account) error
}

// BoostRepo resolves the instances active at a given instant.
type BoostRepo interface {
	ActiveForAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, at time.Time) ([]*models.BoostInstance, error)
}

// PointRepo records ledger entries for credited rewards.
type PointRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.PointEntry) error
}

// Engine performs settlement as an atomic read-modify-write against the
// account row. Callers own the transaction; the account row is locked
// (SELECT FOR UPDATE) so one mutation is in flight per account at a time.
type Engine struct {
	accounts AccountRepo
	boosts   BoostRepo
	points   PointRepo
}

func NewEngine(accounts AccountRepo, boostRepo BoostRepo, points PointRepo) *Engine {
	return &Engine{accounts: accounts, boosts: boostRepo, points: points}
}

// SettleTx settles the account inside the given transaction and returns the
// updated account and points credited. Calling it again before another unit
// boundary is crossed is a no-op.
func (e *Engine) SettleTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, now time.Time) (*models.Account, int, error) {
	acc, err := e.accounts.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, 0, err
	}
	return e.settleLocked(ctx, tx, acc, now)
}

// SettleLocked settles an account whose row the caller already holds locked
// in tx. Used by write paths that must settle before changing the rate.
func (e *Engine) SettleLocked(ctx context.Context, tx pgx.Tx, acc *models.Account, now time.Time) (int, error) {
	_, credited, err := e.settleLocked(ctx, tx, acc, now)
	return credited, err
}

func (e *Engine) settleLocked(ctx context.Context, tx pgx.Tx, acc *models.Account, now time.Time) (*models.Account, int, error) {
	if UnitsElapsed(acc.LastSettledAt, now) <= 0 {
		return acc, 0, nil
	}
	instances, err := e.boosts.ActiveForAccountTx(ctx, tx, acc.ID, now)
	if err != nil {
		return nil, 0, err
	}
	credited := Settle(acc, instances, now)
	// The checkpoint advances even when the effective rate is zero, so the
	// span is never re-counted.
	if err := e.accounts.UpdateSettlement(ctx, tx, acc); err != nil {
		return nil, 0, err
	}
	if credited > 0 {
		entry := &models.PointEntry{
			ID:           uuid.New(),
			AccountID:    acc.ID,
			EntryType:    models.PointEntryMiningReward,
			Amount:       credited,
			BalanceAfter: &acc.Points,
		}
		if err := e.points.CreateTx(ctx, tx, entry); err != nil {
			return nil, 0, err
		}
	}
	return acc, credited, nil
}
