package boosts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tapmine/backend/internal/models"
)

// ErrInsufficientPoints is returned when the balance is too low for the
// requested purchase. The balance is left unchanged.
var ErrInsufficientPoints = errors.New("insufficient points")

// ErrUnknownBoost is returned when the definition id is not in the catalog.
var ErrUnknownBoost = errors.New("unknown boost definition")

// AccountRepo is the minimal account repository interface for purchases.
type AccountRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	DeductPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	IncrementBoostCount(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// Repo is the boost repository interface.
type Repo interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*models.BoostDefinition, error)
	CreateInstanceTx(ctx context.Context, tx pgx.Tx, inst *models.BoostInstance) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// PointRepo records the purchase debit in the point ledger.
type PointRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.PointEntry) error
}

// Settler settles pending accrual for a locked account row. Purchase settles
// before debiting so the new multiplier never applies to already-elapsed time.
type Settler interface {
	SettleLocked(ctx context.Context, tx pgx.Tx, acc *models.Account, now time.Time) (int, error)
}

// Service is the boost ledger: purchases, the effective-multiplier view, and
// the expiry sweep.
type Service struct {
	accounts AccountRepo
	repo     Repo
	points   PointRepo
	settler  Settler
}

func NewService(accounts AccountRepo, repo Repo, points PointRepo, settler Settler) *Service {
	return &Service{accounts: accounts, repo: repo, points: points, settler: settler}
}

// Purchase debits the definition price and creates an active instance running
// from now for the definition's duration. Runs inside the caller's
// transaction; either everything applies or nothing does.
func (s *Service) Purchase(ctx context.Context, tx pgx.Tx, accountID, boostID uuid.UUID, now time.Time) (*models.BoostInstance, *models.Account, error) {
	def, err := s.repo.GetDefinition(ctx, boostID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrUnknownBoost
		}
		return nil, nil, err
	}

	acc, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, nil, err
	}

	// Settle first: the rate change must not reach back over the elapsed span.
	if _, err := s.settler.SettleLocked(ctx, tx, acc, now); err != nil {
		return nil, nil, err
	}

	if acc.Points < def.Price {
		return nil, nil, ErrInsufficientPoints
	}
	newBalance, err := s.accounts.DeductPoints(ctx, tx, accountID, def.Price)
	if err != nil {
		return nil, nil, err
	}
	acc.Points = newBalance
	if err := s.accounts.IncrementBoostCount(ctx, tx, accountID); err != nil {
		return nil, nil, err
	}
	acc.BoostPurchaseCount++

	inst := &models.BoostInstance{
		ID:         uuid.New(),
		AccountID:  accountID,
		BoostID:    def.ID,
		StartsAt:   now,
		EndsAt:     now.Add(time.Duration(def.DurationHours) * time.Hour),
		Active:     true,
		Definition: def,
	}
	if err := s.repo.CreateInstanceTx(ctx, tx, inst); err != nil {
		return nil, nil, err
	}

	debit := -def.Price
	entry := &models.PointEntry{
		ID:           uuid.New(),
		AccountID:    accountID,
		ReferenceID:  &inst.ID,
		EntryType:    models.PointEntryBoostPurchase,
		Amount:       debit,
		BalanceAfter: &acc.Points,
	}
	if err := s.points.CreateTx(ctx, tx, entry); err != nil {
		return nil, nil, err
	}
	return inst, acc, nil
}

// SweepExpired flips active=false on every instance whose end instant has
// passed and returns the count flipped. Idempotent: an already-inactive
// instance is untouched, so a second sweep with no time passing reports 0.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeactivateExpired(ctx, now)
}
