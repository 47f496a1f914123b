package accounts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tapmine/backend/internal/boosts"
	"github.com/tapmine/backend/internal/mining"
	"github.com/tapmine/backend/internal/models"
	"github.com/tapmine/backend/internal/referrals"
)

// Identity is the chat-platform user payload an account is created from.
type Identity struct {
	TelegramID string
	FirstName  string
	LastName   string
	Username   string
	PhotoURL   string
}

// View is the account representation returned to clients: the account plus
// fields derived at read time.
type View struct {
	models.Account
	ReferralCount      int                     `json:"referral_count"`
	MultiplierPermille int                     `json:"multiplier_permille"`
	EffectiveRate      int                     `json:"effective_rate"`
	ActiveBoosts       []*models.BoostInstance `json:"active_boosts"`
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountRepo is the minimal account repository interface for account creation.
type AccountRepo interface {
	GetByTelegramID(ctx context.Context, telegramID string) (*models.Account, error)
	Create(ctx context.Context, a *models.Account) error
}

// BoostRepo resolves the instances active at a given instant for the view.
type BoostRepo interface {
	ActiveForAccount(ctx context.Context, accountID uuid.UUID, at time.Time) ([]*models.BoostInstance, error)
}

// ReferralRepo counts an account's referrals for the view.
type ReferralRepo interface {
	CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int, error)
}

// Settler credits pending accrual before a view is built.
type Settler interface {
	SettleTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, now time.Time) (*models.Account, int, error)
}

// ReferralCreator links a freshly created account to its referrer.
type ReferralCreator interface {
	CreateReferral(ctx context.Context, code string, referred *models.Account, now time.Time) (*models.Referral, error)
}

type Service struct {
	pool      TxBeginner
	accounts  AccountRepo
	boosts    BoostRepo
	referrals ReferralRepo
	engine    Settler
	refSvc    ReferralCreator
	log       *slog.Logger
}

func NewService(pool TxBeginner, accountRepo AccountRepo, boostRepo BoostRepo, referralRepo ReferralRepo, engine Settler, refSvc ReferralCreator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{pool: pool, accounts: accountRepo, boosts: boostRepo, referrals: referralRepo, engine: engine, refSvc: refSvc, log: log}
}

// GetOrCreate resolves the account for a verified identity, creating it on
// first contact. A referral code supplied at creation links the new account
// to its referrer; a bad code is logged and ignored so account creation never
// fails on it.
func (s *Service) GetOrCreate(ctx context.Context, ident Identity, referralCode string, now time.Time) (*models.Account, bool, error) {
	acc, err := s.accounts.GetByTelegramID(ctx, ident.TelegramID)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	acc = &models.Account{
		ID:            uuid.New(),
		TelegramID:    ident.TelegramID,
		FirstName:     ident.FirstName,
		LastName:      ident.LastName,
		Username:      ident.Username,
		PhotoURL:      ident.PhotoURL,
		Level:         1,
		Points:        models.DefaultPoints,
		BaseRate:      models.DefaultBaseRate,
		LastSettledAt: now,
	}
	for attempt := 0; ; attempt++ {
		acc.ReferralCode = newReferralCode()
		err = s.accounts.Create(ctx, acc)
		if err == nil {
			break
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Concurrent create for the same identity wins; fetch it.
			if existing, getErr := s.accounts.GetByTelegramID(ctx, ident.TelegramID); getErr == nil {
				return existing, false, nil
			}
			// Otherwise the referral code collided; pick another.
			if attempt < 3 {
				continue
			}
		}
		return nil, false, err
	}

	if referralCode != "" {
		if _, err := s.refSvc.CreateReferral(ctx, referralCode, acc, now); err != nil {
			if errors.Is(err, referrals.ErrUnknownReferralCode) || errors.Is(err, referrals.ErrAlreadyReferred) {
				s.log.Warn("referral not applied", "code", referralCode, "error", err)
			} else {
				return nil, false, err
			}
		}
	}
	return acc, true, nil
}

// Get returns the settled view for an account. Reading is the settlement
// trigger: pending accrual is credited before the view is built.
func (s *Service) Get(ctx context.Context, accountID uuid.UUID, now time.Time) (*View, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	acc, _, err := s.engine.SettleTx(ctx, tx, accountID, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.buildView(ctx, acc, now)
}

func (s *Service) buildView(ctx context.Context, acc *models.Account, now time.Time) (*View, error) {
	active, err := s.boosts.ActiveForAccount(ctx, acc.ID, now)
	if err != nil {
		return nil, err
	}
	refCount, err := s.referrals.CountByReferrer(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	multiplier := boosts.EffectiveMultiplierPermille(active, now)
	return &View{
		Account:            *acc,
		ReferralCount:      refCount,
		MultiplierPermille: multiplier,
		EffectiveRate:      mining.EffectiveRate(acc.BaseRate, multiplier),
		ActiveBoosts:       active,
	}, nil
}

// newReferralCode returns a short opaque code for referral links.
func newReferralCode() string {
	return uuid.New().String()[:8]
}
