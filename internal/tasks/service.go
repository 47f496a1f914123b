package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tapmine/backend/internal/models"
)

// ErrUnknownTask is returned when the task id has no catalog definition.
var ErrUnknownTask = errors.New("unknown task")

// AccountRepo is the minimal account repository interface for task rewards.
type AccountRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	AddPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	SetLevel(ctx context.Context, tx pgx.Tx, id uuid.UUID, level int) error
	IncrementCompletedTaskCount(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// Repo is the task repository interface.
type Repo interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*models.TaskDefinition, error)
	GetProgressForUpdate(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID) (*models.TaskProgress, error)
	CreateProgressTx(ctx context.Context, tx pgx.Tx, p *models.TaskProgress) error
	UpdateProgressTx(ctx context.Context, tx pgx.Tx, p *models.TaskProgress) error
}

// PointRepo records reward credits in the point ledger.
type PointRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.PointEntry) error
}

// Service is the per-account task progress tracker. Progress values are
// absolute, monotonically non-decreasing; the completion reward is credited
// exactly once, at the false->true transition.
type Service struct {
	accounts AccountRepo
	repo     Repo
	points   PointRepo
}

func NewService(accounts AccountRepo, repo Repo, points PointRepo) *Service {
	return &Service{accounts: accounts, repo: repo, points: points}
}

// AdvanceProgress records an absolute progress value and, if the required
// amount is reached for the first time, credits the reward. A value below the
// stored progress is clamped (stored progress never decreases). Returns the
// updated progress row and the points awarded (0 unless this call completed
// the task). Runs inside the caller's transaction.
func (s *Service) AdvanceProgress(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID, amount int, now time.Time) (*models.TaskProgress, int, error) {
	def, err := s.repo.GetDefinition(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrUnknownTask
		}
		return nil, 0, err
	}
	if amount < 0 {
		amount = 0
	}

	progress, err := s.repo.GetProgressForUpdate(ctx, tx, accountID, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		progress = &models.TaskProgress{
			ID:        uuid.New(),
			AccountID: accountID,
			TaskID:    taskID,
			CreatedAt: now,
		}
		if err := s.repo.CreateProgressTx(ctx, tx, progress); err != nil {
			return nil, 0, err
		}
	} else if err != nil {
		return nil, 0, err
	}
	progress.Definition = def

	if amount > progress.Progress {
		progress.Progress = amount
	}

	// Completed is terminal. The check runs before any crediting so a
	// re-submission at or above the threshold can never pay twice.
	if progress.Completed {
		if err := s.repo.UpdateProgressTx(ctx, tx, progress); err != nil {
			return nil, 0, err
		}
		return progress, 0, nil
	}

	awarded := 0
	if progress.Progress >= def.RequiredAmount {
		progress.Completed = true
		completedAt := now
		progress.CompletedAt = &completedAt
		awarded = def.RewardPoints
		if err := s.credit(ctx, tx, accountID, taskID, awarded); err != nil {
			return nil, 0, err
		}
	}
	if err := s.repo.UpdateProgressTx(ctx, tx, progress); err != nil {
		return nil, 0, err
	}
	return progress, awarded, nil
}

// Complete advances progress straight to the required amount, crediting the
// reward if the task was not already completed.
func (s *Service) Complete(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID, now time.Time) (*models.TaskProgress, int, error) {
	def, err := s.repo.GetDefinition(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrUnknownTask
		}
		return nil, 0, err
	}
	return s.AdvanceProgress(ctx, tx, accountID, taskID, def.RequiredAmount, now)
}

func (s *Service) credit(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID, amount int) error {
	if _, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID); err != nil {
		return err
	}
	newBalance, err := s.accounts.AddPoints(ctx, tx, accountID, amount)
	if err != nil {
		return err
	}
	if err := s.accounts.SetLevel(ctx, tx, accountID, models.LevelForPoints(newBalance)); err != nil {
		return err
	}
	if err := s.accounts.IncrementCompletedTaskCount(ctx, tx, accountID); err != nil {
		return err
	}
	return s.points.CreateTx(ctx, tx, &models.PointEntry{
		ID:           uuid.New(),
		AccountID:    accountID,
		ReferenceID:  &taskID,
		EntryType:    models.PointEntryTaskReward,
		Amount:       amount,
		BalanceAfter: &newBalance,
	})
}
