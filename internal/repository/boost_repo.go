package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapmine/backend/internal/models"
)

const boostDefColumns = `id, name, description, multiplier_permille, duration_hours, price, active, icon_name, color_class, popular`

// instanceJoin selects instances joined with their definitions so callers
// never see an unresolved BoostInstance.
const instanceJoin = `
	SELECT bi.id, bi.account_id, bi.boost_id, bi.starts_at, bi.ends_at, bi.active,
	       bd.id, bd.name, bd.description, bd.multiplier_permille, bd.duration_hours, bd.price, bd.active, bd.icon_name, bd.color_class, bd.popular
	FROM boost_instances bi
	JOIN boost_definitions bd ON bd.id = bi.boost_id`

type BoostRepo struct {
	pool *pgxpool.Pool
}

func NewBoostRepo(pool *pgxpool.Pool) *BoostRepo {
	return &BoostRepo{pool: pool}
}

func scanDefinition(row pgx.Row) (*models.BoostDefinition, error) {
	var d models.BoostDefinition
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.MultiplierPermille, &d.DurationHours, &d.Price, &d.Active, &d.IconName, &d.ColorClass, &d.Popular)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *BoostRepo) GetDefinition(ctx context.Context, id uuid.UUID) (*models.BoostDefinition, error) {
	return scanDefinition(r.pool.QueryRow(ctx, `SELECT `+boostDefColumns+` FROM boost_definitions WHERE id = $1`, id))
}

func (r *BoostRepo) ListDefinitions(ctx context.Context) ([]*models.BoostDefinition, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+boostDefColumns+` FROM boost_definitions WHERE active ORDER BY price`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.BoostDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *BoostRepo) CreateInstanceTx(ctx context.Context, tx pgx.Tx, inst *models.BoostInstance) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO boost_instances (id, account_id, boost_id, starts_at, ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, inst.ID, inst.AccountID, inst.BoostID, inst.StartsAt, inst.EndsAt, inst.Active)
	return err
}

func scanInstances(rows pgx.Rows) ([]*models.BoostInstance, error) {
	defer rows.Close()
	var list []*models.BoostInstance
	for rows.Next() {
		var i models.BoostInstance
		var d models.BoostDefinition
		if err := rows.Scan(&i.ID, &i.AccountID, &i.BoostID, &i.StartsAt, &i.EndsAt, &i.Active,
			&d.ID, &d.Name, &d.Description, &d.MultiplierPermille, &d.DurationHours, &d.Price, &d.Active, &d.IconName, &d.ColorClass, &d.Popular); err != nil {
			return nil, err
		}
		i.Definition = &d
		list = append(list, &i)
	}
	return list, rows.Err()
}

// ActiveForAccountTx returns the instances contributing to the multiplier at
// the given instant. Filters on ends_at as well as the active flag so an
// expired-but-unswept instance never counts.
func (r *BoostRepo) ActiveForAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, at time.Time) ([]*models.BoostInstance, error) {
	rows, err := tx.Query(ctx, instanceJoin+`
		WHERE bi.account_id = $1 AND bi.active AND bi.starts_at <= $2 AND bi.ends_at > $2
		ORDER BY bi.starts_at
	`, accountID, at)
	if err != nil {
		return nil, err
	}
	return scanInstances(rows)
}

func (r *BoostRepo) ActiveForAccount(ctx context.Context, accountID uuid.UUID, at time.Time) ([]*models.BoostInstance, error) {
	rows, err := r.pool.Query(ctx, instanceJoin+`
		WHERE bi.account_id = $1 AND bi.active AND bi.starts_at <= $2 AND bi.ends_at > $2
		ORDER BY bi.starts_at
	`, accountID, at)
	if err != nil {
		return nil, err
	}
	return scanInstances(rows)
}

func (r *BoostRepo) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*models.BoostInstance, error) {
	rows, err := r.pool.Query(ctx, instanceJoin+`
		WHERE bi.account_id = $1
		ORDER BY bi.starts_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return scanInstances(rows)
}

// DeactivateExpired flips active=false on every instance past its end
// instant and reports how many rows changed. Safe to run repeatedly.
func (r *BoostRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE boost_instances SET active = false WHERE active AND ends_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
