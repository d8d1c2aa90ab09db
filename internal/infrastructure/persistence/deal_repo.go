package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
	"flashdeal/pkg/lox"
)

// pgLockNotAvailable is raised when lock_timeout expires while waiting for
// a row lock.
const pgLockNotAvailable = "55P03"

const defaultLockTimeout = 500 * time.Millisecond

// DealRepository is the postgres-backed deal store. Per-deal mutual
// exclusion comes from row locks: MutateIfValid holds the deal row
// FOR UPDATE for the whole check-mutate-commit sequence, bounded by
// lock_timeout.
type DealRepository struct {
	db          *sqlx.DB
	clock       clockwork.Clock
	lockTimeout time.Duration
}

func NewDealRepository(db *sqlx.DB, clock clockwork.Clock) *DealRepository {
	return &DealRepository{
		db:          db,
		clock:       clock,
		lockTimeout: defaultLockTimeout,
	}
}

func (r *DealRepository) WithLockTimeout(timeout time.Duration) *DealRepository {
	r.lockTimeout = timeout
	return r
}

func (r *DealRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.BeginTxx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w; rollback: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx.Commit: %w", err)
	}

	return nil
}

func (r *DealRepository) Create(ctx context.Context, spec entity.DealSpec) (entity.Deal, error) {
	deal := entity.Deal{
		ID:                 xid.New().String(),
		ProductID:          spec.ProductID,
		StartTime:          r.clock.Now(),
		EndTime:            spec.EndTime,
		DiscountRate:       spec.DiscountRate,
		InventoryRemaining: spec.InventoryRemaining,
		Valid:              true,
		Redeemers:          make(map[string]struct{}),
	}

	query := `
		INSERT INTO deals (id, product_id, start_time, end_time, discount_rate, inventory_remaining, valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := r.db.ExecContext(ctx, query,
		deal.ID, deal.ProductID, deal.StartTime, deal.EndTime,
		deal.DiscountRate, deal.InventoryRemaining, deal.Valid,
	); err != nil {
		return entity.Deal{}, fmt.Errorf("insert deal: %w", err)
	}

	return deal, nil
}

func (r *DealRepository) Get(ctx context.Context, dealID string) (entity.Deal, error) {
	query := `
		SELECT id, product_id, start_time, end_time, discount_rate, inventory_remaining, valid
		FROM deals
		WHERE id = $1`

	var schema dealSchema
	if err := r.db.GetContext(ctx, &schema, query, dealID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Deal{}, domain.NewDealNotFoundError(dealID)
		}
		return entity.Deal{}, fmt.Errorf("get deal: %w", err)
	}

	redeemers, err := r.redeemers(ctx, r.db, dealID)
	if err != nil {
		return entity.Deal{}, err
	}

	return schema.toDomain(redeemers), nil
}

func (r *DealRepository) MutateIfValid(
	ctx context.Context,
	dealID string,
	check func(deal entity.Deal, now time.Time) error,
	mutate func(deal *entity.Deal),
) (entity.Deal, error) {
	var next entity.Deal

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, timeout); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}

		query := `
			SELECT id, product_id, start_time, end_time, discount_rate, inventory_remaining, valid
			FROM deals
			WHERE id = $1
			FOR UPDATE`

		var schema dealSchema
		if err := tx.GetContext(ctx, &schema, query, dealID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewDealNotFoundError(dealID)
			}

			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
				return domain.NewBusyError(dealID)
			}

			return fmt.Errorf("lock deal: %w", err)
		}

		redeemers, err := r.redeemers(ctx, tx, dealID)
		if err != nil {
			return err
		}

		next = schema.toDomain(redeemers)

		if err := check(next, r.clock.Now()); err != nil {
			return err
		}

		mutate(&next)

		update := `
			UPDATE deals
			SET inventory_remaining = $1, valid = $2
			WHERE id = $3`

		if _, err := tx.ExecContext(ctx, update, next.InventoryRemaining, next.Valid, dealID); err != nil {
			return fmt.Errorf("update deal: %w", err)
		}

		insert := `
			INSERT INTO deal_redeemers (deal_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`

		for userID := range next.Redeemers {
			if _, err := tx.ExecContext(ctx, insert, dealID, userID); err != nil {
				return fmt.Errorf("insert redeemer: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return entity.Deal{}, err
	}

	return next, nil
}

func (r *DealRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE deals
		SET valid = false
		WHERE valid = true AND end_time < $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired deals: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(count), nil
}

func (r *DealRepository) redeemers(ctx context.Context, q sqlx.QueryerContext, dealID string) ([]string, error) {
	query := `SELECT deal_id, user_id FROM deal_redeemers WHERE deal_id = $1`

	type redeemerSchema struct {
		DealID string `db:"deal_id"`
		UserID string `db:"user_id"`
	}

	var schemas []redeemerSchema
	if err := sqlx.SelectContext(ctx, q, &schemas, query, dealID); err != nil {
		return nil, fmt.Errorf("select redeemers: %w", err)
	}

	return lox.Map(schemas, func(s redeemerSchema) string { return s.UserID }), nil
}
