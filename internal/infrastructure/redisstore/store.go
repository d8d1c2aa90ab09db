package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
)

const dealIndexKey = "deals"

// DealStore keeps deal records in redis. Mutations are optimistic: the deal
// keys are WATCHed, the check runs against the loaded snapshot and the write
// commits in a transaction pipeline. A concurrent writer invalidates the
// transaction and the call reports a conflict for the service to retry.
type DealStore struct {
	client *redis.Client
	clock  clockwork.Clock
}

func NewDealStore(client *redis.Client, clock clockwork.Clock) *DealStore {
	return &DealStore{
		client: client,
		clock:  clock,
	}
}

func dealKey(dealID string) string {
	return "deal:" + dealID
}

func redeemersKey(dealID string) string {
	return "deal:" + dealID + ":redeemers"
}

func (s *DealStore) Create(ctx context.Context, spec entity.DealSpec) (entity.Deal, error) {
	deal := entity.Deal{
		ID:                 xid.New().String(),
		ProductID:          spec.ProductID,
		StartTime:          s.clock.Now(),
		EndTime:            spec.EndTime,
		DiscountRate:       spec.DiscountRate,
		InventoryRemaining: spec.InventoryRemaining,
		Valid:              true,
		Redeemers:          make(map[string]struct{}),
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, dealKey(deal.ID), dealFields(deal))
		pipe.SAdd(ctx, dealIndexKey, deal.ID)
		return nil
	})
	if err != nil {
		return entity.Deal{}, fmt.Errorf("create deal: %w", err)
	}

	return deal, nil
}

func (s *DealStore) Get(ctx context.Context, dealID string) (entity.Deal, error) {
	fields, err := s.client.HGetAll(ctx, dealKey(dealID)).Result()
	if err != nil {
		return entity.Deal{}, fmt.Errorf("load deal: %w", err)
	}

	if len(fields) == 0 {
		return entity.Deal{}, domain.NewDealNotFoundError(dealID)
	}

	redeemers, err := s.client.SMembers(ctx, redeemersKey(dealID)).Result()
	if err != nil {
		return entity.Deal{}, fmt.Errorf("load redeemers: %w", err)
	}

	return parseDeal(dealID, fields, redeemers)
}

func (s *DealStore) MutateIfValid(
	ctx context.Context,
	dealID string,
	check func(deal entity.Deal, now time.Time) error,
	mutate func(deal *entity.Deal),
) (entity.Deal, error) {
	var next entity.Deal

	txn := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, dealKey(dealID)).Result()
		if err != nil {
			return fmt.Errorf("load deal: %w", err)
		}

		if len(fields) == 0 {
			return domain.NewDealNotFoundError(dealID)
		}

		redeemers, err := tx.SMembers(ctx, redeemersKey(dealID)).Result()
		if err != nil {
			return fmt.Errorf("load redeemers: %w", err)
		}

		next, err = parseDeal(dealID, fields, redeemers)
		if err != nil {
			return err
		}

		if err := check(next, s.clock.Now()); err != nil {
			return err
		}

		mutate(&next)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, dealKey(dealID), dealFields(next))
			for userID := range next.Redeemers {
				pipe.SAdd(ctx, redeemersKey(dealID), userID)
			}
			return nil
		})

		return err
	}

	err := s.client.Watch(ctx, txn, dealKey(dealID), redeemersKey(dealID))
	if errors.Is(err, redis.TxFailedErr) {
		return entity.Deal{}, domain.NewConflictError(dealID)
	}
	if err != nil {
		return entity.Deal{}, err
	}

	return next, nil
}

func (s *DealStore) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	dealIDs, err := s.client.SMembers(ctx, dealIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("load deal index: %w", err)
	}

	var count int

	for _, dealID := range dealIDs {
		if err := ctx.Err(); err != nil {
			return count, fmt.Errorf("sweep aborted: %w", err)
		}

		retired, err := s.deactivateOne(ctx, dealID, now)
		if err != nil {
			// Lost races are fine, the next sweep retries the deal.
			if domain.IsConflict(err) {
				continue
			}
			return count, err
		}

		if retired {
			count++
		}
	}

	return count, nil
}

func (s *DealStore) deactivateOne(ctx context.Context, dealID string, now time.Time) (bool, error) {
	var retired bool

	txn := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, dealKey(dealID)).Result()
		if err != nil {
			return fmt.Errorf("load deal: %w", err)
		}

		if len(fields) == 0 {
			return nil
		}

		deal, err := parseDeal(dealID, fields, nil)
		if err != nil {
			return err
		}

		if !deal.Valid || !deal.EndTime.Before(now) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, dealKey(dealID), "valid", "0")
			return nil
		})
		if err != nil {
			return err
		}

		retired = true

		return nil
	}

	err := s.client.Watch(ctx, txn, dealKey(dealID))
	if errors.Is(err, redis.TxFailedErr) {
		return false, domain.NewConflictError(dealID)
	}
	if err != nil {
		return false, err
	}

	return retired, nil
}

func dealFields(deal entity.Deal) map[string]any {
	valid := "0"
	if deal.Valid {
		valid = "1"
	}

	return map[string]any{
		"product_id":          deal.ProductID,
		"start_time":          strconv.FormatInt(deal.StartTime.UnixNano(), 10),
		"end_time":            strconv.FormatInt(deal.EndTime.UnixNano(), 10),
		"discount_rate":       strconv.FormatFloat(deal.DiscountRate, 'f', -1, 64),
		"inventory_remaining": strconv.FormatInt(deal.InventoryRemaining, 10),
		"valid":               valid,
	}
}

func parseDeal(dealID string, fields map[string]string, redeemers []string) (entity.Deal, error) {
	startTime, err := strconv.ParseInt(fields["start_time"], 10, 64)
	if err != nil {
		return entity.Deal{}, fmt.Errorf("parse start_time: %w", err)
	}

	endTime, err := strconv.ParseInt(fields["end_time"], 10, 64)
	if err != nil {
		return entity.Deal{}, fmt.Errorf("parse end_time: %w", err)
	}

	discountRate, err := strconv.ParseFloat(fields["discount_rate"], 64)
	if err != nil {
		return entity.Deal{}, fmt.Errorf("parse discount_rate: %w", err)
	}

	inventory, err := strconv.ParseInt(fields["inventory_remaining"], 10, 64)
	if err != nil {
		return entity.Deal{}, fmt.Errorf("parse inventory_remaining: %w", err)
	}

	deal := entity.Deal{
		ID:                 dealID,
		ProductID:          fields["product_id"],
		StartTime:          time.Unix(0, startTime),
		EndTime:            time.Unix(0, endTime),
		DiscountRate:       discountRate,
		InventoryRemaining: inventory,
		Valid:              fields["valid"] == "1",
		Redeemers:          make(map[string]struct{}, len(redeemers)),
	}

	for _, userID := range redeemers {
		deal.Redeemers[userID] = struct{}{}
	}

	return deal, nil
}
