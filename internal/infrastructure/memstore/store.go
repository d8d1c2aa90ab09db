package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
)

const defaultLockTimeout = 500 * time.Millisecond

// DealStore keeps deal records in memory. Every mutation of a deal goes
// through its own single-slot lock, so an admissibility check and the write
// it guards are one indivisible step. Unrelated deals never contend.
type DealStore struct {
	clock       clockwork.Clock
	lockTimeout time.Duration

	mu    sync.RWMutex
	deals map[string]*dealRecord
}

// dealRecord owns one deal. The slot channel has capacity one and is the
// deal's mutual-exclusion domain; deal is replaced wholesale under mu on
// commit, never field by field.
type dealRecord struct {
	slot chan struct{}
	deal entity.Deal
}

func NewDealStore(clock clockwork.Clock) *DealStore {
	return &DealStore{
		clock:       clock,
		lockTimeout: defaultLockTimeout,
		deals:       make(map[string]*dealRecord),
	}
}

func (s *DealStore) WithLockTimeout(timeout time.Duration) *DealStore {
	s.lockTimeout = timeout
	return s
}

func (s *DealStore) Create(_ context.Context, spec entity.DealSpec) (entity.Deal, error) {
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

	s.mu.Lock()
	s.deals[deal.ID] = &dealRecord{
		slot: make(chan struct{}, 1),
		deal: deal,
	}
	s.mu.Unlock()

	return deal.Clone(), nil
}

func (s *DealStore) Get(_ context.Context, dealID string) (entity.Deal, error) {
	s.mu.RLock()
	record, ok := s.deals[dealID]
	if !ok {
		s.mu.RUnlock()
		return entity.Deal{}, domain.NewDealNotFoundError(dealID)
	}

	deal := record.deal.Clone()
	s.mu.RUnlock()

	return deal, nil
}

// MutateIfValid locks the deal, evaluates check against the current record
// and the current wall clock, applies mutate on success and commits the new
// state as one unit. A check rejection leaves the record untouched.
func (s *DealStore) MutateIfValid(
	ctx context.Context,
	dealID string,
	check func(deal entity.Deal, now time.Time) error,
	mutate func(deal *entity.Deal),
) (entity.Deal, error) {
	s.mu.RLock()
	record, ok := s.deals[dealID]
	s.mu.RUnlock()

	if !ok {
		return entity.Deal{}, domain.NewDealNotFoundError(dealID)
	}

	if err := s.acquire(ctx, dealID, record); err != nil {
		return entity.Deal{}, err
	}
	defer s.release(record)

	s.mu.RLock()
	next := record.deal.Clone()
	s.mu.RUnlock()

	if err := check(next, s.clock.Now()); err != nil {
		return entity.Deal{}, err
	}

	if err := ctx.Err(); err != nil {
		return entity.Deal{}, fmt.Errorf("mutation aborted: %w", err)
	}

	mutate(&next)

	s.mu.Lock()
	record.deal = next
	s.mu.Unlock()

	return next.Clone(), nil
}

// DeactivateExpired retires every valid deal whose window closed before now
// and returns the number retired. Deals whose slot is held past the bounded
// wait are skipped; the next sweep picks them up.
func (s *DealStore) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	records := make(map[string]*dealRecord, len(s.deals))
	for dealID, record := range s.deals {
		records[dealID] = record
	}
	s.mu.RUnlock()

	var count int

	for dealID, record := range records {
		if err := ctx.Err(); err != nil {
			return count, fmt.Errorf("sweep aborted: %w", err)
		}

		if err := s.acquire(ctx, dealID, record); err != nil {
			continue
		}

		s.mu.RLock()
		expired := record.deal.Valid && record.deal.EndTime.Before(now)
		s.mu.RUnlock()

		if expired {
			s.mu.Lock()
			next := record.deal.Clone()
			next.Valid = false
			record.deal = next
			s.mu.Unlock()

			count++
		}

		s.release(record)
	}

	return count, nil
}

func (s *DealStore) acquire(ctx context.Context, dealID string, record *dealRecord) error {
	select {
	case record.slot <- struct{}{}:
		return nil
	default:
	}

	timeout := s.clock.After(s.lockTimeout)

	select {
	case record.slot <- struct{}{}:
		return nil
	case <-timeout:
		return domain.NewBusyError(dealID)
	case <-ctx.Done():
		return fmt.Errorf("lock wait aborted: %w", ctx.Err())
	}
}

func (s *DealStore) release(record *dealRecord) {
	<-record.slot
}
