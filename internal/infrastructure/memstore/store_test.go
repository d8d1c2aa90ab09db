package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"git.appkode.ru/pub/go/failure"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
	"flashdeal/internal/infrastructure/memstore"
	"flashdeal/pkg/errcodes"
)

func acceptAll(entity.Deal, time.Time) error { return nil }

func decrement(deal *entity.Deal) {
	deal.InventoryRemaining--
	if deal.InventoryRemaining == 0 {
		deal.Valid = false
	}
}

func TestCreateAndGet(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	store := memstore.NewDealStore(clock)

	spec := entity.DealSpec{
		ProductID:          "p1",
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.2,
		InventoryRemaining: 7,
	}

	created, err := store.Create(ctx, spec)
	rq.NoError(err)
	rq.NotEmpty(created.ID)
	rq.Equal(clock.Now(), created.StartTime)
	rq.True(created.Valid)
	rq.Empty(created.Redeemers)

	got, err := store.Get(ctx, created.ID)
	rq.NoError(err)
	rq.Equal(created, got)

	_, err = store.Get(ctx, "missing")
	rq.Error(err)
	rq.True(domain.IsNotFound(err))
}

func TestGetReturnsCopy(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	store := memstore.NewDealStore(clock)

	created, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            clock.Now().Add(time.Hour),
		InventoryRemaining: 1,
	})
	rq.NoError(err)

	got, err := store.Get(ctx, created.ID)
	rq.NoError(err)

	// Mutating the returned value must not leak into the store.
	got.InventoryRemaining = 0
	got.Redeemers["intruder"] = struct{}{}

	fresh, err := store.Get(ctx, created.ID)
	rq.NoError(err)
	rq.EqualValues(1, fresh.InventoryRemaining)
	rq.Empty(fresh.Redeemers)
}

func TestMutateIfValid(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	store := memstore.NewDealStore(clock)

	created, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            clock.Now().Add(time.Hour),
		InventoryRemaining: 2,
	})
	rq.NoError(err)

	mutated, err := store.MutateIfValid(ctx, created.ID, acceptAll, decrement)
	rq.NoError(err)
	rq.EqualValues(1, mutated.InventoryRemaining)
	rq.True(mutated.Valid)

	mutated, err = store.MutateIfValid(ctx, created.ID, acceptAll, decrement)
	rq.NoError(err)
	rq.EqualValues(0, mutated.InventoryRemaining)
	rq.False(mutated.Valid)
}

func TestMutateIfValidRejection(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	store := memstore.NewDealStore(clock)

	created, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            clock.Now().Add(time.Hour),
		InventoryRemaining: 2,
	})
	rq.NoError(err)

	reject := func(deal entity.Deal, _ time.Time) error {
		return domain.NewDealExhaustedError(deal.ID)
	}

	_, err = store.MutateIfValid(ctx, created.ID, reject, decrement)
	rq.Error(err)
	rq.Equal(errcodes.DealExhausted, failure.Code(err))

	// A rejected check leaves the record untouched.
	got, err := store.Get(ctx, created.ID)
	rq.NoError(err)
	rq.EqualValues(2, got.InventoryRemaining)
}

func TestMutateIfValidExpiredAtCreation(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	store := memstore.NewDealStore(clock)

	// The store itself accepts any end time; a record born expired is
	// rejected by the wall-clock check on first mutation, no sweep needed.
	created, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            clock.Now().Add(-time.Second),
		InventoryRemaining: 5,
	})
	rq.NoError(err)
	rq.True(created.Valid)

	check := func(deal entity.Deal, now time.Time) error {
		if deal.Expired(now) {
			return domain.NewDealExpiredError(deal.ID)
		}
		return nil
	}

	_, err = store.MutateIfValid(ctx, created.ID, check, decrement)
	rq.Error(err)
	rq.Equal(errcodes.DealExpired, failure.Code(err))
}

func TestMutateIfValidUnknownDeal(t *testing.T) {
	rq := require.New(t)

	store := memstore.NewDealStore(clockwork.NewFakeClock())

	_, err := store.MutateIfValid(context.Background(), "missing", acceptAll, decrement)
	rq.Error(err)
	rq.True(domain.IsNotFound(err))
}

func TestMutateIfValidConcurrent(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	store := memstore.NewDealStore(clock)

	const (
		inventory = 5
		attempts  = 50
	)

	created, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            clock.Now().Add(time.Hour),
		InventoryRemaining: inventory,
	})
	rq.NoError(err)

	admit := func(deal entity.Deal, _ time.Time) error {
		if !deal.Valid || deal.InventoryRemaining <= 0 {
			return domain.NewDealExhaustedError(deal.ID)
		}
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.MutateIfValid(ctx, created.ID, admit, decrement)
		}()
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	rq.Equal(inventory, succeeded)

	got, err := store.Get(ctx, created.ID)
	rq.NoError(err)
	rq.EqualValues(0, got.InventoryRemaining)
	rq.False(got.Valid)
}

func TestMutateIfValidBusy(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	store := memstore.NewDealStore(clockwork.NewRealClock()).
		WithLockTimeout(20 * time.Millisecond)

	created, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            time.Now().Add(time.Hour),
		InventoryRemaining: 5,
	})
	rq.NoError(err)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := store.MutateIfValid(ctx, created.ID, acceptAll, func(deal *entity.Deal) {
			close(holding)
			<-release
			deal.InventoryRemaining--
		})
		done <- err
	}()

	<-holding

	_, err = store.MutateIfValid(ctx, created.ID, acceptAll, decrement)
	rq.Error(err)
	rq.Equal(errcodes.DealBusy, failure.Code(err))

	close(release)
	rq.NoError(<-done)
}

func TestDeactivateExpired(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	store := memstore.NewDealStore(clock)

	expiring, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            clock.Now().Add(time.Minute),
		InventoryRemaining: 3,
	})
	rq.NoError(err)

	longLived, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            clock.Now().Add(time.Hour),
		InventoryRemaining: 3,
	})
	rq.NoError(err)

	clock.Advance(2 * time.Minute)

	count, err := store.DeactivateExpired(ctx, clock.Now())
	rq.NoError(err)
	rq.Equal(1, count)

	retired, err := store.Get(ctx, expiring.ID)
	rq.NoError(err)
	rq.False(retired.Valid)

	alive, err := store.Get(ctx, longLived.ID)
	rq.NoError(err)
	rq.True(alive.Valid)

	// Already-retired deals are not counted again.
	count, err = store.DeactivateExpired(ctx, clock.Now())
	rq.NoError(err)
	rq.Equal(0, count)
}

func TestDeactivateExpiredSkipsHeldDeals(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	store := memstore.NewDealStore(clockwork.NewRealClock()).
		WithLockTimeout(20 * time.Millisecond)

	created, err := store.Create(ctx, entity.DealSpec{
		ProductID:          "p1",
		EndTime:            time.Now().Add(10 * time.Millisecond),
		InventoryRemaining: 3,
	})
	rq.NoError(err)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := store.MutateIfValid(ctx, created.ID, acceptAll, func(deal *entity.Deal) {
			close(holding)
			<-release
			deal.InventoryRemaining--
		})
		done <- err
	}()

	<-holding

	count, err := store.DeactivateExpired(ctx, time.Now().Add(time.Hour))
	rq.NoError(err)
	rq.Equal(0, count)

	close(release)
	rq.NoError(<-done)

	count, err = store.DeactivateExpired(ctx, time.Now().Add(time.Hour))
	rq.NoError(err)
	rq.Equal(1, count)
}

func TestUserStore(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	store := memstore.NewUserStore()

	created, err := store.Create(ctx, entity.User{Name: "alice"})
	rq.NoError(err)
	rq.NotEmpty(created.ID)

	got, err := store.Get(ctx, created.ID)
	rq.NoError(err)
	rq.Equal(created, got)

	_, err = store.Get(ctx, "missing")
	rq.Error(err)
	rq.True(domain.IsNotFound(err))
}

func TestProductStore(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	store := memstore.NewProductStore()

	created, err := store.Create(ctx, entity.Product{Name: "headphones"})
	rq.NoError(err)
	rq.NotEmpty(created.ID)

	got, err := store.Get(ctx, created.ID)
	rq.NoError(err)
	rq.Equal(created, got)

	_, err = store.Get(ctx, "missing")
	rq.Error(err)
	rq.True(domain.IsNotFound(err))
}
