package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"git.appkode.ru/pub/go/failure"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"flashdeal/internal/domain/entity"
	service "flashdeal/internal/domain/service/deal"
	"flashdeal/internal/infrastructure/memstore"
	"flashdeal/pkg/errcodes"
)

func newTestService(t *testing.T, clock clockwork.Clock) (*service.DealService, entity.User, entity.Product) {
	t.Helper()

	rq := require.New(t)
	ctx := context.Background()

	svc := service.NewDealService(
		memstore.NewDealStore(clock),
		memstore.NewUserStore(),
		memstore.NewProductStore(),
		clock,
	)

	user, err := svc.Register(ctx, entity.User{Name: "alice"})
	rq.NoError(err)

	product, err := svc.CreateProduct(ctx, entity.Product{Name: "headphones"})
	rq.NoError(err)

	return svc, user, product
}

func TestBuy(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, user, product := newTestService(t, clock)

	deal, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.25,
		InventoryRemaining: 3,
	})
	rq.NoError(err)
	rq.True(deal.Valid)
	rq.Equal(clock.Now(), deal.StartTime)

	bought, err := svc.Buy(ctx, user.ID, deal.ID)
	rq.NoError(err)
	rq.Equal(product, bought)

	updated, err := svc.GetDeal(ctx, deal.ID)
	rq.NoError(err)
	rq.EqualValues(2, updated.InventoryRemaining)
	rq.True(updated.Valid)
	rq.True(updated.HasRedeemer(user.ID))
}

func TestBuyAlreadyRedeemed(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, user, product := newTestService(t, clock)

	deal, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.5,
		InventoryRemaining: 10,
	})
	rq.NoError(err)

	_, err = svc.Buy(ctx, user.ID, deal.ID)
	rq.NoError(err)

	// Second attempt by the same user fails regardless of inventory.
	_, err = svc.Buy(ctx, user.ID, deal.ID)
	rq.Error(err)
	rq.Equal(errcodes.DealAlreadyRedeemed, failure.Code(err))

	updated, err := svc.GetDeal(ctx, deal.ID)
	rq.NoError(err)
	rq.EqualValues(9, updated.InventoryRemaining)
}

func TestBuyExpired(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, user, product := newTestService(t, clock)

	deal, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Second),
		DiscountRate:       0.1,
		InventoryRemaining: 5,
	})
	rq.NoError(err)

	// The window closes without any sweeper run; the wall-clock check at
	// mutation time must reject on its own.
	clock.Advance(2 * time.Second)

	_, err = svc.Buy(ctx, user.ID, deal.ID)
	rq.Error(err)
	rq.Equal(errcodes.DealExpired, failure.Code(err))

	stale, err := svc.GetDeal(ctx, deal.ID)
	rq.NoError(err)
	rq.True(stale.Valid)
	rq.EqualValues(5, stale.InventoryRemaining)
}

func TestBuyExhausted(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, userA, product := newTestService(t, clock)

	userB, err := svc.Register(ctx, entity.User{Name: "bob"})
	rq.NoError(err)
	userC, err := svc.Register(ctx, entity.User{Name: "carol"})
	rq.NoError(err)

	deal, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.3,
		InventoryRemaining: 2,
	})
	rq.NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i, userID := range []string{userA.ID, userB.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Buy(ctx, userID, deal.ID)
		}()
	}
	wg.Wait()

	rq.NoError(errs[0])
	rq.NoError(errs[1])

	updated, err := svc.GetDeal(ctx, deal.ID)
	rq.NoError(err)
	rq.EqualValues(0, updated.InventoryRemaining)
	rq.False(updated.Valid)

	_, err = svc.Buy(ctx, userC.ID, deal.ID)
	rq.Error(err)
	rq.Equal(errcodes.DealExhausted, failure.Code(err))
}

func TestBuyScarceInventory(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, userA, product := newTestService(t, clock)

	userB, err := svc.Register(ctx, entity.User{Name: "bob"})
	rq.NoError(err)

	deal, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.9,
		InventoryRemaining: 1,
	})
	rq.NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i, userID := range []string{userA.ID, userB.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Buy(ctx, userID, deal.ID)
		}()
	}
	wg.Wait()

	// Exactly one winner, the loser sees exhaustion.
	if errs[0] == nil {
		rq.Error(errs[1])
		rq.Equal(errcodes.DealExhausted, failure.Code(errs[1]))
	} else {
		rq.NoError(errs[1])
		rq.Equal(errcodes.DealExhausted, failure.Code(errs[0]))
	}

	updated, err := svc.GetDeal(ctx, deal.ID)
	rq.NoError(err)
	rq.EqualValues(0, updated.InventoryRemaining)
	rq.Len(updated.Redeemers, 1)
}

func TestBuyNoOversell(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, _, product := newTestService(t, clock)

	const (
		inventory = 10
		buyers    = 100
	)

	deal, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.15,
		InventoryRemaining: inventory,
	})
	rq.NoError(err)

	userIDs := make([]string, buyers)
	for i := range userIDs {
		user, err := svc.Register(ctx, entity.User{Name: "buyer"})
		rq.NoError(err)
		userIDs[i] = user.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)

	for i, userID := range userIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Buy(ctx, userID, deal.ID)
		}()
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		rq.Equal(errcodes.DealExhausted, failure.Code(err))
	}

	rq.Equal(inventory, succeeded)

	updated, err := svc.GetDeal(ctx, deal.ID)
	rq.NoError(err)
	rq.EqualValues(0, updated.InventoryRemaining)
	rq.False(updated.Valid)
	rq.Len(updated.Redeemers, inventory)
}

func TestBuyUnknownUser(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, _, product := newTestService(t, clock)

	deal, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.2,
		InventoryRemaining: 1,
	})
	rq.NoError(err)

	_, err = svc.Buy(ctx, "missing", deal.ID)
	rq.Error(err)
	rq.Equal(errcodes.UserNotFound, failure.Code(err))
}

func TestBuyUnknownDeal(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, user, _ := newTestService(t, clock)

	_, err := svc.Buy(ctx, user.ID, "missing")
	rq.Error(err)
	rq.Equal(errcodes.DealNotFound, failure.Code(err))
}

func TestZeroDiscountPolicy(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()

	t.Run("disabled by default", func(t *testing.T) {
		svc, user, product := newTestService(t, clock)

		deal, err := svc.CreateDeal(ctx, entity.DealSpec{
			ProductID:          product.ID,
			EndTime:            clock.Now().Add(time.Hour),
			DiscountRate:       0,
			InventoryRemaining: 5,
		})
		rq.NoError(err)

		_, err = svc.Buy(ctx, user.ID, deal.ID)
		rq.NoError(err)

		updated, err := svc.GetDeal(ctx, deal.ID)
		rq.NoError(err)
		rq.True(updated.Valid)
	})

	t.Run("enabled", func(t *testing.T) {
		svc, user, product := newTestService(t, clock)
		svc = svc.WithZeroDiscountPolicy(true)

		deal, err := svc.CreateDeal(ctx, entity.DealSpec{
			ProductID:          product.ID,
			EndTime:            clock.Now().Add(time.Hour),
			DiscountRate:       0,
			InventoryRemaining: 5,
		})
		rq.NoError(err)

		_, err = svc.Buy(ctx, user.ID, deal.ID)
		rq.NoError(err)

		updated, err := svc.GetDeal(ctx, deal.ID)
		rq.NoError(err)
		rq.False(updated.Valid)
		rq.EqualValues(4, updated.InventoryRemaining)
	})
}

func TestCreateDealValidation(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, _, product := newTestService(t, clock)

	testCases := []struct {
		name string
		spec entity.DealSpec
		code failure.ErrorCode
	}{
		{
			name: "unknown product",
			spec: entity.DealSpec{
				ProductID:          "missing",
				EndTime:            clock.Now().Add(time.Hour),
				InventoryRemaining: 1,
			},
			code: errcodes.ProductNotFound,
		},
		{
			name: "end time in the past",
			spec: entity.DealSpec{
				ProductID:          product.ID,
				EndTime:            clock.Now().Add(-time.Second),
				InventoryRemaining: 1,
			},
			code: errcodes.InvalidEndTime,
		},
		{
			name: "zero inventory",
			spec: entity.DealSpec{
				ProductID:          product.ID,
				EndTime:            clock.Now().Add(time.Hour),
				InventoryRemaining: 0,
			},
			code: errcodes.InvalidInventory,
		},
		{
			name: "discount above one",
			spec: entity.DealSpec{
				ProductID:          product.ID,
				EndTime:            clock.Now().Add(time.Hour),
				DiscountRate:       1.5,
				InventoryRemaining: 1,
			},
			code: errcodes.InvalidDiscount,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			_, err := svc.CreateDeal(ctx, tc.spec)
			rq.Error(err)
			rq.Equal(tc.code, failure.Code(err))
		})
	}
}

func TestDeactivateExpired(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, user, product := newTestService(t, clock)

	expiring, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Minute),
		DiscountRate:       0.2,
		InventoryRemaining: 5,
	})
	rq.NoError(err)

	longLived, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.2,
		InventoryRemaining: 5,
	})
	rq.NoError(err)

	clock.Advance(2 * time.Minute)

	count, err := svc.DeactivateExpired(ctx)
	rq.NoError(err)
	rq.Equal(1, count)

	retired, err := svc.GetDeal(ctx, expiring.ID)
	rq.NoError(err)
	rq.False(retired.Valid)

	alive, err := svc.GetDeal(ctx, longLived.ID)
	rq.NoError(err)
	rq.True(alive.Valid)

	// Idempotent: nothing new expired, nothing new retired.
	count, err = svc.DeactivateExpired(ctx)
	rq.NoError(err)
	rq.Equal(0, count)

	_, err = svc.Buy(ctx, user.ID, longLived.ID)
	rq.NoError(err)
}

func TestSoldOutEvent(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClock()
	svc, user, product := newTestService(t, clock)

	events := make(chan service.Event, 1)
	svc = svc.WithEvents(events)

	deal, err := svc.CreateDeal(ctx, entity.DealSpec{
		ProductID:          product.ID,
		EndTime:            clock.Now().Add(time.Hour),
		DiscountRate:       0.4,
		InventoryRemaining: 1,
	})
	rq.NoError(err)

	_, err = svc.Buy(ctx, user.ID, deal.ID)
	rq.NoError(err)

	select {
	case event := <-events:
		rq.Equal(service.EventDealSoldOut, event.Kind)
		rq.Equal(deal.ID, event.Deal.ID)
		rq.Equal(product.ID, event.Product.ID)
	default:
		t.Fatal("expected a sold out event")
	}
}
