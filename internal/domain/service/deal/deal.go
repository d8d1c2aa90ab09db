package service

import (
	"context"
	"fmt"
	"time"

	"git.appkode.ru/pub/go/failure"
	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
	"flashdeal/pkg/errcodes"
	"flashdeal/pkg/metrics"
)

const (
	productCacheTTL  = 5 * time.Minute
	maxBuyAttempts   = 3
	buyRetryInterval = 50 * time.Millisecond
)

type DealStore interface {
	Create(ctx context.Context, spec entity.DealSpec) (entity.Deal, error)
	Get(ctx context.Context, dealID string) (entity.Deal, error)
	MutateIfValid(
		ctx context.Context,
		dealID string,
		check func(deal entity.Deal, now time.Time) error,
		mutate func(deal *entity.Deal),
	) (entity.Deal, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}

type UserStore interface {
	Create(ctx context.Context, user entity.User) (entity.User, error)
	Get(ctx context.Context, userID string) (entity.User, error)
}

type ProductStore interface {
	Create(ctx context.Context, product entity.Product) (entity.Product, error)
	Get(ctx context.Context, productID string) (entity.Product, error)
}

// DealService owns the redemption business logic. All deal state changes go
// through DealStore.MutateIfValid, so the admissibility check and the write
// it authorizes are a single atomic step per deal.
type DealService struct {
	dealStore    DealStore
	userStore    UserStore
	productStore ProductStore
	clock        clockwork.Clock
	productCache *cache.Cache

	deactivateZeroDiscount bool
	events                 chan<- Event
}

func NewDealService(
	dealStore DealStore,
	userStore UserStore,
	productStore ProductStore,
	clock clockwork.Clock,
) *DealService {
	return &DealService{
		dealStore:    dealStore,
		userStore:    userStore,
		productStore: productStore,
		clock:        clock,
		productCache: cache.New(productCacheTTL, productCacheTTL),
	}
}

// WithZeroDiscountPolicy enables the legacy rule that a deal with a zero
// discount rate deactivates after its first redemption.
func (s *DealService) WithZeroDiscountPolicy(enabled bool) *DealService {
	s.deactivateZeroDiscount = enabled
	return s
}

// WithEvents publishes deal lifecycle events to the channel. Sends never
// block; events are dropped when the consumer lags.
func (s *DealService) WithEvents(events chan<- Event) *DealService {
	s.events = events
	return s
}

func (s *DealService) CreateDeal(ctx context.Context, spec entity.DealSpec) (entity.Deal, error) {
	if _, err := s.productStore.Get(ctx, spec.ProductID); err != nil {
		return entity.Deal{}, fmt.Errorf("productStore.Get: %w", err)
	}

	if !spec.EndTime.After(s.clock.Now()) {
		return entity.Deal{}, failure.NewInvalidArgumentError(
			"deal end time is not in the future",
			failure.WithCode(errcodes.InvalidEndTime),
			failure.WithDescription("End time must be in the future"),
		)
	}

	if spec.InventoryRemaining <= 0 {
		return entity.Deal{}, failure.NewInvalidArgumentError(
			"deal inventory is not positive",
			failure.WithCode(errcodes.InvalidInventory),
			failure.WithDescription("Inventory must be positive"),
		)
	}

	if spec.DiscountRate < 0 || spec.DiscountRate > 1 {
		return entity.Deal{}, failure.NewInvalidArgumentError(
			"discount rate is out of range",
			failure.WithCode(errcodes.InvalidDiscount),
			failure.WithDescription("Discount rate must be within [0, 1]"),
		)
	}

	deal, err := s.dealStore.Create(ctx, spec)
	if err != nil {
		return entity.Deal{}, fmt.Errorf("dealStore.Create: %w", err)
	}

	return deal, nil
}

func (s *DealService) GetDeal(ctx context.Context, dealID string) (entity.Deal, error) {
	return s.dealStore.Get(ctx, dealID)
}

func (s *DealService) Register(ctx context.Context, user entity.User) (entity.User, error) {
	return s.userStore.Create(ctx, user)
}

func (s *DealService) CreateProduct(ctx context.Context, product entity.Product) (entity.Product, error) {
	return s.productStore.Create(ctx, product)
}

func (s *DealService) GetProduct(ctx context.Context, productID string) (entity.Product, error) {
	if cached, found := s.productCache.Get(productID); found {
		return cached.(entity.Product), nil
	}

	product, err := s.productStore.Get(ctx, productID)
	if err != nil {
		return entity.Product{}, err
	}

	s.productCache.SetDefault(productID, product)

	return product, nil
}

// Buy redeems the deal for the user and returns the discounted product.
// Conflict and Busy results are retried with a short constant backoff;
// everything else surfaces on the first attempt.
func (s *DealService) Buy(ctx context.Context, userID, dealID string) (entity.Product, error) {
	if _, err := s.userStore.Get(ctx, userID); err != nil {
		return entity.Product{}, fmt.Errorf("userStore.Get: %w", err)
	}

	var redeemed entity.Deal

	attempt := func() error {
		deal, err := s.dealStore.MutateIfValid(ctx, dealID, s.admissible(userID), func(deal *entity.Deal) {
			deal.AddRedeemer(userID)
			deal.InventoryRemaining--

			if deal.InventoryRemaining == 0 {
				deal.Valid = false
			}

			if s.deactivateZeroDiscount && deal.DiscountRate == 0 {
				deal.Valid = false
			}
		})
		if err != nil {
			if domain.IsRetryable(err) {
				return err
			}

			return backoff.Permanent(err)
		}

		redeemed = deal

		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(buyRetryInterval), maxBuyAttempts-1),
		ctx,
	)

	if err := backoff.Retry(attempt, policy); err != nil {
		metrics.ObserveRedemption(failure.Code(err).String())

		if domain.IsConflict(err) {
			return entity.Product{}, domain.NewBusyError(dealID)
		}

		return entity.Product{}, fmt.Errorf("dealStore.MutateIfValid: %w", err)
	}

	metrics.ObserveRedemption(metrics.RedemptionResultSuccess)

	product, err := s.GetProduct(ctx, redeemed.ProductID)
	if err != nil {
		return entity.Product{}, fmt.Errorf("GetProduct: %w", err)
	}

	if !redeemed.Valid {
		s.publish(Event{Kind: EventDealSoldOut, Deal: redeemed, Product: product})
	}

	return product, nil
}

// DeactivateExpired retires every deal whose window closed. It is the single
// entry point for both the periodic sweeper and the admin trigger.
func (s *DealService) DeactivateExpired(ctx context.Context) (int, error) {
	count, err := s.dealStore.DeactivateExpired(ctx, s.clock.Now())
	if err != nil {
		return count, fmt.Errorf("dealStore.DeactivateExpired: %w", err)
	}

	metrics.ObserveSweep(count)

	return count, nil
}

func (s *DealService) admissible(userID string) func(deal entity.Deal, now time.Time) error {
	return func(deal entity.Deal, now time.Time) error {
		switch {
		case deal.Expired(now):
			// Wall clock wins over a stale valid flag: an expired deal is
			// not redeemable even before the sweeper retires it.
			return domain.NewDealExpiredError(deal.ID)
		case deal.HasRedeemer(userID):
			return domain.NewAlreadyRedeemedError(userID, deal.ID)
		case !deal.Valid || deal.InventoryRemaining <= 0:
			return domain.NewDealExhaustedError(deal.ID)
		default:
			return nil
		}
	}
}

func (s *DealService) publish(event Event) {
	if s.events == nil {
		return
	}

	select {
	case s.events <- event:
	default:
	}
}
