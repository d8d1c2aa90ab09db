package server

import (
	"sort"

	"github.com/samber/lo"

	"flashdeal/internal/domain/entity"
	"flashdeal/pkg/rest"
)

func newRESTUser(user entity.User) rest.User {
	return rest.User{
		ID:   user.ID,
		Name: user.Name,
	}
}

func newRESTProduct(product entity.Product) rest.Product {
	return rest.Product{
		ID:   product.ID,
		Name: product.Name,
	}
}

func newRESTDeal(deal entity.Deal) rest.Deal {
	redeemers := lo.Keys(deal.Redeemers)
	sort.Strings(redeemers)

	return rest.Deal{
		ID:                 deal.ID,
		ProductID:          deal.ProductID,
		StartTime:          deal.StartTime,
		EndTime:            deal.EndTime,
		DiscountRate:       deal.DiscountRate,
		InventoryRemaining: deal.InventoryRemaining,
		Valid:              deal.Valid,
		Redeemers:          redeemers,
	}
}

func newDomainDealSpec(request rest.CreateDealRequest) entity.DealSpec {
	return entity.DealSpec{
		ProductID:          request.ProductID,
		EndTime:            request.EndTime,
		DiscountRate:       request.DiscountRate,
		InventoryRemaining: request.Inventory,
	}
}
