package server

import (
	"context"
	"fmt"
	"net/http"

	"flashdeal/internal/domain/entity"
	"flashdeal/pkg/httpx/reply"
	"flashdeal/pkg/httpx/req"
	"flashdeal/pkg/rest"
)

type dealService interface {
	Register(ctx context.Context, user entity.User) (entity.User, error)
	CreateProduct(ctx context.Context, product entity.Product) (entity.Product, error)
	GetProduct(ctx context.Context, productID string) (entity.Product, error)
	CreateDeal(ctx context.Context, spec entity.DealSpec) (entity.Deal, error)
	GetDeal(ctx context.Context, dealID string) (entity.Deal, error)
	Buy(ctx context.Context, userID, dealID string) (entity.Product, error)
	DeactivateExpired(ctx context.Context) (int, error)
}

type DealServer struct {
	dealService dealService
}

func NewDealServer(dealService dealService) DealServer {
	return DealServer{
		dealService: dealService,
	}
}

func (s DealServer) postV1User(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.RegisterUserRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	user, err := s.dealService.Register(ctx, entity.User{Name: request.Name})
	if err != nil {
		return fmt.Errorf("dealService.Register: %w", err)
	}

	reply.JSON(ctx, w, http.StatusCreated, newRESTUser(user))

	return nil
}

func (s DealServer) postV1Product(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.CreateProductRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	product, err := s.dealService.CreateProduct(ctx, entity.Product{Name: request.Name})
	if err != nil {
		return fmt.Errorf("dealService.CreateProduct: %w", err)
	}

	reply.JSON(ctx, w, http.StatusCreated, newRESTProduct(product))

	return nil
}

func (s DealServer) getV1Product(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	product, err := s.dealService.GetProduct(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("dealService.GetProduct: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTProduct(product))

	return nil
}

func (s DealServer) postV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.CreateDealRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	deal, err := s.dealService.CreateDeal(ctx, newDomainDealSpec(request))
	if err != nil {
		return fmt.Errorf("dealService.CreateDeal: %w", err)
	}

	reply.JSON(ctx, w, http.StatusCreated, newRESTDeal(deal))

	return nil
}

func (s DealServer) getV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	deal, err := s.dealService.GetDeal(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("dealService.GetDeal: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(deal))

	return nil
}

func (s DealServer) postV1DealBuy(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.BuyRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	product, err := s.dealService.Buy(ctx, request.UserID, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("dealService.Buy: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTProduct(product))

	return nil
}

func (s DealServer) postV1DeactivateExpired(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	count, err := s.dealService.DeactivateExpired(ctx)
	if err != nil {
		return fmt.Errorf("dealService.DeactivateExpired: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, rest.SweepResult{DeactivatedCount: count})

	return nil
}
