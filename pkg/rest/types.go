package rest

import "time"

type RegisterUserRequest struct {
	Name string `json:"name" validate:"required"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateProductRequest struct {
	Name string `json:"name" validate:"required"`
}

type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateDealRequest struct {
	ProductID    string    `json:"productId" validate:"required"`
	EndTime      time.Time `json:"endTime" validate:"required"`
	DiscountRate float64   `json:"discountRate" validate:"gte=0,lte=1"`
	Inventory    int64     `json:"inventory" validate:"required,gt=0"`
}

type Deal struct {
	ID                 string    `json:"id"`
	ProductID          string    `json:"productId"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	DiscountRate       float64   `json:"discountRate"`
	InventoryRemaining int64     `json:"inventoryRemaining"`
	Valid              bool      `json:"valid"`
	Redeemers          []string  `json:"redeemers"`
}

type BuyRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type SweepResult struct {
	DeactivatedCount int `json:"deactivatedCount"`
}

// Error Модель ошибок
type Error struct {
	// Code Код ошибки
	Code ErrorCode `json:"code"`

	// Message Сообщение об ошибке (для отображения в UI в будущем)
	Message string `json:"message"`
}

// ErrorCode Код ошибки
type ErrorCode string
