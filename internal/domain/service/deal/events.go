package service

import "flashdeal/internal/domain/entity"

type EventKind string

const (
	EventDealSoldOut EventKind = "sold_out"
)

// Event describes a deal lifecycle change worth alerting on.
type Event struct {
	Kind    EventKind
	Deal    entity.Deal
	Product entity.Product
}
