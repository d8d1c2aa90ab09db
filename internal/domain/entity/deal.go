package entity

import "time"

// Deal is a time- and inventory-bounded discount offer on a product.
// Mutable fields (InventoryRemaining, Valid, Redeemers) are only ever
// changed through a store's atomic mutation primitive.
type Deal struct {
	ID                 string
	ProductID          string
	StartTime          time.Time
	EndTime            time.Time
	DiscountRate       float64
	InventoryRemaining int64
	Valid              bool
	Redeemers          map[string]struct{}
}

// DealSpec is the caller-supplied part of a new deal.
type DealSpec struct {
	ProductID          string
	EndTime            time.Time
	DiscountRate       float64
	InventoryRemaining int64
}

func (d Deal) Expired(now time.Time) bool {
	return !now.Before(d.EndTime)
}

func (d Deal) HasRedeemer(userID string) bool {
	_, ok := d.Redeemers[userID]
	return ok
}

func (d *Deal) AddRedeemer(userID string) {
	if d.Redeemers == nil {
		d.Redeemers = make(map[string]struct{})
	}
	d.Redeemers[userID] = struct{}{}
}

// Clone returns a deep copy, so a snapshot handed to a caller never aliases
// store-owned state.
func (d Deal) Clone() Deal {
	clone := d
	clone.Redeemers = make(map[string]struct{}, len(d.Redeemers))
	for userID := range d.Redeemers {
		clone.Redeemers[userID] = struct{}{}
	}

	return clone
}
