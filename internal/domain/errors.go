package domain

import (
	"fmt"

	"git.appkode.ru/pub/go/failure"

	"flashdeal/pkg/errcodes"
)

// Redemption outcomes are discriminated by error code, not by message, so
// handlers and tests never have to parse text.

func NewDealNotFoundError(dealID string) error {
	return failure.NewNotFoundError(
		fmt.Sprintf("deal %s not found", dealID),
		failure.WithCode(errcodes.DealNotFound),
		failure.WithDescription("Deal does not exist"),
	)
}

func NewUserNotFoundError(userID string) error {
	return failure.NewNotFoundError(
		fmt.Sprintf("user %s not found", userID),
		failure.WithCode(errcodes.UserNotFound),
		failure.WithDescription("User does not exist"),
	)
}

func NewProductNotFoundError(productID string) error {
	return failure.NewNotFoundError(
		fmt.Sprintf("product %s not found", productID),
		failure.WithCode(errcodes.ProductNotFound),
		failure.WithDescription("Product does not exist"),
	)
}

func NewDealExpiredError(dealID string) error {
	return failure.NewUnprocessableEntityError(
		fmt.Sprintf("deal %s has expired", dealID),
		failure.WithCode(errcodes.DealExpired),
		failure.WithDescription("Deal redemption window has closed"),
	)
}

func NewDealExhaustedError(dealID string) error {
	return failure.NewUnprocessableEntityError(
		fmt.Sprintf("deal %s has no inventory left", dealID),
		failure.WithCode(errcodes.DealExhausted),
		failure.WithDescription("Deal inventory is exhausted"),
	)
}

func NewAlreadyRedeemedError(userID, dealID string) error {
	return failure.NewUnprocessableEntityError(
		fmt.Sprintf("user %s already redeemed deal %s", userID, dealID),
		failure.WithCode(errcodes.DealAlreadyRedeemed),
		failure.WithDescription("Deal already redeemed by this user"),
	)
}

// NewConflictError reports a lost optimistic race. The redemption service
// retries it and never lets it reach a caller.
func NewConflictError(dealID string) error {
	return failure.NewConflictError(
		fmt.Sprintf("deal %s was modified concurrently", dealID),
		failure.WithCode(errcodes.DealConflict),
		failure.WithDescription("Deal was modified concurrently"),
	)
}

// NewBusyError reports that the per-deal mutation slot could not be acquired
// within its bounded wait. Callers may retry.
func NewBusyError(dealID string) error {
	return failure.NewConflictError(
		fmt.Sprintf("deal %s is busy", dealID),
		failure.WithCode(errcodes.DealBusy),
		failure.WithDescription("Deal is under heavy contention, retry later"),
	)
}

func IsNotFound(err error) bool {
	return failure.IsNotFoundError(err)
}

func IsConflict(err error) bool {
	return failure.Code(err) == errcodes.DealConflict
}

func IsBusy(err error) bool {
	return failure.Code(err) == errcodes.DealBusy
}

// IsRetryable reports whether the redemption service should re-run the
// admissibility check and mutation.
func IsRetryable(err error) bool {
	return IsConflict(err) || IsBusy(err)
}
