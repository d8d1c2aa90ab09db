package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	Forbidden           failure.ErrorCode = "Forbidden"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"

	InvalidDealID    failure.ErrorCode = "InvalidDealID"
	InvalidUserID    failure.ErrorCode = "InvalidUserID"
	InvalidProductID failure.ErrorCode = "InvalidProductID"
	InvalidDealSpec  failure.ErrorCode = "InvalidDealSpec"
	InvalidUserName  failure.ErrorCode = "InvalidUserName"
	InvalidProduct   failure.ErrorCode = "InvalidProduct"
	InvalidEndTime   failure.ErrorCode = "InvalidEndTime"
	InvalidInventory failure.ErrorCode = "InvalidInventory"
	InvalidDiscount  failure.ErrorCode = "InvalidDiscount"

	DealNotFound    failure.ErrorCode = "DealNotFound"
	UserNotFound    failure.ErrorCode = "UserNotFound"
	ProductNotFound failure.ErrorCode = "ProductNotFound"

	// Redemption rejections. Deterministic outcomes of deal state,
	// never retried.
	DealExpired         failure.ErrorCode = "DealExpired"
	DealExhausted       failure.ErrorCode = "DealExhausted"
	DealAlreadyRedeemed failure.ErrorCode = "DealAlreadyRedeemed"

	// Transient redemption failures. DealConflict is a lost optimistic
	// race and stays internal to the service retry loop; DealBusy is what
	// callers see when the per-deal slot could not be acquired in time or
	// retries ran out.
	DealConflict failure.ErrorCode = "DealConflict"
	DealBusy     failure.ErrorCode = "DealBusy"
)
