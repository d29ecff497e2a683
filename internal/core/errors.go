package core

import "errors"

// Failure kinds surfaced by the escrow core. Every mutating operation
// returns one of these sentinels (wrapped with context); there is no
// generic catch-all failure.
var (
	// Validation failures: bad input shape, permanently rejecting.
	ErrInvalidParty    = errors.New("invalid counterparty")
	ErrInvalidAsset    = errors.New("invalid asset reference")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrExpiryNotFuture = errors.New("expiry not in the future")
	ErrInvalidPrice    = errors.New("invalid price")

	// State preconditions: depend on mutable state, may succeed on retry.
	ErrSwapExists   = errors.New("swap already exists")
	ErrSwapNotFound = errors.New("swap not found")
	ErrSwapExpired  = errors.New("swap expired")
	ErrItemNotFound = errors.New("item not found")
	ErrAlreadySold  = errors.New("item already sold")
	ErrNotSold      = errors.New("item not sold")
	ErrWrongAmount  = errors.New("payment does not match price")

	// Authorization.
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotRegistered = errors.New("account not registered")

	// External call and concurrency failures.
	ErrTransferFailed    = errors.New("asset transfer failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrReentrantCall     = errors.New("reentrant call")
)

// RejectReason maps a core error to a short label for metrics and logs.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidParty),
		errors.Is(err, ErrInvalidAsset),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrExpiryNotFuture),
		errors.Is(err, ErrInvalidPrice):
		return "invalid_input"
	case errors.Is(err, ErrSwapExists):
		return "already_exists"
	case errors.Is(err, ErrSwapNotFound), errors.Is(err, ErrItemNotFound):
		return "not_found"
	case errors.Is(err, ErrSwapExpired):
		return "expired"
	case errors.Is(err, ErrAlreadySold):
		return "already_sold"
	case errors.Is(err, ErrNotSold):
		return "not_sold"
	case errors.Is(err, ErrWrongAmount):
		return "wrong_amount"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant"
	default:
		return "internal"
	}
}
