package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrAssetNotFound        = errors.New("asset_not_found")
	ErrAssetNotTradable     = errors.New("asset_not_tradable")
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrOrderNotActive       = errors.New("order_not_active")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientHolding  = errors.New("insufficient_holding")
	ErrInvalidOrderParams   = errors.New("invalid_order_parameters")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthorized         = errors.New("unauthorized")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
