package model

import "fmt"

// Structured error codes surfaced to API and CLI callers.
const (
	CodeInsufficientCredits     = "INSUFFICIENT_CREDITS"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeAuthExpired             = "AUTH_EXPIRED"
	CodeNotFound                = "NOT_FOUND"
	CodeValidation              = "VALIDATION_ERROR"
	CodeCatalogUnavailable      = "CATALOG_UNAVAILABLE"
	CodeInternal                = "INTERNAL"
)

// InsufficientCreditsError is returned when a debit (or a bulk pre-flight)
// cannot be covered by the account balance. It is always rejected before
// any side effect.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// PermissionError is returned when a store connection lacks the scope a
// mutating operation requires. NeedsReconnection tells the caller the shop
// must reinstall/reauthorize to pick up the missing scope.
type PermissionError struct {
	Scope             string
	NeedsReconnection bool
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("missing required scope %s", e.Scope)
}

// AuthExpiredError is returned when the platform rejects the stored access
// token outright.
type AuthExpiredError struct {
	ShopDomain string
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("access token for %s is no longer valid", e.ShopDomain)
}

// NotFoundError is returned when a store or product does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError is returned for malformed input, rejected before any
// side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
