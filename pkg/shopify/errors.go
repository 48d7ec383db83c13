package shopify

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for API failures the engine branches on.
var (
	// ErrNotFound: the product (or variant) does not exist (404).
	ErrNotFound = errors.New("shopify: not found")
	// ErrUnauthorized: the access token was rejected (401).
	ErrUnauthorized = errors.New("shopify: unauthorized")
	// ErrForbidden: the token lacks the scope for this call (403).
	ErrForbidden = errors.New("shopify: forbidden")
	// ErrUnavailable: throttled or server-side failure (429, 5xx).
	ErrUnavailable = errors.New("shopify: unavailable")
)

// ValidationError carries the field messages from a 422 response.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("shopify: validation failed: %s", strings.Join(e.Messages, "; "))
}

// StoreLevel reports whether err condemns the whole connection rather than
// a single product: a dead token or a revoked scope fails every subsequent
// call the same way, so batch callers stop instead of retrying per item.
func StoreLevel(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
