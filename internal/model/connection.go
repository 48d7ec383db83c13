package model

import (
	"strings"
	"time"
)

// ScopeWriteProducts is the access scope required for catalog mutations.
const ScopeWriteProducts = "write_products"

// StoreConnection is an installed shop: its domain, the access token the
// platform issued, and the scopes that token was granted.
type StoreConnection struct {
	ShopDomain  string    `json:"shop_domain"`
	AccessToken string    `json:"-"`
	Scopes      string    `json:"scopes"`
	APIVersion  string    `json:"api_version,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasScope reports whether the comma-joined scope grant includes scope.
func (c StoreConnection) HasScope(scope string) bool {
	for _, s := range strings.Split(c.Scopes, ",") {
		if strings.TrimSpace(s) == scope {
			return true
		}
	}
	return false
}
