// Package permission gates catalog mutations on the scopes granted at
// install time. Previews are read-only and never pass through here.
package permission

import (
	"github.com/glowcart/optimizer-cli/internal/model"
)

// RequireWriteScope checks that the connection can mutate products.
// The returned PermissionError carries NeedsReconnection because a
// missing scope can only be fixed by reinstalling the app with the
// broader grant.
func RequireWriteScope(conn *model.StoreConnection) error {
	if conn.HasScope(model.ScopeWriteProducts) {
		return nil
	}
	return &model.PermissionError{
		Scope:             model.ScopeWriteProducts,
		NeedsReconnection: true,
	}
}
