package permission

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowcart/optimizer-cli/internal/model"
)

func TestRequireWriteScope(t *testing.T) {
	tests := []struct {
		name   string
		scopes string
		ok     bool
	}{
		{name: "write granted", scopes: "read_products,write_products", ok: true},
		{name: "write granted with spaces", scopes: "read_products, write_products", ok: true},
		{name: "read only", scopes: "read_products", ok: false},
		{name: "no scopes", scopes: "", ok: false},
		{name: "unrelated scopes", scopes: "read_orders,write_orders", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &model.StoreConnection{ShopDomain: "demo.myshopify.com", Scopes: tt.scopes}
			err := RequireWriteScope(conn)
			if tt.ok {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var perr *model.PermissionError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, model.ScopeWriteProducts, perr.Scope)
			assert.True(t, perr.NeedsReconnection)
		})
	}
}
