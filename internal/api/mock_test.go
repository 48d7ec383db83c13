package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/internal/suggest"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

// --- Catalog Gateway Mock ---

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) GetProduct(ctx context.Context, creds shopify.Credentials, productID string) (*shopify.Product, error) {
	args := m.Called(ctx, creds, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shopify.Product), args.Error(1)
}

func (m *mockGateway) ListProducts(ctx context.Context, creds shopify.Credentials, opts shopify.ListOptions) ([]shopify.Product, error) {
	args := m.Called(ctx, creds, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shopify.Product), args.Error(1)
}

func (m *mockGateway) UpdateProduct(ctx context.Context, creds shopify.Credentials, productID string, patch shopify.Patch) error {
	args := m.Called(ctx, creds, productID, patch)
	return args.Error(0)
}

// --- Suggestion Provider Mock ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Generate(ctx context.Context, typ model.OptimizationType, product *shopify.Product) (string, error) {
	args := m.Called(ctx, typ, product)
	return args.String(0), args.Error(1)
}

// --- Ensure interface compliance ---
var (
	_ shopify.Client   = (*mockGateway)(nil)
	_ suggest.Provider = (*mockProvider)(nil)
)
