package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glowcart/optimizer-cli/internal/config"
	"github.com/glowcart/optimizer-cli/internal/engine"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/internal/store"
	"github.com/glowcart/optimizer-cli/pkg/shopify"
)

const testShop = "acme.myshopify.com"

type fixture struct {
	handler  http.Handler
	store    store.Store
	gateway  *mockGateway
	provider *mockProvider
}

func newTestServer(t *testing.T) *fixture {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{}
	cfg.Shopify.TimeoutSecs = 5
	cfg.Shopify.RetryAttempts = 1
	cfg.Anthropic.TimeoutSecs = 5
	cfg.Engine.BulkWorkers = 2

	gateway := new(mockGateway)
	provider := new(mockProvider)
	srv := NewServer(engine.New(cfg, st, gateway, provider), st)

	return &fixture{handler: srv.Handler(), store: st, gateway: gateway, provider: provider}
}

func (f *fixture) seedShop(t *testing.T, scopes string, credits int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.UpsertStore(ctx, model.StoreConnection{
		ShopDomain:  testShop,
		AccessToken: "shpat_test",
		Scopes:      scopes,
	}))
	require.NoError(t, f.store.EnsureAccount(ctx, testShop))
	if credits > 0 {
		_, err := f.store.Credit(ctx, testShop, credits, "topup", "")
		require.NoError(t, err)
	}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func unmarshalBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), "body: %s", rr.Body.String())
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Error map[string]any `json:"error"`
	}
	unmarshalBody(t, rr, &envelope)
	require.NotNil(t, envelope.Error, "expected error envelope, got: %s", rr.Body.String())
	return envelope.Error
}

func catalogProduct() *shopify.Product {
	return &shopify.Product{
		ID:          123,
		Title:       "Red Shoes",
		ProductType: "Shoes",
		Vendor:      "Acme",
		Tags:        "shoes",
		Variants:    []shopify.Variant{{ID: 9001, ProductID: 123, Price: "19.00"}},
	}
}

// --- Health ---

func TestHealth(t *testing.T) {
	f := newTestServer(t)

	rr := f.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	unmarshalBody(t, rr, &body)
	assert.Equal(t, "ok", body["status"])
}

// --- Preview ---

func TestPreviewEndpoint(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products", 0)

	f.gateway.On("GetProduct", mock.Anything, mock.Anything, "123").Return(catalogProduct(), nil)
	f.provider.On("Generate", mock.Anything, model.TypeTitle, mock.Anything).
		Return("Crimson Running Shoes for Daily Comfort", nil)

	rr := f.do(t, http.MethodPost, "/v1/preview", previewRequest{
		Shop: testShop, ProductID: "123", Type: "title",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	var result model.PreviewResult
	unmarshalBody(t, rr, &result)
	assert.Equal(t, "123", result.ProductID)
	assert.Equal(t, "Red Shoes", result.Title)
	require.NotNil(t, result.Suggestion)
	assert.Equal(t, "Crimson Running Shoes for Daily Comfort", result.Suggestion.ProposedValue)
	assert.Equal(t, model.SourceGenerated, result.Suggestion.Source)

	f.gateway.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPreviewEndpoint_UnknownType(t *testing.T) {
	f := newTestServer(t)

	rr := f.do(t, http.MethodPost, "/v1/preview", previewRequest{
		Shop: testShop, ProductID: "123", Type: "seo",
	})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, model.CodeValidation, body["code"])
	assert.Contains(t, body["message"], "unknown optimization type")
	f.gateway.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestPreviewEndpoint_MalformedBody(t *testing.T) {
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/preview", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, model.CodeValidation, errorBody(t, rr)["code"])
}

func TestPreviewEndpoint_StoreNotConnected(t *testing.T) {
	f := newTestServer(t)

	rr := f.do(t, http.MethodPost, "/v1/preview", previewRequest{
		Shop: "ghost.myshopify.com", ProductID: "123", Type: "title",
	})

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, model.CodeNotFound, errorBody(t, rr)["code"])
}

// --- Apply ---

func TestApplyEndpoint(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products,write_products", 5)

	proposed := "Crimson Running Shoes for Daily Comfort"
	f.gateway.On("GetProduct", mock.Anything, mock.Anything, "123").Return(catalogProduct(), nil)
	f.provider.On("Generate", mock.Anything, model.TypeTitle, mock.Anything).Return(proposed, nil)
	f.gateway.On("UpdateProduct", mock.Anything, mock.Anything, "123", shopify.TitlePatch{Title: proposed}).Return(nil)

	rr := f.do(t, http.MethodPost, "/v1/apply", applyRequest{
		Shop: testShop, ProductID: "123", Type: "title",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	var result model.ApplyResult
	unmarshalBody(t, rr, &result)
	assert.True(t, result.Applied)
	assert.True(t, result.Billed)
	assert.Equal(t, int64(1), result.CreditsUsed)

	balance, err := f.store.GetBalance(context.Background(), testShop)
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance)
}

func TestApplyEndpoint_SuppliedSuggestionSkipsProvider(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products,write_products", 5)

	f.gateway.On("GetProduct", mock.Anything, mock.Anything, "123").Return(catalogProduct(), nil)
	f.gateway.On("UpdateProduct", mock.Anything, mock.Anything, "123", shopify.TitlePatch{Title: "Hand Tuned Title"}).Return(nil)

	rr := f.do(t, http.MethodPost, "/v1/apply", applyRequest{
		Shop: testShop, ProductID: "123", Type: "title",
		Suggestion: &suggestionPayload{OriginalValue: "Red Shoes", ProposedValue: "Hand Tuned Title"},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	f.provider.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)

	rec, err := f.store.GetRecord(context.Background(), testShop, "123", model.TypeTitle)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Hand Tuned Title", rec.OptimizedValue)
}

func TestApplyEndpoint_EmptySuggestionRejected(t *testing.T) {
	f := newTestServer(t)

	rr := f.do(t, http.MethodPost, "/v1/apply", applyRequest{
		Shop: testShop, ProductID: "123", Type: "title",
		Suggestion: &suggestionPayload{OriginalValue: "Red Shoes"},
	})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, model.CodeValidation, errorBody(t, rr)["code"])
}

func TestApplyEndpoint_InsufficientCredits(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products,write_products", 0)

	rr := f.do(t, http.MethodPost, "/v1/apply", applyRequest{
		Shop: testShop, ProductID: "123", Type: "title",
	})

	require.Equal(t, http.StatusPaymentRequired, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, model.CodeInsufficientCredits, body["code"])
	assert.EqualValues(t, 1, body["required"])
	assert.EqualValues(t, 0, body["available"])
	f.gateway.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyEndpoint_MissingScope(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products", 5)

	rr := f.do(t, http.MethodPost, "/v1/apply", applyRequest{
		Shop: testShop, ProductID: "123", Type: "title",
	})

	require.Equal(t, http.StatusForbidden, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, model.CodeInsufficientPermissions, body["code"])
	assert.Equal(t, true, body["needs_reconnection"])
}

func TestApplyEndpoint_AuthExpired(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products,write_products", 5)

	f.gateway.On("GetProduct", mock.Anything, mock.Anything, "123").
		Return(nil, eris.Wrap(shopify.ErrUnauthorized, "status 401"))

	rr := f.do(t, http.MethodPost, "/v1/apply", applyRequest{
		Shop: testShop, ProductID: "123", Type: "title",
	})

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, model.CodeAuthExpired, errorBody(t, rr)["code"])
}

// --- Bulk ---

func TestBulkEndpoint_PartialFailure(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products,write_products", 3)

	proposed := "Crimson Running Shoes for Daily Comfort"
	f.gateway.On("GetProduct", mock.Anything, mock.Anything, "2").
		Return(nil, eris.Wrap(shopify.ErrNotFound, "status 404"))
	f.gateway.On("GetProduct", mock.Anything, mock.Anything, mock.Anything).Return(catalogProduct(), nil)
	f.provider.On("Generate", mock.Anything, model.TypeTitle, mock.Anything).Return(proposed, nil)
	f.gateway.On("UpdateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	rr := f.do(t, http.MethodPost, "/v1/bulk", bulkRequest{
		Shop: testShop, Type: "title", ProductIDs: []string{"1", "2"},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	var result model.BulkResult
	unmarshalBody(t, rr, &result)
	assert.Equal(t, int64(1), result.AppliedCount)
	assert.Equal(t, int64(1), result.CreditsUsed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "2", result.Failures[0].ProductID)
	assert.Equal(t, model.CodeNotFound, result.Failures[0].Code)
}

func TestBulkEndpoint_PreflightInsufficient(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products,write_products", 1)

	rr := f.do(t, http.MethodPost, "/v1/bulk", bulkRequest{
		Shop: testShop, Type: "title", ProductIDs: []string{"1", "2", "3"},
	})

	require.Equal(t, http.StatusPaymentRequired, rr.Code)
	body := errorBody(t, rr)
	assert.EqualValues(t, 3, body["required"])
	assert.EqualValues(t, 1, body["available"])
	f.gateway.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkEndpoint_EmptyProducts(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products,write_products", 5)

	rr := f.do(t, http.MethodPost, "/v1/bulk", bulkRequest{
		Shop: testShop, Type: "title", ProductIDs: nil,
	})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, model.CodeValidation, errorBody(t, rr)["code"])
}

// --- Audit ---

func TestAuditEndpoint(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products", 0)

	f.gateway.On("ListProducts", mock.Anything, mock.Anything, mock.Anything).Return([]shopify.Product{
		{ID: 1, Title: "Red Shoes", ProductType: "Shoes"},
		{ID: 2, Title: "Comfortable Walking Shoes for Everyday Wear", ProductType: "Shoes"},
	}, nil)

	rr := f.do(t, http.MethodGet, "/v1/audit?shop="+testShop+"&type=title", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var result model.AuditResult
	unmarshalBody(t, rr, &result)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.NeedsWork)
	require.Len(t, result.Entries, 2)
}

func TestAuditEndpoint_MissingShop(t *testing.T) {
	f := newTestServer(t)

	rr := f.do(t, http.MethodGet, "/v1/audit?type=title", nil)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, model.CodeValidation, errorBody(t, rr)["code"])
}

// --- Credits ---

func TestCreditsEndpoints(t *testing.T) {
	f := newTestServer(t)

	rr := f.do(t, http.MethodPost, "/v1/credits/topup", topUpRequest{
		Shop: testShop, Amount: 25, Memo: "launch promo",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var topup struct {
		Transaction model.CreditTransaction `json:"transaction"`
		Balance     int64                   `json:"balance"`
	}
	unmarshalBody(t, rr, &topup)
	assert.Equal(t, int64(25), topup.Balance)
	assert.Equal(t, int64(25), topup.Transaction.Delta)

	rr = f.do(t, http.MethodGet, "/v1/credits/balance?shop="+testShop, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var balance struct {
		ShopDomain string `json:"shop_domain"`
		Balance    int64  `json:"balance"`
	}
	unmarshalBody(t, rr, &balance)
	assert.Equal(t, testShop, balance.ShopDomain)
	assert.Equal(t, int64(25), balance.Balance)

	rr = f.do(t, http.MethodGet, "/v1/credits/transactions?shop="+testShop, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var txns struct {
		Transactions []model.CreditTransaction `json:"transactions"`
	}
	unmarshalBody(t, rr, &txns)
	require.Len(t, txns.Transactions, 1)
	assert.Equal(t, "topup", txns.Transactions[0].Reason)
}

func TestTopUpEndpoint_RejectsNonPositiveAmount(t *testing.T) {
	f := newTestServer(t)

	rr := f.do(t, http.MethodPost, "/v1/credits/topup", topUpRequest{Shop: testShop, Amount: 0})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, model.CodeValidation, errorBody(t, rr)["code"])
}

// --- Records ---

func TestRecordsEndpoint(t *testing.T) {
	f := newTestServer(t)
	f.seedShop(t, "read_products,write_products", 0)

	require.NoError(t, f.store.UpsertRecord(context.Background(), model.OptimizationRecord{
		ShopDomain:     testShop,
		ProductID:      "123",
		Type:           model.TypeTitle,
		OriginalValue:  "Red Shoes",
		OptimizedValue: "Crimson Running Shoes for Daily Comfort",
		CreditsUsed:    1,
		AppliedAt:      time.Now().UTC(),
	}))

	rr := f.do(t, http.MethodGet, "/v1/records?shop="+testShop+"&type=title", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Records []model.OptimizationRecord `json:"records"`
	}
	unmarshalBody(t, rr, &body)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "123", body.Records[0].ProductID)

	rr = f.do(t, http.MethodGet, "/v1/records?shop="+testShop+"&type=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
