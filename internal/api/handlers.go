package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/glowcart/optimizer-cli/internal/engine"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/internal/store"
)

type previewRequest struct {
	Shop      string `json:"shop"`
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
}

type suggestionPayload struct {
	OriginalValue string `json:"original_value"`
	ProposedValue string `json:"proposed_value"`
	Source        string `json:"source,omitempty"`
}

type applyRequest struct {
	Shop       string             `json:"shop"`
	ProductID  string             `json:"product_id"`
	Type       string             `json:"type"`
	Suggestion *suggestionPayload `json:"suggestion,omitempty"`
}

type bulkRequest struct {
	Shop       string   `json:"shop"`
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Workers    int      `json:"workers,omitempty"`
}

type topUpRequest struct {
	Shop   string `json:"shop"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decode(w, r, &req) {
		return
	}
	typ, ok := requireTarget(w, req.Shop, req.ProductID, req.Type)
	if !ok {
		return
	}

	result, err := s.engine.Preview(r.Context(), req.Shop, req.ProductID, typ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !decode(w, r, &req) {
		return
	}
	typ, ok := requireTarget(w, req.Shop, req.ProductID, req.Type)
	if !ok {
		return
	}

	apply := engine.ApplyRequest{Shop: req.Shop, ProductID: req.ProductID, Type: typ}
	if req.Suggestion != nil {
		if req.Suggestion.ProposedValue == "" {
			writeError(w, &model.ValidationError{Field: "suggestion.proposed_value", Message: "proposed value must not be empty"})
			return
		}
		source := model.SuggestionSource(req.Suggestion.Source)
		if source == "" {
			source = model.SourceGenerated
		}
		apply.Suggestion = &model.SuggestionResult{
			Type:          typ,
			OriginalValue: req.Suggestion.OriginalValue,
			ProposedValue: req.Suggestion.ProposedValue,
			Source:        source,
		}
	}

	result, err := s.engine.ApplySingle(r.Context(), apply)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Shop == "" {
		writeError(w, &model.ValidationError{Field: "shop", Message: "shop is required"})
		return
	}
	typ, err := model.ParseType(req.Type)
	if err != nil {
		writeError(w, &model.ValidationError{Field: "type", Message: err.Error()})
		return
	}

	result, err := s.engine.ApplyBulk(r.Context(), engine.BulkRequest{
		Shop:       req.Shop,
		Type:       typ,
		ProductIDs: req.ProductIDs,
		Workers:    req.Workers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		writeError(w, &model.ValidationError{Field: "shop", Message: "shop is required"})
		return
	}
	typ, err := model.ParseType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, &model.ValidationError{Field: "type", Message: err.Error()})
		return
	}

	result, err := s.engine.Audit(r.Context(), shop, typ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shop := q.Get("shop")
	if shop == "" {
		writeError(w, &model.ValidationError{Field: "shop", Message: "shop is required"})
		return
	}

	filter := store.RecordFilter{Limit: queryInt(q.Get("limit")), Offset: queryInt(q.Get("offset"))}
	if raw := q.Get("type"); raw != "" {
		typ, err := model.ParseType(raw)
		if err != nil {
			writeError(w, &model.ValidationError{Field: "type", Message: err.Error()})
			return
		}
		filter.Type = typ
	}

	records, err := s.store.ListRecords(r.Context(), shop, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		writeError(w, &model.ValidationError{Field: "shop", Message: "shop is required"})
		return
	}

	balance, err := s.store.GetBalance(r.Context(), shop)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop_domain": shop, "balance": balance})
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Shop == "" {
		writeError(w, &model.ValidationError{Field: "shop", Message: "shop is required"})
		return
	}
	if req.Amount <= 0 {
		writeError(w, &model.ValidationError{Field: "amount", Message: "amount must be positive"})
		return
	}

	txn, err := s.store.Credit(r.Context(), req.Shop, req.Amount, "topup", req.Memo)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.store.GetBalance(r.Context(), req.Shop)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": txn, "balance": balance})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shop := q.Get("shop")
	if shop == "" {
		writeError(w, &model.ValidationError{Field: "shop", Message: "shop is required"})
		return
	}

	limit := queryInt(q.Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	txns, err := s.store.Transactions(r.Context(), shop, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

// decode parses the JSON body into dst, rendering a validation error on
// malformed input.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, &model.ValidationError{Message: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// requireTarget validates the (shop, product, type) triple shared by the
// preview and apply endpoints.
func requireTarget(w http.ResponseWriter, shop, productID, rawType string) (model.OptimizationType, bool) {
	if shop == "" {
		writeError(w, &model.ValidationError{Field: "shop", Message: "shop is required"})
		return "", false
	}
	if productID == "" {
		writeError(w, &model.ValidationError{Field: "product_id", Message: "product_id is required"})
		return "", false
	}
	typ, err := model.ParseType(rawType)
	if err != nil {
		writeError(w, &model.ValidationError{Field: "type", Message: err.Error()})
		return "", false
	}
	return typ, true
}

func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
