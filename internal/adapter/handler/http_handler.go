package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/allocation/internal/core/service"
	"github.com/rl1809/allocation/internal/platform/logger"
)

const idempotencyKeyHeader = "Idempotency-Key"

type HTTPHandler struct {
	allocations *service.AllocationService
	market      *service.MarketService
	log         *logger.Logger
}

type AddBatchHTTPRequest struct {
	Ref string `json:"ref"`
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
	ETA string `json:"eta,omitempty"`
}

type OrderLineHTTPRequest struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type AllocateHTTPResponse struct {
	BatchRef string `json:"batchref"`
}

type AddAssetHTTPRequest struct {
	Symbol string `json:"symbol"`
	Source string `json:"source"`
}

type TrackerHTTPRequest struct {
	Symbol    string `json:"symbol"`
	DatetimeT string `json:"datetime_t"`
	Position  int    `json:"position"`
}

type RegisterModelHTTPRequest struct {
	Symbol        string  `json:"symbol"`
	Source        string  `json:"source"`
	FeatureCounts int     `json:"feature_counts"`
	ModelName     string  `json:"model_name"`
	AIType        string  `json:"ai_type"`
	Hashtag       string  `json:"hashtag"`
	AccuracyScore float64 `json:"accuracy_score"`
}

type ErrorHTTPResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHTTPHandler(allocations *service.AllocationService, market *service.MarketService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{allocations: allocations, market: market, log: log}
}

func (h *HTTPHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req AddBatchHTTPRequest
	if !decode(w, r, &req) {
		return
	}
	eta, err := parseETA(req.ETA)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(service.CodeInvalidInput), err.Error())
		return
	}

	if err := h.allocations.AddBatch(r.Context(), req.Ref, req.SKU, req.Qty, eta); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"ref": req.Ref})
}

func (h *HTTPHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req OrderLineHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	ref, err := h.allocations.AllocateIdempotent(r.Context(), key, req.OrderID, req.SKU, req.Qty)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AllocateHTTPResponse{BatchRef: ref})
}

func (h *HTTPHandler) Deallocate(w http.ResponseWriter, r *http.Request) {
	var req OrderLineHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	ref, err := h.allocations.Deallocate(r.Context(), req.OrderID, req.SKU, req.Qty)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AllocateHTTPResponse{BatchRef: ref})
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	view, err := h.allocations.GetProduct(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) AddAsset(w http.ResponseWriter, r *http.Request) {
	var req AddAssetHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.market.AddAsset(r.Context(), req.Symbol, req.Source); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *HTTPHandler) AllocateTracker(w http.ResponseWriter, r *http.Request) {
	var req TrackerHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.market.AllocateTracker(r.Context(), req.Symbol, req.DatetimeT, req.Position)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *HTTPHandler) RegisterModel(w http.ResponseWriter, r *http.Request) {
	var req RegisterModelHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	view, err := h.market.RegisterModel(r.Context(), service.ModelInput{
		Symbol:        req.Symbol,
		Source:        req.Source,
		FeatureCounts: req.FeatureCounts,
		ModelName:     req.ModelName,
		AIType:        req.AIType,
		Hashtag:       req.Hashtag,
		AccuracyScore: req.AccuracyScore,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *HTTPHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.market.ListModels(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	code := service.CodeOf(err)
	status := httpStatus(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
		message = "internal error"
	}
	writeError(w, status, string(code), message)
}

func httpStatus(code service.Code) int {
	switch {
	case code == service.CodeConflict:
		return http.StatusConflict
	case code.IsBusiness():
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseETA(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("eta %q is not a date", raw)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		message := "invalid request body"
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			message = fmt.Sprintf("invalid json at offset %d", syntaxErr.Offset)
		}
		writeError(w, http.StatusBadRequest, "invalid_json", message)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorHTTPResponse{Error: code, Message: message})
}
