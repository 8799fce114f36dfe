// handler.go provides HTTP REST API handlers for the price resolution service.
//
// This inbound adapter exposes the service functionality over HTTP:
//   - GET /v1/prices/{asset}: Resolve the current price of an asset
//   - POST /v1/oracles/round: Register a round-based oracle (admin)
//   - POST /v1/oracles/index: Register an index-based oracle (admin)
package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/pkg/wad"
	"github.com/archon-research/pricefeed/internal/ports/inbound"
	"github.com/archon-research/pricefeed/internal/services/resolver"
)

// Handler implements HTTP handlers for the API.
type Handler struct {
	resolver inbound.PriceResolver
	admin    inbound.OracleAdmin
	logger   *slog.Logger

	// adminToken gates the registration endpoints. An empty token
	// disables them entirely.
	adminToken string
}

// NewHandler creates a new HTTP handler with the given services.
func NewHandler(priceResolver inbound.PriceResolver, admin inbound.OracleAdmin, adminToken string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		resolver:   priceResolver,
		admin:      admin,
		logger:     logger.With("component", "http-handler"),
		adminToken: adminToken,
	}
}

// RegisterRoutes registers the HTTP routes with the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/prices/{asset}", h.GetPrice)
	mux.HandleFunc("POST /v1/oracles/round", h.requireAdmin(h.RegisterRoundOracle))
	mux.HandleFunc("POST /v1/oracles/index", h.requireAdmin(h.RegisterIndexOracle))
}

// requireAdmin enforces bearer-token authentication on registration endpoints.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			h.respondError(w, http.StatusForbidden, "admin API is disabled")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			h.respondError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next(w, r)
	}
}

// priceResponse is the JSON body returned by GetPrice.
type priceResponse struct {
	Asset    common.Address `json:"asset"`
	PriceWad string         `json:"priceWad"`
}

// GetPrice handles GET /v1/prices/{asset}. Every request performs a full
// upstream resolution; there is no caching and no fallback to prior values.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.parseAddress(w, r.PathValue("asset"))
	if !ok {
		return
	}

	price, err := h.resolver.Resolve(r.Context(), asset)
	if err != nil {
		h.respondResolutionError(w, asset, err)
		return
	}

	h.respondJSON(w, http.StatusOK, priceResponse{
		Asset:    asset,
		PriceWad: price.String(),
	})
}

// registerRoundRequest is the JSON body accepted by RegisterRoundOracle.
type registerRoundRequest struct {
	Asset          string `json:"asset"`
	Source         string `json:"source"`
	TimeoutSeconds int64  `json:"timeoutSeconds"`
	EthIndexed     bool   `json:"ethIndexed"`
}

// RegisterRoundOracle handles POST /v1/oracles/round.
func (h *Handler) RegisterRoundOracle(w http.ResponseWriter, r *http.Request) {
	var req registerRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	asset, ok := h.parseAddress(w, req.Asset)
	if !ok {
		return
	}
	source, ok := h.parseAddress(w, req.Source)
	if !ok {
		return
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if err := h.admin.RegisterRoundBasedOracle(r.Context(), asset, source, timeout, req.EthIndexed); err != nil {
		h.respondRegistrationError(w, asset, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// registerIndexRequest is the JSON body accepted by RegisterIndexOracle.
type registerIndexRequest struct {
	Asset         string `json:"asset"`
	Source        string `json:"source"`
	Index         int    `json:"index"`
	IndexDecimals uint8  `json:"indexDecimals"`
}

// RegisterIndexOracle handles POST /v1/oracles/index.
func (h *Handler) RegisterIndexOracle(w http.ResponseWriter, r *http.Request) {
	var req registerIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	asset, ok := h.parseAddress(w, req.Asset)
	if !ok {
		return
	}
	source, ok := h.parseAddress(w, req.Source)
	if !ok {
		return
	}

	if err := h.admin.RegisterIndexBasedOracle(r.Context(), asset, source, req.Index, req.IndexDecimals); err != nil {
		h.respondRegistrationError(w, asset, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (h *Handler) parseAddress(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		h.respondError(w, http.StatusBadRequest, "invalid address: "+raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// respondResolutionError maps resolution failures onto HTTP status codes.
func (h *Handler) respondResolutionError(w http.ResponseWriter, asset common.Address, err error) {
	var invalidResp *resolver.InvalidOracleResponseError
	switch {
	case errors.Is(err, resolver.ErrUnknownAsset):
		h.respondError(w, http.StatusNotFound, "no oracle configured for asset "+asset.Hex())
	case errors.As(err, &invalidResp):
		h.respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, resolver.ErrCompositionCycle), errors.Is(err, wad.ErrScalingOverflow):
		h.respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("price resolution failed", "asset", asset.Hex(), "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondRegistrationError maps registration failures onto HTTP status codes.
func (h *Handler) respondRegistrationError(w http.ResponseWriter, asset common.Address, err error) {
	var invalidResp *resolver.InvalidOracleResponseError
	switch {
	case errors.Is(err, resolver.ErrInvalidConfiguration):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invalidResp), errors.Is(err, resolver.ErrUnknownAsset):
		// Trial resolution failed; the source or its base dependency is unusable.
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("oracle registration failed", "asset", asset.Hex(), "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
