// Package transport exposes the ledger over JSON/HTTP.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/ledger"
	"github.com/goodnatureofminers/blockledger/internal/service"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// LedgerHandler serves the ledger HTTP API.
type LedgerHandler struct {
	ledger  Ledger
	metrics Metrics
	logger  *zap.Logger
}

// NewLedgerHandler returns a LedgerHandler instance.
func NewLedgerHandler(l Ledger, metrics Metrics, logger *zap.Logger) (*LedgerHandler, error) {
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	if metrics == nil {
		return nil, errors.New("http metrics is required")
	}
	return &LedgerHandler{ledger: l, metrics: metrics, logger: logger}, nil
}

// Register mounts the API routes on mux.
func (h *LedgerHandler) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /healthz", h.health},
		{"POST /v1/entities", h.openEntity},
		{"GET /v1/entities", h.listEntities},
		{"GET /v1/entities/{address}", h.entity},
		{"GET /v1/entities/{address}/sealed", h.sealedHistory},
		{"POST /v1/transfers", h.transfer},
		{"GET /v1/transactions/pending", h.pending},
		{"POST /v1/blocks", h.seal},
		{"GET /v1/blocks/latest", h.latestBlock},
		{"GET /v1/blocks/{height}", h.block},
		{"GET /v1/chain/validate", h.validate},
		{"GET /v1/supply", h.supply},
	}
	for _, r := range routes {
		mux.Handle(r.pattern, h.observe(r.pattern, r.handler))
	}
}

func (h *LedgerHandler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "chain_id": h.ledger.ChainID()})
}

func (h *LedgerHandler) openEntity(w http.ResponseWriter, r *http.Request) {
	var req openEntityRequest
	if !h.decode(w, r, &req) {
		return
	}

	balance, err := ledger.ParseAmount(req.Balance)
	if err != nil {
		h.writeError(w, fmt.Errorf("balance: %w", err))
		return
	}

	var (
		opts      []ledger.EntityOption
		generated bool
	)
	switch req.Scheme {
	case "", schemeKeyedHash:
		if req.Address == "" {
			h.writeError(w, fmt.Errorf("%w: address is required", ledger.ErrInvalidInput))
			return
		}
	case schemeSecp256k1:
		switch {
		case req.PrivateKey == "":
			req.PublicKey, req.PrivateKey, err = ledger.GenerateSecp256k1Keys()
			generated = true
		case req.PublicKey == "":
			var signer *ledger.Secp256k1
			if signer, err = ledger.NewSecp256k1("", req.PrivateKey); err == nil {
				req.PublicKey = signer.PublicKey()
			}
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		if req.Address == "" {
			addr, err := ledger.DeriveAddress(req.PublicKey)
			if err != nil {
				h.writeError(w, err)
				return
			}
			req.Address = addr.String()
		}
		opts = append(opts, ledger.WithSecp256k1())
	default:
		h.writeError(w, fmt.Errorf("%w: unknown scheme %q", ledger.ErrInvalidInput, req.Scheme))
		return
	}

	snap, err := h.ledger.OpenEntity(ledger.Address(req.Address), balance, req.PublicKey, req.PrivateKey, opts...)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := toEntityResponse(snap)
	if generated {
		resp.PrivateKey = req.PrivateKey
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *LedgerHandler) listEntities(w http.ResponseWriter, _ *http.Request) {
	addrs := h.ledger.Addresses()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"addresses": out})
}

func (h *LedgerHandler) entity(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ledger.Entity(ledger.Address(r.PathValue("address")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntityResponse(snap))
}

func (h *LedgerHandler) sealedHistory(w http.ResponseWriter, r *http.Request) {
	var limit uint64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: limit %q", ledger.ErrInvalidInput, raw))
			return
		}
		limit = v
	}

	txs, err := h.ledger.SealedHistory(r.Context(), ledger.Address(r.PathValue("address")), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"transactions": toSealedTransactionResponses(txs)})
}

func (h *LedgerHandler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}

	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, fmt.Errorf("amount: %w", err))
		return
	}

	tx, err := h.ledger.Transfer(r.Context(), ledger.Address(req.From), ledger.Address(req.To), amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (h *LedgerHandler) pending(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionResponses(h.ledger.Pending())})
}

func (h *LedgerHandler) seal(w http.ResponseWriter, r *http.Request) {
	height, block, err := h.ledger.Seal(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if block == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusCreated, toBlockResponse(height, *block))
}

func (h *LedgerHandler) latestBlock(w http.ResponseWriter, _ *http.Request) {
	height, block := h.ledger.Latest()
	h.writeJSON(w, http.StatusOK, toBlockResponse(height, block))
}

func (h *LedgerHandler) block(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("height")
	height, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: height %q", ledger.ErrInvalidInput, raw))
		return
	}
	block, ok := h.ledger.Block(height)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("block %d not found", height)})
		return
	}
	h.writeJSON(w, http.StatusOK, toBlockResponse(height, block))
}

func (h *LedgerHandler) validate(w http.ResponseWriter, r *http.Request) {
	height, _ := h.ledger.Latest()
	resp := validateResponse{ChainID: h.ledger.ChainID(), Height: height, Valid: true}

	if err := h.ledger.Validate(r.Context()); err != nil {
		if !isChainFault(err) {
			h.writeError(w, err)
			return
		}
		resp.Valid = false
		resp.Error = err.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *LedgerHandler) supply(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"total": h.ledger.TotalSupply().String()})
}

func isChainFault(err error) bool {
	return errors.Is(err, ledger.ErrHashMismatch) ||
		errors.Is(err, ledger.ErrBrokenLink) ||
		errors.Is(err, ledger.ErrInvalidGenesis)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, ledger.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, service.ErrEntityExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrPersistenceDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, fmt.Errorf("%w: decode body: %v", ledger.ErrInvalidInput, err))
		return false
	}
	return true
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (h *LedgerHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *LedgerHandler) observe(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.metrics.ObserveRequest(route, rec.code, started)
	})
}
