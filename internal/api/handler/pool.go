package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/toluade/factorpool/internal/api/middleware"
	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/ledger"
	"go.uber.org/zap"
)

// PoolHandler serves liquidity pool deposits and queries.
type PoolHandler struct {
	engine *ledger.Engine
}

func NewPoolHandler(engine *ledger.Engine) *PoolHandler {
	return &PoolHandler{engine: engine}
}

// Deposit credits the caller's deposit to a pool. Any authenticated
// identity may deposit.
func (h *PoolHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	depositor := middleware.IdentityFromContext(r.Context())
	if depositor == "" {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	pool, ok := poolParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	if err := h.engine.Deposit(r.Context(), pool, depositor, req.Amount); err != nil {
		RespondLedgerError(w, r, err)
		return
	}

	snap, err := h.engine.GetPool(pool)
	if err != nil {
		zap.L().Error("pool read after deposit failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "pool/read-failed", "Failed to read pool")
		return
	}
	RespondJSON(w, http.StatusCreated, snap)
}

// GetPool returns a pool's deposits, outstanding and available liquidity.
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.GetPool(pool)
	if err != nil {
		RespondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, snap)
}

// GetUserDeposits returns a depositor's balance in a pool. Unknown
// depositors hold a zero balance.
func (h *PoolHandler) GetUserDeposits(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}
	depositor := chi.URLParam(r, "depositor")
	balance, err := h.engine.GetUserDeposits(depositor, pool)
	if err != nil {
		RespondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"pool":      pool,
		"depositor": depositor,
		"balance":   balance,
	})
}

func poolParam(w http.ResponseWriter, r *http.Request) (domain.PoolKind, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pool-id", "Invalid pool id")
		return 0, false
	}
	return domain.PoolKind(id), true
}
