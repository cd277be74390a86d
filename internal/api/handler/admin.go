package handler

import (
	"encoding/json"
	"net/http"

	"github.com/toluade/factorpool/internal/api/middleware"
	"github.com/toluade/factorpool/internal/ledger"
)

// AdminHandler exposes the recovery-only outstanding override. It is a
// deliberate escape hatch for correcting accounting drift and bypasses
// normal invariant derivation, so it sits behind both the admin role and
// the engine's own capability check.
type AdminHandler struct {
	engine *ledger.Engine
}

func NewAdminHandler(engine *ledger.Engine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

// SetOutstanding overwrites a pool's outstanding accounting.
func (h *AdminHandler) SetOutstanding(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromContext(r.Context())
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Value uint64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	if err := h.engine.AdminSetOutstanding(r.Context(), caller, pool, req.Value); err != nil {
		RespondLedgerError(w, r, err)
		return
	}

	snap, err := h.engine.GetPool(pool)
	if err != nil {
		RespondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, snap)
}
