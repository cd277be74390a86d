package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/intent"
)

// IntentHandler serves the intent lifecycle: create, read, fund, cancel.
type IntentHandler struct {
	coordinator *intent.Coordinator
}

func NewIntentHandler(coordinator *intent.Coordinator) *IntentHandler {
	return &IntentHandler{coordinator: coordinator}
}

// Create prices a funding request and persists a Pending intent.
func (h *IntentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SMBAddress string    `json:"smb_address"`
		FaceAmount uint64    `json:"face_amount"`
		FeeBPS     uint32    `json:"fee_bps"`
		Pool       int32     `json:"pool"`
		DueDate    time.Time `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	it, err := h.coordinator.CreateIntent(r.Context(), intent.CreateIntentInput{
		SMBAddress: req.SMBAddress,
		FaceAmount: req.FaceAmount,
		FeeBPS:     req.FeeBPS,
		Pool:       domain.PoolKind(req.Pool),
		DueDate:    req.DueDate,
	})
	if err != nil {
		RespondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, it)
}

// Get returns the stored intent record.
func (h *IntentHandler) Get(w http.ResponseWriter, r *http.Request) {
	it, err := h.coordinator.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, it)
}

// Fund drives the intent through the funding transaction. Safe to retry:
// a previously funded intent returns its recorded result.
func (h *IntentHandler) Fund(w http.ResponseWriter, r *http.Request) {
	res, err := h.coordinator.Fund(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// Cancel abandons a Pending intent.
func (h *IntentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		RespondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": domain.IntentStatusCancelled})
}
