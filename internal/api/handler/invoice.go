package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/toluade/factorpool/internal/intent"
	"github.com/toluade/factorpool/internal/ledger"
	"go.uber.org/zap"
)

// InvoiceHandler serves invoice reads and repayments.
type InvoiceHandler struct {
	engine      *ledger.Engine
	bridge      *ledger.Bridge
	coordinator *intent.Coordinator
}

func NewInvoiceHandler(engine *ledger.Engine, bridge *ledger.Bridge, coordinator *intent.Coordinator) *InvoiceHandler {
	return &InvoiceHandler{engine: engine, bridge: bridge, coordinator: coordinator}
}

// Get returns the invoice record.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := invoiceParam(w, r)
	if !ok {
		return
	}
	inv, err := h.engine.GetInvoice(invoiceID)
	if err != nil {
		RespondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, inv)
}

// Repay submits a repayment on behalf of the payer, then nudges
// settlement reconciliation so a fully repaid invoice settles its intent
// without waiting for the sweep.
func (h *InvoiceHandler) Repay(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := invoiceParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Payer  string `json:"payer"`
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Payer == "" {
		RespondError(w, r, http.StatusBadRequest, "request/payer-required", "payer is required")
		return
	}

	txHash, res, err := h.bridge.SubmitRepay(r.Context(), req.Payer, invoiceID, req.Amount)
	if err != nil {
		RespondLedgerError(w, r, err)
		return
	}

	if res.FullyRepaid {
		if err := h.coordinator.ReconcileSettlement(r.Context(), invoiceID, txHash); err != nil {
			// The settlement worker sweep will retry; the repayment itself
			// has already committed.
			zap.L().Warn("inline settlement reconciliation failed",
				zap.Uint64("invoice_id", invoiceID),
				zap.Error(err))
		}
	}

	RespondJSON(w, http.StatusOK, struct {
		ledger.RepaymentResult
		TxHash string `json:"tx_hash"`
	}{RepaymentResult: res, TxHash: txHash})
}

func invoiceParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-invoice-id", "Invalid invoice id")
		return 0, false
	}
	return id, true
}
