package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/toluade/factorpool/internal/api/problem"
	"github.com/toluade/factorpool/internal/intent"
	"github.com/toluade/factorpool/internal/ledger"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondLedgerError maps ledger and intent sentinel errors onto HTTP
// statuses and problem types. The error message carries the violated
// precondition verbatim so callers see which invariant failed.
func RespondLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status, problemType := http.StatusInternalServerError, "internal-server-error"
	switch {
	case errors.Is(err, ledger.ErrInvalidPool):
		status, problemType = http.StatusBadRequest, "ledger/invalid-pool"
	case errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, ledger.ErrInvalidFaceAmount),
		errors.Is(err, ledger.ErrInvalidAdvanceAmount),
		errors.Is(err, ledger.ErrDueDateNotFuture),
		errors.Is(err, intent.ErrInvalidInput):
		status, problemType = http.StatusUnprocessableEntity, "ledger/validation-failed"
	case errors.Is(err, ledger.ErrInsufficientLiquidity):
		status, problemType = http.StatusConflict, "ledger/insufficient-liquidity"
	case errors.Is(err, ledger.ErrDuplicateReference),
		errors.Is(err, intent.ErrDuplicateReference):
		status, problemType = http.StatusConflict, "ledger/duplicate-reference"
	case errors.Is(err, ledger.ErrAlreadyRepaid):
		status, problemType = http.StatusConflict, "ledger/already-repaid"
	case errors.Is(err, ledger.ErrInvoiceNotFound),
		errors.Is(err, intent.ErrNotFound):
		status, problemType = http.StatusNotFound, "ledger/not-found"
	case errors.Is(err, ledger.ErrUnauthorized):
		status, problemType = http.StatusForbidden, "auth/insufficient-permissions"
	case errors.Is(err, ledger.ErrOutstandingExceedsDeposits):
		status, problemType = http.StatusUnprocessableEntity, "ledger/outstanding-exceeds-deposits"
	case errors.Is(err, intent.ErrNotCancellable):
		status, problemType = http.StatusConflict, "intent/not-cancellable"
	case errors.Is(err, intent.ErrIntentCancelled):
		status, problemType = http.StatusConflict, "intent/cancelled"
	case errors.Is(err, intent.ErrFundingTimeout):
		status, problemType = http.StatusGatewayTimeout, "intent/funding-timeout"
	}
	RespondError(w, r, status, problemType, err.Error())
}
