package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/observability"
	"go.uber.org/zap"
)

// FundRequest carries the parameters for funding an invoice from a pool.
type FundRequest struct {
	Pool          domain.PoolKind
	SMBAddress    string
	FaceAmount    uint64
	AdvanceAmount uint64
	FeeBPS        uint32
	DueDate       time.Time
	RefHash       domain.RefHash
}

// RepaymentResult reports the outcome of an accepted repayment.
type RepaymentResult struct {
	InvoiceID   uint64 `json:"invoice_id"`
	Applied     uint64 `json:"applied"`
	Excess      uint64 `json:"excess"`
	FullyRepaid bool   `json:"fully_repaid"`
}

// FundInvoice reserves the advance from the pool, disburses it to the SMB
// and records a new invoice with a fresh sequential id. Restricted to the
// operator. Validation happens before any money moves; the disbursement
// and the accounting update commit together or not at all.
func (e *Engine) FundInvoice(ctx context.Context, caller string, req FundRequest) (Invoice, error) {
	if caller != e.operator {
		return Invoice{}, fmt.Errorf("%w: funding requires the operator", ErrUnauthorized)
	}
	if !req.Pool.Valid() {
		return Invoice{}, fmt.Errorf("%w: %d", ErrInvalidPool, req.Pool)
	}
	if req.FaceAmount == 0 {
		return Invoice{}, ErrInvalidFaceAmount
	}
	if req.AdvanceAmount == 0 || req.AdvanceAmount > req.FaceAmount {
		return Invoice{}, fmt.Errorf("%w: advance %d, face %d",
			ErrInvalidAdvanceAmount, req.AdvanceAmount, req.FaceAmount)
	}
	if req.SMBAddress == "" {
		return Invoice{}, fmt.Errorf("smb address is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !req.DueDate.After(e.now()) {
		return Invoice{}, fmt.Errorf("%w: due %s", ErrDueDateNotFuture, req.DueDate.Format(time.RFC3339))
	}
	if existing, ok := e.refIndex[req.RefHash]; ok {
		return Invoice{}, fmt.Errorf("%w: invoice %d", ErrDuplicateReference, existing)
	}

	p := e.pools[req.Pool]
	if available := p.TotalDeposits - p.TotalOutstanding; req.AdvanceAmount > available {
		return Invoice{}, fmt.Errorf("%w: pool %s needs %d, available %d",
			ErrInsufficientLiquidity, req.Pool, req.AdvanceAmount, available)
	}

	// Disburse before mutating: a rejected transfer must leave no trace.
	if err := e.treasury.Disburse(ctx, req.SMBAddress, req.AdvanceAmount); err != nil {
		return Invoice{}, fmt.Errorf("advance disbursement: %w", err)
	}

	if err := e.reserve(req.Pool, req.AdvanceAmount); err != nil {
		// Unreachable: availability was checked above under the same lock.
		return Invoice{}, err
	}

	inv := &Invoice{
		ID:            e.nextID,
		Pool:          req.Pool,
		SMBAddress:    req.SMBAddress,
		FaceAmount:    req.FaceAmount,
		AdvanceAmount: req.AdvanceAmount,
		FeeBPS:        req.FeeBPS,
		RepaidAmount:  0,
		DueDate:       req.DueDate,
		Status:        domain.InvoiceStatusFunded,
		RefHash:       req.RefHash,
		CreatedAt:     e.now(),
	}
	e.nextID++
	e.invoices[inv.ID] = inv
	e.refIndex[inv.RefHash] = inv.ID

	observability.ObserveFunding(req.Pool.String(), req.AdvanceAmount)
	observability.SetPoolGauges(req.Pool.String(), e.pools[req.Pool].TotalDeposits, e.pools[req.Pool].TotalOutstanding)
	e.emit(domain.InvoiceFunded{
		InvoiceID:     inv.ID,
		Pool:          inv.Pool,
		SMBAddress:    inv.SMBAddress,
		FaceAmount:    inv.FaceAmount,
		AdvanceAmount: inv.AdvanceAmount,
		FeeBPS:        inv.FeeBPS,
		DueDate:       inv.DueDate,
		RefHash:       inv.RefHash,
	})
	zap.L().Info("invoice funded",
		zap.Uint64("invoice_id", inv.ID),
		zap.Stringer("pool", inv.Pool),
		zap.String("smb", inv.SMBAddress),
		zap.Uint64("face", inv.FaceAmount),
		zap.Uint64("advance", inv.AdvanceAmount))
	return *inv, nil
}

// RepayInvoice pulls amount from the payer, applies up to the remaining
// face amount and refunds any excess immediately. Pool outstanding is
// released only on the transition that completes full repayment: the
// pool's capital stays at risk until the invoice closes. Restricted to
// the operator.
func (e *Engine) RepayInvoice(ctx context.Context, caller, payer string, invoiceID, amount uint64) (RepaymentResult, error) {
	if caller != e.operator {
		return RepaymentResult{}, fmt.Errorf("%w: repayment requires the operator", ErrUnauthorized)
	}
	if amount == 0 {
		return RepaymentResult{}, ErrZeroAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inv, ok := e.invoices[invoiceID]
	if !ok {
		return RepaymentResult{}, fmt.Errorf("%w: id %d", ErrInvoiceNotFound, invoiceID)
	}
	if inv.Status == domain.InvoiceStatusRepaid {
		return RepaymentResult{}, fmt.Errorf("%w: invoice %d", ErrAlreadyRepaid, invoiceID)
	}

	remaining := inv.FaceAmount - inv.RepaidAmount
	applied := amount
	if applied > remaining {
		applied = remaining
	}
	excess := amount - applied

	if err := e.treasury.PullRepayment(ctx, payer, amount); err != nil {
		return RepaymentResult{}, fmt.Errorf("repayment collection: %w", err)
	}
	if excess > 0 {
		if err := e.treasury.Refund(ctx, payer, excess); err != nil {
			// Unwind the whole pulled amount so the transition stays
			// all-or-nothing; refunding only the applied portion would
			// strand the excess in custody.
			if rbErr := e.treasury.Refund(ctx, payer, amount); rbErr != nil {
				zap.L().Error("failed to unwind repayment collection",
					zap.Uint64("invoice_id", invoiceID),
					zap.String("payer", payer),
					zap.Error(rbErr))
			}
			return RepaymentResult{}, fmt.Errorf("excess refund: %w", err)
		}
	}

	inv.RepaidAmount += applied
	fullyRepaid := inv.RepaidAmount == inv.FaceAmount
	if fullyRepaid {
		inv.Status = domain.InvoiceStatusRepaid
		e.release(inv.Pool, inv.AdvanceAmount)
	}

	observability.ObserveRepayment(inv.Pool.String(), applied, fullyRepaid)
	observability.SetPoolGauges(inv.Pool.String(), e.pools[inv.Pool].TotalDeposits, e.pools[inv.Pool].TotalOutstanding)
	e.emit(domain.InvoiceRepaid{
		InvoiceID:   invoiceID,
		Payer:       payer,
		Applied:     applied,
		Excess:      excess,
		FullyRepaid: fullyRepaid,
	})
	zap.L().Info("repayment applied",
		zap.Uint64("invoice_id", invoiceID),
		zap.Uint64("applied", applied),
		zap.Uint64("excess", excess),
		zap.Bool("fully_repaid", fullyRepaid))

	return RepaymentResult{
		InvoiceID:   invoiceID,
		Applied:     applied,
		Excess:      excess,
		FullyRepaid: fullyRepaid,
	}, nil
}

// GetInvoice returns a copy of the invoice record.
func (e *Engine) GetInvoice(invoiceID uint64) (Invoice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inv, ok := e.invoices[invoiceID]
	if !ok {
		return Invoice{}, fmt.Errorf("%w: id %d", ErrInvoiceNotFound, invoiceID)
	}
	return *inv, nil
}

// FindInvoiceByRef looks an invoice up by its reference hash, used by the
// intent layer to correlate a submitted funding with its assigned id.
func (e *Engine) FindInvoiceByRef(ref domain.RefHash) (Invoice, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.refIndex[ref]
	if !ok {
		return Invoice{}, false
	}
	return *e.invoices[id], true
}
