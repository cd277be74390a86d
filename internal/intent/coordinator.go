package intent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/models"
	"github.com/toluade/factorpool/internal/observability"
	"go.uber.org/zap"
)

// Ledger is the authoritative ledger as seen from the intent layer:
// transitions are submitted as transactions and their outcomes observed
// through correlation queries, never by mutating ledger state directly.
type Ledger interface {
	SubmitFund(ctx context.Context, pool domain.PoolKind, smb string, face, advance uint64, feeBPS uint32, due time.Time, ref domain.RefHash) (txHash string, err error)
	FundingByRef(ctx context.Context, ref domain.RefHash) (invoiceID uint64, txHash string, ok bool, err error)
	RepaymentRecord(ctx context.Context, invoiceID uint64) (txHash string, repaid bool, err error)
}

// ErrInvalidInput is returned when a pricing request fails validation.
var ErrInvalidInput = errors.New("invalid intent request")

// ErrIntentCancelled is returned when funding is attempted on an intent
// that was cancelled.
var ErrIntentCancelled = errors.New("intent is cancelled")

// Coordinator reconciles client-submitted pricing requests with the
// ledger's authoritative state. It owns intent records exclusively and
// mutates them only on confirmed ledger outcomes.
type Coordinator struct {
	store  Store
	ledger Ledger
	retry  RetryPolicy
	now    func() time.Time
}

// NewCoordinator creates a coordinator over a store and a ledger client.
func NewCoordinator(store Store, ledger Ledger, retry RetryPolicy) *Coordinator {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &Coordinator{store: store, ledger: ledger, retry: retry, now: time.Now}
}

// WithClock overrides the coordinator clock for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// CreateIntentInput is the pricing request a client agreed to.
type CreateIntentInput struct {
	SMBAddress string
	FaceAmount uint64
	FeeBPS     uint32
	Pool       domain.PoolKind
	DueDate    time.Time
}

// CreateIntent prices the request, derives its reference hash and persists
// a Pending intent. The duplicate check rides on the store's atomic
// conditional insert.
func (c *Coordinator) CreateIntent(ctx context.Context, in CreateIntentInput) (*models.Intent, error) {
	if !in.Pool.Valid() {
		return nil, fmt.Errorf("%w: invalid pool id %d", ErrInvalidInput, in.Pool)
	}
	if in.SMBAddress == "" {
		return nil, fmt.Errorf("%w: smb address is required", ErrInvalidInput)
	}
	if !in.DueDate.After(c.now()) {
		return nil, fmt.Errorf("%w: due date must be in the future", ErrInvalidInput)
	}
	advance, err := domain.AdvanceFor(in.FaceAmount, in.FeeBPS)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	now := c.now()
	it := &models.Intent{
		ID:            uuid.NewString(),
		SMBAddress:    in.SMBAddress,
		FaceAmount:    in.FaceAmount,
		AdvanceAmount: advance,
		FeeBPS:        in.FeeBPS,
		Pool:          in.Pool,
		DueDate:       in.DueDate,
		Status:        domain.IntentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	it.RefHash = domain.ReferenceHash(it.ID, it.SMBAddress, it.FaceAmount, it.DueDate, it.Pool)

	if err := c.store.Insert(ctx, it); err != nil {
		return nil, err
	}
	observability.IncrementIntentTransition(domain.IntentStatusPending)
	zap.L().Info("intent created",
		zap.String("intent_id", it.ID),
		zap.Stringer("ref_hash", it.RefHash),
		zap.Stringer("pool", it.Pool),
		zap.Uint64("face", it.FaceAmount),
		zap.Uint64("advance", it.AdvanceAmount))
	return it, nil
}

// FundResult is the finalized funding outcome for an intent.
type FundResult struct {
	IntentID  string `json:"intent_id"`
	TxHash    string `json:"tx_hash"`
	InvoiceID uint64 `json:"onchain_invoice_id"`
}

// Fund drives a Pending intent to Funded. It is idempotent: an intent that
// already carries a transaction hash and invoice id returns the recorded
// result without resubmitting, and a retry after a timeout first looks for
// the earlier transaction by reference hash before submitting again. On
// exhausted polling it fails closed, leaving the intent Pending.
func (c *Coordinator) Fund(ctx context.Context, intentID string) (FundResult, error) {
	it, err := c.store.GetByID(ctx, intentID)
	if err != nil {
		return FundResult{}, err
	}

	if it.Status == domain.IntentStatusCancelled {
		return FundResult{}, fmt.Errorf("%w: %s", ErrIntentCancelled, intentID)
	}
	if it.Funded() && it.TxHash != "" && it.InvoiceID != nil {
		return FundResult{IntentID: it.ID, TxHash: it.TxHash, InvoiceID: *it.InvoiceID}, nil
	}

	// A previous attempt may have submitted successfully and timed out
	// before the event was observed. Check before submitting again so the
	// ledger is never asked to fund the same reference twice.
	invoiceID, txHash, found, err := c.ledger.FundingByRef(ctx, it.RefHash)
	if err != nil {
		return FundResult{}, fmt.Errorf("funding lookup: %w", err)
	}
	if !found {
		txHash, err = c.ledger.SubmitFund(ctx, it.Pool, it.SMBAddress, it.FaceAmount, it.AdvanceAmount, it.FeeBPS, it.DueDate, it.RefHash)
		if err != nil {
			return FundResult{}, err
		}
		invoiceID, found, err = c.awaitFunding(ctx, it.RefHash)
		if err != nil {
			return FundResult{}, err
		}
		if !found {
			zap.L().Warn("funding not finalized, intent stays pending",
				zap.String("intent_id", it.ID),
				zap.String("tx_hash", txHash))
			return FundResult{}, fmt.Errorf("%w: intent %s", ErrFundingTimeout, it.ID)
		}
	}

	if err := c.store.MarkFunded(ctx, it.ID, txHash, invoiceID); err != nil {
		return FundResult{}, fmt.Errorf("record funding: %w", err)
	}
	observability.IncrementIntentTransition(domain.IntentStatusFunded)
	zap.L().Info("intent funded",
		zap.String("intent_id", it.ID),
		zap.Uint64("invoice_id", invoiceID),
		zap.String("tx_hash", txHash))
	return FundResult{IntentID: it.ID, TxHash: txHash, InvoiceID: invoiceID}, nil
}

// awaitFunding polls the ledger for the funded invoice id under the retry
// policy. Returns found=false when the budget is exhausted.
func (c *Coordinator) awaitFunding(ctx context.Context, ref domain.RefHash) (uint64, bool, error) {
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		invoiceID, _, ok, err := c.ledger.FundingByRef(ctx, ref)
		if err != nil {
			return 0, false, fmt.Errorf("funding lookup: %w", err)
		}
		if ok {
			return invoiceID, true, nil
		}
		if attempt == c.retry.MaxAttempts-1 {
			break
		}
		if err := c.retry.sleep(ctx, attempt); err != nil {
			return 0, false, err
		}
	}
	return 0, false, nil
}

// Cancel abandons a Pending intent. Nothing was reserved on the ledger,
// so cancellation has no ledger-side effect. Funded intents cannot be
// cancelled.
func (c *Coordinator) Cancel(ctx context.Context, intentID string) error {
	if err := c.store.MarkCancelled(ctx, intentID); err != nil {
		return err
	}
	observability.IncrementIntentTransition(domain.IntentStatusCancelled)
	zap.L().Info("intent cancelled", zap.String("intent_id", intentID))
	return nil
}

// Get returns the stored intent record.
func (c *Coordinator) Get(ctx context.Context, intentID string) (*models.Intent, error) {
	return c.store.GetByID(ctx, intentID)
}

// ReconcileSettlement marks the intent linked to an invoice as Settled
// once the invoice is fully repaid, recording the repayment transaction
// hash. It is a no-op when no intent tracks the invoice: the ledger may be
// driven by flows outside intent tracking.
func (c *Coordinator) ReconcileSettlement(ctx context.Context, invoiceID uint64, repayTxHash string) error {
	it, err := c.store.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if it.Status == domain.IntentStatusSettled {
		return nil
	}

	_, repaid, err := c.ledger.RepaymentRecord(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("repayment lookup: %w", err)
	}
	if !repaid {
		return nil
	}

	if err := c.store.MarkSettled(ctx, it.ID, repayTxHash); err != nil {
		return fmt.Errorf("record settlement: %w", err)
	}
	observability.IncrementIntentTransition(domain.IntentStatusSettled)
	zap.L().Info("intent settled",
		zap.String("intent_id", it.ID),
		zap.Uint64("invoice_id", invoiceID),
		zap.String("repay_tx_hash", repayTxHash))
	return nil
}

// SweepFunded scans Funded intents and settles any whose invoice has fully
// repaid, using the ledger's repayment record for the transaction hash.
// Used by the settlement worker.
func (c *Coordinator) SweepFunded(ctx context.Context, limit int32) (settled int, err error) {
	funded, err := c.store.ListByStatus(ctx, domain.IntentStatusFunded, limit)
	if err != nil {
		return 0, fmt.Errorf("list funded intents: %w", err)
	}
	for _, it := range funded {
		if it.InvoiceID == nil {
			continue
		}
		txHash, repaid, err := c.ledger.RepaymentRecord(ctx, *it.InvoiceID)
		if err != nil {
			zap.L().Warn("repayment lookup failed during sweep",
				zap.String("intent_id", it.ID),
				zap.Uint64("invoice_id", *it.InvoiceID),
				zap.Error(err))
			continue
		}
		if !repaid {
			continue
		}
		if err := c.ReconcileSettlement(ctx, *it.InvoiceID, txHash); err != nil {
			zap.L().Warn("settlement reconciliation failed during sweep",
				zap.String("intent_id", it.ID),
				zap.Error(err))
			continue
		}
		settled++
	}
	return settled, nil
}
