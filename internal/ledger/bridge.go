package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/toluade/factorpool/internal/domain"
)

// Bridge is the submission surface the intent layer drives. It signs and
// submits transitions on behalf of the operator identity and exposes the
// event correlation queries the coordinator polls: the coordinator never
// touches the engine directly, matching how an off-chain service talks to
// an authoritative ledger through transactions and emitted events.
type Bridge struct {
	engine   *Engine
	operator string

	mu      sync.Mutex
	repayTx map[uint64]string
}

// NewBridge wraps an engine with the operator credential used for
// submissions.
func NewBridge(engine *Engine, operator string) *Bridge {
	return &Bridge{
		engine:   engine,
		operator: operator,
		repayTx:  make(map[uint64]string),
	}
}

// SubmitFund submits a funding transition and returns its transaction
// hash. The assigned invoice id is not returned here; callers correlate it
// through FundingByRef once the transition finalizes, so a slow or
// interrupted submission can always be reconciled later.
func (b *Bridge) SubmitFund(ctx context.Context, pool domain.PoolKind, smb string, face, advance uint64, feeBPS uint32, due time.Time, ref domain.RefHash) (string, error) {
	_, err := b.engine.FundInvoice(ctx, b.operator, FundRequest{
		Pool:          pool,
		SMBAddress:    smb,
		FaceAmount:    face,
		AdvanceAmount: advance,
		FeeBPS:        feeBPS,
		DueDate:       due,
		RefHash:       ref,
	})
	if err != nil {
		return "", err
	}
	return fundTxHash(ref), nil
}

// FundingByRef reports the invoice funded under a reference hash, if any.
func (b *Bridge) FundingByRef(ctx context.Context, ref domain.RefHash) (invoiceID uint64, txHash string, ok bool, err error) {
	inv, found := b.engine.FindInvoiceByRef(ref)
	if !found {
		return 0, "", false, nil
	}
	return inv.ID, fundTxHash(ref), true, nil
}

// SubmitRepay submits a repayment transition on behalf of the payer and
// records its transaction hash for settlement reconciliation.
func (b *Bridge) SubmitRepay(ctx context.Context, payer string, invoiceID, amount uint64) (string, RepaymentResult, error) {
	res, err := b.engine.RepayInvoice(ctx, b.operator, payer, invoiceID, amount)
	if err != nil {
		return "", RepaymentResult{}, err
	}
	tx := repayTxHash(invoiceID, res.Applied, time.Now())
	b.mu.Lock()
	b.repayTx[invoiceID] = tx
	b.mu.Unlock()
	return tx, res, nil
}

// RepaymentRecord reports whether an invoice has fully settled and the
// hash of the repayment transaction that closed it.
func (b *Bridge) RepaymentRecord(ctx context.Context, invoiceID uint64) (txHash string, repaid bool, err error) {
	inv, err := b.engine.GetInvoice(invoiceID)
	if err != nil {
		return "", false, err
	}
	if inv.Status != domain.InvoiceStatusRepaid {
		return "", false, nil
	}
	b.mu.Lock()
	tx := b.repayTx[invoiceID]
	b.mu.Unlock()
	if tx == "" {
		// Repaid through a flow that bypassed this bridge instance, e.g.
		// administrative repayment. Synthesize a stable hash from the
		// invoice record.
		tx = repayTxHash(invoiceID, inv.RepaidAmount, inv.DueDate)
	}
	return tx, true, nil
}

func fundTxHash(ref domain.RefHash) string {
	sum := sha256.Sum256([]byte("fund|" + ref.String()))
	return "0x" + hex.EncodeToString(sum[:])
}

func repayTxHash(invoiceID, applied uint64, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("repay|%d|%d|%d", invoiceID, applied, at.UnixNano())))
	return "0x" + hex.EncodeToString(sum[:])
}
