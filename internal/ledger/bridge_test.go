package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toluade/factorpool/internal/domain"
)

func TestBridgeSubmitFund(t *testing.T) {
	e, _ := newTestEngine(t)
	b := NewBridge(e, testOperator)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))

	req := fundReq("intent-1", 1000, 950, time.Now().Add(time.Hour))
	tx, err := b.SubmitFund(ctx, req.Pool, req.SMBAddress, req.FaceAmount, req.AdvanceAmount, req.FeeBPS, req.DueDate, req.RefHash)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx, "0x"))

	invoiceID, gotTx, ok, err := b.FundingByRef(ctx, req.RefHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), invoiceID)
	assert.Equal(t, tx, gotTx, "correlation returns the submission hash")

	// Distinct references map to distinct hashes.
	req2 := fundReq("intent-2", 500, 475, time.Now().Add(time.Hour))
	tx2, err := b.SubmitFund(ctx, req2.Pool, req2.SMBAddress, req2.FaceAmount, req2.AdvanceAmount, req2.FeeBPS, req2.DueDate, req2.RefHash)
	require.NoError(t, err)
	assert.NotEqual(t, tx, tx2)
}

func TestBridgeFundingByRefUnknown(t *testing.T) {
	e, _ := newTestEngine(t)
	b := NewBridge(e, testOperator)

	_, _, ok, err := b.FundingByRef(context.Background(), domain.RefHash{1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBridgeRepaymentRecord(t *testing.T) {
	e, _ := newTestEngine(t)
	b := NewBridge(e, testOperator)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))

	req := fundReq("intent-1", 1000, 950, time.Now().Add(time.Hour))
	_, err := b.SubmitFund(ctx, req.Pool, req.SMBAddress, req.FaceAmount, req.AdvanceAmount, req.FeeBPS, req.DueDate, req.RefHash)
	require.NoError(t, err)
	invoiceID, _, ok, err := b.FundingByRef(ctx, req.RefHash)
	require.NoError(t, err)
	require.True(t, ok)

	// Open invoice: no repayment record yet.
	_, repaid, err := b.RepaymentRecord(ctx, invoiceID)
	require.NoError(t, err)
	assert.False(t, repaid)

	// Partial repayment does not close the invoice.
	_, res, err := b.SubmitRepay(ctx, "payer-1", invoiceID, 400)
	require.NoError(t, err)
	assert.False(t, res.FullyRepaid)
	_, repaid, err = b.RepaymentRecord(ctx, invoiceID)
	require.NoError(t, err)
	assert.False(t, repaid)

	repayTx, res, err := b.SubmitRepay(ctx, "payer-1", invoiceID, 600)
	require.NoError(t, err)
	assert.True(t, res.FullyRepaid)

	gotTx, repaid, err := b.RepaymentRecord(ctx, invoiceID)
	require.NoError(t, err)
	assert.True(t, repaid)
	assert.Equal(t, repayTx, gotTx)

	_, _, err = b.RepaymentRecord(ctx, 999)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestBridgeRepaymentRecordSynthesizesMissingHash(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))

	req := fundReq("intent-1", 1000, 950, time.Now().Add(time.Hour))
	inv, err := e.FundInvoice(ctx, testOperator, req)
	require.NoError(t, err)

	// Repay directly on the engine, bypassing the bridge.
	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 1000)
	require.NoError(t, err)

	b := NewBridge(e, testOperator)
	tx, repaid, err := b.RepaymentRecord(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, repaid)
	assert.True(t, strings.HasPrefix(tx, "0x"))
}
