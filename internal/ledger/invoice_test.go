package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toluade/factorpool/internal/domain"
)

func fundReq(intentID string, face, advance uint64, due time.Time) FundRequest {
	return FundRequest{
		Pool:          domain.PoolPrime,
		SMBAddress:    "smb-1",
		FaceAmount:    face,
		AdvanceAmount: advance,
		FeeBPS:        500,
		DueDate:       due,
		RefHash:       domain.ReferenceHash(intentID, "smb-1", face, due, domain.PoolPrime),
	}
}

func TestFundInvoice(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))

	events := e.Subscribe(8)

	due := time.Now().Add(30 * 24 * time.Hour)
	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), inv.ID)
	assert.Equal(t, domain.InvoiceStatusFunded, inv.Status)
	assert.Equal(t, uint64(1000), inv.FaceAmount)
	assert.Equal(t, uint64(950), inv.AdvanceAmount)
	assert.Zero(t, inv.RepaidAmount)
	requirePool(t, e, domain.PoolPrime, 10_000, 950, 9050)

	got, err := e.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv, got)

	byRef, ok := e.FindInvoiceByRef(inv.RefHash)
	require.True(t, ok)
	assert.Equal(t, inv.ID, byRef.ID)

	ev := <-events
	funded, ok := ev.(domain.InvoiceFunded)
	require.True(t, ok, "expected InvoiceFunded, got %T", ev)
	assert.Equal(t, inv.ID, funded.InvoiceID)
	assert.Equal(t, uint64(950), funded.AdvanceAmount)

	// Ids are sequential.
	inv2, err := e.FundInvoice(ctx, testOperator, fundReq("intent-2", 500, 475, due))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), inv2.ID)
}

func TestFundInvoiceValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	t.Run("unauthorized caller", func(t *testing.T) {
		_, err := e.FundInvoice(ctx, "intruder", fundReq("intent-1", 1000, 950, due))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("invalid pool", func(t *testing.T) {
		req := fundReq("intent-1", 1000, 950, due)
		req.Pool = domain.PoolKind(9)
		_, err := e.FundInvoice(ctx, testOperator, req)
		assert.ErrorIs(t, err, ErrInvalidPool)
	})

	t.Run("zero face", func(t *testing.T) {
		_, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 0, 0, due))
		assert.ErrorIs(t, err, ErrInvalidFaceAmount)
	})

	t.Run("zero advance", func(t *testing.T) {
		_, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 0, due))
		assert.ErrorIs(t, err, ErrInvalidAdvanceAmount)
	})

	t.Run("advance above face", func(t *testing.T) {
		_, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 1001, due))
		assert.ErrorIs(t, err, ErrInvalidAdvanceAmount)
	})

	t.Run("due date in the past", func(t *testing.T) {
		_, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, time.Now().Add(-time.Minute)))
		assert.ErrorIs(t, err, ErrDueDateNotFuture)
	})

	// No validation failure touched the pool.
	requirePool(t, e, domain.PoolPrime, 10_000, 0, 10_000)
}

func TestFundInvoiceDueDateUsesEngineClock(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))

	frozen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e.WithClock(func() time.Time { return frozen })

	_, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, frozen))
	assert.ErrorIs(t, err, ErrDueDateNotFuture, "due date equal to now is not in the future")

	_, err = e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, frozen.Add(time.Second)))
	assert.NoError(t, err)
}

func TestFundInvoiceInsufficientLiquidity(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 500))
	due := time.Now().Add(time.Hour)

	_, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	// No invoice record was created.
	_, err = e.GetInvoice(1)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
	requirePool(t, e, domain.PoolPrime, 500, 0, 500)

	// Funding that consumes the exact remaining liquidity succeeds.
	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-2", 500, 500, due))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), inv.ID)
	requirePool(t, e, domain.PoolPrime, 500, 500, 0)
}

func TestFundInvoiceDuplicateReference(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	_, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	require.NoError(t, err)

	_, err = e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	assert.ErrorIs(t, err, ErrDuplicateReference)
	requirePool(t, e, domain.PoolPrime, 10_000, 950, 9050)
}

func TestFundInvoiceDisbursementFailureLeavesStateUntouched(t *testing.T) {
	e, tr := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))

	tr.failDisburse = true
	req := fundReq("intent-1", 1000, 950, time.Now().Add(time.Hour))
	_, err := e.FundInvoice(ctx, testOperator, req)
	require.ErrorIs(t, err, errRailRejected)

	requirePool(t, e, domain.PoolPrime, 10_000, 0, 10_000)
	_, ok := e.FindInvoiceByRef(req.RefHash)
	assert.False(t, ok)

	// The reference stays usable once the rail recovers.
	tr.failDisburse = false
	_, err = e.FundInvoice(ctx, testOperator, req)
	assert.NoError(t, err)
}

func TestRepayInvoiceFull(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	require.NoError(t, err)

	res, err := e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, RepaymentResult{InvoiceID: inv.ID, Applied: 1000, Excess: 0, FullyRepaid: true}, res)

	got, err := e.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusRepaid, got.Status)
	assert.Equal(t, uint64(1000), got.RepaidAmount)
	requirePool(t, e, domain.PoolPrime, 10_000, 0, 10_000)
}

func TestRepayInvoicePartialKeepsOutstanding(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	require.NoError(t, err)

	res, err := e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), res.Applied)
	assert.False(t, res.FullyRepaid)

	// Outstanding is released only at completion, never pro rata.
	requirePool(t, e, domain.PoolPrime, 10_000, 950, 9050)

	res, err = e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 600)
	require.NoError(t, err)
	assert.True(t, res.FullyRepaid)
	requirePool(t, e, domain.PoolPrime, 10_000, 0, 10_000)
}

func TestRepayInvoiceExcessRefunded(t *testing.T) {
	e, tr := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 500, 475, due))
	require.NoError(t, err)

	res, err := e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 600)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.Applied)
	assert.Equal(t, uint64(100), res.Excess)
	assert.True(t, res.FullyRepaid)

	got, err := e.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), got.RepaidAmount, "recorded repayment never exceeds face")
	assert.Equal(t, []uint64{100}, tr.refunds)
	requirePool(t, e, domain.PoolPrime, 10_000, 0, 10_000)
}

func TestRepayInvoiceAlreadyRepaid(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	require.NoError(t, err)
	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 1000)
	require.NoError(t, err)

	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 100)
	assert.ErrorIs(t, err, ErrAlreadyRepaid)

	// The rejected repayment changed nothing.
	got, err := e.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got.RepaidAmount)
	requirePool(t, e, domain.PoolPrime, 10_000, 0, 10_000)
}

func TestRepayInvoiceValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RepayInvoice(ctx, "intruder", "payer-1", 1, 100)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", 1, 0)
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", 42, 100)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestRepayInvoiceCollectionFailureLeavesStateUntouched(t *testing.T) {
	e, tr := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	require.NoError(t, err)

	tr.failPullRepayment = true
	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 400)
	require.ErrorIs(t, err, errRailRejected)

	got, err := e.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RepaidAmount)
	assert.Equal(t, domain.InvoiceStatusFunded, got.Status)
	requirePool(t, e, domain.PoolPrime, 10_000, 950, 9050)
}

func TestRepayInvoiceRefundFailureUnwindsCollection(t *testing.T) {
	e, tr := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 500, 475, due))
	require.NoError(t, err)

	tr.failRefunds = 2
	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 600)
	require.Error(t, err)

	got, err := e.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RepaidAmount)
	assert.Equal(t, domain.InvoiceStatusFunded, got.Status)
	requirePool(t, e, domain.PoolPrime, 10_000, 475, 9525)
}

func TestRepayInvoiceUnwindReturnsFullPulledAmount(t *testing.T) {
	e, tr := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 500, 475, due))
	require.NoError(t, err)

	// The excess refund is rejected but the compensating refund succeeds.
	// The payer must get back everything that was pulled, not just the
	// applied portion; anything less strands money in custody.
	tr.failRefunds = 1
	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 600)
	require.ErrorIs(t, err, errRailRejected)
	assert.Equal(t, []uint64{600}, tr.refunds)

	got, err := e.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RepaidAmount)
	assert.Equal(t, domain.InvoiceStatusFunded, got.Status)
	requirePool(t, e, domain.PoolPrime, 10_000, 475, 9525)
}

func TestRepayEmitsEvent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	due := time.Now().Add(time.Hour)

	inv, err := e.FundInvoice(ctx, testOperator, fundReq("intent-1", 1000, 950, due))
	require.NoError(t, err)

	events := e.Subscribe(8)
	_, err = e.RepayInvoice(ctx, testOperator, "payer-1", inv.ID, 1000)
	require.NoError(t, err)

	ev := <-events
	repaid, ok := ev.(domain.InvoiceRepaid)
	require.True(t, ok, "expected InvoiceRepaid, got %T", ev)
	assert.Equal(t, inv.ID, repaid.InvoiceID)
	assert.Equal(t, "payer-1", repaid.Payer)
	assert.Equal(t, uint64(1000), repaid.Applied)
	assert.True(t, repaid.FullyRepaid)
}

func TestPoolsSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Deposit(ctx, domain.PoolStandard, "alice", 2000))
	require.NoError(t, e.Deposit(ctx, domain.PoolHighYield, "bob", 3000))

	snaps := e.Pools()
	require.Len(t, snaps, domain.PoolCount)
	assert.Equal(t, uint64(0), snaps[domain.PoolPrime].TotalDeposits)
	assert.Equal(t, uint64(2000), snaps[domain.PoolStandard].TotalDeposits)
	assert.Equal(t, uint64(3000), snaps[domain.PoolHighYield].TotalDeposits)
}
