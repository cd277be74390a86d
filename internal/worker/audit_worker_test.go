package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/ledger"
	"github.com/toluade/factorpool/internal/treasury"
)

func TestAuditRunOnceHealthyPools(t *testing.T) {
	engine := ledger.NewEngine(treasury.NewMockTreasury(), testOperator, testAdmin)
	ctx := context.Background()
	w := NewAuditWorker(engine)

	assert.Zero(t, w.RunOnce(ctx), "empty pools conserve trivially")

	require.NoError(t, engine.Deposit(ctx, domain.PoolPrime, "alice", 10_000))
	_, err := engine.FundInvoice(ctx, testOperator, ledger.FundRequest{
		Pool:          domain.PoolPrime,
		SMBAddress:    "smb-1",
		FaceAmount:    1000,
		AdvanceAmount: 950,
		FeeBPS:        500,
		DueDate:       time.Now().Add(time.Hour),
		RefHash:       domain.ReferenceHash("intent-1", "smb-1", 1000, time.Now().Add(time.Hour), domain.PoolPrime),
	})
	require.NoError(t, err)

	assert.Zero(t, w.RunOnce(ctx), "funded invoices never push outstanding past deposits")
}

func TestAuditRunOnceAfterAdminOverride(t *testing.T) {
	engine := ledger.NewEngine(treasury.NewMockTreasury(), testOperator, testAdmin)
	ctx := context.Background()
	require.NoError(t, engine.Deposit(ctx, domain.PoolStandard, "alice", 5000))

	// The override path itself refuses values that would breach
	// conservation, so the audit stays clean afterwards.
	require.NoError(t, engine.AdminSetOutstanding(ctx, testAdmin, domain.PoolStandard, 5000))
	assert.ErrorIs(t,
		engine.AdminSetOutstanding(ctx, testAdmin, domain.PoolStandard, 5001),
		ledger.ErrOutstandingExceedsDeposits)

	w := NewAuditWorker(engine)
	assert.Zero(t, w.RunOnce(ctx))
}

func TestAuditWorkerStopIdempotent(t *testing.T) {
	engine := ledger.NewEngine(treasury.NewMockTreasury(), testOperator, testAdmin)
	w := NewAuditWorker(engine).WithInterval(time.Millisecond)

	stop := w.Run(context.Background())
	stop()
	w.Stop()
}
