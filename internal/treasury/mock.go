package treasury

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// MockTreasury simulates the external settlement-asset rail. It can be
// tuned with artificial latency and a failure rate to exercise the
// ledger's abort paths.
type MockTreasury struct {
	// FailureRate is the probability (0.0 to 1.0) that a transfer is
	// rejected by the rail. Zero by default so tests stay deterministic.
	FailureRate float64
	// Latency is an artificial delay applied to every transfer.
	Latency time.Duration
}

// NewMockTreasury creates a mock with no latency and no failures.
func NewMockTreasury() *MockTreasury {
	return &MockTreasury{}
}

func (m *MockTreasury) PullDeposit(ctx context.Context, from string, amount uint64) error {
	return m.transfer(ctx, "pull_deposit", from, amount)
}

func (m *MockTreasury) Disburse(ctx context.Context, to string, amount uint64) error {
	return m.transfer(ctx, "disburse", to, amount)
}

func (m *MockTreasury) PullRepayment(ctx context.Context, from string, amount uint64) error {
	return m.transfer(ctx, "pull_repayment", from, amount)
}

func (m *MockTreasury) Refund(ctx context.Context, to string, amount uint64) error {
	return m.transfer(ctx, "refund", to, amount)
}

func (m *MockTreasury) transfer(ctx context.Context, op, counterparty string, amount uint64) error {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return fmt.Errorf("treasury %s canceled: %w", op, ctx.Err())
		}
	}
	if m.FailureRate > 0 && rand.Float64() < m.FailureRate {
		return fmt.Errorf("treasury %s of %d for %s rejected by rail", op, amount, counterparty)
	}
	return nil
}
