package treasury

import "context"

// Treasury moves the settlement asset between external identities and
// ledger custody. The ledger treats it as a transactional capability: a
// transfer error aborts the surrounding state transition, so the
// implementation must either fully move funds or leave them untouched.
type Treasury interface {
	// PullDeposit collects a liquidity deposit from a depositor.
	PullDeposit(ctx context.Context, from string, amount uint64) error
	// Disburse pushes an invoice advance to the SMB beneficiary.
	Disburse(ctx context.Context, to string, amount uint64) error
	// PullRepayment collects a repayment from the payer.
	PullRepayment(ctx context.Context, from string, amount uint64) error
	// Refund returns funds to an identity, used for repayment excess and
	// for unwinding a partially applied collection.
	Refund(ctx context.Context, to string, amount uint64) error
}
