package domain

import "time"

// Event is a ledger state-transition notification. Each transition that
// mutates pool or invoice state emits exactly one tagged event variant;
// consumers switch on the concrete type instead of re-parsing opaque logs.
type Event interface {
	EventName() string
}

// LiquidityAdded is emitted when a deposit lands in a pool.
type LiquidityAdded struct {
	Pool      PoolKind
	Depositor string
	Amount    uint64
}

func (LiquidityAdded) EventName() string { return "liquidity_added" }

// InvoiceFunded is emitted when an invoice is created and its advance
// disbursed. InvoiceID is the newly assigned sequential id.
type InvoiceFunded struct {
	InvoiceID     uint64
	Pool          PoolKind
	SMBAddress    string
	FaceAmount    uint64
	AdvanceAmount uint64
	FeeBPS        uint32
	DueDate       time.Time
	RefHash       RefHash
}

func (InvoiceFunded) EventName() string { return "invoice_funded" }

// InvoiceRepaid is emitted for every accepted repayment, partial or final.
type InvoiceRepaid struct {
	InvoiceID   uint64
	Payer       string
	Applied     uint64
	Excess      uint64
	FullyRepaid bool
}

func (InvoiceRepaid) EventName() string { return "invoice_repaid" }

// OutstandingOverridden is emitted by the administrative recovery path.
type OutstandingOverridden struct {
	Pool     PoolKind
	Previous uint64
	Value    uint64
}

func (OutstandingOverridden) EventName() string { return "outstanding_overridden" }
