package ledger

import "errors"

// Sentinel errors for ledger operations. Every rejection names the
// precondition that failed so callers can surface an actionable message.
var (
	ErrInvalidPool                = errors.New("invalid pool id")
	ErrZeroAmount                 = errors.New("amount must be greater than zero")
	ErrInsufficientLiquidity      = errors.New("insufficient pool liquidity")
	ErrInvoiceNotFound            = errors.New("invoice not found")
	ErrAlreadyRepaid              = errors.New("invoice already fully repaid")
	ErrDuplicateReference         = errors.New("reference hash already used by an existing invoice")
	ErrDueDateNotFuture           = errors.New("due date must be in the future")
	ErrInvalidFaceAmount          = errors.New("face amount must be greater than zero")
	ErrInvalidAdvanceAmount       = errors.New("advance amount must be positive and not exceed face amount")
	ErrUnauthorized               = errors.New("caller is not authorized for this operation")
	ErrOutstandingExceedsDeposits = errors.New("outstanding cannot exceed total deposits")
)
