package intent

import (
	"context"
	"errors"

	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/models"
)

var (
	// ErrNotFound is returned when no intent matches the lookup key.
	ErrNotFound = errors.New("intent not found")
	// ErrDuplicateReference is returned when an insert collides with an
	// existing intent's reference hash.
	ErrDuplicateReference = errors.New("an intent with this reference hash already exists")
	// ErrNotCancellable is returned when cancelling an intent that has
	// already progressed past Pending.
	ErrNotCancellable = errors.New("only pending intents can be cancelled")
)

// Store persists intent records. Insert must be conditional on ref_hash
// uniqueness as a single atomic check-and-insert: two concurrent creators
// of the same reference hash must never both succeed.
type Store interface {
	Insert(ctx context.Context, it *models.Intent) error
	GetByID(ctx context.Context, intentID string) (*models.Intent, error)
	GetByRefHash(ctx context.Context, ref domain.RefHash) (*models.Intent, error)
	GetByInvoiceID(ctx context.Context, invoiceID uint64) (*models.Intent, error)
	// ListByStatus returns up to limit intents in the given status,
	// oldest first, for reconciliation sweeps.
	ListByStatus(ctx context.Context, status string, limit int32) ([]*models.Intent, error)
	// MarkFunded transitions Pending -> Funded, recording the funding
	// transaction hash and the assigned invoice id.
	MarkFunded(ctx context.Context, intentID, txHash string, invoiceID uint64) error
	// MarkSettled transitions Funded -> Settled, recording the repayment
	// transaction hash.
	MarkSettled(ctx context.Context, intentID, repayTxHash string) error
	// MarkCancelled transitions Pending -> Cancelled. Returns
	// ErrNotCancellable once the intent has been funded.
	MarkCancelled(ctx context.Context, intentID string) error
}
