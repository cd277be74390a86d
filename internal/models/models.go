package models

import (
	"time"

	"github.com/toluade/factorpool/internal/domain"
)

// Intent is the off-chain pre-funding record capturing the pricing terms a
// client agreed to before any capital moves. It is created before the
// funding transaction and mutated only when confirmed ledger events are
// observed, never directly by a client request.
type Intent struct {
	ID            string          `json:"intent_id"`
	SMBAddress    string          `json:"smb_address"`
	FaceAmount    uint64          `json:"face_amount"`
	AdvanceAmount uint64          `json:"advance_amount"`
	FeeBPS        uint32          `json:"fee_bps"`
	Pool          domain.PoolKind `json:"pool"`
	DueDate       time.Time       `json:"due_date"`
	RefHash       domain.RefHash  `json:"ref_hash"`
	Status        string          `json:"status"`
	TxHash        string          `json:"tx_hash,omitempty"`
	InvoiceID     *uint64         `json:"onchain_invoice_id,omitempty"`
	RepayTxHash   string          `json:"repay_tx_hash,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Funded reports whether the intent has progressed past Pending.
func (i *Intent) Funded() bool {
	return i.Status == domain.IntentStatusFunded || i.Status == domain.IntentStatusSettled
}
