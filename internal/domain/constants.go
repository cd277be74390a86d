package domain

import "fmt"

// PoolKind identifies one of the fixed liquidity pools. The set is closed:
// invoices are priced against a risk tier, never an arbitrary pool id.
type PoolKind int32

const (
	PoolPrime PoolKind = iota
	PoolStandard
	PoolHighYield
)

// PoolCount is the number of liquidity pools. Pool ids are 0..PoolCount-1.
const PoolCount = 3

// Valid reports whether k is inside the closed pool enumeration.
func (k PoolKind) Valid() bool {
	return k >= PoolPrime && k < PoolCount
}

func (k PoolKind) String() string {
	switch k {
	case PoolPrime:
		return "prime"
	case PoolStandard:
		return "standard"
	case PoolHighYield:
		return "high_yield"
	default:
		return fmt.Sprintf("pool(%d)", int32(k))
	}
}

const (
	InvoiceStatusFunded = "FUNDED"
	InvoiceStatusRepaid = "REPAID"

	IntentStatusPending   = "PENDING"
	IntentStatusFunded    = "FUNDED"
	IntentStatusSettled   = "SETTLED"
	IntentStatusCancelled = "CANCELLED"

	RoleDepositor = "depositor"
	RoleOperator  = "operator"
	RoleAdmin     = "admin"
)

// MaxFeeBPS caps the basis-point fee an intent may carry. A fee of 10000
// bps would zero out the advance entirely.
const MaxFeeBPS = 10_000
