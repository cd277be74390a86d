package ledger

import (
	"sync"
	"time"

	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/treasury"
	"go.uber.org/zap"
)

// PoolState is the accounting record for one liquidity pool. TotalDeposits
// is the sum of all depositor balances; TotalOutstanding is the sum of
// advance amounts for invoices funded from the pool and not yet fully
// repaid. The conservation invariant TotalOutstanding <= TotalDeposits
// holds for every reachable state.
type PoolState struct {
	Kind             domain.PoolKind
	TotalDeposits    uint64
	TotalOutstanding uint64
}

// PoolSnapshot is the read model returned by pool queries. Available is
// always derived as TotalDeposits - TotalOutstanding after the invariant
// check, never stored.
type PoolSnapshot struct {
	Kind             domain.PoolKind `json:"pool"`
	TotalDeposits    uint64          `json:"total_deposits"`
	TotalOutstanding uint64          `json:"total_outstanding"`
	Available        uint64          `json:"available_liquidity"`
}

// Invoice is the authoritative funding record. All fields except
// RepaidAmount and Status are immutable after creation.
type Invoice struct {
	ID            uint64          `json:"id"`
	Pool          domain.PoolKind `json:"pool"`
	SMBAddress    string          `json:"smb_address"`
	FaceAmount    uint64          `json:"face_amount"`
	AdvanceAmount uint64          `json:"advance_amount"`
	FeeBPS        uint32          `json:"fee_bps"`
	RepaidAmount  uint64          `json:"repaid_amount"`
	DueDate       time.Time       `json:"due_date"`
	Status        string          `json:"status"`
	RefHash       domain.RefHash  `json:"ref_hash"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Engine owns all pool and invoice state and applies every mutation as a
// single atomic transition under one lock: concurrent callers observe a
// total order and never a partially updated pool or invoice. Custody moves
// through the treasury before state commits, so a failed transfer leaves
// the ledger untouched.
type Engine struct {
	mu sync.Mutex

	pools    [domain.PoolCount]PoolState
	deposits map[string]map[domain.PoolKind]uint64
	invoices map[uint64]*Invoice
	refIndex map[domain.RefHash]uint64
	nextID   uint64

	treasury treasury.Treasury
	operator string
	admin    string

	subs []chan domain.Event
	now  func() time.Time
}

// NewEngine creates a ledger engine. Operator is the only identity allowed
// to fund and repay invoices; admin is the only identity allowed to use
// the recovery override.
func NewEngine(t treasury.Treasury, operator, admin string) *Engine {
	e := &Engine{
		deposits: make(map[string]map[domain.PoolKind]uint64),
		invoices: make(map[uint64]*Invoice),
		refIndex: make(map[domain.RefHash]uint64),
		nextID:   1,
		treasury: t,
		operator: operator,
		admin:    admin,
		now:      time.Now,
	}
	for i := range e.pools {
		e.pools[i].Kind = domain.PoolKind(i)
	}
	return e
}

// WithClock overrides the engine clock, used by tests to control due-date
// validation.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Subscribe registers a buffered event channel. Events are emitted after
// the transition commits; a full subscriber channel drops the event rather
// than blocking the ledger.
func (e *Engine) Subscribe(buffer int) <-chan domain.Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan domain.Event, buffer)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// emit fans an event out to subscribers. Called with e.mu held, after the
// state mutation it describes.
func (e *Engine) emit(ev domain.Event) {
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			zap.L().Warn("ledger event dropped, subscriber backlog full",
				zap.String("event", ev.EventName()))
		}
	}
}

func (e *Engine) snapshotLocked(kind domain.PoolKind) PoolSnapshot {
	p := e.pools[kind]
	if p.TotalOutstanding > p.TotalDeposits {
		// No public operation can put a pool here; queries must still
		// never fabricate a negative availability.
		zap.L().Error("pool conservation invariant violated",
			zap.Stringer("pool", kind),
			zap.Uint64("deposits", p.TotalDeposits),
			zap.Uint64("outstanding", p.TotalOutstanding))
		return PoolSnapshot{Kind: kind, TotalDeposits: p.TotalDeposits, TotalOutstanding: p.TotalOutstanding}
	}
	return PoolSnapshot{
		Kind:             kind,
		TotalDeposits:    p.TotalDeposits,
		TotalOutstanding: p.TotalOutstanding,
		Available:        p.TotalDeposits - p.TotalOutstanding,
	}
}

// Pools returns a snapshot of every pool, used by the conservation audit.
func (e *Engine) Pools() []PoolSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PoolSnapshot, 0, domain.PoolCount)
	for i := range e.pools {
		out = append(out, e.snapshotLocked(domain.PoolKind(i)))
	}
	return out
}
