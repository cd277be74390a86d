package ledger

import (
	"context"
	"fmt"

	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/observability"
	"go.uber.org/zap"
)

// Deposit pulls amount of the settlement asset from the depositor into
// custody and credits the pool. The pull and the accounting update commit
// together: a rejected transfer leaves the pool untouched.
func (e *Engine) Deposit(ctx context.Context, pool domain.PoolKind, depositor string, amount uint64) error {
	if !pool.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPool, pool)
	}
	if amount == 0 {
		return ErrZeroAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.treasury.PullDeposit(ctx, depositor, amount); err != nil {
		return fmt.Errorf("deposit transfer: %w", err)
	}

	e.pools[pool].TotalDeposits += amount
	byPool, ok := e.deposits[depositor]
	if !ok {
		byPool = make(map[domain.PoolKind]uint64)
		e.deposits[depositor] = byPool
	}
	byPool[pool] += amount

	observability.ObserveDeposit(pool.String(), amount)
	observability.SetPoolGauges(pool.String(), e.pools[pool].TotalDeposits, e.pools[pool].TotalOutstanding)
	e.emit(domain.LiquidityAdded{Pool: pool, Depositor: depositor, Amount: amount})
	zap.L().Info("liquidity deposited",
		zap.Stringer("pool", pool),
		zap.String("depositor", depositor),
		zap.Uint64("amount", amount))
	return nil
}

// reserve marks advance capital as outstanding. Called with e.mu held,
// only from the funding transition.
func (e *Engine) reserve(pool domain.PoolKind, amount uint64) error {
	p := &e.pools[pool]
	available := p.TotalDeposits - p.TotalOutstanding
	if amount > available {
		return fmt.Errorf("%w: pool %s needs %d, available %d",
			ErrInsufficientLiquidity, pool, amount, available)
	}
	p.TotalOutstanding += amount
	return nil
}

// release returns reserved capital to the pool when an invoice fully
// settles. Called with e.mu held. The caller guarantees amount does not
// exceed the pool's outstanding; a violation is a fatal invariant breach,
// not a recoverable error.
func (e *Engine) release(pool domain.PoolKind, amount uint64) {
	p := &e.pools[pool]
	if amount > p.TotalOutstanding {
		panic(fmt.Sprintf("ledger: release of %d exceeds outstanding %d in pool %s",
			amount, p.TotalOutstanding, pool))
	}
	p.TotalOutstanding -= amount
}

// GetPool returns the deposits, outstanding and derived available
// liquidity for a pool.
func (e *Engine) GetPool(pool domain.PoolKind) (PoolSnapshot, error) {
	if !pool.Valid() {
		return PoolSnapshot{}, fmt.Errorf("%w: %d", ErrInvalidPool, pool)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(pool), nil
}

// GetUserDeposits returns a depositor's balance in a pool. An unknown
// depositor holds a zero balance; absence of a record is not an error.
func (e *Engine) GetUserDeposits(depositor string, pool domain.PoolKind) (uint64, error) {
	if !pool.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPool, pool)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deposits[depositor][pool], nil
}

// AdminSetOutstanding overwrites a pool's outstanding directly. This is a
// recovery escape hatch for correcting drift, restricted to the
// administrator and never used by normal flows. It refuses a value that
// would break conservation rather than silently violating it.
func (e *Engine) AdminSetOutstanding(ctx context.Context, caller string, pool domain.PoolKind, value uint64) error {
	if caller != e.admin {
		return fmt.Errorf("%w: admin override requires the administrator", ErrUnauthorized)
	}
	if !pool.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPool, pool)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := &e.pools[pool]
	if value > p.TotalDeposits {
		return fmt.Errorf("%w: pool %s has deposits %d, refusing outstanding %d",
			ErrOutstandingExceedsDeposits, pool, p.TotalDeposits, value)
	}

	previous := p.TotalOutstanding
	p.TotalOutstanding = value

	observability.SetPoolGauges(pool.String(), p.TotalDeposits, p.TotalOutstanding)
	e.emit(domain.OutstandingOverridden{Pool: pool, Previous: previous, Value: value})
	zap.L().Warn("outstanding overridden by administrator",
		zap.Stringer("pool", pool),
		zap.Uint64("previous", previous),
		zap.Uint64("value", value))
	return nil
}
