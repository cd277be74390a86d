package intent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/models"
)

// MemoryStore is an in-process Store for tests and single-node runs. One
// mutex covers the duplicate check and the insert, so the check-and-insert
// is atomic by construction.
type MemoryStore struct {
	mu        sync.Mutex
	byID      map[string]*models.Intent
	byRef     map[domain.RefHash]string
	byInvoice map[uint64]string
}

// NewMemoryStore creates an empty in-memory intent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]*models.Intent),
		byRef:     make(map[domain.RefHash]string),
		byInvoice: make(map[uint64]string),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, it *models.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byRef[it.RefHash]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, it.RefHash)
	}
	clone := *it
	s.byID[clone.ID] = &clone
	s.byRef[clone.RefHash] = clone.ID
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, intentID string) (*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked(intentID)
}

func (s *MemoryStore) GetByRefHash(ctx context.Context, ref domain.RefHash) (*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return s.cloneLocked(id)
}

func (s *MemoryStore) GetByInvoiceID(ctx context.Context, invoiceID uint64) (*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byInvoice[invoiceID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.cloneLocked(id)
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status string, limit int32) ([]*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Intent
	for _, it := range s.byID {
		if it.Status == status {
			clone := *it
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkFunded(ctx context.Context, intentID, txHash string, invoiceID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.byID[intentID]
	if !ok {
		return ErrNotFound
	}
	it.Status = domain.IntentStatusFunded
	it.TxHash = txHash
	it.InvoiceID = &invoiceID
	it.UpdatedAt = time.Now()
	s.byInvoice[invoiceID] = intentID
	return nil
}

func (s *MemoryStore) MarkSettled(ctx context.Context, intentID, repayTxHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.byID[intentID]
	if !ok {
		return ErrNotFound
	}
	it.Status = domain.IntentStatusSettled
	it.RepayTxHash = repayTxHash
	it.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) MarkCancelled(ctx context.Context, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.byID[intentID]
	if !ok {
		return ErrNotFound
	}
	if it.Status != domain.IntentStatusPending {
		return fmt.Errorf("%w: status %s", ErrNotCancellable, it.Status)
	}
	it.Status = domain.IntentStatusCancelled
	it.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) cloneLocked(intentID string) (*models.Intent, error) {
	it, ok := s.byID[intentID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *it
	if it.InvoiceID != nil {
		id := *it.InvoiceID
		clone.InvoiceID = &id
	}
	return &clone, nil
}
