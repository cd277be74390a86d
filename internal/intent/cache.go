package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/models"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "intent"

// CachedStore layers a redis read-through cache over a Store. Intent
// records are cached by id with a TTL; mutations write through to the
// backing store and invalidate the cached copy. A missing or unhealthy
// redis degrades to the backing store.
type CachedStore struct {
	inner Store
	redis redis.Cmdable
	ttl   time.Duration
}

// NewCachedStore wraps a store with a redis cache. A nil client disables
// caching entirely.
func NewCachedStore(inner Store, client redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, redis: client, ttl: ttl}
}

func (s *CachedStore) Insert(ctx context.Context, it *models.Intent) error {
	if err := s.inner.Insert(ctx, it); err != nil {
		return err
	}
	s.cache(ctx, it)
	return nil
}

func (s *CachedStore) GetByID(ctx context.Context, intentID string) (*models.Intent, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, cacheKey(intentID)).Result()
		if err == nil {
			var it models.Intent
			if json.Unmarshal([]byte(val), &it) == nil {
				return &it, nil
			}
		} else if err != redis.Nil {
			zap.L().Warn("redis intent lookup failed", zap.Error(err))
		}
	}
	it, err := s.inner.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, it)
	return it, nil
}

func (s *CachedStore) GetByRefHash(ctx context.Context, ref domain.RefHash) (*models.Intent, error) {
	return s.inner.GetByRefHash(ctx, ref)
}

func (s *CachedStore) GetByInvoiceID(ctx context.Context, invoiceID uint64) (*models.Intent, error) {
	return s.inner.GetByInvoiceID(ctx, invoiceID)
}

func (s *CachedStore) ListByStatus(ctx context.Context, status string, limit int32) ([]*models.Intent, error) {
	return s.inner.ListByStatus(ctx, status, limit)
}

func (s *CachedStore) MarkFunded(ctx context.Context, intentID, txHash string, invoiceID uint64) error {
	if err := s.inner.MarkFunded(ctx, intentID, txHash, invoiceID); err != nil {
		return err
	}
	s.invalidate(ctx, intentID)
	return nil
}

func (s *CachedStore) MarkSettled(ctx context.Context, intentID, repayTxHash string) error {
	if err := s.inner.MarkSettled(ctx, intentID, repayTxHash); err != nil {
		return err
	}
	s.invalidate(ctx, intentID)
	return nil
}

func (s *CachedStore) MarkCancelled(ctx context.Context, intentID string) error {
	if err := s.inner.MarkCancelled(ctx, intentID); err != nil {
		return err
	}
	s.invalidate(ctx, intentID)
	return nil
}

func (s *CachedStore) cache(ctx context.Context, it *models.Intent) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(it)
	if err != nil {
		zap.L().Warn("marshal intent cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, cacheKey(it.ID), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis intent cache set failed", zap.Error(err))
	}
}

func (s *CachedStore) invalidate(ctx context.Context, intentID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cacheKey(intentID)).Err(); err != nil {
		zap.L().Warn("redis intent cache invalidation failed", zap.Error(err))
	}
}

func cacheKey(intentID string) string {
	return fmt.Sprintf("%s:%s", cacheKeyPrefix, intentID)
}
