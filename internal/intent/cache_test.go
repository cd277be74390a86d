package intent

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toluade/factorpool/internal/domain"
)

func TestCachedStoreNilClientDegradesToInner(t *testing.T) {
	s := NewCachedStore(NewMemoryStore(), nil, time.Minute)
	ctx := context.Background()

	it := newTestIntent(uuid.NewString())
	require.NoError(t, s.Insert(ctx, it))

	got, err := s.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.RefHash, got.RefHash)

	require.NoError(t, s.MarkFunded(ctx, it.ID, "0xfund", 1))
	got, err = s.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusFunded, got.Status)
}

func setupRedis(t *testing.T) redis.Cmdable {
	t.Helper()
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestCachedStoreReadThrough(t *testing.T) {
	client := setupRedis(t)
	inner := NewMemoryStore()
	s := NewCachedStore(inner, client, time.Minute)
	ctx := context.Background()

	it := newTestIntent(uuid.NewString())
	require.NoError(t, s.Insert(ctx, it))

	// The insert warmed the cache; a read served from redis matches the
	// stored record even after the backing copy changes underneath.
	require.NoError(t, inner.MarkCancelled(ctx, it.ID))
	got, err := s.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusPending, got.Status)
}

func TestCachedStoreInvalidatesOnTransition(t *testing.T) {
	client := setupRedis(t)
	s := NewCachedStore(NewMemoryStore(), client, time.Minute)
	ctx := context.Background()

	it := newTestIntent(uuid.NewString())
	require.NoError(t, s.Insert(ctx, it))

	require.NoError(t, s.MarkFunded(ctx, it.ID, "0xfund", 9))
	got, err := s.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusFunded, got.Status, "transition must evict the cached Pending copy")
	require.NotNil(t, got.InvoiceID)
	assert.Equal(t, uint64(9), *got.InvoiceID)
}
