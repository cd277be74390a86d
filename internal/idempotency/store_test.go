package idempotency

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), connString)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store := NewStore(nil, db, time.Minute)
	require.NoError(t, store.EnsureSchema(context.Background()))
	_, err = db.Exec(context.Background(), "TRUNCATE TABLE idempotency_keys")
	require.NoError(t, err)
	return store
}

func TestReserveFinalizeLookup(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	key := uuid.NewString()
	hash := "req-hash-1"

	reserved, err := s.Reserve(ctx, key, hash, http.MethodPost, "/v1/intents")
	require.NoError(t, err)
	assert.True(t, reserved)

	// While in progress, lookups report that rather than replaying.
	_, err = s.Lookup(ctx, key, hash)
	assert.ErrorIs(t, err, ErrInProgress)

	_, err = s.Finalize(ctx, key, hash, http.StatusCreated, []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)

	rec, err := s.Lookup(ctx, key, hash)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Status)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Body))
	assert.Equal(t, "application/json", rec.ContentType)
}

func TestReserveSecondClaimLoses(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	reserved, err := s.Reserve(ctx, key, "hash", http.MethodPost, "/v1/intents")
	require.NoError(t, err)
	require.True(t, reserved)

	reserved, err = s.Reserve(ctx, key, "hash", http.MethodPost, "/v1/intents")
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestLookupHashMismatch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	reserved, err := s.Reserve(ctx, key, "hash-a", http.MethodPost, "/v1/intents")
	require.NoError(t, err)
	require.True(t, reserved)
	_, err = s.Finalize(ctx, key, "hash-a", http.StatusOK, nil, "application/json")
	require.NoError(t, err)

	_, err = s.Lookup(ctx, key, "hash-b")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestLookupUnknownKey(t *testing.T) {
	s := setupStore(t)
	_, err := s.Lookup(context.Background(), uuid.NewString(), "hash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWaitForCompletion(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	key := uuid.NewString()
	hash := "req-hash"

	reserved, err := s.Reserve(ctx, key, hash, http.MethodPost, "/v1/intents")
	require.NoError(t, err)
	require.True(t, reserved)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_, _ = s.Finalize(ctx, key, hash, http.StatusOK, []byte(`{}`), "application/json")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rec, err := s.WaitForCompletion(waitCtx, key, hash)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Status)
}

func TestFinalizeUnknownKey(t *testing.T) {
	s := setupStore(t)
	_, err := s.Finalize(context.Background(), uuid.NewString(), "hash", http.StatusOK, nil, "application/json")
	assert.ErrorIs(t, err, ErrNotFound)
}
