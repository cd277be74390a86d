package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/toluade/factorpool/internal/idempotency"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestIdempotencyNilStorePassesThrough(t *testing.T) {
	h := IdempotencyMiddleware(nil, zap.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/intents", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdempotencyReadsPassThrough(t *testing.T) {
	store := idempotency.NewStore(nil, nil, 0)
	h := IdempotencyMiddleware(store, zap.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/pools/0", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdempotencyMissingKeyRejected(t *testing.T) {
	store := idempotency.NewStore(nil, nil, 0)
	h := IdempotencyMiddleware(store, zap.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/intents", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestHashRequestDistinguishesBodies(t *testing.T) {
	a := hashRequest(http.MethodPost, "/v1/intents", []byte(`{"a":1}`))
	b := hashRequest(http.MethodPost, "/v1/intents", []byte(`{"a":2}`))
	c := hashRequest(http.MethodPost, "/v1/other", []byte(`{"a":1}`))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, hashRequest(http.MethodPost, "/v1/intents", []byte(`{"a":1}`)))
}
