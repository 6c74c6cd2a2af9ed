package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukahub/dukahub/internal/shared"
)

type memKeyStore struct {
	keys    map[string]bool
	deleted []string
}

func newMemKeyStore() *memKeyStore {
	return &memKeyStore{keys: map[string]bool{}}
}

func (m *memKeyStore) CheckAndInsert(_ context.Context, key, module string) error {
	id := key + "|" + module
	if m.keys[id] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[id] = true
	return nil
}

func (m *memKeyStore) Delete(_ context.Context, key, module string) error {
	id := key + "|" + module
	delete(m.keys, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func post(t *testing.T, handler http.Handler, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	store := newMemKeyStore()
	handler := Idempotency(store, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := post(t, handler, "/api/v1/sales", "k1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = post(t, handler, "/api/v1/sales", "k1")
	require.Equal(t, http.StatusConflict, rec.Code)

	// Same key against a different module is a fresh claim.
	rec = post(t, handler, "/api/v1/expenses", "k1")
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotencyReleasesClaimScopedToModule(t *testing.T) {
	store := newMemKeyStore()
	fail := true
	handler := Idempotency(store, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	// The same key is already claimed under another module; a server-side
	// failure must only release the claim for the failing path.
	require.NoError(t, store.CheckAndInsert(context.Background(), "k1", "/api/v1/expenses"))

	rec := post(t, handler, "/api/v1/sales", "k1")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, []string{"k1|/api/v1/sales"}, store.deleted)
	require.True(t, store.keys["k1|/api/v1/expenses"])

	fail = false
	rec = post(t, handler, "/api/v1/sales", "k1")
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotencySkipsReadsAndMissingKey(t *testing.T) {
	store := newMemKeyStore()
	handler := Idempotency(store, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	req.Header.Set(IdempotencyHeader, "k1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, store.keys)

	rec = post(t, handler, "/api/v1/sales", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, store.keys)
}
