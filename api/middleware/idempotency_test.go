package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/northcart/storefront-backend/pkg/logger"
)

type memIdempotencyStore struct {
	values map[string]string
	loseNX bool
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{values: map[string]string{}}
}

func (m *memIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memIdempotencyStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.loseNX {
		return false, nil
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (m *memIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
}

func checkoutRequest(key string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"amount":1}`))
	if key != "" {
		r.Header.Set("Idempotency-Key", key)
	}
	return r
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemIdempotencyStore()
	calls := 0
	handler := Idempotency(store, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequest("key-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, checkoutRequest("key-1"))
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want 201", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body = %q, want %q", second.Body.String(), first.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyRejectsInFlightKey(t *testing.T) {
	store := newMemIdempotencyStore()
	calls := 0
	handler := Idempotency(store, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	// first request crashed mid-handler and left its reservation behind
	marker, err := json.Marshal(idempotencyRecord{RequestHash: hashBody([]byte(`{"amount":1}`)), InFlight: true})
	if err != nil {
		t.Fatalf("marshal marker: %v", err)
	}
	key := store.IdempotencyKey("POST|/api/v1/checkout", "key-1")
	store.values[key] = string(marker)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, checkoutRequest("key-1"))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if calls != 0 {
		t.Fatal("handler must not run while the key is in flight")
	}
}

func TestIdempotencyLosingReservationRaceConflicts(t *testing.T) {
	store := newMemIdempotencyStore()
	store.loseNX = true
	calls := 0
	handler := Idempotency(store, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, checkoutRequest("key-1"))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if calls != 0 {
		t.Fatal("handler must not run when another request holds the key")
	}
}

func TestIdempotencyFreesKeyOnServerError(t *testing.T) {
	store := newMemIdempotencyStore()
	calls := 0
	handler := Idempotency(store, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequest("key-1"))
	if first.Code != http.StatusBadGateway {
		t.Fatalf("first status = %d, want 502", first.Code)
	}

	// the 5xx response is not recorded; a retry executes again
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, checkoutRequest("key-1"))
	if second.Code != http.StatusCreated {
		t.Fatalf("retry status = %d, want 201", second.Code)
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := newMemIdempotencyStore()
	handler := Idempotency(store, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequest("key-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"amount":2}`))
	r.Header.Set("Idempotency-Key", "key-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	store := newMemIdempotencyStore()
	handler := Idempotency(store, testLogger())(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, checkoutRequest(""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
