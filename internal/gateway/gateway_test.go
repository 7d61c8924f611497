package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"enhancebot/internal/keypool"
	"enhancebot/internal/openrouter"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	fn    func(apiKey string, call int) (openrouter.ChatResponse, error)
}

func (f *fakeBackend) Chat(_ context.Context, apiKey string, _ openrouter.ChatRequest) (openrouter.ChatResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(apiKey, call)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestPool() *keypool.Pool {
	return keypool.New(keypool.Config{
		Keys: []keypool.Key{
			{ID: "key_01", Secret: "secret-one"},
			{ID: "key_02", Secret: "secret-two"},
		},
		Cooldown: time.Hour,
		Logger:   zerolog.Nop(),
	})
}

func newTestGateway(pool *keypool.Pool, backend Backend) *Gateway {
	return New(Config{
		Pool:        pool,
		Backend:     backend,
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
		Logger:      zerolog.Nop(),
	})
}

func userMessages() []openrouter.Message {
	return []openrouter.Message{{Role: "user", Content: "make this better"}}
}

func TestFailoverOnRateLimitedKey(t *testing.T) {
	pool := newTestPool()
	backend := &fakeBackend{fn: func(apiKey string, _ int) (openrouter.ChatResponse, error) {
		if apiKey == "secret-one" {
			return openrouter.ChatResponse{}, &openrouter.APIError{StatusCode: 429}
		}
		return openrouter.ChatResponse{Text: "from key two", ModelUsed: "model-b"}, nil
	}}
	g := newTestGateway(pool, backend)

	res, err := g.Enhance(context.Background(), "model", userMessages())
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if res.Text != "from key two" {
		t.Fatalf("expected fallback key result, got %q", res.Text)
	}

	for _, st := range pool.Statuses() {
		switch st.ID {
		case "key_01":
			if st.Status != keypool.StatusQuarantined {
				t.Fatal("expected key_01 quarantined after 429")
			}
		case "key_02":
			if st.Status != keypool.StatusActive {
				t.Fatal("expected key_02 still active")
			}
		}
	}

	cred, err := pool.Acquire(time.Now().UTC())
	if err != nil {
		t.Fatalf("acquire after failover: %v", err)
	}
	if cred.ID != "key_02" {
		t.Fatalf("expected key_02 from acquire, got %s", cred.ID)
	}
}

func TestNoCredentialWithoutNetworkAttempt(t *testing.T) {
	pool := newTestPool()
	now := time.Now().UTC()
	pool.ReportFailure("key_01", keypool.FailureCredential, now)
	pool.ReportFailure("key_02", keypool.FailureCredential, now)

	backend := &fakeBackend{fn: func(string, int) (openrouter.ChatResponse, error) {
		return openrouter.ChatResponse{Text: "should not happen"}, nil
	}}
	g := newTestGateway(pool, backend)

	_, err := g.Enhance(context.Background(), "model", userMessages())
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Fatalf("expected zero backend calls, got %d", backend.callCount())
	}
}

func TestTransientRetrySameKey(t *testing.T) {
	pool := newTestPool()
	backend := &fakeBackend{fn: func(_ string, call int) (openrouter.ChatResponse, error) {
		if call == 1 {
			return openrouter.ChatResponse{}, &openrouter.APIError{StatusCode: 500}
		}
		return openrouter.ChatResponse{Text: "recovered", ModelUsed: "m"}, nil
	}}
	g := newTestGateway(pool, backend)

	res, err := g.Enhance(context.Background(), "model", userMessages())
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if res.Text != "recovered" {
		t.Fatalf("unexpected result %q", res.Text)
	}
	if backend.callCount() != 2 {
		t.Fatalf("expected 2 attempts, got %d", backend.callCount())
	}
	for _, st := range pool.Statuses() {
		if st.Status != keypool.StatusActive {
			t.Fatalf("transient failure must not quarantine, %s is %s", st.ID, st.Status)
		}
	}
}

func TestExhaustionNeverLeaksKeyMaterial(t *testing.T) {
	pool := newTestPool()
	backend := &fakeBackend{fn: func(string, int) (openrouter.ChatResponse, error) {
		return openrouter.ChatResponse{}, errors.New("request failed: connection refused")
	}}
	g := newTestGateway(pool, backend)

	_, err := g.Enhance(context.Background(), "model", userMessages())
	if !errors.Is(err, ErrEnhancementFailed) {
		t.Fatalf("expected ErrEnhancementFailed, got %v", err)
	}
	msg := err.Error()
	if strings.Contains(msg, "secret-one") || strings.Contains(msg, "secret-two") {
		t.Fatalf("error message leaks key material: %q", msg)
	}
}

func TestBothKeysCredentialFailure(t *testing.T) {
	pool := newTestPool()
	backend := &fakeBackend{fn: func(string, int) (openrouter.ChatResponse, error) {
		return openrouter.ChatResponse{}, &openrouter.APIError{StatusCode: 401}
	}}
	g := newTestGateway(pool, backend)

	_, err := g.Enhance(context.Background(), "model", userMessages())
	if !errors.Is(err, ErrEnhancementFailed) {
		t.Fatalf("expected ErrEnhancementFailed, got %v", err)
	}
	if backend.callCount() != 2 {
		t.Fatalf("expected one attempt per key, got %d", backend.callCount())
	}
	for _, st := range pool.Statuses() {
		if st.Status != keypool.StatusQuarantined {
			t.Fatalf("expected %s quarantined after 401", st.ID)
		}
	}
}
