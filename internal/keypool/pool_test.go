package keypool

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestPool(cooldown time.Duration) *Pool {
	return New(Config{
		Keys: []Key{
			{ID: "key_01", Secret: "secret-one"},
			{ID: "key_02", Secret: "secret-two"},
		},
		Cooldown: cooldown,
		Logger:   zerolog.Nop(),
	})
}

func TestAcquireRotates(t *testing.T) {
	p := newTestPool(time.Minute)
	now := time.Now().UTC()

	first, err := p.Acquire(now)
	if err != nil {
		t.Fatalf("acquire#1: %v", err)
	}
	second, err := p.Acquire(now)
	if err != nil {
		t.Fatalf("acquire#2: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected rotation across keys, got %s twice", first.ID)
	}
}

func TestCredentialFailureQuarantines(t *testing.T) {
	p := newTestPool(time.Minute)
	now := time.Now().UTC()

	cred, err := p.Acquire(now)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.ReportFailure(cred.ID, FailureCredential, now)

	for i := 0; i < 4; i++ {
		got, err := p.Acquire(now)
		if err != nil {
			t.Fatalf("acquire after quarantine: %v", err)
		}
		if got.ID == cred.ID {
			t.Fatalf("acquire handed out quarantined key %s", cred.ID)
		}
	}
}

func TestTransientFailureDoesNotQuarantine(t *testing.T) {
	p := newTestPool(time.Minute)
	now := time.Now().UTC()

	cred, _ := p.Acquire(now)
	p.ReportFailure(cred.ID, FailureTransient, now)

	for _, st := range p.Statuses() {
		if st.Status != StatusActive {
			t.Fatalf("key %s quarantined after transient failure", st.ID)
		}
	}
}

func TestAllQuarantinedUnavailable(t *testing.T) {
	p := newTestPool(time.Minute)
	now := time.Now().UTC()

	p.ReportFailure("key_01", FailureCredential, now)
	p.ReportFailure("key_02", FailureCredential, now)

	if _, err := p.Acquire(now); err != ErrNoneAvailable {
		t.Fatalf("expected ErrNoneAvailable, got %v", err)
	}
}

func TestResetAll(t *testing.T) {
	p := newTestPool(time.Hour)
	now := time.Now().UTC()

	p.ReportFailure("key_01", FailureCredential, now)
	p.ReportFailure("key_02", FailureCredential, now)

	if reset := p.ResetAll(); reset != 2 {
		t.Fatalf("expected 2 keys reset, got %d", reset)
	}
	if _, err := p.Acquire(now); err != nil {
		t.Fatalf("acquire after reset: %v", err)
	}
}

func TestResetExpired(t *testing.T) {
	p := newTestPool(time.Minute)
	now := time.Now().UTC()

	p.ReportFailure("key_01", FailureCredential, now)

	if reset := p.ResetExpired(now.Add(30 * time.Second)); reset != 0 {
		t.Fatalf("expected no keys reset inside cooldown, got %d", reset)
	}
	if reset := p.ResetExpired(now.Add(2 * time.Minute)); reset != 1 {
		t.Fatalf("expected 1 key reset after cooldown, got %d", reset)
	}
}

func TestAcquireReactivatesLapsedQuarantine(t *testing.T) {
	p := newTestPool(time.Minute)
	now := time.Now().UTC()

	p.ReportFailure("key_01", FailureCredential, now)
	p.ReportFailure("key_02", FailureCredential, now)

	cred, err := p.Acquire(now.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("expected lapsed quarantine to reactivate, got %v", err)
	}
	if cred.Secret == "" {
		t.Fatal("reactivated credential missing key material")
	}
}
