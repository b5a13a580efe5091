package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(s Settings) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := New(s)
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Settings{FailureThreshold: 2, Timeout: time.Minute})

	if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("Do() error = %v, want errBoom", err)
	}
	if b.State() != Closed {
		t.Fatalf("state after 1 failure = %v, want Closed", b.State())
	}
	_ = b.Do(func() error { return errBoom })
	if b.State() != Open {
		t.Fatalf("state after 2 failures = %v, want Open", b.State())
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Do() on open circuit error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Errorf("fn must not run while the circuit is open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Settings{FailureThreshold: 2, Timeout: time.Minute})

	_ = b.Do(func() error { return errBoom })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errBoom })

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(Settings{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Do(func() error { return errBoom })
	clock.t = clock.t.Add(11 * time.Second)

	if b.State() != HalfOpen {
		t.Fatalf("state after timeout = %v, want Half-Open", b.State())
	}
	_ = b.Do(func() error { return nil })
	if b.State() != HalfOpen {
		t.Fatalf("state after 1 trial success = %v, want Half-Open", b.State())
	}
	_ = b.Do(func() error { return nil })
	if b.State() != Closed {
		t.Fatalf("state after 2 trial successes = %v, want Closed", b.State())
	}

	want := []string{"Closed->Open", "Open->Half-Open", "Half-Open->Closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Settings{FailureThreshold: 1, Timeout: time.Second})

	_ = b.Do(func() error { return errBoom })
	clock.t = clock.t.Add(2 * time.Second)
	_ = b.Do(func() error { return errBoom })

	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	errClient := errors.New("404")
	b, _ := newTestBreaker(Settings{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		IsFailure:        func(err error) bool { return !errors.Is(err, errClient) },
	})

	if err := b.Do(func() error { return errClient }); !errors.Is(err, errClient) {
		t.Fatalf("Do() error = %v, want errClient", err)
	}
	if b.State() != Closed {
		t.Errorf("ignored errors must not open the circuit, state = %v", b.State())
	}
}
