package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/dex-arb-bot/internal/apperror"
)

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	b := New[int](DefaultConfig("test"))

	got, err := b.Execute(func() (int, error) { return 7, nil })
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != 7 {
		t.Errorf("Execute = %d, want 7", got)
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("expected closed state, got %v", b.State())
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.MinRequests = 3
	cfg.FailureRatio = 0.5
	cfg.Timeout = time.Hour

	var transitions []gobreaker.State
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	b := New[int](cfg)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if _, err := b.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}

	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %v", b.State())
	}

	_, err := b.Execute(func() (int, error) { return 1, nil })
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("expected circuit-open error, got %v", err)
	}

	if len(transitions) == 0 || transitions[len(transitions)-1] != gobreaker.StateOpen {
		t.Errorf("expected state change callback to see open, got %v", transitions)
	}
}
