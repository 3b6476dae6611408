package domain

import (
	"testing"
	"time"
)

func TestApplicationTransitions(t *testing.T) {
	now := time.Now()

	r := ApplicationRecord{State: StateDiscovered}
	path := []ApplicationState{StateScored, StateRouted, StateSubmitting, StateVerifying, StateSubmitted}
	for _, next := range path {
		if err := r.Transition(next, now); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if !r.Terminal() {
		t.Fatal("SUBMITTED must be terminal")
	}
	if err := r.Transition(StateFailed, now); err == nil {
		t.Fatal("expected error leaving a terminal state")
	}
}

func TestApplicationTransitionRejectsSkips(t *testing.T) {
	now := time.Now()

	r := ApplicationRecord{State: StateDiscovered}
	if err := r.Transition(StateSubmitting, now); err == nil {
		t.Fatal("DISCOVERED -> SUBMITTING must be rejected")
	}
	if r.State != StateDiscovered {
		t.Fatalf("state changed on rejected transition: %s", r.State)
	}

	r = ApplicationRecord{State: StateSubmitting}
	if err := r.Transition(StateSubmitted, now); err != nil {
		t.Fatalf("SUBMITTING -> SUBMITTED (no verification step): %v", err)
	}
}

func TestApplicationFailedIsTerminal(t *testing.T) {
	r := ApplicationRecord{State: StateFailed, FailureReason: FailVerificationTimeout}
	if !r.Terminal() {
		t.Fatal("FAILED must be terminal")
	}
	if err := r.Transition(StateSubmitting, time.Now()); err == nil {
		t.Fatal("expected error leaving FAILED")
	}
}
