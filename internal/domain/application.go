package domain

import (
	"fmt"
	"time"
)

// ApplicationState is the lifecycle state of an automated application.
type ApplicationState string

const (
	StateDiscovered ApplicationState = "DISCOVERED"
	StateScored     ApplicationState = "SCORED"
	StateRouted     ApplicationState = "ROUTED"
	StateSubmitting ApplicationState = "SUBMITTING"
	StateVerifying  ApplicationState = "VERIFYING"
	StateSubmitted  ApplicationState = "SUBMITTED"
	StateFailed     ApplicationState = "FAILED"
)

// Structured failure reasons recorded on FAILED records.
const (
	FailFieldNotFound       = "field-not-found"
	FailVerificationTimeout = "verification-timeout"
	FailSubmitRejected      = "submit-rejected"
	FailGeneration          = "generation-failed"
	FailSession             = "session-failed"
	FailMailbox             = "mailbox-unavailable"
)

// ApplicationRecord is append-only history of one auto-application. Rows are
// never deleted; the response classifier attributes replies through them.
type ApplicationRecord struct {
	ID             string
	JobFingerprint string
	Company        string
	Title          string
	URL            string
	State          ApplicationState
	ResumeVariant  string
	CoverLetterRef string
	ContactEmail   string
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var appTransitions = map[ApplicationState][]ApplicationState{
	StateDiscovered: {StateScored},
	StateScored:     {StateRouted},
	StateRouted:     {StateSubmitting, StateFailed},
	StateSubmitting: {StateVerifying, StateSubmitted, StateFailed},
	StateVerifying:  {StateSubmitted, StateFailed},
	StateSubmitted:  {},
	StateFailed:     {},
}

// Transition moves the record to next, rejecting anything the state machine
// does not allow.
func (r *ApplicationRecord) Transition(next ApplicationState, now time.Time) error {
	for _, ok := range appTransitions[r.State] {
		if ok == next {
			r.State = next
			r.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("invalid application transition %s -> %s", r.State, next)
}

// Terminal reports whether no further transitions are possible.
func (r *ApplicationRecord) Terminal() bool {
	return r.State == StateSubmitted || r.State == StateFailed
}
