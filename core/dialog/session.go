package dialog

import (
	"errors"
	"fmt"
	"time"
)

type State string

const (
	StateReady            State = "READY"
	StateAwaitingConsent  State = "AWAITING_EMAIL_CONSENT"
	StateAwaitingApproval State = "AWAITING_EMAIL_APPROVAL"
)

func (s State) Valid() bool {
	switch s {
	case StateReady, StateAwaitingConsent, StateAwaitingApproval:
		return true
	}
	return false
}

var ErrInvalidSession = errors.New("invalid dialog session")

// Session is the dialog state of one conversation. Use the methods to move
// between states: they keep PendingQuestion and PendingWorkflowRef mutually
// exclusive.
type Session struct {
	ConversationID     string
	State              State
	PendingQuestion    string
	PendingWorkflowRef string
	// LastDraft is the draft shown with the pending approval prompt.
	LastDraft string
	UpdatedAt time.Time
}

func NewSession(conversationID string) *Session {
	return &Session{ConversationID: conversationID, State: StateReady}
}

// AwaitConsent remembers the question an email was offered for.
func (s *Session) AwaitConsent(question string) {
	s.State = StateAwaitingConsent
	s.PendingQuestion = question
	s.PendingWorkflowRef = ""
	s.LastDraft = ""
}

// AwaitApproval remembers the workflow paused on the user's decision.
func (s *Session) AwaitApproval(workflowRef, draft string) {
	s.State = StateAwaitingApproval
	s.PendingQuestion = ""
	s.PendingWorkflowRef = workflowRef
	s.LastDraft = draft
}

func (s *Session) Reset() {
	s.State = StateReady
	s.PendingQuestion = ""
	s.PendingWorkflowRef = ""
	s.LastDraft = ""
}

// Validate checks a session read from storage.
func (s *Session) Validate() error {
	switch {
	case !s.State.Valid():
		return fmt.Errorf("%w: unknown state %q", ErrInvalidSession, s.State)
	case s.PendingQuestion != "" && s.PendingWorkflowRef != "":
		return fmt.Errorf("%w: both a pending question and a pending workflow are set", ErrInvalidSession)
	case s.State == StateAwaitingConsent && s.PendingQuestion == "":
		return fmt.Errorf("%w: awaiting consent without a pending question", ErrInvalidSession)
	case s.State == StateAwaitingApproval && s.PendingWorkflowRef == "":
		return fmt.Errorf("%w: awaiting approval without a pending workflow", ErrInvalidSession)
	case s.State == StateReady && (s.PendingQuestion != "" || s.PendingWorkflowRef != ""):
		return fmt.Errorf("%w: ready session with pending data", ErrInvalidSession)
	}
	return nil
}
