package dialog

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestIsShortReply(t *testing.T) {
	testCases := []struct {
		text     string
		expected bool
	}{
		{text: "yes", expected: true},
		{text: "  approve  ", expected: true},
		{text: "", expected: false},
		{text: "   ", expected: false},
		{text: strings.Repeat("y", DefaultShortReplyLimit-1), expected: true},
		{text: strings.Repeat("y", DefaultShortReplyLimit), expected: false},
		// Counted in runes, not bytes.
		{text: strings.Repeat("ü", DefaultShortReplyLimit-1), expected: true},
		{text: "yes please do it now", expected: false},
	}

	for _, testCase := range testCases {
		if got := isShortReply(testCase.text, DefaultShortReplyLimit); got != testCase.expected {
			t.Errorf("isShortReply(%q) = %v, expected %v", testCase.text, got, testCase.expected)
		}
	}
}

func TestClassifyConsent(t *testing.T) {
	testCases := map[string]intent{
		"yes":          intentAffirm,
		"Y":            intentAffirm,
		"  YES!  ":     intentAffirm,
		"sure":         intentAffirm,
		"no":           intentDecline,
		"n":            intentDecline,
		"No.":          intentDecline,
		"cancel that":  intentDecline,
		"stop":         intentDecline,
		"nevermind":    intentDecline,
		"maybe":        intentAmbiguous,
		"yes and no":   intentAmbiguous,
		"what's that?": intentAmbiguous,
	}

	for text, expected := range testCases {
		if got := classifyConsent(text); got != expected {
			t.Errorf("classifyConsent(%q) = %v, expected %v", text, got, expected)
		}
	}
}

func TestClassifyApproval(t *testing.T) {
	testCases := []struct {
		text         string
		expected     intent
		instructions string
	}{
		{text: "approve", expected: intentApprove},
		{text: "Approve.", expected: intentApprove},
		{text: "reject", expected: intentReject},
		{text: "CANCEL", expected: intentReject},
		{text: "edit", expected: intentEdit},
		{text: "Edit: shorter", expected: intentEdit, instructions: "shorter"},
		{text: "edit - be nicer", expected: intentEdit, instructions: "be nicer"},
		{text: "approved?", expected: intentAmbiguous},
		{text: "ok", expected: intentAmbiguous},
	}

	for _, testCase := range testCases {
		got, instructions := classifyApproval(testCase.text)
		if got != testCase.expected || instructions != testCase.instructions {
			t.Errorf("classifyApproval(%q) = %v %q, expected %v %q", testCase.text, got, instructions, testCase.expected, testCase.instructions)
		}
	}
}

func TestOffersEmail(t *testing.T) {
	if !offersEmail("... Would you like me to draft an email to them?", DefaultEmailOffers) {
		t.Fatalf("expected offer to be detected")
	}
	if offersEmail("Sole source procurement is buying from one supplier.", DefaultEmailOffers) {
		t.Fatalf("expected no offer")
	}
}

func TestIsCancellation(t *testing.T) {
	for message, expected := range map[string]bool{
		"Workflow stopped: Step 'send_communication_tool' rejected by user": true,
		"Workflow cancelled":               true,
		"Request canceled by user":         true,
		"Search index unavailable":         false,
		"workflow stream idle for too long": false,
	} {
		if got := isCancellation(message); got != expected {
			t.Errorf("isCancellation(%q) = %v, expected %v", message, got, expected)
		}
	}
}

func TestSessionTransitionsKeepPendingExclusive(t *testing.T) {
	session := NewSession("c-1")
	if err := session.Validate(); err != nil {
		t.Fatalf("new session invalid: %v", err)
	}

	session.AwaitConsent("question")
	if err := session.Validate(); err != nil || session.PendingWorkflowRef != "" {
		t.Fatalf("unexpected consent session %+v: %v", session, err)
	}

	session.AwaitApproval("wf-1", "draft")
	if err := session.Validate(); err != nil || session.PendingQuestion != "" {
		t.Fatalf("unexpected approval session %+v: %v", session, err)
	}

	session.AwaitConsent("again")
	if session.PendingWorkflowRef != "" || session.LastDraft != "" {
		t.Fatalf("expected approval data cleared, got %+v", session)
	}

	session.Reset()
	if err := session.Validate(); err != nil || session.State != StateReady {
		t.Fatalf("unexpected reset session %+v: %v", session, err)
	}
}

func TestSessionValidate(t *testing.T) {
	testCases := []Session{
		{State: "DONE"},
		{State: StateAwaitingConsent},
		{State: StateAwaitingApproval},
		{State: StateReady, PendingQuestion: "q"},
		{State: StateAwaitingConsent, PendingQuestion: "q", PendingWorkflowRef: "wf"},
	}
	for _, session := range testCases {
		if err := session.Validate(); err == nil {
			t.Errorf("expected %+v to be invalid", session)
		}
	}
}

func TestKeyedLocks(t *testing.T) {
	locks := newKeyedLocks()
	ctx := context.Background()

	unlockA, err := locks.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Another key is not blocked.
	unlockB, err := locks.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlockB()

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		unlock, err := locks.Lock(ctx, "a")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatalf("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	wg.Wait()

	if n := locks.len(); n != 0 {
		t.Fatalf("expected no lock entries left, got %d", n)
	}
}

func TestKeyedLocksContext(t *testing.T) {
	locks := newKeyedLocks()
	unlock, err := locks.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locks.Lock(ctx, "a"); err == nil {
		t.Fatalf("expected cancelled lock to fail")
	}
	if n := locks.len(); n != 1 {
		t.Fatalf("expected the held entry only, got %d", n)
	}
}
