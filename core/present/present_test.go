package present

import (
	"strings"
	"testing"
)

func TestFailureNamesFallbackContact(t *testing.T) {
	p := New("Jordan (jordan@example.com)")
	for _, message := range []string{p.Failure(), p.ApprovalFailed()} {
		if !strings.Contains(message, "Jordan (jordan@example.com)") {
			t.Fatalf("expected fallback contact in %q", message)
		}
	}
}

func TestNewDefaultsFallbackContact(t *testing.T) {
	if got := New("  ").FallbackContact; got != DefaultFallbackContact {
		t.Fatalf("expected default fallback contact, got %q", got)
	}
	if !strings.Contains(Presenter{}.Failure(), DefaultFallbackContact) {
		t.Fatalf("expected zero presenter to fall back to the default contact")
	}
}

func TestCompletion(t *testing.T) {
	p := New("")
	testCases := []struct {
		name     string
		result   string
		expected string
	}{
		{name: "short is echoed", result: "  Email sent.  ", expected: "Email sent."},
		{name: "empty is generic", result: "", expected: p.Done()},
		{name: "long is generic", result: strings.Repeat("x", DefaultCompletionEchoLimit+1), expected: p.Done()},
		{name: "at limit is echoed", result: strings.Repeat("é", DefaultCompletionEchoLimit), expected: strings.Repeat("é", DefaultCompletionEchoLimit)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := p.Completion(testCase.result); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestAnswerWithConsentEndsWithPrompt(t *testing.T) {
	p := New("")
	got := p.AnswerWithConsent("Sole source procurement is ...\n")
	if !strings.HasPrefix(got, "Sole source procurement is ...") || !strings.HasSuffix(got, p.ConsentPrompt()) {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestApprovalPromptWithoutDraft(t *testing.T) {
	p := New("")
	if got := p.ApprovalPrompt(""); strings.Contains(got, "Here is the draft") {
		t.Fatalf("expected no draft header, got %q", got)
	}
	if got := p.ApprovalPrompt("Dear team"); !strings.Contains(got, "Dear team") {
		t.Fatalf("expected draft in prompt, got %q", got)
	}
}
