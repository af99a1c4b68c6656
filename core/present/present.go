// Package present turns dialog decisions into the text delivered to the
// user. Every function is pure.
package present

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultFallbackContact = "the procurement team at procurement@example.com"
	// DefaultCompletionEchoLimit is the longest completion message repeated
	// verbatim. Longer ones were already shown through step results.
	DefaultCompletionEchoLimit = 200
)

type Presenter struct {
	FallbackContact     string
	CompletionEchoLimit int
}

func New(fallbackContact string) Presenter {
	if strings.TrimSpace(fallbackContact) == "" {
		fallbackContact = DefaultFallbackContact
	}
	return Presenter{
		FallbackContact:     fallbackContact,
		CompletionEchoLimit: DefaultCompletionEchoLimit,
	}
}

func (p Presenter) fallback() string {
	if p.FallbackContact == "" {
		return DefaultFallbackContact
	}
	return p.FallbackContact
}

func (p Presenter) Answer(answer string) string {
	return strings.TrimSpace(answer)
}

// AnswerWithConsent shows the answer followed by the email consent prompt.
func (p Presenter) AnswerWithConsent(answer string) string {
	return p.Answer(answer) + "\n\n" + p.ConsentPrompt()
}

func (p Presenter) ConsentPrompt() string {
	return "Would you like me to draft an email to the procurement team about this? Reply \"yes\" or \"no\"."
}

func (p Presenter) ConsentReprompt() string {
	return "Sorry, I didn't catch that. Reply \"yes\" and I'll draft the email, or \"no\" to skip it."
}

func (p Presenter) ConsentCancelled() string {
	return "No problem, I won't draft an email. Let me know if there's anything else I can help with."
}

func (p Presenter) Draft(draft string) string {
	return "Here is the draft email:\n\n" + strings.TrimSpace(draft)
}

// ApprovalPrompt shows the draft, when there is one, and asks for a decision.
func (p Presenter) ApprovalPrompt(draft string) string {
	prompt := "Reply \"approve\" to send it, \"reject\" to cancel, or \"edit\" followed by your changes."
	if strings.TrimSpace(draft) == "" {
		return "The email is ready to send. " + prompt
	}
	return p.Draft(draft) + "\n\n" + prompt
}

func (p Presenter) ApprovalReprompt() string {
	return "Please reply \"approve\" to send the email, \"reject\" to cancel it, or \"edit\" followed by your changes."
}

func (p Presenter) EditRequested(instructions string) string {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return "Sure, tell me what you'd like changed. The current draft stays on hold until you reply \"approve\" or \"reject\"."
	}
	return fmt.Sprintf("Noted, you'd like these changes: %s. The current draft stays on hold until you reply \"approve\" or \"reject\".", instructions)
}

func (p Presenter) Sent() string {
	return "Your email has been sent to the procurement team."
}

func (p Presenter) ApprovalFailed() string {
	return fmt.Sprintf("I couldn't send the email. Please reach out to %s directly.", p.fallback())
}

// Completion repeats short completion messages and replaces long ones, or
// empty ones, with a generic acknowledgment.
func (p Presenter) Completion(result string) string {
	result = strings.TrimSpace(result)
	limit := p.CompletionEchoLimit
	if limit <= 0 {
		limit = DefaultCompletionEchoLimit
	}
	if result == "" || utf8.RuneCountInString(result) > limit {
		return p.Done()
	}
	return result
}

func (p Presenter) Done() string {
	return "All done. Let me know if there's anything else I can help with."
}

func (p Presenter) Cancelled() string {
	return "No worries, the request was cancelled. Let me know if you need anything else."
}

// Failure is shown for every backend failure. It names the human contact so
// the user is never left without a way forward.
func (p Presenter) Failure() string {
	return fmt.Sprintf("Sorry, something went wrong while processing your request. Please try again later or contact %s.", p.fallback())
}
