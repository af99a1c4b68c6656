package dialog

import (
	"strings"
	"unicode/utf8"
)

// DefaultShortReplyLimit is the rune count from which an utterance is always
// a new question, never a consent or approval reply.
const DefaultShortReplyLimit = 15

type intent int

const (
	intentAmbiguous intent = iota
	intentAffirm
	intentDecline
	intentApprove
	intentReject
	intentEdit
)

var (
	affirmatives = []string{"yes", "y", "yeah", "yep", "sure", "ok", "okay"}
	negatives    = []string{"no", "n", "nope"}
	// Any of these anywhere in a short reply declines the offer.
	cancelPhrases = []string{"cancel", "stop", "never mind", "nevermind"}
)

// DefaultEmailOffers are the phrases an answer uses to offer drafting an
// email.
var DefaultEmailOffers = []string{
	"would you like assistance drafting an email",
	"would you like me to draft an email",
	"would you like help drafting an email",
}

func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(text, ".!?")
}

func isShortReply(text string, limit int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	return n > 0 && n < limit
}

func oneOf(text string, options []string) bool {
	for _, option := range options {
		if text == option {
			return true
		}
	}
	return false
}

func classifyConsent(text string) intent {
	text = normalize(text)
	switch {
	case oneOf(text, affirmatives):
		return intentAffirm
	case oneOf(text, negatives):
		return intentDecline
	}
	for _, phrase := range cancelPhrases {
		if strings.Contains(text, phrase) {
			return intentDecline
		}
	}
	return intentAmbiguous
}

// classifyApproval also returns the instructions following "edit".
func classifyApproval(text string) (intent, string) {
	trimmed := strings.TrimSpace(text)
	normalized := normalize(trimmed)
	switch {
	case normalized == "approve":
		return intentApprove, ""
	case normalized == "reject" || normalized == "cancel":
		return intentReject, ""
	case len(trimmed) >= len("edit") && strings.EqualFold(trimmed[:len("edit")], "edit"):
		instructions := strings.TrimSpace(trimmed[len("edit"):])
		instructions = strings.TrimLeft(instructions, ":,- ")
		return intentEdit, instructions
	}
	return intentAmbiguous, ""
}

func offersEmail(result string, offers []string) bool {
	result = strings.ToLower(result)
	for _, offer := range offers {
		if strings.Contains(result, strings.ToLower(offer)) {
			return true
		}
	}
	return false
}

// isCancellation reports whether a backend error message describes a
// rejection or cancellation by the user.
func isCancellation(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "reject") || strings.Contains(message, "cancel")
}
