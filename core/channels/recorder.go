package channels

import (
	"context"
	"sync"
)

type Message struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// Recorder keeps delivered messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned by every delivery. Messages are still
	// recorded.
	Err error
}

func (r *Recorder) Deliver(_ context.Context, conversationID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{ConversationID: conversationID, Text: text})
	return r.Err
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Texts returns the texts delivered to one conversation, in order.
func (r *Recorder) Texts(conversationID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var texts []string
	for _, message := range r.messages {
		if message.ConversationID == conversationID {
			texts = append(texts, message.Text)
		}
	}
	return texts
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
