package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-workflow/core/dialog"
)

// Memory keeps sessions in process. Callers get copies, changes are only
// visible after Save.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*dialog.Session
	options
}

func NewMemory(opts ...Option) *Memory {
	return &Memory{
		sessions: map[string]*dialog.Session{},
		options:  newOptions(opts),
	}
}

func (m *Memory) Load(_ context.Context, conversationID string) (*dialog.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[conversationID]
	if !ok {
		return dialog.NewSession(conversationID), nil
	}
	if m.expired(stored, m.now()) {
		delete(m.sessions, conversationID)
		logger.Debug("dialog session expired", "conversation.id", conversationID)
		return dialog.NewSession(conversationID), nil
	}

	var session dialog.Session
	if err := copier.Copy(&session, stored); err != nil {
		return nil, fmt.Errorf("error copying session: %w", err)
	}
	return &session, nil
}

func (m *Memory) Save(_ context.Context, session *dialog.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	var stored dialog.Session
	if err := copier.Copy(&stored, session); err != nil {
		return fmt.Errorf("error copying session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ConversationID] = &stored
	return nil
}

func (m *Memory) Delete(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, conversationID)
	return nil
}

// Sweep drops every session expired at now and returns how many it dropped.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, session := range m.sessions {
		if m.expired(session, now) {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
