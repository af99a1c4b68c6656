package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-workflow/core/dialog"
	"github.com/muesli/reflow/truncate"
	"go.opentelemetry.io/otel/attribute"
)

var ErrNotConnected = errors.New("conversation has no open connection")

const writeTimeout = 10 * time.Second

// Inbound is a message sent by a websocket client.
type Inbound struct {
	Text     string `json:"text"`
	UserName string `json:"user_name,omitempty"`
}

// UtteranceHandler handles one user utterance to completion.
type UtteranceHandler func(ctx context.Context, utterance dialog.Utterance) error

// Hub serves websocket chat connections. Each connection belongs to one
// conversation, given by the conversation_id query parameter or generated.
// Messages delivered to a conversation go to all of its connections. The
// first message on a connection has no text and carries the conversation id.
type Hub struct {
	upgrader websocket.Upgrader
	handle   UtteranceHandler

	mu    sync.Mutex
	conns map[string]map[*hubConn]struct{}
}

type hubConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *hubConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: map[string]map[*hubConn]struct{}{},
	}
}

// OnUtterance sets the handler for inbound messages. It must be set before
// the hub serves connections.
func (h *Hub) OnUtterance(handle UtteranceHandler) {
	h.handle = handle
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = conversationID
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}
	conn := &hubConn{ws: ws}
	h.register(conversationID, conn)
	defer func() {
		h.unregister(conversationID, conn)
		ws.Close()
	}()

	logger.InfoContext(r.Context(), "chat connection opened", "conversation.id", conversationID)
	if err := conn.writeJSON(Message{ConversationID: conversationID}); err != nil {
		return
	}

	for {
		var inbound Inbound
		if err := ws.ReadJSON(&inbound); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WarnContext(r.Context(), "chat connection failed",
					"conversation.id", conversationID,
					"error", err)
			}
			return
		}
		if strings.TrimSpace(inbound.Text) == "" || h.handle == nil {
			continue
		}

		err := h.handle(r.Context(), dialog.Utterance{
			ConversationID: conversationID,
			UserID:         userID,
			UserName:       inbound.UserName,
			Text:           inbound.Text,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to handle utterance",
				"conversation.id", conversationID,
				"error", err)
		}
	}
}

// Deliver sends text to every connection of the conversation.
func (h *Hub) Deliver(ctx context.Context, conversationID, text string) error {
	_, span := tracer.Start(ctx, "deliver message")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	conns := h.connections(conversationID)
	if len(conns) == 0 {
		span.RecordError(ErrNotConnected)
		return fmt.Errorf("%w: %s", ErrNotConnected, conversationID)
	}

	var errs []error
	for _, conn := range conns {
		if err := conn.writeJSON(Message{ConversationID: conversationID, Text: text}); err != nil {
			errs = append(errs, fmt.Errorf("error writing to websocket: %w", err))
		}
	}
	logger.DebugContext(ctx, "message delivered",
		"conversation.id", conversationID,
		"connections", len(conns),
		"text", truncate.StringWithTail(text, 80, "..."))

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (h *Hub) register(conversationID string, conn *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[conversationID] == nil {
		h.conns[conversationID] = map[*hubConn]struct{}{}
	}
	h.conns[conversationID][conn] = struct{}{}
}

func (h *Hub) unregister(conversationID string, conn *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[conversationID], conn)
	if len(h.conns[conversationID]) == 0 {
		delete(h.conns, conversationID)
	}
}

func (h *Hub) connections(conversationID string) []*hubConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*hubConn, 0, len(h.conns[conversationID]))
	for conn := range h.conns[conversationID] {
		conns = append(conns, conn)
	}
	return conns
}
