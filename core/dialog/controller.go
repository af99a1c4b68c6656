// Package dialog decides what to do with each user utterance: forward it to
// the workflow service as a question, offer to draft an email, or collect an
// approval decision for a drafted email.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/koscakluka/ema-workflow/core/events"
	"github.com/koscakluka/ema-workflow/core/present"
	"github.com/koscakluka/ema-workflow/core/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Step names the workflow service reports for the steps the dialog reacts to.
const (
	DefaultAnswerStep = "procurement_rag_agent_tool"
	DefaultDraftStep  = "draft_communication_tool"
	DefaultSendStep   = "send_communication_tool"
)

const DefaultEmailInstruction = "Please draft an email to the procurement team about: "

type Backend interface {
	StreamWorkflow(ctx context.Context, req workflow.StartRequest) iter.Seq2[events.Event, error]
	ApproveWorkflow(ctx context.Context, workflowRef string, decision workflow.Decision) (*workflow.ApprovalAck, error)
}

// Sink delivers text to the user of a conversation.
type Sink interface {
	Deliver(ctx context.Context, conversationID, text string) error
}

// SessionStore keeps dialog sessions by conversation id. Load returns a
// fresh READY session when none is stored.
type SessionStore interface {
	Load(ctx context.Context, conversationID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, conversationID string) error
}

type Utterance struct {
	ConversationID string
	UserID         string
	UserName       string
	Text           string
}

type StepNames struct {
	Answer string
	Draft  string
	Send   string
}

type Controller struct {
	backend Backend
	sink    Sink
	store   SessionStore
	locks   *keyedLocks

	presenter        present.Presenter
	shortReplyLimit  int
	steps            StepNames
	emailOffers      []string
	emailInstruction string
	now              func() time.Time
}

type ControllerOption func(*Controller)

func WithPresenter(presenter present.Presenter) ControllerOption {
	return func(c *Controller) {
		c.presenter = presenter
	}
}

func WithShortReplyLimit(limit int) ControllerOption {
	return func(c *Controller) {
		if limit > 0 {
			c.shortReplyLimit = limit
		}
	}
}

// WithStepNames overrides the step names; empty names keep their defaults.
func WithStepNames(steps StepNames) ControllerOption {
	return func(c *Controller) {
		if steps.Answer != "" {
			c.steps.Answer = steps.Answer
		}
		if steps.Draft != "" {
			c.steps.Draft = steps.Draft
		}
		if steps.Send != "" {
			c.steps.Send = steps.Send
		}
	}
}

func WithEmailOffers(offers ...string) ControllerOption {
	return func(c *Controller) {
		if len(offers) > 0 {
			c.emailOffers = offers
		}
	}
}

// WithEmailInstruction sets the text the pending question is appended to
// when the user accepts an email offer.
func WithEmailInstruction(instruction string) ControllerOption {
	return func(c *Controller) {
		if instruction != "" {
			c.emailInstruction = instruction
		}
	}
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(backend Backend, sink Sink, store SessionStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		backend:          backend,
		sink:             sink,
		store:            store,
		locks:            newKeyedLocks(),
		presenter:        present.New(""),
		shortReplyLimit:  DefaultShortReplyLimit,
		steps:            StepNames{Answer: DefaultAnswerStep, Draft: DefaultDraftStep, Send: DefaultSendStep},
		emailOffers:      DefaultEmailOffers,
		emailInstruction: DefaultEmailInstruction,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleUtterance processes one user utterance to completion, including the
// whole workflow stream it starts. Utterances of the same conversation are
// handled one at a time; different conversations run concurrently.
//
// Failures of the workflow service are reported to the user and never
// returned. The returned error covers session storage, delivery and ctx
// expiry while waiting for an earlier utterance.
func (c *Controller) HandleUtterance(ctx context.Context, utterance Utterance) (err error) {
	ctx, span := tracer.Start(ctx, "handle utterance")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", utterance.ConversationID))

	unlock, err := c.locks.Lock(ctx, utterance.ConversationID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error waiting for conversation: %w", err)
	}
	defer unlock()

	session, err := c.store.Load(ctx, utterance.ConversationID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error loading dialog session: %w", err)
	}
	startState := session.State

	t := &turn{controller: c, session: session, utterance: utterance}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "recovered from panic while handling utterance",
				"conversation.id", utterance.ConversationID,
				"panic", r)
			span.SetStatus(codes.Error, "panic")
			session.Reset()
			t.outcome = "panic"
			t.deliver(ctx, c.presenter.Failure())
		}

		session.UpdatedAt = c.now()
		var saveErr error
		if err := c.store.Save(context.WithoutCancel(ctx), session); err != nil {
			saveErr = fmt.Errorf("error saving dialog session: %w", err)
		}
		err = errors.Join(t.deliverErr, saveErr)
		if err != nil {
			span.RecordError(err)
		}

		span.SetAttributes(
			attribute.String("dialog.state.start", string(startState)),
			attribute.String("dialog.state.end", string(session.State)),
			attribute.String("dialog.outcome", t.outcome),
		)
		turnsHandled.Add(ctx, 1, metric.WithAttributes(attribute.String("dialog.outcome", t.outcome)))
		logger.DebugContext(ctx, "utterance handled",
			"conversation.id", utterance.ConversationID,
			"dialog.state", session.State,
			"dialog.outcome", t.outcome)
	}()

	t.route(ctx)
	return nil
}

// Reset forgets the dialog state of a conversation.
func (c *Controller) Reset(ctx context.Context, conversationID string) error {
	unlock, err := c.locks.Lock(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("error waiting for conversation: %w", err)
	}
	defer unlock()

	if err := c.store.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("error deleting dialog session: %w", err)
	}
	return nil
}

// State returns the stored dialog state of a conversation.
func (c *Controller) State(ctx context.Context, conversationID string) (State, error) {
	session, err := c.store.Load(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("error loading dialog session: %w", err)
	}
	return session.State, nil
}

func (c *Controller) emailRequest(question string) string {
	return c.emailInstruction + question
}
