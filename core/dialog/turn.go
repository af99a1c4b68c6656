package dialog

import (
	"context"
	"errors"
	"strings"

	"github.com/koscakluka/ema-workflow/core/events"
	"github.com/koscakluka/ema-workflow/core/workflow"
)

// turn is the handling of a single utterance.
type turn struct {
	controller *Controller
	session    *Session
	utterance  Utterance

	// presented is set once the turn has shown the user a step result or a
	// prompt, so the completion message does not repeat it.
	presented  bool
	outcome    string
	deliverErr error
}

func (t *turn) route(ctx context.Context) {
	c := t.controller
	text := strings.TrimSpace(t.utterance.Text)
	if text == "" {
		t.outcome = "ignored"
		logger.DebugContext(ctx, "ignoring empty utterance", "conversation.id", t.utterance.ConversationID)
		return
	}

	if isShortReply(text, c.shortReplyLimit) {
		switch t.session.State {
		case StateAwaitingConsent:
			t.handleConsent(ctx, text)
			return
		case StateAwaitingApproval:
			t.handleApproval(ctx, text)
			return
		}
	}

	if t.session.State != StateReady {
		logger.InfoContext(ctx, "new question supersedes pending reply",
			"conversation.id", t.utterance.ConversationID,
			"dialog.state", t.session.State)
		t.session.Reset()
	}
	t.runWorkflow(ctx, text, text)
}

func (t *turn) handleConsent(ctx context.Context, text string) {
	c := t.controller
	switch classifyConsent(text) {
	case intentAffirm:
		question := t.session.PendingQuestion
		t.session.Reset()
		t.runWorkflow(ctx, question, c.emailRequest(question))
	case intentDecline:
		t.session.Reset()
		t.outcome = "consent_declined"
		t.deliver(ctx, c.presenter.ConsentCancelled())
	default:
		t.outcome = "reprompt"
		t.deliver(ctx, c.presenter.ConsentReprompt())
	}
}

func (t *turn) handleApproval(ctx context.Context, text string) {
	c := t.controller
	decision, instructions := classifyApproval(text)
	switch decision {
	case intentApprove:
		ref := t.session.PendingWorkflowRef
		t.session.Reset()
		if _, err := c.backend.ApproveWorkflow(ctx, ref, workflow.DecisionApprove); err != nil {
			logger.ErrorContext(ctx, "approval failed",
				"conversation.id", t.utterance.ConversationID,
				"workflow.ref", ref,
				"error", err)
			t.outcome = "approval_failed"
			t.deliver(ctx, c.presenter.ApprovalFailed())
			return
		}
		t.outcome = "approved"
		t.deliver(ctx, c.presenter.Sent())
	case intentReject:
		ref := t.session.PendingWorkflowRef
		t.session.Reset()
		// The paused workflow is told about the rejection on a best effort
		// basis; the user sees the cancellation either way.
		if _, err := c.backend.ApproveWorkflow(ctx, ref, workflow.DecisionReject); err != nil {
			logger.WarnContext(ctx, "failed to report rejection",
				"conversation.id", t.utterance.ConversationID,
				"workflow.ref", ref,
				"error", err)
		}
		t.outcome = "rejected"
		t.deliver(ctx, c.presenter.Cancelled())
	case intentEdit:
		t.outcome = "edit_requested"
		t.deliver(ctx, c.presenter.EditRequested(instructions))
	default:
		t.outcome = "reprompt"
		t.deliver(ctx, c.presenter.ApprovalReprompt())
	}
}

// runWorkflow starts a workflow for instruction and reacts to its events
// until the stream ends, fails or pauses for approval. question is what the
// user asked; it is remembered if the answer offers an email.
func (t *turn) runWorkflow(ctx context.Context, question, instruction string) {
	c := t.controller
	t.outcome = "answered"

	req := workflow.StartRequest{
		UserID:         t.utterance.UserID,
		ConversationID: t.utterance.ConversationID,
		Instruction:    instruction,
		UserName:       t.utterance.UserName,
	}

	var (
		workflowID string
		draft      string
		stepNames  = map[string]string{}
	)
	for event, err := range c.backend.StreamWorkflow(ctx, req) {
		if err != nil {
			t.fail(ctx, err)
			return
		}

		switch event := event.(type) {
		case events.Status:
			if event.WorkflowID != "" {
				workflowID = event.WorkflowID
			}
			if event.StepID != "" && event.StepName != "" {
				stepNames[event.StepID] = event.StepName
			}

		case events.StepCompleted:
			name := event.StepName
			if name == events.DefaultStepName && stepNames[event.StepID] != "" {
				name = stepNames[event.StepID]
			}
			switch name {
			case c.steps.Answer:
				t.presented = true
				if offersEmail(event.Result, c.emailOffers) {
					t.session.AwaitConsent(question)
					t.outcome = "email_offered"
					t.deliver(ctx, c.presenter.AnswerWithConsent(event.Result))
				} else {
					t.deliver(ctx, c.presenter.Answer(event.Result))
				}
			case c.steps.Draft:
				draft = event.Result
			case c.steps.Send:
				// A draft sent without an approval pause has not been shown
				// yet.
				if draft != "" && !t.presented {
					t.deliver(ctx, c.presenter.Draft(draft))
				}
				t.presented = true
				t.session.Reset()
				t.outcome = "sent"
				t.deliver(ctx, c.presenter.Sent())
			default:
				logger.DebugContext(ctx, "ignoring completed step",
					"conversation.id", t.utterance.ConversationID,
					"step.name", name)
			}

		case events.ApprovalRequired:
			ref := event.Ref(workflowID)
			if ref == "" {
				t.fail(ctx, workflow.ErrMissingRef)
				return
			}
			t.presented = true
			t.session.AwaitApproval(ref, draft)
			t.outcome = "approval_requested"
			t.deliver(ctx, c.presenter.ApprovalPrompt(draft))
			// The workflow waits for the user now, anything it streams
			// after this point belongs to a decision not yet made.
			return

		case events.WorkflowCompleted:
			switch {
			case t.presented:
			case draft != "":
				t.presented = true
				t.deliver(ctx, c.presenter.Draft(draft))
			default:
				t.presented = true
				t.deliver(ctx, c.presenter.Completion(event.Result))
			}

		case events.Error:
			t.session.Reset()
			if isCancellation(event.Message) {
				t.outcome = "cancelled"
				t.deliver(ctx, c.presenter.Cancelled())
			} else {
				logger.ErrorContext(ctx, "workflow reported an error",
					"conversation.id", t.utterance.ConversationID,
					"error", event.Message)
				t.outcome = "failed"
				t.deliver(ctx, c.presenter.Failure())
			}
			return

		case events.Unknown:
		}
	}
}

func (t *turn) fail(ctx context.Context, err error) {
	logger.ErrorContext(ctx, "workflow request failed",
		"conversation.id", t.utterance.ConversationID,
		"error", err)
	t.session.Reset()
	t.outcome = "failed"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		t.outcome = "aborted"
	}
	t.deliver(context.WithoutCancel(ctx), t.controller.presenter.Failure())
}

func (t *turn) deliver(ctx context.Context, text string) {
	if err := t.controller.sink.Deliver(ctx, t.utterance.ConversationID, text); err != nil {
		logger.ErrorContext(ctx, "failed to deliver message",
			"conversation.id", t.utterance.ConversationID,
			"error", err)
		t.deliverErr = errors.Join(t.deliverErr, err)
	}
}
