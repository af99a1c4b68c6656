package events

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"

	"github.com/koscakluka/ema-workflow/core/sse"
)

var stepNameKeys = []string{"step_name", "tool_name", "name"}

const approvalPathPrefix = "/workflow/approve/"

// Decode maps a frame onto a workflow event. It never fails: frames that are
// not JSON objects, or that carry an unrecognised tag, decode to [Unknown].
//
// The tag is the frame's event name, falling back to a type or event_type
// field in the payload.
func Decode(frame sse.Frame) Event {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil || payload == nil {
		return NewUnknown(frame.Event, frame.Data)
	}

	tag := Kind(strings.TrimSpace(frame.Event))
	if tag == "" {
		tag = Kind(field(payload, "type", "event_type"))
	}

	switch {
	case statusKinds[tag]:
		return Status{
			Base:       NewBase(tag),
			Message:    field(payload, "message"),
			WorkflowID: field(payload, "workflow_id"),
			StepID:     field(payload, "step_id"),
			StepName:   field(payload, stepNameKeys...),
		}

	case tag == KindStepCompleted:
		stepName := field(payload, stepNameKeys...)
		if stepName == "" {
			stepName = DefaultStepName
		}
		return StepCompleted{
			Base:     NewBase(KindStepCompleted),
			StepID:   field(payload, "step_id"),
			StepName: stepName,
			Result:   field(payload, "result"),
		}

	case tag == KindApprovalRequired:
		workflowID := field(payload, "workflow_id")
		if workflowID == "" {
			workflowID = workflowIDFromURL(field(payload, "approval_url"))
		}
		return ApprovalRequired{
			Base:       NewBase(KindApprovalRequired),
			Message:    field(payload, "message"),
			ApprovalID: field(payload, "approval_id"),
			StepID:     field(payload, "step_id"),
			StepName:   field(payload, stepNameKeys...),
			WorkflowID: workflowID,
		}

	case tag == KindWorkflowCompleted:
		return WorkflowCompleted{
			Base:       NewBase(KindWorkflowCompleted),
			Result:     field(payload, "final_result", "message"),
			WorkflowID: field(payload, "workflow_id"),
		}

	case errorAliases[tag]:
		return NewError(field(payload, "message", "error", "detail"))

	default:
		return NewUnknown(string(tag), frame.Data)
	}
}

// field returns the first non-empty value among keys. Strings are returned
// as is, other JSON values as their compact encoding.
func field(payload map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			continue
		}
		return compact.String()
	}
	return ""
}

func workflowIDFromURL(approvalURL string) string {
	if !strings.Contains(approvalURL, approvalPathPrefix) {
		return ""
	}
	id := path.Base(approvalURL)
	if id == "." || id == "/" || id == "approve" {
		return ""
	}
	return id
}
