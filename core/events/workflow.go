package events

const (
	KindWorkflowStarted   Kind = "workflow_started"
	KindPlanning          Kind = "planning"
	KindPlanCreated       Kind = "plan_created"
	KindStepStarted       Kind = "step_started"
	KindToolExecuting     Kind = "tool_executing"
	KindDynamicStepsAdded Kind = "dynamic_steps_added"
	KindApprovalGranted   Kind = "approval_granted"
	KindWaitingApproval   Kind = "waiting_approval"

	KindStepCompleted     Kind = "step_completed"
	KindApprovalRequired  Kind = "approval_required"
	KindWorkflowCompleted Kind = "workflow_completed"
	KindError             Kind = "error"
	KindUnknown           Kind = "unknown"
)

// DefaultStepName is used when a step event names no step.
const DefaultStepName = "unknown step"

var statusKinds = map[Kind]bool{
	KindWorkflowStarted:   true,
	KindPlanning:          true,
	KindPlanCreated:       true,
	KindStepStarted:       true,
	KindToolExecuting:     true,
	KindDynamicStepsAdded: true,
	KindApprovalGranted:   true,
	KindWaitingApproval:   true,
}

// Failure tags the service uses besides error. They all decode to [Error].
var errorAliases = map[Kind]bool{
	KindError:         true,
	"step_failed":     true,
	"workflow_failed": true,
	"workflow_error":  true,
}

// Status is an informational progress event.
type Status struct {
	Base
	Message    string
	WorkflowID string
	StepID     string
	StepName   string
}

// NewStatus creates a status event. kind must be one of the status kinds;
// anything else is turned into [KindUnknown].
func NewStatus(kind Kind, message string) Status {
	if !statusKinds[kind] {
		kind = KindUnknown
	}
	return Status{Base: NewBase(kind), Message: message}
}

// StepCompleted reports a finished workflow step.
type StepCompleted struct {
	Base
	StepID   string
	StepName string
	Result   string
}

func NewStepCompleted(stepName, result string) StepCompleted {
	if stepName == "" {
		stepName = DefaultStepName
	}
	return StepCompleted{Base: NewBase(KindStepCompleted), StepName: stepName, Result: result}
}

// ApprovalRequired pauses the workflow until a human decides.
type ApprovalRequired struct {
	Base
	Message    string
	ApprovalID string
	StepID     string
	StepName   string
	WorkflowID string
}

func NewApprovalRequired(workflowID string) ApprovalRequired {
	return ApprovalRequired{Base: NewBase(KindApprovalRequired), WorkflowID: workflowID}
}

// Ref returns the reference to use when approving: the event's workflow id,
// else seenWorkflowID (a workflow id reported earlier in the same stream),
// else the approval id.
func (e ApprovalRequired) Ref(seenWorkflowID string) string {
	switch {
	case e.WorkflowID != "":
		return e.WorkflowID
	case seenWorkflowID != "":
		return seenWorkflowID
	}
	return e.ApprovalID
}

// WorkflowCompleted ends a workflow. Result holds final_result, or message
// when the service sent no final result.
type WorkflowCompleted struct {
	Base
	Result     string
	WorkflowID string
}

func NewWorkflowCompleted(result string) WorkflowCompleted {
	return WorkflowCompleted{Base: NewBase(KindWorkflowCompleted), Result: result}
}

// Error is a failure reported by the workflow service itself.
type Error struct {
	Base
	Message string
}

func NewError(message string) Error {
	return Error{Base: NewBase(KindError), Message: message}
}

// Unknown wraps a frame that could not be decoded. Tag is the frame's
// event name or payload type, if any.
type Unknown struct {
	Base
	Tag string
	Raw string
}

func NewUnknown(tag, raw string) Unknown {
	return Unknown{Base: NewBase(KindUnknown), Tag: tag, Raw: raw}
}

// IsInformational reports whether the event is status-only.
func IsInformational(event Event) bool {
	_, ok := event.(Status)
	return ok
}
