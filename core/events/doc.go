// Package events defines the typed workflow event contract and the decoder
// that maps stream frames onto it.
//
// Event kinds mirror the tags emitted by the workflow service:
//
//   - Status (workflow_started, planning, plan_created, step_started,
//     tool_executing, dynamic_steps_added, approval_granted,
//     waiting_approval): informational progress, never shown to the user.
//   - StepCompleted (step_completed): a step finished with a result.
//   - ApprovalRequired (approval_required): the workflow is paused until a
//     human approves or rejects the pending step.
//   - WorkflowCompleted (workflow_completed): the workflow finished.
//   - Error (error, step_failed, workflow_failed, workflow_error): the
//     workflow reported a failure or was stopped.
//   - Unknown (unknown): anything that could not be decoded.
//
// The set is closed. [Event] carries an unexported marker method so only the
// types in this package satisfy it, and consumers can switch over the
// concrete types exhaustively.
package events
