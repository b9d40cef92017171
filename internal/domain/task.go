// Package domain provides shared domain types for the Overture orchestration engine.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"time"

	"github.com/overture-dev/overture/internal/constants"
)

// Task represents one end-to-end run of the approval-gated workflow for a
// repository. The task is exclusively owned by the orchestrator; collaborators
// (analyzer, gateway, executor) are stateless with respect to it and return
// values rather than holding references.
//
// Example JSON representation:
//
//	{
//	    "id": "9f1b2c3d-4e5f-6a7b-8c9d-0e1f2a3b4c5d",
//	    "repo_url": "https://github.com/acme/shop",
//	    "user_id": "user-42",
//	    "status": "awaiting_approval",
//	    "action": "FIX_ISSUE",
//	    "plan": "1. Reproduce the crash...",
//	    "plan_version": 1,
//	    "timeline": [...],
//	    "schema_version": 1
//	}
type Task struct {
	// ID is the opaque unique identifier for the task.
	ID string `json:"id"`

	// RepoURL is the source repository reference. It is stored as supplied;
	// only the analyzer's cache key normalizes it.
	RepoURL string `json:"repo_url"`

	// UserID identifies the task's owner for quota and usage accounting.
	UserID string `json:"user_id"`

	// Status is the current state in the task lifecycle. Exactly one value
	// at any time; mutated only through task.Transition.
	Status constants.TaskStatus `json:"status"`

	// Action is the workflow action chosen by the user. Set once from
	// AwaitingAction; immutable afterward.
	Action constants.Action `json:"action,omitempty"`

	// UserInput is the opaque structured payload supplied by the user for
	// the chosen action.
	UserInput map[string]any `json:"user_input,omitempty"`

	// RepoSummary is the analyzer's structured result. Written once during
	// the UnderstandingRepo step, read by prompt construction.
	RepoSummary *RepoSummary `json:"repo_summary,omitempty"`

	// Plan is the generated plan text produced once per planning cycle.
	// Re-planning overwrites it and increments PlanVersion.
	Plan string `json:"plan,omitempty"`

	// PlanVersion counts how many plans have been generated for this task.
	PlanVersion int `json:"plan_version"`

	// ApprovedAt is when the plan was approved (nil until approval).
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	// ApprovedBy identifies who approved the plan. Set exactly once, only
	// from AwaitingApproval.
	ApprovedBy string `json:"approved_by,omitempty"`

	// ExecutionLog is the downstream executor's output log.
	ExecutionLog string `json:"execution_log,omitempty"`

	// Result is the terminal success payload from execution.
	Result string `json:"result,omitempty"`

	// Error records why the task failed. Persisted so later readers of the
	// task see the failure cause, not only the original caller.
	Error string `json:"error,omitempty"`

	// Timeline is the append-only ordered audit log for the task. Entries
	// are never mutated or reordered, only appended.
	Timeline []TimelineEntry `json:"timeline"`

	// Transitions records every status change for audit and replay.
	Transitions []Transition `json:"transitions"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is when the task reached a terminal state (nil before).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// SchemaVersion indicates the version of the Task struct schema.
	// This enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`
}

// TimelineEntry is one event in a task's append-only audit timeline.
// The timeline reconstructs the workflow for audit and UI replay, so
// entries carry the exact order their transitions occurred in.
type TimelineEntry struct {
	// Role identifies the event originator: "system", "user", or "assistant".
	Role string `json:"role"`

	// Type is the event kind (e.g., "task_created", "repo_summary_saved",
	// "action_selected", "plan_generated", "plan_approved",
	// "execution_finished", "task_failed").
	Type string `json:"type"`

	// Content is the event payload, rendered for display.
	Content string `json:"content,omitempty"`

	// CreatedAt is when the event was appended.
	CreatedAt time.Time `json:"created_at"`
}

// Timeline entry types appended by the engine.
const (
	TimelineTaskCreated       = "task_created"
	TimelineRepoSummarySaved  = "repo_summary_saved"
	TimelineActionSelected    = "action_selected"
	TimelinePlanGenerated     = "plan_generated"
	TimelinePlanApproved      = "plan_approved"
	TimelineExecutionFinished = "execution_finished"
	TimelineTaskFailed        = "task_failed"
)

// Timeline entry roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Transition records a single status change for audit purposes.
type Transition struct {
	// FromStatus is the status before the transition.
	FromStatus constants.TaskStatus `json:"from_status"`

	// ToStatus is the status after the transition.
	ToStatus constants.TaskStatus `json:"to_status"`

	// Timestamp is when the transition occurred.
	Timestamp time.Time `json:"timestamp"`

	// Reason is an optional explanation for the transition.
	Reason string `json:"reason,omitempty"`
}
