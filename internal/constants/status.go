package constants

// TaskStatus represents the state of a task in the Overture state machine.
// Status values use snake_case for JSON serialization compatibility.
type TaskStatus string

// Task status constants define the valid states a task can be in.
// These follow the single forward path of the workflow:
//
//	Created → UnderstandingRepo → AwaitingAction → Planning →
//	AwaitingApproval → Executing → Completed
//
// Failed is reachable from every non-terminal state.
const (
	// TaskStatusCreated indicates a task record exists but analysis has
	// not started yet.
	TaskStatusCreated TaskStatus = "created"

	// TaskStatusUnderstandingRepo indicates the sandboxed analyzer is
	// producing the repository summary.
	TaskStatusUnderstandingRepo TaskStatus = "understanding_repo"

	// TaskStatusAwaitingAction indicates the summary is saved and the task
	// is waiting for the user to choose an action.
	TaskStatusAwaitingAction TaskStatus = "awaiting_action"

	// TaskStatusPlanning indicates an action is set and a plan can be
	// generated. A task stays here if plan generation fails, so the call
	// can be retried.
	TaskStatusPlanning TaskStatus = "planning"

	// TaskStatusAwaitingApproval indicates a plan exists and the task is
	// waiting for explicit human approval. This is the mandatory gate: no
	// earlier state may reach Executing directly.
	TaskStatusAwaitingApproval TaskStatus = "awaiting_approval"

	// TaskStatusExecuting indicates the plan was approved and the
	// downstream executor is running.
	TaskStatusExecuting TaskStatus = "executing"

	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task hit an unrecoverable error.
	// The error is persisted on the task; the user must create a new task.
	TaskStatusFailed TaskStatus = "failed"
)

// String returns the string representation of the TaskStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s TaskStatus) String() string {
	return string(s)
}

// UseCase names a model gateway purpose with its own token and
// temperature policy.
type UseCase string

// Gateway use cases. Every call must name one; policies are looked up, never
// defaulted.
const (
	// UseCaseRepoUnderstanding summarizes repository analyses.
	UseCaseRepoUnderstanding UseCase = "repo-understanding"

	// UseCasePlanGeneration produces the execution plan the user approves.
	UseCasePlanGeneration UseCase = "plan-generation"

	// UseCasePRReview reviews pull request diffs.
	UseCasePRReview UseCase = "pr-review"

	// UseCaseCodeGeneration generates code during execution.
	UseCaseCodeGeneration UseCase = "code-generation"
)

// String returns the string representation of the UseCase.
func (u UseCase) String() string {
	return string(u)
}

// Action is the workflow action a user selects for a task.
// Once set on a task it is immutable.
type Action string

// Supported task actions.
const (
	// ActionFixIssue plans a fix for a reported issue.
	ActionFixIssue Action = "FIX_ISSUE"

	// ActionImplementFeature plans a new feature implementation.
	ActionImplementFeature Action = "IMPLEMENT_FEATURE"

	// ActionReviewPR plans and performs a pull request review.
	ActionReviewPR Action = "REVIEW_PR"

	// ActionRefactorCode plans a refactoring pass.
	ActionRefactorCode Action = "REFACTOR_CODE"
)

// String returns the string representation of the Action.
func (a Action) String() string {
	return string(a)
}

// ValidActions lists every supported action value.
func ValidActions() []Action {
	return []Action{ActionFixIssue, ActionImplementFeature, ActionReviewPR, ActionRefactorCode}
}

// IsValidAction reports whether a is a known action value.
func IsValidAction(a Action) bool {
	switch a {
	case ActionFixIssue, ActionImplementFeature, ActionReviewPR, ActionRefactorCode:
		return true
	default:
		return false
	}
}

// Tier identifies a user's subscription tier for quota purposes.
type Tier string

// Subscription tiers.
const (
	// TierFree is the default tier for users without a subscription.
	TierFree Tier = "free"

	// TierPro is the individual paid tier.
	TierPro Tier = "pro"

	// TierTeam is the organization tier.
	TierTeam Tier = "team"
)

// String returns the string representation of the Tier.
func (t Tier) String() string {
	return string(t)
}
