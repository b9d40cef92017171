package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/overture-dev/overture/internal/clock"
	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
	"github.com/overture-dev/overture/internal/prompt"
)

// Analyzer produces a repository summary. Implemented by sandbox.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, repoURL, taskID string) (*domain.RepoSummary, error)
}

// Planner streams model output for plan generation. Implemented by
// gateway.Gateway.
type Planner interface {
	Stream(ctx context.Context, req domain.GenerationRequest) (<-chan domain.StreamChunk, error)
}

// Executor runs an approved plan downstream. Implementations are expected to
// be idempotent-tolerant: a crash between approval and completion may replay
// the execution call.
type Executor interface {
	Execute(ctx context.Context, task *domain.Task) (result, executionLog string, err error)
}

// QuotaGuard gates task creation per user. Implemented by quota.Guard.
type QuotaGuard interface {
	Consume(ctx context.Context, userID string) error
	Release(ctx context.Context, userID string)
}

// Engine orchestrates the task lifecycle. All operations are synchronous and
// request-triggered; there is no background scheduler. Every status check
// runs inside Store.Mutate against the freshest persisted state, so two
// concurrent calls on one task cannot both pass the same precondition.
type Engine struct {
	store    Store
	analyzer Analyzer
	planner  Planner
	executor Executor
	guard    QuotaGuard
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewEngine creates an Engine with the given collaborators.
func NewEngine(store Store, analyzer Analyzer, planner Planner, executor Executor, guard QuotaGuard, clk clock.Clock, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		analyzer: analyzer,
		planner:  planner,
		executor: executor,
		guard:    guard,
		clock:    clk,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Create creates a task and synchronously runs it through repository
// understanding. On success the task is left in AwaitingAction with the
// summary persisted. Analysis failure leaves a Failed task with the error
// recorded; the quota charge stands because the task exists.
func (e *Engine) Create(ctx context.Context, repoURL, userID string) (*domain.Task, error) {
	if strings.TrimSpace(repoURL) == "" {
		return nil, fmt.Errorf("failed to create task: repo URL %w", overtureerrors.ErrEmptyValue)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("failed to create task: user ID %w", overtureerrors.ErrEmptyValue)
	}

	// Quota is consumed before any task exists; over-limit rejects here.
	if err := e.guard.Consume(ctx, userID); err != nil {
		return nil, err
	}

	now := e.clock.Now().UTC()
	task := &domain.Task{
		ID:        NewTaskID(),
		RepoURL:   repoURL,
		UserID:    userID,
		Status:    constants.TaskStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
		Timeline: []domain.TimelineEntry{{
			Role:      domain.RoleSystem,
			Type:      domain.TimelineTaskCreated,
			Content:   fmt.Sprintf("Task created for %s", repoURL),
			CreatedAt: now,
		}},
	}

	if err := e.store.Create(ctx, task); err != nil {
		// The charge was for a task that never came to exist.
		e.guard.Release(ctx, userID)
		return nil, err
	}

	e.logger.Info().
		Str("task_id", task.ID).
		Str("repo_url", repoURL).
		Str("user_id", userID).
		Msg("task created")

	if _, err := e.store.Mutate(ctx, task.ID, func(t *domain.Task) error {
		return Transition(ctx, e.clock, t, constants.TaskStatusUnderstandingRepo, "analysis started")
	}); err != nil {
		return nil, err
	}

	summary, err := e.analyzer.Analyze(ctx, repoURL, task.ID)
	if err != nil {
		e.fail(ctx, task.ID, err)
		return nil, err
	}

	updated, err := e.store.Mutate(ctx, task.ID, func(t *domain.Task) error {
		t.RepoSummary = summary
		e.appendTimeline(t, domain.RoleSystem, domain.TimelineRepoSummarySaved,
			fmt.Sprintf("Repository summary saved (%d files analyzed)", summary.Counts.AnalyzedFiles))
		return Transition(ctx, e.clock, t, constants.TaskStatusAwaitingAction, "summary saved")
	})
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, task.ID, domain.TimelineRepoSummarySaved, "analysis complete")
	return updated, nil
}

// SetAction sets the workflow action for a task awaiting one and advances it
// to Planning. The action is immutable once set.
func (e *Engine) SetAction(ctx context.Context, taskID string, action constants.Action, userInput map[string]any) (*domain.Task, error) {
	if !constants.IsValidAction(action) {
		return nil, fmt.Errorf("%w: %s", overtureerrors.ErrInvalidAction, action)
	}

	updated, err := e.store.Mutate(ctx, taskID, func(t *domain.Task) error {
		if t.Status != constants.TaskStatusAwaitingAction {
			return fmt.Errorf("%w: cannot set action in status %s",
				overtureerrors.ErrInvalidTransition, t.Status)
		}
		if t.Action != "" {
			return fmt.Errorf("%w: action already set to %s",
				overtureerrors.ErrActionImmutable, t.Action)
		}

		t.Action = action
		t.UserInput = userInput
		e.appendTimeline(t, domain.RoleUser, domain.TimelineActionSelected, action.String())
		return Transition(ctx, e.clock, t, constants.TaskStatusPlanning, "action selected")
	})
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, taskID, domain.TimelineActionSelected, action.String())
	return updated, nil
}

// GeneratePlan streams a plan for a task in Planning. Fragments are forwarded
// to onFragment as they arrive and accumulated into the persisted plan. On
// mid-stream failure the task stays in Planning and the call can be retried;
// fragments already forwarded stand.
func (e *Engine) GeneratePlan(ctx context.Context, taskID, modelID string, onFragment func(string)) (*domain.Task, error) {
	current, err := e.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if current.Status != constants.TaskStatusPlanning {
		return nil, fmt.Errorf("%w: cannot generate plan in status %s",
			overtureerrors.ErrInvalidTransition, current.Status)
	}
	if current.RepoSummary == nil {
		return nil, fmt.Errorf("failed to generate plan: %w", overtureerrors.ErrMissingSummary)
	}
	if current.Action == "" {
		return nil, fmt.Errorf("failed to generate plan: %w", overtureerrors.ErrMissingAction)
	}

	promptText, err := prompt.BuildPlan(current.Action, current.RepoSummary, current.UserInput)
	if err != nil {
		return nil, err
	}

	chunks, err := e.planner.Stream(ctx, domain.GenerationRequest{
		Prompt:  promptText,
		UseCase: constants.UseCasePlanGeneration,
		ModelID: modelID,
		UserID:  current.UserID,
		TaskID:  taskID,
	})
	if err != nil {
		return nil, err
	}

	var plan strings.Builder
	for chunk := range chunks {
		switch chunk.Kind {
		case domain.ChunkText:
			plan.WriteString(chunk.Text)
			if onFragment != nil {
				onFragment(chunk.Text)
			}
		case domain.ChunkError:
			return nil, chunk.Err
		case domain.ChunkUsage:
			// Ledger recording happens inside the gateway.
		}
	}

	planText := plan.String()
	if strings.TrimSpace(planText) == "" {
		return nil, fmt.Errorf("%w: model produced an empty plan", overtureerrors.ErrGenerationFailed)
	}

	updated, err := e.store.Mutate(ctx, taskID, func(t *domain.Task) error {
		// The stream ran outside the lock; re-check against fresh state.
		if t.Status != constants.TaskStatusPlanning {
			return fmt.Errorf("%w: cannot save plan in status %s",
				overtureerrors.ErrInvalidTransition, t.Status)
		}
		t.Plan = planText
		t.PlanVersion++
		e.appendTimeline(t, domain.RoleAssistant, domain.TimelinePlanGenerated, planText)
		return Transition(ctx, e.clock, t, constants.TaskStatusAwaitingApproval, "plan generated")
	})
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, taskID, domain.TimelinePlanGenerated,
		fmt.Sprintf("plan version %d", updated.PlanVersion))
	return updated, nil
}

// Approve records human approval of the current plan and advances the task
// to Executing. This is the single mandatory gate: no path reaches Executing
// without it.
func (e *Engine) Approve(ctx context.Context, taskID, approvedBy string) (*domain.Task, error) {
	if strings.TrimSpace(approvedBy) == "" {
		return nil, fmt.Errorf("failed to approve task: approver %w", overtureerrors.ErrEmptyValue)
	}

	updated, err := e.store.Mutate(ctx, taskID, func(t *domain.Task) error {
		if t.Status != constants.TaskStatusAwaitingApproval {
			return fmt.Errorf("%w: cannot approve in status %s",
				overtureerrors.ErrInvalidTransition, t.Status)
		}
		if strings.TrimSpace(t.Plan) == "" {
			return fmt.Errorf("failed to approve task: %w", overtureerrors.ErrMissingPlan)
		}

		now := e.clock.Now().UTC()
		t.ApprovedAt = &now
		t.ApprovedBy = approvedBy
		e.appendTimeline(t, domain.RoleUser, domain.TimelinePlanApproved,
			fmt.Sprintf("Plan version %d approved by %s", t.PlanVersion, approvedBy))
		return Transition(ctx, e.clock, t, constants.TaskStatusExecuting, "plan approved")
	})
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, taskID, domain.TimelinePlanApproved, approvedBy)
	return updated, nil
}

// Execute runs the approved plan through the downstream executor. Success
// persists the result and completes the task; failure persists the error and
// fails it.
func (e *Engine) Execute(ctx context.Context, taskID string) (*domain.Task, error) {
	current, err := e.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if current.Status != constants.TaskStatusExecuting {
		return nil, fmt.Errorf("%w: cannot execute in status %s",
			overtureerrors.ErrInvalidTransition, current.Status)
	}

	result, executionLog, err := e.executor.Execute(ctx, current)
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", overtureerrors.ErrExecutionFailed, err)
		e.fail(ctx, taskID, wrapped)
		return nil, wrapped
	}

	updated, err := e.store.Mutate(ctx, taskID, func(t *domain.Task) error {
		if t.Status != constants.TaskStatusExecuting {
			return fmt.Errorf("%w: cannot complete in status %s",
				overtureerrors.ErrInvalidTransition, t.Status)
		}
		t.Result = result
		t.ExecutionLog = executionLog
		e.appendTimeline(t, domain.RoleSystem, domain.TimelineExecutionFinished, result)
		return Transition(ctx, e.clock, t, constants.TaskStatusCompleted, "execution finished")
	})
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, taskID, domain.TimelineExecutionFinished, "execution complete")
	return updated, nil
}

// Get returns the current state of a task.
func (e *Engine) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	return e.store.Get(ctx, taskID)
}

// List returns all tasks, newest first.
func (e *Engine) List(ctx context.Context) ([]*domain.Task, error) {
	return e.store.List(ctx)
}

// fail moves a task to Failed with the cause persisted on the task. Failures
// while failing are logged, not returned: the original error matters more.
func (e *Engine) fail(ctx context.Context, taskID string, cause error) {
	_, err := e.store.Mutate(ctx, taskID, func(t *domain.Task) error {
		if IsTerminalStatus(t.Status) {
			return nil
		}
		t.Error = cause.Error()
		e.appendTimeline(t, domain.RoleSystem, domain.TimelineTaskFailed, cause.Error())
		return Transition(ctx, e.clock, t, constants.TaskStatusFailed, cause.Error())
	})
	if err != nil {
		e.logger.Error().Err(err).
			Str("task_id", taskID).
			Str("cause", cause.Error()).
			Msg("failed to persist task failure")
		return
	}

	e.logEvent(ctx, taskID, domain.TimelineTaskFailed, cause.Error())
}

// appendTimeline appends one entry to the task's audit timeline.
func (e *Engine) appendTimeline(t *domain.Task, role, entryType, content string) {
	t.Timeline = append(t.Timeline, domain.TimelineEntry{
		Role:      role,
		Type:      entryType,
		Content:   content,
		CreatedAt: e.clock.Now().UTC(),
	})
}

// logEvent appends a JSON-lines entry to the task's on-disk log. Log append
// failures never fail the operation that produced the event.
func (e *Engine) logEvent(ctx context.Context, taskID, eventType, detail string) {
	entry, err := json.Marshal(map[string]string{
		"timestamp": e.clock.Now().UTC().Format(time.RFC3339),
		"type":      eventType,
		"detail":    detail,
	})
	if err != nil {
		return
	}
	if err := e.store.AppendLog(ctx, taskID, entry); err != nil {
		e.logger.Warn().Err(err).Str("task_id", taskID).Msg("failed to append task log")
	}
}
