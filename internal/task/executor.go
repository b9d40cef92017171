package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/overture-dev/overture/internal/clock"
	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/domain"
)

// Caller performs blocking generation calls. Implemented by gateway.Gateway.
type Caller interface {
	Call(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

// ModelExecutor implements Executor by running the approved plan through the
// model gateway's code-generation policy. The generated output is the
// execution result; the log records the call shape for audit.
type ModelExecutor struct {
	caller Caller
	clock  clock.Clock
	logger zerolog.Logger
}

// NewModelExecutor creates a ModelExecutor backed by the given caller.
func NewModelExecutor(caller Caller, clk clock.Clock, logger zerolog.Logger) *ModelExecutor {
	return &ModelExecutor{
		caller: caller,
		clock:  clk,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// Execute runs the task's approved plan.
func (x *ModelExecutor) Execute(ctx context.Context, task *domain.Task) (string, string, error) {
	started := x.clock.Now().UTC()

	result, err := x.caller.Call(ctx, domain.GenerationRequest{
		Prompt:  executionPrompt(task),
		UseCase: constants.UseCaseCodeGeneration,
		UserID:  task.UserID,
		TaskID:  task.ID,
	})
	if err != nil {
		return "", "", err
	}

	executionLog := fmt.Sprintf("started=%s finished=%s model_cache_hit=%t input_tokens=%d output_tokens=%d",
		started.Format(time.RFC3339),
		x.clock.Now().UTC().Format(time.RFC3339),
		result.FromCache,
		result.Usage.InputTokens,
		result.Usage.OutputTokens)

	x.logger.Info().
		Str("task_id", task.ID).
		Bool("from_cache", result.FromCache).
		Int("output_tokens", result.Usage.OutputTokens).
		Msg("execution finished")

	return result.Text, executionLog, nil
}

// executionPrompt renders the approved plan as the execution request. The
// plan text the human approved is exactly what executes, nothing regenerated.
func executionPrompt(task *domain.Task) string {
	var sb strings.Builder
	sb.WriteString("Execute the following approved plan for repository ")
	sb.WriteString(task.RepoURL)
	sb.WriteString(". Produce the complete changes the plan calls for.\n\n")
	sb.WriteString("## Approved plan (version ")
	sb.WriteString(fmt.Sprintf("%d", task.PlanVersion))
	sb.WriteString(")\n")
	sb.WriteString(task.Plan)
	return sb.String()
}
