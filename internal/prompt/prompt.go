// Package prompt builds the text sent to the model gateway.
//
// Construction is deterministic: the same summary, action, and user input
// always produce byte-identical text. The gateway memoizes on exact prompt
// text, so any nondeterminism here (map iteration order, timestamps) would
// silently defeat the cache.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

// actionInstructions maps each action to the task framing placed at the top
// of the plan prompt.
var actionInstructions = map[constants.Action]string{
	constants.ActionFixIssue:         "Produce a step-by-step plan to diagnose and fix the described issue in this repository.",
	constants.ActionImplementFeature: "Produce a step-by-step implementation plan for the described feature in this repository.",
	constants.ActionReviewPR:         "Produce a structured review plan for the described pull request against this repository.",
	constants.ActionRefactorCode:     "Produce a step-by-step refactoring plan for the described code in this repository.",
}

// BuildPlan renders the plan-generation prompt for a task.
func BuildPlan(action constants.Action, summary *domain.RepoSummary, userInput map[string]any) (string, error) {
	instruction, ok := actionInstructions[action]
	if !ok {
		return "", fmt.Errorf("%w: %s", overtureerrors.ErrInvalidAction, action)
	}
	if summary == nil {
		return "", overtureerrors.ErrMissingSummary
	}

	summaryJSON, err := encodeSummary(summary)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\n## Repository summary\n")
	sb.WriteString(summaryJSON)
	sb.WriteString("\n\n## Request details\n")
	sb.WriteString(encodeUserInput(userInput))
	return sb.String(), nil
}

// encodeSummary renders the summary as stable JSON. encoding/json sorts map
// keys, which is the determinism guarantee this package leans on.
func encodeSummary(summary *domain.RepoSummary) (string, error) {
	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	return string(raw), nil
}

// encodeUserInput renders user-provided key/value pairs in sorted key order.
func encodeUserInput(userInput map[string]any) string {
	if len(userInput) == 0 {
		return "(none)"
	}

	keys := make([]string, 0, len(userInput))
	for key := range userInput {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString("- ")
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(fmt.Sprintf("%v", userInput[key]))
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
