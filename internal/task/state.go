// Package task provides task lifecycle management for Overture.
//
// This file implements the task state machine, which enforces valid state
// transitions and maintains an audit trail of all status changes.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/clock, std lib
//   - MUST NOT import: internal/sandbox, internal/gateway, internal/cli
package task

import (
	"context"
	"fmt"

	"github.com/overture-dev/overture/internal/clock"
	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

// ValidTransitions defines all allowed state transitions in the task
// lifecycle. Format: from_status -> []to_statuses
//
// The happy path is a single forward chain with no skipping and no backing
// up:
//
//	Created → UnderstandingRepo → AwaitingAction → Planning →
//	AwaitingApproval → Executing → Completed
//
// Failed is reachable from every non-terminal state. Planning has no exit
// to itself: a task whose plan generation fails simply stays in Planning,
// no transition recorded, and the call can be retried.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.TaskStatus][]constants.TaskStatus{
	constants.TaskStatusCreated: {
		constants.TaskStatusUnderstandingRepo,
		constants.TaskStatusFailed,
	},
	constants.TaskStatusUnderstandingRepo: {
		constants.TaskStatusAwaitingAction,
		constants.TaskStatusFailed,
	},
	constants.TaskStatusAwaitingAction: {
		constants.TaskStatusPlanning,
		constants.TaskStatusFailed,
	},
	constants.TaskStatusPlanning: {
		constants.TaskStatusAwaitingApproval,
		constants.TaskStatusFailed,
	},
	constants.TaskStatusAwaitingApproval: {
		constants.TaskStatusExecuting,
		constants.TaskStatusFailed,
	},
	constants.TaskStatusExecuting: {
		constants.TaskStatusCompleted,
		constants.TaskStatusFailed,
	},
}

// terminalStatuses defines states where no further transitions are allowed.
// These are intentionally duplicated from ValidTransitions for O(1) lookup.
// MAINTENANCE: When adding new statuses, update both ValidTransitions and
// this map.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalStatuses = map[constants.TaskStatus]bool{
	constants.TaskStatusCompleted: true,
	constants.TaskStatusFailed:    true,
}

// IsValidTransition checks if a transition from one status to another is
// allowed. Returns false for transitions from terminal states or to the same
// state: re-entering the current status is always invalid, including
// Failed → Failed.
func IsValidTransition(from, to constants.TaskStatus) bool {
	if from == to {
		return false
	}

	validTargets, exists := ValidTransitions[from]
	if !exists {
		return false // Terminal state or unknown state
	}
	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus returns true for states where no further transitions are
// allowed. Terminal states: Completed, Failed.
func IsTerminalStatus(status constants.TaskStatus) bool {
	return terminalStatuses[status]
}

// NextStatus returns the single forward successor of a status, or false for
// terminal and unknown states. Failed is never a "next" status; it is only
// reached explicitly.
func NextStatus(from constants.TaskStatus) (constants.TaskStatus, bool) {
	targets, exists := ValidTransitions[from]
	if !exists {
		return "", false
	}
	for _, target := range targets {
		if target != constants.TaskStatusFailed {
			return target, true
		}
	}
	return "", false
}

// GetValidTargetStatuses returns all valid target statuses for a given
// status. Returns nil for terminal states or unknown statuses.
func GetValidTargetStatuses(from constants.TaskStatus) []constants.TaskStatus {
	targets, exists := ValidTransitions[from]
	if !exists {
		return nil
	}
	result := make([]constants.TaskStatus, len(targets))
	copy(result, targets)
	return result
}

// Transition validates and applies a state transition to the task.
// It records the transition in the task's audit history and updates
// timestamps. The caller is responsible for persisting the updated task.
//
// Returns an error if:
//   - ctx is canceled
//   - task is nil
//   - The transition is invalid (returns wrapped ErrInvalidTransition)
//
// On a rejected transition the task is left untouched: no status change, no
// timestamp change, no audit entry.
func Transition(ctx context.Context, clk clock.Clock, task *domain.Task, to constants.TaskStatus, reason string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if task == nil {
		return fmt.Errorf("%w: task is nil", overtureerrors.ErrInvalidTransition)
	}

	from := task.Status
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			overtureerrors.ErrInvalidTransition, from, to)
	}

	now := clk.Now().UTC()

	task.Transitions = append(task.Transitions, domain.Transition{
		FromStatus: from,
		ToStatus:   to,
		Timestamp:  now,
		Reason:     reason,
	})

	task.Status = to
	task.UpdatedAt = now

	if IsTerminalStatus(to) {
		task.CompletedAt = &now
	}

	return nil
}
