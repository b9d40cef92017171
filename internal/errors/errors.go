// Package errors provides centralized error handling for Overture.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrInvalidTransition indicates an attempt to make an invalid state
	// transition, including calling a transition operation when the task's
	// current status does not match the operation's precondition. Always a
	// caller usage error; never retried automatically.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAnalysisFailed indicates the sandboxed repository analysis failed:
	// clone failure, script failure, or empty output. Terminal for the task.
	ErrAnalysisFailed = errors.New("repository analysis failed")

	// ErrPromptTooLarge indicates the estimated prompt token count exceeds
	// the use case's input ceiling. Surfaced before any network call.
	ErrPromptTooLarge = errors.New("prompt exceeds input token limit")

	// ErrInvalidModel indicates a model id that is not in the known-model
	// registry. Surfaced before any network call.
	ErrInvalidModel = errors.New("invalid model")

	// ErrUnknownUseCase indicates a gateway call named a use case with no
	// configured policy. Policy lookup is mandatory.
	ErrUnknownUseCase = errors.New("unknown use case")

	// ErrGenerationFailed is the opaque wrap for any model backend or
	// transport failure.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrQuotaExceeded indicates the user's daily task limit is exhausted.
	ErrQuotaExceeded = errors.New("daily task quota exceeded")

	// ErrCacheRead indicates a cache read failure. Never propagated past the
	// consulting component: the cache is an optimization, failures degrade
	// to "go to source" and are logged only.
	ErrCacheRead = errors.New("cache read failed")

	// ErrCacheWrite indicates a cache write failure. Same policy as
	// ErrCacheRead: logged, never propagated.
	ErrCacheWrite = errors.New("cache write failed")

	// ErrSandboxFailed indicates the sandbox provider could not provision,
	// exec inside, or copy into the analysis environment.
	ErrSandboxFailed = errors.New("sandbox operation failed")

	// ErrEmptySummary indicates the analysis script produced empty or
	// whitespace-only output. This is a hard failure, never an empty summary.
	ErrEmptySummary = errors.New("analysis produced empty output")

	// ErrMissingSummary indicates plan generation was attempted on a task
	// without a repository summary. Defensive: the state machine should make
	// this impossible.
	ErrMissingSummary = errors.New("task has no repository summary")

	// ErrMissingAction indicates plan generation was attempted on a task
	// without an action. Defensive, as with ErrMissingSummary.
	ErrMissingAction = errors.New("task has no action")

	// ErrMissingPlan indicates approval was attempted on a task whose plan
	// is empty.
	ErrMissingPlan = errors.New("task has no plan")

	// ErrActionImmutable indicates an attempt to change a task's action
	// after it was set.
	ErrActionImmutable = errors.New("action is immutable once set")

	// ErrInvalidAction indicates an unknown action value was supplied.
	ErrInvalidAction = errors.New("invalid action")

	// ErrExecutionFailed indicates the downstream executor reported failure.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrTaskNotFound indicates that a specific task was not found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskExists indicates an attempt to create a task that already exists.
	ErrTaskExists = errors.New("task already exists")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrLockTimeout indicates a file lock could not be acquired within the
	// timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrPathTraversal indicates an attempt to use path traversal in a filename.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalid indicates an invalid configuration value.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrStreamClosed indicates the model backend closed its stream without
	// delivering a final usage record.
	ErrStreamClosed = errors.New("stream closed before completion")
)
