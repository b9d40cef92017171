// Package constants provides centralized constant values used throughout Overture.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// File names used by Overture for state persistence.
const (
	// TaskFileName is the name of the JSON file that stores task state.
	TaskFileName = "task.json"

	// TaskLogFileName is the name of the JSON-lines file that captures
	// task execution output.
	TaskLogFileName = "task.log"

	// UsageLedgerFileName is the name of the JSON-lines file where model
	// token consumption entries are appended.
	UsageLedgerFileName = "usage.jsonl"
)

// Directory names and paths used by Overture for organizing data.
const (
	// OvertureHome is the hidden directory name where Overture stores all its data.
	// This directory is created in the user's home directory.
	OvertureHome = ".overture"

	// TasksDir is the directory name where task-related files are stored.
	TasksDir = "tasks"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global Overture configuration file.
	// This file is located in the Overture home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigDir is the per-project directory that may hold a
	// project-level config.yaml overriding the global one.
	ProjectConfigDir = ".overture"
)

// Timeout configurations for external operations.
const (
	// DefaultAnalysisTimeout bounds the full sandboxed analysis run:
	// container provisioning, shallow clone, and script execution.
	DefaultAnalysisTimeout = 5 * time.Minute

	// DefaultGenerationTimeout bounds a single model gateway call,
	// streaming or not.
	DefaultGenerationTimeout = 10 * time.Minute

	// SandboxTeardownTimeout bounds container removal. Teardown runs on a
	// background context so a canceled analysis still reclaims the sandbox.
	SandboxTeardownTimeout = 30 * time.Second
)

// Cache TTL defaults. Repository analyses age slowly; plans reflect repo
// state more directly and expire sooner.
const (
	// DefaultAnalysisCacheTTL is how long memoized repository analyses live.
	DefaultAnalysisCacheTTL = 12 * time.Hour

	// DefaultGenerationCacheTTL is how long memoized model responses live.
	DefaultGenerationCacheTTL = 2 * time.Hour
)

// Quota defaults per subscription tier (tasks per user per calendar day).
const (
	// DefaultFreeTierDailyLimit is the daily task limit for free-tier users.
	DefaultFreeTierDailyLimit = 5

	// DefaultProTierDailyLimit is the daily task limit for pro-tier users.
	DefaultProTierDailyLimit = 50

	// DefaultTeamTierDailyLimit is the daily task limit for team-tier users.
	DefaultTeamTierDailyLimit = 200
)

// Sandbox defaults.
const (
	// DefaultSandboxImage is the container image used for repository analysis.
	// It ships a Python runtime; git is installed at provision time.
	DefaultSandboxImage = "python:3.12-alpine"

	// SandboxNamePrefix prefixes every analysis container name. The task ID
	// completes the name, so concurrent analyses never collide.
	SandboxNamePrefix = "overture-"

	// SandboxRepoPath is where the target repository is cloned inside the
	// sandbox.
	SandboxRepoPath = "/workspace/repo"

	// SandboxScriptPath is where the analysis script is copied inside the
	// sandbox.
	SandboxScriptPath = "/workspace/analyze.py"
)

// Token estimation. The gateway guards prompt size with a character-count
// heuristic, not a real tokenizer.
const (
	// CharsPerToken is the divisor used to estimate tokens from prompt length.
	CharsPerToken = 4
)

// CLI log rotation settings.
const (
	// CLILogFileName is the rotating log file under <home>/logs.
	CLILogFileName = "overture.log"

	// LogMaxSizeMB is the size in megabytes before the log file is rotated.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the number of days to retain rotated log files.
	LogMaxAgeDays = 30

	// LogCompress controls gzip compression of rotated log files.
	LogCompress = true
)

// Schema version constants for data migration support.
const (
	// TaskSchemaVersion is the current version of the Task JSON schema.
	TaskSchemaVersion = 1
)
