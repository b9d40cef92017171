package domain

import "github.com/overture-dev/overture/internal/constants"

// QuotaRecord tracks one user's daily task allowance.
//
// Invariant: TaskUsedToday is reset to 0 the first time the record is
// touched on a new calendar day (lazy reset at the point of use, not by a
// background job).
type QuotaRecord struct {
	// UserID identifies the record's owner.
	UserID string `json:"user_id"`

	// Tier is the user's subscription tier.
	Tier constants.Tier `json:"tier"`

	// TaskUsedToday counts tasks created since the last reset.
	TaskUsedToday int `json:"task_used_today"`

	// DailyTaskLimit is the maximum tasks per calendar day for this user.
	DailyTaskLimit int `json:"daily_task_limit"`

	// LastResetDate is the local calendar date (YYYY-MM-DD) the counter was
	// last reset on.
	LastResetDate string `json:"last_reset_date"`
}
