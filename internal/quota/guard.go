// Package quota enforces per-user daily task limits.
//
// The reset is lazy: "reset semantics are evaluated at the point of use",
// never by a background clock. Counters are date-scoped in the cache store,
// so a new calendar day addresses a fresh counter and the stale one expires
// on its own. Enforcement uses a single atomic conditional increment
// (increment, compare, decrement-and-reject on overflow) so the check and
// the increment cannot race.
package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/overture-dev/overture/internal/cache"
	"github.com/overture-dev/overture/internal/clock"
	"github.com/overture-dev/overture/internal/config"
	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/ctxutil"
	"github.com/overture-dev/overture/internal/domain"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

// counterSlack keeps the expired counter around briefly past midnight so
// in-flight operations straddling the rollover still see it.
const counterSlack = time.Hour

// ExceededError reports a quota rejection with enough detail for the caller
// to render a specific message. It wraps ErrQuotaExceeded for errors.Is.
type ExceededError struct {
	// UserID is the rejected user.
	UserID string

	// Used is the number of tasks created today, including the rejected one.
	Used int

	// Limit is the user's daily task limit.
	Limit int

	// ResetAt is when the counter next resets (local midnight).
	ResetAt time.Time
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("daily task quota exceeded: %d/%d used, resets at %s",
		e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// Unwrap returns the sentinel so errors.Is(err, ErrQuotaExceeded) works.
func (e *ExceededError) Unwrap() error {
	return overtureerrors.ErrQuotaExceeded
}

// ResetIfStale returns record with its counter zeroed and its reset date
// stamped when the record was last reset on a different calendar day than
// now. It is a pure function; the caller applies the result transactionally
// with the subsequent limit check.
func ResetIfStale(record domain.QuotaRecord, now time.Time) domain.QuotaRecord {
	today := now.Format(time.DateOnly)
	if record.LastResetDate != today {
		record.TaskUsedToday = 0
		record.LastResetDate = today
	}
	return record
}

// Guard is the per-user daily task limiter, consulted before every
// state-mutating entry point that creates work.
type Guard struct {
	store  cache.Store
	cfg    config.QuotaConfig
	clock  clock.Clock
	logger zerolog.Logger
}

// NewGuard creates a quota guard backed by the shared cache store.
func NewGuard(store cache.Store, cfg config.QuotaConfig, clk clock.Clock, logger zerolog.Logger) *Guard {
	return &Guard{
		store:  store,
		cfg:    cfg,
		clock:  clk,
		logger: logger.With().Str("component", "quota").Logger(),
	}
}

// Consume accounts one task creation for the user. It returns an
// *ExceededError (wrapping ErrQuotaExceeded) when the user's daily limit is
// exhausted, before any task exists. On success the counter is already
// incremented; callers that fail task creation afterward should Release.
func (g *Guard) Consume(ctx context.Context, userID string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("failed to consume quota: user ID %w", overtureerrors.ErrEmptyValue)
	}

	now := g.clock.Now()
	record := g.loadRecord(ctx, userID, now)

	counterKey := cache.QuotaCounterKey(userID, record.LastResetDate)
	used, err := g.store.Increment(ctx, counterKey)
	if err != nil {
		return overtureerrors.Wrapf(err, "failed to consume quota for user %s", userID)
	}
	if used == 1 {
		// New counter: expire it shortly after the day it accounts for.
		if err := g.store.Expire(ctx, counterKey, timeUntilMidnight(now)+counterSlack); err != nil {
			g.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to set quota counter expiry")
		}
	}

	if used > int64(record.DailyTaskLimit) {
		// Over the limit: undo the increment and reject.
		if _, err := g.store.Decrement(ctx, counterKey); err != nil {
			g.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to roll back quota increment")
		}
		return &ExceededError{
			UserID:  userID,
			Used:    record.DailyTaskLimit,
			Limit:   record.DailyTaskLimit,
			ResetAt: nextMidnight(now),
		}
	}

	record.TaskUsedToday = int(used)
	g.saveRecord(ctx, record)
	return nil
}

// Release undoes one consumed task, used when task creation fails after the
// quota was already consumed. Failures are logged, not returned: a leaked
// unit of quota resets at midnight anyway.
func (g *Guard) Release(ctx context.Context, userID string) {
	now := g.clock.Now()
	counterKey := cache.QuotaCounterKey(userID, now.Format(time.DateOnly))
	if _, err := g.store.Decrement(ctx, counterKey); err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to release quota")
	}
}

// Usage returns the user's current quota record after lazy reset, for
// display purposes.
func (g *Guard) Usage(ctx context.Context, userID string) (domain.QuotaRecord, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return domain.QuotaRecord{}, err
	}
	return g.loadRecord(ctx, userID, g.clock.Now()), nil
}

// SetTier updates the user's subscription tier and recomputes the limit.
func (g *Guard) SetTier(ctx context.Context, userID string, tier constants.Tier) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	record := g.loadRecord(ctx, userID, g.clock.Now())
	record.Tier = tier
	record.DailyTaskLimit = g.cfg.LimitForTier(tier)
	g.saveRecord(ctx, record)
	return nil
}

// loadRecord fetches the user's quota record, applying the lazy daily
// reset. A missing or unreadable record yields a fresh free-tier record;
// cache read failures degrade, they never block the workflow.
func (g *Guard) loadRecord(ctx context.Context, userID string, now time.Time) domain.QuotaRecord {
	record := domain.QuotaRecord{
		UserID:         userID,
		Tier:           constants.TierFree,
		DailyTaskLimit: g.cfg.LimitForTier(constants.TierFree),
	}

	data, found, err := g.store.Get(ctx, cache.QuotaRecordKey(userID))
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("quota record read failed, using defaults")
	} else if found {
		if err := json.Unmarshal(data, &record); err != nil {
			g.logger.Warn().Err(err).Str("user_id", userID).Msg("quota record corrupted, using defaults")
		}
	}

	return ResetIfStale(record, now)
}

// saveRecord persists the quota record for rendering. Best effort: the
// date-scoped counter is the source of truth for enforcement.
func (g *Guard) saveRecord(ctx context.Context, record domain.QuotaRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", record.UserID).Msg("failed to marshal quota record")
		return
	}
	// Records outlive the day so tier assignments persist.
	if err := g.store.Set(ctx, cache.QuotaRecordKey(record.UserID), data, 90*24*time.Hour); err != nil {
		g.logger.Warn().Err(err).Str("user_id", record.UserID).Msg("failed to save quota record")
	}
}

// timeUntilMidnight returns the duration from now to the next local midnight.
func timeUntilMidnight(now time.Time) time.Duration {
	return nextMidnight(now).Sub(now)
}

// nextMidnight returns the start of the next local calendar day.
func nextMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
