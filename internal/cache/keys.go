package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/overture-dev/overture/internal/constants"
)

// Key discriminators. The version segment invalidates old entries when the
// cached document shape changes.
const (
	analysisKeyPrefix   = "overture:analysis:v1:"
	generationKeyPrefix = "overture:generation:v1:"
	quotaKeyPrefix      = "overture:quota:"
)

// AnalysisKey derives the cache key for a repository analysis.
// The caller must pass the normalized repository URL: two URLs that
// normalize equal MUST hit the same cache entry.
func AnalysisKey(normalizedURL string) string {
	return analysisKeyPrefix + hashHex(normalizedURL)
}

// GenerationKey derives the cache key for a memoized model response from
// the (use case, model id, exact prompt text) triple. Identical triples are
// idempotent until TTL expiry.
func GenerationKey(useCase constants.UseCase, modelID, prompt string) string {
	return generationKeyPrefix + hashHex(useCase.String()+"\x00"+modelID+"\x00"+prompt)
}

// QuotaRecordKey is where a user's quota record lives.
func QuotaRecordKey(userID string) string {
	return quotaKeyPrefix + "record:" + userID
}

// QuotaCounterKey is the date-scoped daily counter for a user. Scoping the
// key by calendar date makes the daily reset lazy by construction: a new
// day simply addresses a fresh counter.
func QuotaCounterKey(userID, date string) string {
	return quotaKeyPrefix + "count:" + userID + ":" + date
}

// hashHex returns the hex SHA-256 of s.
func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
