package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/overture-dev/overture/internal/constants"
)

func TestAnalysisKey_Deterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		AnalysisKey("https://github.com/acme/shop"),
		AnalysisKey("https://github.com/acme/shop"))
	assert.NotEqual(t,
		AnalysisKey("https://github.com/acme/shop"),
		AnalysisKey("https://github.com/acme/store"))
}

func TestGenerationKey_TripleSensitivity(t *testing.T) {
	t.Parallel()

	base := GenerationKey(constants.UseCasePlanGeneration, "model-a", "prompt")

	assert.Equal(t, base, GenerationKey(constants.UseCasePlanGeneration, "model-a", "prompt"))
	assert.NotEqual(t, base, GenerationKey(constants.UseCaseCodeGeneration, "model-a", "prompt"))
	assert.NotEqual(t, base, GenerationKey(constants.UseCasePlanGeneration, "model-b", "prompt"))
	assert.NotEqual(t, base, GenerationKey(constants.UseCasePlanGeneration, "model-a", "prompt "))
}

// TestGenerationKey_SeparatorInjection verifies the field separator prevents
// two different triples from concatenating to the same hashed input.
func TestGenerationKey_SeparatorInjection(t *testing.T) {
	t.Parallel()

	a := GenerationKey(constants.UseCase("pr-review"), "model", "text")
	b := GenerationKey(constants.UseCase("pr-reviewmodel"), "", "text")
	assert.NotEqual(t, a, b)
}

func TestQuotaKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "overture:quota:record:user-42", QuotaRecordKey("user-42"))
	assert.Equal(t, "overture:quota:count:user-42:2026-03-15", QuotaCounterKey("user-42", "2026-03-15"))

	// Date-scoped counters never collide across days.
	assert.NotEqual(t,
		QuotaCounterKey("user-42", "2026-03-15"),
		QuotaCounterKey("user-42", "2026-03-16"))
}
