// Package gateway mediates all calls to the generative text backend, with
// per-use-case policy enforcement, response memoization, streaming, and
// usage accounting.
package gateway

import (
	"fmt"

	"github.com/overture-dev/overture/internal/config"
	"github.com/overture-dev/overture/internal/constants"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

// Policy is the per-use-case ceiling set. Policies and the model registry
// are immutable configuration injected at construction; the gateway never
// reads ambient globals, which keeps it unit-testable with fake policies.
type Policy struct {
	// MaxInputTokens is the input ceiling enforced before dispatch.
	MaxInputTokens int

	// MaxOutputTokens caps the backend's output for this use case.
	MaxOutputTokens int

	// Temperature is the sampling temperature for this use case.
	Temperature float64
}

// policyTable resolves use cases to policies. Lookup is mandatory: an
// unknown use case is an error, never a default.
type policyTable map[constants.UseCase]Policy

// newPolicyTable builds the lookup table from configuration.
func newPolicyTable(cfg config.GatewayConfig) policyTable {
	table := make(policyTable, len(cfg.Policies))
	for name, p := range cfg.Policies {
		table[constants.UseCase(name)] = Policy{
			MaxInputTokens:  p.MaxInputTokens,
			MaxOutputTokens: p.MaxOutputTokens,
			Temperature:     p.Temperature,
		}
	}
	return table
}

// lookup returns the policy for useCase or ErrUnknownUseCase.
func (t policyTable) lookup(useCase constants.UseCase) (Policy, error) {
	policy, ok := t[useCase]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", overtureerrors.ErrUnknownUseCase, useCase)
	}
	return policy, nil
}

// modelRegistry is the set of known model ids plus the deployment default.
type modelRegistry struct {
	known        map[string]bool
	defaultModel string
}

// newModelRegistry builds the registry from configuration.
func newModelRegistry(cfg config.GatewayConfig) modelRegistry {
	known := make(map[string]bool, len(cfg.Models))
	for _, id := range cfg.Models {
		known[id] = true
	}
	return modelRegistry{known: known, defaultModel: cfg.DefaultModel}
}

// resolve honors an explicit model id only if it is registered; an empty
// id selects the deployment default; an unknown id is ErrInvalidModel.
func (r modelRegistry) resolve(modelID string) (string, error) {
	if modelID == "" {
		return r.defaultModel, nil
	}
	if !r.known[modelID] {
		return "", fmt.Errorf("%w: %q is not a known model", overtureerrors.ErrInvalidModel, modelID)
	}
	return modelID, nil
}

// estimateTokens estimates the token count of prompt from its character
// length. A cheap client-side guard, intentionally not a tokenizer.
func estimateTokens(prompt string) int {
	return (len(prompt) + constants.CharsPerToken - 1) / constants.CharsPerToken
}
