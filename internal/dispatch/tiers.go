package dispatch

import (
	"time"

	"github.com/bgdnvk/resonance/internal/ai"
	"github.com/bgdnvk/resonance/internal/model"
)

// Tier is the call budget for one backend role at one intensity.
type Tier struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// TierTable maps role and intensity to a call budget. Timeouts and token
// budgets grow with intensity; temperature rises for the empathetic role
// and falls for the analytic one.
type TierTable map[model.Backend]map[model.Intensity]Tier

func DefaultTiers() TierTable {
	return TierTable{
		model.BackendAnalytic: {
			model.IntensityStandard: {Timeout: 20 * time.Second, MaxTokens: 1024, Temperature: 0.4},
			model.IntensityIntense:  {Timeout: 30 * time.Second, MaxTokens: 2048, Temperature: 0.3},
			model.IntensityMaximum:  {Timeout: 45 * time.Second, MaxTokens: 4096, Temperature: 0.2},
		},
		model.BackendEmpathetic: {
			model.IntensityStandard: {Timeout: 20 * time.Second, MaxTokens: 1024, Temperature: 0.7},
			model.IntensityIntense:  {Timeout: 30 * time.Second, MaxTokens: 2048, Temperature: 0.8},
			model.IntensityMaximum:  {Timeout: 45 * time.Second, MaxTokens: 4096, Temperature: 0.9},
		},
	}
}

// Lookup returns the tier for role at intensity, falling back to the
// default table and then to the standard tier.
func (t TierTable) Lookup(role model.Backend, intensity model.Intensity) Tier {
	if tier, ok := t[role][intensity]; ok {
		return tier
	}
	defaults := DefaultTiers()
	if tier, ok := defaults[role][intensity]; ok {
		return tier
	}
	return defaults[model.BackendAnalytic][model.IntensityStandard]
}

// Params converts the tier into provider call parameters.
func (t Tier) Params() ai.Params {
	return ai.Params{MaxTokens: t.MaxTokens, Temperature: t.Temperature, Timeout: t.Timeout}
}
