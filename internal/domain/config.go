package domain

import "math"

// StrategyConfig represents a strategy configuration row.
// Corresponds to the strategy_config table; at most one row is active
// at any instant and promotion is the only mutation path.
type StrategyConfig struct {
	ConfigID   string             // deterministic hash
	Strategy   string             // strategy name, e.g. "CCA"
	Version    string             // strategy version, e.g. "v1"
	Parameters map[string]float64 // tunable parameters
	Active     bool
	PromotedAt int64 // ms since epoch
	CreatedAt  int64 // ms since epoch, set by the store
}

// Identity returns the strategy identity used for signal gating.
func (c *StrategyConfig) Identity() (strategy, version string) {
	return c.Strategy, c.Version
}

// CloneParameters returns a copy of the parameter map so callers can
// merge suggestions without mutating the stored configuration.
func (c *StrategyConfig) CloneParameters() map[string]float64 {
	params := make(map[string]float64, len(c.Parameters))
	for k, v := range c.Parameters {
		params[k] = v
	}
	return params
}

// TunableParameters is the allowlist of parameter names a promotion or
// an advisory suggestion may set. Unknown keys are rejected before any
// configuration mutation happens.
var TunableParameters = map[string]bool{
	"coherence_threshold": true,
	"adx_len":             true,
	"snr_len":             true,
	"atr_mult":            true,
	"tp_mult":             true,
	"qqe_rsi_len":         true,
	"qqe_smooth":          true,
}

// IsTunableParameter reports whether name is a recognized tunable parameter.
func IsTunableParameter(name string) bool {
	return TunableParameters[name]
}

// ParameterRange describes the values a single tunable parameter takes
// during grid search: min, min+step, ... up to max inclusive.
type ParameterRange struct {
	Min  float64
	Max  float64
	Step float64
}

// Count returns the number of values the range generates:
// floor((max-min)/step) + 1. A zero or negative step yields zero.
// The epsilon keeps binary rounding from dropping the max endpoint,
// e.g. (1.5-0.5)/0.1 evaluating to 9.999...
func (r ParameterRange) Count() int {
	if r.Step <= 0 || r.Max < r.Min {
		return 0
	}
	return int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
}
