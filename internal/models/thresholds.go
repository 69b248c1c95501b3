// internal/models/thresholds.go
package models

// Threshold group names.
const (
	GroupDuration         = "duration"
	GroupCreditworthiness = "creditworthiness"
	GroupMLRisk           = "ml_risk"
	GroupLiquidity        = "liquidity"
	GroupDebt             = "debt"
	GroupLiabilities      = "liabilities"
	GroupAge              = "age"
	GroupFinancialStatus  = "financial_status"
	GroupTranche          = "tranche"
)

// SetCutoffs is the bound set inside GroupTranche holding the tranche cut points.
const SetCutoffs = "cutoffs"

// ThresholdConfig is a versioned snapshot of every rule threshold. It is owned
// by the configuration store and must be treated as read-only once handed to
// the engine.
type ThresholdConfig struct {
	Version string                    `json:"version" yaml:"version"`
	Groups  map[string]ThresholdGroup `json:"groups" yaml:"groups"`
}

// ThresholdGroup maps a suboption (or a named set such as "cutoffs") to its bounds.
type ThresholdGroup map[string]BoundSet

// BoundSet holds the numeric bounds and the categorical allow-list of one suboption.
type BoundSet struct {
	Values map[string]float64 `json:"values,omitempty" yaml:"values,omitempty"`
	Allow  []string           `json:"allow,omitempty" yaml:"allow,omitempty"`
}

// Value returns groups[group][set].Values[key], or fallback when any level is absent.
func (c *ThresholdConfig) Value(group, set, key string, fallback float64) float64 {
	bs, ok := c.boundSet(group, set)
	if !ok || bs.Values == nil {
		return fallback
	}
	v, ok := bs.Values[key]
	if !ok {
		return fallback
	}
	return v
}

// Allow returns groups[group][set].Allow, or fallback when absent or empty.
func (c *ThresholdConfig) Allow(group, set string, fallback []string) []string {
	bs, ok := c.boundSet(group, set)
	if !ok || len(bs.Allow) == 0 {
		return fallback
	}
	return bs.Allow
}

// VersionOrDefault reports the snapshot version, "default" for a nil or unversioned config.
func (c *ThresholdConfig) VersionOrDefault() string {
	if c == nil || c.Version == "" {
		return "default"
	}
	return c.Version
}

func (c *ThresholdConfig) boundSet(group, set string) (BoundSet, bool) {
	if c == nil || c.Groups == nil {
		return BoundSet{}, false
	}
	g, ok := c.Groups[group]
	if !ok {
		return BoundSet{}, false
	}
	bs, ok := g[set]
	return bs, ok
}
