package domain

import (
	"fmt"
)

// RiskBandSpec is one threshold band of a declarative stratification rule. A band applies
// when the computed score is strictly greater than Above.
type RiskBandSpec struct {
	Above   float64   `json:"above" yaml:"above"`
	Level   RiskLevel `json:"level" yaml:"level"`
	Message string    `json:"message" yaml:"message"`
}

// RiskRuleSpec declares a threshold stratification rule keyed by condition label, or by
// category tag when Condition is empty.
type RiskRuleSpec struct {
	Condition  string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	Category   Category       `json:"category,omitempty" yaml:"category,omitempty"`
	Domain     string         `json:"domain" yaml:"domain"`
	Multiplier float64        `json:"multiplier" yaml:"multiplier"`
	Bands      []RiskBandSpec `json:"bands" yaml:"bands"`
	Otherwise  *RiskBandSpec  `json:"otherwise,omitempty" yaml:"otherwise,omitempty"`
}

// Key returns the lookup key the rule is registered under.
func (s RiskRuleSpec) Key() string {
	if s.Condition != "" {
		return s.Condition
	}
	return string(s.Category)
}

// IsValid validates the risk level.
func (l RiskLevel) IsValid() bool {
	switch l {
	case RISK_HIGH, RISK_MODERATE, RISK_LOW:
		return true
	default:
		return false
	}
}

// Validate checks that the rule can be evaluated.
func (s RiskRuleSpec) Validate() error {
	if s.Condition == "" && s.Category == "" {
		return fmt.Errorf("risk rule needs a condition or a category")
	}
	if s.Category != "" && !s.Category.IsValid() {
		return fmt.Errorf("risk rule %q: unknown category %q", s.Key(), s.Category)
	}
	if s.Domain == "" {
		return fmt.Errorf("risk rule %q: domain is required", s.Key())
	}
	if s.Multiplier <= 0 {
		return fmt.Errorf("risk rule %q: multiplier must be positive", s.Key())
	}
	if len(s.Bands) == 0 && s.Otherwise == nil {
		return fmt.Errorf("risk rule %q: at least one band is required", s.Key())
	}
	for _, b := range s.Bands {
		if !b.Level.IsValid() {
			return fmt.Errorf("risk rule %q: invalid level %q", s.Key(), b.Level)
		}
	}
	if s.Otherwise != nil && !s.Otherwise.Level.IsValid() {
		return fmt.Errorf("risk rule %q: invalid fallback level %q", s.Key(), s.Otherwise.Level)
	}
	return nil
}
