package service

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/genotype-insight-server/internal/domain"
)

// StratificationRule turns a profile's relative risk factor into a health-risk note.
type StratificationRule interface {
	Evaluate(riskFactor float64) domain.HealthRiskNote
}

// RiskBand is one threshold of a ThresholdRule.
type RiskBand struct {
	Above   float64
	Level   domain.RiskLevel
	Message string
}

// ThresholdRule scores riskFactor*Multiplier and picks the first band (highest threshold
// first) whose Above is strictly less than the score. Otherwise applies when no band
// matches.
type ThresholdRule struct {
	Domain     string
	Multiplier float64
	Bands      []RiskBand
	Otherwise  RiskBand
}

// NewThresholdRule builds a rule with its bands ordered from the highest threshold down.
func NewThresholdRule(domainName string, multiplier float64, otherwise RiskBand, bands ...RiskBand) *ThresholdRule {
	sorted := append([]RiskBand(nil), bands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Above > sorted[j].Above })
	return &ThresholdRule{
		Domain:     domainName,
		Multiplier: multiplier,
		Bands:      sorted,
		Otherwise:  otherwise,
	}
}

// RuleFromSpec converts a declarative rule from the reference table.
func RuleFromSpec(spec domain.RiskRuleSpec) *ThresholdRule {
	bands := make([]RiskBand, 0, len(spec.Bands))
	for _, b := range spec.Bands {
		bands = append(bands, RiskBand{Above: b.Above, Level: b.Level, Message: b.Message})
	}
	otherwise := RiskBand{Level: domain.RISK_LOW}
	if spec.Otherwise != nil {
		otherwise = RiskBand{Level: spec.Otherwise.Level, Message: spec.Otherwise.Message}
	}
	return NewThresholdRule(spec.Domain, spec.Multiplier, otherwise, bands...)
}

// Evaluate implements StratificationRule.
func (r *ThresholdRule) Evaluate(riskFactor float64) domain.HealthRiskNote {
	score := riskFactor * r.Multiplier
	band := r.Otherwise
	for _, b := range r.Bands {
		if score > b.Above {
			band = b
			break
		}
	}
	return domain.HealthRiskNote{
		Domain:  r.Domain,
		Level:   band.Level,
		Score:   score,
		Message: band.Message,
	}
}

// RiskStratifier maps interpretation outcomes to health-risk notes. Rules are keyed by the
// condition label of a profile; a rule registered under a category tag applies to every
// condition of that category that has no rule of its own.
type RiskStratifier struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	rules  map[string]StratificationRule
}

// NewRiskStratifier creates an empty stratifier.
func NewRiskStratifier(logger *logrus.Logger) *RiskStratifier {
	return &RiskStratifier{
		logger: logger,
		rules:  make(map[string]StratificationRule),
	}
}

// DefaultRiskStratifier registers the built-in obesity rule.
func DefaultRiskStratifier(logger *logrus.Logger) *RiskStratifier {
	s := NewRiskStratifier(logger)
	s.Register(ObesityCondition, NewThresholdRule("obesity", 100,
		RiskBand{Level: domain.RISK_LOW, Message: "Low risk, but maintain a healthy lifestyle."},
		RiskBand{Above: 150, Level: domain.RISK_HIGH, Message: "High likelihood of developing obesity and related diseases."},
		RiskBand{Above: 100, Level: domain.RISK_MODERATE, Message: "Moderate risk over time. Regular health checks advised."},
	))
	return s
}

// ObesityCondition is the condition label the built-in rule is keyed by.
const ObesityCondition = "Higher obesity risk"

// StratifierFromSpecs builds a stratifier from declared rules. With no specs the built-in
// rule set is used.
func StratifierFromSpecs(logger *logrus.Logger, specs []domain.RiskRuleSpec) *RiskStratifier {
	if len(specs) == 0 {
		return DefaultRiskStratifier(logger)
	}
	s := NewRiskStratifier(logger)
	for _, spec := range specs {
		s.Register(spec.Key(), RuleFromSpec(spec))
	}
	return s
}

// Register adds or replaces the rule for key.
func (s *RiskStratifier) Register(key string, rule StratificationRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[key]; exists {
		s.logger.WithField("rule_key", key).Warn("Replacing existing stratification rule")
	}
	s.rules[key] = rule
}

// Keys returns the registered rule keys in sorted order.
func (s *RiskStratifier) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.rules))
	for k := range s.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stratify returns the note for the report's condition, or nil when no rule applies.
func (s *RiskStratifier) Stratify(category domain.Category, condition string, riskFactor float64) *domain.HealthRiskNote {
	s.mu.RLock()
	rule, ok := s.rules[condition]
	if !ok {
		rule, ok = s.rules[string(category)]
	}
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	note := rule.Evaluate(riskFactor)
	return &note
}
