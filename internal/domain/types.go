// Package domain contains the core entities for genotype interpretation: the variant
// reference records, the zygosity categories a genotype call is classified into, and the
// reports produced for each call of a batch.
package domain

import (
	"fmt"
)

// Category is the zygosity classification of an observed allele pair relative to the
// risk and normal alleles of a reference variant.
type Category string

const (
	HOMOZYGOUS_RISK Category = "homozygous_risk"
	HETEROZYGOUS    Category = "heterozygous"
	NORMAL          Category = "normal"
)

// Categories lists every category a reference record must carry a profile for.
var Categories = []Category{HOMOZYGOUS_RISK, HETEROZYGOUS, NORMAL}

// IsValid reports whether the category is one of the three known zygosity categories.
func (c Category) IsValid() bool {
	switch c {
	case HOMOZYGOUS_RISK, HETEROZYGOUS, NORMAL:
		return true
	default:
		return false
	}
}

// String returns the wire name of the category.
func (c Category) String() string {
	return string(c)
}

// Description returns a human-readable label for reports.
func (c Category) Description() string {
	switch c {
	case HOMOZYGOUS_RISK:
		return "Homozygous for the risk allele"
	case HETEROZYGOUS:
		return "Heterozygous (one risk allele, one normal allele)"
	case NORMAL:
		return "No risk allele pairing detected"
	default:
		return "Unknown category"
	}
}

// RiskLevel grades a simulated health-risk note.
type RiskLevel string

const (
	RISK_HIGH     RiskLevel = "high"
	RISK_MODERATE RiskLevel = "moderate"
	RISK_LOW      RiskLevel = "low"
)

// CategoryProfile is the pre-authored guidance attached to one zygosity category of a
// reference variant.
type CategoryProfile struct {
	Condition        string  `json:"condition" yaml:"condition"`
	LifestyleAdvice  string  `json:"lifestyle_advice" yaml:"lifestyle_advice"`
	NutritionAdvice  string  `json:"nutrition_advice" yaml:"nutrition_advice"`
	PredictiveHealth string  `json:"predictive_health" yaml:"predictive_health"`
	RiskFactor       float64 `json:"risk_factor" yaml:"risk_factor"` // relative risk, 1.0 = population baseline
}

// Validate checks the profile fields the engine depends on.
func (p CategoryProfile) Validate() error {
	if p.Condition == "" {
		return fmt.Errorf("condition is required")
	}
	if p.RiskFactor <= 0 {
		return fmt.Errorf("risk factor must be positive, got %v", p.RiskFactor)
	}
	return nil
}

// VariantRecord is one entry of the variant reference table.
type VariantRecord struct {
	ID           string                       `json:"rsid"`
	Gene         string                       `json:"gene"`
	RiskAllele   byte                         `json:"-"`
	NormalAllele byte                         `json:"-"`
	Profiles     map[Category]CategoryProfile `json:"profiles"`
}

// Profile returns the profile registered for the category.
func (r VariantRecord) Profile(c Category) (CategoryProfile, bool) {
	p, ok := r.Profiles[c]
	return p, ok
}

// Validate ensures the record is complete: identifiers set, single-character alleles that
// differ, and exactly one valid profile per category.
func (r VariantRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("variant id is required")
	}
	if r.Gene == "" {
		return fmt.Errorf("variant %s: gene is required", r.ID)
	}
	if r.RiskAllele == 0 || r.NormalAllele == 0 {
		return fmt.Errorf("variant %s: risk and normal alleles are required", r.ID)
	}
	if r.RiskAllele == r.NormalAllele {
		return fmt.Errorf("variant %s: risk and normal alleles must differ (%c)", r.ID, r.RiskAllele)
	}
	for c := range r.Profiles {
		if !c.IsValid() {
			return fmt.Errorf("variant %s: unknown category %q", r.ID, c)
		}
	}
	for _, c := range Categories {
		p, ok := r.Profiles[c]
		if !ok {
			return fmt.Errorf("variant %s: missing %s profile", r.ID, c)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("variant %s: %s profile: %w", r.ID, c, err)
		}
	}
	return nil
}

// Clone returns a deep copy so registry data is never shared mutably.
func (r VariantRecord) Clone() VariantRecord {
	profiles := make(map[Category]CategoryProfile, len(r.Profiles))
	for c, p := range r.Profiles {
		profiles[c] = p
	}
	r.Profiles = profiles
	return r
}

// GenotypeCall is one parsed input line.
type GenotypeCall struct {
	Line      int     `json:"line"`
	VariantID string  `json:"rsid"`
	Genotype  string  `json:"genotype"`
	Alleles   [2]byte `json:"-"`
}

// HealthRiskNote is the simulated downstream health-risk outcome for a report.
type HealthRiskNote struct {
	Domain  string    `json:"domain"`
	Level   RiskLevel `json:"level"`
	Score   float64   `json:"score"`
	Message string    `json:"message"`
}

// InterpretationReport is the per-call interpretation returned to callers.
type InterpretationReport struct {
	VariantID        string          `json:"rsid"`
	Gene             string          `json:"gene"`
	Genotype         string          `json:"genotype"`
	Category         Category        `json:"category"`
	Condition        string          `json:"condition"`
	LifestyleAdvice  string          `json:"lifestyle_advice"`
	NutritionAdvice  string          `json:"nutrition_advice"`
	PredictiveHealth string          `json:"predictive_health"`
	RiskFactor       float64         `json:"risk_factor"`
	HealthRisk       *HealthRiskNote `json:"health_report,omitempty"`
}

// BatchStats counts how the lines of a batch were handled.
type BatchStats struct {
	TotalLines      int `json:"total_lines"`
	BlankLines      int `json:"blank_lines"`
	MalformedLines  int `json:"malformed_lines"`
	UnknownVariants int `json:"unknown_variants"`
	Interpreted     int `json:"interpreted"`
}

// Skipped returns the number of non-blank lines that produced no report.
func (s BatchStats) Skipped() int {
	return s.MalformedLines + s.UnknownVariants
}

// BatchResult is the ordered interpretation of a batch, one report per well-formed line
// that referenced a known variant.
type BatchResult struct {
	Reports []InterpretationReport `json:"results"`
	Stats   BatchStats             `json:"stats"`
}

// Clone returns a deep copy of the result.
func (b *BatchResult) Clone() *BatchResult {
	if b == nil {
		return nil
	}
	out := &BatchResult{Stats: b.Stats, Reports: make([]InterpretationReport, len(b.Reports))}
	for i, r := range b.Reports {
		if r.HealthRisk != nil {
			note := *r.HealthRisk
			r.HealthRisk = &note
		}
		out.Reports[i] = r
	}
	return out
}
