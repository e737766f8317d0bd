// Package registry holds the variant reference table: the static, read-only set of variant
// records the interpreter classifies genotype calls against.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/genotype-insight-server/internal/domain"
)

// SourceTable labels registries built directly from in-memory records.
const SourceTable = "table"

// Registry is an immutable index of reference variants keyed by identifier. It is safe for
// concurrent use without locking.
type Registry struct {
	source      string
	records     map[string]domain.VariantRecord
	ids         []string
	rules       []domain.RiskRuleSpec
	fingerprint string
}

// New validates the records and builds a registry. Risk rules are optional and are carried
// alongside the table for the stratifier.
func New(records []domain.VariantRecord, rules ...domain.RiskRuleSpec) (*Registry, error) {
	return build(SourceTable, records, rules)
}

// NewWithSource is New with the source label reported in configuration errors.
func NewWithSource(source string, records []domain.VariantRecord, rules []domain.RiskRuleSpec) (*Registry, error) {
	return build(source, records, rules)
}

func build(source string, records []domain.VariantRecord, rules []domain.RiskRuleSpec) (*Registry, error) {
	if len(records) == 0 {
		return nil, domain.NewConfigurationError(source, "", domain.ErrEmptyReference)
	}

	index := make(map[string]domain.VariantRecord, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, domain.NewConfigurationError(source, rec.ID, fmt.Errorf("%w: %v", domain.ErrInvalidReference, err))
		}
		if _, exists := index[rec.ID]; exists {
			return nil, domain.NewConfigurationError(source, rec.ID, domain.ErrDuplicateVariant)
		}
		index[rec.ID] = rec.Clone()
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)

	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, domain.NewConfigurationError(source, "", fmt.Errorf("%w: %v", domain.ErrInvalidReference, err))
		}
		if seen[rule.Key()] {
			return nil, domain.NewConfigurationError(source, "", fmt.Errorf("%w: risk rule %q declared twice", domain.ErrInvalidReference, rule.Key()))
		}
		seen[rule.Key()] = true
	}

	r := &Registry{
		source:  source,
		records: index,
		ids:     ids,
		rules:   append([]domain.RiskRuleSpec(nil), rules...),
	}
	fp, err := r.computeFingerprint()
	if err != nil {
		return nil, domain.NewConfigurationError(source, "", err)
	}
	r.fingerprint = fp
	return r, nil
}

// Lookup returns a copy of the record for id.
func (r *Registry) Lookup(id string) (domain.VariantRecord, bool) {
	rec, ok := r.records[id]
	if !ok {
		return domain.VariantRecord{}, false
	}
	return rec.Clone(), true
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Len returns the number of registered variants.
func (r *Registry) Len() int {
	return len(r.records)
}

// Source names where the table was loaded from.
func (r *Registry) Source() string {
	return r.source
}

// RiskRules returns the stratification rules declared with the table.
func (r *Registry) RiskRules() []domain.RiskRuleSpec {
	out := make([]domain.RiskRuleSpec, len(r.rules))
	for i, rule := range r.rules {
		rule.Bands = append([]domain.RiskBandSpec(nil), rule.Bands...)
		out[i] = rule
	}
	return out
}

// Records returns copies of every record in identifier order.
func (r *Registry) Records() []domain.VariantRecord {
	out := make([]domain.VariantRecord, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.records[id].Clone())
	}
	return out
}

// Fingerprint is a stable digest of the table contents. Two registries with the same
// records and rules share a fingerprint regardless of input order.
func (r *Registry) Fingerprint() string {
	return r.fingerprint
}

type fingerprintEntry struct {
	ID       string                                     `json:"id"`
	Gene     string                                     `json:"gene"`
	Risk     string                                     `json:"risk"`
	Normal   string                                     `json:"normal"`
	Profiles map[domain.Category]domain.CategoryProfile `json:"profiles"`
}

func (r *Registry) computeFingerprint() (string, error) {
	entries := make([]fingerprintEntry, 0, len(r.ids))
	for _, id := range r.ids {
		rec := r.records[id]
		entries = append(entries, fingerprintEntry{
			ID:       rec.ID,
			Gene:     rec.Gene,
			Risk:     string(rec.RiskAllele),
			Normal:   string(rec.NormalAllele),
			Profiles: rec.Profiles,
		})
	}
	rules := append([]domain.RiskRuleSpec(nil), r.rules...)
	sort.Slice(rules, func(i, j int) bool { return rules[i].Key() < rules[j].Key() })

	payload, err := json.Marshal(struct {
		Variants []fingerprintEntry    `json:"variants"`
		Rules    []domain.RiskRuleSpec `json:"rules"`
	}{entries, rules})
	if err != nil {
		return "", fmt.Errorf("failed to encode reference table: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

var _ domain.ReferenceRegistry = (*Registry)(nil)
