package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/genotype-insight-server/internal/domain"
)

//go:embed data/reference.yaml
var defaultReference []byte

// SourceEmbedded labels the reference table compiled into the binary.
const SourceEmbedded = "embedded"

// File is the on-disk layout of a reference table.
type File struct {
	Variants  []VariantEntry        `yaml:"variants"`
	RiskRules []domain.RiskRuleSpec `yaml:"risk_rules"`
}

// VariantEntry is one variant as written in a reference file. Alleles are single-character
// strings; each category carries its own profile block.
type VariantEntry struct {
	ID             string                  `yaml:"rsid"`
	Gene           string                  `yaml:"gene"`
	RiskAllele     string                  `yaml:"risk_allele"`
	NormalAllele   string                  `yaml:"normal_allele"`
	HomozygousRisk *domain.CategoryProfile `yaml:"homozygous_risk"`
	Heterozygous   *domain.CategoryProfile `yaml:"heterozygous"`
	Normal         *domain.CategoryProfile `yaml:"normal"`
}

// Record converts the entry into a domain record.
func (e VariantEntry) Record() (domain.VariantRecord, error) {
	risk, err := singleAllele("risk_allele", e.RiskAllele)
	if err != nil {
		return domain.VariantRecord{}, err
	}
	normal, err := singleAllele("normal_allele", e.NormalAllele)
	if err != nil {
		return domain.VariantRecord{}, err
	}

	profiles := make(map[domain.Category]domain.CategoryProfile, 3)
	for c, p := range map[domain.Category]*domain.CategoryProfile{
		domain.HOMOZYGOUS_RISK: e.HomozygousRisk,
		domain.HETEROZYGOUS:    e.Heterozygous,
		domain.NORMAL:          e.Normal,
	} {
		if p != nil {
			profiles[c] = *p
		}
	}

	return domain.VariantRecord{
		ID:           e.ID,
		Gene:         e.Gene,
		RiskAllele:   risk,
		NormalAllele: normal,
		Profiles:     profiles,
	}, nil
}

// EntryFromRecord is the inverse of Record, used when exporting a table.
func EntryFromRecord(rec domain.VariantRecord) VariantEntry {
	entry := VariantEntry{
		ID:           rec.ID,
		Gene:         rec.Gene,
		RiskAllele:   string(rec.RiskAllele),
		NormalAllele: string(rec.NormalAllele),
	}
	if p, ok := rec.Profile(domain.HOMOZYGOUS_RISK); ok {
		entry.HomozygousRisk = &p
	}
	if p, ok := rec.Profile(domain.HETEROZYGOUS); ok {
		entry.Heterozygous = &p
	}
	if p, ok := rec.Profile(domain.NORMAL); ok {
		entry.Normal = &p
	}
	return entry
}

func singleAllele(field, value string) (byte, error) {
	if len(value) != 1 {
		return 0, fmt.Errorf("%s must be a single character, got %q", field, value)
	}
	return value[0], nil
}

// Parse decodes a YAML reference table. Unknown keys are rejected so typos in a table fail
// at startup instead of silently dropping a profile.
func Parse(source string, data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewConfigurationError(source, "", domain.ErrEmptyReference)
		}
		return nil, domain.NewConfigurationError(source, "", fmt.Errorf("%w: %v", domain.ErrInvalidReference, err))
	}

	records := make([]domain.VariantRecord, 0, len(f.Variants))
	for _, entry := range f.Variants {
		rec, err := entry.Record()
		if err != nil {
			return nil, domain.NewConfigurationError(source, entry.ID, fmt.Errorf("%w: %v", domain.ErrInvalidReference, err))
		}
		records = append(records, rec)
	}
	return build(source, records, f.RiskRules)
}

// Load reads a reference table from path. An empty path yields the embedded table.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read reference table: %w", err)
	}
	return Parse(path, content)
}

// Default returns the reference table compiled into the binary.
func Default() (*Registry, error) {
	return Parse(SourceEmbedded, defaultReference)
}

// Marshal renders the registry in the reference file layout.
func Marshal(r *Registry) ([]byte, error) {
	f := File{RiskRules: r.RiskRules()}
	for _, rec := range r.Records() {
		f.Variants = append(f.Variants, EntryFromRecord(rec))
	}
	return yaml.Marshal(f)
}
