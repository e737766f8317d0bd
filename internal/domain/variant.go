package domain

// VariantSummary is the serializable view of a reference record.
type VariantSummary struct {
	ID           string                       `json:"rsid"`
	Gene         string                       `json:"gene"`
	RiskAllele   string                       `json:"risk_allele"`
	NormalAllele string                       `json:"normal_allele"`
	Profiles     map[Category]CategoryProfile `json:"profiles,omitempty"`
}

// Summary converts the record into its serializable view. Profiles are included only when
// withProfiles is set.
func (r VariantRecord) Summary(withProfiles bool) VariantSummary {
	s := VariantSummary{
		ID:           r.ID,
		Gene:         r.Gene,
		RiskAllele:   string(r.RiskAllele),
		NormalAllele: string(r.NormalAllele),
	}
	if withProfiles {
		s.Profiles = r.Clone().Profiles
	}
	return s
}
