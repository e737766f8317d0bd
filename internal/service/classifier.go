package service

import (
	"github.com/genotype-insight-server/internal/domain"
)

// Classify assigns the zygosity category of an observed allele pair relative to the
// record's risk and normal alleles. Allele order does not matter. Pairs carrying an allele
// that is neither the risk nor the normal allele fall through to NORMAL; there is no error
// path.
func Classify(record domain.VariantRecord, alleles [2]byte) domain.Category {
	a, b := alleles[0], alleles[1]
	if a > b {
		a, b = b, a
	}

	risk, normal := record.RiskAllele, record.NormalAllele
	switch {
	case a == risk && b == risk:
		return domain.HOMOZYGOUS_RISK
	case (a == risk && b == normal) || (a == normal && b == risk):
		return domain.HETEROZYGOUS
	default:
		// TODO: count third-allele calls (e.g. "AC" against A/T) in BatchStats instead of
		// reporting them as NORMAL.
		return domain.NORMAL
	}
}
