package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/registry"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func ftoRecord() domain.VariantRecord {
	return domain.VariantRecord{
		ID:           "rs9939609",
		Gene:         "FTO",
		RiskAllele:   'A',
		NormalAllele: 'T',
		Profiles: map[domain.Category]domain.CategoryProfile{
			domain.HOMOZYGOUS_RISK: {Condition: "Higher obesity risk", LifestyleAdvice: "Move more.", RiskFactor: 1.67},
			domain.HETEROZYGOUS:    {Condition: "Moderate obesity risk", RiskFactor: 1.3},
			domain.NORMAL:          {Condition: "Typical obesity risk", RiskFactor: 1.0},
		},
	}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]domain.VariantRecord{ftoRecord()})
	require.NoError(t, err)
	return reg
}
