package service

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"

	"github.com/genotype-insight-server/internal/domain"
)

const defaultParallelThreshold = 512

// Interpreter turns genotype calls into reports against a reference registry.
// It holds no per-batch state; concurrent InterpretBatch calls are independent.
type Interpreter struct {
	logger            *logrus.Logger
	registry          domain.ReferenceRegistry
	stratifier        *RiskStratifier
	workers           int
	parallelThreshold int
}

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter)

// WithWorkers bounds the goroutines used for large batches. Values below 2 keep
// interpretation sequential.
func WithWorkers(n int) InterpreterOption {
	return func(i *Interpreter) { i.workers = n }
}

// WithParallelThreshold sets the call count from which a batch is fanned out.
func WithParallelThreshold(n int) InterpreterOption {
	return func(i *Interpreter) {
		if n > 0 {
			i.parallelThreshold = n
		}
	}
}

// NewInterpreter creates an interpreter. A nil stratifier selects the built-in rule set.
func NewInterpreter(logger *logrus.Logger, registry domain.ReferenceRegistry, stratifier *RiskStratifier, opts ...InterpreterOption) *Interpreter {
	if stratifier == nil {
		stratifier = DefaultRiskStratifier(logger)
	}
	i := &Interpreter{
		logger:            logger,
		registry:          registry,
		stratifier:        stratifier,
		workers:           1,
		parallelThreshold: defaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Registry returns the reference table the interpreter reads from.
func (i *Interpreter) Registry() domain.ReferenceRegistry {
	return i.registry
}

// InterpretBatch parses raw genotype text and interprets every well-formed line that names a
// known variant, in input order. Blank, malformed and unknown lines are only reflected in the
// result's stats.
func (i *Interpreter) InterpretBatch(raw string) *domain.BatchResult {
	calls, parseStats := ParseGenotypes(raw)
	return i.interpret(calls, parseStats)
}

// InterpretReader is InterpretBatch over a stream. It fails only when reading fails.
func (i *Interpreter) InterpretReader(r io.Reader) (*domain.BatchResult, error) {
	calls, parseStats, err := ParseGenotypeReader(r)
	if err != nil {
		return nil, err
	}
	return i.interpret(calls, parseStats), nil
}

// InterpretCalls interprets already parsed calls. Each call counts as one input line.
func (i *Interpreter) InterpretCalls(calls []domain.GenotypeCall) *domain.BatchResult {
	return i.interpret(calls, ParseStats{TotalLines: len(calls)})
}

// Interpret builds the report for a single call. ok is false when the variant is unknown.
func (i *Interpreter) Interpret(call domain.GenotypeCall) (domain.InterpretationReport, bool) {
	record, ok := i.registry.Lookup(call.VariantID)
	if !ok {
		return domain.InterpretationReport{}, false
	}

	category := Classify(record, call.Alleles)
	profile, _ := record.Profile(category)

	return domain.InterpretationReport{
		VariantID:        call.VariantID,
		Gene:             record.Gene,
		Genotype:         call.Genotype,
		Category:         category,
		Condition:        profile.Condition,
		LifestyleAdvice:  profile.LifestyleAdvice,
		NutritionAdvice:  profile.NutritionAdvice,
		PredictiveHealth: profile.PredictiveHealth,
		RiskFactor:       profile.RiskFactor,
		HealthRisk:       i.stratifier.Stratify(category, profile.Condition, profile.RiskFactor),
	}, true
}

type outcome struct {
	report domain.InterpretationReport
	ok     bool
}

func (i *Interpreter) interpret(calls []domain.GenotypeCall, parseStats ParseStats) *domain.BatchResult {
	start := time.Now()

	var outcomes []outcome
	parallel := i.workers > 1 && len(calls) >= i.parallelThreshold
	if parallel {
		mapper := iter.Mapper[domain.GenotypeCall, outcome]{MaxGoroutines: i.workers}
		outcomes = mapper.Map(calls, func(call *domain.GenotypeCall) outcome {
			report, ok := i.Interpret(*call)
			return outcome{report: report, ok: ok}
		})
	} else {
		outcomes = make([]outcome, len(calls))
		for idx, call := range calls {
			report, ok := i.Interpret(call)
			outcomes[idx] = outcome{report: report, ok: ok}
		}
	}

	result := &domain.BatchResult{
		Reports: make([]domain.InterpretationReport, 0, len(calls)),
		Stats: domain.BatchStats{
			TotalLines:     parseStats.TotalLines,
			BlankLines:     parseStats.BlankLines,
			MalformedLines: parseStats.MalformedLines,
		},
	}
	for _, o := range outcomes {
		if !o.ok {
			result.Stats.UnknownVariants++
			continue
		}
		result.Reports = append(result.Reports, o.report)
	}
	result.Stats.Interpreted = len(result.Reports)

	i.logger.WithFields(logrus.Fields{
		"total_lines":      result.Stats.TotalLines,
		"interpreted":      result.Stats.Interpreted,
		"malformed_lines":  result.Stats.MalformedLines,
		"unknown_variants": result.Stats.UnknownVariants,
		"parallel":         parallel,
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Debug("Interpreted genotype batch")

	return result
}

var _ domain.GenotypeInterpreter = (*Interpreter)(nil)
