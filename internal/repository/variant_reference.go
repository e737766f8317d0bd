// Package repository persists the variant reference table in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/registry"
)

// SourceDatabase labels registries loaded from PostgreSQL.
const SourceDatabase = "database"

// VariantReferenceRepository handles reference table persistence
type VariantReferenceRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewVariantReferenceRepository creates a new reference repository
func NewVariantReferenceRepository(db *pgxpool.Pool, logger *logrus.Logger) *VariantReferenceRepository {
	return &VariantReferenceRepository{
		db:  db,
		log: logger,
	}
}

const upsertVariantQuery = `
	INSERT INTO variant_reference (rsid, gene, risk_allele, normal_allele, profiles)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (rsid) DO UPDATE SET
		gene = EXCLUDED.gene,
		risk_allele = EXCLUDED.risk_allele,
		normal_allele = EXCLUDED.normal_allele,
		profiles = EXCLUDED.profiles,
		updated_at = NOW()`

const upsertRuleQuery = `
	INSERT INTO risk_rules (rule_key, spec)
	VALUES ($1, $2)
	ON CONFLICT (rule_key) DO UPDATE SET
		spec = EXCLUDED.spec,
		updated_at = NOW()`

// Upsert validates and stores a single record.
func (r *VariantReferenceRepository) Upsert(ctx context.Context, record domain.VariantRecord) error {
	args, err := variantArgs(record)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, upsertVariantQuery, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"rsid":  record.ID,
			"error": err,
		}).Error("Failed to upsert reference variant")
		return fmt.Errorf("upserting variant %s: %w", record.ID, err)
	}
	return nil
}

// UpsertRiskRule stores a declarative stratification rule.
func (r *VariantReferenceRepository) UpsertRiskRule(ctx context.Context, spec domain.RiskRuleSpec) error {
	args, err := ruleArgs(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, upsertRuleQuery, args...); err != nil {
		return fmt.Errorf("upserting risk rule %q: %w", spec.Key(), err)
	}
	return nil
}

// Seed writes every record and rule of reg in one transaction.
func (r *VariantReferenceRepository) Seed(ctx context.Context, reg *registry.Registry) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, rec := range reg.Records() {
			args, err := variantArgs(rec)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, upsertVariantQuery, args...); err != nil {
				return fmt.Errorf("upserting variant %s: %w", rec.ID, err)
			}
		}
		for _, spec := range reg.RiskRules() {
			args, err := ruleArgs(spec)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, upsertRuleQuery, args...); err != nil {
				return fmt.Errorf("upserting risk rule %q: %w", spec.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seeding reference table: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"variants":    reg.Len(),
		"risk_rules":  len(reg.RiskRules()),
		"fingerprint": reg.Fingerprint(),
	}).Info("Reference table seeded")
	return nil
}

// LoadAll returns every stored record ordered by rsid.
func (r *VariantReferenceRepository) LoadAll(ctx context.Context) ([]domain.VariantRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT rsid, gene, risk_allele, normal_allele, profiles
		FROM variant_reference
		ORDER BY rsid`)
	if err != nil {
		return nil, fmt.Errorf("querying reference variants: %w", err)
	}
	defer rows.Close()

	var records []domain.VariantRecord
	for rows.Next() {
		var rsid, gene, risk, normal string
		var profiles []byte
		if err := rows.Scan(&rsid, &gene, &risk, &normal, &profiles); err != nil {
			return nil, fmt.Errorf("scanning reference variant: %w", err)
		}
		rec, err := recordFromRow(rsid, gene, risk, normal, profiles)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reference variants: %w", err)
	}
	return records, nil
}

// LoadRiskRules returns every stored stratification rule ordered by key.
func (r *VariantReferenceRepository) LoadRiskRules(ctx context.Context) ([]domain.RiskRuleSpec, error) {
	rows, err := r.db.Query(ctx, `SELECT spec FROM risk_rules ORDER BY rule_key`)
	if err != nil {
		return nil, fmt.Errorf("querying risk rules: %w", err)
	}
	defer rows.Close()

	var specs []domain.RiskRuleSpec
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning risk rule: %w", err)
		}
		var spec domain.RiskRuleSpec
		if err := json.Unmarshal(payload, &spec); err != nil {
			return nil, fmt.Errorf("decoding risk rule: %w", err)
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// LoadRegistry builds a registry from the stored table. Validation is the same as for the
// file-based sources.
func (r *VariantReferenceRepository) LoadRegistry(ctx context.Context) (*registry.Registry, error) {
	records, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := r.LoadRiskRules(ctx)
	if err != nil {
		return nil, err
	}
	return registry.NewWithSource(SourceDatabase, records, rules)
}

// Delete removes a reference variant.
func (r *VariantReferenceRepository) Delete(ctx context.Context, rsid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM variant_reference WHERE rsid = $1`, rsid)
	if err != nil {
		return fmt.Errorf("deleting variant %s: %w", rsid, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("variant %s: %w", rsid, domain.ErrNotFound)
	}
	return nil
}

func ruleArgs(spec domain.RiskRuleSpec) ([]interface{}, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidReference, err)
	}
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encoding risk rule: %w", err)
	}
	return []interface{}{spec.Key(), payload}, nil
}

func variantArgs(record domain.VariantRecord) ([]interface{}, error) {
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidReference, err)
	}
	profiles, err := json.Marshal(record.Profiles)
	if err != nil {
		return nil, fmt.Errorf("encoding profiles of %s: %w", record.ID, err)
	}
	return []interface{}{
		record.ID,
		record.Gene,
		string(record.RiskAllele),
		string(record.NormalAllele),
		profiles,
	}, nil
}

func recordFromRow(rsid, gene, risk, normal string, profiles []byte) (domain.VariantRecord, error) {
	if len(risk) != 1 || len(normal) != 1 {
		return domain.VariantRecord{}, domain.NewConfigurationError(SourceDatabase, rsid,
			fmt.Errorf("%w: alleles must be single characters", domain.ErrInvalidReference))
	}
	rec := domain.VariantRecord{
		ID:           rsid,
		Gene:         gene,
		RiskAllele:   risk[0],
		NormalAllele: normal[0],
	}
	if err := json.Unmarshal(profiles, &rec.Profiles); err != nil {
		return domain.VariantRecord{}, domain.NewConfigurationError(SourceDatabase, rsid,
			errors.Join(domain.ErrInvalidReference, err))
	}
	return rec, nil
}
