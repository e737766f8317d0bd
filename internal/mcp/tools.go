package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/history"
)

// InterpretGenotypesInput is the input of interpret_genotypes.
type InterpretGenotypesInput struct {
	Genotypes string `json:"genotypes" jsonschema:"Genotype calls, one per line: <rsid> <two-letter genotype>, e.g. rs9939609 AA"`
	Label     string `json:"label,omitempty" jsonschema:"Optional name stored with the analysis, e.g. the source file name"`
}

// LookupVariantInput is the input of lookup_variant.
type LookupVariantInput struct {
	RSID string `json:"rsid" jsonschema:"Reference SNP identifier, e.g. rs9939609"`
}

// GetAnalysisInput is the input of get_analysis.
type GetAnalysisInput struct {
	ID string `json:"id" jsonschema:"Analysis id returned by interpret_genotypes"`
}

// ListAnalysesInput is the input of list_analyses.
type ListAnalysesInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"Maximum number of analyses to return (default 20, at most 500)"`
	Offset int `json:"offset,omitempty" jsonschema:"Number of analyses to skip"`
}

type interpretOutput struct {
	AnalysisID string                        `json:"analysis_id,omitempty"`
	Results    []domain.InterpretationReport `json:"results"`
	Stats      domain.BatchStats             `json:"stats"`
}

func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "interpret_genotypes",
		Description: "Classify genotype calls against the variant reference table and return per-variant guidance with health-risk notes. Malformed lines and unknown variants are skipped and counted in stats.",
	}, s.interpretGenotypes)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lookup_variant",
		Description: "Return the reference record of one variant: gene, risk and normal alleles, and the guidance for each zygosity category",
	}, s.lookupVariant)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_variants",
		Description: "List the variants in the reference table",
	}, s.listVariants)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_analysis",
		Description: "Retrieve a stored analysis by id",
	}, s.getAnalysis)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_analyses",
		Description: "List stored analyses, newest first",
	}, s.listAnalyses)

	s.logger.WithField("tool_count", 5).Info("Successfully registered all tools")
}

func (s *LiteServer) interpretGenotypes(ctx context.Context, _ *mcp.CallToolRequest, input InterpretGenotypesInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "interpret_genotypes").Debug("Tool invoked")

	if strings.TrimSpace(input.Genotypes) == "" {
		return toolError("genotypes is required"), nil, nil
	}

	result := s.interpreter.InterpretBatchContext(ctx, input.Genotypes)
	out := interpretOutput{Results: result.Reports, Stats: result.Stats}

	if s.historyStore != nil {
		record := history.NewAnalysisRecord(history.SourceMCP, input.Label, result)
		if err := s.historyStore.Save(ctx, record); err != nil {
			s.logger.WithError(err).Error("Failed to save analysis")
		} else {
			out.AnalysisID = record.ID
		}
	}

	return toolJSON(out)
}

func (s *LiteServer) lookupVariant(_ context.Context, _ *mcp.CallToolRequest, input LookupVariantInput) (*mcp.CallToolResult, any, error) {
	record, ok := s.registry.Lookup(strings.TrimSpace(input.RSID))
	if !ok {
		return toolError("Variant %q is not in the reference table", input.RSID), nil, nil
	}
	return toolJSON(record.Summary(true))
}

func (s *LiteServer) listVariants(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	records := s.registry.Records()
	variants := make([]domain.VariantSummary, 0, len(records))
	for _, r := range records {
		variants = append(variants, r.Summary(false))
	}
	return toolJSON(map[string]any{
		"variants":    variants,
		"count":       len(variants),
		"fingerprint": s.registry.Fingerprint(),
	})
}

func (s *LiteServer) getAnalysis(ctx context.Context, _ *mcp.CallToolRequest, input GetAnalysisInput) (*mcp.CallToolResult, any, error) {
	if s.historyStore == nil {
		return toolError("%v", domain.ErrHistoryDisabled), nil, nil
	}
	record, err := s.historyStore.Get(ctx, input.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return toolError("Analysis %q not found", input.ID), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	return toolJSON(record)
}

func (s *LiteServer) listAnalyses(ctx context.Context, _ *mcp.CallToolRequest, input ListAnalysesInput) (*mcp.CallToolResult, any, error) {
	if s.historyStore == nil {
		return toolError("%v", domain.ErrHistoryDisabled), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	limit = min(limit, history.MaxPageSize)
	offset := max(input.Offset, 0)

	records, err := s.historyStore.List(ctx, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	total, err := s.historyStore.Count(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count analyses: %w", err)
	}
	return toolJSON(map[string]any{
		"analyses": records,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
