package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/genotype-insight-server/internal/domain"
)

const explainPromptName = "explain_genotype_report"

func (s *LiteServer) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        explainPromptName,
		Description: "Walk through a genotype analysis in plain language, variant by variant",
		Arguments: []*mcp.PromptArgument{
			{Name: "analysis_id", Description: "Id of a stored analysis", Required: false},
			{Name: "genotypes", Description: "Raw genotype lines to interpret first, used when no analysis_id is given", Required: false},
		},
	}, s.explainReport)
}

func (s *LiteServer) explainReport(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	analysisID := strings.TrimSpace(args["analysis_id"])
	genotypes := strings.TrimSpace(args["genotypes"])

	var step string
	switch {
	case analysisID != "":
		step = fmt.Sprintf("1. Call get_analysis with id %q.", analysisID)
	case genotypes != "":
		step = "1. Call interpret_genotypes with these genotype lines:\n\n" + genotypes
	default:
		return nil, fmt.Errorf("either analysis_id or genotypes is required")
	}

	text := strings.Join([]string{
		"You are explaining a consumer genotype report. The engine is a deterministic lookup against a small reference table; it is not a diagnosis.",
		"",
		step,
		"2. For each result, state the gene, the observed genotype and its zygosity category:",
		categoryGlossary(),
		"3. Summarise the lifestyle and nutrition advice without adding recommendations of your own.",
		"4. Where a health_report is present, explain its level and score; a risk factor of 1.0 is the population baseline.",
		"5. Mention how many lines were skipped as malformed or unknown, using the stats block.",
		"6. Close by suggesting the user discuss any high-level notes with a clinician.",
	}, "\n")

	return &mcp.GetPromptResult{
		Description: "Explain a genotype analysis",
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: text},
		}},
	}, nil
}

func categoryGlossary() string {
	var b strings.Builder
	for i, c := range domain.Categories {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "   - %s: %s", c, c.Description())
	}
	return b.String()
}
