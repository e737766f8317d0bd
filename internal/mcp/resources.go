package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/genotype-insight-server/internal/registry"
)

const (
	referenceURI       = "genotype://reference"
	variantURIPrefix   = "genotype://variants/"
	variantURITemplate = variantURIPrefix + "{rsid}"
)

// registerResources exposes the reference table as a YAML document and each variant as JSON.
func (s *LiteServer) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         referenceURI,
		Name:        "variant-reference",
		Description: "The variant reference table in the YAML format accepted by GENOTYPE_REFERENCE_PATH",
		MIMEType:    "application/yaml",
	}, s.readReference)

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: variantURITemplate,
		Name:        "variant",
		Description: "One reference variant with its zygosity category profiles",
		MIMEType:    "application/json",
	}, s.readVariant)
}

func (s *LiteServer) readReference(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	data, err := registry.Marshal(s.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reference: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/yaml",
			Text:     string(data),
		}},
	}, nil
}

func (s *LiteServer) readVariant(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	rsid := strings.TrimPrefix(uri, variantURIPrefix)
	record, ok := s.registry.Lookup(rsid)
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	data, err := json.MarshalIndent(record.Summary(true), "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
