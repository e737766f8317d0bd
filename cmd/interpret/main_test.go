package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/history"
)

type result struct {
	AnalysisID string                        `json:"analysis_id"`
	Source     string                        `json:"source"`
	Results    []domain.InterpretationReport `json:"results"`
	Stats      domain.BatchStats             `json:"stats"`
}

func TestRun_Stdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	stdin := strings.NewReader("rs9939609 AA\nrsUNKNOWN XX\nrs9939609 AT\n")

	require.NoError(t, run(context.Background(), []string{"--compact"}, stdin, &stdout, &stderr))

	var out result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "-", out.Source)
	require.Len(t, out.Results, 2)
	assert.Equal(t, domain.HOMOZYGOUS_RISK, out.Results[0].Category)
	assert.Equal(t, domain.HETEROZYGOUS, out.Results[1].Category)
	assert.Equal(t, 1, out.Stats.UnknownVariants)
	assert.Empty(t, out.AnalysisID)
}

func TestRun_FileWithHistory(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "genome.txt")
	require.NoError(t, os.WriteFile(input, []byte("rs9939609 TT\n"), 0644))
	dbPath := filepath.Join(dir, "history.db")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--history", dbPath, input}, nil, &stdout, &stderr))

	var out result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, domain.NORMAL, out.Results[0].Category)
	assert.Nil(t, out.Results[0].HealthRisk)
	require.NotEmpty(t, out.AnalysisID)

	store, err := history.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()
	record, err := store.Get(context.Background(), out.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, history.SourceCLI, record.Source)
	assert.Equal(t, input, record.Filename)
}

func TestRun_ExportReferenceRoundTrip(t *testing.T) {
	var exported, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--export-reference"}, nil, &exported, &stderr))
	assert.Contains(t, exported.String(), "rs9939609")

	refPath := filepath.Join(t.TempDir(), "reference.yaml")
	require.NoError(t, os.WriteFile(refPath, exported.Bytes(), 0644))

	var stdout bytes.Buffer
	stdin := strings.NewReader("rs9939609 AA")
	require.NoError(t, run(context.Background(), []string{"--reference", refPath}, stdin, &stdout, &stderr))
	assert.Contains(t, stdout.String(), `"category": "homozygous_risk"`)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too many inputs", []string{"a.txt", "b.txt"}},
		{"missing input file", []string{"/nonexistent/genome.txt"}},
		{"missing reference", []string{"--reference", "/nonexistent/reference.yaml"}},
		{"unknown flag", []string{"--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, strings.NewReader(""), &stdout, &stderr)
			assert.Error(t, err)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-h"}, nil, &stdout, &stderr)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, stderr.String(), "usage: interpret")
}
