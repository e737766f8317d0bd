package service

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genotype-insight-server/internal/domain"
)

func TestParseGenotypes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantIDs   []string
		wantStats ParseStats
	}{
		{
			name:      "single line",
			raw:       "rs9939609 AA",
			wantIDs:   []string{"rs9939609"},
			wantStats: ParseStats{TotalLines: 1},
		},
		{
			name:      "trailing newline",
			raw:       "rs1 AA\nrs2 AT\n",
			wantIDs:   []string{"rs1", "rs2"},
			wantStats: ParseStats{TotalLines: 2},
		},
		{
			name:      "mixed line endings",
			raw:       "rs1 AA\r\nrs2 AT\rrs3 TT",
			wantIDs:   []string{"rs1", "rs2", "rs3"},
			wantStats: ParseStats{TotalLines: 3},
		},
		{
			name:      "tabs and extra spaces",
			raw:       "  rs1\tAA  \n\trs2    TT",
			wantIDs:   []string{"rs1", "rs2"},
			wantStats: ParseStats{TotalLines: 2},
		},
		{
			name:      "blank lines",
			raw:       "\n   \nrs1 AA\n\n",
			wantIDs:   []string{"rs1"},
			wantStats: ParseStats{TotalLines: 4, BlankLines: 3},
		},
		{
			name:      "malformed lines do not abort",
			raw:       "rs1\nrs2 AA extra\nrs3 A\nrs4 AAA\nrs5 CT",
			wantIDs:   []string{"rs5"},
			wantStats: ParseStats{TotalLines: 5, MalformedLines: 4},
		},
		{
			name:      "multi-byte genotype is malformed",
			raw:       "rs1 \u00e9\nrs2 AT",
			wantIDs:   []string{"rs2"},
			wantStats: ParseStats{TotalLines: 2, MalformedLines: 1},
		},
		{
			name:      "empty input",
			raw:       "",
			wantIDs:   nil,
			wantStats: ParseStats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, stats := ParseGenotypes(tt.raw)
			var ids []string
			for _, c := range calls {
				ids = append(ids, c.VariantID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantStats, stats)
		})
	}
}

func TestParseLine(t *testing.T) {
	call, ok := ParseLine(7, "rs9939609 TA")
	require.True(t, ok)
	assert.Equal(t, domain.GenotypeCall{
		Line:      7,
		VariantID: "rs9939609",
		Genotype:  "TA",
		Alleles:   [2]byte{'T', 'A'},
	}, call)

	_, ok = ParseLine(1, "rs9939609")
	assert.False(t, ok)
}

func TestParseGenotypesLineNumbers(t *testing.T) {
	calls, _ := ParseGenotypes("rs1 AA\n\nbad\nrs2 TT")
	require.Len(t, calls, 2)
	assert.Equal(t, 1, calls[0].Line)
	assert.Equal(t, 4, calls[1].Line)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestParseGenotypeReader(t *testing.T) {
	calls, stats, err := ParseGenotypeReader(strings.NewReader("rs1 AA\r\nrs2 AT\r\n"))
	require.NoError(t, err)
	assert.Len(t, calls, 2)
	assert.Equal(t, 2, stats.TotalLines)

	_, _, err = ParseGenotypeReader(io.MultiReader(strings.NewReader("rs1 AA\n"), failingReader{}))
	assert.EqualError(t, err, "disk on fire")
}

func TestParseGenotypesOverlongLine(t *testing.T) {
	long := strings.Repeat("x", 2<<20)

	tests := []struct {
		name string
		raw  string
	}{
		{"newline terminated", "rs1 AA\n" + long + "\nrs2 AT\nrs3 TT\n"},
		{"carriage return terminated", "rs1 AA\r" + long + "\rrs2 AT\r\nrs3 TT"},
		{"overlong genotype token", "rs1 AA\nrs9 " + long + "\nrs2 AT\nrs3 TT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, stats := ParseGenotypes(tt.raw)
			require.Len(t, calls, 3)
			assert.Equal(t, "rs1", calls[0].VariantID)
			assert.Equal(t, "rs2", calls[1].VariantID)
			assert.Equal(t, 3, calls[1].Line)
			assert.Equal(t, "rs3", calls[2].VariantID)
			assert.Equal(t, ParseStats{TotalLines: 4, MalformedLines: 1}, stats)
		})
	}
}
