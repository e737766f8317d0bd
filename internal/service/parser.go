package service

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/genotype-insight-server/internal/domain"
)

// maxLineBytes bounds how much of a single line is buffered. Longer lines are counted as
// malformed and skipped without being held in memory.
const maxLineBytes = 64 * 1024

// ParseStats counts how the lines of an input were handled by the parser.
type ParseStats struct {
	TotalLines     int
	BlankLines     int
	MalformedLines int
}

// ParseGenotypes splits raw genotype text into calls. A line is well formed when it holds
// exactly two whitespace-separated tokens and the second is exactly two ASCII characters.
// Other lines are dropped and counted; the parser never fails.
func ParseGenotypes(raw string) ([]domain.GenotypeCall, ParseStats) {
	// A strings.Reader never fails, so the only possible error is absent.
	calls, stats, _ := ParseGenotypeReader(strings.NewReader(raw))
	return calls, stats
}

// ParseGenotypeReader parses genotype lines from r. The error is only non-nil when reading
// from r fails; calls parsed up to that point are returned.
func ParseGenotypeReader(r io.Reader) ([]domain.GenotypeCall, ParseStats, error) {
	var (
		calls []domain.GenotypeCall
		stats ParseStats
		buf   []byte
	)

	br := bufio.NewReader(r)
	for {
		line, overlong, err := readLine(br, buf[:0])
		if err == io.EOF {
			return calls, stats, nil
		}
		if err != nil {
			return calls, stats, err
		}
		buf = line

		stats.TotalLines++
		if overlong {
			stats.MalformedLines++
			continue
		}
		call, ok, blank := parseLine(stats.TotalLines, string(line))
		switch {
		case blank:
			stats.BlankLines++
		case !ok:
			stats.MalformedLines++
		default:
			calls = append(calls, call)
		}
	}
}

// isAlleleCode reports whether genotype is exactly two ASCII characters. Reference alleles
// are single bytes, so a multi-byte character can never be an allele.
func isAlleleCode(genotype string) bool {
	return len(genotype) == 2 && genotype[0] < utf8.RuneSelf && genotype[1] < utf8.RuneSelf
}

// ParseLine parses a single genotype line.
func ParseLine(lineNo int, line string) (domain.GenotypeCall, bool) {
	call, ok, _ := parseLine(lineNo, line)
	return call, ok
}

func parseLine(lineNo int, line string) (call domain.GenotypeCall, ok bool, blank bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return domain.GenotypeCall{}, false, true
	}
	if len(fields) != 2 || !isAlleleCode(fields[1]) {
		return domain.GenotypeCall{}, false, false
	}
	genotype := fields[1]
	return domain.GenotypeCall{
		Line:      lineNo,
		VariantID: fields[0],
		Genotype:  genotype,
		Alleles:   [2]byte{genotype[0], genotype[1]},
	}, true, false
}

// readLine reads one line terminated by "\n", "\r\n" or a lone "\r" and appends it to buf
// without the terminator. A line longer than maxLineBytes is consumed to its end and
// reported as overlong. io.EOF is returned only when no bytes were left.
func readLine(br *bufio.Reader, buf []byte) (line []byte, overlong bool, err error) {
	started := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && started {
				return buf, overlong, nil
			}
			return buf, overlong, err
		}
		started = true

		switch b {
		case '\n':
			return buf, overlong, nil
		case '\r':
			if next, err := br.Peek(1); err == nil && next[0] == '\n' {
				_, _ = br.ReadByte()
			}
			return buf, overlong, nil
		}

		if len(buf) < maxLineBytes {
			buf = append(buf, b)
		} else {
			overlong = true
		}
	}
}
