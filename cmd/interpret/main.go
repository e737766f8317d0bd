// Command interpret classifies a genotype file against the variant reference table and
// prints the batch result as JSON.
//
//	interpret [--reference table.yaml] [--history history.db] [file|-]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/history"
	"github.com/genotype-insight-server/internal/logging"
	"github.com/genotype-insight-server/internal/registry"
	"github.com/genotype-insight-server/internal/service"
)

type options struct {
	reference       string
	historyPath     string
	workers         int
	compact         bool
	exportReference bool
	logLevel        string
	input           string
}

type output struct {
	AnalysisID string `json:"analysis_id,omitempty"`
	Source     string `json:"source"`
	*domain.BatchResult
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "interpret: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("interpret", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.reference, "reference", "", "variant reference YAML (default: embedded table)")
	fs.StringVar(&o.historyPath, "history", "", "store the analysis in this SQLite database")
	fs.IntVar(&o.workers, "workers", 4, "goroutines used for large batches")
	fs.BoolVar(&o.compact, "compact", false, "print compact JSON")
	fs.BoolVar(&o.exportReference, "export-reference", false, "print the reference table as YAML and exit")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level written to stderr")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: interpret [flags] [file|-]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	switch fs.NArg() {
	case 0:
		o.input = "-"
	case 1:
		o.input = fs.Arg(0)
	default:
		return o, fmt.Errorf("expected at most one input file, got %d", fs.NArg())
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	logger := logging.NewStderr(o.logLevel, logging.FormatText)
	logger.SetOutput(stderr)

	reg, err := registry.Load(o.reference)
	if err != nil {
		return err
	}

	if o.exportReference {
		data, err := registry.Marshal(reg)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}

	in := stdin
	if o.input != "-" {
		f, err := os.Open(o.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	interpreter := service.NewInterpreter(logger, reg, service.StratifierFromSpecs(logger, reg.RiskRules()),
		service.WithWorkers(o.workers))
	result, err := interpreter.InterpretReader(in)
	if err != nil {
		return fmt.Errorf("reading genotypes: %w", err)
	}

	out := output{Source: o.input, BatchResult: result}
	if o.historyPath != "" {
		store, err := history.NewSQLiteStore(o.historyPath)
		if err != nil {
			return err
		}
		defer store.Close()

		filename := o.input
		if filename == "-" {
			filename = ""
		}
		record := history.NewAnalysisRecord(history.SourceCLI, filename, result)
		if err := store.Save(ctx, record); err != nil {
			return fmt.Errorf("saving analysis: %w", err)
		}
		out.AnalysisID = record.ID
	}

	enc := json.NewEncoder(stdout)
	if !o.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
