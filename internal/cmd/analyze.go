package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/rescuelens/internal/behavioral"
	"github.com/harrison/rescuelens/internal/config"
	"github.com/harrison/rescuelens/internal/logger"
	"github.com/harrison/rescuelens/internal/store"
)

// NewAnalyzeCommand creates the analyze command
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [root-dir]",
		Short: "Analyze a sweep of simulation runs",
		Long: `Analyze every run log under a sweep root and export per-cell statistics.

The root holds one directory per complexity level (EasyMap, MediumMap,
HardMap), each with one directory per agent bucket (TwoAgents ... FiveAgents).
Every .json/.jsonl file directly inside a bucket directory is one run.

The root directory is taken from the argument, then RESCUELENS_ROOT, then
root_dir in .rescuelens/config.yaml, then the current directory.
Unreadable run files are reported and skipped; they never fail the sweep.

Examples:
  rescuelens analyze ./Stree_Simulation
  rescuelens analyze -o report.md --format markdown
  rescuelens analyze --workers 8 --db results.db --incremental
  rescuelens analyze --no-summary --log-level debug`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringP("output", "o", "", "Report file path (default: detailed_results.csv)")
	cmd.Flags().StringP("format", "f", "", "Report format: csv, json, markdown (or md), html")
	cmd.Flags().IntP("workers", "w", 0, "Number of run files analyzed in parallel")
	cmd.Flags().String("db", "", "Record the sweep in this results database (relative to the current directory)")
	cmd.Flags().Bool("incremental", false, "Reuse stored snapshots for unchanged run files")
	cmd.Flags().Bool("no-summary", false, "Do not print the console summary")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var rootPtr *string
	if len(args) == 1 {
		rootPtr = &args[0]
	}

	var outputPtr, formatPtr *string
	if cmd.Flags().Changed("output") {
		output, _ := cmd.Flags().GetString("output")
		outputPtr = &output
	}
	if cmd.Flags().Changed("format") {
		format, _ := cmd.Flags().GetString("format")
		formatPtr = &format
	}
	dbPtr, err := dbFlag(cmd)
	if err != nil {
		return err
	}

	var workersPtr *int
	if cmd.Flags().Changed("workers") {
		workers, _ := cmd.Flags().GetInt("workers")
		workersPtr = &workers
	}

	var incrementalPtr *bool
	if cmd.Flags().Changed("incremental") {
		incremental, _ := cmd.Flags().GetBool("incremental")
		incrementalPtr = &incremental
	}

	cfg.MergeWithFlags(rootPtr, outputPtr, formatPtr, workersPtr, dbPtr, incrementalPtr)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	format, err := behavioral.ParseExportFormat(cfg.Format)
	if err != nil {
		return err
	}
	output := cfg.Output
	if outputPtr == nil && output == config.DefaultConfig().Output {
		// default report name follows the chosen format
		output = strings.TrimSuffix(output, filepath.Ext(output))
	}
	outputPath := getExportPath(output, format)

	log := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	var results *store.Store
	if cfg.Store.Enabled {
		dbPath, err := config.ResolveDBPath(cfg.Store.DBPath)
		if err != nil {
			return fmt.Errorf("failed to resolve results database path: %w", err)
		}
		results, err = store.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open results database: %w", err)
		}
		defer results.Close()
		log.LogDebug(fmt.Sprintf("Results database: %s", dbPath))
	}

	opts := behavioral.CollectorOptions{
		Grid:       cfg.Grid,
		Extensions: cfg.Extensions,
		Workers:    cfg.Workers,
		Extract:    cfg.ExtractOptions(),
		Logger:     log,
	}
	if results != nil && cfg.Store.Incremental {
		opts.Cache = results
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	result, err := behavioral.NewCollector(opts).Collect(ctx, cfg.RootDir)
	if err != nil {
		return err
	}

	rows := behavioral.Aggregate(result.Cells, nil)

	if err := behavioral.ExportToFile(rows, outputPath, format); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if results != nil {
		id, err := results.RecordSweep(ctx, result, rows, store.ReportInfo{OutputPath: outputPath, Format: format})
		if err != nil {
			return fmt.Errorf("failed to record sweep: %w", err)
		}
		log.LogInfo(fmt.Sprintf("Recorded sweep %s", id))
	}

	out := cmd.OutOrStdout()
	noSummary, _ := cmd.Flags().GetBool("no-summary")
	if !noSummary {
		printSummary(out, cfg.Grid, rows, useColor(out))
	}
	fmt.Fprintf(out, "Detailed results saved to %s\n", outputPath)

	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// getExportPath appends the format's extension when path has none
func getExportPath(path, format string) string {
	if filepath.Ext(path) != "" {
		return path
	}

	ext := map[string]string{
		behavioral.FormatCSV:      ".csv",
		behavioral.FormatJSON:     ".json",
		behavioral.FormatMarkdown: ".md",
		behavioral.FormatHTML:     ".html",
	}[format]
	return path + ext
}

// printSummary writes the per-complexity console summary
func printSummary(w io.Writer, grid behavioral.Grid, rows []behavioral.AggregateRow, colorOutput bool) {
	for _, line := range behavioral.FormatSummary(grid, rows, colorOutput) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

// useColor reports whether w is a color-capable terminal
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
