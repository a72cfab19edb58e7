package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/rescuelens/internal/behavioral"
	"github.com/harrison/rescuelens/internal/config"
	"github.com/harrison/rescuelens/internal/store"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List sweeps recorded in the results database",
		Long: `List analysis sweeps recorded with --db or store.enabled, newest first.

With --sweep, show one sweep's statistics again. The sweep may be named by
its full ID or any unique prefix. --format prints the stored rows in an
export format instead of the console summary, and --runs adds one line per
stored run snapshot to the console view.

Examples:
  rescuelens history
  rescuelens history --limit 5
  rescuelens history --sweep 3f2a9c
  rescuelens history --sweep 3f2a9c --runs
  rescuelens history --sweep 3f2a9c --format csv > rerun.csv`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().String("db", "", "Results database, relative to the current directory (default: store.db_path from config)")
	cmd.Flags().Int("limit", 20, "Maximum number of sweeps to list (0 = all)")
	cmd.Flags().String("sweep", "", "Show the statistics of one sweep")
	cmd.Flags().StringP("format", "f", "", "Print the sweep's rows as csv, json, markdown or html")
	cmd.Flags().Bool("runs", false, "With --sweep, list every stored run snapshot")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dbPath := cfg.Store.DBPath
	flagPath, err := dbFlag(cmd)
	if err != nil {
		return err
	}
	if flagPath != nil {
		dbPath = *flagPath
	}
	if dbPath == "" {
		return fmt.Errorf("no results database configured")
	}
	dbPath, err = config.ResolveDBPath(dbPath)
	if err != nil {
		return fmt.Errorf("failed to resolve results database path: %w", err)
	}

	out := cmd.OutOrStdout()
	if dbPath != ":memory:" {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			fmt.Fprintf(out, "No sweeps recorded yet (%s does not exist)\n", dbPath)
			return nil
		}
	}

	results, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open results database: %w", err)
	}
	defer results.Close()

	ctx := commandContext(cmd)
	sweepID, _ := cmd.Flags().GetString("sweep")
	if sweepID == "" {
		limit, _ := cmd.Flags().GetInt("limit")
		return listSweeps(ctx, out, results, limit)
	}

	format := ""
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
		if format, err = behavioral.ParseExportFormat(format); err != nil {
			return err
		}
	}
	showRuns, _ := cmd.Flags().GetBool("runs")
	return showSweep(ctx, out, results, sweepID, cfg.Grid, format, showRuns)
}

func listSweeps(ctx context.Context, w io.Writer, results *store.Store, limit int) error {
	sweeps, err := results.ListSweeps(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list sweeps: %w", err)
	}
	if len(sweeps) == 0 {
		fmt.Fprintln(w, "No sweeps recorded yet")
		return nil
	}

	colorOutput := useColor(w)
	for _, sweep := range sweeps {
		id := sweep.ID[:min(8, len(sweep.ID))]
		if colorOutput {
			id = color.New(color.FgCyan).Sprint(id)
		}
		line := fmt.Sprintf("%s  %s  %s  %d runs, %s files",
			id,
			sweep.StartedAt.Local().Format("2006-01-02 15:04:05"),
			sweep.Root,
			sweep.TotalRuns,
			humanize.Comma(int64(sweep.FilesScanned)))
		if sweep.FilesFailed > 0 {
			failed := fmt.Sprintf(", %d failed", sweep.FilesFailed)
			if colorOutput {
				failed = color.RedString(failed)
			}
			line += failed
		}
		if !sweep.RootFound {
			line += " (root not found)"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func showSweep(ctx context.Context, w io.Writer, results *store.Store, sweepID string, grid behavioral.Grid, format string, showRuns bool) error {
	sweep, err := results.GetSweep(ctx, sweepID)
	if err != nil {
		return err
	}

	rows, err := results.GetAggregates(ctx, sweep.ID)
	if err != nil {
		return fmt.Errorf("failed to load sweep %s: %w", sweep.ID, err)
	}

	if format != "" {
		content, err := behavioral.ExportToString(rows, format)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprint(w, content)
		return nil
	}

	fmt.Fprintf(w, "Sweep %s\n", sweep.ID)
	fmt.Fprintf(w, "  Root: %s\n", sweep.Root)
	fmt.Fprintf(w, "  Started: %s (%s)\n",
		sweep.StartedAt.Local().Format(time.RFC1123), humanize.Time(sweep.StartedAt))
	fmt.Fprintf(w, "  Runs: %d from %s files (%s), %d reused, %d failed\n",
		sweep.TotalRuns,
		humanize.Comma(int64(sweep.FilesScanned)),
		humanize.Bytes(uint64(sweep.BytesScanned)),
		sweep.FilesCached,
		sweep.FilesFailed)
	if sweep.OutputPath != "" {
		fmt.Fprintf(w, "  Report: %s (%s)\n", sweep.OutputPath, sweep.Format)
	}

	failures, err := results.GetFailures(ctx, sweep.ID)
	if err != nil {
		return fmt.Errorf("failed to load failures: %w", err)
	}
	for _, f := range failures {
		fmt.Fprintf(w, "  Failed: %s: %s\n", f.FilePath, f.Error)
	}

	if showRuns {
		runs, err := results.GetSnapshots(ctx, sweep.ID)
		if err != nil {
			return fmt.Errorf("failed to load runs: %w", err)
		}
		for _, run := range runs {
			fmt.Fprintf(w, "  Run: %s [%s / %s] steps: %g, rescues: %d, rooms: %d, comms: %d\n",
				run.FilePath, run.Complexity, run.AgentCount,
				run.TotalSteps, run.TotalRescues, run.UniqueRoomsCount, run.TotalCommunications)
		}
	}

	printSummary(w, grid, rows, useColor(w))
	return nil
}
