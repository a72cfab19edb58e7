package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/rescuelens/internal/behavioral"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <run-file>",
		Short: "Print the metrics extracted from one run log",
		Long: `Extract a single run log and print its metrics snapshot as JSON.

Useful for checking how a log is interpreted before running a full sweep.
Malformed lines are skipped exactly as they are during analyze.

Examples:
  rescuelens inspect Stree_Simulation/EasyMap/TwoAgents/run_01.json
  rescuelens inspect --compact run.jsonl | jq .total_rescues`,
		Args: cobra.ExactArgs(1),
		RunE: runInspect,
	}

	cmd.Flags().Bool("compact", false, "Print the snapshot on a single line")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.MaxLineBytes <= 0 {
		return fmt.Errorf("invalid configuration: max_line_bytes must be > 0, got %d", cfg.MaxLineBytes)
	}

	run, err := behavioral.ExtractFile(args[0], cfg.ExtractOptions())
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", args[0], err)
	}
	run.NumAgents = len(run.AgentSteps)

	compact, _ := cmd.Flags().GetBool("compact")
	var data []byte
	if compact {
		data, err = json.Marshal(run)
	} else {
		data, err = json.MarshalIndent(run, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
