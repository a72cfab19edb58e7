package behavioral

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// FormatSummary renders the console summary: one section per complexity level
// of the grid, one line per agent-count bucket with runs.
func FormatSummary(grid Grid, rows []AggregateRow, colorOutput bool) []string {
	byComplexity := make(map[string][]*AggregateRow)
	for _, group := range groupByComplexity(rows) {
		byComplexity[group.complexity] = group.rows
	}

	widths := map[string]int{
		"agents":  6, // "Agents"
		"runs":    4, // "Runs"
		"rescues": 11,
		"steps":   9,
		"comms":   9,
	}
	for _, row := range rows {
		if len(row.AgentCount) > widths["agents"] {
			widths["agents"] = len(row.AgentCount)
		}
	}

	var lines []string
	for _, level := range grid.ComplexityLevels {
		label := ComplexityDisplayName(level)
		heading := label + ":"
		if colorOutput {
			heading = color.New(color.Bold, color.FgCyan).Sprint(heading)
		}
		lines = append(lines, "", heading)

		group := byComplexity[label]
		if len(group) == 0 {
			lines = append(lines, "  no runs")
			continue
		}

		header := fmt.Sprintf("  %-*s  %*s  %*s  %*s  %*s",
			widths["agents"], "Agents",
			widths["runs"], "Runs",
			widths["rescues"], "Avg Rescues",
			widths["steps"], "Avg Steps",
			widths["comms"], "Avg Comms")
		lines = append(lines, header, "  "+strings.Repeat("-", len(header)-2))

		for _, row := range group {
			line := fmt.Sprintf("  %-*s  %*d  %*s  %*s  %*s",
				widths["agents"], row.AgentCount,
				widths["runs"], row.NumRuns,
				widths["rescues"], meanField(row, MetricTotalRescues),
				widths["steps"], meanField(row, MetricTotalSteps),
				widths["comms"], meanField(row, MetricTotalCommunications))

			if colorOutput {
				line = colorByRescues(row, line)
			}
			lines = append(lines, line)
		}
	}
	return lines
}

func meanField(row *AggregateRow, name string) string {
	stat, ok := row.Stat(name)
	if !ok || !stat.Valid() {
		return "-"
	}
	return fmt.Sprintf("%.2f", stat.Mean)
}

// colorByRescues highlights cells where no run rescued anyone
func colorByRescues(row *AggregateRow, line string) string {
	stat, ok := row.Stat(MetricTotalRescues)
	switch {
	case !ok:
		return line
	case stat.Mean == 0:
		return color.RedString(line)
	case stat.StdDev == 0:
		return color.GreenString(line)
	default:
		return line
	}
}

// FormatSweepStats summarizes how much input a sweep covered
func FormatSweepStats(result *SweepResult) string {
	if result == nil {
		return "No sweep performed"
	}
	if !result.RootFound {
		return fmt.Sprintf("Root directory %s not found, no runs analyzed", result.Root)
	}

	parts := []string{
		fmt.Sprintf("%d runs in %d cells", result.TotalRuns(), len(result.Cells)),
		fmt.Sprintf("%s files scanned (%s)", humanize.Comma(int64(result.FilesScanned)), humanize.Bytes(uint64(result.BytesScanned))),
	}
	if result.FilesCached > 0 {
		parts = append(parts, fmt.Sprintf("%d reused", result.FilesCached))
	}
	if result.FilesFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", result.FilesFailed))
	}
	parts = append(parts, "took "+formatDuration(result.Duration().Seconds()))
	return strings.Join(parts, ", ")
}

func formatDuration(seconds float64) string {
	if seconds < 1 {
		return fmt.Sprintf("%dms", int(seconds*1000))
	}
	return fmt.Sprintf("%.1fs", seconds)
}
