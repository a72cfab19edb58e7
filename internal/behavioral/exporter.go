package behavioral

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/rescuelens/internal/filelock"
)

// Supported export formats
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Exporter renders aggregate rows into a serialized report
type Exporter interface {
	Export(rows []AggregateRow) (string, error)
}

// ParseExportFormat normalizes a format name ("md" -> "markdown", "htm" -> "html")
func ParseExportFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatHTML, "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: csv, json, markdown, html)", format)
	}
}

// NewExporter returns the exporter for a format; nil metrics uses DefaultMetrics
func NewExporter(format string, metrics []MetricSpec) (Exporter, error) {
	normalized, err := ParseExportFormat(format)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}

	switch normalized {
	case FormatJSON:
		return &JSONExporter{Pretty: true}, nil
	case FormatMarkdown:
		return &MarkdownExporter{Metrics: metrics, IncludeTimestamp: true}, nil
	case FormatHTML:
		return &HTMLExporter{Markdown: MarkdownExporter{Metrics: metrics, IncludeTimestamp: true}}, nil
	default:
		return &CSVExporter{Metrics: metrics}, nil
	}
}

// CSVExporter writes one row per cell with avg_, std_ and n_ columns
type CSVExporter struct {
	Metrics []MetricSpec
}

// Header returns the column names in order
func (ce *CSVExporter) Header() []string {
	header := []string{"complexity", "agent_count", "num_runs"}
	for _, m := range ce.Metrics {
		header = append(header, "avg_"+m.Name)
	}
	for _, m := range ce.Metrics {
		header = append(header, "std_"+m.Name)
	}
	for _, m := range ce.Metrics {
		if m.Missing == MissingExcluded {
			header = append(header, "n_"+m.Name)
		}
	}
	return header
}

// Export converts aggregate rows to CSV
func (ce *CSVExporter) Export(rows []AggregateRow) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(ce.Header()); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range rows {
		row := &rows[i]
		if err := row.Validate(); err != nil {
			return "", fmt.Errorf("invalid aggregate row: %w", err)
		}

		record := []string{row.Complexity, row.AgentCount, strconv.Itoa(row.NumRuns)}
		for _, m := range ce.Metrics {
			record = append(record, statField(row, m.Name, func(s MetricStat) float64 { return s.Mean }))
		}
		for _, m := range ce.Metrics {
			record = append(record, statField(row, m.Name, func(s MetricStat) float64 { return s.StdDev }))
		}
		for _, m := range ce.Metrics {
			if m.Missing != MissingExcluded {
				continue
			}
			stat, _ := row.Stat(m.Name)
			record = append(record, strconv.Itoa(stat.Samples))
		}

		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.String(), nil
}

// statField formats a statistic; a metric without samples renders empty
func statField(row *AggregateRow, name string, pick func(MetricStat) float64) string {
	stat, ok := row.Stat(name)
	if !ok || !stat.Valid() {
		return ""
	}
	return formatFloat(pick(stat))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JSONExporter exports aggregate rows as a JSON document
type JSONExporter struct {
	Pretty bool // Enable pretty printing with indentation
}

type jsonReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Rows        []AggregateRow `json:"rows"`
}

// Export converts aggregate rows to JSON
func (je *JSONExporter) Export(rows []AggregateRow) (string, error) {
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return "", fmt.Errorf("invalid aggregate row: %w", err)
		}
	}
	if rows == nil {
		rows = []AggregateRow{}
	}

	report := jsonReport{GeneratedAt: time.Now().UTC(), Rows: rows}

	var data []byte
	var err error
	if je.Pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// MarkdownExporter renders one table per complexity level
type MarkdownExporter struct {
	Metrics          []MetricSpec
	IncludeTimestamp bool // Include export timestamp in header
}

// Export converts aggregate rows to Markdown
func (me *MarkdownExporter) Export(rows []AggregateRow) (string, error) {
	var sb strings.Builder

	sb.WriteString("# Rescue Simulation Report\n\n")
	if me.IncludeTimestamp {
		sb.WriteString(fmt.Sprintf("**Generated**: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))
	}

	if len(rows) == 0 {
		sb.WriteString("No runs found.\n")
		return sb.String(), nil
	}

	for _, group := range groupByComplexity(rows) {
		sb.WriteString(fmt.Sprintf("## %s\n\n", group.complexity))

		sb.WriteString("| Agents | Runs |")
		for _, m := range me.Metrics {
			sb.WriteString(" " + m.Name + " |")
		}
		sb.WriteString("\n|--------|------|")
		for range me.Metrics {
			sb.WriteString("------|")
		}
		sb.WriteString("\n")

		for _, row := range group.rows {
			if err := row.Validate(); err != nil {
				return "", fmt.Errorf("invalid aggregate row: %w", err)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d |", row.AgentCount, row.NumRuns))
			for _, m := range me.Metrics {
				stat, ok := row.Stat(m.Name)
				if !ok || !stat.Valid() {
					sb.WriteString(" - |")
					continue
				}
				sb.WriteString(fmt.Sprintf(" %.2f ± %.2f |", stat.Mean, stat.StdDev))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// HTMLExporter renders the Markdown report to a standalone HTML page
type HTMLExporter struct {
	Markdown MarkdownExporter
}

// Export converts aggregate rows to HTML
func (he *HTMLExporter) Export(rows []AggregateRow) (string, error) {
	md, err := he.Markdown.Export(rows)
	if err != nil {
		return "", err
	}

	renderer := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := renderer.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>Rescue Simulation Report</title>\n</head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

type complexityGroup struct {
	complexity string
	rows       []*AggregateRow
}

// groupByComplexity keeps first-seen order of complexity levels and rows
func groupByComplexity(rows []AggregateRow) []complexityGroup {
	var groups []complexityGroup
	index := make(map[string]int)
	for i := range rows {
		row := &rows[i]
		gi, ok := index[row.Complexity]
		if !ok {
			gi = len(groups)
			index[row.Complexity] = gi
			groups = append(groups, complexityGroup{complexity: row.Complexity})
		}
		groups[gi].rows = append(groups[gi].rows, row)
	}
	return groups
}

// ExportToString exports rows in the specified format
func ExportToString(rows []AggregateRow, format string) (string, error) {
	exporter, err := NewExporter(format, nil)
	if err != nil {
		return "", err
	}
	return exporter.Export(rows)
}

// ExportToFile writes rows to path in the specified format.
// The write holds path+".lock" and replaces the target atomically.
func ExportToFile(rows []AggregateRow, path string, format string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	content, err := ExportToString(rows, format)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if err := filelock.LockAndWrite(path, []byte(content)); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
