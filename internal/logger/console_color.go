package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/rescuelens/internal/behavioral"
)

// colorScheme defines consistent colors for different metric types.
// Green: rescues and successful communication
// Red: failed communication
// Yellow: runs that never advanced the clock
// Cyan: labels
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme for metrics.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single metric as "label: value" with a
// cyan label.
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	labelColored := scheme.label.Sprint(label)
	valueColored := scheme.value.Sprintf("%v", value)
	return fmt.Sprintf("%s: %s", labelColored, valueColored)
}

// formatRunMetrics renders the headline numbers of a run without color.
// Format: "steps: N, rescues: N, rooms: N, comms: N"
func formatRunMetrics(run *behavioral.RunMetrics) string {
	parts := []string{
		fmt.Sprintf("steps: %g", run.TotalSteps),
		fmt.Sprintf("rescues: %d", run.TotalRescues),
		fmt.Sprintf("rooms: %d", run.UniqueRoomsCount),
		fmt.Sprintf("comms: %d", run.TotalCommunications),
	}
	if run.CommunicationFailures > 0 {
		parts = append(parts, fmt.Sprintf("failed comms: %d", run.CommunicationFailures))
	}
	return strings.Join(parts, ", ")
}

// formatColorizedRunMetrics renders the same fields as formatRunMetrics with
// color coding. Colors are disabled automatically when output is not a TTY
// via fatih/color's built-in detection.
func formatColorizedRunMetrics(run *behavioral.RunMetrics, scheme *colorScheme) string {
	var parts []string

	if run.SimulationCompleted {
		parts = append(parts, formatColorizedMetric("steps", fmt.Sprintf("%g", run.TotalSteps), scheme))
	} else {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.warn.Sprint("steps"), scheme.warn.Sprint("0")))
	}

	if run.TotalRescues > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.success.Sprint("rescues"), scheme.value.Sprintf("%d", run.TotalRescues)))
	} else {
		parts = append(parts, formatColorizedMetric("rescues", 0, scheme))
	}

	parts = append(parts, formatColorizedMetric("rooms", run.UniqueRoomsCount, scheme))
	parts = append(parts, formatColorizedMetric("comms", run.TotalCommunications, scheme))

	if run.CommunicationFailures > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.fail.Sprint("failed comms"), scheme.fail.Sprintf("%d", run.CommunicationFailures)))
	}

	return strings.Join(parts, ", ")
}
