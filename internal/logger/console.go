// Package logger provides console logging for rescuelens sweeps.
//
// ConsoleLogger writes levelled, timestamped lines and implements the sweep
// progress hooks the collector calls. Implementations are thread-safe so a
// parallel sweep can report from several workers at once.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/rescuelens/internal/behavioral"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs sweep progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	progress    map[behavioral.Cell]*ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else falls back to info.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
		progress:    make(map[behavioral.Cell]*ProgressBar),
	}
}

// SetColor overrides the automatic color detection
func (cl *ConsoleLogger) SetColor(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = enabled
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// false when NO_COLOR is set or the stream is not a TTY
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}
	return "info"
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel writes "[HH:MM:SS] [LEVEL] message" if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writeLocked(level, message)
}

func (cl *ConsoleLogger) writeLocked(level, message string) {
	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}
	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogCellStart logs the start of a grid cell at INFO level.
// Format: "[HH:MM:SS] [INFO] Analyzing <cell>: <n> files"
func (cl *ConsoleLogger) LogCellStart(cell behavioral.Cell, dir string, files int) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if files > 0 {
		bar := NewProgressBar(files, 10, cl.colorOutput)
		bar.SetPrefix(cell.String() + " ")
		cl.progress[cell] = bar
	}

	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	name := cell.String()
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	cl.writeLocked("INFO", fmt.Sprintf("Analyzing %s: %d files in %s", name, files, dir))
}

// LogRunExtracted logs one analyzed run file at DEBUG level.
// Format: "[HH:MM:SS] [DEBUG] Analyzing: <path> (steps: N, rescues: N, ...)"
func (cl *ConsoleLogger) LogRunExtracted(cell behavioral.Cell, run *behavioral.RunMetrics, cached bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.writer != nil && cl.shouldLog("debug") && run != nil {
		var summary string
		if cl.colorOutput {
			summary = formatColorizedRunMetrics(run, newColorScheme())
		} else {
			summary = formatRunMetrics(run)
		}
		suffix := ""
		if cached {
			suffix = " [cached]"
		}
		cl.writeLocked("DEBUG", fmt.Sprintf("Analyzing: %s (%s)%s", run.FilePath, summary, suffix))
	}

	cl.advanceLocked(cell, false)
}

// LogRunFailed logs a run file that could not be analyzed at WARN level.
// Format: "[HH:MM:SS] [WARN] Error processing file <path>: <err>"
func (cl *ConsoleLogger) LogRunFailed(cell behavioral.Cell, path string, err error) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.writer != nil && cl.shouldLog("warn") {
		cl.writeLocked("WARN", fmt.Sprintf("Error processing file %s: %v", path, err))
	}

	cl.advanceLocked(cell, true)
}

// advanceLocked moves the cell's progress bar and reports it once complete
func (cl *ConsoleLogger) advanceLocked(cell behavioral.Cell, failed bool) {
	bar, ok := cl.progress[cell]
	if !ok {
		return
	}
	if failed {
		bar.MarkFailed()
	} else {
		bar.Increment()
	}

	if !bar.Done() {
		if cl.writer != nil && cl.shouldLog("trace") {
			cl.writeLocked("TRACE", bar.Render())
		}
		return
	}

	delete(cl.progress, cell)
	if cl.writer != nil && cl.shouldLog("info") {
		cl.writeLocked("INFO", bar.Render())
	}
}

// LogSweepComplete logs the sweep totals at INFO level.
func (cl *ConsoleLogger) LogSweepComplete(result *behavioral.SweepResult) {
	if cl.writer == nil || !cl.shouldLog("info") || result == nil {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	header := "=== Sweep Summary ==="
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}
	cl.writeLocked("INFO", header)
	cl.writeLocked("INFO", behavioral.FormatSweepStats(result))
	if result.FilesFailed > 0 {
		failed := fmt.Sprintf("Failed files: %d", result.FilesFailed)
		if cl.colorOutput {
			failed = color.New(color.FgRed).Sprint(failed)
		}
		cl.writeLocked("INFO", failed)
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// NoOpLogger discards all sweep events.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogCellStart is a no-op implementation.
func (n *NoOpLogger) LogCellStart(cell behavioral.Cell, dir string, files int) {}

// LogRunExtracted is a no-op implementation.
func (n *NoOpLogger) LogRunExtracted(cell behavioral.Cell, run *behavioral.RunMetrics, cached bool) {}

// LogRunFailed is a no-op implementation.
func (n *NoOpLogger) LogRunFailed(cell behavioral.Cell, path string, err error) {}

// LogSweepComplete is a no-op implementation.
func (n *NoOpLogger) LogSweepComplete(result *behavioral.SweepResult) {}

// LogWarn is a no-op implementation.
func (n *NoOpLogger) LogWarn(message string) {}

var (
	_ behavioral.Logger = (*ConsoleLogger)(nil)
	_ behavioral.Logger = (*NoOpLogger)(nil)
)
