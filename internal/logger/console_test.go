package logger

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrison/rescuelens/internal/behavioral"
)

var easyTwo = behavioral.Cell{Complexity: "EasyMap", AgentBucket: "TwoAgents"}

func TestNewConsoleLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "")

	if logger.logLevel != "info" {
		t.Errorf("logLevel = %q, want info", logger.logLevel)
	}
	if logger.colorOutput {
		t.Error("colorOutput should be false for a buffer")
	}

	if got := NewConsoleLogger(buf, " DEBUG ").logLevel; got != "debug" {
		t.Errorf("logLevel = %q, want debug", got)
	}
	if got := NewConsoleLogger(buf, "verbose").logLevel; got != "info" {
		t.Errorf("invalid level should fall back to info, got %q", got)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	levels := []string{"trace", "debug", "info", "warn", "error"}

	for i, configured := range levels {
		for j, message := range levels {
			buf := &bytes.Buffer{}
			logger := NewConsoleLogger(buf, configured)

			switch message {
			case "trace":
				logger.LogTrace("msg")
			case "debug":
				logger.LogDebug("msg")
			case "info":
				logger.LogInfo("msg")
			case "warn":
				logger.LogWarn("msg")
			case "error":
				logger.LogError("msg")
			}

			shouldAppear := j >= i
			if got := strings.Contains(buf.String(), "msg"); got != shouldAppear {
				t.Errorf("level %s, message %s: appeared=%v, want %v", configured, message, got, shouldAppear)
			}
		}
	}
}

func TestTimestampFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	NewConsoleLogger(buf, "info").LogInfo("hello")

	pattern := regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[INFO\] hello\n$`)
	if !pattern.MatchString(buf.String()) {
		t.Errorf("output %q does not match %s", buf.String(), pattern)
	}
}

func TestLogCellStart(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	logger.LogCellStart(easyTwo, "/data/EasyMap/TwoAgents", 3)

	want := "[INFO] Analyzing Easy Complexity / Two Agents: 3 files in /data/EasyMap/TwoAgents"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("output %q missing %q", buf.String(), want)
	}
	if _, ok := logger.progress[easyTwo]; !ok {
		t.Error("expected progress tracking for the cell")
	}

	logger.LogCellStart(behavioral.Cell{Complexity: "HardMap", AgentBucket: "FiveAgents"}, "/data/HardMap/FiveAgents", 0)
	if len(logger.progress) != 1 {
		t.Errorf("empty cell should not be tracked, have %d", len(logger.progress))
	}
}

func TestLogRunExtracted(t *testing.T) {
	run := &behavioral.RunMetrics{
		FilePath:            "/data/EasyMap/TwoAgents/run1.json",
		TotalSteps:          12,
		SimulationCompleted: true,
		TotalRescues:        2,
		UniqueRoomsCount:    4,
		TotalCommunications: 1,
	}

	tests := []struct {
		name     string
		level    string
		cached   bool
		want     string
		wantNone bool
	}{
		{name: "debug shows run", level: "debug", want: "[DEBUG] Analyzing: /data/EasyMap/TwoAgents/run1.json (steps: 12, rescues: 2, rooms: 4, comms: 1)\n"},
		{name: "cached suffix", level: "debug", cached: true, want: "(steps: 12, rescues: 2, rooms: 4, comms: 1) [cached]\n"},
		{name: "info hides run", level: "info", wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			NewConsoleLogger(buf, tt.level).LogRunExtracted(easyTwo, run, tt.cached)

			if tt.wantNone {
				if buf.Len() != 0 {
					t.Errorf("expected no output, got %q", buf.String())
				}
				return
			}
			if !strings.HasSuffix(buf.String(), tt.want) {
				t.Errorf("output %q, want suffix %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLogRunFailed(t *testing.T) {
	buf := &bytes.Buffer{}
	NewConsoleLogger(buf, "warn").LogRunFailed(easyTwo, "/data/bad.json", errors.New("error reading run log: token too long"))

	want := "[WARN] Error processing file /data/bad.json: error reading run log: token too long"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("output %q missing %q", buf.String(), want)
	}
}

func TestCellProgressCompletion(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	logger.LogCellStart(easyTwo, "/data/EasyMap/TwoAgents", 2)
	logger.LogRunExtracted(easyTwo, &behavioral.RunMetrics{FilePath: "a.json"}, false)
	if strings.Contains(buf.String(), "2/2") {
		t.Fatalf("completion logged early: %q", buf.String())
	}

	logger.LogRunFailed(easyTwo, "b.json", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	want := "[INFO] Easy Complexity / Two Agents [==========] 2/2 (100%), 1 failed"
	if !strings.HasSuffix(last, want) {
		t.Errorf("last line = %q, want suffix %q", last, want)
	}
	if len(logger.progress) != 0 {
		t.Error("finished cell should no longer be tracked")
	}
}

func TestCellProgressTrace(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "trace")

	logger.LogCellStart(easyTwo, "/d", 2)
	logger.LogRunExtracted(easyTwo, &behavioral.RunMetrics{FilePath: "a.json"}, false)

	if !strings.Contains(buf.String(), "[TRACE] Easy Complexity / Two Agents [=====     ] 1/2 (50%)") {
		t.Errorf("expected partial progress at trace level, got %q", buf.String())
	}
}

func TestLogSweepComplete(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	result := &behavioral.SweepResult{
		Root:         "/data",
		RootFound:    true,
		Cells:        []behavioral.CellRuns{{Cell: easyTwo, Runs: []*behavioral.RunMetrics{{}, {}}}},
		FilesScanned: 3,
		FilesFailed:  1,
		BytesScanned: 2000,
		StartedAt:    start,
		FinishedAt:   start.Add(250 * time.Millisecond),
	}

	buf := &bytes.Buffer{}
	NewConsoleLogger(buf, "info").LogSweepComplete(result)
	output := buf.String()

	for _, want := range []string{
		"=== Sweep Summary ===",
		"2 runs in 1 cells, 3 files scanned (2.0 kB), 1 failed, took 250ms",
		"Failed files: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}

	buf.Reset()
	NewConsoleLogger(buf, "warn").LogSweepComplete(result)
	if buf.Len() != 0 {
		t.Errorf("summary should be filtered at warn level, got %q", buf.String())
	}
}

func TestNilWriter(t *testing.T) {
	logger := NewConsoleLogger(nil, "trace")

	logger.LogInfo("ignored")
	logger.LogCellStart(easyTwo, "/d", 1)
	logger.LogRunExtracted(easyTwo, &behavioral.RunMetrics{}, false)
	logger.LogRunFailed(easyTwo, "x", errors.New("x"))
	logger.LogSweepComplete(&behavioral.SweepResult{})
}

func TestConcurrentLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")
	logger.LogCellStart(easyTwo, "/d", 20)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.LogRunExtracted(easyTwo, &behavioral.RunMetrics{FilePath: "run.json"}, false)
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "Analyzing: run.json"); got != 20 {
		t.Errorf("got %d run lines, want 20", got)
	}
	if !strings.Contains(buf.String(), "20/20 (100%)") {
		t.Errorf("missing completion line: %q", buf.String())
	}
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()

	logger.LogCellStart(easyTwo, "/d", 1)
	logger.LogRunExtracted(easyTwo, &behavioral.RunMetrics{}, true)
	logger.LogRunFailed(easyTwo, "x", errors.New("x"))
	logger.LogSweepComplete(nil)
	logger.LogWarn("x")
}
