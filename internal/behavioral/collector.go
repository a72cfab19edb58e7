package behavioral

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

// Logger receives sweep progress from the Collector.
// Implementations must be safe for concurrent use when Workers > 1.
type Logger interface {
	LogCellStart(cell Cell, dir string, files int)
	LogRunExtracted(cell Cell, run *RunMetrics, cached bool)
	LogRunFailed(cell Cell, path string, err error)
	LogSweepComplete(result *SweepResult)
	LogWarn(message string)
}

// SnapshotCache returns a previously extracted snapshot for an unchanged file.
// A miss reports false with a nil error.
type SnapshotCache interface {
	Lookup(ctx context.Context, path string, size int64, modTime time.Time) (*RunMetrics, bool, error)
}

// CollectorOptions configures a Collector
type CollectorOptions struct {
	Grid       Grid
	Extensions []string
	// Workers bounds concurrent file scans; values below 2 scan sequentially
	Workers int
	Extract ExtractOptions
	// Cache enables incremental sweeps when set
	Cache  SnapshotCache
	Logger Logger
}

// SweepResult is everything one collection pass produced
type SweepResult struct {
	Root         string     `json:"root"`
	RootFound    bool       `json:"root_found"`
	Cells        []CellRuns `json:"cells"` // grid order, only cells whose directory exists
	Files        []RunFile  `json:"-"`     // every enumerated file, in scan order
	FilesScanned int        `json:"files_scanned"`
	FilesCached  int        `json:"files_cached"`
	FilesFailed  int        `json:"files_failed"`
	BytesScanned int64      `json:"bytes_scanned"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
}

// Duration returns how long the sweep took
func (sr *SweepResult) Duration() time.Duration {
	return sr.FinishedAt.Sub(sr.StartedAt)
}

// TotalRuns counts snapshots across all cells
func (sr *SweepResult) TotalRuns() int {
	total := 0
	for _, c := range sr.Cells {
		total += len(c.Runs)
	}
	return total
}

// Collector walks the experiment grid and extracts one snapshot per run log
type Collector struct {
	opts CollectorOptions
}

// NewCollector creates a collector; a zero Grid uses DefaultGrid
func NewCollector(opts CollectorOptions) *Collector {
	if len(opts.Grid.ComplexityLevels) == 0 && len(opts.Grid.AgentBuckets) == 0 {
		opts.Grid = DefaultGrid()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultRunExtensions
	}
	return &Collector{opts: opts}
}

// fileOutcome is the result slot for one run file
type fileOutcome struct {
	run    *RunMetrics
	cached bool
	err    error
}

// Collect sweeps every grid cell under root.
// A missing root is reported through the logger and yields an empty result.
// Per-file failures never abort the sweep; only context cancellation does.
func (c *Collector) Collect(ctx context.Context, root string) (*SweepResult, error) {
	result := &SweepResult{
		Root:      root,
		Cells:     make([]CellRuns, 0),
		StartedAt: time.Now(),
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		c.warn(fmt.Sprintf("root directory not found: %s", root))
		result.FinishedAt = time.Now()
		c.sweepComplete(result)
		return result, nil
	}
	result.RootFound = true

	for _, cell := range c.opts.Grid.Cells() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sweep cancelled: %w", err)
		}

		dir := CellDir(root, cell)
		scan, found, err := DiscoverRunFiles(dir, c.opts.Extensions)
		if err != nil {
			c.warn(fmt.Sprintf("skipping %s: %v", cell, err))
			continue
		}
		if !found {
			continue
		}
		for _, scanErr := range scan.Warnings {
			c.warn(scanErr.Error())
		}
		files := scan.Files
		result.BytesScanned += scan.Bytes

		if c.opts.Logger != nil {
			c.opts.Logger.LogCellStart(cell, dir, len(files))
		}

		outcomes, err := c.processFiles(ctx, cell, files)
		if err != nil {
			return nil, err
		}

		cellRuns := CellRuns{
			Cell: cell,
			Dir:  dir,
			Runs: make([]*RunMetrics, 0, len(files)),
		}
		for i, out := range outcomes {
			result.FilesScanned++
			if out.err != nil {
				result.FilesFailed++
				cellRuns.Failures = append(cellRuns.Failures, FileFailure{
					FilePath: files[i].Path,
					Error:    out.err.Error(),
				})
				continue
			}
			if out.cached {
				result.FilesCached++
			}
			cellRuns.Runs = append(cellRuns.Runs, out.run)
		}
		result.Files = append(result.Files, files...)
		result.Cells = append(result.Cells, cellRuns)
	}

	result.FinishedAt = time.Now()
	c.sweepComplete(result)
	return result, nil
}

// processFiles extracts every file of a cell. Outcomes are index-aligned with
// files regardless of the worker count.
func (c *Collector) processFiles(ctx context.Context, cell Cell, files []RunFile) ([]fileOutcome, error) {
	outcomes := make([]fileOutcome, len(files))

	if c.opts.Workers < 2 {
		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("sweep cancelled: %w", err)
			}
			outcomes[i] = c.processFile(ctx, cell, f)
		}
		return outcomes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = c.processFile(gctx, cell, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep cancelled: %w", err)
	}
	return outcomes, nil
}

func (c *Collector) processFile(ctx context.Context, cell Cell, f RunFile) fileOutcome {
	if c.opts.Cache != nil {
		cached, ok, err := c.opts.Cache.Lookup(ctx, f.Path, f.Size, f.ModTime)
		if err != nil {
			c.warn(fmt.Sprintf("snapshot cache lookup failed for %s: %v", f.Path, err))
		} else if ok {
			tagRun(cached, f.Path, cell)
			if c.opts.Logger != nil {
				c.opts.Logger.LogRunExtracted(cell, cached, true)
			}
			return fileOutcome{run: cached, cached: true}
		}
	}

	run, err := ExtractFile(f.Path, c.opts.Extract)
	if err != nil {
		if c.opts.Logger != nil {
			c.opts.Logger.LogRunFailed(cell, f.Path, err)
		}
		return fileOutcome{err: err}
	}

	tagRun(run, f.Path, cell)
	if c.opts.Logger != nil {
		c.opts.Logger.LogRunExtracted(cell, run, false)
	}
	return fileOutcome{run: run}
}

// tagRun stamps the collector fields onto a snapshot
func tagRun(run *RunMetrics, path string, cell Cell) {
	run.FilePath = path
	run.Complexity = cell.ComplexityLabel()
	run.AgentCount = cell.AgentCountLabel()
	run.NumAgents = len(run.AgentSteps)
}

func (c *Collector) warn(message string) {
	if c.opts.Logger != nil {
		c.opts.Logger.LogWarn(message)
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: %s\n", message)
}

func (c *Collector) sweepComplete(result *SweepResult) {
	if c.opts.Logger != nil {
		c.opts.Logger.LogSweepComplete(result)
	}
}
