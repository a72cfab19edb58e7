package behavioral

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/rescuelens/internal/fileutil"
)

// Default experiment grid directory names
var (
	DefaultComplexityLevels = []string{"EasyMap", "MediumMap", "HardMap"}
	DefaultAgentBuckets     = []string{"TwoAgents", "ThreeAgents", "FourAgents", "FiveAgents"}
	DefaultRunExtensions    = []string{".json", ".jsonl"}
)

// Grid is the (complexity level x agent-count bucket) experiment layout.
// Run logs for a cell live in <root>/<complexity>/<bucket>/.
type Grid struct {
	ComplexityLevels []string `json:"complexity_levels" yaml:"complexity_levels"`
	AgentBuckets     []string `json:"agent_buckets" yaml:"agent_buckets"`
}

// DefaultGrid returns the 3x4 grid used by the stress-test sweeps
func DefaultGrid() Grid {
	return Grid{
		ComplexityLevels: append([]string(nil), DefaultComplexityLevels...),
		AgentBuckets:     append([]string(nil), DefaultAgentBuckets...),
	}
}

// Cells returns every cell in grid order: complexity-major, bucket-minor
func (g Grid) Cells() []Cell {
	cells := make([]Cell, 0, len(g.ComplexityLevels)*len(g.AgentBuckets))
	for _, complexity := range g.ComplexityLevels {
		for _, bucket := range g.AgentBuckets {
			cells = append(cells, Cell{Complexity: complexity, AgentBucket: bucket})
		}
	}
	return cells
}

// Validate checks that the grid has at least one cell and no duplicate names
func (g Grid) Validate() error {
	if len(g.ComplexityLevels) == 0 {
		return fmt.Errorf("grid has no complexity levels")
	}
	if len(g.AgentBuckets) == 0 {
		return fmt.Errorf("grid has no agent buckets")
	}
	if err := checkNames("complexity level", g.ComplexityLevels); err != nil {
		return err
	}
	return checkNames("agent bucket", g.AgentBuckets)
}

func checkNames(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s name cannot be empty", kind)
		}
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%s %q must be a single directory name", kind, name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate %s %q", kind, name)
		}
		seen[name] = true
	}
	return nil
}

// CellDir returns the directory holding a cell's run logs
func CellDir(root string, cell Cell) string {
	return filepath.Join(root, cell.Complexity, cell.AgentBucket)
}

// ComplexityDisplayName turns "EasyMap" into "Easy Complexity"
func ComplexityDisplayName(level string) string {
	return strings.Replace(level, "Map", " Complexity", 1)
}

// AgentBucketDisplayName turns "TwoAgents" into "Two Agents"
func AgentBucketDisplayName(bucket string) string {
	return strings.Replace(bucket, "Agents", " Agents", 1)
}

// RunFile is a run log located inside a cell directory
type RunFile = fileutil.FileEntry

// CellScan is what DiscoverRunFiles found in one cell directory
type CellScan struct {
	Files []RunFile
	// Bytes is the combined size of Files at scan time
	Bytes int64
	// Warnings are entries that could not be read; the scan continued past them
	Warnings []error
}

// DiscoverRunFiles lists the run logs directly inside a cell directory.
// Returns found=false without error when the directory does not exist.
// Subdirectories and hidden files are ignored; extensions default to
// DefaultRunExtensions.
func DiscoverRunFiles(dir string, extensions []string) (scan *CellScan, found bool, err error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to access cell directory: %w", err)
	}
	if !info.IsDir() {
		return nil, false, nil
	}

	if len(extensions) == 0 {
		extensions = DefaultRunExtensions
	}

	result, err := fileutil.ScanDirectory(dir, fileutil.ScanOptions{Extensions: extensions})
	if err != nil {
		return nil, true, fmt.Errorf("failed to scan cell directory: %w", err)
	}

	return &CellScan{
		Files:    result.Files,
		Bytes:    result.TotalSize(),
		Warnings: result.Errors,
	}, true, nil
}
