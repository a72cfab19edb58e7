// Package behavioral extracts behavioural metrics from multi-agent rescue
// simulation logs and aggregates them across an experiment grid.
//
// A run log is JSON Lines: one loosely typed record per line. Records are
// decoded per field with explicit defaults, so missing or oddly shaped fields
// degrade to zero values instead of failing the run:
//
//	Record ──ParseRecord──> Extractor.Observe ──Finish──> *RunMetrics
//
// The Collector enumerates <root>/<complexity>/<bucket>/ for every cell of a
// Grid, extracts one snapshot per file and groups them into CellRuns.
// Aggregate reduces each non-empty cell to an AggregateRow holding the mean
// and population standard deviation of every tracked metric, and the
// exporters serialize rows as CSV, JSON, Markdown or HTML.
//
// Example usage:
//
//	collector := behavioral.NewCollector(behavioral.CollectorOptions{
//	    Grid:    behavioral.DefaultGrid(),
//	    Workers: 4,
//	})
//	sweep, err := collector.Collect(ctx, "results/Stree_Simulation")
//	if err != nil {
//	    return err
//	}
//	rows := behavioral.Aggregate(sweep.Cells, nil)
//	err = behavioral.ExportToFile(rows, "detailed_results.csv", "csv")
package behavioral
