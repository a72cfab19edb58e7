package behavioral

import (
	"math"
)

// MissingPolicy decides how a run without a value for a metric is treated
type MissingPolicy int

const (
	// AlwaysPresent metrics are defined for every run
	AlwaysPresent MissingPolicy = iota
	// MissingAsZero counts an absent value as 0
	MissingAsZero
	// MissingExcluded leaves the run out of that metric's mean and std
	MissingExcluded
)

// MetricSpec names a tracked metric and how to read it from a snapshot
type MetricSpec struct {
	Name    string
	Value   func(*RunMetrics) (float64, bool)
	Missing MissingPolicy
}

// Tracked metric names, in export column order
const (
	MetricTotalSteps                    = "total_steps"
	MetricTotalRescues                  = "total_rescues"
	MetricUniqueRooms                   = "unique_rooms"
	MetricSimulationTime                = "simulation_time"
	MetricTotalCommunications           = "total_communications"
	MetricCommunicationAttemptsPerAgent = "communication_attempts_per_agent"
	MetricAgentActions                  = "agent_actions"
	MetricCommunicationAttempts         = "communication_attempts"
	MetricCommunicationSuccesses        = "communication_successes"
	MetricCommunicationFailures         = "communication_failures"
	MetricNumAgents                     = "num_agents"
	MetricCommunicationSuccessRate      = "communication_success_rate"
)

func present(v float64) (float64, bool) { return v, true }

func optional(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// DefaultMetrics returns the tracked metrics in column order
func DefaultMetrics() []MetricSpec {
	return []MetricSpec{
		{Name: MetricTotalSteps, Value: func(r *RunMetrics) (float64, bool) { return present(r.TotalSteps) }},
		{Name: MetricTotalRescues, Value: func(r *RunMetrics) (float64, bool) { return present(float64(r.TotalRescues)) }},
		{Name: MetricUniqueRooms, Value: func(r *RunMetrics) (float64, bool) { return present(float64(r.UniqueRoomsCount)) }},
		{Name: MetricSimulationTime, Value: func(r *RunMetrics) (float64, bool) { return present(r.FinalTime) }},
		{Name: MetricTotalCommunications, Value: func(r *RunMetrics) (float64, bool) { return present(float64(r.TotalCommunications)) }},
		{
			Name:    MetricCommunicationAttemptsPerAgent,
			Value:   func(r *RunMetrics) (float64, bool) { return optional(r.CommunicationAttemptsPerAgent) },
			Missing: MissingAsZero,
		},
		{Name: MetricAgentActions, Value: func(r *RunMetrics) (float64, bool) { return present(float64(r.AgentActions)) }},
		{Name: MetricCommunicationAttempts, Value: func(r *RunMetrics) (float64, bool) { return present(float64(r.CommunicationAttempts)) }},
		{Name: MetricCommunicationSuccesses, Value: func(r *RunMetrics) (float64, bool) { return present(float64(r.CommunicationSuccesses)) }},
		{Name: MetricCommunicationFailures, Value: func(r *RunMetrics) (float64, bool) { return present(float64(r.CommunicationFailures)) }},
		{Name: MetricNumAgents, Value: func(r *RunMetrics) (float64, bool) { return present(float64(r.NumAgents)) }},
		{
			Name:    MetricCommunicationSuccessRate,
			Value:   func(r *RunMetrics) (float64, bool) { return optional(r.CommunicationSuccessRate) },
			Missing: MissingExcluded,
		},
	}
}

// Aggregate builds one row per cell with at least one run, preserving cell order.
// Nil metrics uses DefaultMetrics.
func Aggregate(cells []CellRuns, metrics []MetricSpec) []AggregateRow {
	if metrics == nil {
		metrics = DefaultMetrics()
	}

	rows := make([]AggregateRow, 0, len(cells))
	for _, cell := range cells {
		if len(cell.Runs) == 0 {
			continue
		}
		rows = append(rows, AggregateCell(cell.Cell, cell.Runs, metrics))
	}
	return rows
}

// AggregateCell computes the statistics of every metric over one cell's runs
func AggregateCell(cell Cell, runs []*RunMetrics, metrics []MetricSpec) AggregateRow {
	row := AggregateRow{
		Complexity: cell.ComplexityLabel(),
		AgentCount: cell.AgentCountLabel(),
		NumRuns:    len(runs),
		Metrics:    make([]MetricStat, 0, len(metrics)),
	}

	for _, spec := range metrics {
		values := make([]float64, 0, len(runs))
		for _, run := range runs {
			v, ok := spec.Value(run)
			if !ok {
				switch spec.Missing {
				case MissingExcluded:
					continue
				default:
					v = 0
				}
			}
			values = append(values, v)
		}

		mean, std := MeanStd(values)
		row.Metrics = append(row.Metrics, MetricStat{
			Name:    spec.Name,
			Mean:    mean,
			StdDev:  std,
			Samples: len(values),
		})
	}
	return row
}

// MeanStd returns the mean and population standard deviation (divide by N).
// An empty input yields 0, 0.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	n := float64(len(values))
	mean = sum / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}
