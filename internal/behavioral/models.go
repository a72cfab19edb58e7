package behavioral

import (
	"errors"
	"fmt"
)

// CommunicationEvent records one communicate intent as it appeared in the log
type CommunicationEvent struct {
	Time    float64 `json:"time"`
	Agent   any     `json:"agent"`   // raw agent field
	Targets any     `json:"targets"` // raw communicate value
}

// RunMetrics is the metrics snapshot extracted from a single run log.
// Ratio fields are nil when their denominator was zero.
type RunMetrics struct {
	TotalSteps          float64                   `json:"total_steps"`
	FinalTime           float64                   `json:"final_time"`
	TotalRescues        int                       `json:"total_rescues"`
	UniqueRoomsVisited  []string                  `json:"unique_rooms_visited"`
	UniqueRoomsCount    int                       `json:"unique_rooms_count"`
	AgentSteps          map[string]int            `json:"agent_steps"`
	AgentVisits         map[string]map[string]int `json:"agent_visits"`
	AgentActions        int                       `json:"agent_actions"`
	SimulationCompleted bool                      `json:"simulation_completed"`

	CommunicationEvents    []CommunicationEvent `json:"communication_events"`
	CommunicationAttempts  int                  `json:"communication_attempts"`
	CommunicationSuccesses int                  `json:"communication_successes"`
	CommunicationFailures  int                  `json:"communication_failures"`
	TotalCommunications    int                  `json:"total_communications"`
	AgentInteractions      map[string]int       `json:"agent_interactions"`

	CommunicationSuccessRate       *float64 `json:"communication_success_rate,omitempty"`
	CommunicationAttemptsPerAgent  *float64 `json:"communication_attempts_per_agent,omitempty"`
	CommunicationSuccessesPerAgent *float64 `json:"communication_successes_per_agent,omitempty"`
	CommunicationFailuresPerAgent  *float64 `json:"communication_failures_per_agent,omitempty"`
	TotalCommunicationsPerAgent    *float64 `json:"total_communications_per_agent,omitempty"`

	// Set by the collector once the run is assigned to a grid cell
	FilePath   string `json:"file_path,omitempty"`
	Complexity string `json:"complexity,omitempty"`
	AgentCount string `json:"agent_count,omitempty"`
	NumAgents  int    `json:"num_agents"`
}

// Validate checks the snapshot's internal consistency
func (rm *RunMetrics) Validate() error {
	if rm.TotalSteps < 0 || rm.FinalTime < 0 {
		return errors.New("simulation time cannot be negative")
	}
	if rm.TotalSteps != rm.FinalTime {
		return fmt.Errorf("total steps %v does not match final time %v", rm.TotalSteps, rm.FinalTime)
	}
	if rm.UniqueRoomsCount != len(rm.UniqueRoomsVisited) {
		return fmt.Errorf("room count %d does not match %d listed rooms", rm.UniqueRoomsCount, len(rm.UniqueRoomsVisited))
	}
	if rm.CommunicationAttempts < 0 || rm.CommunicationSuccesses < 0 || rm.CommunicationFailures < 0 {
		return errors.New("communication counters cannot be negative")
	}
	return nil
}

// Cell identifies one configuration of the experiment grid
type Cell struct {
	Complexity  string `json:"complexity"`   // directory name, e.g. EasyMap
	AgentBucket string `json:"agent_bucket"` // directory name, e.g. TwoAgents
}

// ComplexityLabel returns the display name of the complexity level
func (c Cell) ComplexityLabel() string {
	return ComplexityDisplayName(c.Complexity)
}

// AgentCountLabel returns the display name of the agent-count bucket
func (c Cell) AgentCountLabel() string {
	return AgentBucketDisplayName(c.AgentBucket)
}

// String returns "Easy Complexity / Two Agents"
func (c Cell) String() string {
	return c.ComplexityLabel() + " / " + c.AgentCountLabel()
}

// FileFailure records a run file that contributed no snapshot
type FileFailure struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
}

// CellRuns holds every snapshot collected for one grid cell
type CellRuns struct {
	Cell     Cell          `json:"cell"`
	Dir      string        `json:"dir"`
	Runs     []*RunMetrics `json:"runs"`
	Failures []FileFailure `json:"failures,omitempty"`
}

// MetricStat is the mean and population standard deviation of one metric
// across a cell's runs. Samples counts the runs that contributed a value.
type MetricStat struct {
	Name    string  `json:"name"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std"`
	Samples int     `json:"samples"`
}

// Valid reports whether at least one run contributed a value
func (ms MetricStat) Valid() bool {
	return ms.Samples > 0
}

// AggregateRow summarizes one grid cell across all its runs
type AggregateRow struct {
	Complexity string       `json:"complexity"`
	AgentCount string       `json:"agent_count"`
	NumRuns    int          `json:"num_runs"`
	Metrics    []MetricStat `json:"metrics"`
}

// Stat returns the named metric statistic
func (ar *AggregateRow) Stat(name string) (MetricStat, bool) {
	for _, m := range ar.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricStat{}, false
}

// Validate checks if the aggregate row is usable for export
func (ar *AggregateRow) Validate() error {
	if ar.Complexity == "" || ar.AgentCount == "" {
		return errors.New("aggregate row requires complexity and agent count")
	}
	if ar.NumRuns <= 0 {
		return fmt.Errorf("aggregate row %s/%s has no runs", ar.Complexity, ar.AgentCount)
	}
	for _, m := range ar.Metrics {
		if m.StdDev < 0 {
			return fmt.Errorf("metric %s has negative standard deviation", m.Name)
		}
		if m.Samples > ar.NumRuns {
			return fmt.Errorf("metric %s has more samples than runs", m.Name)
		}
	}
	return nil
}
