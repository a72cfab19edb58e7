package behavioral

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
)

// DefaultMaxLineBytes is the longest log line the extractor accepts
const DefaultMaxLineBytes = 10 * 1024 * 1024

// ExtractOptions tunes how a run log is scanned
type ExtractOptions struct {
	// MaxLineBytes caps a single line; longer lines fail the whole file.
	// Zero uses DefaultMaxLineBytes.
	MaxLineBytes int
}

// Extractor accumulates metrics over the records of one run.
// It is not safe for concurrent use and must not be reused across runs.
type Extractor struct {
	metrics *RunMetrics
	rooms   map[string]struct{}
}

// NewExtractor returns an extractor with every counter at zero
func NewExtractor() *Extractor {
	return &Extractor{
		metrics: &RunMetrics{
			UniqueRoomsVisited:  []string{},
			AgentSteps:          make(map[string]int),
			AgentVisits:         make(map[string]map[string]int),
			CommunicationEvents: []CommunicationEvent{},
			AgentInteractions:   make(map[string]int),
		},
		rooms: make(map[string]struct{}),
	}
}

// Observe applies every tracking rule to a single record
func (e *Extractor) Observe(rec Record) {
	if rec == nil {
		return
	}
	e.trackTime(rec)
	e.trackWorldState(rec)
	e.trackAction(rec)
	e.trackMovement(rec)
	e.trackCommunication(rec)
	e.trackCommunicationOutcome(rec)
}

func (e *Extractor) trackTime(rec Record) {
	t, ok := rec.Time()
	if !ok || t <= 0 {
		return
	}
	if t > e.metrics.FinalTime {
		e.metrics.FinalTime = t
	}
	e.metrics.TotalSteps = e.metrics.FinalTime
	e.metrics.SimulationCompleted = true
}

func (e *Extractor) trackWorldState(rec Record) {
	ws, ok := rec.WorldState()
	if !ok {
		return
	}
	if ws.HasTotalRescues {
		e.metrics.TotalRescues = ws.TotalRescues
	}
	for _, room := range ws.Rooms {
		e.rooms[room] = struct{}{}
	}
}

func (e *Extractor) trackAction(rec Record) {
	if !rec.Has(fieldAgent) || !rec.Has(fieldCommand) {
		return
	}
	e.metrics.AgentSteps[rec.AgentName()]++
	e.metrics.AgentActions++
}

func (e *Extractor) trackMovement(rec Record) {
	if !rec.Has(fieldParsedResponse) || !rec.Has(fieldAgent) {
		return
	}
	loc, ok := MoveDestination(rec.ParsedResponse())
	if !ok {
		return
	}

	agent := rec.AgentName()
	visits, exists := e.metrics.AgentVisits[agent]
	if !exists {
		visits = make(map[string]int)
		e.metrics.AgentVisits[agent] = visits
	}
	visits[loc]++
}

func (e *Extractor) trackCommunication(rec Record) {
	if !rec.Has(fieldParsedResponse) {
		return
	}
	response := rec.ParsedResponse()
	targets, ok := CommunicateTargets(response)
	if !ok {
		return
	}

	e.metrics.CommunicationAttempts++
	e.metrics.TotalCommunications++

	t, _ := rec.Time()
	e.metrics.CommunicationEvents = append(e.metrics.CommunicationEvents, CommunicationEvent{
		Time:    t,
		Agent:   rec[fieldAgent],
		Targets: response["communicate"],
	})

	initiator := rec.AgentRole()
	for _, target := range targets {
		e.metrics.AgentInteractions[initiator+"->"+target]++
	}
}

func (e *Extractor) trackCommunicationOutcome(rec Record) {
	ar, ok := rec.ActionResult()
	if !ok || !ar.IsCommunication() {
		return
	}
	if ar.Success {
		e.metrics.CommunicationSuccesses++
	} else {
		e.metrics.CommunicationFailures++
	}
}

// Finish derives the post-scan fields and returns the snapshot.
// Rooms are materialized in sorted order; ratios are set only when their
// denominator is non-zero.
func (e *Extractor) Finish() *RunMetrics {
	m := e.metrics

	rooms := make([]string, 0, len(e.rooms))
	for room := range e.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	m.UniqueRoomsVisited = rooms
	m.UniqueRoomsCount = len(rooms)

	m.CommunicationSuccessRate = nil
	if m.CommunicationAttempts > 0 {
		m.CommunicationSuccessRate = ratio(m.CommunicationSuccesses, m.CommunicationAttempts)
	}

	m.CommunicationAttemptsPerAgent = nil
	m.CommunicationSuccessesPerAgent = nil
	m.CommunicationFailuresPerAgent = nil
	m.TotalCommunicationsPerAgent = nil
	if agents := len(m.AgentSteps); agents > 0 {
		m.CommunicationAttemptsPerAgent = ratio(m.CommunicationAttempts, agents)
		m.CommunicationSuccessesPerAgent = ratio(m.CommunicationSuccesses, agents)
		m.CommunicationFailuresPerAgent = ratio(m.CommunicationFailures, agents)
		m.TotalCommunicationsPerAgent = ratio(m.TotalCommunications, agents)
	}
	m.NumAgents = len(m.AgentSteps)

	return m
}

func ratio(num, denom int) *float64 {
	v := float64(num) / float64(denom)
	return &v
}

// ExtractReader scans a run log to EOF and returns its snapshot.
// Malformed lines are skipped; only read errors fail the scan.
func ExtractReader(r io.Reader, opts ExtractOptions) (*RunMetrics, error) {
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}

	// The scanner honours the larger of max and cap(buf)
	initial := 64 * 1024
	if maxLine < initial {
		initial = maxLine
	}
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, initial)
	scanner.Buffer(buf, maxLine)

	extractor := NewExtractor()
	for scanner.Scan() {
		rec, ok := ParseRecord(scanner.Bytes())
		if !ok {
			continue
		}
		extractor.Observe(rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading run log: %w", err)
	}

	return extractor.Finish(), nil
}

// ExtractFile opens a run log and extracts its snapshot.
// The file handle is released before returning, whether or not the scan
// succeeded. A panic during the scan is reported as an error.
func ExtractFile(path string, opts ExtractOptions) (metrics *RunMetrics, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer file.Close()

	defer func() {
		if r := recover(); r != nil {
			metrics = nil
			err = fmt.Errorf("unexpected failure scanning %s: %v", path, r)
		}
	}()

	metrics, err = ExtractReader(file, opts)
	if err != nil {
		return nil, err
	}
	metrics.FilePath = path
	return metrics, nil
}
