package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// EventType names a structured progress event.
type EventType string

const (
	EventIterationStarted   EventType = "iteration_started"
	EventIterationCompleted EventType = "iteration_completed"
	EventAgentSelected      EventType = "agent_selected"
	EventAgentFallback      EventType = "agent_fallback_attempted"
	EventDispatchCompleted  EventType = "dispatch_completed"
	EventCacheHit           EventType = "cache_hit"
	EventExtractionSkipped  EventType = "extraction_skipped"
	EventLoopTerminated     EventType = "loop_terminated"
)

// Event is one structured progress record. Fields are populated per
// event type; zero values are omitted from JSON output.
type Event struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	RunID     string    `json:"run_id,omitempty"`
	Iteration int       `json:"iteration,omitempty"`
	// Iteration bookkeeping.
	IssueCount int           `json:"issue_count,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	// Dispatch bookkeeping.
	Fingerprint string  `json:"issue_fingerprint,omitempty"`
	Agent       string  `json:"agent_name,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Tier        int     `json:"tier,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Success     bool    `json:"success,omitempty"`
	Check       string  `json:"check,omitempty"`
	// Termination bookkeeping.
	State            string  `json:"state,omitempty"`
	TotalIterations  int     `json:"total_iterations,omitempty"`
	ReductionPercent float64 `json:"reduction_percent,omitempty"`
	Detail           string  `json:"detail,omitempty"`
}

// Sink receives events. Sinks are advisory: the loop's correctness never
// depends on one being present, and Emit must not block for long.
type Sink interface {
	Emit(e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// WriterSink writes one JSON line per event. Safe for concurrent use.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, string(data))
}

// MultiSink fans events out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// WithRunID wraps a sink so events without a run ID get tagged with one.
// Emitters below the loop (the dispatch engine) do not know the run.
func WithRunID(s Sink, runID string) Sink {
	return runIDSink{inner: s, runID: runID}
}

type runIDSink struct {
	inner Sink
	runID string
}

func (s runIDSink) Emit(e Event) {
	if e.RunID == "" {
		e.RunID = s.runID
	}
	s.inner.Emit(e)
}

// Stamp fills in the event time if unset and returns the event. Helper
// for emitters that build events inline.
func Stamp(e Event) Event {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	return e
}
