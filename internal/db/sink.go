package db

import (
	"github.com/lucasnoah/fixfactory/internal/telemetry"
)

// Sink persists telemetry events into the database. Insert failures are
// swallowed: history is best effort and must never abort a run.
type Sink struct {
	db *DB
}

// NewSink creates a Sink over db.
func NewSink(db *DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) Emit(e telemetry.Event) {
	switch e.Type {
	case telemetry.EventIterationStarted:
		// Logged at iteration start so terminal iterations, which never
		// complete a dispatch pass, still appear in the history.
		_ = s.db.LogIteration(e.RunID, e.Iteration, e.IssueCount, 0)
	case telemetry.EventIterationCompleted:
		_ = s.db.SetIterationDuration(e.RunID, e.Iteration, int(e.Duration.Milliseconds()))
	case telemetry.EventDispatchCompleted:
		_ = s.db.LogDispatch(e.RunID, e.Iteration, e.Fingerprint, e.Kind, e.Success)
	case telemetry.EventAgentSelected:
		_ = s.db.LogSelection(e.RunID, e.Fingerprint, e.Agent, e.Confidence, e.Tier, false, false)
	case telemetry.EventAgentFallback:
		_ = s.db.LogSelection(e.RunID, e.Fingerprint, e.Agent, e.Confidence, e.Tier, true, false)
	case telemetry.EventCacheHit:
		_ = s.db.LogSelection(e.RunID, e.Fingerprint, e.Agent, e.Confidence, e.Tier, false, true)
	case telemetry.EventLoopTerminated:
		_ = s.db.FinishRun(e.RunID, e.State, e.TotalIterations, e.ReductionPercent)
	}
}
