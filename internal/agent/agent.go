package agent

import (
	"context"
	"sort"

	"github.com/lucasnoah/fixfactory/internal/issue"
)

// Agent is a pluggable component capable of scoring and attempting to
// resolve issues of certain kinds.
type Agent interface {
	// Name uniquely identifies the agent within a registry.
	Name() string
	// Priority orders agents; lower is tried earlier. Specialists use
	// low numbers (10-50), generalist fallbacks use high ones (~100).
	Priority() int
	// SupportedKinds lists the issue kinds this agent claims.
	SupportedKinds() []issue.Kind
	// Confidence is the agent's pre-fix self-assessment in [0,1].
	Confidence(ctx context.Context, iss issue.Issue) float64
	// Fix attempts to resolve the issue. A returned error is treated by
	// the dispatcher as a failed attempt, never propagated.
	Fix(ctx context.Context, iss issue.Issue) (issue.FixResult, error)
}

// BatchFixer is optionally implemented by agents that can fix a batch of
// same-kind issues in one pass. The dispatcher works issue-at-a-time and
// does not require it.
type BatchFixer interface {
	FixBatch(ctx context.Context, issues []issue.Issue) ([]issue.FixResult, error)
}

// Registry holds the registered agents. It is built once at startup and
// read-only during dispatch, so lookups need no locking.
type Registry struct {
	agents []Agent
	byName map[string]int // name -> index in agents
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds an agent. Registering a duplicate name replaces the
// prior registration in place (last write wins), keeping the original
// registration position for tie-breaking.
func (r *Registry) Register(a Agent) {
	if i, ok := r.byName[a.Name()]; ok {
		r.agents[i] = a
		return
	}
	r.byName[a.Name()] = len(r.agents)
	r.agents = append(r.agents, a)
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.agents)
}

// SpecialistsFor returns the agents claiming the given kind, stable-sorted
// by ascending priority. Ties keep registration order.
func (r *Registry) SpecialistsFor(kind issue.Kind) []Agent {
	var out []Agent
	for _, a := range r.agents {
		if supports(a, kind) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() < out[j].Priority()
	})
	return out
}

func supports(a Agent, kind issue.Kind) bool {
	for _, k := range a.SupportedKinds() {
		if k == kind {
			return true
		}
	}
	return false
}
