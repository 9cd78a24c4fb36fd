package dispatch

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/singleflight"

	"github.com/lucasnoah/fixfactory/internal/agent"
	"github.com/lucasnoah/fixfactory/internal/issue"
	"github.com/lucasnoah/fixfactory/internal/telemetry"
)

// Config holds the engine's scoring thresholds.
type Config struct {
	// AcceptanceThreshold is the minimum confidence for an agent to be
	// selected. A score exactly at the threshold is accepted.
	AcceptanceThreshold float64
	// CacheThreshold is the post-fix confidence above which a successful
	// result is memoized. Strictly greater-than.
	CacheThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{AcceptanceThreshold: 0.30, CacheThreshold: 0.70}
}

// Engine selects and invokes the best agent for a single issue,
// including the fallback chain after a failed attempt.
type Engine struct {
	registry *agent.Registry
	cache    *Cache
	sink     telemetry.Sink
	cfg      Config
	sf       singleflight.Group
}

// NewEngine creates an Engine. A nil sink discards telemetry.
func NewEngine(registry *agent.Registry, cache *Cache, sink telemetry.Sink, cfg Config) *Engine {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if cfg.AcceptanceThreshold <= 0 {
		cfg.AcceptanceThreshold = 0.30
	}
	if cfg.CacheThreshold <= 0 {
		cfg.CacheThreshold = 0.70
	}
	return &Engine{registry: registry, cache: cache, sink: sink, cfg: cfg}
}

// SelectAndFix dispatches one issue. It never returns an error: agent
// faults are converted into failed FixResults so one bad agent cannot
// abort the iteration. The decision cache is consulted before any agent
// call; concurrent dispatches of the same fingerprint collapse into one.
func (e *Engine) SelectAndFix(ctx context.Context, iss issue.Issue) issue.FixResult {
	fp := iss.Fingerprint()

	if entry, ok := e.cache.Lookup(fp); ok {
		e.sink.Emit(telemetry.Stamp(telemetry.Event{
			Type: telemetry.EventCacheHit, Fingerprint: fp, Agent: entry.Agent,
		}))
		return entry.Result
	}

	v, _, _ := e.sf.Do(fp, func() (interface{}, error) {
		// Re-check under singleflight: a duplicate may have populated
		// the cache while this call waited.
		if entry, ok := e.cache.Lookup(fp); ok {
			return entry.Result, nil
		}
		return e.dispatch(ctx, iss, fp), nil
	})
	return v.(issue.FixResult)
}

// dispatch runs the tiered primary selection and, on failure, the
// strict-order fallback pass.
func (e *Engine) dispatch(ctx context.Context, iss issue.Issue, fp string) issue.FixResult {
	specialists := e.registry.SpecialistsFor(iss.Kind)
	if len(specialists) == 0 {
		return issue.FixResult{
			Success:         false,
			RemainingIssues: []string{fmt.Sprintf("no agent available for kind %s", iss.Kind)},
			Recommendations: []string{fmt.Sprintf("register an agent supporting %s issues or resolve manually", iss.Kind)},
		}
	}

	// Tiered primary pass: agents sharing a priority value form one
	// tier; the best-scoring agent of the first tier to reach the
	// acceptance threshold wins. A generalist can never outrank a
	// specialist merely by self-reporting higher confidence.
	chosen, chosenConf, tier := e.selectTiered(ctx, iss, specialists)
	if chosen == nil {
		return issue.Failure(fmt.Sprintf(
			"no agent met the minimum confidence threshold (%.2f) for kind %s",
			e.cfg.AcceptanceThreshold, iss.Kind))
	}

	e.sink.Emit(telemetry.Stamp(telemetry.Event{
		Type: telemetry.EventAgentSelected, Fingerprint: fp,
		Agent: chosen.Name(), Confidence: chosenConf, Tier: tier,
	}))

	attempts := 1
	result := e.safeFix(ctx, chosen, iss)
	if result.Success {
		e.memoize(fp, chosen.Name(), result)
		return result
	}
	recommendations := result.Recommendations

	// Fallback pass: every remaining agent supporting the kind, in
	// strict priority order, each tried at most once. The tiering is
	// deliberately dropped here: the best candidate already failed, so
	// every remaining option must get its turn.
	for _, cand := range specialists {
		if cand == chosen {
			continue
		}
		conf := e.safeConfidence(ctx, cand, iss)
		if conf < e.cfg.AcceptanceThreshold {
			continue
		}

		e.sink.Emit(telemetry.Stamp(telemetry.Event{
			Type: telemetry.EventAgentFallback, Fingerprint: fp, Agent: cand.Name(), Confidence: conf,
		}))

		attempts++
		res := e.safeFix(ctx, cand, iss)
		if res.Success {
			e.memoize(fp, cand.Name(), res)
			return res
		}
		recommendations = append(recommendations, res.Recommendations...)
	}

	return issue.FixResult{
		Success: false,
		RemainingIssues: []string{fmt.Sprintf(
			"%d agents attempted and failed for kind %s: %s", attempts, iss.Kind, iss.Message)},
		Recommendations: append(recommendations, "issue may need manual review"),
	}
}

// selectTiered walks priority tiers in ascending order and returns the
// first tier's best agent whose confidence reaches the threshold. Ties
// inside a tier break by registration order. Returns nil if no tier
// qualifies.
func (e *Engine) selectTiered(ctx context.Context, iss issue.Issue, specialists []agent.Agent) (agent.Agent, float64, int) {
	tier := 0
	for start := 0; start < len(specialists); {
		tier++
		priority := specialists[start].Priority()
		end := start
		for end < len(specialists) && specialists[end].Priority() == priority {
			end++
		}

		var best agent.Agent
		bestConf := -1.0
		for _, a := range specialists[start:end] {
			conf := e.safeConfidence(ctx, a, iss)
			if conf > bestConf {
				best = a
				bestConf = conf
			}
		}
		if bestConf >= e.cfg.AcceptanceThreshold {
			return best, bestConf, tier
		}
		start = end
	}
	return nil, 0, 0
}

// memoize caches a successful result when its post-fix confidence
// clears the cache threshold and it satisfies the model invariant.
func (e *Engine) memoize(fp string, agentName string, result issue.FixResult) {
	if result.Confidence > e.cfg.CacheThreshold && result.Consistent() {
		e.cache.Insert(fp, agentName, result)
	}
}

// safeConfidence scores an issue, converting panics and out-of-range
// values into 0 so one bad agent never aborts the dispatch.
func (e *Engine) safeConfidence(ctx context.Context, a agent.Agent, iss issue.Issue) (conf float64) {
	defer func() {
		if r := recover(); r != nil {
			conf = 0
		}
	}()
	conf = a.Confidence(ctx, iss)
	if math.IsNaN(conf) || conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// safeFix invokes an agent's Fix, converting errors and panics into a
// failed attempt.
func (e *Engine) safeFix(ctx context.Context, a agent.Agent, iss issue.Issue) (result issue.FixResult) {
	defer func() {
		if r := recover(); r != nil {
			result = issue.Failure(fmt.Sprintf("agent %q panicked: %v", a.Name(), r))
		}
	}()
	res, err := a.Fix(ctx, iss)
	if err != nil {
		return issue.Failure(fmt.Sprintf("agent %q failed: %v", a.Name(), err))
	}
	return res
}
