package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestWriterSink_EmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	sink.Emit(Stamp(Event{Type: EventIterationStarted, Iteration: 0, IssueCount: 12}))
	sink.Emit(Stamp(Event{Type: EventAgentSelected, Agent: "format", Confidence: 0.8, Tier: 1}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var e Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("line 0 is not JSON: %v", err)
	}
	if e.Type != EventIterationStarted || e.IssueCount != 12 {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.Time.IsZero() {
		t.Errorf("Stamp should set the event time")
	}
}

func TestWriterSink_ConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Emit(Event{Type: EventCacheHit, Fingerprint: "abc"})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 intact lines, got %d", len(lines))
	}
	for _, line := range lines {
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("interleaved write produced bad JSON: %v", err)
		}
	}
}

func TestMultiSink_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := MultiSink{NewWriterSink(&a), NewWriterSink(&b)}
	m.Emit(Event{Type: EventLoopTerminated, State: "converged"})

	if a.Len() == 0 || b.Len() == 0 {
		t.Errorf("expected both sinks to receive the event")
	}
}
