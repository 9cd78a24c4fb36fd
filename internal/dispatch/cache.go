package dispatch

import (
	"sync"

	"github.com/lucasnoah/fixfactory/internal/issue"
)

// Entry is a memoized dispatch decision: which agent fixed a fingerprint
// and what it returned.
type Entry struct {
	Agent  string          `json:"agent"`
	Result issue.FixResult `json:"result"`
}

// Cache memoizes accepted fix decisions by issue fingerprint. Entries
// never expire within a run; the map is bounded by the number of
// distinct issues seen. Safe for concurrent lookup and insert.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Lookup returns the cached entry for a fingerprint, if any.
func (c *Cache) Lookup(fingerprint string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fingerprint]
	return e, ok
}

// Insert stores a decision. The engine only inserts high-confidence
// successes; the cache itself does not police that.
func (c *Cache) Insert(fingerprint string, agentName string, result issue.FixResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = Entry{Agent: agentName, Result: result}
}

// Len returns the number of cached decisions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
