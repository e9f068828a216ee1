package expression

import (
	"sync"

	"github.com/Knetic/govaluate"
)

// defaultCacheSize bounds the compiled-expression cache. Rule sets are small
// (tens of rules), so the bound only matters when rules churn on hot reload.
const defaultCacheSize = 256

// compiledCache is a bounded FIFO cache of compiled expressions. Eviction
// order does not matter much here; the cache exists to make the steady state
// (same rule set evaluated on every update) free of recompilation.
type compiledCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*govaluate.EvaluableExpression
	order   []string
}

func newCompiledCache(max int) *compiledCache {
	if max < 1 {
		max = 1
	}
	return &compiledCache{
		max:     max,
		entries: make(map[string]*govaluate.EvaluableExpression, max),
	}
}

func (c *compiledCache) get(expr string) (*govaluate.EvaluableExpression, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	compiled, ok := c.entries[expr]
	return compiled, ok
}

func (c *compiledCache) set(expr string, compiled *govaluate.EvaluableExpression) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[expr]; ok {
		return
	}

	for len(c.entries) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[expr] = compiled
	c.order = append(c.order, expr)
}

func (c *compiledCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
