package treestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"
)

type jqCompiledQuery struct {
	code     *gojq.Code
	original string
}

// Execute runs the compiled program against input and collapses the result
// stream: nil for no results, the single value for one, a slice otherwise.
func (c *jqCompiledQuery) Execute(ctx context.Context, input any) (any, error) {
	iter := c.code.RunWithContext(ctx, input)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, err
		}
		results = append(results, v)
	}

	if len(results) == 0 {
		return nil, nil
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// jqQueryCache keeps compiled jq programs keyed by expression. Compilation is
// the expensive part of a jq query; repeated API calls with the same
// expression hit the cache.
type jqQueryCache struct {
	mu      sync.RWMutex
	queries map[string]*jqCompiledQuery
	maxSize int
}

func newJQQueryCache(maxSize int) *jqQueryCache {
	return &jqQueryCache{
		queries: make(map[string]*jqCompiledQuery),
		maxSize: maxSize,
	}
}

func (c *jqQueryCache) get(expr string) (*jqCompiledQuery, error) {
	c.mu.RLock()
	if q, ok := c.queries[expr]; ok {
		c.mu.RUnlock()
		return q, nil
	}
	c.mu.RUnlock()

	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing jq expression: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("compiling jq expression: %w", err)
	}

	q := &jqCompiledQuery{code: code, original: expr}

	c.mu.Lock()
	if len(c.queries) >= c.maxSize {
		// Full cache: evict everything rather than track recency. Expression
		// churn is rare enough that recompiling a handful is cheaper than
		// bookkeeping.
		c.queries = make(map[string]*jqCompiledQuery)
	}
	c.queries[expr] = q
	c.mu.Unlock()

	return q, nil
}

// QueryJQ runs a jq expression over the level-order list of flattened node
// representations. The expression sees an array of objects shaped like the
// API node representation: {id, value, left, right, parent}.
func (s *Store) QueryJQ(ctx context.Context, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("jq expression cannot be empty")
	}

	compiled, err := s.jqCache.get(expr)
	if err != nil {
		return nil, err
	}

	views := s.Views()

	// Round-trip through JSON so gojq sees plain maps and numbers.
	raw, err := json.Marshal(views)
	if err != nil {
		return nil, fmt.Errorf("encoding nodes: %w", err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decoding nodes: %w", err)
	}

	return compiled.Execute(ctx, input)
}
