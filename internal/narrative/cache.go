package narrative

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/poteroapp/potero/internal/domain"
	"github.com/poteroapp/potero/internal/observability"
)

// StageCache memoizes the expensive early pipeline stages per paper so that
// generating several style and language variants pays for stages 1 and 2
// only once. Concurrent requests for the same key share a single compute via
// singleflight; errors are never cached.
type StageCache struct {
	mu         sync.Mutex
	structural map[uuid.UUID]*domain.StructuralUnderstanding
	recomposed map[uuid.UUID]*domain.RecomposedContent

	group   singleflight.Group
	metrics *observability.Metrics
}

// NewStageCache creates an empty stage cache. metrics may be nil.
func NewStageCache(metrics *observability.Metrics) *StageCache {
	return &StageCache{
		structural: make(map[uuid.UUID]*domain.StructuralUnderstanding),
		recomposed: make(map[uuid.UUID]*domain.RecomposedContent),
		metrics:    metrics,
	}
}

// GetOrComputeStructural returns the cached stage-1 result for the paper, or
// runs compute exactly once to fill it. A compute error is returned to every
// waiter and leaves the cache empty.
func (c *StageCache) GetOrComputeStructural(ctx context.Context, paperID uuid.UUID, compute func(context.Context) (*domain.StructuralUnderstanding, error)) (*domain.StructuralUnderstanding, error) {
	c.mu.Lock()
	if cached, ok := c.structural[paperID]; ok {
		c.mu.Unlock()
		c.recordHit(PurposeStructural)
		return cached, nil
	}
	c.mu.Unlock()
	c.recordMiss(PurposeStructural)

	v, err, _ := c.group.Do(cacheKey(paperID, PurposeStructural), func() (interface{}, error) {
		c.mu.Lock()
		if cached, ok := c.structural[paperID]; ok {
			c.mu.Unlock()
			return cached, nil
		}
		c.mu.Unlock()

		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.structural[paperID] = result
		c.mu.Unlock()
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.StructuralUnderstanding), nil
}

// GetOrComputeRecomposed returns the cached stage-2 result for the paper, or
// runs compute exactly once to fill it.
func (c *StageCache) GetOrComputeRecomposed(ctx context.Context, paperID uuid.UUID, compute func(context.Context) (*domain.RecomposedContent, error)) (*domain.RecomposedContent, error) {
	c.mu.Lock()
	if cached, ok := c.recomposed[paperID]; ok {
		c.mu.Unlock()
		c.recordHit(PurposeRecomposition)
		return cached, nil
	}
	c.mu.Unlock()
	c.recordMiss(PurposeRecomposition)

	v, err, _ := c.group.Do(cacheKey(paperID, PurposeRecomposition), func() (interface{}, error) {
		c.mu.Lock()
		if cached, ok := c.recomposed[paperID]; ok {
			c.mu.Unlock()
			return cached, nil
		}
		c.mu.Unlock()

		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.recomposed[paperID] = result
		c.mu.Unlock()
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.RecomposedContent), nil
}

// Invalidate drops all cached stage results for the paper. The next request
// recomputes from scratch.
func (c *StageCache) Invalidate(paperID uuid.UUID) {
	c.mu.Lock()
	delete(c.structural, paperID)
	delete(c.recomposed, paperID)
	c.mu.Unlock()
}

// Len reports the number of papers with at least one cached stage result.
func (c *StageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(c.structural))
	for id := range c.structural {
		seen[id] = struct{}{}
	}
	for id := range c.recomposed {
		seen[id] = struct{}{}
	}
	return len(seen)
}

func cacheKey(paperID uuid.UUID, stage string) string {
	return paperID.String() + "\x00" + stage
}

func (c *StageCache) recordHit(stage string) {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(stage)
	}
}

func (c *StageCache) recordMiss(stage string) {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(stage)
	}
}
