package plan

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

const DefaultCacheSize = 1024

type cacheKey struct {
	operationType OperationType
	signature     uint64
}

// Cache memoizes plans by the signature of the selection they were planned for.
// Cached plans are shared between requests and must be treated as read-only.
type Cache struct {
	registry *registry.Registry
	plans    *lru.Cache
}

func NewCache(size int, reg *registry.Registry) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	plans, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		registry: reg,
		plans:    plans,
	}, nil
}

// Plan returns a cached plan or plans and caches it. Planning errors are not cached.
func (c *Cache) Plan(operationType OperationType, root []*selection.FieldSelection) (*QueryPlan, error) {
	key := cacheKey{
		operationType: operationType,
		signature:     selection.Signature(root),
	}
	if cached, ok := c.plans.Get(key); ok {
		return cached.(*QueryPlan), nil
	}
	queryPlan, err := PlanOperation(operationType, root, c.registry)
	if err != nil {
		return nil, err
	}
	c.plans.Add(key, queryPlan)
	return queryPlan, nil
}

func (c *Cache) Len() int {
	return c.plans.Len()
}
