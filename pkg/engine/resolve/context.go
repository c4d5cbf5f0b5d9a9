package resolve

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wundergraph/astjson"
	"github.com/wundergraph/go-arena"
	"go.uber.org/atomic"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
)

// ExecutionContext is the per request state of one plan execution.
// It must not be reused across requests.
type ExecutionContext struct {
	RequestID string

	// mu guards the arena together with the tree allocated on it.
	mu     sync.Mutex
	arena  arena.Arena
	data   *astjson.Value
	errors graphqlerrors.Errors

	entitiesMu sync.Mutex
	entities   map[entityCacheKey]*entityCall

	fetches atomic.Int64
}

func NewExecutionContext() *ExecutionContext {
	c := &ExecutionContext{
		RequestID: uuid.NewString(),
		entities:  map[entityCacheKey]*entityCall{},
	}
	c.initData()
	return c
}

func (c *ExecutionContext) initData() {
	if c.arena == nil {
		c.arena = arena.NewMonotonicArena(arena.WithMinBufferSize(1024 * 64))
	}
	if c.data == nil {
		c.data = astjson.ObjectValue(c.arena)
	}
}

// FetchCount returns the number of service calls dispatched so far.
func (c *ExecutionContext) FetchCount() int64 {
	return c.fetches.Load()
}

func (c *ExecutionContext) init() {
	if c.RequestID == "" {
		c.RequestID = uuid.NewString()
	}
	c.mu.Lock()
	c.initData()
	c.mu.Unlock()
	c.entitiesMu.Lock()
	if c.entities == nil {
		c.entities = map[entityCacheKey]*entityCall{}
	}
	c.entitiesMu.Unlock()
}

// addErrors must be called with mu held.
func (c *ExecutionContext) addErrors(errs ...graphqlerrors.Error) {
	c.errors = append(c.errors, errs...)
}

type entityCacheKey struct {
	serviceID string
	typeName  string
	signature uint64
	key       string
}

// entityCall is the result of resolving one entity. done is closed once the owning fetch finished.
type entityCall struct {
	done   chan struct{}
	entity *astjson.Value
	err    error
}

// claimEntities registers the given keys as in flight. Keys nobody resolves yet are returned as owned and
// must be completed by the caller, the others are returned as waiting.
func (c *ExecutionContext) claimEntities(serviceID, typeName string, signature uint64, keys []string) (owned, waiting map[string]*entityCall) {
	c.entitiesMu.Lock()
	defer c.entitiesMu.Unlock()

	owned = make(map[string]*entityCall, len(keys))
	waiting = make(map[string]*entityCall)
	for _, key := range keys {
		cacheKey := entityCacheKey{serviceID: serviceID, typeName: typeName, signature: signature, key: key}
		if call, ok := c.entities[cacheKey]; ok {
			waiting[key] = call
			continue
		}
		call := &entityCall{done: make(chan struct{})}
		c.entities[cacheKey] = call
		owned[key] = call
	}
	return owned, waiting
}

func waitForEntities(ctx context.Context, calls map[string]*entityCall) error {
	for _, call := range calls {
		select {
		case <-call.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
