package resolve

import (
	"context"
)

type FetchInfo struct {
	RequestID string
	ServiceID string
	// EntityTypeName is empty for root fetches.
	EntityTypeName string
	MergePath      []string
}

// Hooks observe every service call made by the Executor.
type Hooks interface {
	// OnFetch is called before the call is dispatched. The returned context is used for the call and
	// handed to OnFetchFinished.
	OnFetch(ctx context.Context, info FetchInfo) context.Context
	// OnFetchFinished is called after the call returned. err is nil for successful calls.
	OnFetchFinished(ctx context.Context, info FetchInfo, err error)
}
