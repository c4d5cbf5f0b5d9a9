//go:generate mockgen -destination=transport_mock_test.go -package=resolve . Transport

package resolve

import (
	"context"
	"encoding/json"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
)

// TransportResponse is the decoded GraphQL response of one service call.
type TransportResponse struct {
	Data   json.RawMessage
	Errors graphqlerrors.Errors
}

// Transport sends one GraphQL operation to one service.
// Implementations own retries, pooling, TLS and per-service concurrency limits.
// A returned error means the call itself failed, protocol level errors go into TransportResponse.Errors.
type Transport interface {
	Send(ctx context.Context, service registry.ServiceDescriptor, query string, variables json.RawMessage) (*TransportResponse, error)
}
