package resolve

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
)

// ErrIntrospectionDisabled is reported for __schema and __type when the executor has no introspection resolver.
var ErrIntrospectionDisabled = errors.New("introspection is disabled")

// TransportError is a network, timeout or status failure of a single service call.
type TransportError struct {
	ServiceID string
	Err       error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("failed to fetch from service '%s': %v", e.ServiceID, e.Err)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// UpstreamProtocolError is returned when a service answered with GraphQL errors and without data.
type UpstreamProtocolError struct {
	ServiceID string
	Errors    graphqlerrors.Errors
}

func (e UpstreamProtocolError) Error() string {
	return fmt.Sprintf("service '%s' returned errors: %s", e.ServiceID, e.Errors.Error())
}

// EntityResolutionMismatchError reports an entity that was sent as representation but not returned
// with a matching key.
type EntityResolutionMismatchError struct {
	ServiceID string
	TypeName  string
	// Key is the JSON encoded key of the unresolved entity.
	Key      string
	Sent     int
	Received int
}

func (e EntityResolutionMismatchError) Error() string {
	return fmt.Sprintf("service '%s' did not resolve entity '%s' with key %s (sent %d representations, received %d entities)",
		e.ServiceID, e.TypeName, e.Key, e.Sent, e.Received)
}

func responseError(err error, code, serviceID string, path graphqlerrors.Path) graphqlerrors.Error {
	return graphqlerrors.Error{
		Message: err.Error(),
		Path:    path,
		Extensions: map[string]interface{}{
			"code":        code,
			"serviceName": serviceID,
		},
	}
}
