package resolve

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/pkg/errors"
	"github.com/wundergraph/astjson"
	"github.com/wundergraph/go-arena"
	"golang.org/x/sync/errgroup"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

type Options struct {
	// FetchTimeout bounds every single service call. A timed out call fails only its operation.
	// Zero disables the per call timeout.
	FetchTimeout time.Duration
	Logger       abstractlogger.Logger
	Hooks        Hooks
	// Introspection answers root __schema and __type fields of queries. Nil disables introspection.
	Introspection IntrospectionResolver
}

// IntrospectionResolver is implemented by *introspection.Resolver.
type IntrospectionResolver interface {
	ResolveIntrospection(a arena.Arena, field *selection.FieldSelection) (*astjson.Value, error)
}

// Executor runs query plans against the services of a registry.
// It is safe for concurrent use, all request state lives in the ExecutionContext.
type Executor struct {
	registry  *registry.Registry
	transport Transport
	options   Options
	log       abstractlogger.Logger
}

func NewExecutor(reg *registry.Registry, transport Transport, options Options) *Executor {
	logger := options.Logger
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Executor{
		registry:  reg,
		transport: transport,
		options:   options,
		log:       logger,
	}
}

// Execute runs the plan and returns the merged response.
// Failing operations are reported in Response.Errors and null their part of the data.
// When ctx is cancelled Execute returns ctx.Err() and no response.
func (e *Executor) Execute(ctx context.Context, queryPlan *plan.QueryPlan, execCtx *ExecutionContext) (*Response, error) {
	if execCtx == nil {
		execCtx = NewExecutionContext()
	}
	execCtx.init()

	rootTypeName, err := queryPlan.OperationType.RootTypeName()
	if err != nil {
		return nil, err
	}

	if queryPlan.OperationType == plan.OperationTypeMutation {
		for i := range queryPlan.Steps {
			if err := e.runStep(ctx, execCtx, queryPlan.Steps[i]); err != nil {
				return nil, err
			}
		}
	} else if err := e.runConcurrently(ctx, execCtx, queryPlan.Steps); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	execCtx.mu.Lock()
	defer execCtx.mu.Unlock()

	if queryPlan.OperationType == plan.OperationTypeQuery {
		e.resolveIntrospection(execCtx, queryPlan.Selections)
	}
	data := render(execCtx.arena, queryPlan.Selections, execCtx.data, rootTypeName)
	if len(execCtx.errors) > 0 {
		e.log.Warn("resolve.executor: request finished with errors",
			abstractlogger.String("requestID", execCtx.RequestID),
			abstractlogger.Int("errors", len(execCtx.errors)),
		)
	}

	return &Response{
		Data:   data,
		Errors: append(graphqlerrors.Errors(nil), execCtx.errors...),
	}, nil
}

// resolveIntrospection sets the root introspection fields. Must be called with execCtx.mu held.
func (e *Executor) resolveIntrospection(execCtx *ExecutionContext, root []*selection.FieldSelection) {
	for _, field := range root {
		if !field.IsIntrospection() {
			continue
		}
		key := field.ResponseKey()
		err := ErrIntrospectionDisabled
		if e.options.Introspection != nil {
			var value *astjson.Value
			value, err = e.options.Introspection.ResolveIntrospection(execCtx.arena, field)
			if err == nil {
				execCtx.data.Set(execCtx.arena, key, value)
				continue
			}
		}
		execCtx.data.Set(execCtx.arena, key, astjson.NullValue)
		execCtx.addErrors(graphqlerrors.Error{
			Message:    err.Error(),
			Path:       stringPath(key),
			Extensions: map[string]interface{}{"code": graphqlerrors.CodeIntrospectionError},
		})
	}
}

// runStep only returns an error when ctx was cancelled. Operation failures are recorded in execCtx.
func (e *Executor) runStep(ctx context.Context, execCtx *ExecutionContext, step plan.Step) error {
	switch s := step.(type) {
	case *plan.Fetch:
		_, err := e.runFetch(ctx, execCtx, s)
		return err
	case *plan.Sequence:
		return e.runSequence(ctx, execCtx, s)
	case *plan.Parallel:
		return e.runConcurrently(ctx, execCtx, s.Steps)
	default:
		return errors.Errorf("unsupported plan step %T", step)
	}
}

func (e *Executor) runConcurrently(ctx context.Context, execCtx *ExecutionContext, steps []plan.Step) error {
	if len(steps) == 1 {
		return e.runStep(ctx, execCtx, steps[0])
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range steps {
		step := steps[i]
		group.Go(func() error {
			return e.runStep(groupCtx, execCtx, step)
		})
	}
	return group.Wait()
}

func (e *Executor) runSequence(ctx context.Context, execCtx *ExecutionContext, sequence *plan.Sequence) error {
	if len(sequence.Operations) == 1 {
		return e.runStep(ctx, execCtx, sequence.Operations[0])
	}

	run := &sequenceRun{log: e.log, requestID: execCtx.RequestID}
	for i, operation := range sequence.Operations {
		if i == 0 {
			if fetch, ok := operation.(*plan.Fetch); ok {
				run.serviceID = fetch.ServiceID
			}
			run.transition(SequenceStateFirstDispatched)
		} else {
			run.transition(SequenceStateKeysExtracted)
			run.transition(SequenceStateSecondDispatched)
		}

		fetch, ok := operation.(*plan.Fetch)
		if !ok {
			if err := e.runStep(ctx, execCtx, operation); err != nil {
				run.transition(SequenceStateFailed)
				return err
			}
			continue
		}

		succeeded, err := e.runFetch(ctx, execCtx, fetch)
		if err != nil {
			run.transition(SequenceStateFailed)
			return err
		}
		if !succeeded {
			// dependents have nothing to resolve against
			run.transition(SequenceStateFailed)
			return nil
		}
	}
	run.transition(SequenceStateMerged)
	return nil
}

// runFetch reports whether the fetch succeeded. The error is only set when ctx was cancelled.
func (e *Executor) runFetch(ctx context.Context, execCtx *ExecutionContext, fetch *plan.Fetch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	service, err := e.registry.ResolveService(fetch.ServiceID)
	if err != nil {
		err = TransportError{ServiceID: fetch.ServiceID, Err: err}
		execCtx.mu.Lock()
		defer execCtx.mu.Unlock()
		if fetch.IsEntityFetch() {
			e.failEntityFetch(execCtx, fetch, collectParents(execCtx.data, fetch.MergePath), err)
		} else {
			e.failRootFields(execCtx, fetch, err)
		}
		return false, nil
	}
	if fetch.IsEntityFetch() {
		return e.runEntityFetch(ctx, execCtx, fetch, service)
	}
	return e.runRootFetch(ctx, execCtx, fetch, service)
}

func (e *Executor) send(ctx context.Context, execCtx *ExecutionContext, fetch *plan.Fetch, service registry.ServiceDescriptor, variables json.RawMessage) (*TransportResponse, error) {
	info := FetchInfo{
		RequestID:      execCtx.RequestID,
		ServiceID:      service.ID,
		EntityTypeName: entityTypeName(fetch),
		MergePath:      fetch.MergePath,
	}
	if e.options.Hooks != nil {
		ctx = e.options.Hooks.OnFetch(ctx, info)
	}

	fetchCtx := ctx
	if e.options.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.options.FetchTimeout)
		defer cancel()
	}

	execCtx.fetches.Inc()
	e.log.Debug("resolve.executor: dispatch fetch",
		abstractlogger.String("requestID", execCtx.RequestID),
		abstractlogger.String("service", service.ID),
		abstractlogger.String("entity", info.EntityTypeName),
		abstractlogger.Any("mergePath", fetch.MergePath),
	)

	response, err := e.transport.Send(fetchCtx, service, fetch.Query(), variables)
	if err != nil {
		err = TransportError{ServiceID: service.ID, Err: err}
	} else if response == nil {
		response = &TransportResponse{}
	}

	if e.options.Hooks != nil {
		e.options.Hooks.OnFetchFinished(ctx, info, err)
	}
	return response, err
}

func (e *Executor) runRootFetch(ctx context.Context, execCtx *ExecutionContext, fetch *plan.Fetch, service registry.ServiceDescriptor) (bool, error) {
	response, err := e.send(ctx, execCtx, fetch, service, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		execCtx.mu.Lock()
		e.failRootFields(execCtx, fetch, err)
		execCtx.mu.Unlock()
		return false, nil
	}

	execCtx.mu.Lock()
	defer execCtx.mu.Unlock()

	data, err := parseData(execCtx.arena, response.Data)
	if err != nil {
		e.failRootFields(execCtx, fetch, UpstreamProtocolError{
			ServiceID: service.ID,
			Errors:    graphqlerrors.Errors{{Message: "invalid response data: " + err.Error()}},
		})
		return false, nil
	}
	if data != nil && data.Type() != astjson.TypeObject {
		data = nil
	}

	if data == nil && len(response.Errors) > 0 {
		e.failRootFields(execCtx, fetch, UpstreamProtocolError{ServiceID: service.ID, Errors: response.Errors})
		return false, nil
	}

	if data != nil {
		data.GetObject().Visit(func(key []byte, item *astjson.Value) {
			setField(execCtx.arena, execCtx.data, string(key), item)
		})
	}
	execCtx.addErrors(upstreamErrors(response.Errors, service.ID, nil, nil)...)

	e.log.Debug("resolve.executor: merged root fetch",
		abstractlogger.String("requestID", execCtx.RequestID),
		abstractlogger.String("service", service.ID),
	)
	return true, nil
}

// failRootFields nulls the root fields of a failed root fetch and records one error per field.
// Must be called with execCtx.mu held.
func (e *Executor) failRootFields(execCtx *ExecutionContext, fetch *plan.Fetch, err error) {
	e.log.Warn("resolve.executor: fetch failed",
		abstractlogger.String("requestID", execCtx.RequestID),
		abstractlogger.String("service", fetch.ServiceID),
		abstractlogger.Error(err),
	)
	keys := responseKeys(fetch)
	nullFields(execCtx.arena, []parentRef{{object: execCtx.data}}, keys)

	var protocolErr UpstreamProtocolError
	if errors.As(err, &protocolErr) && len(keys) > 0 {
		execCtx.addErrors(upstreamErrors(protocolErr.Errors, fetch.ServiceID, nil, stringPath(keys[0]))...)
		return
	}
	for _, key := range keys {
		execCtx.addErrors(responseError(err, errorCode(err), fetch.ServiceID, stringPath(key)))
	}
}

func errorCode(err error) string {
	var mismatch EntityResolutionMismatchError
	var protocolErr UpstreamProtocolError
	switch {
	case errors.As(err, &mismatch):
		return graphqlerrors.CodeEntityResolutionMismatch
	case errors.As(err, &protocolErr):
		return graphqlerrors.CodeUpstreamError
	default:
		return graphqlerrors.CodeTransportError
	}
}

// upstreamErrors tags errors returned by a service. Paths are prefixed with prefix,
// errors without a path get fallback.
func upstreamErrors(errs graphqlerrors.Errors, serviceID string, prefix, fallback graphqlerrors.Path) graphqlerrors.Errors {
	if len(errs) == 0 {
		return nil
	}
	out := make(graphqlerrors.Errors, 0, len(errs))
	for _, upstream := range errs {
		converted := graphqlerrors.Error{
			Message:    upstream.Message,
			Locations:  upstream.Locations,
			Extensions: map[string]interface{}{},
		}
		for key, value := range upstream.Extensions {
			converted.Extensions[key] = value
		}
		if _, ok := converted.Extensions["code"]; !ok {
			converted.Extensions["code"] = graphqlerrors.CodeUpstreamError
		}
		converted.Extensions["serviceName"] = serviceID

		switch {
		case len(upstream.Path) > 0:
			converted.Path = append(append(graphqlerrors.Path{}, prefix...), upstream.Path...)
		case len(fallback) > 0:
			converted.Path = append(graphqlerrors.Path{}, fallback...)
		}
		out = append(out, converted)
	}
	return out
}

func nullFields(a arena.Arena, parents []parentRef, keys []string) {
	for i := range parents {
		for _, key := range keys {
			parents[i].object.Set(a, key, astjson.NullValue)
		}
	}
}

func responseKeys(fetch *plan.Fetch) []string {
	keys := make([]string, 0, len(fetch.Selections))
	for _, field := range fetch.Selections {
		if field.IsTypeName() {
			continue
		}
		keys = append(keys, field.ResponseKey())
	}
	return keys
}

// crossedKeys returns the response keys an entity fetch contributes to its parents, i.e. all
// selections except the key fields it only selects to echo them.
func crossedKeys(fetch *plan.Fetch) []string {
	keyResponseKeys := make(map[string]struct{}, len(fetch.Entity.KeyFields))
	for _, keyField := range fetch.Entity.KeyFields {
		keyResponseKeys[keyField.ResponseKey] = struct{}{}
	}
	keys := make([]string, 0, len(fetch.Selections))
	for _, field := range fetch.Selections {
		if _, ok := keyResponseKeys[field.ResponseKey()]; ok || field.IsTypeName() {
			continue
		}
		keys = append(keys, field.ResponseKey())
	}
	return keys
}

func entityTypeName(fetch *plan.Fetch) string {
	if fetch.Entity == nil {
		return ""
	}
	return fetch.Entity.TypeName
}
