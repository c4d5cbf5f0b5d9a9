package resolve

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jensneuse/abstractlogger"
	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
	"github.com/wundergraph/astjson"
	"github.com/wundergraph/go-arena"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

const entitiesFieldName = "_entities"

// keyGroup holds all parents sharing one entity key.
type keyGroup struct {
	// values are the marshaled key values in key field order
	values  [][]byte
	parents []parentRef
}

func (e *Executor) runEntityFetch(ctx context.Context, execCtx *ExecutionContext, fetch *plan.Fetch, service registry.ServiceDescriptor) (bool, error) {
	execCtx.mu.Lock()
	parents := collectParents(execCtx.data, fetch.MergePath)
	groups, keys := groupParents(parents, fetch.Entity.KeyFields)
	execCtx.mu.Unlock()

	if len(keys) == 0 {
		return true, nil
	}

	signature := selection.Signature(fetch.Selections)
	owned, waiting := execCtx.claimEntities(service.ID, fetch.Entity.TypeName, signature, keys)
	ownedKeys := make([]string, 0, len(owned))
	for _, key := range keys {
		if _, ok := owned[key]; ok {
			ownedKeys = append(ownedKeys, key)
		}
	}

	var (
		upstream graphqlerrors.Errors
		fetchErr error
	)
	if len(ownedKeys) > 0 {
		upstream, fetchErr = e.resolveEntities(ctx, execCtx, fetch, service, ownedKeys, groups, owned)
	}
	if err := waitForEntities(ctx, waiting); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	execCtx.mu.Lock()
	defer execCtx.mu.Unlock()

	if fetchErr != nil {
		e.failEntityFetch(execCtx, fetch, parents, fetchErr)
		execCtx.addErrors(rerootEntityErrors(upstream, fetch, service.ID, ownedKeys, groups)...)
		return false, nil
	}
	execCtx.addErrors(rerootEntityErrors(upstream, fetch, service.ID, ownedKeys, groups)...)

	crossed := crossedKeys(fetch)
	resolved := 0
	var waitErr error
	for _, key := range keys {
		call := owned[key]
		if call == nil {
			call = waiting[key]
		}
		if call.err != nil {
			waitErr = call.err
			continue
		}
		if call.entity != nil {
			resolved++
		}
	}

	for _, key := range keys {
		call := owned[key]
		if call == nil {
			call = waiting[key]
		}
		group := groups[key]
		switch {
		case call.err != nil:
			nullFields(execCtx.arena, group.parents, crossed)
		case call.entity == nil:
			nullFields(execCtx.arena, group.parents, crossed)
			mismatch := EntityResolutionMismatchError{
				ServiceID: service.ID,
				TypeName:  fetch.Entity.TypeName,
				Key:       key,
				Sent:      len(keys),
				Received:  resolved,
			}
			for _, parent := range group.parents {
				execCtx.addErrors(responseError(mismatch, graphqlerrors.CodeEntityResolutionMismatch, service.ID, fieldPath(parent.path, crossed)))
			}
		default:
			for _, parent := range group.parents {
				mergeEntity(execCtx.arena, parent.object, call.entity, fetch.Entity.KeyFields)
			}
		}
	}

	if waitErr != nil {
		// the fetch owning these entities recorded the upstream details already
		execCtx.addErrors(responseError(waitErr, errorCode(waitErr), service.ID, crossingPath(fetch, crossed)))
	}

	e.log.Debug("resolve.executor: merged entity fetch",
		abstractlogger.String("requestID", execCtx.RequestID),
		abstractlogger.String("service", service.ID),
		abstractlogger.String("entity", fetch.Entity.TypeName),
		abstractlogger.Int("entities", len(keys)),
		abstractlogger.Int("resolved", resolved),
	)
	return true, nil
}

// resolveEntities fetches the owned keys and completes their in flight calls.
// Errors returned by the service alongside data are returned as upstream errors.
func (e *Executor) resolveEntities(ctx context.Context, execCtx *ExecutionContext, fetch *plan.Fetch, service registry.ServiceDescriptor,
	keys []string, groups map[string]*keyGroup, owned map[string]*entityCall) (upstream graphqlerrors.Errors, err error) {
	defer func() {
		for _, key := range keys {
			call := owned[key]
			if err != nil {
				call.err = err
			}
			close(call.done)
		}
	}()

	variables, err := representationsVariables(fetch.Entity, keys, groups)
	if err != nil {
		return nil, err
	}

	response, err := e.send(ctx, execCtx, fetch, service, variables)
	if err != nil {
		return nil, err
	}

	execCtx.mu.Lock()
	defer execCtx.mu.Unlock()

	data, err := parseData(execCtx.arena, response.Data)
	if err != nil {
		invalid := graphqlerrors.Errors{{Message: "invalid response data: " + err.Error()}}
		return invalid, UpstreamProtocolError{ServiceID: service.ID, Errors: invalid}
	}
	var entities []*astjson.Value
	if data != nil {
		entities = data.GetArray(entitiesFieldName)
	}
	if entities == nil && len(response.Errors) > 0 {
		return response.Errors, UpstreamProtocolError{ServiceID: service.ID, Errors: response.Errors}
	}

	for _, item := range entities {
		if item == nil || item.Type() != astjson.TypeObject {
			continue
		}
		key, ok := entityKey(item, fetch.Entity.KeyFields)
		if !ok {
			continue
		}
		if call, ok := owned[key]; ok && call.entity == nil {
			call.entity = item
		}
	}
	return response.Errors, nil
}

// mergeEntity merges a copy of entity onto parent. Echoed key fields are left out, their response keys
// may name different fields on the parent. Must be called with the arena owner's lock held.
func mergeEntity(a arena.Arena, parent, entity *astjson.Value, keyFields []plan.KeyField) {
	entity.GetObject().Visit(func(key []byte, value *astjson.Value) {
		if isKeyResponseKey(string(key), keyFields) {
			return
		}
		setField(a, parent, string(key), copyValue(a, value))
	})
}

func isKeyResponseKey(responseKey string, keyFields []plan.KeyField) bool {
	for i := range keyFields {
		if keyFields[i].ResponseKey == responseKey {
			return true
		}
	}
	return false
}

// failEntityFetch nulls the crossed fields on all parents and records one error at the crossing path.
// Upstream protocol errors are recorded by the caller. Must be called with execCtx.mu held.
func (e *Executor) failEntityFetch(execCtx *ExecutionContext, fetch *plan.Fetch, parents []parentRef, err error) {
	e.log.Warn("resolve.executor: entity fetch failed",
		abstractlogger.String("requestID", execCtx.RequestID),
		abstractlogger.String("service", fetch.ServiceID),
		abstractlogger.String("entity", fetch.Entity.TypeName),
		abstractlogger.Error(err),
	)
	crossed := crossedKeys(fetch)
	nullFields(execCtx.arena, parents, crossed)

	var protocolErr UpstreamProtocolError
	if errors.As(err, &protocolErr) {
		return
	}
	execCtx.addErrors(responseError(err, errorCode(err), fetch.ServiceID, crossingPath(fetch, crossed)))
}

// rerootEntityErrors moves errors reported under _entities.i onto the first parent of representation i.
// Other paths are prefixed with the merge path, errors without path are attached to the crossing path.
func rerootEntityErrors(errs graphqlerrors.Errors, fetch *plan.Fetch, serviceID string, keys []string, groups map[string]*keyGroup) graphqlerrors.Errors {
	if len(errs) == 0 {
		return nil
	}
	crossed := crossedKeys(fetch)
	fallback := crossingPath(fetch, crossed)
	out := make(graphqlerrors.Errors, 0, len(errs))
	for _, upstream := range errs {
		path := upstream.Path
		prefix := stringPath(fetch.MergePath...)
		if len(path) >= 2 && path[0] == entitiesFieldName {
			index, ok := path[1].(int)
			if ok && index >= 0 && index < len(keys) && len(groups[keys[index]].parents) > 0 {
				prefix = groups[keys[index]].parents[0].path
				path = path[2:]
			} else {
				prefix = nil
				path = fallback
			}
		}
		upstream.Path = path
		out = append(out, upstreamErrors(graphqlerrors.Errors{upstream}, serviceID, prefix, fallback)...)
	}
	return out
}

func crossingPath(fetch *plan.Fetch, crossed []string) graphqlerrors.Path {
	return fieldPath(stringPath(fetch.MergePath...), crossed)
}

// fieldPath points at the first crossed field below path.
func fieldPath(path graphqlerrors.Path, crossed []string) graphqlerrors.Path {
	if len(crossed) == 0 {
		return append(graphqlerrors.Path{}, path...)
	}
	return appendPath(path, crossed[0])
}

// groupParents groups parents by their key values in order of first appearance.
// Parents missing a key value are skipped.
func groupParents(parents []parentRef, keyFields []plan.KeyField) (map[string]*keyGroup, []string) {
	groups := make(map[string]*keyGroup)
	var keys []string
	for _, parent := range parents {
		values := make([][]byte, 0, len(keyFields))
		for _, keyField := range keyFields {
			value := parent.object.Get(keyField.ParentResponseKey)
			if astjson.ValueIsNull(value) {
				break
			}
			values = append(values, value.MarshalTo(nil))
		}
		if len(values) != len(keyFields) {
			continue
		}
		key := canonicalKey(values)
		group, ok := groups[key]
		if !ok {
			group = &keyGroup{values: values}
			groups[key] = group
			keys = append(keys, key)
		}
		group.parents = append(group.parents, parent)
	}
	return groups, keys
}

// entityKey reads the echoed key of a returned entity. ok is false if the entity lacks a key value.
func entityKey(entity *astjson.Value, keyFields []plan.KeyField) (key string, ok bool) {
	values := make([][]byte, 0, len(keyFields))
	for _, keyField := range keyFields {
		value := entity.Get(keyField.ResponseKey)
		if astjson.ValueIsNull(value) {
			return "", false
		}
		values = append(values, value.MarshalTo(nil))
	}
	return canonicalKey(values), true
}

// representationsVariables builds {"representations":[{"__typename":"T","id":...}, ...]}.
func representationsVariables(entity *plan.EntityRequest, keys []string, groups map[string]*keyGroup) (json.RawMessage, error) {
	representations := []byte("[")
	for i, key := range keys {
		representation, err := sjson.SetBytes([]byte("{}"), selection.TypeNameFieldName, entity.TypeName)
		if err != nil {
			return nil, err
		}
		for j, keyField := range entity.KeyFields {
			representation, err = sjson.SetRawBytes(representation, keyField.Name, groups[key].values[j])
			if err != nil {
				return nil, fmt.Errorf("set key field '%s': %w", keyField.Name, err)
			}
		}
		if i > 0 {
			representations = append(representations, ',')
		}
		representations = append(representations, representation...)
	}
	representations = append(representations, ']')
	return sjson.SetRawBytes([]byte("{}"), "representations", representations)
}
