package resolve

import (
	"bytes"
	"encoding/json"

	"github.com/wundergraph/astjson"
	"github.com/wundergraph/go-arena"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
)

// parentRef is an object of the working tree an entity result gets merged onto.
type parentRef struct {
	object *astjson.Value
	path   graphqlerrors.Path
}

// collectParents walks mergePath from the data root. Lists are traversed element-wise,
// nested lists included. Missing or null values end a branch.
func collectParents(root *astjson.Value, mergePath []string) []parentRef {
	current := []parentRef{{object: root}}
	for _, key := range mergePath {
		var next []parentRef
		for i := range current {
			next = appendObjects(next, current[i].object.Get(key), appendPath(current[i].path, key))
		}
		current = next
	}
	return current
}

func appendObjects(out []parentRef, value *astjson.Value, path graphqlerrors.Path) []parentRef {
	if value == nil {
		return out
	}
	switch value.Type() {
	case astjson.TypeObject:
		out = append(out, parentRef{object: value, path: path})
	case astjson.TypeArray:
		for i, item := range value.GetArray() {
			out = appendObjects(out, item, appendPath(path, i))
		}
	}
	return out
}

func appendPath(path graphqlerrors.Path, element interface{}) graphqlerrors.Path {
	out := make(graphqlerrors.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, element)
}

func stringPath(elements ...string) graphqlerrors.Path {
	out := make(graphqlerrors.Path, len(elements))
	for i := range elements {
		out[i] = elements[i]
	}
	return out
}

// mergeValues merges incoming into existing and returns the merged value. Objects merge key by key and
// lists of equal length merge element-wise. A null never overwrites an existing value, values of
// different shape are replaced.
func mergeValues(a arena.Arena, existing, incoming *astjson.Value) *astjson.Value {
	if astjson.ValueIsNull(incoming) {
		if existing == nil {
			return incoming
		}
		return existing
	}
	if astjson.ValueIsNull(existing) {
		return incoming
	}
	merged, _, err := astjson.MergeValues(a, existing, incoming)
	if err != nil {
		return incoming
	}
	return merged
}

// setField merges value into object[key].
func setField(a arena.Arena, object *astjson.Value, key string, value *astjson.Value) {
	object.Set(a, key, mergeValues(a, object.Get(key), value))
}

// copyValue detaches value from the tree it was parsed into, so it can be merged onto several parents.
func copyValue(a arena.Arena, value *astjson.Value) *astjson.Value {
	copied, err := astjson.ParseBytesWithArena(a, value.MarshalTo(nil))
	if err != nil {
		return value
	}
	return copied
}

// parseData parses a data object returned by a service. Empty input yields nil.
func parseData(a arena.Arena, data []byte) (*astjson.Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return astjson.ParseBytesWithArena(a, data)
}

// canonicalKey encodes marshaled key values in key field order. Equal keys produce equal strings.
func canonicalKey(values [][]byte) string {
	buf := make([]byte, 0, 32)
	buf = append(buf, '[')
	for i := range values {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, values[i]...)
	}
	return string(append(buf, ']'))
}

func marshalJSON(value interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
