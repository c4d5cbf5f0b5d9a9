package introspection

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/wundergraph/astjson"
	"github.com/wundergraph/go-arena"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

// deprecatableLists take an includeDeprecated argument.
var deprecatableLists = map[string]struct{}{
	"fields":      {},
	"enumValues":  {},
	"inputFields": {},
	"args":        {},
}

// Resolver answers the root __schema and __type fields from pre-rendered introspection Data.
// It is safe for concurrent use.
type Resolver struct {
	schema []byte
	types  map[string][]byte
}

func NewResolver(data *Data) (*Resolver, error) {
	schema, err := json.Marshal(data.Schema)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		schema: schema,
		types:  make(map[string][]byte, len(data.Schema.Types)),
	}
	for _, fullType := range data.Schema.Types {
		out, err := json.Marshal(fullType)
		if err != nil {
			return nil, err
		}
		r.types[fullType.Name] = out
	}
	return r, nil
}

// ResolveIntrospection returns the value of a root introspection field projected onto its selection.
// Objects are keyed by the response keys of the selection. An unknown __type name resolves to null.
func (r *Resolver) ResolveIntrospection(a arena.Arena, field *selection.FieldSelection) (*astjson.Value, error) {
	var source []byte
	switch field.Field {
	case selection.SchemaFieldName:
		source = r.schema
	case selection.TypeFieldName:
		name, err := stringArgument(field, "name")
		if err != nil {
			return nil, err
		}
		var ok bool
		if source, ok = r.types[name]; !ok {
			return astjson.NullValue, nil
		}
	default:
		return nil, fmt.Errorf("'%s' is not an introspection field", field.Field)
	}

	value, err := astjson.ParseBytesWithArena(a, source)
	if err != nil {
		return nil, err
	}
	return project(a, field.Children, value), nil
}

func project(a arena.Arena, fields []*selection.FieldSelection, value *astjson.Value) *astjson.Value {
	if astjson.ValueIsNull(value) {
		return astjson.NullValue
	}
	switch value.Type() {
	case astjson.TypeArray:
		out := astjson.ArrayValue(a)
		for _, item := range value.GetArray() {
			astjson.AppendToArray(out, project(a, fields, item))
		}
		return out
	case astjson.TypeObject:
		out := astjson.ObjectValue(a)
		for _, field := range fields {
			if out.Get(field.ResponseKey()) != nil {
				continue
			}
			item := value.Get(field.Field)
			if _, ok := deprecatableLists[field.Field]; ok && !includeDeprecated(field) {
				item = withoutDeprecated(a, item)
			}
			if field.IsLeaf() {
				if item == nil {
					item = astjson.NullValue
				}
				out.Set(a, field.ResponseKey(), item)
				continue
			}
			out.Set(a, field.ResponseKey(), project(a, field.Children, item))
		}
		return out
	default:
		return value
	}
}

// withoutDeprecated drops the deprecated items of a list, includeDeprecated defaults to false.
func withoutDeprecated(a arena.Arena, value *astjson.Value) *astjson.Value {
	if value == nil || value.Type() != astjson.TypeArray {
		return value
	}
	out := astjson.ArrayValue(a)
	for _, item := range value.GetArray() {
		if deprecated := item.Get("isDeprecated"); deprecated != nil && deprecated.Type() == astjson.TypeTrue {
			continue
		}
		astjson.AppendToArray(out, item)
	}
	return out
}

func includeDeprecated(field *selection.FieldSelection) bool {
	for _, argument := range field.Arguments {
		if argument.Name == "includeDeprecated" {
			return argument.Value == "true"
		}
	}
	return false
}

func stringArgument(field *selection.FieldSelection, name string) (string, error) {
	for _, argument := range field.Arguments {
		if argument.Name != name {
			continue
		}
		value, err := strconv.Unquote(argument.Value)
		if err != nil {
			return "", fmt.Errorf("argument '%s' of '%s' must be a String", name, field.Field)
		}
		return value, nil
	}
	return "", fmt.Errorf("argument '%s' of '%s' is required", name, field.Field)
}
