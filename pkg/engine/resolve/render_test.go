package resolve

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wundergraph/astjson"
	"github.com/wundergraph/go-arena"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

func parse(t *testing.T, a arena.Arena, data string) *astjson.Value {
	t.Helper()
	value, err := astjson.ParseBytesWithArena(a, []byte(data))
	require.NoError(t, err)
	return value
}

func TestRender(t *testing.T) {
	a := arena.NewMonotonicArena(arena.WithMinBufferSize(1024))
	decode := func(t *testing.T, data string) *astjson.Value {
		return parse(t, a, data)
	}

	t.Run("follows selection order and drops unselected fields", func(t *testing.T) {
		data := decode(t, `{"location":{"_key_id":"1","name":"Sydney","id":"x","rating":4.50}}`)
		out := render(a, []*selection.FieldSelection{field("location", aliased("id", "name"), field("rating"))}, data, "Query")
		assert.Equal(t, `{"location":{"id":"x","rating":4.50}}`, string(out))
	})

	t.Run("absent fields render as null", func(t *testing.T) {
		out := render(a, []*selection.FieldSelection{field("location", field("name")), field("other")}, astjson.ObjectValue(a), "Query")
		assert.Equal(t, `{"location":null,"other":null}`, string(out))
	})

	t.Run("duplicate response keys are written once", func(t *testing.T) {
		data := decode(t, `{"name":"<Sydney>"}`)
		out := render(a, []*selection.FieldSelection{field("name"), field("name")}, data, "Query")
		assert.Equal(t, `{"name":"<Sydney>"}`, string(out))
	})

	t.Run("nested lists", func(t *testing.T) {
		data := decode(t, `{"grid":[[{"x":1,"y":2}],[],null]}`)
		out := render(a, []*selection.FieldSelection{field("grid", field("x"))}, data, "Query")
		assert.Equal(t, `{"grid":[[{"x":1}],[],null]}`, string(out))
	})

	t.Run("typename of nested objects comes from the data", func(t *testing.T) {
		data := decode(t, `{"location":{"__typename":"Location"}}`)
		out := render(a, []*selection.FieldSelection{field("__typename"), field("location", field("__typename"))}, data, "Mutation")
		assert.Equal(t, `{"__typename":"Mutation","location":{"__typename":"Location"}}`, string(out))
	})
}

func TestResponse_Marshal(t *testing.T) {
	response := &Response{
		Data: []byte(`{"location":null}`),
		Errors: graphqlerrors.Errors{{
			Message:    "unavailable",
			Path:       graphqlerrors.Path{"location"},
			Extensions: map[string]interface{}{"code": graphqlerrors.CodeTransportError},
		}},
	}
	out, err := response.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"errors":[{"message":"unavailable","path":["location"],"extensions":{"code":"TRANSPORT_ERROR"}}],"data":{"location":null}}`, string(out))

	buf := &bytes.Buffer{}
	_, err = (&Response{Data: []byte(`{}`)}).WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, `{"data":{}}`, buf.String())
}

func TestCollectParents(t *testing.T) {
	a := arena.NewMonotonicArena(arena.WithMinBufferSize(1024))
	value := parse(t, a, `{"a":[{"b":{"id":1}},{"b":null},{"b":[{"id":2},{"id":3}]}]}`)

	parents := collectParents(value, []string{"a", "b"})
	require.Len(t, parents, 3)
	assert.Equal(t, graphqlerrors.Path{"a", 0, "b"}, parents[0].path)
	assert.Equal(t, graphqlerrors.Path{"a", 2, "b", 0}, parents[1].path)
	assert.Equal(t, graphqlerrors.Path{"a", 2, "b", 1}, parents[2].path)
	assert.Equal(t, `{"id":3}`, string(parents[2].object.MarshalTo(nil)))
}

func TestMergeValues(t *testing.T) {
	a := arena.NewMonotonicArena(arena.WithMinBufferSize(1024))

	t.Run("objects and equal length lists merge", func(t *testing.T) {
		existing := parse(t, a, `{"a":{"x":1},"list":[{"id":1},{"id":2}]}`)
		incoming := parse(t, a, `{"a":{"y":2},"list":[{"n":"one"},{"n":"two"}]}`)

		merged := mergeValues(a, existing, incoming)
		assert.JSONEq(t, `{"a":{"x":1,"y":2},"list":[{"id":1,"n":"one"},{"id":2,"n":"two"}]}`, string(merged.MarshalTo(nil)))
	})

	t.Run("null keeps the existing value", func(t *testing.T) {
		existing := parse(t, a, `{"x":1}`)
		assert.Equal(t, `{"x":1}`, string(mergeValues(a, existing, astjson.NullValue).MarshalTo(nil)))
		assert.Equal(t, `{"x":1}`, string(mergeValues(a, existing, nil).MarshalTo(nil)))
	})

	t.Run("absent or null existing value takes the incoming one", func(t *testing.T) {
		incoming := parse(t, a, `[1,2]`)
		assert.Equal(t, `[1,2]`, string(mergeValues(a, nil, incoming).MarshalTo(nil)))
		assert.Equal(t, `[1,2]`, string(mergeValues(a, astjson.NullValue, incoming).MarshalTo(nil)))
	})

	t.Run("values of different shape are replaced", func(t *testing.T) {
		existing := parse(t, a, `"sunny"`)
		incoming := parse(t, a, `{"id":"1"}`)
		assert.Equal(t, `{"id":"1"}`, string(mergeValues(a, existing, incoming).MarshalTo(nil)))
	})
}

func TestMergeEntity(t *testing.T) {
	a := arena.NewMonotonicArena(arena.WithMinBufferSize(1024))
	keyFields := []plan.KeyField{{Name: "id", ParentResponseKey: "_key_id", ResponseKey: "id"}}

	parent := parse(t, a, `{"id":"sunny","_key_id":"1","name":"Sydney"}`)
	entity := parse(t, a, `{"id":"1","reviews":[{"comment":"great"}]}`)

	mergeEntity(a, parent, entity, keyFields)
	assert.Equal(t, `{"id":"sunny","_key_id":"1","name":"Sydney","reviews":[{"comment":"great"}]}`, string(parent.MarshalTo(nil)))

	// the parent owns a copy
	entity.Get("reviews").GetArray()[0].Set(a, "comment", astjson.StringValue(a, "changed"))
	assert.Equal(t, `[{"comment":"great"}]`, string(parent.Get("reviews").MarshalTo(nil)))
}

func TestGroupParents(t *testing.T) {
	a := arena.NewMonotonicArena(arena.WithMinBufferSize(1024))
	keyFields := []plan.KeyField{{Name: "id", ParentResponseKey: "id", ResponseKey: "id"}}
	value := parse(t, a, `{"a":[{"id":"1"},{"id":null},{"id":"2"},{"id":"1"},{}]}`)

	groups, keys := groupParents(collectParents(value, []string{"a"}), keyFields)
	assert.Equal(t, []string{`["1"]`, `["2"]`}, keys)
	assert.Len(t, groups[`["1"]`].parents, 2)
	assert.Equal(t, [][]byte{[]byte(`"2"`)}, groups[`["2"]`].values)

	key, ok := entityKey(parse(t, a, `{"id":"2","name":"x"}`), keyFields)
	assert.True(t, ok)
	assert.Equal(t, `["2"]`, key)
	_, ok = entityKey(parse(t, a, `{"name":"x"}`), keyFields)
	assert.False(t, ok)
}
