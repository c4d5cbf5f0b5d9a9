package introspection

import (
	"encoding/json"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/testing/goldie"
)

func generate(t *testing.T) Data {
	t.Helper()
	content, err := os.ReadFile("testdata/supergraph.graphql")
	require.NoError(t, err)
	document, parseErr := parser.ParseSchema(&ast.Source{Name: "supergraph", Input: string(content)})
	require.NoError(t, parseErr)

	var data Data
	require.NoError(t, NewGenerator().Generate(document, &data))
	return data
}

func typeNames(types []*FullType) []string {
	names := make([]string, 0, len(types))
	for _, fullType := range types {
		names = append(names, fullType.Name)
	}
	return names
}

func TestGenerator_Generate(t *testing.T) {
	data := generate(t)
	schema := data.Schema

	t.Run("root types", func(t *testing.T) {
		require.NotNil(t, schema.QueryType)
		assert.Equal(t, "Query", schema.QueryType.Name)
		assert.Nil(t, schema.MutationType)
		assert.Nil(t, schema.SubscriptionType)
	})

	t.Run("federation machinery is left out", func(t *testing.T) {
		names := typeNames(schema.Types)
		assert.True(t, sort.StringsAreSorted(names))
		assert.NotContains(t, names, "join__Graph")
		assert.NotContains(t, names, "join__FieldSet")
		assert.NotContains(t, names, "core__Purpose")
		assert.Subset(t, names, []string{"Boolean", "ID", "Kind", "Location", "LocationFilter", "Node", "Query", "SearchResult", "String", "__Schema", "__Type"})

		directives := make([]string, 0, len(schema.Directives))
		for _, directive := range schema.Directives {
			directives = append(directives, directive.Name)
		}
		assert.Subset(t, directives, []string{"deprecated", "include", "skip"})
		assert.NotContains(t, directives, "core")
		assert.NotContains(t, directives, "join__field")
		assert.NotContains(t, directives, "join__type")
	})

	t.Run("object type", func(t *testing.T) {
		location, err := json.MarshalIndent(schema.TypeByName("Location"), "", "  ")
		require.NoError(t, err)
		goldie.Assert(t, "location_type", location)
	})

	t.Run("extensions are merged", func(t *testing.T) {
		query := schema.TypeByName("Query")
		require.NotNil(t, query)
		names := make([]string, 0, len(query.Fields))
		for _, field := range query.Fields {
			names = append(names, field.Name)
		}
		assert.Equal(t, []string{"location", "search", "node"}, names)
	})

	t.Run("abstract types list their possible types", func(t *testing.T) {
		node := schema.TypeByName("Node")
		require.NotNil(t, node)
		assert.Equal(t, INTERFACE, node.Kind)
		require.Len(t, node.PossibleTypes, 1)
		assert.Equal(t, "Location", *node.PossibleTypes[0].Name)
		assert.Equal(t, OBJECT, node.PossibleTypes[0].Kind)

		search := schema.TypeByName("SearchResult")
		require.NotNil(t, search)
		assert.Equal(t, UNION, search.Kind)
		require.Len(t, search.PossibleTypes, 1)
		assert.Nil(t, search.Fields)
	})

	t.Run("enum and input types", func(t *testing.T) {
		kind := schema.TypeByName("Kind")
		require.NotNil(t, kind)
		require.Len(t, kind.EnumValues, 2)
		assert.False(t, kind.EnumValues[0].IsDeprecated)
		assert.True(t, kind.EnumValues[1].IsDeprecated)
		assert.Equal(t, defaultDeprecationReason, *kind.EnumValues[1].DeprecationReason)

		filter := schema.TypeByName("LocationFilter")
		require.NotNil(t, filter)
		assert.Equal(t, INPUT_OBJECT, filter.Kind)
		require.Len(t, filter.InputFields, 2)
		assert.Equal(t, ENUM, filter.InputFields[1].Type.Kind)
		assert.Equal(t, "CITY", *filter.InputFields[1].DefaultValue)
	})

	t.Run("lists that do not apply to a kind are null", func(t *testing.T) {
		out, err := json.Marshal(schema.TypeByName("ID"))
		require.NoError(t, err)
		assert.Contains(t, string(out), `"kind":"SCALAR"`)
		assert.Contains(t, string(out), `"fields":null`)
		assert.Contains(t, string(out), `"interfaces":null`)
	})
}

func TestGenerator_Generate_Errors(t *testing.T) {
	var data Data
	assert.Error(t, NewGenerator().Generate(nil, &data))

	document, parseErr := parser.ParseSchema(&ast.Source{Name: "schema", Input: `type Location { id: ID }`})
	require.NoError(t, parseErr)
	assert.EqualError(t, NewGenerator().Generate(document, &data), "query root type 'Query' is not defined")
}

func TestTypeKind_MarshalText(t *testing.T) {
	out, err := json.Marshal(TypeRef{Kind: NON_NULL})
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"NON_NULL","name":null,"ofType":null,"__typename":""}`, string(out))

	var ref TypeRef
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"INPUT_OBJECT"}`), &ref))
	assert.Equal(t, INPUT_OBJECT, ref.Kind)
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"TABLE"}`), &ref))
}
