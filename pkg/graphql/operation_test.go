package graphql

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

func testRegistry() *registry.Registry {
	return registry.New(registry.Config{
		Services: []registry.ServiceDescriptor{{ID: "LOC", URL: "http://loc"}},
		Fields: []registry.FieldConfiguration{
			{TypeName: "Query", FieldName: "location", ServiceID: "LOC", FieldType: "Location"},
			{TypeName: "Query", FieldName: "locations", ServiceID: "LOC", FieldType: "Location"},
			{TypeName: "Mutation", FieldName: "addLocation", ServiceID: "LOC", FieldType: "Location"},
			{TypeName: "Location", FieldName: "id", ServiceID: "LOC", FieldType: "ID"},
			{TypeName: "Location", FieldName: "name", ServiceID: "LOC", FieldType: "String"},
			{TypeName: "Location", FieldName: "photo", ServiceID: "LOC", FieldType: "String"},
		},
	})
}

func TestRequest_Operation(t *testing.T) {
	run := func(request Request) (*Operation, error) {
		return request.Operation(testRegistry())
	}

	t.Run("plain query", func(t *testing.T) {
		operation, err := run(Request{Query: `{ locations { id name } }`})
		require.NoError(t, err)
		assert.Equal(t, plan.OperationTypeQuery, operation.Type)
		assert.Equal(t, "locations{id name}", selection.Print(operation.Selections))
	})

	t.Run("aliases and arguments", func(t *testing.T) {
		operation, err := run(Request{
			Query:     `query Location($id: ID!, $size: Int = 200) { home: location(id: $id) { name photo(size: $size, format: JPEG, tags: ["a", $id]) } }`,
			Variables: []byte(`{"id":"loc-1"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, "Location", operation.Name)
		assert.Equal(t, `home: location(id: "loc-1"){name photo(size: 200, format: JPEG, tags: ["a", "loc-1"])}`, selection.Print(operation.Selections))
	})

	t.Run("object variables are inlined as literals", func(t *testing.T) {
		operation, err := run(Request{
			Query:     `mutation Add($input: LocationInput!) { addLocation(input: $input) { id } }`,
			Variables: []byte(`{"input":{"name":"Sydney","rating":4.5,"tags":["beach"],"hidden":false,"parent":null}}`),
		})
		require.NoError(t, err)
		assert.Equal(t, plan.OperationTypeMutation, operation.Type)
		assert.Equal(t, `addLocation(input: {hidden: false, name: "Sydney", parent: null, rating: 4.5, tags: ["beach"]}){id}`, selection.Print(operation.Selections))
	})

	t.Run("fragments are expanded and merged", func(t *testing.T) {
		operation, err := run(Request{Query: `
			query { location { ...LocationName ... on Location { id } ... { name photo } } }
			fragment LocationName on Location { name }`,
		})
		require.NoError(t, err)
		assert.Equal(t, "location{name id photo}", selection.Print(operation.Selections))
	})

	t.Run("fragments on other types are skipped", func(t *testing.T) {
		operation, err := run(Request{Query: `{ location { id ... on Photo { url } } }`})
		require.NoError(t, err)
		assert.Equal(t, "location{id}", selection.Print(operation.Selections))
	})

	t.Run("skip and include", func(t *testing.T) {
		operation, err := run(Request{
			Query:     `query($withName: Boolean!) { location { id @skip(if: true) name @include(if: $withName) photo @include(if: false) } }`,
			Variables: []byte(`{"withName":true}`),
		})
		require.NoError(t, err)
		assert.Equal(t, "location{name}", selection.Print(operation.Selections))
	})

	t.Run("fields with the same response key are merged", func(t *testing.T) {
		operation, err := run(Request{Query: `{ location { id } location { name } }`})
		require.NoError(t, err)
		assert.Equal(t, "location{id name}", selection.Print(operation.Selections))
	})

	t.Run("introspection fields are not looked up in the registry", func(t *testing.T) {
		operation, err := run(Request{Query: `
			{ __schema { queryType { name } } __type(name: "Location") { ...TypeFields } }
			fragment TypeFields on __Type { name fields(includeDeprecated: true) { name } }`,
		})
		require.NoError(t, err)
		assert.Equal(t, `__schema{queryType{name}} __type(name: "Location"){name fields(includeDeprecated: true){name}}`, selection.Print(operation.Selections))
	})

	t.Run("operation is selected by name", func(t *testing.T) {
		operation, err := run(Request{
			Query:         `query A { location { id } } query B { locations { name } }`,
			OperationName: "B",
		})
		require.NoError(t, err)
		assert.Equal(t, "locations{name}", selection.Print(operation.Selections))

		_, err = run(Request{Query: `query A { location { id } } query B { locations { name } }`})
		assert.Error(t, err)

		_, err = run(Request{Query: `query A { location { id } }`, OperationName: "C"})
		assert.EqualError(t, err, "operation 'C' not found")
	})

	t.Run("subscriptions are rejected", func(t *testing.T) {
		_, err := run(Request{Query: `subscription { locationAdded { id } }`})
		assert.Equal(t, ErrSubscriptionNotSupported, err)
	})

	t.Run("syntax errors carry locations", func(t *testing.T) {
		_, err := run(Request{Query: `{ location { id }`})
		require.Error(t, err)
		var errs graphqlerrors.Errors
		require.ErrorAs(t, err, &errs)
		require.Len(t, errs, 1)
		assert.Equal(t, graphqlerrors.CodeBadRequest, errs[0].Code())
		assert.NotEmpty(t, errs[0].Locations)
	})

	t.Run("recursive fragments are rejected", func(t *testing.T) {
		_, err := run(Request{Query: `{ location { ...A } } fragment A on Location { ...A }`})
		assert.EqualError(t, err, "fragment 'A' spreads itself")
	})

	t.Run("unknown fields fail with a registry error", func(t *testing.T) {
		_, err := run(Request{Query: `{ location { owner { name } } }`})
		assert.Equal(t, registry.UnknownFieldError{TypeName: "Location", FieldName: "owner"}, err)
	})
}

func TestUnmarshalHttpRequest(t *testing.T) {
	t.Run("post", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ location { id } }","operationName":"","variables":{"a":1}}`))
		var request Request
		require.NoError(t, UnmarshalHttpRequest(r, &request))
		assert.Equal(t, "{ location { id } }", request.Query)
		assert.JSONEq(t, `{"a":1}`, string(request.Variables))
	})

	t.Run("get", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, `/graphql?query=%7Blocation%7Bid%7D%7D&operationName=Op&variables=%7B%22a%22%3A1%7D`, nil)
		var request Request
		require.NoError(t, UnmarshalHttpRequest(r, &request))
		assert.Equal(t, "{location{id}}", request.Query)
		assert.Equal(t, "Op", request.OperationName)
		assert.Equal(t, `{"a":1}`, string(request.Variables))
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(nil))
		var request Request
		assert.Equal(t, ErrEmptyRequest, UnmarshalHttpRequest(r, &request))
	})

	t.Run("missing query", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"variables":{}}`))
		var request Request
		assert.Equal(t, ErrEmptyQuery, UnmarshalHttpRequest(r, &request))
	})
}
