package graphql

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalRequest(t *testing.T) {
	t.Run("should return error when request is empty", func(t *testing.T) {
		var request Request
		err := UnmarshalRequest(bytes.NewBuffer(nil), &request)

		assert.Equal(t, ErrEmptyRequest, err)
	})

	t.Run("should return error when query is missing", func(t *testing.T) {
		var request Request
		err := UnmarshalRequest(bytes.NewBufferString(`{"operationName":"Hello"}`), &request)

		assert.Equal(t, ErrEmptyQuery, err)
	})

	t.Run("should return error for malformed json", func(t *testing.T) {
		var request Request
		err := UnmarshalRequest(bytes.NewBufferString(`{"query":`), &request)

		assert.Error(t, err)
	})

	t.Run("should successfully unmarshal request", func(t *testing.T) {
		requestBytes := []byte(`{"operationName": "Hello", "variables": {"id": "1"}, "query": "query Hello { hello }"}`)

		var request Request
		err := UnmarshalRequest(bytes.NewBuffer(requestBytes), &request)

		require.NoError(t, err)
		assert.Equal(t, "Hello", request.OperationName)
		assert.Equal(t, "query Hello { hello }", request.Query)
		assert.JSONEq(t, `{"id":"1"}`, string(request.Variables))
	})
}

func TestRequest_variables(t *testing.T) {
	t.Run("absent and null variables are empty", func(t *testing.T) {
		for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`)} {
			request := Request{Query: "{ hello }", Variables: raw}
			variables, err := request.variables()
			require.NoError(t, err)
			assert.Empty(t, variables)
		}
	})

	t.Run("numbers keep their literal form", func(t *testing.T) {
		request := Request{Query: "{ hello }", Variables: json.RawMessage(`{"limit": 10, "ratio": 0.5}`)}
		variables, err := request.variables()
		require.NoError(t, err)
		assert.Equal(t, json.Number("10"), variables["limit"])
		assert.Equal(t, json.Number("0.5"), variables["ratio"])
	})

	t.Run("variables must be an object", func(t *testing.T) {
		for _, raw := range []string{`""`, `[1,2]`, `{"a":`} {
			request := Request{Query: "{ hello }", Variables: json.RawMessage(raw)}
			_, err := request.variables()
			assert.Equal(t, ErrInvalidVariables, err, raw)
		}
	})
}
