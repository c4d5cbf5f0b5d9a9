package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/jensneuse/abstractlogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/datasource/httpclient"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/resolve"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
)

type upstreamRequest struct {
	Query     string          `json:"query"`
	Variables json.RawMessage `json:"variables"`
}

func upstream(t *testing.T, responses map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request upstreamRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		response, ok := responses[request.Query]
		if !ok {
			t.Errorf("unexpected upstream query: %s", request.Query)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, response)
	}))
}

func newTestHandler(t *testing.T) http.Handler {
	locations := upstream(t, map[string]string{
		"query{locations{name id}}": `{"data":{"locations":[{"name":"Sydney","id":"1"}]}}`,
	})
	t.Cleanup(locations.Close)
	reviews := upstream(t, map[string]string{
		`query($representations: [_Any!]!){_entities(representations: $representations){... on Location{reviews{comment} id}}}`: `{"data":{"_entities":[{"reviews":[{"comment":"great"}],"id":"1"}]}}`,
	})
	t.Cleanup(reviews.Close)

	reg := registry.New(registry.Config{
		Services: []registry.ServiceDescriptor{
			{ID: "LOC", URL: locations.URL},
			{ID: "REV", URL: reviews.URL},
		},
		Fields: []registry.FieldConfiguration{
			{TypeName: "Query", FieldName: "locations", ServiceID: "LOC", FieldType: "Location"},
			{TypeName: "Location", FieldName: "id", ServiceID: "LOC", FieldType: "ID"},
			{TypeName: "Location", FieldName: "name", ServiceID: "LOC", FieldType: "String"},
			{TypeName: "Location", FieldName: "reviews", ServiceID: "REV", FieldType: "Review"},
			{TypeName: "Review", FieldName: "comment", ServiceID: "REV", FieldType: "String"},
		},
		Entities: []registry.EntityConfiguration{
			{TypeName: "Location", KeyFields: []string{"id"}},
		},
	})

	planCache, err := plan.NewCache(16, reg)
	require.NoError(t, err)
	executor := resolve.NewExecutor(reg, httpclient.NewTransport(httpclient.Options{}), resolve.Options{})
	return NewGatewayHandler(reg, planCache, executor, abstractlogger.NoopLogger)
}

func decodeErrors(t *testing.T, body []byte) graphqlerrors.Errors {
	var response struct {
		Errors graphqlerrors.Errors `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &response))
	return response.Errors
}

func TestGatewayHandler_ServeHTTP(t *testing.T) {
	handler := newTestHandler(t)
	const query = `query Locations { locations { name reviews { comment } } }`

	t.Run("should execute a post request across services", func(t *testing.T) {
		body, err := json.Marshal(map[string]string{"query": query})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, httpContentTypeApplicationJson, w.Header().Get(httpHeaderContentType))
		assert.NotEmpty(t, w.Header().Get(httpHeaderRequestID))
		assert.Equal(t, `{"data":{"locations":[{"name":"Sydney","reviews":[{"comment":"great"}]}]}}`, w.Body.String())
	})

	t.Run("should execute a get request", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(query), nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, jsonpatch.Equal([]byte(`{"data":{"locations":[{"reviews":[{"comment":"great"}],"name":"Sydney"}]}}`), w.Body.Bytes()), w.Body.String())
	})

	t.Run("should return 400 for malformed requests", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		errs := decodeErrors(t, w.Body.Bytes())
		require.Len(t, errs, 1)
		assert.Equal(t, graphqlerrors.CodeBadRequest, errs[0].Code())
	})

	t.Run("should return 400 when the operation cannot be planned", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ locations { rating } }"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		errs := decodeErrors(t, w.Body.Bytes())
		require.Len(t, errs, 1)
		assert.Equal(t, graphqlerrors.CodePlanningError, errs[0].Code())
		assert.Contains(t, errs[0].Message, "rating")
	})

	t.Run("should reject subscriptions", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"subscription { locations { name } }"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should return 405 for other methods", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/graphql", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
