package graphql

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

var (
	ErrEmptyRequest     = errors.New("the provided request is empty")
	ErrEmptyQuery       = errors.New("the provided request does not contain a query")
	ErrInvalidVariables = errors.New("variables must be a JSON object")
)

type Request struct {
	OperationName string          `json:"operationName"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	Query         string          `json:"query"`
}

func UnmarshalRequest(reader io.Reader, request *Request) error {
	requestBytes, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if len(requestBytes) == 0 {
		return ErrEmptyRequest
	}

	if err := json.Unmarshal(requestBytes, &request); err != nil {
		return err
	}
	if request.Query == "" {
		return ErrEmptyQuery
	}
	return nil
}

// UnmarshalHttpRequest reads a request from the JSON body of a POST or the query, operationName and variables
// URL parameters of a GET.
func UnmarshalHttpRequest(r *http.Request, request *Request) error {
	if r.Method != http.MethodGet {
		return UnmarshalRequest(r.Body, request)
	}
	return unmarshalQueryParams(r.URL.Query(), request)
}

func unmarshalQueryParams(params url.Values, request *Request) error {
	request.Query = params.Get("query")
	request.OperationName = params.Get("operationName")
	if variables := params.Get("variables"); variables != "" {
		if !gjson.Valid(variables) || !gjson.Parse(variables).IsObject() {
			return ErrInvalidVariables
		}
		request.Variables = json.RawMessage(variables)
	}
	if request.Query == "" {
		return ErrEmptyQuery
	}
	return nil
}

func (r *Request) variables() (map[string]interface{}, error) {
	if len(r.Variables) == 0 || gjson.ParseBytes(r.Variables).Type == gjson.Null {
		return map[string]interface{}{}, nil
	}
	if !gjson.ValidBytes(r.Variables) || !gjson.ParseBytes(r.Variables).IsObject() {
		return nil, ErrInvalidVariables
	}
	decoder := json.NewDecoder(bytes.NewReader(r.Variables))
	decoder.UseNumber()
	var variables map[string]interface{}
	if err := decoder.Decode(&variables); err != nil {
		return nil, ErrInvalidVariables
	}
	if variables == nil {
		variables = map[string]interface{}{}
	}
	return variables, nil
}
