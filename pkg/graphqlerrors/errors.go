// Package graphqlerrors contains the GraphQL response error types shared by the planner, the executor
// and the HTTP layer.
package graphqlerrors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	CodeTransportError           = "TRANSPORT_ERROR"
	CodeUpstreamError            = "UPSTREAM_ERROR"
	CodeEntityResolutionMismatch = "ENTITY_RESOLUTION_MISMATCH"
	CodeBadRequest               = "BAD_REQUEST"
	CodePlanningError            = "PLANNING_ERROR"
	CodeIntrospectionError       = "INTROSPECTION_ERROR"
)

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Path points into the data object of a response. Elements are response keys (string) or list indices (int).
type Path []interface{}

func (p Path) String() string {
	elements := make([]string, len(p))
	for i := range p {
		switch element := p[i].(type) {
		case string:
			elements[i] = element
		case int:
			elements[i] = strconv.Itoa(element)
		default:
			elements[i] = fmt.Sprintf("%v", element)
		}
	}
	return strings.Join(elements, ".")
}

// UnmarshalJSON keeps list indices as int instead of float64.
func (p *Path) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw []interface{}
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	out := make(Path, 0, len(raw))
	for _, element := range raw {
		switch e := element.(type) {
		case json.Number:
			index, err := e.Int64()
			if err != nil {
				return err
			}
			out = append(out, int(index))
		case string:
			out = append(out, e)
		default:
			return fmt.Errorf("invalid path element %v", element)
		}
	}
	*p = out
	return nil
}

type Error struct {
	Message    string                 `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Path       Path                   `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func (e Error) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s, path: %s", e.Message, e.Path.String())
}

func (e Error) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

type Errors []Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "no error"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e[0].Error(), len(e)-1)
}

func (e Errors) Count() int {
	return len(e)
}

// WriteResponse writes the errors as a GraphQL response without data.
// It should only be used for errors that happen before execution, e.g. request or planning errors.
func (e Errors) WriteResponse(writer io.Writer) (n int, err error) {
	responseBytes, err := Response{Errors: e}.Marshal()
	if err != nil {
		return 0, err
	}
	return writer.Write(responseBytes)
}

// ErrorsFromError converts any error into response errors with the given extension code.
func ErrorsFromError(err error, code string) Errors {
	switch e := err.(type) {
	case Errors:
		return e
	case Error:
		return Errors{e}
	}
	out := Error{Message: err.Error()}
	if code != "" {
		out.Extensions = map[string]interface{}{"code": code}
	}
	return Errors{out}
}

// Response is a GraphQL response envelope used for errors raised before execution.
type Response struct {
	Errors Errors      `json:"errors,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func (r Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
