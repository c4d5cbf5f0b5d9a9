package resolve

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/wundergraph/astjson"
	"github.com/wundergraph/go-arena"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

// Response is the merged result of a plan execution.
type Response struct {
	// Data is the JSON object shaped after the client selection.
	Data   json.RawMessage
	Errors graphqlerrors.Errors
}

func (r *Response) HasErrors() bool {
	return len(r.Errors) > 0
}

// Marshal renders the GraphQL response envelope, errors first.
func (r *Response) Marshal() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	if len(r.Errors) > 0 {
		errs, err := marshalJSON(r.Errors)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`"errors":`)
		buf.Write(errs)
		buf.WriteByte(',')
	}
	buf.WriteString(`"data":`)
	if len(r.Data) == 0 {
		buf.WriteString("null")
	} else {
		buf.Write(r.Data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Response) WriteTo(w io.Writer) (int64, error) {
	out, err := r.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(out)
	return int64(n), err
}

// render projects the working tree onto the client selection. Synthetic key fields are dropped,
// field order follows the selection and absent fields become null.
func render(a arena.Arena, selections []*selection.FieldSelection, data *astjson.Value, rootTypeName string) json.RawMessage {
	return renderObject(a, selections, data, rootTypeName).MarshalTo(nil)
}

// renderObject projects object on fields. typeName is only set for the root object,
// nested objects carry __typename as returned by the services.
func renderObject(a arena.Arena, fields []*selection.FieldSelection, object *astjson.Value, typeName string) *astjson.Value {
	out := astjson.ObjectValue(a)
	written := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		key := field.ResponseKey()
		if _, ok := written[key]; ok {
			continue
		}
		written[key] = struct{}{}

		value := object.Get(key)
		if value == nil && typeName != "" && field.IsTypeName() {
			value = astjson.StringValue(a, typeName)
		}
		out.Set(a, key, renderValue(a, field, value))
	}
	return out
}

func renderValue(a arena.Arena, field *selection.FieldSelection, value *astjson.Value) *astjson.Value {
	if astjson.ValueIsNull(value) {
		return astjson.NullValue
	}
	if field.IsLeaf() {
		return value
	}
	switch value.Type() {
	case astjson.TypeObject:
		return renderObject(a, field.Children, value, "")
	case astjson.TypeArray:
		out := astjson.ArrayValue(a)
		for _, item := range value.GetArray() {
			astjson.AppendToArray(out, renderValue(a, field, item))
		}
		return out
	}
	return value
}
