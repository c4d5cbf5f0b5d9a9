package selection

import (
	"strings"
)

// Print renders fields as a GraphQL selection set body without the enclosing braces,
// e.g. `id name reviews{comment rating}`.
func Print(fields []*FieldSelection) string {
	builder := &strings.Builder{}
	printFields(builder, fields)
	return builder.String()
}

func (f *FieldSelection) String() string {
	builder := &strings.Builder{}
	printField(builder, f)
	return builder.String()
}

func printFields(builder *strings.Builder, fields []*FieldSelection) {
	for i := range fields {
		if i != 0 {
			builder.WriteByte(' ')
		}
		printField(builder, fields[i])
	}
}

func printField(builder *strings.Builder, field *FieldSelection) {
	if field.Alias != "" && field.Alias != field.Field {
		builder.WriteString(field.Alias)
		builder.WriteString(": ")
	}
	builder.WriteString(field.Field)
	if len(field.Arguments) != 0 {
		builder.WriteByte('(')
		for i := range field.Arguments {
			if i != 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(field.Arguments[i].Name)
			builder.WriteString(": ")
			builder.WriteString(field.Arguments[i].Value)
		}
		builder.WriteByte(')')
	}
	if len(field.Children) != 0 {
		builder.WriteByte('{')
		printFields(builder, field.Children)
		builder.WriteByte('}')
	}
}
