// Package selection holds the normalized field selection tree the planner and the executor operate on.
//
// A selection tree is built once per incoming operation and treated as read-only afterwards.
// Order of Children and Arguments is significant and preserved everywhere.
package selection

import "strconv"

const (
	TypeNameFieldName = "__typename"
	SchemaFieldName   = "__schema"
	TypeFieldName     = "__type"

	keyAliasPrefix = "_key_"
)

type Argument struct {
	Name string
	// Value is a GraphQL literal, e.g. `"abc"`, `5`, `[1,2]` or `{a: true}`.
	Value string
}

type FieldSelection struct {
	Field     string
	Alias     string
	Arguments []Argument
	Children  []*FieldSelection
}

// ResponseKey returns the key under which the field appears in a response.
func (f *FieldSelection) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Field
}

func (f *FieldSelection) IsLeaf() bool {
	return len(f.Children) == 0
}

func (f *FieldSelection) IsTypeName() bool {
	return f.Field == TypeNameFieldName
}

// IsIntrospection reports whether f is one of the __schema and __type root fields.
func (f *FieldSelection) IsIntrospection() bool {
	return f.Field == SchemaFieldName || f.Field == TypeFieldName
}

// ShallowCopy copies the field without its children.
func (f *FieldSelection) ShallowCopy() *FieldSelection {
	out := &FieldSelection{
		Field: f.Field,
		Alias: f.Alias,
	}
	if len(f.Arguments) != 0 {
		out.Arguments = make([]Argument, len(f.Arguments))
		copy(out.Arguments, f.Arguments)
	}
	return out
}

func (f *FieldSelection) DeepCopy() *FieldSelection {
	out := f.ShallowCopy()
	if len(f.Children) != 0 {
		out.Children = DeepCopy(f.Children)
	}
	return out
}

func DeepCopy(fields []*FieldSelection) []*FieldSelection {
	out := make([]*FieldSelection, len(fields))
	for i := range fields {
		out[i] = fields[i].DeepCopy()
	}
	return out
}

// FindByResponseKey returns the selection answering under key, or nil.
func FindByResponseKey(fields []*FieldSelection, key string) *FieldSelection {
	for i := range fields {
		if fields[i].ResponseKey() == key {
			return fields[i]
		}
	}
	return nil
}

// CountLeaves returns the number of leaf selections in the tree.
func CountLeaves(fields []*FieldSelection) int {
	count := 0
	for i := range fields {
		if fields[i].IsLeaf() {
			count++
			continue
		}
		count += CountLeaves(fields[i].Children)
	}
	return count
}

// EnsureField returns the response key of a plain selection of fieldName (no arguments) in fields.
// If there is none, a selection is appended: unaliased when the response key is free, otherwise
// aliased with a "_key_" prefix. A response key is taken if it is used in fields or in any of the
// reserved sibling lists.
func EnsureField(fields []*FieldSelection, fieldName string, reserved ...[]*FieldSelection) (responseKey string, out []*FieldSelection) {
	for i := range fields {
		if fields[i].Field == fieldName && len(fields[i].Arguments) == 0 && fields[i].IsLeaf() {
			return fields[i].ResponseKey(), fields
		}
	}
	taken := func(key string) bool {
		if FindByResponseKey(fields, key) != nil {
			return true
		}
		for i := range reserved {
			if FindByResponseKey(reserved[i], key) != nil {
				return true
			}
		}
		return false
	}

	added := &FieldSelection{Field: fieldName}
	if taken(fieldName) {
		alias := keyAliasPrefix + fieldName
		for i := 1; taken(alias); i++ {
			alias = keyAliasPrefix + fieldName + "_" + strconv.Itoa(i)
		}
		added.Alias = alias
	}
	return added.ResponseKey(), append(fields, added)
}
