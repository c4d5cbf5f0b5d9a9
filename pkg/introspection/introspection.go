// Package introspection takes the API schema of the supergraph and answers the __schema and __type
// introspection fields from it.
package introspection

import (
	"fmt"
)

type Data struct {
	Schema Schema `json:"__schema"`
}

type Schema struct {
	Description      *string     `json:"description"`
	QueryType        *TypeName   `json:"queryType"`
	MutationType     *TypeName   `json:"mutationType"`
	SubscriptionType *TypeName   `json:"subscriptionType"`
	Types            []*FullType `json:"types"`
	Directives       []Directive `json:"directives"`
	TypeName         string      `json:"__typename"`
	fullTypeMap      map[string]*FullType
}

func NewSchema() Schema {
	return Schema{
		Types:       make([]*FullType, 0),
		Directives:  make([]Directive, 0),
		TypeName:    "__Schema",
		fullTypeMap: make(map[string]*FullType),
	}
}

func (s *Schema) AddType(t *FullType) {
	s.Types = append(s.Types, t)
	s.fullTypeMap[t.Name] = t
}

func (s *Schema) TypeByName(name string) *FullType {
	return s.fullTypeMap[name]
}

// TypeName is the shape of the root operation types, only the name is exposed.
type TypeName struct {
	Name     string   `json:"name"`
	Kind     TypeKind `json:"kind"`
	TypeName string   `json:"__typename"`
}

// FullType is a named type. Lists that do not apply to a kind stay nil and are rendered as null.
type FullType struct {
	Kind           TypeKind `json:"kind"`
	Name           string   `json:"name"`
	Description    *string  `json:"description"`
	SpecifiedByURL *string  `json:"specifiedByURL"`
	// OBJECT and INTERFACE only
	Fields []Field `json:"fields"`
	// INPUT_OBJECT only
	InputFields []InputValue `json:"inputFields"`
	// OBJECT and INTERFACE only
	Interfaces []TypeRef `json:"interfaces"`
	// ENUM only
	EnumValues []EnumValue `json:"enumValues"`
	// INTERFACE and UNION only
	PossibleTypes []TypeRef `json:"possibleTypes"`
	TypeName      string    `json:"__typename"`
}

func NewFullType(kind TypeKind, name string) *FullType {
	t := &FullType{
		Kind:     kind,
		Name:     name,
		TypeName: "__Type",
	}
	switch kind {
	case OBJECT:
		t.Fields = make([]Field, 0)
		t.Interfaces = make([]TypeRef, 0)
	case INTERFACE:
		t.Fields = make([]Field, 0)
		t.Interfaces = make([]TypeRef, 0)
		t.PossibleTypes = make([]TypeRef, 0)
	case UNION:
		t.PossibleTypes = make([]TypeRef, 0)
	case ENUM:
		t.EnumValues = make([]EnumValue, 0)
	case INPUT_OBJECT:
		t.InputFields = make([]InputValue, 0)
	}
	return t
}

type TypeKind int

const (
	SCALAR TypeKind = iota
	LIST
	NON_NULL
	OBJECT
	ENUM
	INTERFACE
	UNION
	INPUT_OBJECT
)

var typeKindNames = [...]string{"SCALAR", "LIST", "NON_NULL", "OBJECT", "ENUM", "INTERFACE", "UNION", "INPUT_OBJECT"}

func (x TypeKind) String() string {
	if x < 0 || int(x) >= len(typeKindNames) {
		return fmt.Sprintf("TypeKind(%d)", int(x))
	}
	return typeKindNames[x]
}

func (x TypeKind) MarshalText() ([]byte, error) {
	if x < 0 || int(x) >= len(typeKindNames) {
		return nil, fmt.Errorf("%d is not a valid TypeKind", int(x))
	}
	return []byte(x.String()), nil
}

func (x *TypeKind) UnmarshalText(text []byte) error {
	for i, name := range typeKindNames {
		if name == string(text) {
			*x = TypeKind(i)
			return nil
		}
	}
	return fmt.Errorf("%s is not a valid TypeKind", text)
}

type TypeRef struct {
	Kind     TypeKind `json:"kind"`
	Name     *string  `json:"name"`
	OfType   *TypeRef `json:"ofType"`
	TypeName string   `json:"__typename"`
}

type Field struct {
	Name              string       `json:"name"`
	Description       *string      `json:"description"`
	Args              []InputValue `json:"args"`
	Type              TypeRef      `json:"type"`
	IsDeprecated      bool         `json:"isDeprecated"`
	DeprecationReason *string      `json:"deprecationReason"`
	TypeName          string       `json:"__typename"`
}

func NewField(name string) Field {
	return Field{
		Name:     name,
		Args:     make([]InputValue, 0),
		TypeName: "__Field",
	}
}

type EnumValue struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	IsDeprecated      bool    `json:"isDeprecated"`
	DeprecationReason *string `json:"deprecationReason"`
	TypeName          string  `json:"__typename"`
}

type InputValue struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	Type              TypeRef `json:"type"`
	DefaultValue      *string `json:"defaultValue"`
	IsDeprecated      bool    `json:"isDeprecated"`
	DeprecationReason *string `json:"deprecationReason"`
	TypeName          string  `json:"__typename"`
}

type Directive struct {
	Name         string       `json:"name"`
	Description  *string      `json:"description"`
	Locations    []string     `json:"locations"`
	Args         []InputValue `json:"args"`
	IsRepeatable bool         `json:"isRepeatable"`
	TypeName     string       `json:"__typename"`
}

func NewDirective(name string) Directive {
	return Directive{
		Name:      name,
		Locations: make([]string, 0),
		Args:      make([]InputValue, 0),
		TypeName:  "__Directive",
	}
}
