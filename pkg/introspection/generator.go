package introspection

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

const (
	deprecatedDirective   = "deprecated"
	specifiedByDirective  = "specifiedBy"
	inaccessibleDirective = "inaccessible"

	defaultDeprecationReason = "No longer supported"
)

// federationDirectives are composition and routing machinery, they are not part of the API schema.
var federationDirectives = map[string]struct{}{
	"core":         {},
	"link":         {},
	"inaccessible": {},
	"tag":          {},
}

var federationPrefixes = []string{"join__", "link__", "core__"}

// Generator builds introspection Data from a schema document. The built-in scalars, directives and
// introspection types are added from the gqlparser prelude.
type Generator struct {
	types      map[string]*ast.Definition
	typeNames  []string
	directives []*ast.DirectiveDefinition
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate fills data with the API schema of document. Federation types and directives as well as
// @inaccessible types, fields and enum values are left out.
func (g *Generator) Generate(document *ast.SchemaDocument, data *Data) error {
	if document == nil {
		return errors.New("no schema document")
	}
	prelude, err := parser.ParseSchema(validator.Prelude)
	if err != nil {
		return errors.Wrap(err, "parse prelude")
	}

	g.types = map[string]*ast.Definition{}
	g.typeNames = nil
	g.directives = nil
	g.collect(prelude)
	g.collect(document)
	sort.Strings(g.typeNames)

	schema := NewSchema()
	for _, name := range g.typeNames {
		definition := g.types[name]
		if isFederationName(name) || isInaccessible(definition.Directives) {
			continue
		}
		schema.AddType(g.fullType(definition))
	}
	for _, directive := range g.directives {
		if isFederationDirective(directive.Name) {
			continue
		}
		schema.Directives = append(schema.Directives, g.directive(directive))
	}

	query, mutation, subscription := rootTypeNames(prelude, document)
	if schema.TypeByName(query) == nil {
		return errors.Errorf("query root type '%s' is not defined", query)
	}
	schema.QueryType = g.rootType(&schema, query)
	schema.MutationType = g.rootType(&schema, mutation)
	schema.SubscriptionType = g.rootType(&schema, subscription)
	for i := range document.Schema {
		schema.Description = description(document.Schema[i].Description)
	}

	data.Schema = schema
	return nil
}

// collect merges definitions and extensions by name in order of appearance.
func (g *Generator) collect(document *ast.SchemaDocument) {
	for _, list := range []ast.DefinitionList{document.Definitions, document.Extensions} {
		for _, definition := range list {
			existing, ok := g.types[definition.Name]
			if !ok {
				copied := *definition
				copied.Interfaces = append([]string(nil), definition.Interfaces...)
				copied.Fields = append(ast.FieldList(nil), definition.Fields...)
				copied.EnumValues = append(ast.EnumValueList(nil), definition.EnumValues...)
				copied.Types = append([]string(nil), definition.Types...)
				copied.Directives = append(ast.DirectiveList(nil), definition.Directives...)
				g.types[definition.Name] = &copied
				g.typeNames = append(g.typeNames, definition.Name)
				continue
			}
			existing.Interfaces = append(existing.Interfaces, definition.Interfaces...)
			existing.Fields = append(existing.Fields, definition.Fields...)
			existing.EnumValues = append(existing.EnumValues, definition.EnumValues...)
			existing.Types = append(existing.Types, definition.Types...)
			existing.Directives = append(existing.Directives, definition.Directives...)
			if existing.Description == "" {
				existing.Description = definition.Description
			}
		}
	}
	for _, directive := range document.Directives {
		if g.hasDirective(directive.Name) {
			continue
		}
		g.directives = append(g.directives, directive)
	}
}

func (g *Generator) hasDirective(name string) bool {
	for i := range g.directives {
		if g.directives[i].Name == name {
			return true
		}
	}
	return false
}

func (g *Generator) rootType(schema *Schema, name string) *TypeName {
	fullType := schema.TypeByName(name)
	if fullType == nil {
		return nil
	}
	return &TypeName{Name: fullType.Name, Kind: fullType.Kind, TypeName: "__Type"}
}

func (g *Generator) fullType(definition *ast.Definition) *FullType {
	fullType := NewFullType(kindOf(definition.Kind), definition.Name)
	fullType.Description = description(definition.Description)

	switch definition.Kind {
	case ast.Scalar:
		if directive := definition.Directives.ForName(specifiedByDirective); directive != nil {
			if argument := directive.Arguments.ForName("url"); argument != nil && argument.Value != nil {
				url := argument.Value.Raw
				fullType.SpecifiedByURL = &url
			}
		}
	case ast.Object, ast.Interface:
		for _, field := range definition.Fields {
			if strings.HasPrefix(field.Name, "__") || isInaccessible(field.Directives) {
				continue
			}
			fullType.Fields = append(fullType.Fields, g.field(field))
		}
		for _, name := range definition.Interfaces {
			fullType.Interfaces = append(fullType.Interfaces, g.namedRef(name))
		}
		if definition.Kind == ast.Interface {
			fullType.PossibleTypes = g.implementations(definition.Name)
		}
	case ast.Union:
		for _, name := range definition.Types {
			fullType.PossibleTypes = append(fullType.PossibleTypes, g.namedRef(name))
		}
	case ast.Enum:
		for _, value := range definition.EnumValues {
			if isInaccessible(value.Directives) {
				continue
			}
			enumValue := EnumValue{
				Name:        value.Name,
				Description: description(value.Description),
				TypeName:    "__EnumValue",
			}
			enumValue.IsDeprecated, enumValue.DeprecationReason = deprecation(value.Directives)
			fullType.EnumValues = append(fullType.EnumValues, enumValue)
		}
	case ast.InputObject:
		for _, field := range definition.Fields {
			if isInaccessible(field.Directives) {
				continue
			}
			fullType.InputFields = append(fullType.InputFields, g.inputValue(field.Name, field.Description, field.Type, field.DefaultValue, field.Directives))
		}
	}
	return fullType
}

func (g *Generator) field(definition *ast.FieldDefinition) Field {
	field := NewField(definition.Name)
	field.Description = description(definition.Description)
	field.Type = g.typeRef(definition.Type)
	field.IsDeprecated, field.DeprecationReason = deprecation(definition.Directives)
	for _, argument := range definition.Arguments {
		if isInaccessible(argument.Directives) {
			continue
		}
		field.Args = append(field.Args, g.inputValue(argument.Name, argument.Description, argument.Type, argument.DefaultValue, argument.Directives))
	}
	return field
}

func (g *Generator) inputValue(name, desc string, typ *ast.Type, defaultValue *ast.Value, directives ast.DirectiveList) InputValue {
	value := InputValue{
		Name:        name,
		Description: description(desc),
		Type:        g.typeRef(typ),
		TypeName:    "__InputValue",
	}
	if defaultValue != nil {
		literal := defaultValue.String()
		value.DefaultValue = &literal
	}
	value.IsDeprecated, value.DeprecationReason = deprecation(directives)
	return value
}

func (g *Generator) directive(definition *ast.DirectiveDefinition) Directive {
	directive := NewDirective(definition.Name)
	directive.Description = description(definition.Description)
	directive.IsRepeatable = definition.IsRepeatable
	for _, location := range definition.Locations {
		directive.Locations = append(directive.Locations, string(location))
	}
	for _, argument := range definition.Arguments {
		directive.Args = append(directive.Args, g.inputValue(argument.Name, argument.Description, argument.Type, argument.DefaultValue, argument.Directives))
	}
	return directive
}

func (g *Generator) typeRef(typ *ast.Type) TypeRef {
	if typ.NonNull {
		nullable := *typ
		nullable.NonNull = false
		ofType := g.typeRef(&nullable)
		return TypeRef{Kind: NON_NULL, OfType: &ofType, TypeName: "__Type"}
	}
	if typ.Elem != nil {
		ofType := g.typeRef(typ.Elem)
		return TypeRef{Kind: LIST, OfType: &ofType, TypeName: "__Type"}
	}
	return g.namedRef(typ.NamedType)
}

func (g *Generator) namedRef(name string) TypeRef {
	kind := SCALAR
	if definition, ok := g.types[name]; ok {
		kind = kindOf(definition.Kind)
	}
	typeName := name
	return TypeRef{Kind: kind, Name: &typeName, TypeName: "__Type"}
}

// implementations returns the object and interface types implementing the interface, sorted by name.
func (g *Generator) implementations(interfaceName string) []TypeRef {
	out := make([]TypeRef, 0)
	for _, name := range g.typeNames {
		definition := g.types[name]
		if isInaccessible(definition.Directives) {
			continue
		}
		for _, implemented := range definition.Interfaces {
			if implemented == interfaceName {
				out = append(out, g.namedRef(name))
				break
			}
		}
	}
	return out
}

// rootTypeNames reads the schema definition. Without one the conventional names are used.
func rootTypeNames(documents ...*ast.SchemaDocument) (query, mutation, subscription string) {
	query, mutation, subscription = "Query", "Mutation", "Subscription"
	for _, document := range documents {
		for _, list := range []ast.SchemaDefinitionList{document.Schema, document.SchemaExtension} {
			for _, definition := range list {
				for _, operationType := range definition.OperationTypes {
					switch operationType.Operation {
					case ast.Query:
						query = operationType.Type
					case ast.Mutation:
						mutation = operationType.Type
					case ast.Subscription:
						subscription = operationType.Type
					}
				}
			}
		}
	}
	return query, mutation, subscription
}

func kindOf(kind ast.DefinitionKind) TypeKind {
	switch kind {
	case ast.Object:
		return OBJECT
	case ast.Interface:
		return INTERFACE
	case ast.Union:
		return UNION
	case ast.Enum:
		return ENUM
	case ast.InputObject:
		return INPUT_OBJECT
	default:
		return SCALAR
	}
}

func deprecation(directives ast.DirectiveList) (bool, *string) {
	directive := directives.ForName(deprecatedDirective)
	if directive == nil {
		return false, nil
	}
	reason := defaultDeprecationReason
	if argument := directive.Arguments.ForName("reason"); argument != nil && argument.Value != nil {
		reason = argument.Value.Raw
	}
	return true, &reason
}

func description(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func isInaccessible(directives ast.DirectiveList) bool {
	return directives.ForName(inaccessibleDirective) != nil
}

func isFederationName(name string) bool {
	for _, prefix := range federationPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func isFederationDirective(name string) bool {
	if _, ok := federationDirectives[name]; ok {
		return true
	}
	return isFederationName(name)
}
