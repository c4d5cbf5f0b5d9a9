package federation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
)

const (
	joinGraphDirective = "join__graph"
	joinTypeDirective  = "join__type"
	joinFieldDirective = "join__field"
)

// ErrNoFederationDirectives is returned for documents without join__ graphs or types.
var ErrNoFederationDirectives = fmt.Errorf("couldn't find relevant directives in the supergraph schema")

// ParseSupergraph reads a composed supergraph SDL.
//
// Services are the values of the join__Graph enum, identified by the enum value name.
// Type membership and entity keys come from @join__type, field ownership from @join__field.
func ParseSupergraph(sdl string) (registry.Config, error) {
	document, parseErr := parser.ParseSchema(&ast.Source{Name: "supergraph", Input: sdl})
	if parseErr != nil {
		return registry.Config{}, parseErr
	}

	definitions := append(ast.DefinitionList{}, document.Definitions...)
	definitions = append(definitions, document.Extensions...)

	var config registry.Config
	services := map[string]struct{}{}
	for _, definition := range definitions {
		if definition.Kind != ast.Enum {
			continue
		}
		for _, value := range definition.EnumValues {
			directive := value.Directives.ForName(joinGraphDirective)
			if directive == nil {
				continue
			}
			if _, exists := services[value.Name]; exists {
				continue
			}
			services[value.Name] = struct{}{}
			config.Services = append(config.Services, registry.ServiceDescriptor{
				ID:  value.Name,
				URL: stringArgument(directive, "url"),
			})
		}
	}

	types := newTypeCollector()
	for _, definition := range definitions {
		if definition.Kind != ast.Object {
			continue
		}
		types.add(definition)
	}

	if len(config.Services) == 0 || len(types.order) == 0 {
		return registry.Config{}, ErrNoFederationDirectives
	}

	config.Fields, config.Entities = types.config()
	return config, nil
}

type supergraphType struct {
	graphs []string
	keys   []string
	fields map[string]registry.FieldConfiguration
	order  []string
}

type typeCollector struct {
	types map[string]*supergraphType
	order []string
}

func newTypeCollector() *typeCollector {
	return &typeCollector{types: map[string]*supergraphType{}}
}

// add merges a type definition or extension. Types without @join__type are kept when one of their
// fields is joined, as older supergraphs leave the root types untyped.
func (c *typeCollector) add(definition *ast.Definition) {
	current, ok := c.types[definition.Name]
	if !ok {
		current = &supergraphType{fields: map[string]registry.FieldConfiguration{}}
	}

	for _, directive := range definition.Directives.ForNames(joinTypeDirective) {
		graph := enumArgument(directive, "graph")
		if graph == "" {
			continue
		}
		current.graphs = append(current.graphs, graph)
		if len(current.keys) == 0 {
			if key := stringArgument(directive, "key"); key != "" {
				current.keys = strings.Fields(key)
			}
		}
	}
	if len(current.graphs) == 0 && !hasJoinedField(definition) {
		return
	}
	if !ok {
		c.types[definition.Name] = current
		c.order = append(c.order, definition.Name)
	}

	for _, field := range definition.Fields {
		if _, exists := current.fields[field.Name]; exists {
			continue
		}
		owner := fieldOwner(field)
		if owner == "" && len(current.graphs) > 0 {
			owner = current.graphs[0]
		}
		if owner == "" {
			continue
		}
		current.fields[field.Name] = registry.FieldConfiguration{
			TypeName:  definition.Name,
			FieldName: field.Name,
			ServiceID: owner,
			FieldType: field.Type.Name(),
		}
		current.order = append(current.order, field.Name)
	}
}

func hasJoinedField(definition *ast.Definition) bool {
	for _, field := range definition.Fields {
		if fieldOwner(field) != "" {
			return true
		}
	}
	return false
}

// fieldOwner returns the first graph resolving the field. External declarations don't resolve it.
func fieldOwner(field *ast.FieldDefinition) string {
	for _, directive := range field.Directives.ForNames(joinFieldDirective) {
		if boolArgument(directive, "external") {
			continue
		}
		if graph := enumArgument(directive, "graph"); graph != "" {
			return graph
		}
	}
	return ""
}

func (c *typeCollector) config() ([]registry.FieldConfiguration, []registry.EntityConfiguration) {
	names := append([]string(nil), c.order...)
	sort.Strings(names)

	var (
		fields   []registry.FieldConfiguration
		entities []registry.EntityConfiguration
	)
	for _, name := range names {
		current := c.types[name]
		for _, fieldName := range current.order {
			fields = append(fields, current.fields[fieldName])
		}
		if len(current.keys) > 0 {
			entities = append(entities, registry.EntityConfiguration{TypeName: name, KeyFields: current.keys})
		}
	}
	return fields, entities
}

func argumentValue(directive *ast.Directive, name string) *ast.Value {
	argument := directive.Arguments.ForName(name)
	if argument == nil {
		return nil
	}
	return argument.Value
}

func stringArgument(directive *ast.Directive, name string) string {
	value := argumentValue(directive, name)
	if value == nil || (value.Kind != ast.StringValue && value.Kind != ast.BlockValue) {
		return ""
	}
	return value.Raw
}

func enumArgument(directive *ast.Directive, name string) string {
	value := argumentValue(directive, name)
	if value == nil {
		return ""
	}
	switch value.Kind {
	case ast.EnumValue, ast.StringValue:
		return value.Raw
	default:
		return ""
	}
}

func boolArgument(directive *ast.Directive, name string) bool {
	value := argumentValue(directive, name)
	return value != nil && value.Kind == ast.BooleanValue && value.Raw == "true"
}
