package graphql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

var ErrSubscriptionNotSupported = errors.New("subscriptions are not supported")

// TypeResolver resolves the named return type of a field. *registry.Registry implements it.
type TypeResolver interface {
	FieldType(typeName, fieldName string) (string, error)
}

// Operation is a client operation reduced to plain field selections.
type Operation struct {
	Type       plan.OperationType
	Name       string
	Selections []*selection.FieldSelection
}

// Operation parses the query and selects the operation to execute.
// Fragments are expanded, @skip and @include are applied and variables are inlined as literals.
// With a nil types resolver fragment type conditions are not checked.
func (r *Request) Operation(types TypeResolver) (*Operation, error) {
	document, parseErr := parser.ParseQuery(&ast.Source{Name: "request", Input: r.Query})
	if parseErr != nil {
		return nil, requestError(parseErr)
	}

	operation, err := selectOperation(document.Operations, r.OperationName)
	if err != nil {
		return nil, err
	}

	var operationType plan.OperationType
	switch operation.Operation {
	case ast.Query:
		operationType = plan.OperationTypeQuery
	case ast.Mutation:
		operationType = plan.OperationTypeMutation
	default:
		return nil, ErrSubscriptionNotSupported
	}
	rootTypeName, err := operationType.RootTypeName()
	if err != nil {
		return nil, err
	}

	variables, err := r.variables()
	if err != nil {
		return nil, err
	}

	c := &converter{
		fragments: document.Fragments,
		variables: variables,
		defaults:  map[string]*ast.Value{},
		types:     types,
	}
	for _, definition := range operation.VariableDefinitions {
		if definition.DefaultValue != nil {
			c.defaults[definition.Variable] = definition.DefaultValue
		}
	}

	selections, err := c.selectionSet(operation.SelectionSet, rootTypeName, nil)
	if err != nil {
		return nil, err
	}

	return &Operation{
		Type:       operationType,
		Name:       operation.Name,
		Selections: selections,
	}, nil
}

func selectOperation(operations ast.OperationList, name string) (*ast.OperationDefinition, error) {
	if len(operations) == 0 {
		return nil, errors.New("the document does not contain an operation")
	}
	if name == "" {
		if len(operations) > 1 {
			return nil, errors.New("operation name is required when the document contains multiple operations")
		}
		return operations[0], nil
	}
	for _, operation := range operations {
		if operation.Name == name {
			return operation, nil
		}
	}
	return nil, fmt.Errorf("operation '%s' not found", name)
}

type converter struct {
	fragments ast.FragmentDefinitionList
	variables map[string]interface{}
	defaults  map[string]*ast.Value
	types     TypeResolver
}

func (c *converter) selectionSet(set ast.SelectionSet, typeName string, visiting []string) ([]*selection.FieldSelection, error) {
	var out []*selection.FieldSelection
	for _, item := range set {
		switch s := item.(type) {
		case *ast.Field:
			include, err := c.included(s.Directives)
			if err != nil {
				return nil, err
			}
			if !include {
				continue
			}
			field, err := c.field(s, typeName, visiting)
			if err != nil {
				return nil, err
			}
			out = mergeField(out, field)
		case *ast.InlineFragment:
			include, err := c.included(s.Directives)
			if err != nil {
				return nil, err
			}
			if !include || !typeConditionMatches(s.TypeCondition, typeName) {
				continue
			}
			fields, err := c.selectionSet(s.SelectionSet, typeName, visiting)
			if err != nil {
				return nil, err
			}
			out = mergeFields(out, fields)
		case *ast.FragmentSpread:
			include, err := c.included(s.Directives)
			if err != nil {
				return nil, err
			}
			if !include {
				continue
			}
			fields, err := c.fragmentSpread(s, typeName, visiting)
			if err != nil {
				return nil, err
			}
			out = mergeFields(out, fields)
		}
	}
	return out, nil
}

func (c *converter) fragmentSpread(spread *ast.FragmentSpread, typeName string, visiting []string) ([]*selection.FieldSelection, error) {
	for _, name := range visiting {
		if name == spread.Name {
			return nil, fmt.Errorf("fragment '%s' spreads itself", spread.Name)
		}
	}
	fragment := c.fragments.ForName(spread.Name)
	if fragment == nil {
		return nil, fmt.Errorf("fragment '%s' is not defined", spread.Name)
	}
	if !typeConditionMatches(fragment.TypeCondition, typeName) {
		return nil, nil
	}
	return c.selectionSet(fragment.SelectionSet, typeName, append(append([]string(nil), visiting...), spread.Name))
}

// typeConditionMatches is true for an empty condition, an unknown enclosing type or an equal type name.
func typeConditionMatches(condition, typeName string) bool {
	return condition == "" || typeName == "" || condition == typeName
}

func (c *converter) field(f *ast.Field, parentTypeName string, visiting []string) (*selection.FieldSelection, error) {
	out := &selection.FieldSelection{Field: f.Name}
	if f.Alias != "" && f.Alias != f.Name {
		out.Alias = f.Alias
	}

	for _, argument := range f.Arguments {
		value, err := c.literal(argument.Value)
		if err != nil {
			return nil, err
		}
		out.Arguments = append(out.Arguments, selection.Argument{Name: argument.Name, Value: value})
	}

	if len(f.SelectionSet) == 0 {
		return out, nil
	}

	// introspection types are not in the registry, their fragments are not checked
	typeName := ""
	if c.types != nil && parentTypeName != "" && f.Name != selection.TypeNameFieldName &&
		f.Name != selection.SchemaFieldName && f.Name != selection.TypeFieldName {
		fieldType, err := c.types.FieldType(parentTypeName, f.Name)
		if err != nil {
			return nil, err
		}
		typeName = fieldType
	}

	children, err := c.selectionSet(f.SelectionSet, typeName, visiting)
	if err != nil {
		return nil, err
	}
	out.Children = children
	return out, nil
}

// included evaluates @skip(if:) and @include(if:).
func (c *converter) included(directives ast.DirectiveList) (bool, error) {
	if skip := directives.ForName("skip"); skip != nil {
		value, err := c.condition(skip)
		if err != nil {
			return false, err
		}
		if value {
			return false, nil
		}
	}
	if include := directives.ForName("include"); include != nil {
		return c.condition(include)
	}
	return true, nil
}

func (c *converter) condition(directive *ast.Directive) (bool, error) {
	argument := directive.Arguments.ForName("if")
	if argument == nil || argument.Value == nil {
		return false, fmt.Errorf("directive @%s requires argument 'if'", directive.Name)
	}
	if argument.Value.Kind == ast.Variable {
		value, ok := c.variables[argument.Value.Raw]
		if !ok {
			if defaultValue, hasDefault := c.defaults[argument.Value.Raw]; hasDefault {
				return defaultValue.Raw == "true", nil
			}
		}
		condition, ok := value.(bool)
		if !ok {
			return false, fmt.Errorf("variable '$%s' of directive @%s must be a Boolean", argument.Value.Raw, directive.Name)
		}
		return condition, nil
	}
	if argument.Value.Kind != ast.BooleanValue {
		return false, fmt.Errorf("argument 'if' of directive @%s must be a Boolean", directive.Name)
	}
	return argument.Value.Raw == "true", nil
}

// literal renders value as GraphQL literal with all variables replaced.
func (c *converter) literal(value *ast.Value) (string, error) {
	if value == nil {
		return "null", nil
	}
	switch value.Kind {
	case ast.Variable:
		if variable, ok := c.variables[value.Raw]; ok {
			return jsonLiteral(variable)
		}
		if defaultValue, ok := c.defaults[value.Raw]; ok {
			return c.literal(defaultValue)
		}
		return "null", nil
	case ast.StringValue, ast.BlockValue:
		return jsonLiteral(value.Raw)
	case ast.ListValue:
		items := make([]string, 0, len(value.Children))
		for _, child := range value.Children {
			item, err := c.literal(child.Value)
			if err != nil {
				return "", err
			}
			items = append(items, item)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	case ast.ObjectValue:
		fields := make([]string, 0, len(value.Children))
		for _, child := range value.Children {
			item, err := c.literal(child.Value)
			if err != nil {
				return "", err
			}
			fields = append(fields, child.Name+": "+item)
		}
		return "{" + strings.Join(fields, ", ") + "}", nil
	default:
		return value.Raw, nil
	}
}

// jsonLiteral converts a JSON variable value into a GraphQL literal. Object keys are sorted.
func jsonLiteral(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "null", nil
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			literal, err := jsonLiteral(item)
			if err != nil {
				return "", err
			}
			items = append(items, literal)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fields := make([]string, 0, len(keys))
		for _, key := range keys {
			literal, err := jsonLiteral(v[key])
			if err != nil {
				return "", err
			}
			fields = append(fields, key+": "+literal)
		}
		return "{" + strings.Join(fields, ", ") + "}", nil
	default:
		buf := &bytes.Buffer{}
		encoder := json.NewEncoder(buf)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(v); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	}
}

// mergeField adds field to fields. Fields sharing a response key are merged into the first occurrence.
func mergeField(fields []*selection.FieldSelection, field *selection.FieldSelection) []*selection.FieldSelection {
	existing := selection.FindByResponseKey(fields, field.ResponseKey())
	if existing == nil {
		return append(fields, field)
	}
	existing.Children = mergeFields(existing.Children, field.Children)
	return fields
}

func mergeFields(fields, add []*selection.FieldSelection) []*selection.FieldSelection {
	for _, field := range add {
		fields = mergeField(fields, field)
	}
	return fields
}

func requestError(err error) error {
	var gqlErr *gqlerror.Error
	if !errors.As(err, &gqlErr) {
		return err
	}
	out := graphqlerrors.Error{
		Message:    gqlErr.Message,
		Extensions: map[string]interface{}{"code": graphqlerrors.CodeBadRequest},
	}
	for _, location := range gqlErr.Locations {
		out.Locations = append(out.Locations, graphqlerrors.Location{Line: location.Line, Column: location.Column})
	}
	return graphqlerrors.Errors{out}
}

var _ TypeResolver = (*registry.Registry)(nil)
