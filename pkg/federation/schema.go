package federation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
)

var builtInScalars = map[string]struct{}{
	"String":  {},
	"Int":     {},
	"Float":   {},
	"Boolean": {},
	"ID":      {},
}

// LoadSchemaFile reads the schema document the gateway exposes for introspection. A supergraph SDL is
// returned as parsed, for a YAML config the document is derived from the configured types.
func LoadSchemaFile(path string) (*ast.SchemaDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		config, err := ParseConfigYAML(content)
		if err != nil {
			return nil, errors.WithMessagef(err, "load config '%s'", path)
		}
		return SchemaDocument(config), nil
	case ".graphql", ".graphqls":
		document, parseErr := parser.ParseSchema(&ast.Source{Name: path, Input: string(content)})
		if parseErr != nil {
			return nil, errors.WithMessagef(parseErr, "load supergraph '%s'", path)
		}
		return document, nil
	default:
		return nil, fmt.Errorf("unsupported config file extension '%s'", filepath.Ext(path))
	}
}

// SchemaDocument builds object types from the field configurations. Fields are nullable and take no
// arguments, types that are referenced but not configured become scalars.
func SchemaDocument(config registry.Config) *ast.SchemaDocument {
	document := &ast.SchemaDocument{}
	objects := map[string]*ast.Definition{}
	for _, field := range config.Fields {
		object, ok := objects[field.TypeName]
		if !ok {
			object = &ast.Definition{Kind: ast.Object, Name: field.TypeName}
			objects[field.TypeName] = object
			document.Definitions = append(document.Definitions, object)
		}
		object.Fields = append(object.Fields, &ast.FieldDefinition{
			Name: field.FieldName,
			Type: ast.NamedType(field.FieldType, nil),
		})
	}

	scalars := map[string]struct{}{}
	for _, field := range config.Fields {
		if _, ok := objects[field.FieldType]; ok {
			continue
		}
		if _, ok := builtInScalars[field.FieldType]; ok {
			continue
		}
		if _, ok := scalars[field.FieldType]; ok || field.FieldType == "" {
			continue
		}
		scalars[field.FieldType] = struct{}{}
		document.Definitions = append(document.Definitions, &ast.Definition{Kind: ast.Scalar, Name: field.FieldType})
	}
	return document
}
