// Package federation loads the federated graph configuration: either a YAML file listing services and
// field ownership, or a composed supergraph SDL carrying join__ directives.
package federation

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v2"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
)

//go:embed config.schema.json
var configSchemaDocument string

var configSchema = jsonschema.MustCompileString("config.schema.json", configSchemaDocument)

type Config struct {
	Services []registry.ServiceDescriptor `yaml:"services"`
	Types    map[string]TypeConfig        `yaml:"types"`
}

type TypeConfig struct {
	Keys   []string               `yaml:"keys"`
	Fields map[string]FieldConfig `yaml:"fields"`
}

type FieldConfig struct {
	Type    string `yaml:"type"`
	Service string `yaml:"service"`
}

// LoadConfigFile reads a YAML config (.yaml, .yml) or a supergraph SDL (.graphql, .graphqls).
func LoadConfigFile(path string) (registry.Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return registry.Config{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		config, err := ParseConfigYAML(content)
		return config, errors.WithMessagef(err, "load config '%s'", path)
	case ".graphql", ".graphqls":
		config, err := ParseSupergraph(string(content))
		return config, errors.WithMessagef(err, "load supergraph '%s'", path)
	default:
		return registry.Config{}, fmt.Errorf("unsupported config file extension '%s'", filepath.Ext(path))
	}
}

// ParseConfigYAML validates content against the config schema and converts it.
func ParseConfigYAML(content []byte) (registry.Config, error) {
	var document interface{}
	if err := yaml.Unmarshal(content, &document); err != nil {
		return registry.Config{}, err
	}
	if err := configSchema.Validate(jsonValue(document)); err != nil {
		return registry.Config{}, err
	}

	var config Config
	if err := yaml.UnmarshalStrict(content, &config); err != nil {
		return registry.Config{}, err
	}
	return config.RegistryConfig(), nil
}

// RegistryConfig converts the YAML shape. Types and fields are sorted by name.
func (c Config) RegistryConfig() registry.Config {
	out := registry.Config{
		Services: append([]registry.ServiceDescriptor(nil), c.Services...),
	}

	typeNames := make([]string, 0, len(c.Types))
	for name := range c.Types {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	for _, typeName := range typeNames {
		typeConfig := c.Types[typeName]
		fieldNames := make([]string, 0, len(typeConfig.Fields))
		for name := range typeConfig.Fields {
			fieldNames = append(fieldNames, name)
		}
		sort.Strings(fieldNames)

		for _, fieldName := range fieldNames {
			field := typeConfig.Fields[fieldName]
			out.Fields = append(out.Fields, registry.FieldConfiguration{
				TypeName:  typeName,
				FieldName: fieldName,
				ServiceID: field.Service,
				FieldType: field.Type,
			})
		}
		if len(typeConfig.Keys) > 0 {
			out.Entities = append(out.Entities, registry.EntityConfiguration{
				TypeName:  typeName,
				KeyFields: append([]string(nil), typeConfig.Keys...),
			})
		}
	}
	return out
}

// jsonValue converts YAML decoded maps into the JSON shapes the schema validator expects.
func jsonValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[fmt.Sprintf("%v", key)] = jsonValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = jsonValue(v[i])
		}
		return out
	case int:
		return float64(v)
	default:
		return v
	}
}
