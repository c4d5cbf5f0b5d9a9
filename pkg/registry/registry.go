// Package registry is the immutable schema registry of a federated graph: which service owns which
// field, where services live and which fields identify an entity across services.
//
// A Registry is built once from a Config and never mutated afterwards, so it is safe for concurrent,
// unsynchronized reads.
package registry

import (
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

const (
	QueryTypeName    = "Query"
	MutationTypeName = "Mutation"
)

type ServiceDescriptor struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url" yaml:"url"`
}

type FieldConfiguration struct {
	TypeName  string
	FieldName string
	// ServiceID is the owning service.
	ServiceID string
	// FieldType is the named (unwrapped) return type of the field.
	FieldType string
}

type EntityConfiguration struct {
	TypeName  string
	KeyFields []string
}

type Config struct {
	Services []ServiceDescriptor
	Fields   []FieldConfiguration
	Entities []EntityConfiguration
}

type typeField struct {
	typeName, fieldName string
}

type fieldInfo struct {
	owner     string
	fieldType string
}

type Registry struct {
	fields     map[typeField]fieldInfo
	services   map[string]ServiceDescriptor
	serviceIDs []string
	entityKeys map[string][]string
}

// New builds a registry from config. Later duplicates of a field or a service override earlier ones.
// Ownership is not cross-checked against the service list here, a dangling owner surfaces as
// UnknownServiceError when it is resolved.
func New(config Config) *Registry {
	r := &Registry{
		fields:     make(map[typeField]fieldInfo, len(config.Fields)),
		services:   make(map[string]ServiceDescriptor, len(config.Services)),
		entityKeys: make(map[string][]string, len(config.Entities)),
	}
	for _, service := range config.Services {
		if _, exists := r.services[service.ID]; !exists {
			r.serviceIDs = append(r.serviceIDs, service.ID)
		}
		r.services[service.ID] = service
	}
	for _, field := range config.Fields {
		r.fields[typeField{typeName: field.TypeName, fieldName: field.FieldName}] = fieldInfo{
			owner:     field.ServiceID,
			fieldType: field.FieldType,
		}
	}
	for _, entity := range config.Entities {
		if len(entity.KeyFields) == 0 {
			continue
		}
		keys := make([]string, len(entity.KeyFields))
		copy(keys, entity.KeyFields)
		r.entityKeys[entity.TypeName] = keys
	}
	return r
}

// ResolveOwner returns the id of the service owning typeName.fieldName.
func (r *Registry) ResolveOwner(typeName, fieldName string) (string, error) {
	info, ok := r.fields[typeField{typeName: typeName, fieldName: fieldName}]
	if !ok {
		return "", UnknownFieldError{TypeName: typeName, FieldName: fieldName}
	}
	return info.owner, nil
}

// FieldType returns the named return type of typeName.fieldName.
// __typename resolves on every type.
func (r *Registry) FieldType(typeName, fieldName string) (string, error) {
	if fieldName == selection.TypeNameFieldName {
		return "String", nil
	}
	info, ok := r.fields[typeField{typeName: typeName, fieldName: fieldName}]
	if !ok {
		return "", UnknownFieldError{TypeName: typeName, FieldName: fieldName}
	}
	return info.fieldType, nil
}

func (r *Registry) ResolveService(serviceID string) (ServiceDescriptor, error) {
	service, ok := r.services[serviceID]
	if !ok {
		return ServiceDescriptor{}, UnknownServiceError{ServiceID: serviceID}
	}
	return service, nil
}

// EntityKey returns the key field names of an entity type. The returned slice must not be modified.
func (r *Registry) EntityKey(typeName string) ([]string, error) {
	keys, ok := r.entityKeys[typeName]
	if !ok {
		return nil, MissingEntityKeyError{TypeName: typeName}
	}
	return keys, nil
}

// Services returns all service descriptors in configuration order.
func (r *Registry) Services() []ServiceDescriptor {
	out := make([]ServiceDescriptor, 0, len(r.serviceIDs))
	for _, id := range r.serviceIDs {
		out = append(out, r.services[id])
	}
	return out
}
