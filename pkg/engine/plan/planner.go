package plan

import (
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

// Plan plans a query operation. See PlanOperation.
func Plan(root []*selection.FieldSelection, reg *registry.Registry) (*QueryPlan, error) {
	return PlanOperation(OperationTypeQuery, root, reg)
}

// PlanOperation decomposes root into fetches against the owning services.
//
// Planning is deterministic: children are visited in declaration order and that order is kept in every
// fetch. Any unresolvable field aborts planning before a single fetch could run.
func PlanOperation(operationType OperationType, root []*selection.FieldSelection, reg *registry.Registry) (*QueryPlan, error) {
	rootTypeName, err := operationType.RootTypeName()
	if err != nil {
		return nil, err
	}

	queryPlan := &QueryPlan{
		OperationType: operationType,
		Selections:    root,
	}

	p := &planner{registry: reg}
	groups, err := p.groupRootFields(operationType, rootTypeName, root)
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		fetch := &Fetch{
			ServiceID:     group.serviceID,
			OperationType: operationType,
		}
		step, err := p.buildFetchStep(fetch, rootTypeName, nil, group.fields)
		if err != nil {
			return nil, err
		}
		queryPlan.Steps = append(queryPlan.Steps, step)
	}

	return queryPlan, nil
}

// Planner binds PlanOperation to a registry.
type Planner struct {
	registry *registry.Registry
}

func NewPlanner(reg *registry.Registry) *Planner {
	return &Planner{registry: reg}
}

func (p *Planner) Plan(operationType OperationType, root []*selection.FieldSelection) (*QueryPlan, error) {
	return PlanOperation(operationType, root, p.registry)
}

type planner struct {
	registry *registry.Registry
}

type fieldGroup struct {
	serviceID string
	fields    []*selection.FieldSelection
}

// groupRootFields batches root fields by owner. Queries batch all fields of a service into one fetch,
// mutations only batch consecutive fields so that their order is kept.
func (p *planner) groupRootFields(operationType OperationType, rootTypeName string, root []*selection.FieldSelection) ([]*fieldGroup, error) {
	var groups []*fieldGroup
	for _, field := range root {
		if field.IsTypeName() || (operationType == OperationTypeQuery && field.IsIntrospection()) {
			// answered by the gateway
			continue
		}
		owner, err := p.resolveOwner(rootTypeName, field.Field, nil)
		if err != nil {
			return nil, err
		}
		if _, err := p.registry.ResolveService(owner); err != nil {
			return nil, err
		}

		var group *fieldGroup
		if operationType == OperationTypeMutation {
			if len(groups) != 0 && groups[len(groups)-1].serviceID == owner {
				group = groups[len(groups)-1]
			}
		} else {
			for i := range groups {
				if groups[i].serviceID == owner {
					group = groups[i]
					break
				}
			}
		}
		if group == nil {
			group = &fieldGroup{serviceID: owner}
			groups = append(groups, group)
		}
		group.fields = append(group.fields, field)
	}
	return groups, nil
}

func (p *planner) buildFetchStep(fetch *Fetch, parentTypeName string, path []string, fields []*selection.FieldSelection) (Step, error) {
	var dependents []Step
	selections, err := p.collect(fetch.ServiceID, parentTypeName, path, fields, &dependents)
	if err != nil {
		return nil, err
	}

	if fetch.Entity != nil {
		for i := range fetch.Entity.KeyFields {
			fetch.Entity.KeyFields[i].ResponseKey, selections = selection.EnsureField(selections, fetch.Entity.KeyFields[i].Name)
		}
	}
	fetch.Selections = selections

	switch len(dependents) {
	case 0:
		return fetch, nil
	case 1:
		if sequence, ok := dependents[0].(*Sequence); ok {
			return &Sequence{Operations: append([]Step{fetch}, sequence.Operations...)}, nil
		}
		return &Sequence{Operations: []Step{fetch, dependents[0]}}, nil
	default:
		return &Sequence{Operations: []Step{fetch, &Parallel{Steps: dependents}}}, nil
	}
}

type crossing struct {
	serviceID string
	fields    []*selection.FieldSelection
}

// collect copies the part of fields owned by serviceID. Subtrees owned by other services become
// entity fetches appended to dependents.
func (p *planner) collect(serviceID, parentTypeName string, path []string, fields []*selection.FieldSelection, dependents *[]Step) ([]*selection.FieldSelection, error) {
	var (
		local     []*selection.FieldSelection
		crossings []*crossing
	)

	for _, field := range fields {
		if field.IsTypeName() {
			local = append(local, field.ShallowCopy())
			continue
		}

		owner, err := p.resolveOwner(parentTypeName, field.Field, path)
		if err != nil {
			return nil, err
		}

		if owner != serviceID {
			crossings = appendToCrossing(crossings, owner, field)
			continue
		}

		copied := field.ShallowCopy()
		if !field.IsLeaf() {
			fieldTypeName, err := p.fieldType(parentTypeName, field.Field, path)
			if err != nil {
				return nil, err
			}
			children, err := p.collect(serviceID, fieldTypeName, appendPath(path, field.ResponseKey()), field.Children, dependents)
			if err != nil {
				return nil, err
			}
			copied.Children = children
		}
		local = append(local, copied)
	}

	if len(crossings) == 0 {
		return local, nil
	}

	keyFields, err := p.registry.EntityKey(parentTypeName)
	if err != nil {
		return nil, err
	}

	parentKeys := make([]KeyField, len(keyFields))
	for i, name := range keyFields {
		parentKeys[i].Name = name
		// crossed siblings merge onto the same parent object, their response keys are taken too
		parentKeys[i].ParentResponseKey, local = selection.EnsureField(local, name, fields)
	}

	for _, c := range crossings {
		if _, err := p.registry.ResolveService(c.serviceID); err != nil {
			return nil, err
		}
		entityKeys := make([]KeyField, len(parentKeys))
		copy(entityKeys, parentKeys)
		entityFetch := &Fetch{
			ServiceID:     c.serviceID,
			OperationType: OperationTypeQuery,
			MergePath:     appendPath(path),
			Entity: &EntityRequest{
				TypeName:  parentTypeName,
				KeyFields: entityKeys,
			},
		}
		step, err := p.buildFetchStep(entityFetch, parentTypeName, path, c.fields)
		if err != nil {
			return nil, err
		}
		*dependents = append(*dependents, step)
	}

	return local, nil
}

func (p *planner) resolveOwner(typeName, fieldName string, path []string) (string, error) {
	owner, err := p.registry.ResolveOwner(typeName, fieldName)
	if err != nil {
		return "", SchemaMismatchError{TypeName: typeName, FieldName: fieldName, Path: appendPath(path), Err: err}
	}
	return owner, nil
}

func (p *planner) fieldType(typeName, fieldName string, path []string) (string, error) {
	fieldTypeName, err := p.registry.FieldType(typeName, fieldName)
	if err != nil {
		return "", SchemaMismatchError{TypeName: typeName, FieldName: fieldName, Path: appendPath(path), Err: err}
	}
	return fieldTypeName, nil
}

func appendToCrossing(crossings []*crossing, serviceID string, field *selection.FieldSelection) []*crossing {
	for i := range crossings {
		if crossings[i].serviceID == serviceID {
			crossings[i].fields = append(crossings[i].fields, field)
			return crossings
		}
	}
	return append(crossings, &crossing{serviceID: serviceID, fields: []*selection.FieldSelection{field}})
}

// appendPath always returns a fresh slice.
func appendPath(path []string, elements ...string) []string {
	out := make([]string, 0, len(path)+len(elements))
	out = append(out, path...)
	return append(out, elements...)
}
