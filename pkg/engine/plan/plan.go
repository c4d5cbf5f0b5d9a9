package plan

import (
	"fmt"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

type OperationType string

const (
	OperationTypeQuery    OperationType = "query"
	OperationTypeMutation OperationType = "mutation"
)

func (o OperationType) RootTypeName() (string, error) {
	switch o {
	case OperationTypeQuery:
		return registry.QueryTypeName, nil
	case OperationTypeMutation:
		return registry.MutationTypeName, nil
	default:
		return "", fmt.Errorf("unsupported operation type '%s'", o)
	}
}

type StepKind string

const (
	StepKindFetch    StepKind = "Fetch"
	StepKindSequence StepKind = "Sequence"
	StepKindParallel StepKind = "Parallel"
)

// Step is one node of a QueryPlan: *Fetch, *Sequence or *Parallel.
type Step interface {
	StepKind() StepKind
}

// Fetch is one request against one service.
type Fetch struct {
	ServiceID     string
	OperationType OperationType
	// MergePath is the response key path from the data root to the objects the result is merged onto.
	// It is empty for root fetches. Lists along the path are traversed element-wise.
	MergePath  []string
	Selections []*selection.FieldSelection
	// Entity is set when the fetch resolves entities through the _entities root field.
	Entity *EntityRequest
}

func (*Fetch) StepKind() StepKind {
	return StepKindFetch
}

func (f *Fetch) IsEntityFetch() bool {
	return f.Entity != nil
}

// Query renders the GraphQL document sent to the service.
func (f *Fetch) Query() string {
	if f.Entity != nil {
		return "query($representations: [_Any!]!){_entities(representations: $representations){... on " +
			f.Entity.TypeName + "{" + selection.Print(f.Selections) + "}}}"
	}
	operationType := f.OperationType
	if operationType == "" {
		operationType = OperationTypeQuery
	}
	return string(operationType) + "{" + selection.Print(f.Selections) + "}"
}

type EntityRequest struct {
	TypeName  string
	KeyFields []KeyField
}

type KeyField struct {
	Name string
	// ParentResponseKey holds the key value on the parent objects produced by the previous operation.
	ParentResponseKey string
	// ResponseKey holds the echoed key value on the entities returned by this fetch.
	ResponseKey string
}

// Sequence runs its operations strictly in order. Operation i+1 consumes the entities produced by
// operation i. The first operation is always a *Fetch.
type Sequence struct {
	Operations []Step
}

func (*Sequence) StepKind() StepKind {
	return StepKindSequence
}

// Parallel groups independent steps that all depend on the same preceding operation.
type Parallel struct {
	Steps []Step
}

func (*Parallel) StepKind() StepKind {
	return StepKindParallel
}

type QueryPlan struct {
	OperationType OperationType
	// Steps are independent of each other. For mutations they run in order.
	Steps []Step
	// Selections is the client selection the merged response is shaped after.
	Selections []*selection.FieldSelection
}

// Fetches returns all fetches of the plan in depth-first order.
func (p *QueryPlan) Fetches() []*Fetch {
	var out []*Fetch
	for i := range p.Steps {
		out = appendFetches(out, p.Steps[i])
	}
	return out
}

func appendFetches(out []*Fetch, step Step) []*Fetch {
	switch s := step.(type) {
	case *Fetch:
		out = append(out, s)
	case *Sequence:
		for i := range s.Operations {
			out = appendFetches(out, s.Operations[i])
		}
	case *Parallel:
		for i := range s.Steps {
			out = appendFetches(out, s.Steps[i])
		}
	}
	return out
}
