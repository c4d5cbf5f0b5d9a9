package plan

import (
	"strconv"
	"strings"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

// String renders the plan in a stable, indented form.
func (p *QueryPlan) String() string {
	builder := &strings.Builder{}
	builder.WriteString("QueryPlan {\n")
	for i := range p.Steps {
		printStep(builder, p.Steps[i], 1)
	}
	builder.WriteString("}\n")
	return builder.String()
}

func printStep(builder *strings.Builder, step Step, depth int) {
	indent := strings.Repeat("  ", depth)
	switch s := step.(type) {
	case *Fetch:
		builder.WriteString(indent)
		builder.WriteString("Fetch(service: ")
		builder.WriteString(strconv.Quote(s.ServiceID))
		if s.Entity != nil {
			builder.WriteString(", path: ")
			builder.WriteString(strconv.Quote(strings.Join(s.MergePath, ".")))
			builder.WriteString(", entity: ")
			builder.WriteString(strconv.Quote(s.Entity.TypeName))
		}
		builder.WriteString(") {\n")
		builder.WriteString(indent)
		builder.WriteString("  ")
		builder.WriteString(selection.Print(s.Selections))
		builder.WriteString("\n")
		builder.WriteString(indent)
		builder.WriteString("}\n")
	case *Sequence:
		builder.WriteString(indent)
		builder.WriteString("Sequence {\n")
		for i := range s.Operations {
			printStep(builder, s.Operations[i], depth+1)
		}
		builder.WriteString(indent)
		builder.WriteString("}\n")
	case *Parallel:
		builder.WriteString(indent)
		builder.WriteString("Parallel {\n")
		for i := range s.Steps {
			printStep(builder, s.Steps[i], depth+1)
		}
		builder.WriteString(indent)
		builder.WriteString("}\n")
	}
}
