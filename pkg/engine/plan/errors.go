package plan

import (
	"fmt"
	"strings"
)

// SchemaMismatchError aborts planning when a selected field cannot be resolved in the registry.
type SchemaMismatchError struct {
	TypeName  string
	FieldName string
	Path      []string
	Err       error
}

func (e SchemaMismatchError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("cannot resolve field '%s' on type '%s'", e.FieldName, e.TypeName)
	}
	return fmt.Sprintf("cannot resolve field '%s' on type '%s' at path '%s'", e.FieldName, e.TypeName, strings.Join(e.Path, "."))
}

func (e SchemaMismatchError) Unwrap() error {
	return e.Err
}
