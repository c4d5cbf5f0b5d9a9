package registry

import (
	"fmt"
)

type UnknownFieldError struct {
	TypeName  string
	FieldName string
}

func (e UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field '%s' on type '%s'", e.FieldName, e.TypeName)
}

type UnknownServiceError struct {
	ServiceID string
}

func (e UnknownServiceError) Error() string {
	return fmt.Sprintf("unknown service '%s'", e.ServiceID)
}

type MissingEntityKeyError struct {
	TypeName string
}

func (e MissingEntityKeyError) Error() string {
	return fmt.Sprintf("type '%s' has no entity key", e.TypeName)
}
