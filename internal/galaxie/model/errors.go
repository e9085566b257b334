package model

import "fmt"

// SchemaError reports a record missing a field required to identify it.
type SchemaError struct {
	Feed  string
	Index int
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model: %s record %d: missing required field %q", e.Feed, e.Index, e.Field)
}
