package model

import "fmt"

// InvariantError reports state that cannot occur with well-ordered, well-formed input.
type InvariantError struct {
	Entity string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated on %s: %s", e.Entity, e.Reason)
}

// Invariant builds an InvariantError for entity.
func Invariant(entity, format string, args ...interface{}) error {
	return &InvariantError{Entity: entity, Reason: fmt.Sprintf(format, args...)}
}
