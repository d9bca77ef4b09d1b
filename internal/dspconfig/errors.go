package dspconfig

import (
	"fmt"

	"github.com/pipeconf/pipeconf/internal/errors"
)

// ErrNotFound is returned (wrapped) when an operation names an entity that does not exist.
var ErrNotFound = errors.NewStd("not found")

// NameCollisionError is returned by the rename operations when the target name is taken.
// The config is left unchanged.
type NameCollisionError struct {
	Kind EntityKind
	Name string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.Kind, e.Name)
}

func (e *NameCollisionError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryNameCollision
}

// OutOfRangeError is returned when an index or count exceeds the available range.
type OutOfRangeError struct {
	Message string
}

func (e *OutOfRangeError) Error() string {
	return e.Message
}

func (e *OutOfRangeError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryOutOfRange
}

func newOutOfRangeError(what string, index, length int) error {
	return &OutOfRangeError{Message: fmt.Sprintf("%s index %d out of range [0,%d)", what, index, length)}
}

func notFound(kind EntityKind, name string) error {
	return errors.New(fmt.Errorf("%s '%s': %w", kind, name, ErrNotFound)).
		Category(errors.CategoryNotFound).
		Context("kind", kind.String()).
		Context("name", name).
		Build()
}
