package palette

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEntry is returned when a stored id has no value in the
	// palette it is resolved against.
	ErrMissingEntry = errors.New("palette: missing palette entry")
	// ErrSizeMismatch is returned when packed storage does not hold the
	// number of words the container volume requires.
	ErrSizeMismatch = errors.New("palette: container size mismatch")
)

// ThreadingViolation is the panic value raised when a container's guarded
// path is entered while already held, either by another goroutine or by the
// holder itself.
type ThreadingViolation struct {
	Op string
}

func (v *ThreadingViolation) Error() string {
	return fmt.Sprintf("palette: container accessed from multiple goroutines during %s", v.Op)
}

func missingEntry(id int) error {
	return fmt.Errorf("%w: id %d", ErrMissingEntry, id)
}
