package artifact

import "fmt"

var (
	// ErrNotFound is returned when a filename (or a requested version of it)
	// does not exist in the underlying store.
	ErrNotFound = fmt.Errorf("artifact not found")
)
