package configuration

import (
	"fmt"
	"strings"
)

// LoadError aborts a profile load. The previously active profile stays in use.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load profile %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to load profile %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MappingError describes one profile entry that could not be converted. The
// entry is skipped and the rest of the profile still loads.
type MappingError struct {
	Device      string
	Index       int
	Description string
	Problems    []string
	Err         error
}

func (e *MappingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mapping %d on %s", e.Index, e.Device)
	if e.Description != "" {
		fmt.Fprintf(&b, " (%s)", e.Description)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Problems) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Problems, "; "))
	}
	return b.String()
}

func (e *MappingError) Unwrap() error { return e.Err }
