package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSection matches any MissingSectionError.
	ErrMissingSection = errors.New("missing section")
	// ErrUnsupportedArch is returned for pointer widths other than 4 or 8.
	ErrUnsupportedArch = errors.New("unsupported pointer width")
)

// MissingSectionError reports that a required section is absent from the
// binary. Detection does not run when it is returned.
type MissingSectionError struct {
	Name string
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("no %s section", e.Name)
}

func (e *MissingSectionError) Is(target error) bool {
	return target == ErrMissingSection
}
