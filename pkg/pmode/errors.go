package pmode

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record exists for an ID and the
// default cannot serve the lookup either
var ErrNotFound = errors.New("pmode: not found")

// ValidationError reports a structurally invalid P-Mode
type ValidationError struct {
	PModeID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.PModeID == "" {
		return fmt.Sprintf("pmode validation: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("pmode validation: %s: %s: %s", e.PModeID, e.Field, e.Reason)
}

// DuplicateKeyError reports a Create against an ID that is already
// registered
type DuplicateKeyError struct {
	PModeID string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("pmode %s already registered", e.PModeID)
}
