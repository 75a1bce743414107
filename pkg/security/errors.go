package security

import "fmt"

// SecurityError wraps any failure of the signing or encryption layer.
// The pipeline aborts the exchange on the first SecurityError; no
// partially processed output is ever released.
type SecurityError struct {
	Op  string
	Err error
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security: %s: %v", e.Op, e.Err)
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

func secErr(op string, err error) error {
	return &SecurityError{Op: op, Err: err}
}

func secErrf(op, format string, args ...any) error {
	return &SecurityError{Op: op, Err: fmt.Errorf(format, args...)}
}
