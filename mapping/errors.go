package mapping

import (
	"errors"
	"fmt"
)

// ErrMapping matches every error returned by Apply.
var ErrMapping = errors.New("mapping: failed")

var errMissingTarget = errors.New("target path is required")

// PathError reports a write that cannot descend through an existing value.
type PathError struct {
	Path    string
	Segment string
	Reason  string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("mapping: path %q at segment %q: %s", e.Path, e.Segment, e.Reason)
}

// TransformError reports an unknown transform or a value the transform
// cannot convert. Err is nil for unknown transform names.
type TransformError struct {
	Name  string
	Value any
	Err   error
}

func (e *TransformError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mapping: unknown transform %q", e.Name)
	}

	return fmt.Sprintf("mapping: transform %q on %v: %v", e.Name, e.Value, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// RuleError wraps the failure of one rule. It matches ErrMapping.
type RuleError struct {
	Index  int
	Op     Op
	Target string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("mapping: rule %d (%s -> %q): %v", e.Index, e.Op, e.Target, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMapping.
func (e *RuleError) Is(target error) bool { return target == ErrMapping }
