package core

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// A Frame is one link in a UserError's location chain: which target, under
// which action, the error occurred at.
type Frame struct {
	Target TargetKey
	Action string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s)", f.Target, f.Action)
}

// A UserError is a structured build/user-facing diagnostic (spec §7
// category 1): "missing target, non-existent non-generable header, rule
// mismatch, cyclic dependency ... a structured diagnostic carrying a
// location chain. These do not unwind past the driver."
type UserError struct {
	Message  string
	Location []Frame
}

func (e *UserError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.Location {
		b.WriteString("\n  while ")
		b.WriteString(f.String())
	}
	return b.String()
}

// NewUserError constructs a UserError with no location yet; call With to
// append frames as the error propagates up through match/apply.
func NewUserError(format string, args ...interface{}) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// With returns a copy of e with an additional location frame appended,
// letting each calling layer record its own context without mutating a
// shared error value (errors may be read concurrently once stored in an
// OpState).
func (e *UserError) With(target TargetKey, action string) *UserError {
	cp := *e
	cp.Location = append(append([]Frame{}, e.Location...), Frame{Target: target, Action: action})
	return &cp
}

// A SystemError wraps an I/O or process-spawn failure with the syscall
// name and path attached (spec §7 category 2), then is surfaced to the
// caller as a UserError.
type SystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// AsUserError converts a SystemError into the UserError shape so callers
// only need to handle one error type at the Context boundary.
func (e *SystemError) AsUserError() *UserError {
	return NewUserError("%s", e.Error())
}

// NewSystemError wraps err, unless it is already nil.
func NewSystemError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &SystemError{Op: op, Path: path, Err: err}
}

// AggregateErrors combines zero or more errors (some of which may be nil)
// into a single error using hashicorp/go-multierror, the way package build
// aggregates independent prerequisite-match failures (spec §4.D: a rule
// may start async matching of several prerequisites; more than one can
// fail independently). Returns nil if every argument was nil.
func AggregateErrors(errs ...error) error {
	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr == nil {
		return nil
	}
	return merr.ErrorOrNil()
}
