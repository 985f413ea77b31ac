package model

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports input rejected before any upstream call, or a model
// response that did not match the expected structure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ServiceUnavailableError is returned once retries against an external service are
// exhausted or the failure was classified as permanent.
type ServiceUnavailableError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s service unavailable after %d attempt(s): %v", e.Service, e.Attempts, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// ParsingError reports conversation input with no recognizable speaker structure.
type ParsingError struct {
	Reason string
	Line   int
}

func (e *ParsingError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parsing conversation: line %d: %s", e.Line, e.Reason)
	}
	return "parsing conversation: " + e.Reason
}

// InspectionError is returned when no quality dimension could be scored.
type InspectionError struct {
	Failures map[Dimension]error
}

func (e *InspectionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, d := range Dimensions {
		if err, ok := e.Failures[d]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", d, err))
		}
	}
	return "inspection failed, no dimension scored: " + strings.Join(parts, "; ")
}

func (e *InspectionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, d := range Dimensions {
		if err, ok := e.Failures[d]; ok {
			errs = append(errs, err)
		}
	}
	return errs
}

// ReviewStateError reports a review transition attempted from a state that does not
// allow it.
type ReviewStateError struct {
	ReportID int64
	From     ReviewState
	Action   ReviewAction
}

func (e *ReviewStateError) Error() string {
	return fmt.Sprintf("report %d: cannot %s a report in state %s", e.ReportID, e.Action, e.From)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsServiceUnavailable(err error) bool {
	var s *ServiceUnavailableError
	return errors.As(err, &s)
}
