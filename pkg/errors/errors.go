// Package errors provides the structured error types raised by the encoding
// pipeline. Every constructor attaches a stack trace via cockroachdb/errors,
// and the main types implement zerolog's ObjectMarshaler so failures can be
// logged with their fields intact rather than as flat strings.
package errors

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// NotFittedError is returned when Transform or ReverseTransform is called on
// an estimator that has not been fitted (and had no metadata injected).
type NotFittedError struct {
	EstimatorName string
	Method        string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("tabprep: %s: not fitted yet. Call Fit() before using %s()", e.EstimatorName, e.Method)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("estimator", e.EstimatorName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(estimator, method string) error {
	err := &NotFittedError{EstimatorName: estimator, Method: method}
	return errors.WithStack(err)
}

// DimensionError is returned when input data has a different shape than the
// operation expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("tabprep: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// SchemaError is returned when metadata is structurally invalid or does not
// match the data it is applied to: an unsupported column type tag, a
// descriptor whose internal lengths disagree, or a table whose column count
// differs from the fitted layout.
type SchemaError struct {
	Op     string
	Column int // -1 when the error concerns the whole table
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("tabprep: %s: invalid schema: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("tabprep: %s: invalid schema for column %d: %s", e.Op, e.Column, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "SchemaError")
}

// NewSchemaError creates a SchemaError with a stack trace. Pass column -1 for
// table-level schema violations.
func NewSchemaError(op string, column int, reason string) error {
	err := &SchemaError{Op: op, Column: column, Reason: reason}
	return errors.WithStack(err)
}

// LookupError is returned when a categorical value or index has no entry in
// the fitted vocabulary.
type LookupError struct {
	Op     string
	Column int
	Key    string // offending value or formatted index
	Size   int    // vocabulary size
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("tabprep: %s: column %d: %s not in vocabulary of size %d", e.Op, e.Column, e.Key, e.Size)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *LookupError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("column", e.Column).
		Str("key", e.Key).
		Int("vocabulary_size", e.Size).
		Str("type", "LookupError")
}

// NewIndexLookupError creates a LookupError for an integer index outside
// [0, size).
func NewIndexLookupError(op string, column, index, size int) error {
	err := &LookupError{Op: op, Column: column, Key: "index " + strconv.Itoa(index), Size: size}
	return errors.WithStack(err)
}

// NewValueLookupError creates a LookupError for a value absent from the
// fitted vocabulary.
func NewValueLookupError(op string, column int, value string, size int) error {
	err := &LookupError{Op: op, Column: column, Key: strconv.Quote(value), Size: size}
	return errors.WithStack(err)
}

// ConvergenceError is returned when an iterative fit fails to converge within
// its iteration budget. Unlike scikit-learn, which only warns, a failed
// mixture fit here aborts the whole table fit so no degenerate metadata is
// ever committed.
type ConvergenceError struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (e *ConvergenceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tabprep: %s failed to converge after %d iterations: %s", e.Algorithm, e.Iterations, e.Message)
	}
	return fmt.Sprintf("tabprep: %s failed to converge after %d iterations. Consider increasing max iterations or loosening the tolerance", e.Algorithm, e.Iterations)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ConvergenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("algorithm", e.Algorithm).
		Int("iterations", e.Iterations).
		Str("message", e.Message).
		Str("type", "ConvergenceError")
}

// NewConvergenceError creates a ConvergenceError with a stack trace.
func NewConvergenceError(algorithm string, iterations int, message string) error {
	err := &ConvergenceError{Algorithm: algorithm, Iterations: iterations, Message: message}
	return errors.WithStack(err)
}

// ValidationError is returned when an input parameter fails validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tabprep: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError is returned when an argument's value is improper or invalid,
// such as a cell that cannot be parsed as a number.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("tabprep: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// cockroachdb/errors wrappers, so callers only import this package.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Common sentinel errors.
var (
	// ErrEmptyData is returned when an operation receives no data.
	ErrEmptyData = New("empty data")
)
