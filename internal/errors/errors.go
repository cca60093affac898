package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrIndexNotFound is returned when an index is not found
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexAlreadyExists is returned when trying to create an index that already exists
	ErrIndexAlreadyExists = errors.New("index already exists")

	// ErrIndexNotBuilt is returned when a query reaches an index that has no built snapshot yet
	ErrIndexNotBuilt = errors.New("index not built")

	// ErrMalformedRecord is returned (and logged) for an input row that cannot become a record
	ErrMalformedRecord = errors.New("malformed record")

	// ErrEmptyTable is returned when a build has no valid records to index
	ErrEmptyTable = errors.New("empty record table")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)

// IndexNotFoundError represents an index not found error with context
type IndexNotFoundError struct {
	IndexName string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index named '%s' not found", e.IndexName)
}

func (e *IndexNotFoundError) Is(target error) bool {
	return target == ErrIndexNotFound
}

// NewIndexNotFoundError creates a new IndexNotFoundError
func NewIndexNotFoundError(indexName string) *IndexNotFoundError {
	return &IndexNotFoundError{IndexName: indexName}
}

// IndexAlreadyExistsError represents an index already exists error with context
type IndexAlreadyExistsError struct {
	IndexName string
}

func (e *IndexAlreadyExistsError) Error() string {
	return fmt.Sprintf("index named '%s' already exists", e.IndexName)
}

func (e *IndexAlreadyExistsError) Is(target error) bool {
	return target == ErrIndexAlreadyExists
}

// NewIndexAlreadyExistsError creates a new IndexAlreadyExistsError
func NewIndexAlreadyExistsError(indexName string) *IndexAlreadyExistsError {
	return &IndexAlreadyExistsError{IndexName: indexName}
}

// IndexNotBuiltError is a precondition failure for a single call: the index
// exists but no record table has been built into it yet.
type IndexNotBuiltError struct {
	IndexName string
}

func (e *IndexNotBuiltError) Error() string {
	if e.IndexName == "" {
		return "index has not been built"
	}
	return fmt.Sprintf("index named '%s' has not been built", e.IndexName)
}

func (e *IndexNotBuiltError) Is(target error) bool {
	return target == ErrIndexNotBuilt
}

// NewIndexNotBuiltError creates a new IndexNotBuiltError
func NewIndexNotBuiltError(indexName string) *IndexNotBuiltError {
	return &IndexNotBuiltError{IndexName: indexName}
}

// MalformedRecordError describes why a row of the record table was skipped.
type MalformedRecordError struct {
	Row    int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at row %d: %s", e.Row, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// NewMalformedRecordError creates a new MalformedRecordError
func NewMalformedRecordError(row int, reason string) *MalformedRecordError {
	return &MalformedRecordError{Row: row, Reason: reason}
}

// EmptyTableError reports a build that had nothing to index.
type EmptyTableError struct {
	Skipped int
}

func (e *EmptyTableError) Error() string {
	if e.Skipped > 0 {
		return fmt.Sprintf("record table has no valid records (%d malformed rows skipped)", e.Skipped)
	}
	return "record table is empty"
}

func (e *EmptyTableError) Is(target error) bool {
	return target == ErrEmptyTable
}

// NewEmptyTableError creates a new EmptyTableError
func NewEmptyTableError(skipped int) *EmptyTableError {
	return &EmptyTableError{Skipped: skipped}
}

// JobNotFoundError represents a job not found error with context
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job with ID '%s' not found", e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// NewJobNotFoundError creates a new JobNotFoundError
func NewJobNotFoundError(jobID string) *JobNotFoundError {
	return &JobNotFoundError{JobID: jobID}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
