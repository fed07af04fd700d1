package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while ranking a batch of items.
var (
	// ErrInsufficientItems indicates that too few items survived fetching for
	// the run to proceed. It is the only error that aborts a run.
	ErrInsufficientItems = errors.New("insufficient items")

	// ErrItemNotFound indicates that the fetch source returned no record.
	ErrItemNotFound = errors.New("item not found")

	// ErrUnknownDimension indicates a dimension name outside the declared set.
	ErrUnknownDimension = errors.New("unknown dimension")

	// ErrInvalidResult indicates an analyzer result that failed structural validation.
	ErrInvalidResult = errors.New("invalid analyzer result")

	// ErrInvalidTransition indicates an item state change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// InsufficientItemsError is returned before Stage1 begins when the number of
// fetched items falls below the configured minimum.
type InsufficientItemsError struct {
	// Required is the configured minimum.
	Required int

	// Available is the number of items that survived fetching.
	Available int

	// Requested is the number of locators in the request.
	Requested int
}

// Error implements the error interface for InsufficientItemsError.
func (e *InsufficientItemsError) Error() string {
	return fmt.Sprintf("insufficient items: need at least %d, got %d of %d requested",
		e.Required, e.Available, e.Requested)
}

// Unwrap lets errors.Is match ErrInsufficientItems.
func (e *InsufficientItemsError) Unwrap() error { return ErrInsufficientItems }

// ItemFetchError represents a failure to retrieve or prepare one item.
type ItemFetchError struct {
	Locator string
	Err     error
}

// Error implements the error interface for ItemFetchError.
func (e *ItemFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Locator, e.Err)
}

// Unwrap returns the underlying error.
func (e *ItemFetchError) Unwrap() error { return e.Err }

// NewItemFetchError creates a new ItemFetchError.
func NewItemFetchError(locator string, err error) *ItemFetchError {
	return &ItemFetchError{Locator: locator, Err: err}
}

// AnalyzerError represents an analyzer or comparator call whose retries were
// exhausted. ItemID is empty for the comparator.
type AnalyzerError struct {
	ItemID    string
	Dimension Dimension
	Attempts  int
	Err       error
}

// Error implements the error interface for AnalyzerError.
func (e *AnalyzerError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Dimension, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed for item %s after %d attempts: %v", e.Dimension, e.ItemID, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *AnalyzerError) Unwrap() error { return e.Err }

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
