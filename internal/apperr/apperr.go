// Package apperr defines the error kinds shared by the registry, the
// threshold store and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError is returned when input violates an invariant.
// Field names the offending input field using its JSON name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned when a record with the given id does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConfigurationError is returned when a call needs an external endpoint or
// credential that was never configured.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Setting)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

// DeliveryError is a failed attempt to deliver to one webhook. It is
// recorded in that webhook's dispatch result and never aborts a batch.
// StatusCode is zero when no HTTP response was received.
type DeliveryError struct {
	WebhookID  string
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook %s returned HTTP %d", e.WebhookID, e.StatusCode)
	}
	return fmt.Sprintf("webhook %s: %v", e.WebhookID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
