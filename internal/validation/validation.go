package validation

import (
	"strings"

	"github.com/vitalsync/vitalsync/internal/types"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateEvent checks the fields every submitted event must carry before it
// can be persisted. A violation makes the event a per-record push failure.
func ValidateEvent(e *types.Event) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("baseEntityId", e.BaseEntityID))
	c.Add(ValidateRequired("eventType", e.EventType))
	c.Add(ValidateRequired("providerId", e.ProviderID))
	return c.Errors()
}

// ValidateClient checks the fields every submitted client must carry.
func ValidateClient(cl *types.Client) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("baseEntityId", cl.BaseEntityID))
	return c.Errors()
}
