package backoffice

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultResolveErrorMessage is shown when a failed resolve carries no message.
const DefaultResolveErrorMessage = "Failed to resolve pending amount"

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
	// Errors holds field validation errors keyed by field name.
	Errors map[string][]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend status %d", e.Status)
}

// FieldErrors flattens the validation errors in a stable order.
func (e *APIError) FieldErrors() []string {
	if len(e.Errors) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		for _, msg := range e.Errors[k] {
			out = append(out, k+": "+msg)
		}
	}
	return out
}

// IsValidation reports whether the backend rejected the payload itself.
func (e *APIError) IsValidation() bool {
	return e.Status == 400 || e.Status == 409 || e.Status == 422
}

// MessageFrom returns the backend message carried by err, or fallback when
// err is not an API error or the backend sent no message.
func MessageFrom(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}
