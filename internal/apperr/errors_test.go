package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected int
	}{
		{"validation", FieldError("title", "required"), http.StatusUnprocessableEntity},
		{"unauthenticated", Unauthenticated("Unauthenticated."), http.StatusUnauthorized},
		{"forbidden", Forbidden("no"), http.StatusForbidden},
		{"unverified", Unverified("verify first"), http.StatusForbidden},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"conflict", Conflict("taken"), http.StatusConflict},
		{"bad request", BadRequest("bad"), http.StatusBadRequest},
		{"too large", TooLarge("big"), http.StatusRequestEntityTooLarge},
		{"internal", Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Status(); got != tt.expected {
				t.Errorf("Status() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("restore: %w", NotFound("Post not found"))
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf() = %v, want KindNotFound", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("foreign errors should be internal")
	}
	if !Is(err, KindNotFound) || Is(nil, KindNotFound) {
		t.Error("Is() mismatch")
	}
}

func TestValidationMessage(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string][]string
		expected string
	}{
		{"none", map[string][]string{}, "The given data was invalid."},
		{"single", map[string][]string{"title": {"The title field is required."}}, "The title field is required."},
		{
			"two",
			map[string][]string{"title": {"Title required."}, "content": {"Content required."}},
			"Content required. (and 1 more error)",
		},
		{
			"three",
			map[string][]string{"a": {"A1", "A2"}, "b": {"B1"}},
			"A1 (and 2 more errors)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validation(tt.fields).Message; got != tt.expected {
				t.Errorf("message = %q, want %q", got, tt.expected)
			}
		})
	}
}
