package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestServiceErrorFormat(t *testing.T) {
	tests := []struct {
		name      string
		service   string
		operation string
		err       error
		want      string
	}{
		{
			name:      "basic error",
			service:   "generation",
			operation: "Run",
			err:       fmt.Errorf("no outline given"),
			want:      "[generation.Run] no outline given",
		},
		{
			name:      "empty service name",
			service:   "",
			operation: "Initialize",
			err:       fmt.Errorf("disk full"),
			want:      "[.Initialize] disk full",
		},
		{
			name:      "empty operation name",
			service:   "cache",
			operation: "",
			err:       fmt.Errorf("timeout"),
			want:      "[cache.] timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := &ServiceError{Service: tt.service, Operation: tt.operation, Err: tt.err}
			if got := se.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServiceErrorUnwrapChain(t *testing.T) {
	sentinel := fmt.Errorf("sentinel error")
	wrapped := WrapError("provenance", "Initialize", sentinel)

	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should find the wrapped sentinel error")
	}

	var se *ServiceError
	if !errors.As(wrapped, &se) {
		t.Fatal("errors.As should find *ServiceError")
	}
	if se.Service != "provenance" {
		t.Errorf("Service = %q, want provenance", se.Service)
	}
	if se.Operation != "Initialize" {
		t.Errorf("Operation = %q, want Initialize", se.Operation)
	}
	if se.Unwrap() != sentinel {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if err := WrapError("cache", "Initialize", nil); err != nil {
		t.Errorf("WrapError with nil err should return nil, got %v", err)
	}
}

// Feature: service-errors, Property 1: wrapping any error keeps the
// original reachable through errors.As and renders both names in the
// message.
func TestProperty_WrapErrorPreservesContext(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		service := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "service")
		operation := rapid.StringMatching(`[A-Za-z]{1,16}`).Draw(t, "operation")
		msg := rapid.StringMatching(`[a-z ]{1,40}`).Draw(t, "msg")

		original := errors.New(msg)
		wrapped := WrapError(service, operation, original)
		if wrapped == nil {
			t.Fatal("WrapError with non-nil error returned nil")
		}

		got := wrapped.Error()
		if want := fmt.Sprintf("[%s.%s] %s", service, operation, msg); got != want {
			t.Fatalf("Error() = %q, want %q", got, want)
		}
		if !strings.Contains(got, service) || !strings.Contains(got, operation) {
			t.Fatalf("Error() %q should name service and operation", got)
		}
		var se *ServiceError
		if !errors.As(wrapped, &se) || se.Unwrap() != original {
			t.Fatal("original error lost through wrapping")
		}
	})
}
