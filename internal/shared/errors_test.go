package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewAPIError(t *testing.T) {
	err := NewAPIError("test_code", "test message")
	if err.Code != "test_code" {
		t.Errorf("expected code 'test_code', got '%s'", err.Code)
	}
	if err.Message != "test message" {
		t.Errorf("expected message 'test message', got '%s'", err.Message)
	}
	if err.Details != nil {
		t.Errorf("expected nil details, got %v", err.Details)
	}
}

func TestAPIError_WithDetails(t *testing.T) {
	err := NewAPIError("code", "message").WithDetails(map[string]string{"run_id": "abc"})

	d, ok := err.Details.(map[string]string)
	if !ok {
		t.Fatal("expected details to be map[string]string")
	}
	if d["run_id"] != "abc" {
		t.Errorf("expected run_id 'abc', got '%s'", d["run_id"])
	}
}

func TestBadRequest(t *testing.T) {
	assertHTTPError(t, BadRequest("bad", "bad request"), http.StatusBadRequest, "bad", "bad request")
}

func TestNotFound(t *testing.T) {
	assertHTTPError(t, NotFound("notfound", "not found"), http.StatusNotFound, "notfound", "not found")
}

func TestConflict(t *testing.T) {
	assertHTTPError(t, Conflict("closed", "loop closed"), http.StatusConflict, "closed", "loop closed")
}

func TestServiceUnavailable(t *testing.T) {
	assertHTTPError(t, ServiceUnavailable("down", "no store"), http.StatusServiceUnavailable, "down", "no store")
}

func TestInternalError(t *testing.T) {
	assertHTTPError(t, InternalError("internal", "internal error"), http.StatusInternalServerError, "internal", "internal error")
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("frame: %w", ErrNotFound), http.StatusNotFound, "not_found"},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := FromError(tt.err, "failed")
			if httpErr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, httpErr.Code)
			}
			if apiErr := httpErr.Message.(*APIError); apiErr.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, apiErr.Code)
			}
		})
	}

	if msg := FromError(errors.New("secret detail"), "failed").Message.(*APIError).Message; msg != "failed" {
		t.Errorf("internal errors should not leak, got %q", msg)
	}
}

func assertHTTPError(t *testing.T, err *echo.HTTPError, expectedStatus int, expectedCode, expectedMessage string) {
	t.Helper()
	if err.Code != expectedStatus {
		t.Errorf("expected status %d, got %d", expectedStatus, err.Code)
	}
	apiErr, ok := err.Message.(*APIError)
	if !ok {
		t.Fatal("expected message to be *APIError")
	}
	if apiErr.Code != expectedCode {
		t.Errorf("expected code '%s', got '%s'", expectedCode, apiErr.Code)
	}
	if apiErr.Message != expectedMessage {
		t.Errorf("expected message '%s', got '%s'", expectedMessage, apiErr.Message)
	}
}
