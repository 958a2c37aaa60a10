package api

import (
	"fmt"
	"net/http"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Code != "" && e.ErrorCode > 0 && e.Message != "":
		return fmt.Sprintf("%s (%d): %s", e.Code, e.ErrorCode, e.Message)
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	default:
		return "api error"
	}
}

// NotFound reports whether the server had no such object, or refused to
// say whether it has one.
func (e *APIError) NotFound() bool {
	return e != nil && e.Status == http.StatusNotFound
}
