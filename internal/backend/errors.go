package backend

import (
	"fmt"
	"net/http"

	"github.com/pipeconf/pipeconf/internal/errors"
)

// StatusError is returned for backend replies with an unexpected status code.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Method: method, Path: path, StatusCode: status, Body: string(body)}
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// ErrorCategory implements errors.CategorizedError.
func (e *StatusError) ErrorCategory() errors.ErrorCategory {
	if e.StatusCode == http.StatusNotFound {
		return errors.CategoryNotFound
	}
	return errors.CategoryHTTP
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
