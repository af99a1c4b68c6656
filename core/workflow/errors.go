package workflow

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrIdleTimeout      = errors.New("workflow stream idle timeout")
	ErrMissingRef       = errors.New("workflow reference missing")
	ErrApprovalDeclined = errors.New("approval not accepted by workflow service")
)

const maxErrorBody = 4 << 10

// StatusError is returned when the workflow service answers with a non-OK
// status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("non-OK HTTP status: %s", e.Status)
	}
	return fmt.Sprintf("non-OK HTTP status: %s: %s", e.Status, e.Body)
}

func newStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	if body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); err == nil {
		statusErr.Body = strings.TrimSpace(string(body))
	}
	return statusErr
}
