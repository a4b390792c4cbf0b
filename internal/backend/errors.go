package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// CommandError is a failure reported by the backend itself, as opposed to a
// transport failure.
type CommandError struct {
	Command string
	// Status is the HTTP status, or 0 when the command ran in process.
	Status  int
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Message returns the text to show for err. Backend-reported errors yield
// the backend's message verbatim.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

// errorMessage extracts the error text from a failed response body.
func errorMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return http.StatusText(status)
	}
	if !gjson.Valid(trimmed) {
		return trimmed
	}

	root := gjson.Parse(trimmed)
	if root.Type == gjson.String {
		return root.String()
	}

	for _, path := range []string{"error.message", "error", "detail.0.msg", "detail", "message"} {
		v := root.Get(path)
		if v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return trimmed
}
