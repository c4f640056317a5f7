package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// GenericErrorMessage is shown when a failed call gives nothing better to display.
const GenericErrorMessage = "An error occurred. Please try again."

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	// Detail is the backend's "detail" field, or the first field error when the
	// body is a validation error map.
	Detail    string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Message is the text to show a user for this error.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return GenericErrorMessage
}

// NetworkError means no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api: %s %s: no response: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err means the request never got a response.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the server rejected the credential (401 or 403).
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// UserMessage extracts a displayable message from any error returned by the client.
func UserMessage(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Message()
	}
	return GenericErrorMessage
}

// parseErrorDetail pulls a message out of a DRF style error body:
// {"detail": "..."} or {"field": ["msg", ...], ...}.
func parseErrorDetail(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}

	if raw, ok := fields["detail"]; ok {
		var detail string
		if json.Unmarshal(raw, &detail) == nil {
			return detail
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var msgs []string
		if json.Unmarshal(fields[k], &msgs) == nil && len(msgs) > 0 {
			if k == "non_field_errors" {
				return msgs[0]
			}
			return fmt.Sprintf("%s: %s", k, strings.Join(msgs, " "))
		}
	}
	return ""
}
