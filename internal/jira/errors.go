package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// maxErrorBody bounds how much of a response body ends up in an error string.
const maxErrorBody = 512

// StatusError is returned when the server answers with anything but 200 OK.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
	// Messages holds JIRA errorMessages/errors parsed from Body, if any.
	Messages []string
}

func (e *StatusError) Error() string {
	detail := strings.Join(e.Messages, "; ")
	if detail == "" {
		detail = e.Body
		if len(detail) > maxErrorBody {
			detail = detail[:maxErrorBody] + "..."
		}
	}
	if detail == "" {
		return fmt.Sprintf("jira: %s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("jira: %s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, detail)
}

// IsStatus reports whether err (or any error in its chain) is a StatusError
// with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// newStatusError builds a StatusError, lifting JIRA error messages out of
// the body when it has the standard shape.
func newStatusError(code int, method, url string, body []byte) *StatusError {
	se := &StatusError{
		StatusCode: code,
		Method:     method,
		URL:        url,
		Body:       string(body),
	}

	var jiraErr ErrorResponse
	if json.Unmarshal(body, &jiraErr) == nil {
		se.Messages = append(se.Messages, jiraErr.ErrorMessages...)
		keys := make([]string, 0, len(jiraErr.Errors))
		for k := range jiraErr.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			se.Messages = append(se.Messages, k+": "+jiraErr.Errors[k])
		}
	}
	return se
}
