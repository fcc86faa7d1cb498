package slack

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoImagesPrepared is returned by SendImages when every upload in the batch
// failed, so there is nothing to attach to the channel.
var ErrNoImagesPrepared = errors.New("no images were successfully prepared for upload")

// APIError reports a Slack call that came back with a non-200 status or a
// falsy "ok" field.
type APIError struct {
	Op         string
	StatusCode int
	Body       string

	SlackError string
	Needed     string
	Provided   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("error %s: %d %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
	return msg + slackScopeHint(e.Needed, e.Provided)
}

func newAPIError(op string, status int, body []byte, parsed slackAPIResponse) *APIError {
	return &APIError{
		Op:         op,
		StatusCode: status,
		Body:       string(body),
		SlackError: parsed.Error,
		Needed:     parsed.Needed,
		Provided:   parsed.Provided,
	}
}

func slackScopeHint(needed, provided string) string {
	needed = strings.TrimSpace(needed)
	provided = strings.TrimSpace(provided)
	if needed == "" && provided == "" {
		return ""
	}
	if provided == "" {
		return fmt.Sprintf(" (needed=%s)", needed)
	}
	if needed == "" {
		return fmt.Sprintf(" (provided=%s)", provided)
	}
	return fmt.Sprintf(" (needed=%s provided=%s)", needed, provided)
}
