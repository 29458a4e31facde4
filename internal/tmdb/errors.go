package tmdb

import (
	"encoding/json"
	"fmt"
)

// Error is the normalized failure every endpoint returns once its retry
// budget is spent or a terminal classification is reached.
type Error struct {
	Endpoint  string
	Kind      Kind
	Message   string
	Retryable bool
	Status    int    // upstream HTTP status, 0 for transport failures
	Attempts  int    // requests issued, including the first
	Detail    string // upstream status_message when present
	Err       error  // transport error, if any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d, %d attempts)", e.Endpoint, e.Message, e.Status, e.Attempts)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%d attempts): %v", e.Endpoint, e.Message, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %s (%d attempts)", e.Endpoint, e.Message, e.Attempts)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hint is the follow-up line shown under the message.
func (e *Error) Hint() string {
	switch e.Kind {
	case KindOffline, KindTransientNetwork:
		return "Check your connection and try again."
	case KindRateLimited:
		return "Try again later."
	case KindAuth, KindForbidden:
		return "Reconfigure the API access token."
	default:
		return "Something went wrong."
	}
}

// ErrorPayload is the JSON shape of an Error handed to the UI.
type ErrorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Status    int    `json:"status,omitempty"`
	Endpoint  string `json:"endpoint"`
	Kind      Kind   `json:"kind"`
	Hint      string `json:"hint"`
}

// Payload returns the UI-facing form of e.
func (e *Error) Payload() ErrorPayload {
	return ErrorPayload{
		Message:   e.Message,
		Retryable: e.Retryable,
		Status:    e.Status,
		Endpoint:  e.Endpoint,
		Kind:      e.Kind,
		Hint:      e.Hint(),
	}
}

// MarshalJSON encodes e as its Payload.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload())
}

func messageFor(kind Kind) string {
	switch kind {
	case KindAuth:
		return "Authentication failed. Please check your API access token."
	case KindForbidden:
		return "Access denied. Please check your API permissions."
	case KindRateLimited:
		return "Too many requests. Please try again in a moment."
	case KindOffline:
		return "No internet connection."
	case KindTransientNetwork:
		return "The media service is temporarily unavailable."
	case KindCanceled:
		return "Request canceled."
	default:
		return "Unknown error occurred"
	}
}

func newError(endpoint string, a Attempt, attempts int) *Error {
	e := &Error{
		Endpoint:  endpoint,
		Kind:      a.Class.Kind,
		Message:   messageFor(a.Class.Kind),
		Retryable: a.Class.Retryable,
		Status:    a.Status,
		Attempts:  attempts,
		Err:       a.Err,
	}
	if len(a.Body) > 0 {
		var body apiError
		if json.Unmarshal(a.Body, &body) == nil {
			e.Detail = body.StatusMessage
		}
	}
	return e
}
