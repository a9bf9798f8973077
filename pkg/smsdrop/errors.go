package smsdrop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for errors.Is matching.
var (
	ErrValidation          = errors.New("smsdrop: validation failed")
	ErrAuth                = errors.New("smsdrop: authentication failed")
	ErrAuthExpired         = errors.New("smsdrop: access token rejected")
	ErrNotFound            = errors.New("smsdrop: not found")
	ErrRemote              = errors.New("smsdrop: remote error")
	ErrTransport           = errors.New("smsdrop: transport error")
	ErrInsufficientCredits = errors.New("smsdrop: insufficient sms credits")
)

// ValidationError reports bad input detected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "smsdrop: invalid input: " + e.Reason
	}
	return fmt.Sprintf("smsdrop: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthError means the credentials or the token were refused. Err is
// ErrAuthExpired when a token kept being rejected after a fresh login.
type AuthError struct {
	StatusCode int
	Payload    json.RawMessage
	Err        error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("smsdrop: authentication failed (status %d)", e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Is(target error) bool { return target == ErrAuth }
func (e *AuthError) Unwrap() error        { return e.Err }

// NotFoundError means the referenced resource does not exist server-side.
type NotFoundError struct {
	Resource string
	ID       string
	Payload  json.RawMessage
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("smsdrop: %s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RemoteError is any other non-2xx answer. Payload is the raw response body.
type RemoteError struct {
	StatusCode int
	Message    string
	Payload    json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("smsdrop: remote error (status %d): %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// TransportError wraps a network or timeout failure. It is never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smsdrop: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
func (e *TransportError) Unwrap() error        { return e.Err }

// newRemoteError builds a RemoteError, pulling a readable message out of the
// API's {"detail": ...} envelope when present.
func newRemoteError(status int, body []byte) *RemoteError {
	return &RemoteError{
		StatusCode: status,
		Message:    errorMessage(status, body),
		Payload:    rawPayload(body),
	}
}

func errorMessage(status int, body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Loc []interface{} `json:"loc"`
			Msg string        `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
			parts := make([]string, 0, len(items))
			for _, it := range items {
				loc := make([]string, 0, len(it.Loc))
				for _, l := range it.Loc {
					loc = append(loc, fmt.Sprint(l))
				}
				if len(loc) > 0 {
					parts = append(parts, strings.Join(loc, ".")+": "+it.Msg)
				} else {
					parts = append(parts, it.Msg)
				}
			}
			return strings.Join(parts, "; ")
		}
	}
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return "unexpected response"
}

// rawPayload keeps body as-is when it is JSON, otherwise quotes it as a JSON
// string so the payload is always valid JSON for the caller.
func rawPayload(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(append([]byte(nil), body...))
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(string(body)); err != nil {
		return nil
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n"))
}
