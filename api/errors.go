package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKey is a type alias for string, used to classify a failed response
// into one of the standardized kinds in the errorMessages map.
type ErrorKey string

// These constants define unique keys for each error kind.
// Several HTTP status codes can share a key: both 400 and 422 are ErrValidation.
const (
	ErrValidation       ErrorKey = "validation_failed"
	ErrNotFound         ErrorKey = "not_found"
	ErrInternal         ErrorKey = "internal_error"
	ErrAuthRequired     ErrorKey = "auth_required"
	ErrAccessDenied     ErrorKey = "access_denied"
	ErrConflict         ErrorKey = "conflict"
	ErrMethodNotAllowed ErrorKey = "not_allowed"
	ErrRateLimited      ErrorKey = "rate_limited"
	ErrUnknown          ErrorKey = "unknown"
)

// errorMessages is the centralized map of all standard error texts.
// It is used when the server does not provide a detail of its own.
var errorMessages = map[ErrorKey]string{
	ErrValidation:       "validation failed",
	ErrNotFound:         "resource not found",
	ErrInternal:         "internal server error",
	ErrAuthRequired:     "authentication required",
	ErrAccessDenied:     "access denied",
	ErrConflict:         "resource conflict",
	ErrMethodNotAllowed: "method not allowed",
	ErrRateLimited:      "too many requests",
	ErrUnknown:          "unknown error",
}

// KeyForStatus maps an HTTP status code to its ErrorKey.
func KeyForStatus(status int) ErrorKey {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusUnauthorized:
		return ErrAuthRequired
	case status == http.StatusForbidden:
		return ErrAccessDenied
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusMethodNotAllowed:
		return ErrMethodNotAllowed
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrInternal
	default:
		return ErrUnknown
	}
}

// Error is returned for every non-2xx response from the API.
// Supports errors.As.
type Error struct {
	Method string
	Path   string
	Status int
	Key    ErrorKey
	Detail string // the server's detail text, or the standard message for Key
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Detail)
}

// IsUnauthorized reports whether the response was a 401.
func (e *Error) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// Temporary reports whether re-triggering the action later could succeed.
func (e *Error) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// errorBody matches the server's error envelope. Detail is either a string or
// a list of validation issues.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// NewError builds an Error for a failed response, decoding the detail from body
// where possible. If the body carries no usable detail, it falls back to the
// standard message for the status.
func NewError(method, path string, status int, body []byte) *Error {
	key := KeyForStatus(status)
	detail := decodeDetail(body)
	if detail == "" {
		detail = errorMessages[key]
	}
	return &Error{
		Method: method,
		Path:   path,
		Status: status,
		Key:    key,
		Detail: detail,
	}
}

func decodeDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var issues []validationIssue
	if err := json.Unmarshal(eb.Detail, &issues); err == nil && len(issues) > 0 {
		parts := make([]string, 0, len(issues))
		for _, is := range issues {
			if field := lastLoc(is.Loc); field != "" {
				parts = append(parts, field+": "+is.Msg)
			} else {
				parts = append(parts, is.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}

	return string(eb.Detail)
}

func lastLoc(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	return fmt.Sprint(loc[len(loc)-1])
}

// IsStatus reports whether err is, or wraps, an *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
