package restproxy

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrorCode represents a machine-readable error class derived from an HTTP status.
type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodePermissionDenied  ErrorCode = "permission_denied"
	CodeNotFound          ErrorCode = "not_found"
	CodeMethodNotAllowed  ErrorCode = "method_not_allowed"
	CodeConflict          ErrorCode = "conflict"
	CodeGone              ErrorCode = "gone"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeCanceled          ErrorCode = "canceled"
	CodeInternal          ErrorCode = "internal"
	CodeNotImplemented    ErrorCode = "not_implemented"
	CodeUnavailable       ErrorCode = "unavailable"
	CodeDeadlineExceeded  ErrorCode = "deadline_exceeded"
	CodeUnknown           ErrorCode = "unknown"
)

// HTTPStatus maps an ErrorCode to an HTTP status code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeConflict:
		return http.StatusConflict
	case CodeGone:
		return http.StatusGone
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	case CodeCanceled:
		return 499 // Client Closed Request (Nginx standard)
	case CodeNotImplemented:
		return http.StatusNotImplemented
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus is the inverse of HTTPStatus. Statuses without a dedicated
// code map to CodeInvalidArgument (other 4xx), CodeInternal (other 5xx) or
// CodeUnknown.
func CodeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeInvalidArgument
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusConflict:
		return CodeConflict
	case http.StatusGone:
		return CodeGone
	case http.StatusTooManyRequests:
		return CodeResourceExhausted
	case 499:
		return CodeCanceled
	case http.StatusNotImplemented:
		return CodeNotImplemented
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	case http.StatusGatewayTimeout:
		return CodeDeadlineExceeded
	}
	switch {
	case status >= 400 && status < 500:
		return CodeInvalidArgument
	case status >= 500:
		return CodeInternal
	default:
		return CodeUnknown
	}
}

// ErrConfiguration is matched by every *ConfigError.
var ErrConfiguration = errors.New("restproxy: configuration error")

// ErrUnsupportedVerb is returned when no request can be initiated for a
// method's HTTP verb.
var ErrUnsupportedVerb = errors.New("restproxy: unsupported verb")

// ConfigError reports a wiring mistake found while building a proxy.
// It is never returned from an invocation.
type ConfigError struct {
	Client string
	Method string
	Reason string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("restproxy: ")
	if e.Client != "" {
		b.WriteString(e.Client)
		if e.Method != "" {
			b.WriteString(".")
		}
	}
	b.WriteString(e.Method)
	if e.Client != "" || e.Method != "" {
		b.WriteString(": ")
	}
	b.WriteString(e.Reason)
	return b.String()
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(client, method, format string, args ...any) *ConfigError {
	return &ConfigError{
		Client: client,
		Method: method,
		Reason: fmt.Sprintf(format, args...),
	}
}

// APIError is the decoded form of an error response. It is what callers of
// a proxied method receive when the error predicate matches.
type APIError struct {
	Status int         `json:"-" xml:"-"`
	Header http.Header `json:"-" xml:"-"`
	Code   ErrorCode   `json:"-" xml:"-"`

	ID          string         `json:"id,omitempty" xml:"id,omitempty"`
	Timestamp   time.Time      `json:"timestamp,omitempty" xml:"timestamp,omitempty"`
	Message     string         `json:"message,omitempty" xml:"message,omitempty"`
	ErrorCode   string         `json:"errorCode,omitempty" xml:"errorCode,omitempty"`
	ClassName   string         `json:"className,omitempty" xml:"className,omitempty"`
	Application string         `json:"application,omitempty" xml:"application,omitempty"`
	Path        string         `json:"path,omitempty" xml:"path,omitempty"`
	Details     map[string]any `json:"details,omitempty" xml:"-"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%d %s [%s]: %s", e.Status, e.Code, e.ErrorCode, msg)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, msg)
}

// ArgumentError reports invocation arguments rejected before any request
// was sent.
type ArgumentError struct {
	Method string
	Fields map[string]string
}

func (e *ArgumentError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("restproxy: %s: invalid arguments: %s", e.Method, strings.Join(msgs, "; "))
}

// newArgumentError converts validator errors. Other errors are returned as is.
func newArgumentError(method string, err error) error {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}
	fields := make(map[string]string, len(valErrs))
	for _, ve := range valErrs {
		fields[ve.Field()] = formatValidationError(ve)
	}
	return &ArgumentError{Method: method, Fields: fields}
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", ve.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", ve.Param())
	case "eq":
		return fmt.Sprintf("must equal %s", ve.Param())
	case "ne":
		return fmt.Sprintf("must not equal %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
