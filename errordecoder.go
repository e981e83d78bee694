package restproxy

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"net/url"
	"strings"
	"time"

	"github.com/broady/restproxy/codec"
)

// Headers carrying error attributes when the body is not a structured error.
const (
	HeaderErrorID        = "X-Error-Id"
	HeaderErrorTimestamp = "X-Error-Timestamp"
	HeaderErrorMessage   = "X-Error-Message"
	HeaderErrorCode      = "X-Error-Code"
	HeaderErrorClassName = "X-Error-Class-Name"
)

const (
	noMessage   = "No message present."
	unspecified = "UNSPECIFIED"
)

// DefaultErrorDecoder builds an *APIError from an error response. It tries,
// in order, a JSON REST exception, a {"error":{...}} envelope, an XML REST
// exception, and finally the X-Error-* headers with the body as message.
var DefaultErrorDecoder ErrorDecoder = ErrorDecoderFunc(decodeError)

// MessageErrorDecoder returns a decoder that uses the raw body as message
// and errorCode as the error code, ignoring any structure in the body.
func MessageErrorDecoder(errorCode string) ErrorDecoder {
	return ErrorDecoderFunc(func(meta ResponseMetadata, body []byte) error {
		e := newAPIError(meta)
		e.ErrorCode = errorCode
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = noMessage
		}
		return e
	})
}

// restException is the wire form of a REST exception. Timestamps are kept
// as strings so a malformed one does not discard the rest.
type restException struct {
	ID          string         `json:"id" xml:"id"`
	Timestamp   string         `json:"timestamp" xml:"timestamp"`
	Message     string         `json:"message" xml:"message"`
	ErrorCode   string         `json:"errorCode" xml:"errorCode"`
	ClassName   string         `json:"className" xml:"className"`
	Application string         `json:"application" xml:"application"`
	Path        string         `json:"path" xml:"path"`
	Details     map[string]any `json:"details" xml:"-"`
}

func (r *restException) empty() bool {
	return r.ID == "" && r.Message == "" && r.ErrorCode == "" && r.ClassName == ""
}

// envelope is the {"error": {...}} shape used by RPC style services.
type envelope struct {
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(meta ResponseMetadata, body []byte) error {
	e := newAPIError(meta)
	ct := meta.Header.Get("Content-Type")
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && maybe(ct, codec.MediaTypeJSON) {
		var rex restException
		if json.Unmarshal(trimmed, &rex) == nil && !rex.empty() {
			e.apply(&rex)
			return e
		}
		var env envelope
		if json.Unmarshal(trimmed, &env) == nil && env.Error != nil {
			e.ErrorCode = env.Error.Code
			e.Message = env.Error.Message
			e.Details = env.Error.Details
			if code := ErrorCode(env.Error.Code); code.HTTPStatus() == meta.StatusCode {
				e.Code = code
			}
			return e
		}
	}
	if len(trimmed) > 0 && maybe(ct, codec.MediaTypeXML) {
		var rex restException
		if xml.Unmarshal(trimmed, &rex) == nil && !rex.empty() {
			e.apply(&rex)
			return e
		}
	}

	h := meta.Header
	if id := h.Get(HeaderErrorID); id != "" && id != unspecified {
		e.ID = id
	}
	e.Timestamp = parseTimestamp(h.Get(HeaderErrorTimestamp))
	switch {
	case len(trimmed) > 0:
		e.Message = string(body)
	case h.Get(HeaderErrorMessage) != "":
		e.Message = h.Get(HeaderErrorMessage)
	default:
		e.Message = noMessage
	}
	if code := h.Get(HeaderErrorCode); code != "" && code != unspecified {
		e.ErrorCode = code
	}
	if cls := h.Get(HeaderErrorClassName); cls != "" && cls != unspecified {
		e.ClassName = cls
	}
	return e
}

func newAPIError(meta ResponseMetadata) *APIError {
	return &APIError{
		Status: meta.StatusCode,
		Header: meta.Header,
		Code:   CodeForStatus(meta.StatusCode),
		Path:   pathOf(meta.URL),
	}
}

func (e *APIError) apply(r *restException) {
	e.ID = r.ID
	e.Timestamp = parseTimestamp(r.Timestamp)
	e.Message = r.Message
	e.ErrorCode = r.ErrorCode
	e.ClassName = r.ClassName
	e.Application = r.Application
	if r.Path != "" {
		e.Path = r.Path
	}
	e.Details = r.Details
}

// maybe reports whether a body of content type ct could be of media type
// want. A missing content type matches anything.
func maybe(ct, want string) bool {
	if ct == "" {
		return true
	}
	if codec.Compatible(ct, want) {
		return true
	}
	sub := want[strings.IndexByte(want, '/')+1:]
	return strings.HasSuffix(codec.Essence(ct), "+"+sub)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}
