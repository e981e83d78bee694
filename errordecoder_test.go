package restproxy

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/broady/restproxy/testutil"
)

func TestErrorResponse_DecoderCalledOnce(t *testing.T) {
	calls := 0
	decoder := ErrorDecoderFunc(func(meta ResponseMetadata, body []byte) error {
		calls++
		return DefaultErrorDecoder.DecodeError(meta, body)
	})
	rec := testutil.NewRecorder(testutil.Respond(http.StatusNotFound, "text/plain", "no such item"))
	items, err := Build[Items](newTestBuilder(rec).CommonFunctions(InvocationFunctions{ErrorDecoder: decoder}))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got, err := items.Get(context.Background(), "404")
	if got != nil {
		t.Errorf("expected nil result, got %+v", got)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected decoder to run once, ran %d times", calls)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != CodeNotFound {
		t.Errorf("unexpected status/code %d/%s", apiErr.Status, apiErr.Code)
	}
	if apiErr.Message != "no such item" {
		t.Errorf("expected body as message, got %q", apiErr.Message)
	}
	if apiErr.Path != "/api/items/404" {
		t.Errorf("expected request path, got %q", apiErr.Path)
	}
}

func TestDefaultErrorDecoder(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   APIError
	}{
		{
			name:   "json rest exception",
			status: http.StatusConflict,
			header: http.Header{"Content-Type": {"application/json"}},
			body:   `{"id":"e1","timestamp":"2024-05-01T12:00:00Z","message":"taken","errorCode":"NAME_TAKEN","className":"ConflictException","application":"items","path":"/custom"}`,
			want: APIError{
				Status: http.StatusConflict, Code: CodeConflict, ID: "e1", Timestamp: ts, Message: "taken",
				ErrorCode: "NAME_TAKEN", ClassName: "ConflictException", Application: "items", Path: "/custom",
			},
		},
		{
			name:   "problem json",
			status: http.StatusBadRequest,
			header: http.Header{"Content-Type": {"application/problem+json"}},
			body:   `{"message":"bad","errorCode":"INVALID"}`,
			want:   APIError{Status: http.StatusBadRequest, Code: CodeInvalidArgument, Message: "bad", ErrorCode: "INVALID", Path: "/items"},
		},
		{
			name:   "error envelope",
			status: http.StatusNotFound,
			header: http.Header{"Content-Type": {"application/json"}},
			body:   `{"error":{"code":"not_found","message":"missing","details":{"id":"7"}}}`,
			want: APIError{
				Status: http.StatusNotFound, Code: CodeNotFound, Message: "missing", ErrorCode: "not_found",
				Path: "/items", Details: map[string]any{"id": "7"},
			},
		},
		{
			name:   "xml rest exception",
			status: http.StatusInternalServerError,
			header: http.Header{"Content-Type": {"application/xml"}},
			body:   `<restException><id>x1</id><message>boom</message><errorCode>E500</errorCode></restException>`,
			want:   APIError{Status: http.StatusInternalServerError, Code: CodeInternal, ID: "x1", Message: "boom", ErrorCode: "E500", Path: "/items"},
		},
		{
			name:   "headers with text body",
			status: http.StatusServiceUnavailable,
			header: http.Header{
				"Content-Type":       {"text/plain"},
				HeaderErrorID:        {"h1"},
				HeaderErrorCode:      {"DOWN"},
				HeaderErrorClassName: {"Maintenance"},
				HeaderErrorTimestamp: {"Wed, 01 May 2024 12:00:00 UTC"},
			},
			body: "back soon",
			want: APIError{
				Status: http.StatusServiceUnavailable, Code: CodeUnavailable, ID: "h1", Message: "back soon",
				ErrorCode: "DOWN", ClassName: "Maintenance", Timestamp: ts, Path: "/items",
			},
		},
		{
			name:   "header message without body",
			status: http.StatusForbidden,
			header: http.Header{HeaderErrorMessage: {"denied"}, HeaderErrorCode: {"UNSPECIFIED"}},
			want:   APIError{Status: http.StatusForbidden, Code: CodePermissionDenied, Message: "denied", Path: "/items"},
		},
		{
			name:   "nothing at all",
			status: http.StatusTeapot,
			header: http.Header{},
			want:   APIError{Status: http.StatusTeapot, Code: CodeInvalidArgument, Message: "No message present.", Path: "/items"},
		},
		{
			name:   "malformed json falls back to text",
			status: http.StatusBadGateway,
			header: http.Header{"Content-Type": {"application/json"}},
			body:   `{"oops"`,
			want:   APIError{Status: http.StatusBadGateway, Code: CodeInternal, Message: `{"oops"`, Path: "/items"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := ResponseMetadata{StatusCode: tt.status, Header: tt.header, Method: http.MethodGet, URL: "http://api.test/items?x=1"}
			err := DefaultErrorDecoder.DecodeError(meta, []byte(tt.body))
			var got *APIError
			if !errors.As(err, &got) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			tt.want.Header = tt.header
			if got.Status != tt.want.Status || got.Code != tt.want.Code || got.ID != tt.want.ID ||
				got.Message != tt.want.Message || got.ErrorCode != tt.want.ErrorCode ||
				got.ClassName != tt.want.ClassName || got.Application != tt.want.Application ||
				got.Path != tt.want.Path || !got.Timestamp.Equal(tt.want.Timestamp) {
				t.Errorf("expected %+v, got %+v", tt.want, *got)
			}
			if len(tt.want.Details) > 0 && got.Details["id"] != tt.want.Details["id"] {
				t.Errorf("expected details %v, got %v", tt.want.Details, got.Details)
			}
		})
	}
}

func TestMessageErrorDecoder(t *testing.T) {
	rec := testutil.NewRecorder(testutil.Respond(http.StatusBadRequest, "application/json", `{"message":"structured"}`))
	b := newTestBuilder(rec).MethodFunctions("Get", InvocationFunctions{ErrorDecoder: MessageErrorDecoder("GET_FAILED")})
	items, err := Build[Items](b)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	_, err = items.Get(context.Background(), "1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.ErrorCode != "GET_FAILED" || apiErr.Message != `{"message":"structured"}` {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestErrorPredicate_Custom(t *testing.T) {
	rec := testutil.NewRecorder(testutil.RespondWithHeader(
		testutil.Respond(http.StatusOK, "application/json", `{"message":"soft failure"}`), "X-Status", "failed"))
	b := newTestBuilder(rec).CommonFunctions(InvocationFunctions{
		ErrorPredicate: func(status int, h http.Header) bool {
			return status >= 400 || h.Get("X-Status") == "failed"
		},
	})
	items, err := Build[Items](b)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	_, err = items.Get(context.Background(), "1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "soft failure" {
		t.Errorf("expected soft failure, got %q", apiErr.Message)
	}
}

func TestErrorPredicate_Disabled(t *testing.T) {
	rec := testutil.NewRecorder(testutil.Respond(http.StatusNotFound, "application/json", `{"id":"1"}`))
	b := newTestBuilder(rec).MethodFunctions("Get", InvocationFunctions{
		ErrorPredicate: func(int, http.Header) bool { return false },
	})
	items, err := Build[Items](b)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, err := items.Get(context.Background(), "1")
	if err != nil {
		t.Fatalf("expected 404 to decode as success, got %v", err)
	}
	if got.ID != "1" {
		t.Errorf("unexpected item %+v", got)
	}
}

func TestErrorDecoder_NilFallsBack(t *testing.T) {
	rec := testutil.NewRecorder(testutil.Respond(http.StatusInternalServerError, "", "boom"))
	b := newTestBuilder(rec).CommonFunctions(InvocationFunctions{
		ErrorDecoder: ErrorDecoderFunc(func(ResponseMetadata, []byte) error { return nil }),
	})
	items, err := Build[Items](b)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	_, err = items.Get(context.Background(), "1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 *APIError, got %v", err)
	}
}

func TestErrorHandler_MaxBodySize(t *testing.T) {
	rec := testutil.NewRecorder(testutil.Respond(http.StatusBadRequest, "text/plain", strings.Repeat("x", 100)))
	var seen int
	b := newTestBuilder(rec).MaxErrorBodySize(10).CommonFunctions(InvocationFunctions{
		ErrorDecoder: ErrorDecoderFunc(func(meta ResponseMetadata, body []byte) error {
			seen = len(body)
			return DefaultErrorDecoder.DecodeError(meta, body)
		}),
	})
	items, err := Build[Items](b)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := items.Get(context.Background(), "1"); err == nil {
		t.Fatal("expected error")
	}
	if seen != 10 {
		t.Errorf("expected decoder to see 10 bytes, saw %d", seen)
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		err  *APIError
		want string
	}{
		{&APIError{Status: 404, Code: CodeNotFound, Message: "gone"}, "404 not_found: gone"},
		{&APIError{Status: 409, Code: CodeConflict, ErrorCode: "DUP", Message: "taken"}, "409 conflict [DUP]: taken"},
		{&APIError{Status: 503, Code: CodeUnavailable}, "503 unavailable: Service Unavailable"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{400, CodeInvalidArgument},
		{401, CodeUnauthenticated},
		{403, CodePermissionDenied},
		{404, CodeNotFound},
		{409, CodeConflict},
		{418, CodeInvalidArgument},
		{422, CodeInvalidArgument},
		{429, CodeResourceExhausted},
		{500, CodeInternal},
		{502, CodeInternal},
		{503, CodeUnavailable},
		{504, CodeDeadlineExceeded},
		{302, CodeUnknown},
	}
	for _, tt := range tests {
		if got := CodeForStatus(tt.status); got != tt.want {
			t.Errorf("CodeForStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
	for _, code := range []ErrorCode{CodeNotFound, CodeConflict, CodeUnavailable, CodeDeadlineExceeded} {
		if got := CodeForStatus(code.HTTPStatus()); got != code {
			t.Errorf("round trip of %s gave %s", code, got)
		}
	}
}

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		err  *ConfigError
		want string
	}{
		{&ConfigError{Client: "Items", Method: "Get", Reason: "bad"}, "restproxy: Items.Get: bad"},
		{&ConfigError{Client: "Items", Reason: "bad"}, "restproxy: Items: bad"},
		{&ConfigError{Reason: "bad"}, "restproxy: bad"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
