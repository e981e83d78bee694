// Package testutil provides testing helpers for code calling HTTP APIs
// through restproxy clients. It does not import restproxy and can be used
// from any package.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Responder produces the response for a recorded request.
type Responder func(*http.Request) (*http.Response, error)

// RecordedRequest is a snapshot of a request seen by a Recorder.
type RecordedRequest struct {
	Method  string
	URL     string
	Path    string
	RawPath string
	Query   string
	Header  http.Header
	Cookies []*http.Cookie
	Body    []byte
	// BodyClosed reports whether the request body was closed by the time
	// the response was produced.
	BodyClosed bool
}

// Recorder is an http.RoundTripper that records requests and answers them
// with a Responder, without any network.
type Recorder struct {
	mu        sync.Mutex
	requests  []RecordedRequest
	responder Responder
}

// NewRecorder returns a Recorder answering with responder, or with an empty
// 200 response if responder is nil.
func NewRecorder(responder Responder) *Recorder {
	if responder == nil {
		responder = Respond(http.StatusOK, "", "")
	}
	return &Recorder{responder: responder}
}

// Client returns an *http.Client using r as transport.
func (r *Recorder) Client() *http.Client {
	return &http.Client{Transport: r}
}

// SetResponder replaces the responder for subsequent requests.
func (r *Recorder) SetResponder(responder Responder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responder = responder
}

func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := RecordedRequest{
		Method:  req.Method,
		URL:     req.URL.String(),
		Path:    req.URL.Path,
		RawPath: req.URL.EscapedPath(),
		Query:   req.URL.RawQuery,
		Header:  req.Header.Clone(),
		Cookies: req.Cookies(),
	}
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		cerr := req.Body.Close()
		if err != nil {
			return nil, err
		}
		if cerr != nil {
			return nil, cerr
		}
		rec.Body = b
		rec.BodyClosed = true
		req.Body = io.NopCloser(bytes.NewReader(b))
	}

	r.mu.Lock()
	r.requests = append(r.requests, rec)
	responder := r.responder
	r.mu.Unlock()

	resp, err := responder(req)
	if resp != nil && resp.Request == nil {
		resp.Request = req
	}
	return resp, err
}

// Requests returns the recorded requests in arrival order.
func (r *Recorder) Requests() []RecordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedRequest(nil), r.requests...)
}

// Last returns the last recorded request, failing t if there is none.
func (r *Recorder) Last(t *testing.T) RecordedRequest {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	return r.requests[len(r.requests)-1]
}

// Len returns the number of recorded requests.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// NewResponse builds a response with the given status, content type and body.
func NewResponse(status int, contentType, body string) *http.Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode:    status,
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// Respond answers every request with the same status, content type and body.
func Respond(status int, contentType, body string) Responder {
	return func(*http.Request) (*http.Response, error) {
		return NewResponse(status, contentType, body), nil
	}
}

// RespondJSON answers every request with v encoded as JSON.
func RespondJSON(status int, v any) Responder {
	b, err := json.Marshal(v)
	return func(*http.Request) (*http.Response, error) {
		if err != nil {
			return nil, err
		}
		return NewResponse(status, "application/json", string(b)), nil
	}
}

// RespondWithHeader wraps next and adds a response header.
func RespondWithHeader(next Responder, key, value string) Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp, err := next(req)
		if resp != nil {
			resp.Header.Set(key, value)
		}
		return resp, err
	}
}

// AssertHeader checks a request header value.
func AssertHeader(t *testing.T, req RecordedRequest, key, expectedValue string) {
	t.Helper()
	if got := req.Header.Get(key); got != expectedValue {
		t.Errorf("expected header %s=%q, got %q", key, expectedValue, got)
	}
}

// AssertJSONBody decodes the request body and compares it to expected after
// a JSON round trip of both.
func AssertJSONBody(t *testing.T, req RecordedRequest, expected any) {
	t.Helper()
	var got any
	if err := json.Unmarshal(req.Body, &got); err != nil {
		t.Fatalf("failed to decode request body %q: %v", req.Body, err)
	}
	b, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to encode expected body: %v", err)
	}
	var want any
	if err := json.Unmarshal(b, &want); err != nil {
		t.Fatalf("failed to decode expected body: %v", err)
	}
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	if !bytes.Equal(gotJSON, wantJSON) {
		t.Errorf("expected body %s, got %s", wantJSON, gotJSON)
	}
}
