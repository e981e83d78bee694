package restproxy

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/broady/restproxy/testutil"
)

type Item struct {
	ID   string `json:"id" xml:"id"`
	Name string `json:"name" xml:"name" validate:"required"`
}

type ItemFilter struct {
	Owner string `schema:"owner"`
	Limit int    `schema:"limit"`
}

type Items struct {
	_ struct{} `restproxy:"/api"`

	Get     func(ctx context.Context, id string) (*Item, error)                   `restproxy:"GET /items/{id}" params:"path:id"`
	Search  func(ctx context.Context, q string, tags []string) ([]Item, error)    `restproxy:"GET /items" params:"query:q,query:tag"`
	Filter  func(ctx context.Context, f ItemFilter) ([]Item, error)               `restproxy:"GET /items" params:"query"`
	Create  func(ctx context.Context, item Item, reqID string) (*Item, error)     `restproxy:"POST /items" params:"body,header:X-Request-Id" content:"application/json" accept:"application/json"`
	Upload  func(ctx context.Context, id string, data io.ReadCloser) error        `restproxy:"PUT /items/{id}/data" params:"path:id,body"`
	Delete  func(ctx context.Context, id string) error                            `restproxy:"DELETE /items/{id}" params:"path:id"`
	Raw     func(ctx context.Context, id string) (string, error)                  `restproxy:"GET /items/{id}/raw" params:"path:id" accept:"text/plain"`
	Watch   func(ctx context.Context) (iter.Seq2[Item, error], error)             `restproxy:"GET /items/watch" accept:"application/x-ndjson"`
	Session func(ctx context.Context, sid *string, prefs map[string]string) error `restproxy:"GET /session" params:"cookie:sid,cookie"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestBuilder(rec *testutil.Recorder) *Builder {
	return NewBuilder().
		HTTPClient(rec.Client()).
		BaseURL("http://api.test").
		WithLogger(discardLogger())
}

func buildItems(t *testing.T, rec *testutil.Recorder) *Items {
	t.Helper()
	items, err := Build[Items](newTestBuilder(rec))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return items
}

// trackingBody records whether it was closed.
type trackingBody struct {
	io.Reader
	closed atomic.Int32
}

func newTrackingBody(s string) *trackingBody {
	return &trackingBody{Reader: strings.NewReader(s)}
}

func (b *trackingBody) Close() error {
	b.closed.Add(1)
	return nil
}

func (b *trackingBody) Closed() bool { return b.closed.Load() > 0 }

// respondBody answers with body as the response body, so tests can observe
// when the proxy closes it.
func respondBody(status int, contentType string, body io.ReadCloser) testutil.Responder {
	return func(*http.Request) (*http.Response, error) {
		resp := testutil.NewResponse(status, contentType, "")
		resp.Body = body
		resp.ContentLength = -1
		return resp, nil
	}
}
