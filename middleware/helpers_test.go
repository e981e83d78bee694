package middleware

import (
	"context"
	"log/slog"
	"testing"

	"github.com/broady/restproxy"
	"github.com/broady/restproxy/testutil"
)

type Widget struct {
	ID string `json:"id"`
}

type Widgets struct {
	Get    func(ctx context.Context, id string) (*Widget, error) `restproxy:"GET /widgets/{id}" params:"path:id"`
	Delete func(ctx context.Context, id string) error            `restproxy:"DELETE /widgets/{id}" params:"path:id"`
	Auth   func(ctx context.Context, token string) error         `restproxy:"GET /me" params:"header:Authorization"`
}

func buildWidgets(t *testing.T, rec *testutil.Recorder, filters ...restproxy.ExchangeFilter) *Widgets {
	t.Helper()
	b := restproxy.NewBuilder().
		HTTPClient(rec.Client()).
		BaseURL("http://widgets.test").
		WithLogger(slog.New(slog.DiscardHandler))
	for _, f := range filters {
		b.WithFilter(f)
	}
	w, err := restproxy.Build[Widgets](b)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return w
}
