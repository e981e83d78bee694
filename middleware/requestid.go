package middleware

import (
	"context"
	"net/http"

	"github.com/broady/restproxy"
	"github.com/google/uuid"
)

// DefaultRequestIDHeader is used by RequestID when header is empty.
const DefaultRequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// WithRequestID returns a context whose exchanges reuse id instead of a
// fresh one, for propagating an inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID creates a filter that sets header to a request id unless the
// request already has one. The id comes from WithRequestID or is a new
// random UUID.
func RequestID(header string) restproxy.ExchangeFilter {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return func(ctx context.Context, req *restproxy.RequestDescriptor, next restproxy.ExchangeFunc) (*http.Response, error) {
		if req.Header.Get(header) == "" {
			id, _ := ctx.Value(requestIDKey{}).(string)
			if id == "" {
				id = uuid.NewString()
			}
			req.Header.Set(header, id)
		}
		return next(ctx, req)
	}
}
