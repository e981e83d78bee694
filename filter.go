package restproxy

import (
	"context"
	"net/http"
)

// ExchangeFunc represents the next step in a filter chain.
type ExchangeFunc func(ctx context.Context, req *RequestDescriptor) (*http.Response, error)

// ExchangeFilter wraps the HTTP exchange of every invocation.
//
//	func timing(ctx context.Context, req *restproxy.RequestDescriptor, next restproxy.ExchangeFunc) (*http.Response, error) {
//	    start := time.Now()
//	    resp, err := next(ctx, req)
//	    log.Printf("%s %s took %v", req.Method, req.URL, time.Since(start))
//	    return resp, err
//	}
//
// Filters can:
//   - Modify the request before calling next
//   - Replace or inspect the response after calling next
//   - Short-circuit by returning without calling next
//
// A filter that returns a response without calling next is responsible for
// that response's body; the request body is released by the proxy.
type ExchangeFilter func(ctx context.Context, req *RequestDescriptor, next ExchangeFunc) (*http.Response, error)

// chainFilters combines filters around final.
// The first filter in the slice is the outer-most one (runs first).
func chainFilters(filters []ExchangeFilter, final ExchangeFunc) ExchangeFunc {
	chain := final
	for i := len(filters) - 1; i >= 0; i-- {
		current := filters[i]
		next := chain
		chain = func(ctx context.Context, req *RequestDescriptor) (*http.Response, error) {
			return current(ctx, req, next)
		}
	}
	return chain
}

// DefaultHeader returns a filter that sets key to value unless the request
// already carries it.
func DefaultHeader(key, value string) ExchangeFilter {
	return func(ctx context.Context, req *RequestDescriptor, next ExchangeFunc) (*http.Response, error) {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
		return next(ctx, req)
	}
}
