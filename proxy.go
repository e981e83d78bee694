package restproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"sort"

	"github.com/broady/restproxy/codec"
)

// ErrUnknownMethod is returned by Invoke for a name the proxy does not map.
var ErrUnknownMethod = errors.New("restproxy: unknown method")

// Proxy is the dispatch table of one client: method name to compiled
// mapping and functions. It is immutable and safe for concurrent use.
type Proxy struct {
	client       string
	methods      map[string]*method
	exchange     ExchangeFunc
	base         *url.URL
	codecs       *codec.Registry
	maxErrorBody int64
}

// Client returns the client name the proxy was built for.
func (p *Proxy) Client() string { return p.client }

// Methods returns the mapped method names, sorted.
func (p *Proxy) Methods() []string {
	names := make([]string, 0, len(p.methods))
	for name := range p.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mapping returns the compiled mapping of name.
func (p *Proxy) Mapping(name string) (Mapping, bool) {
	m, ok := p.methods[name]
	if !ok {
		return Mapping{}, false
	}
	mapping := m.mapping
	mapping.Params = slices.Clone(mapping.Params)
	return mapping, true
}

// Invoke runs the request pipeline for method name with args (context
// excluded): resolve the verb, build the URI, headers and cookies, insert
// the body, exchange through the filters and transport, then build the
// response.
//
// A closer body argument belongs to the proxy once Invoke is called. It is
// closed by the transport, or by Invoke if the exchange is never reached.
func (p *Proxy) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	m, ok := p.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w %s.%s", ErrUnknownMethod, p.client, name)
	}
	if len(args) != len(m.mapping.Params) {
		closeArgs(m, args)
		return nil, &ArgumentError{Method: name, Fields: map[string]string{
			"args": fmt.Sprintf("want %d arguments, got %d", len(m.mapping.Params), len(args)),
		}}
	}
	inv := &Invocation{
		client: p.client,
		method: m,
		args:   slices.Clone(args),
		base:   p.base,
		codecs: p.codecs,
	}
	ctx = withInvocation(ctx, inv)

	req, err := m.fns.URISpec.ResolveURISpec(inv)
	if err != nil {
		closeArgs(m, args)
		return nil, err
	}
	defer func() {
		if !req.handedOff {
			_ = req.CloseBody()
		}
		// A body argument that never became the request body, or was
		// replaced by an encoded form before the exchange.
		if body, ok := inv.Body(); ok && (req.Body == nil || !req.handedOff) {
			if c, ok := body.(io.Closer); ok && any(c) != any(req.Body) {
				_ = c.Close()
			}
		}
	}()

	if err := m.fns.URI.BuildURI(inv, req); err != nil {
		return nil, err
	}
	if err := m.fns.Headers.BuildHeaders(inv, req); err != nil {
		return nil, err
	}
	if err := m.fns.Cookies.BuildCookies(inv, req); err != nil {
		return nil, err
	}
	if req.BodyAllowed {
		if err := m.fns.Body.InsertBody(inv, req); err != nil {
			return nil, err
		}
	}

	resp, err := p.exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.fns.Response.BuildResponse(inv, resp, ErrorHandler{
		Predicate:   m.fns.ErrorPredicate,
		Decoder:     m.fns.ErrorDecoder,
		MaxBodySize: p.maxErrorBody,
	})
}

func closeArgs(m *method, args []any) {
	if m.bodyIndex < 0 || m.bodyIndex >= len(args) {
		return
	}
	if c, ok := args[m.bodyIndex].(io.Closer); ok && !isNil(c) {
		_ = c.Close()
	}
}

// Call invokes method name and converts its result to T.
func Call[T any](ctx context.Context, p *Proxy, name string, args ...any) (T, error) {
	var zero T
	res, err := p.Invoke(ctx, name, args...)
	if err != nil || res == nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("restproxy: %s.%s: result %T is not a %T", p.client, name, res, zero)
	}
	return v, nil
}

// CallVoid invokes a method without a result.
func CallVoid(ctx context.Context, p *Proxy, name string, args ...any) error {
	_, err := p.Invoke(ctx, name, args...)
	return err
}
