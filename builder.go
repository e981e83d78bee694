package restproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"sync"

	"github.com/broady/restproxy/codec"
)

// DefaultMaxErrorBodySize caps how much of an error response is read for
// the error decoder.
const DefaultMaxErrorBodySize = 1 << 20

// Builder configures and builds proxies.
//
// A Builder starts out accepting configuration. The first successful Build
// or Proxy freezes it: later configuration calls are ignored and logged at
// Warn, and further builds reuse the frozen configuration.
type Builder struct {
	mu           sync.Mutex
	transport    Transport
	base         *url.URL
	common       InvocationFunctions
	perMethod    map[string]InvocationFunctions
	filters      []ExchangeFilter
	logger       *slog.Logger
	codecs       *codec.Registry
	maxErrorBody int64
	errs         []error
	built        bool
}

func NewBuilder() *Builder {
	return &Builder{
		perMethod:    make(map[string]InvocationFunctions),
		maxErrorBody: DefaultMaxErrorBodySize,
	}
}

// configure runs fn unless the builder is frozen.
func (b *Builder) configure(op string, fn func()) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		b.log().Warn("builder already built, ignoring configuration", "op", op)
		return b
	}
	fn()
	return b
}

// Client sets the transport that performs exchanges.
func (b *Builder) Client(t Transport) *Builder {
	return b.configure("Client", func() { b.transport = t })
}

// HTTPClient sets an *http.Client as transport.
func (b *Builder) HTTPClient(c *http.Client) *Builder {
	return b.configure("HTTPClient", func() { b.transport = HTTPTransport(c) })
}

// BaseURL sets the URL every method path is resolved against.
// A malformed URL is reported by Build.
func (b *Builder) BaseURL(raw string) *Builder {
	return b.configure("BaseURL", func() {
		u, err := url.Parse(raw)
		if err != nil {
			b.errs = append(b.errs, configErrorf("", "", "invalid base URL %q: %v", raw, err))
			return
		}
		b.base = u
	})
}

// CommonFunctions sets the functions used by every method. Nil fields keep
// the defaults.
func (b *Builder) CommonFunctions(fns InvocationFunctions) *Builder {
	return b.configure("CommonFunctions", func() { b.common = fns })
}

// MethodFunctions sets the functions of one method, on top of the common
// ones. A later call for the same method replaces the earlier one.
func (b *Builder) MethodFunctions(name string, fns InvocationFunctions) *Builder {
	return b.configure("MethodFunctions", func() {
		if name == "" {
			b.errs = append(b.errs, configErrorf("", "", "method functions registered without a method name"))
			return
		}
		b.perMethod[name] = fns
	})
}

// WithFilter adds an exchange filter. The first filter added is the
// outer-most one.
func (b *Builder) WithFilter(f ExchangeFilter) *Builder {
	return b.configure("WithFilter", func() { b.filters = append(b.filters, f) })
}

// WithLogger sets the logger. If not set, slog.Default() is used.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	return b.configure("WithLogger", func() { b.logger = logger })
}

// WithCodecs replaces the codec registry (codec.Default() if unset).
func (b *Builder) WithCodecs(r *codec.Registry) *Builder {
	return b.configure("WithCodecs", func() { b.codecs = r })
}

// MaxErrorBodySize caps the error body handed to the error decoder.
// 0 means no limit.
func (b *Builder) MaxErrorBodySize(n int64) *Builder {
	return b.configure("MaxErrorBodySize", func() { b.maxErrorBody = n })
}

func (b *Builder) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}

// Proxy compiles mappings into the dispatch table of the client named
// client. Generated clients call it from their constructor.
func (b *Builder) Proxy(client string, mappings ...Mapping) (*Proxy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	logger := b.log()

	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if b.transport == nil {
		return nil, configErrorf(client, "", "no HTTP client configured")
	}

	base := DefaultFunctions().merge(b.common)
	methods := make(map[string]*method, len(mappings))
	for _, m := range mappings {
		if _, dup := methods[m.Name]; dup {
			return nil, configErrorf(client, m.Name, "method mapped twice")
		}
		fns := base
		if own, ok := b.perMethod[m.Name]; ok {
			fns = fns.merge(own)
		}
		c, err := compile(client, m, fns, logger)
		if err != nil {
			return nil, err
		}
		methods[m.Name] = c
		logger.Debug("compiled method", "client", client, "method", m.Name,
			"verb", c.mapping.Verb, "path", c.mapping.Path, "override", !b.perMethod[m.Name].isZero())
	}
	for name := range b.perMethod {
		if _, ok := methods[name]; !ok {
			return nil, configErrorf(client, name, "method functions registered for an undeclared method")
		}
	}

	codecs := b.codecs
	if codecs == nil {
		codecs = codec.Default()
	}
	transport := b.transport
	final := func(ctx context.Context, req *RequestDescriptor) (*http.Response, error) {
		req.handedOff = true
		return transport.Exchange(ctx, req)
	}
	b.built = true
	return &Proxy{
		client:       client,
		methods:      methods,
		exchange:     chainFilters(append([]ExchangeFilter(nil), b.filters...), final),
		base:         b.base,
		codecs:       codecs,
		maxErrorBody: b.maxErrorBody,
	}, nil
}

// Build returns a *T with every route-tagged func field bound to a proxy
// method. T must be a struct of funcs:
//
//	type Items struct {
//	    _   struct{} `restproxy:"/api/v1"`
//	    Get func(ctx context.Context, id string) (*Item, error) `restproxy:"GET /items/{id}" params:"path:id"`
//	}
//
// The params tag lists the role of every argument after the context, in
// order: path:NAME, query[:NAME], header[:NAME], cookie[:NAME], body, or -
// (ignored). accept and content tags list media types.
func Build[T any](b *Builder) (*T, error) {
	t := reflect.TypeFor[T]()
	mappings, err := mappingsFromStruct(t)
	if err != nil {
		return nil, err
	}
	p, err := b.Proxy(t.Name(), mappings...)
	if err != nil {
		return nil, err
	}
	out := new(T)
	v := reflect.ValueOf(out).Elem()
	for _, m := range mappings {
		f := v.FieldByName(m.Name)
		f.Set(p.funcFor(m.Name, f.Type()))
	}
	return out, nil
}

// funcFor implements a func of type ft that dispatches to method name.
func (p *Proxy) funcFor(name string, ft reflect.Type) reflect.Value {
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		ctx, _ := in[0].Interface().(context.Context)
		if ctx == nil {
			ctx = context.Background()
		}
		args := make([]any, len(in)-1)
		for i, a := range in[1:] {
			args[i] = a.Interface()
		}
		res, err := p.Invoke(ctx, name, args...)
		errV := reflect.Zero(errorType)
		if err != nil {
			errV = reflect.ValueOf(&err).Elem()
		}
		if ft.NumOut() == 1 {
			return []reflect.Value{errV}
		}
		rt := ft.Out(0)
		resV := reflect.Zero(rt)
		if err == nil && res != nil {
			rv := reflect.ValueOf(res)
			switch {
			case rv.Type().AssignableTo(rt):
				resV = rv
			case rv.Type().ConvertibleTo(rt):
				resV = rv.Convert(rt)
			default:
				err = fmt.Errorf("restproxy: %s.%s: result %T is not assignable to %s", p.client, name, res, rt)
				errV = reflect.ValueOf(&err).Elem()
			}
		}
		return []reflect.Value{resV, errV}
	})
}
