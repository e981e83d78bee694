package restproxy

import "net/http"

// URISpecResolver starts a request for the invocation's verb.
type URISpecResolver interface {
	ResolveURISpec(inv *Invocation) (*RequestDescriptor, error)
}

// URIBuilder sets req.URL.
type URIBuilder interface {
	BuildURI(inv *Invocation, req *RequestDescriptor) error
}

// HeaderBuilder fills req.Header.
type HeaderBuilder interface {
	BuildHeaders(inv *Invocation, req *RequestDescriptor) error
}

// CookieBuilder fills req.Cookies.
type CookieBuilder interface {
	BuildCookies(inv *Invocation, req *RequestDescriptor) error
}

// BodyInserter attaches the serialized body argument to req.
// It is only called when req.BodyAllowed is set.
type BodyInserter interface {
	InsertBody(inv *Invocation, req *RequestDescriptor) error
}

// ErrorPredicate decides whether a response is an error response.
type ErrorPredicate func(status int, header http.Header) bool

// ErrorDecoder turns an error response into the error returned to the caller.
type ErrorDecoder interface {
	DecodeError(meta ResponseMetadata, body []byte) error
}

// ResponseBuilder converts the response into the method's result.
// It must close resp.Body unless ownership passes to the caller.
type ResponseBuilder interface {
	BuildResponse(inv *Invocation, resp *http.Response, onError ErrorHandler) (any, error)
}

type URISpecResolverFunc func(inv *Invocation) (*RequestDescriptor, error)

func (f URISpecResolverFunc) ResolveURISpec(inv *Invocation) (*RequestDescriptor, error) {
	return f(inv)
}

type URIBuilderFunc func(inv *Invocation, req *RequestDescriptor) error

func (f URIBuilderFunc) BuildURI(inv *Invocation, req *RequestDescriptor) error { return f(inv, req) }

type HeaderBuilderFunc func(inv *Invocation, req *RequestDescriptor) error

func (f HeaderBuilderFunc) BuildHeaders(inv *Invocation, req *RequestDescriptor) error {
	return f(inv, req)
}

type CookieBuilderFunc func(inv *Invocation, req *RequestDescriptor) error

func (f CookieBuilderFunc) BuildCookies(inv *Invocation, req *RequestDescriptor) error {
	return f(inv, req)
}

type BodyInserterFunc func(inv *Invocation, req *RequestDescriptor) error

func (f BodyInserterFunc) InsertBody(inv *Invocation, req *RequestDescriptor) error {
	return f(inv, req)
}

type ErrorDecoderFunc func(meta ResponseMetadata, body []byte) error

func (f ErrorDecoderFunc) DecodeError(meta ResponseMetadata, body []byte) error {
	return f(meta, body)
}

type ResponseBuilderFunc func(inv *Invocation, resp *http.Response, onError ErrorHandler) (any, error)

func (f ResponseBuilderFunc) BuildResponse(inv *Invocation, resp *http.Response, onError ErrorHandler) (any, error) {
	return f(inv, resp, onError)
}

// InvocationFunctions bundles the strategies that turn an invocation into
// an exchange and its response into a result. Nil fields fall back to the
// next level: method functions, then common functions, then defaults.
type InvocationFunctions struct {
	URISpec        URISpecResolver
	URI            URIBuilder
	Headers        HeaderBuilder
	Cookies        CookieBuilder
	Body           BodyInserter
	ErrorPredicate ErrorPredicate
	ErrorDecoder   ErrorDecoder
	Response       ResponseBuilder
}

// DefaultFunctions returns the built-in strategies.
func DefaultFunctions() InvocationFunctions {
	return InvocationFunctions{
		URISpec:        DefaultURISpecResolver,
		URI:            DefaultURIBuilder,
		Headers:        DefaultHeaderBuilder,
		Cookies:        DefaultCookieBuilder,
		Body:           DefaultBodyInserter,
		ErrorPredicate: DefaultErrorPredicate,
		ErrorDecoder:   DefaultErrorDecoder,
		Response:       DefaultResponseBuilder,
	}
}

// merge returns f with every non-nil field of o applied on top.
func (f InvocationFunctions) merge(o InvocationFunctions) InvocationFunctions {
	if o.URISpec != nil {
		f.URISpec = o.URISpec
	}
	if o.URI != nil {
		f.URI = o.URI
	}
	if o.Headers != nil {
		f.Headers = o.Headers
	}
	if o.Cookies != nil {
		f.Cookies = o.Cookies
	}
	if o.Body != nil {
		f.Body = o.Body
	}
	if o.ErrorPredicate != nil {
		f.ErrorPredicate = o.ErrorPredicate
	}
	if o.ErrorDecoder != nil {
		f.ErrorDecoder = o.ErrorDecoder
	}
	if o.Response != nil {
		f.Response = o.Response
	}
	return f
}

func (f InvocationFunctions) isZero() bool {
	return f.URISpec == nil && f.URI == nil && f.Headers == nil && f.Cookies == nil &&
		f.Body == nil && f.ErrorPredicate == nil && f.ErrorDecoder == nil && f.Response == nil
}
