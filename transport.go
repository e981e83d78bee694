package restproxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
)

// RequestDescriptor accumulates the outgoing request while the pipeline
// runs. It belongs to a single invocation.
type RequestDescriptor struct {
	Method  string
	URL     *url.URL
	Header  http.Header
	Cookies []*http.Cookie
	// Body is nil for requests without payload. Once set, the transport owns
	// it and closes it if it is an io.Closer.
	Body io.Reader
	// BodyAllowed is false for verbs that carry no payload.
	BodyAllowed bool

	handedOff bool
}

// NewRequestDescriptor returns an empty descriptor for verb.
func NewRequestDescriptor(verb string, bodyAllowed bool) *RequestDescriptor {
	return &RequestDescriptor{
		Method:      verb,
		Header:      make(http.Header),
		BodyAllowed: bodyAllowed,
	}
}

// HTTPRequest converts the descriptor into a net/http request.
func (r *RequestDescriptor) HTTPRequest(ctx context.Context) (*http.Request, error) {
	if r.URL == nil {
		return nil, errors.New("restproxy: request has no URL")
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), r.Body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	for _, c := range r.Cookies {
		req.AddCookie(c)
	}
	return req, nil
}

// CloseBody closes the body if it is an io.Closer. Transports call it when
// they fail before handing the body to the wire.
func (r *RequestDescriptor) CloseBody() error {
	if c, ok := r.Body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Transport performs the HTTP exchange. Exchange blocks until response
// headers arrive or ctx is done. Implementations own req.Body and must
// close it on every path.
type Transport interface {
	Exchange(ctx context.Context, req *RequestDescriptor) (*http.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *RequestDescriptor) (*http.Response, error)

func (f TransportFunc) Exchange(ctx context.Context, req *RequestDescriptor) (*http.Response, error) {
	return f(ctx, req)
}

// HTTPTransport executes requests with an *http.Client. A nil client means
// http.DefaultClient.
func HTTPTransport(c *http.Client) Transport {
	if c == nil {
		c = http.DefaultClient
	}
	return TransportFunc(func(ctx context.Context, req *RequestDescriptor) (*http.Response, error) {
		httpReq, err := req.HTTPRequest(ctx)
		if err != nil {
			_ = req.CloseBody()
			return nil, err
		}
		// Do closes the request body, even on errors.
		return c.Do(httpReq)
	})
}
