package restproxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/broady/restproxy/codec"
)

// ResponseMetadata describes an error response handed to an ErrorDecoder.
type ResponseMetadata struct {
	StatusCode int
	Status     string
	Header     http.Header
	Method     string
	URL        string
}

// DefaultErrorPredicate treats every status >= 400 as an error.
var DefaultErrorPredicate ErrorPredicate = func(status int, _ http.Header) bool {
	return status >= 400
}

// ErrorHandler pairs the error predicate with its decoder.
type ErrorHandler struct {
	Predicate ErrorPredicate
	Decoder   ErrorDecoder
	// MaxBodySize caps how much of an error body is read. 0 means no limit.
	MaxBodySize int64
}

// Check returns the decoded error if the predicate matches resp, after
// reading and closing the body. It returns nil, leaving the body untouched,
// otherwise. The decoder runs at most once.
func (h ErrorHandler) Check(resp *http.Response) error {
	if h.Predicate == nil || !h.Predicate(resp.StatusCode, resp.Header) {
		return nil
	}
	defer resp.Body.Close()
	var r io.Reader = resp.Body
	if h.MaxBodySize > 0 {
		r = io.LimitReader(resp.Body, h.MaxBodySize)
	}
	body, readErr := io.ReadAll(r)
	meta := ResponseMetadata{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
	}
	if resp.Request != nil {
		meta.Method = resp.Request.Method
		if resp.Request.URL != nil {
			meta.URL = resp.Request.URL.String()
		}
	}
	decoder := h.Decoder
	if decoder == nil {
		decoder = DefaultErrorDecoder
	}
	if err := decoder.DecodeError(meta, body); err != nil {
		return err
	}
	// A decoder that yields nothing must not turn an error into a success.
	if readErr != nil {
		return fmt.Errorf("restproxy: read error body: %w", readErr)
	}
	return &APIError{
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Code:    CodeForStatus(resp.StatusCode),
		Message: http.StatusText(resp.StatusCode),
	}
}

var (
	readCloserType = reflect.TypeFor[io.ReadCloser]()
	headerType     = reflect.TypeFor[http.Header]()
	stringType     = reflect.TypeFor[string]()
	bytesType      = reflect.TypeFor[[]byte]()
)

// DefaultResponseBuilder decodes the body into the method's return type.
//
// Supported shapes: no result (body drained), string and []byte (raw body),
// io.ReadCloser (caller closes), http.Header (response headers),
// iter.Seq2[E, error] (streamed, see stream.go), and anything a codec can
// decode. Empty bodies yield the zero value.
var DefaultResponseBuilder ResponseBuilder = ResponseBuilderFunc(buildResponse)

func buildResponse(inv *Invocation, resp *http.Response, onError ErrorHandler) (any, error) {
	if err := onError.Check(resp); err != nil {
		return nil, err
	}
	rt := inv.Method().Returns
	switch {
	case rt == nil:
		defer resp.Body.Close()
		_, err := io.Copy(io.Discard, resp.Body)
		return nil, err
	case rt == readCloserType:
		return resp.Body, nil
	case isStreamType(rt):
		return newStream(rt, resp, inv.Codecs()).Interface(), nil
	}

	defer resp.Body.Close()
	switch rt {
	case headerType:
		return resp.Header, nil
	case stringType, bytesType:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if rt == stringType {
			return string(b), nil
		}
		return b, nil
	}

	if resp.StatusCode == http.StatusNoContent || resp.Request != nil && resp.Request.Method == http.MethodHead {
		return reflect.Zero(rt).Interface(), nil
	}
	br := bufio.NewReader(resp.Body)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return reflect.Zero(rt).Interface(), nil
		}
		return nil, err
	}
	c, err := responseCodec(inv, resp)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(rt)
	if err := c.Decode(br, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("restproxy: %s.%s: decode response: %w", inv.Client(), inv.Method().Name, err)
	}
	return ptr.Elem().Interface(), nil
}

// responseCodec picks the codec for the response Content-Type, falling back
// to the method's first accept type and then JSON.
func responseCodec(inv *Invocation, resp *http.Response) (codec.Codec, error) {
	candidates := []string{resp.Header.Get("Content-Type")}
	candidates = append(candidates, inv.Method().Accept...)
	candidates = append(candidates, codec.MediaTypeJSON)
	for _, ct := range candidates {
		if ct == "" {
			continue
		}
		if c, ok := inv.Codecs().Lookup(ct); ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("restproxy: %s.%s: no codec for response content type %q",
		inv.Client(), inv.Method().Name, resp.Header.Get("Content-Type"))
}
