// Package codec converts request bodies to bytes and response bodies to
// values, keyed by media type.
package codec

import (
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/elnormous/contenttype"
)

const (
	MediaTypeJSON        = "application/json"
	MediaTypeXML         = "application/xml"
	MediaTypeYAML        = "application/yaml"
	MediaTypeText        = "text/plain"
	MediaTypeForm        = "application/x-www-form-urlencoded"
	MediaTypeMultipart   = "multipart/form-data"
	MediaTypeOctet       = "application/octet-stream"
	MediaTypeNDJSON      = "application/x-ndjson"
	MediaTypeEventStream = "text/event-stream"
)

// Codec serializes values for a family of media types.
type Codec interface {
	// MediaTypes lists the handled media types; the first is canonical.
	MediaTypes() []string
	// Encode returns the serialized form of v. A non-empty contentType
	// replaces the negotiated Content-Type (multipart adds its boundary).
	Encode(v any) (body io.Reader, contentType string, err error)
	// Decode reads r into the value pointed to by v.
	Decode(r io.Reader, v any) error
}

// Registry looks codecs up by media type. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs []Codec
}

// NewRegistry returns a registry holding codecs, searched in order.
func NewRegistry(codecs ...Codec) *Registry {
	return &Registry{codecs: codecs}
}

// Default returns a registry with all built-in codecs.
func Default() *Registry {
	return NewRegistry(JSON{}, XML{}, YAML{}, Text{}, Form{}, Multipart{}, Octet{})
}

// Register adds c in front of the existing codecs.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs = append([]Codec{c}, r.codecs...)
}

// Lookup returns the codec for mediaType. Structured syntax suffixes are
// honored, so application/problem+json resolves to the JSON codec.
func (r *Registry) Lookup(mediaType string) (Codec, bool) {
	mt, err := contenttype.ParseMediaType(mediaType)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.find(mt); ok {
		return c, true
	}
	if i := strings.LastIndexByte(mt.Subtype, '+'); i >= 0 {
		base := contenttype.MediaType{Type: "application", Subtype: mt.Subtype[i+1:]}
		return r.find(base)
	}
	return nil, false
}

func (r *Registry) find(mt contenttype.MediaType) (Codec, bool) {
	for _, c := range r.codecs {
		for _, s := range c.MediaTypes() {
			candidate := contenttype.NewMediaType(s)
			if matches(mt, candidate) {
				return c, true
			}
		}
	}
	return nil, false
}

// matches compares type and subtype, ignoring parameters. A wildcard on the
// requested side does not match; callers negotiate concrete types.
func matches(want, have contenttype.MediaType) bool {
	return strings.EqualFold(want.Type, have.Type) && strings.EqualFold(want.Subtype, have.Subtype)
}

// Compatible reports whether two media types are compatible, honoring
// wildcards on either side.
func Compatible(a, b string) bool {
	ma, err := contenttype.ParseMediaType(a)
	if err != nil {
		return false
	}
	mb, err := contenttype.ParseMediaType(b)
	if err != nil {
		return false
	}
	return ma.Matches(mb)
}

// Essence returns "type/subtype" of s in lower case, or "" if s does not parse.
func Essence(s string) string {
	mt, err := contenttype.ParseMediaType(s)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt.Type + "/" + mt.Subtype)
}

// DefaultMediaType picks a body media type for v when the method declares none.
func DefaultMediaType(v any) string {
	switch v.(type) {
	case url.Values:
		return MediaTypeForm
	case MultipartForm, *MultipartForm:
		return MediaTypeMultipart
	case string:
		return MediaTypeText
	case []byte, io.Reader:
		return MediaTypeOctet
	}
	return MediaTypeJSON
}
