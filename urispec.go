package restproxy

import (
	"fmt"
	"net/http"
)

// DefaultURISpecResolver supports GET, POST, PUT, PATCH, DELETE and HEAD.
var DefaultURISpecResolver URISpecResolver = URISpecResolverFunc(resolveVerb)

func resolveVerb(inv *Invocation) (*RequestDescriptor, error) {
	verb := inv.Method().Verb
	switch verb {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return NewRequestDescriptor(verb, false), nil
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return NewRequestDescriptor(verb, true), nil
	default:
		return nil, fmt.Errorf("%w %q on %s.%s", ErrUnsupportedVerb, verb, inv.Client(), inv.Method().Name)
	}
}
