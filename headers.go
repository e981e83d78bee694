package restproxy

import (
	"net/http"
	"strings"
)

// DefaultHeaderBuilder sets Accept from the method's accept list (default
// */*), Content-Type from its content list when a body is sent, and then
// merges header arguments. An explicit header replaces a computed one of
// the same name; values of the same name from several arguments accumulate,
// except for singular headers where the last value wins.
var DefaultHeaderBuilder HeaderBuilder = HeaderBuilderFunc(buildHeaders)

var singularHeaders = map[string]bool{
	"Content-Type":  true,
	"Authorization": true,
	"Host":          true,
	"User-Agent":    true,
}

func buildHeaders(inv *Invocation, req *RequestDescriptor) error {
	m := inv.Method()
	if len(m.Accept) > 0 {
		req.Header.Set("Accept", strings.Join(m.Accept, ", "))
	} else {
		req.Header.Set("Accept", "*/*")
	}
	if _, ok := inv.Body(); ok && req.BodyAllowed && len(m.ContentType) > 0 {
		req.Header.Set("Content-Type", m.ContentType[0])
	}

	explicit := make(http.Header)
	for _, h := range inv.Headers() {
		pairs, err := expandValues(h.Name, h.Value, false)
		if err != nil {
			return &ArgumentError{Method: m.Name, Fields: map[string]string{h.Name: err.Error()}}
		}
		for _, kv := range pairs {
			key := http.CanonicalHeaderKey(kv.key)
			if singularHeaders[key] {
				explicit.Set(key, kv.value)
			} else {
				explicit.Add(key, kv.value)
			}
		}
	}
	for k, vs := range explicit {
		req.Header[k] = vs
	}
	return nil
}
