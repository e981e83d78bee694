package restproxy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// DefaultURIBuilder expands the path template with the path variables and
// appends query parameters in argument order.
//
// Template values and query parameters are percent-encoded per RFC 3986;
// a space is always written as %20, never as '+'.
var DefaultURIBuilder URIBuilder = URIBuilderFunc(buildURI)

func buildURI(inv *Invocation, req *RequestDescriptor) error {
	vars := uritemplate.Values{}
	for name, v := range inv.PathVariables() {
		s, ok := formatScalar(v)
		if !ok {
			if isNil(v) {
				return &ArgumentError{Method: inv.Method().Name, Fields: map[string]string{name: "required"}}
			}
			return &ArgumentError{Method: inv.Method().Name, Fields: map[string]string{name: fmt.Sprintf("unsupported path value %T", v)}}
		}
		vars.Set(name, uritemplate.String(s))
	}
	path, err := inv.method.template.Expand(vars)
	if err != nil {
		return fmt.Errorf("restproxy: expand %q: %w", inv.Method().Path, err)
	}

	raw := path
	if base := inv.BaseURL(); base != nil {
		base.RawQuery = ""
		base.Fragment = ""
		raw = strings.TrimSuffix(base.String(), "/") + path
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("restproxy: parse %q: %w", raw, err)
	}

	query, err := encodeQuery(inv.QueryParams())
	if err != nil {
		return &ArgumentError{Method: inv.Method().Name, Fields: map[string]string{"query": err.Error()}}
	}
	if query != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + query
		} else {
			u.RawQuery = query
		}
	}
	req.URL = u
	return nil
}

func encodeQuery(params []NamedValue) (string, error) {
	var b strings.Builder
	for _, p := range params {
		pairs, err := expandValues(p.Name, p.Value, true)
		if err != nil {
			return "", err
		}
		for _, kv := range pairs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(escapeQuery(kv.key))
			b.WriteByte('=')
			b.WriteString(escapeQuery(kv.value))
		}
	}
	return b.String(), nil
}

// escapeQuery is url.QueryEscape with %20 for spaces. QueryEscape already
// encodes a literal '+' as %2B, so every remaining '+' was a space.
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
