package restproxy

import "net/http"

// DefaultCookieBuilder adds one cookie per cookie argument. Nil arguments
// send nothing; maps spread into one cookie per entry.
var DefaultCookieBuilder CookieBuilder = CookieBuilderFunc(buildCookies)

func buildCookies(inv *Invocation, req *RequestDescriptor) error {
	seen := make(map[string]bool)
	for _, c := range inv.Cookies() {
		pairs, err := expandValues(c.Name, c.Value, false)
		if err != nil {
			return &ArgumentError{Method: inv.Method().Name, Fields: map[string]string{c.Name: err.Error()}}
		}
		for _, kv := range pairs {
			if seen[kv.key] {
				return &ArgumentError{Method: inv.Method().Name, Fields: map[string]string{kv.key: "duplicate cookie"}}
			}
			seen[kv.key] = true
			req.Cookies = append(req.Cookies, &http.Cookie{Name: kv.key, Value: kv.value})
		}
	}
	return nil
}
