package restproxy

import (
	"fmt"
	"net/url"
	"reflect"
	"slices"

	"github.com/broady/restproxy/codec"
)

// Role tells the pipeline what an argument contributes to the request.
type Role int

const (
	RoleIgnored Role = iota
	RolePath
	RoleQuery
	RoleHeader
	RoleCookie
	RoleBody
)

func (r Role) String() string {
	switch r {
	case RolePath:
		return "path"
	case RoleQuery:
		return "query"
	case RoleHeader:
		return "header"
	case RoleCookie:
		return "cookie"
	case RoleBody:
		return "body"
	default:
		return "ignore"
	}
}

// ParseRole parses the textual form used in struct tags and directives.
func ParseRole(s string) (Role, error) {
	switch s {
	case "path":
		return RolePath, nil
	case "query":
		return RoleQuery, nil
	case "header":
		return RoleHeader, nil
	case "cookie":
		return RoleCookie, nil
	case "body":
		return RoleBody, nil
	case "ignore", "-":
		return RoleIgnored, nil
	default:
		return RoleIgnored, fmt.Errorf("unknown argument role %q", s)
	}
}

// Param describes one argument of a mapped method, excluding the leading
// context.Context.
type Param struct {
	Role Role
	// Name is the template variable, query key, header or cookie name.
	// Query, header and cookie params may leave it empty when Type is a
	// map or struct whose entries are spread.
	Name string
	Type reflect.Type
}

func PathParam(name string, t reflect.Type) Param   { return Param{Role: RolePath, Name: name, Type: t} }
func QueryParam(name string, t reflect.Type) Param  { return Param{Role: RoleQuery, Name: name, Type: t} }
func HeaderParam(name string, t reflect.Type) Param { return Param{Role: RoleHeader, Name: name, Type: t} }
func CookieParam(name string, t reflect.Type) Param { return Param{Role: RoleCookie, Name: name, Type: t} }
func BodyParam(t reflect.Type) Param                { return Param{Role: RoleBody, Type: t} }
func IgnoredParam(t reflect.Type) Param             { return Param{Role: RoleIgnored, Type: t} }

// Mapping is the route metadata of one client method.
type Mapping struct {
	Name string
	Verb string
	// Path is the full URI template, client prefix included.
	Path string
	// Accept lists the media types the method takes in responses.
	Accept []string
	// ContentType lists the media types of the request body; the first wins.
	ContentType []string
	Params      []Param
	// Returns is the success result type, nil for methods returning only error.
	Returns reflect.Type
}

// NamedValue is an argument bound to a query, header or cookie name.
type NamedValue struct {
	Name  string
	Value any
}

// Invocation captures one call to a proxied method. It is created per call
// and not modified afterwards; strategies must treat it as read-only.
type Invocation struct {
	client string
	method *method
	args   []any
	base   *url.URL
	codecs *codec.Registry
}

// Client returns the name of the proxied client type.
func (inv *Invocation) Client() string { return inv.client }

// Method returns the mapping of the invoked method.
func (inv *Invocation) Method() *Mapping { return &inv.method.mapping }

// Args returns a copy of the call arguments, context excluded.
func (inv *Invocation) Args() []any { return slices.Clone(inv.args) }

// BaseURL returns the configured base URL, or nil.
func (inv *Invocation) BaseURL() *url.URL {
	if inv.base == nil {
		return nil
	}
	u := *inv.base
	return &u
}

// Codecs returns the serialization registry of the proxy.
func (inv *Invocation) Codecs() *codec.Registry { return inv.codecs }

// PathVariables returns the path-tagged arguments by template name.
func (inv *Invocation) PathVariables() map[string]any {
	vars := make(map[string]any)
	for i, p := range inv.method.mapping.Params {
		if p.Role == RolePath {
			vars[p.Name] = inv.args[i]
		}
	}
	return vars
}

// QueryParams returns the query-tagged arguments in argument order.
func (inv *Invocation) QueryParams() []NamedValue { return inv.named(RoleQuery) }

// Headers returns the header-tagged arguments in argument order.
func (inv *Invocation) Headers() []NamedValue { return inv.named(RoleHeader) }

// Cookies returns the cookie-tagged arguments in argument order.
func (inv *Invocation) Cookies() []NamedValue { return inv.named(RoleCookie) }

// Body returns the body argument. ok is false when the method declares no
// body or the argument is nil.
func (inv *Invocation) Body() (v any, ok bool) {
	i := inv.method.bodyIndex
	if i < 0 || isNil(inv.args[i]) {
		return nil, false
	}
	return inv.args[i], true
}

func (inv *Invocation) named(role Role) []NamedValue {
	var out []NamedValue
	for i, p := range inv.method.mapping.Params {
		if p.Role == role {
			out = append(out, NamedValue{Name: p.Name, Value: inv.args[i]})
		}
	}
	return out
}
