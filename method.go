package restproxy

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

var contextType = reflect.TypeFor[context.Context]()

// method is a compiled Mapping: the parsed template plus the merged
// functions. It is read-only after compile.
type method struct {
	mapping   Mapping
	template  *uritemplate.Template
	bodyIndex int
	fns       InvocationFunctions
}

// compile validates m and pairs it with fns. Every wiring mistake is
// reported as *ConfigError.
func compile(client string, m Mapping, fns InvocationFunctions, logger *slog.Logger) (*method, error) {
	if m.Name == "" {
		return nil, configErrorf(client, "", "mapping without a method name")
	}
	m.Verb = strings.ToUpper(strings.TrimSpace(m.Verb))
	if m.Verb == "" {
		return nil, configErrorf(client, m.Name, "no HTTP verb")
	}
	tmpl, err := uritemplate.New(m.Path)
	if err != nil {
		return nil, configErrorf(client, m.Name, "invalid path template %q: %v", m.Path, err)
	}
	m.Accept = slices.Clone(m.Accept)
	m.ContentType = slices.Clone(m.ContentType)
	m.Params = slices.Clone(m.Params)

	c := &method{mapping: m, template: tmpl, bodyIndex: -1, fns: fns}
	bound := make(map[string]bool)
	cookies := make(map[string]bool)
	for i, p := range m.Params {
		switch p.Role {
		case RoleIgnored:
		case RoleBody:
			if c.bodyIndex >= 0 {
				return nil, configErrorf(client, m.Name, "arguments %d and %d are both marked as body", c.bodyIndex, i)
			}
			c.bodyIndex = i
		case RolePath:
			if p.Name == "" {
				return nil, configErrorf(client, m.Name, "path argument %d has no name", i)
			}
			if p.Type != nil && !isScalarType(p.Type) && p.Type.Kind() != reflect.Interface {
				return nil, configErrorf(client, m.Name, "path argument %q has unsupported type %s", p.Name, p.Type)
			}
			if bound[p.Name] {
				return nil, configErrorf(client, m.Name, "path variable %q bound twice", p.Name)
			}
			bound[p.Name] = true
		case RoleQuery, RoleHeader, RoleCookie:
			if p.Name == "" && (p.Type == nil || !isSpreadType(p.Type, p.Role == RoleQuery)) {
				return nil, configErrorf(client, m.Name, "%s argument %d has no name", p.Role, i)
			}
			if p.Role == RoleCookie && p.Name != "" {
				if cookies[p.Name] {
					return nil, configErrorf(client, m.Name, "duplicate cookie %q", p.Name)
				}
				cookies[p.Name] = true
			}
		default:
			return nil, configErrorf(client, m.Name, "argument %d has unknown role %d", i, p.Role)
		}
	}

	vars := tmpl.Varnames()
	for _, v := range vars {
		if !bound[v] {
			return nil, configErrorf(client, m.Name, "path variable %q in %q is not bound to an argument", v, m.Path)
		}
	}
	for name := range bound {
		if !slices.Contains(vars, name) {
			logger.Warn("path variable not in template, ignoring",
				"client", client, "method", m.Name, "variable", name, "path", m.Path)
		}
	}
	return c, nil
}

// joinPath joins a client prefix and a method path with a single slash.
func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Struct tags read by Build.
const (
	tagRoute   = "restproxy"
	tagParams  = "params"
	tagAccept  = "accept"
	tagContent = "content"
)

// mappingsFromStruct reads the route tags of a struct of funcs. It returns
// the mapping of every func field in field order.
func mappingsFromStruct(t reflect.Type) ([]Mapping, error) {
	client := t.Name()
	if t.Kind() != reflect.Struct {
		return nil, configErrorf(client, "", "%s is not a struct of funcs", t)
	}
	var prefix string
	var out []Mapping
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" {
			if p, ok := f.Tag.Lookup(tagRoute); ok {
				prefix = p
			}
			continue
		}
		route, ok := f.Tag.Lookup(tagRoute)
		if !ok {
			continue
		}
		if !f.IsExported() {
			return nil, configErrorf(client, f.Name, "field is not exported")
		}
		m, err := mappingFromField(client, f, route)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, configErrorf(client, "", "no %s-tagged func fields", tagRoute)
	}
	for i := range out {
		out[i].Path = joinPath(prefix, out[i].Path)
	}
	return out, nil
}

func mappingFromField(client string, f reflect.StructField, route string) (Mapping, error) {
	ft := f.Type
	if ft.Kind() != reflect.Func {
		return Mapping{}, configErrorf(client, f.Name, "field of type %s is not a func", ft)
	}
	if err := checkSignature(ft); err != nil {
		return Mapping{}, configErrorf(client, f.Name, "%v", err)
	}
	verb, path, ok := strings.Cut(strings.TrimSpace(route), " ")
	if !ok {
		return Mapping{}, configErrorf(client, f.Name, "route %q must be \"VERB /path\"", route)
	}
	m := Mapping{
		Name:        f.Name,
		Verb:        verb,
		Path:        strings.TrimSpace(path),
		Accept:      splitList(f.Tag.Get(tagAccept)),
		ContentType: splitList(f.Tag.Get(tagContent)),
	}
	if ft.NumOut() == 2 {
		m.Returns = ft.Out(0)
	}

	var roles []string
	if tag, ok := f.Tag.Lookup(tagParams); ok && strings.TrimSpace(tag) != "" {
		roles = strings.Split(tag, ",")
	}
	if len(roles) != ft.NumIn()-1 {
		return Mapping{}, configErrorf(client, f.Name, "%d arguments after the context but %d %s entries", ft.NumIn()-1, len(roles), tagParams)
	}
	for i, spec := range roles {
		role, name, _ := strings.Cut(strings.TrimSpace(spec), ":")
		r, err := ParseRole(role)
		if err != nil {
			return Mapping{}, configErrorf(client, f.Name, "%v", err)
		}
		m.Params = append(m.Params, Param{Role: r, Name: name, Type: ft.In(i + 1)})
	}
	return m, nil
}

// checkSignature enforces func(ctx, args...) error or (T, error).
func checkSignature(ft reflect.Type) error {
	if ft.IsVariadic() {
		return fmt.Errorf("variadic funcs are not supported")
	}
	if ft.NumIn() == 0 || ft.In(0) != contextType {
		return fmt.Errorf("first parameter must be context.Context")
	}
	switch ft.NumOut() {
	case 1:
		if ft.Out(0) != errorType {
			return fmt.Errorf("single result must be error")
		}
	case 2:
		if ft.Out(1) != errorType {
			return fmt.Errorf("second result must be error")
		}
	default:
		return fmt.Errorf("results must be error or (T, error)")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
