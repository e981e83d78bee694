// Package directive parses restproxy directives from Go source files.
//
// Directives are line comments on an interface and its methods:
//
//	//restproxy:client /api/v1
//	type Items interface {
//	    //restproxy:route GET /items/{id}
//	    //restproxy:accept application/json
//	    //restproxy:path id
//	    Get(ctx context.Context, id string) (*Item, error)
//	}
//
// The client directive marks an interface to generate a client for, with an
// optional path prefix. Method directives:
//
//	route VERB /path     required, exactly once
//	accept TYPE[, TYPE]  response media types
//	content TYPE[, TYPE] request body media types
//	path KEY[=ARG]       bind ARG (default KEY) to template variable KEY
//	query KEY[=ARG]      bind ARG to query key KEY; "=ARG" spreads a map or struct
//	header KEY[=ARG]     like query, for headers
//	cookie KEY[=ARG]     like query, for cookies
//	body ARG             send ARG as request body
//	ignore ARG           ARG takes no part in the request
package directive

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"
)

// Prefix starts every directive comment.
const Prefix = "//restproxy:"

// Kind represents the type of directive.
type Kind string

const (
	KindClient  Kind = "client"
	KindRoute   Kind = "route"
	KindAccept  Kind = "accept"
	KindContent Kind = "content"
	KindPath    Kind = "path"
	KindQuery   Kind = "query"
	KindHeader  Kind = "header"
	KindCookie  Kind = "cookie"
	KindBody    Kind = "body"
	KindIgnore  Kind = "ignore"
)

// IsBinding reports whether k binds an argument.
func (k Kind) IsBinding() bool {
	switch k {
	case KindPath, KindQuery, KindHeader, KindCookie, KindBody, KindIgnore:
		return true
	}
	return false
}

// Binding ties a method argument to a request role.
type Binding struct {
	Role Kind
	Key  string // template variable, query key, header or cookie name
	Arg  string // Go parameter name
	Pos  token.Position
}

// Method is an interface method carrying route directives.
type Method struct {
	Name     string
	Verb     string
	Path     string
	Accept   []string
	Content  []string
	Bindings []Binding
	Pos      token.Position
}

// Client is an interface marked with //restproxy:client.
type Client struct {
	Name    string
	Prefix  string
	Methods []Method
	Pos     token.Position
}

type line struct {
	kind Kind
	arg  string
	pos  token.Position
}

// parseLine splits one comment into kind and argument. ok is false for
// comments that are not directives.
func parseLine(fset *token.FileSet, c *ast.Comment) (l line, ok bool, err error) {
	if !strings.HasPrefix(c.Text, Prefix) {
		return line{}, false, nil
	}
	pos := fset.Position(c.Pos())
	text := strings.TrimSpace(strings.TrimPrefix(c.Text, Prefix))
	name, arg, _ := strings.Cut(text, " ")
	kind := Kind(name)
	switch kind {
	case KindClient, KindRoute, KindAccept, KindContent,
		KindPath, KindQuery, KindHeader, KindCookie, KindBody, KindIgnore:
	default:
		return line{}, false, fmt.Errorf("%s: unknown directive %s%s", pos, Prefix, name)
	}
	return line{kind: kind, arg: strings.TrimSpace(arg), pos: pos}, true, nil
}

// ParseFile finds the client interfaces of f. Every directive must belong
// to a client interface or one of its methods.
func ParseFile(fset *token.FileSet, f *ast.File) ([]Client, error) {
	used := make(map[*ast.Comment]bool)
	var clients []Client

	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := ts.Doc
			if doc == nil && len(gd.Specs) == 1 {
				doc = gd.Doc
			}
			lines, err := directives(fset, doc, used)
			if err != nil {
				return nil, err
			}
			var marker *line
			for i := range lines {
				if lines[i].kind != KindClient {
					return nil, fmt.Errorf("%s: %s%s must be on an interface method", lines[i].pos, Prefix, lines[i].kind)
				}
				if marker != nil {
					return nil, fmt.Errorf("%s: duplicate %s%s", lines[i].pos, Prefix, KindClient)
				}
				marker = &lines[i]
			}
			if marker == nil {
				continue
			}
			iface, ok := ts.Type.(*ast.InterfaceType)
			if !ok {
				return nil, fmt.Errorf("%s: %s%s must be on an interface type, %s is not one", marker.pos, Prefix, KindClient, ts.Name.Name)
			}
			c := Client{Name: ts.Name.Name, Prefix: marker.arg, Pos: marker.pos}
			for _, field := range iface.Methods.List {
				ft, ok := field.Type.(*ast.FuncType)
				if !ok || len(field.Names) == 0 {
					return nil, fmt.Errorf("%s: client %s: embedded interfaces are not supported", fset.Position(field.Pos()), c.Name)
				}
				m, err := parseMethod(fset, field, ft, used)
				if err != nil {
					return nil, err
				}
				c.Methods = append(c.Methods, m)
			}
			clients = append(clients, c)
		}
	}

	for _, cg := range f.Comments {
		for _, c := range cg.List {
			l, ok, err := parseLine(fset, c)
			if err != nil {
				return nil, err
			}
			if ok && !used[c] {
				return nil, fmt.Errorf("%s: %s%s directive is not attached to a client interface", l.pos, Prefix, l.kind)
			}
		}
	}
	return clients, nil
}

func directives(fset *token.FileSet, doc *ast.CommentGroup, used map[*ast.Comment]bool) ([]line, error) {
	if doc == nil {
		return nil, nil
	}
	var out []line
	for _, c := range doc.List {
		l, ok, err := parseLine(fset, c)
		if err != nil {
			return nil, err
		}
		if ok {
			used[c] = true
			out = append(out, l)
		}
	}
	return out, nil
}

func parseMethod(fset *token.FileSet, field *ast.Field, ft *ast.FuncType, used map[*ast.Comment]bool) (Method, error) {
	m := Method{Name: field.Names[0].Name, Pos: fset.Position(field.Pos())}
	lines, err := directives(fset, field.Doc, used)
	if err != nil {
		return m, err
	}

	params := make(map[string]bool)
	for _, p := range ft.Params.List {
		for _, n := range p.Names {
			params[n.Name] = true
		}
	}
	bound := make(map[string]token.Position)

	routeSeen := false
	for _, l := range lines {
		switch l.kind {
		case KindClient:
			return m, fmt.Errorf("%s: %s%s must be on an interface type", l.pos, Prefix, l.kind)
		case KindRoute:
			if routeSeen {
				return m, fmt.Errorf("%s: duplicate %s%s on %s", l.pos, Prefix, KindRoute, m.Name)
			}
			routeSeen = true
			verb, path, ok := strings.Cut(l.arg, " ")
			if !ok || strings.TrimSpace(path) == "" {
				return m, fmt.Errorf("%s: %s%s wants \"VERB /path\", got %q", l.pos, Prefix, KindRoute, l.arg)
			}
			m.Verb = strings.ToUpper(verb)
			m.Path = strings.TrimSpace(path)
		case KindAccept:
			m.Accept = append(m.Accept, splitList(l.arg)...)
		case KindContent:
			m.Content = append(m.Content, splitList(l.arg)...)
		default:
			b, err := parseBinding(l)
			if err != nil {
				return m, err
			}
			if !params[b.Arg] {
				return m, fmt.Errorf("%s: %s has no parameter %q", l.pos, m.Name, b.Arg)
			}
			if prev, dup := bound[b.Arg]; dup {
				return m, fmt.Errorf("%s: parameter %q of %s already bound at %s", l.pos, b.Arg, m.Name, prev)
			}
			bound[b.Arg] = l.pos
			m.Bindings = append(m.Bindings, b)
		}
	}
	if !routeSeen {
		return m, fmt.Errorf("%s: method %s has no %s%s directive", m.Pos, m.Name, Prefix, KindRoute)
	}
	return m, nil
}

func parseBinding(l line) (Binding, error) {
	b := Binding{Role: l.kind, Pos: l.pos}
	if l.arg == "" || strings.ContainsAny(l.arg, " \t") {
		return b, fmt.Errorf("%s: %s%s wants one argument, got %q", l.pos, Prefix, l.kind, l.arg)
	}
	switch l.kind {
	case KindBody, KindIgnore:
		b.Arg = l.arg
		return b, nil
	}
	key, arg, hasArg := strings.Cut(l.arg, "=")
	if !hasArg {
		arg = key
	}
	if arg == "" {
		return b, fmt.Errorf("%s: %s%s %q binds no parameter", l.pos, Prefix, l.kind, l.arg)
	}
	if key == "" && l.kind == KindPath {
		return b, fmt.Errorf("%s: %s%s needs a template variable name", l.pos, Prefix, l.kind)
	}
	b.Key, b.Arg = key, arg
	return b, nil
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
