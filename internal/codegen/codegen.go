// Package codegen writes the Go implementation of restproxy client
// interfaces found by package directive.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/broady/restproxy/internal/directive"
)

// RestproxyImport is the import path of the runtime package.
const RestproxyImport = "github.com/broady/restproxy"

type importSpec struct {
	Name string
	Path string
}

type param struct {
	Name string
	Expr string // restproxy.Param constructor call
}

type method struct {
	Name     string
	Verb     string
	Path     string
	Accept   []string
	Content  []string
	Ctx      string
	Receiver string
	Params   []param
	Args     string // Name type, ...
	Result   string
}

type client struct {
	Name     string
	Impl     string
	Mappings string
	Methods  []method
}

// Generate returns the formatted source of the generated file for res.
func Generate(res *directive.TypedResult) ([]byte, error) {
	if len(res.Clients) == 0 {
		return nil, fmt.Errorf("no %s%s interfaces in %s", directive.Prefix, directive.KindClient, res.PackagePath)
	}
	data := struct {
		Package     string
		Imports     []importSpec
		Clients     []client
		NeedReflect bool
	}{Package: res.PackageName}

	for path, name := range res.Imports {
		switch path {
		case "context", "reflect", RestproxyImport:
			continue
		}
		data.Imports = append(data.Imports, importSpec{Name: name, Path: path})
	}
	sort.Slice(data.Imports, func(i, j int) bool { return data.Imports[i].Path < data.Imports[j].Path })

	for _, c := range res.Clients {
		impl := lowerFirst(c.Name) + "Client"
		gc := client{Name: c.Name, Impl: impl, Mappings: lowerFirst(c.Name) + "Mappings"}
		for _, m := range c.Methods {
			gm := buildMethod(c.Prefix, m)
			if gm.Result != "" || len(gm.Params) > 0 {
				data.NeedReflect = true
			}
			gc.Methods = append(gc.Methods, gm)
		}
		data.Clients = append(data.Clients, gc)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w\n%s", err, buf.Bytes())
	}
	return src, nil
}

// WriteFile generates the code for res into its package directory and
// returns the path written.
func WriteFile(res *directive.TypedResult) (string, error) {
	src, err := Generate(res)
	if err != nil {
		return "", err
	}
	path := filepath.Join(res.Dir, directive.GeneratedFile)
	if err := os.WriteFile(path, src, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func buildMethod(prefix string, m directive.TypedMethod) method {
	gm := method{
		Name:    m.Name,
		Verb:    m.Verb,
		Path:    m.FullPath(prefix),
		Accept:  m.Accept,
		Content: m.Content,
		Ctx:     m.CtxName,
		Result:  m.Result,
	}
	if gm.Ctx == "" || gm.Ctx == "_" {
		gm.Ctx = "ctx"
	}
	used := map[string]bool{gm.Ctx: true}
	args := []string{gm.Ctx + " context.Context"}
	for _, p := range m.Params {
		used[p.Name] = true
		args = append(args, p.Name+" "+p.Type)
		gm.Params = append(gm.Params, param{Name: p.Name, Expr: paramExpr(p)})
	}
	gm.Args = strings.Join(args, ", ")
	for _, r := range []string{"c", "cl", "client_"} {
		if !used[r] {
			gm.Receiver = r
			break
		}
	}
	return gm
}

func paramExpr(p directive.Param) string {
	typ := "reflect.TypeFor[" + p.Type + "]()"
	switch p.Role {
	case directive.KindPath:
		return "restproxy.PathParam(" + strconv.Quote(p.Key) + ", " + typ + ")"
	case directive.KindQuery:
		return "restproxy.QueryParam(" + strconv.Quote(p.Key) + ", " + typ + ")"
	case directive.KindHeader:
		return "restproxy.HeaderParam(" + strconv.Quote(p.Key) + ", " + typ + ")"
	case directive.KindCookie:
		return "restproxy.CookieParam(" + strconv.Quote(p.Key) + ", " + typ + ")"
	case directive.KindBody:
		return "restproxy.BodyParam(" + typ + ")"
	default:
		return "restproxy.IgnoredParam(" + typ + ")"
	}
}

func lowerFirst(s string) string {
	r := []rune(s)
	for i := range r {
		if !unicode.IsUpper(r[i]) {
			break
		}
		// Keep the last capital of an initialism followed by a lower case letter.
		if i > 0 && i+1 < len(r) && unicode.IsLower(r[i+1]) {
			break
		}
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}

var fileTemplate = template.Must(template.New("restproxy").Funcs(template.FuncMap{
	"quote": strconv.Quote,
	"list": func(xs []string) string {
		q := make([]string, len(xs))
		for i, x := range xs {
			q[i] = strconv.Quote(x)
		}
		return "[]string{" + strings.Join(q, ", ") + "}"
	},
}).Parse(`// Code generated by restproxy gen. DO NOT EDIT.

package {{.Package}}

import (
	"context"
{{- if .NeedReflect}}
	"reflect"
{{- end}}

	"github.com/broady/restproxy"
{{- range .Imports}}
	{{.Name}} {{quote .Path}}
{{- end}}
)
{{range $c := .Clients}}
type {{$c.Impl}} struct {
	p *restproxy.Proxy
}

var _ {{$c.Name}} = (*{{$c.Impl}})(nil)

// New{{$c.Name}} returns a {{$c.Name}} whose methods send requests through b.
func New{{$c.Name}}(b *restproxy.Builder) ({{$c.Name}}, error) {
	p, err := b.Proxy({{quote $c.Name}}, {{$c.Mappings}}...)
	if err != nil {
		return nil, err
	}
	return &{{$c.Impl}}{p: p}, nil
}

var {{$c.Mappings}} = []restproxy.Mapping{
{{- range $c.Methods}}
	{
		Name: {{quote .Name}},
		Verb: {{quote .Verb}},
		Path: {{quote .Path}},
		{{- if .Accept}}
		Accept: {{list .Accept}},
		{{- end}}
		{{- if .Content}}
		ContentType: {{list .Content}},
		{{- end}}
		{{- if .Params}}
		Params: []restproxy.Param{
			{{- range .Params}}
			{{.Expr}},
			{{- end}}
		},
		{{- end}}
		{{- if .Result}}
		Returns: reflect.TypeFor[{{.Result}}](),
		{{- end}}
	},
{{- end}}
}
{{range $m := $c.Methods}}
func ({{$m.Receiver}} *{{$c.Impl}}) {{$m.Name}}({{$m.Args}}) {{if $m.Result}}({{$m.Result}}, error){{else}}error{{end}} {
	{{- if $m.Result}}
	return restproxy.Call[{{$m.Result}}]({{$m.Ctx}}, {{$m.Receiver}}.p, {{quote $m.Name}}{{range $m.Params}}, {{.Name}}{{end}})
	{{- else}}
	return restproxy.CallVoid({{$m.Ctx}}, {{$m.Receiver}}.p, {{quote $m.Name}}{{range $m.Params}}, {{.Name}}{{end}})
	{{- end}}
}
{{end}}
{{- end}}
`))
