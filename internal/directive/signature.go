package directive

import (
	"fmt"
	"go/token"
	"go/types"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yosida95/uritemplate/v3"
	"golang.org/x/tools/go/packages"
)

// GeneratedFile is the name of the file written by the generator. Type
// errors inside it are ignored while loading, since it may be stale.
const GeneratedFile = "restproxy_gen.go"

// Param is one parameter of a typed method, context excluded.
type Param struct {
	Name string
	Type string // Go type expression, qualified relative to the package
	Role Kind
	Key  string
}

// TypedMethod is a Method with its signature resolved.
type TypedMethod struct {
	Method
	CtxName string
	Params  []Param
	// Result is the success result type, empty for methods returning only error.
	Result string
}

// FullPath returns the method path with the client prefix.
func (m TypedMethod) FullPath(prefix string) string {
	switch {
	case prefix == "":
		return m.Path
	case m.Path == "":
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(m.Path, "/")
}

// TypedClient is a Client whose methods have resolved signatures.
type TypedClient struct {
	Name    string
	Prefix  string
	Methods []TypedMethod
	Pos     token.Position
}

// TypedResult contains the clients of a package with type information.
type TypedResult struct {
	Clients     []TypedClient
	PackageName string
	PackagePath string
	Dir         string
	// Imports maps import paths used by the rendered types to package names.
	Imports map[string]string
}

// Load scans a Go package for client interfaces and validates their
// methods against the directives.
//
// The pattern follows go command semantics: "." for the current directory,
// an import path, or a directory path. dir is the working directory; empty
// means the current one.
//
// Method signatures must be func(context.Context, ...) error or
// func(context.Context, ...) (T, error), and every parameter after the
// context must be bound by exactly one directive.
func Load(pattern, dir string) (*TypedResult, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo,
		Dir: dir,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", pattern)
	}
	if len(pkgs) > 1 {
		return nil, fmt.Errorf("multiple packages found matching %q; specify a single package", pattern)
	}

	pkg := pkgs[0]
	for _, e := range pkg.Errors {
		if !strings.Contains(e.Pos, GeneratedFile) {
			return nil, fmt.Errorf("package errors: %v", e)
		}
	}

	result := &TypedResult{
		PackageName: pkg.Name,
		PackagePath: pkg.PkgPath,
		Imports:     make(map[string]string),
	}
	if len(pkg.GoFiles) > 0 {
		result.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	qualify := func(p *types.Package) string {
		if p == nil || p.Path() == pkg.PkgPath {
			return ""
		}
		result.Imports[p.Path()] = p.Name()
		return p.Name()
	}

	for _, f := range pkg.Syntax {
		clients, err := ParseFile(pkg.Fset, f)
		if err != nil {
			return nil, err
		}
		for _, c := range clients {
			tc, err := typeClient(pkg, c, qualify)
			if err != nil {
				return nil, err
			}
			result.Clients = append(result.Clients, *tc)
		}
	}
	return result, nil
}

func typeClient(pkg *packages.Package, c Client, qualify types.Qualifier) (*TypedClient, error) {
	obj, ok := pkg.Types.Scope().Lookup(c.Name).(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("%s: type %s not found in package scope", c.Pos, c.Name)
	}
	iface, ok := obj.Type().Underlying().(*types.Interface)
	if !ok {
		return nil, fmt.Errorf("%s: %s is not an interface", c.Pos, c.Name)
	}

	tc := &TypedClient{Name: c.Name, Prefix: c.Prefix, Pos: c.Pos}
	for _, m := range c.Methods {
		var fn *types.Func
		for i := 0; i < iface.NumMethods(); i++ {
			if iface.Method(i).Name() == m.Name {
				fn = iface.Method(i)
			}
		}
		if fn == nil {
			return nil, fmt.Errorf("%s: method %s not found on %s", m.Pos, m.Name, c.Name)
		}
		tm, err := typeMethod(m, fn.Type().(*types.Signature), qualify)
		if err != nil {
			return nil, err
		}
		if err := checkTemplate(*tm, c.Prefix); err != nil {
			return nil, err
		}
		tc.Methods = append(tc.Methods, *tm)
	}
	return tc, nil
}

func typeMethod(m Method, sig *types.Signature, qualify types.Qualifier) (*TypedMethod, error) {
	tm := &TypedMethod{Method: m}
	params := sig.Params()
	if sig.Variadic() {
		return nil, fmt.Errorf("%s: %s: variadic methods are not supported", m.Pos, m.Name)
	}
	if params.Len() == 0 || types.TypeString(params.At(0).Type(), nil) != "context.Context" {
		return nil, fmt.Errorf("%s: %s: first parameter must be context.Context\n  got: func(%s)",
			m.Pos, m.Name, formatParams(params, qualify))
	}
	tm.CtxName = params.At(0).Name()

	bindings := make(map[string]Binding, len(m.Bindings))
	for _, b := range m.Bindings {
		bindings[b.Arg] = b
	}
	for i := 1; i < params.Len(); i++ {
		p := params.At(i)
		b, ok := bindings[p.Name()]
		if !ok || p.Name() == "" || p.Name() == "_" {
			return nil, fmt.Errorf("%s: %s: parameter %d (%s) is not bound by a directive",
				m.Pos, m.Name, i, types.TypeString(p.Type(), qualify))
		}
		tm.Params = append(tm.Params, Param{
			Name: p.Name(),
			Type: types.TypeString(p.Type(), qualify),
			Role: b.Role,
			Key:  b.Key,
		})
	}

	res := sig.Results()
	switch res.Len() {
	case 1:
		if !isError(res.At(0).Type()) {
			return nil, fmt.Errorf("%s: %s: single result must be error", m.Pos, m.Name)
		}
	case 2:
		if !isError(res.At(1).Type()) {
			return nil, fmt.Errorf("%s: %s: second result must be error", m.Pos, m.Name)
		}
		tm.Result = types.TypeString(res.At(0).Type(), qualify)
	default:
		return nil, fmt.Errorf("%s: %s: results must be error or (T, error)", m.Pos, m.Name)
	}
	return tm, nil
}

// checkTemplate verifies that every template variable is bound.
func checkTemplate(m TypedMethod, prefix string) error {
	path := m.FullPath(prefix)
	tmpl, err := uritemplate.New(path)
	if err != nil {
		return fmt.Errorf("%s: %s: invalid path template %q: %v", m.Pos, m.Name, path, err)
	}
	var bound []string
	for _, p := range m.Params {
		if p.Role == KindPath {
			bound = append(bound, p.Key)
		}
	}
	for _, v := range tmpl.Varnames() {
		if !slices.Contains(bound, v) {
			return fmt.Errorf("%s: %s: path variable %q in %q is not bound", m.Pos, m.Name, v, path)
		}
	}
	return nil
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// formatParams formats a parameter tuple for error messages.
func formatParams(params *types.Tuple, qualify types.Qualifier) string {
	parts := make([]string, params.Len())
	for i := 0; i < params.Len(); i++ {
		parts[i] = types.TypeString(params.At(i).Type(), qualify)
	}
	return strings.Join(parts, ", ")
}
