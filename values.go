package restproxy

import (
	"encoding"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"

	"github.com/gorilla/schema"
)

var schemaEncoder = schema.NewEncoder()

var (
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	stringerType      = reflect.TypeFor[fmt.Stringer]()
)

type pair struct {
	key   string
	value string
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// formatScalar renders a single value. ok is false for values that are not
// scalars (maps, slices, plain structs).
func formatScalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return "", false
		}
		return string(b), true
	case fmt.Stringer:
		return x.String(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		return formatScalar(rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	}
	return "", false
}

// isScalarType reports whether values of t render through formatScalar.
func isScalarType(t reflect.Type) bool {
	if t.Implements(textMarshalerType) || t.Implements(stringerType) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		return isScalarType(t.Elem())
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

// isSpreadType reports whether an unnamed param of type t can supply its
// own names.
func isSpreadType(t reflect.Type, allowStruct bool) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map:
		return t.Key().Kind() == reflect.String
	case reflect.Struct:
		return allowStruct && !isScalarType(t)
	}
	return false
}

// expandValues flattens one argument into key/value pairs. Slices repeat
// the name, maps spread their entries sorted by key, and structs are
// encoded with gorilla/schema when allowStruct is set. Nil values and nil
// elements produce nothing.
func expandValues(name string, v any, allowStruct bool) ([]pair, error) {
	if isNil(v) {
		return nil, nil
	}
	if s, ok := formatScalar(v); ok {
		if name == "" {
			return nil, fmt.Errorf("value %v needs a name", v)
		}
		return []pair{{name, s}}, nil
	}

	switch x := v.(type) {
	case url.Values:
		return sortedPairs(x), nil
	case http.Header:
		return sortedPairs(x), nil
	case map[string][]string:
		return sortedPairs(x), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if name == "" {
			return nil, fmt.Errorf("list value needs a name")
		}
		var out []pair
		for i := 0; i < rv.Len(); i++ {
			el := rv.Index(i).Interface()
			if isNil(el) {
				continue
			}
			s, ok := formatScalar(el)
			if !ok {
				return nil, fmt.Errorf("%s: unsupported element type %T", name, el)
			}
			out = append(out, pair{name, s})
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%s: map keys must be strings", name)
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		var out []pair
		for _, k := range keys {
			sub, err := expandValues(k, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), false)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case reflect.Struct:
		if !allowStruct {
			return nil, fmt.Errorf("%s: struct values are only supported for query parameters", name)
		}
		values := make(map[string][]string)
		if err := schemaEncoder.Encode(v, values); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return sortedPairs(values), nil
	}
	return nil, fmt.Errorf("%s: unsupported value type %T", name, v)
}

func sortedPairs[M ~map[string][]string](m M) []pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []pair
	for _, k := range keys {
		for _, v := range m[k] {
			out = append(out, pair{k, v})
		}
	}
	return out
}
