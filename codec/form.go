package codec

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/gorilla/schema"
)

var (
	formEncoder = schema.NewEncoder()
	formDecoder = schema.NewDecoder()
)

func init() {
	formDecoder.IgnoreUnknownKeys(true)
}

// Form handles application/x-www-form-urlencoded. Structs go through
// gorilla/schema using `schema` tags.
type Form struct{}

func (Form) MediaTypes() []string { return []string{MediaTypeForm} }

func (Form) Encode(v any) (io.Reader, string, error) {
	values, err := toValues(v)
	if err != nil {
		return nil, "", err
	}
	return strings.NewReader(values.Encode()), "", nil
}

func (Form) Decode(r io.Reader, v any) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	values, err := url.ParseQuery(string(b))
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case *url.Values:
		*x = values
		return nil
	case *map[string][]string:
		*x = values
		return nil
	}
	return formDecoder.Decode(v, values)
}

func toValues(v any) (url.Values, error) {
	switch x := v.(type) {
	case url.Values:
		return x, nil
	case map[string][]string:
		return url.Values(x), nil
	case map[string]string:
		values := make(url.Values, len(x))
		for k, s := range x {
			values.Set(k, s)
		}
		return values, nil
	case map[string]any:
		values := make(url.Values, len(x))
		for k, el := range x {
			values.Set(k, fmt.Sprint(el))
		}
		return values, nil
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("codec: cannot encode %T as %s", v, MediaTypeForm)
	}
	values := make(url.Values)
	if err := formEncoder.Encode(v, values); err != nil {
		return nil, err
	}
	return values, nil
}

// FilePart is a file field of a multipart form.
type FilePart struct {
	FileName    string
	ContentType string
	// Content is streamed into the request. It is closed once the form has
	// been written or abandoned if it is an io.Closer.
	Content io.Reader
}

// MultipartForm maps field names to values. Values may be strings, byte
// slices, FileParts or anything fmt can print. Fields are written in key
// order.
type MultipartForm map[string][]any

// Multipart handles multipart/form-data. Encoding streams through a pipe,
// so file parts are never buffered in memory.
type Multipart struct{}

func (Multipart) MediaTypes() []string { return []string{MediaTypeMultipart} }

func (Multipart) Encode(v any) (io.Reader, string, error) {
	form, err := toMultipart(v)
	if err != nil {
		return nil, "", err
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeMultipart(mw, form)
		if err == nil {
			err = mw.Close()
		}
		// Parts are released before the reader sees EOF.
		closeParts(form)
		_ = pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType(), nil
}

func (Multipart) Decode(r io.Reader, v any) error {
	return fmt.Errorf("codec: decoding %s is not supported", MediaTypeMultipart)
}

func toMultipart(v any) (MultipartForm, error) {
	switch x := v.(type) {
	case MultipartForm:
		return x, nil
	case *MultipartForm:
		return *x, nil
	case map[string]any:
		form := make(MultipartForm, len(x))
		for k, el := range x {
			form[k] = []any{el}
		}
		return form, nil
	}
	values, err := toValues(v)
	if err != nil {
		return nil, fmt.Errorf("codec: cannot encode %T as %s", v, MediaTypeMultipart)
	}
	form := make(MultipartForm, len(values))
	for k, vs := range values {
		for _, s := range vs {
			form[k] = append(form[k], s)
		}
	}
	return form, nil
}

func writeMultipart(mw *multipart.Writer, form MultipartForm) error {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, el := range form[k] {
			if err := writePart(mw, k, el); err != nil {
				return err
			}
		}
	}
	return nil
}

func writePart(mw *multipart.Writer, name string, el any) error {
	var fp *FilePart
	switch x := el.(type) {
	case FilePart:
		fp = &x
	case *FilePart:
		if x == nil {
			return nil
		}
		fp = x
	case []byte:
		return mw.WriteField(name, string(x))
	case string:
		return mw.WriteField(name, x)
	default:
		return mw.WriteField(name, fmt.Sprint(el))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, fp.FileName))
	ct := fp.ContentType
	if ct == "" {
		ct = MediaTypeOctet
	}
	h.Set("Content-Type", ct)
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if fp.Content == nil {
		return nil
	}
	_, err = io.Copy(w, fp.Content)
	return err
}

func closeParts(form MultipartForm) {
	for _, els := range form {
		for _, el := range els {
			var content io.Reader
			switch x := el.(type) {
			case FilePart:
				content = x.Content
			case *FilePart:
				content = x.Content
			}
			if c, ok := content.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}
}
