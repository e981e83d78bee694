package codec

import (
	"bytes"
	"encoding"
	"fmt"
	"io"
	"strings"
)

// Text handles text/plain. It encodes strings, byte slices, TextMarshalers
// and Stringers, and decodes into *string, *[]byte or TextUnmarshalers.
type Text struct{}

func (Text) MediaTypes() []string { return []string{MediaTypeText} }

func (Text) Encode(v any) (io.Reader, string, error) {
	switch x := v.(type) {
	case string:
		return strings.NewReader(x), "", nil
	case *string:
		return strings.NewReader(*x), "", nil
	case []byte:
		return bytes.NewReader(x), "", nil
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "", nil
	case fmt.Stringer:
		return strings.NewReader(x.String()), "", nil
	}
	return strings.NewReader(fmt.Sprint(v)), "", nil
}

func (Text) Decode(r io.Reader, v any) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case *string:
		*x = string(b)
	case *[]byte:
		*x = b
	case encoding.TextUnmarshaler:
		return x.UnmarshalText(b)
	default:
		return fmt.Errorf("codec: cannot decode text into %T", v)
	}
	return nil
}

// Octet handles application/octet-stream. An io.Reader is passed through
// unbuffered.
type Octet struct{}

func (Octet) MediaTypes() []string { return []string{MediaTypeOctet} }

func (Octet) Encode(v any) (io.Reader, string, error) {
	switch x := v.(type) {
	case io.Reader:
		return x, "", nil
	case []byte:
		return bytes.NewReader(x), "", nil
	case string:
		return strings.NewReader(x), "", nil
	}
	return nil, "", fmt.Errorf("codec: cannot encode %T as %s", v, MediaTypeOctet)
}

func (Octet) Decode(r io.Reader, v any) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case *[]byte:
		*x = b
	case *string:
		*x = string(b)
	default:
		return fmt.Errorf("codec: cannot decode %s into %T", MediaTypeOctet, v)
	}
	return nil
}
