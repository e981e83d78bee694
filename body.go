package restproxy

import (
	"fmt"
	"reflect"

	"github.com/broady/restproxy/codec"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DefaultBodyInserter encodes the body argument with the codec matching the
// request Content-Type. When no Content-Type was set, one is chosen from the
// value's type (see codec.DefaultMediaType).
var DefaultBodyInserter BodyInserter = BodyInserterFunc(insertBody)

func insertBody(inv *Invocation, req *RequestDescriptor) error {
	v, ok := inv.Body()
	if !ok {
		return nil
	}
	ct := req.Header.Get("Content-Type")
	if ct == "" {
		ct = codec.DefaultMediaType(v)
	}
	c, ok := inv.Codecs().Lookup(ct)
	if !ok {
		return fmt.Errorf("restproxy: %s.%s: no codec for content type %q", inv.Client(), inv.Method().Name, ct)
	}
	body, actual, err := c.Encode(v)
	if err != nil {
		return fmt.Errorf("restproxy: %s.%s: encode body: %w", inv.Client(), inv.Method().Name, err)
	}
	if actual != "" {
		ct = actual
	}
	req.Body = body
	req.Header.Set("Content-Type", ct)
	return nil
}

// ValidatingBodyInserter validates struct bodies with go-playground/validator
// `validate` tags before delegating to next (DefaultBodyInserter if nil).
// Invalid bodies fail with *ArgumentError and no request is sent.
func ValidatingBodyInserter(next BodyInserter) BodyInserter {
	if next == nil {
		next = DefaultBodyInserter
	}
	return BodyInserterFunc(func(inv *Invocation, req *RequestDescriptor) error {
		if v, ok := inv.Body(); ok && isStruct(v) {
			if err := validate.Struct(v); err != nil {
				return newArgumentError(inv.Method().Name, err)
			}
		}
		return next.InsertBody(inv, req)
	})
}

func isStruct(v any) bool {
	return reflect.Indirect(reflect.ValueOf(v)).Kind() == reflect.Struct
}
