package restproxy

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/broady/restproxy/codec"
)

// ErrStreamConsumed is yielded when a stream result is iterated a second time.
var ErrStreamConsumed = errors.New("restproxy: stream already consumed")

// Event is one server-sent event. Methods returning iter.Seq2[Event, error]
// receive events undecoded; any other element type is decoded from Data.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry int
}

var (
	eventType = reflect.TypeFor[Event]()
	errorType = reflect.TypeFor[error]()
	boolType  = reflect.TypeFor[bool]()
)

// isStreamType reports whether t has the shape of iter.Seq2[E, error].
func isStreamType(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}
	y := t.In(0)
	return y.Kind() == reflect.Func && y.NumIn() == 2 && y.NumOut() == 1 &&
		y.In(1) == errorType && y.Out(0) == boolType
}

// streamElem returns E of iter.Seq2[E, error].
func streamElem(t reflect.Type) reflect.Type { return t.In(0).In(0) }

// newStream returns a value of type t (an iter.Seq2) yielding elements
// decoded from resp.Body as it is read. The body is closed when iteration
// ends, fails, or the consumer stops early. The sequence is single use.
func newStream(t reflect.Type, resp *http.Response, codecs *codec.Registry) reflect.Value {
	elem := streamElem(t)
	var used atomic.Bool
	return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		yieldFn := in[0]
		yield := func(v reflect.Value, err error) bool {
			errV := reflect.Zero(errorType)
			if err != nil {
				errV = reflect.ValueOf(&err).Elem()
			}
			if !v.IsValid() {
				v = reflect.Zero(elem)
			}
			return yieldFn.Call([]reflect.Value{v, errV})[0].Bool()
		}
		if used.Swap(true) {
			yield(reflect.Value{}, ErrStreamConsumed)
			return nil
		}
		defer resp.Body.Close()
		d := &streamDecoder{elem: elem, codecs: codecs, yield: yield}
		d.run(codec.Essence(resp.Header.Get("Content-Type")), resp.Body)
		return nil
	})
}

type streamDecoder struct {
	elem   reflect.Type
	codecs *codec.Registry
	yield  func(reflect.Value, error) bool
}

func (d *streamDecoder) run(mediaType string, body io.Reader) {
	switch mediaType {
	case codec.MediaTypeEventStream:
		d.events(body)
	case codec.MediaTypeNDJSON, "application/stream+json", "application/jsonl":
		d.jsonValues(body)
	case codec.MediaTypeJSON, "":
		d.jsonArray(body)
	default:
		d.single(mediaType, body)
	}
}

// events parses text/event-stream. Comment lines are skipped and multi-line
// data fields are joined with "\n". Events without data are dropped.
func (d *streamDecoder) events(body io.Reader) {
	r := bufio.NewReader(body)
	var ev Event
	var data []string
	hasData := false
	dispatch := func() bool {
		if !hasData {
			ev = Event{}
			return true
		}
		ev.Data = strings.Join(data, "\n")
		cur := ev
		ev, data, hasData = Event{}, nil, false
		if d.elem == eventType {
			return d.yield(reflect.ValueOf(cur), nil)
		}
		return d.emit(strings.NewReader(cur.Data))
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			d.yield(reflect.Value{}, fmt.Errorf("restproxy: read event stream: %w", err))
			return
		}
		eof := err != nil
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if !dispatch() {
				return
			}
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "data":
				data = append(data, value)
				hasData = true
			case "id":
				ev.ID = value
			case "event":
				ev.Event = value
			case "retry":
				if n, err := strconv.Atoi(value); err == nil {
					ev.Retry = n
				}
			}
		}
		if eof {
			dispatch()
			return
		}
	}
}

// jsonValues decodes a sequence of whitespace separated JSON values.
func (d *streamDecoder) jsonValues(body io.Reader) {
	dec := json.NewDecoder(body)
	for {
		ptr := reflect.New(d.elem)
		err := dec.Decode(ptr.Interface())
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			d.yield(reflect.Value{}, fmt.Errorf("restproxy: decode stream element: %w", err))
			return
		}
		if !d.yield(ptr.Elem(), nil) {
			return
		}
	}
}

// jsonArray decodes a JSON array element by element. A body that is not an
// array is decoded as a single element.
func (d *streamDecoder) jsonArray(body io.Reader) {
	br := bufio.NewReader(body)
	if !startsWith(br, '[') {
		d.jsonValues(br)
		return
	}
	dec := json.NewDecoder(br)
	if _, err := dec.Token(); err != nil {
		d.yield(reflect.Value{}, fmt.Errorf("restproxy: decode stream: %w", err))
		return
	}
	for dec.More() {
		ptr := reflect.New(d.elem)
		if err := dec.Decode(ptr.Interface()); err != nil {
			d.yield(reflect.Value{}, fmt.Errorf("restproxy: decode stream element: %w", err))
			return
		}
		if !d.yield(ptr.Elem(), nil) {
			return
		}
	}
	if _, err := dec.Token(); err != nil {
		d.yield(reflect.Value{}, fmt.Errorf("restproxy: decode stream: %w", err))
	}
}

func (d *streamDecoder) single(mediaType string, body io.Reader) {
	c, ok := d.codecs.Lookup(mediaType)
	if !ok {
		d.yield(reflect.Value{}, fmt.Errorf("restproxy: no codec for stream content type %q", mediaType))
		return
	}
	ptr := reflect.New(d.elem)
	if err := c.Decode(body, ptr.Interface()); err != nil {
		d.yield(reflect.Value{}, fmt.Errorf("restproxy: decode stream element: %w", err))
		return
	}
	d.yield(ptr.Elem(), nil)
}

// emit decodes one SSE payload. String elements take the data verbatim.
func (d *streamDecoder) emit(r io.Reader) bool {
	ptr := reflect.New(d.elem)
	var err error
	if d.elem.Kind() == reflect.String {
		var b []byte
		b, err = io.ReadAll(r)
		ptr.Elem().SetString(string(b))
	} else {
		err = json.NewDecoder(r).Decode(ptr.Interface())
	}
	if err != nil {
		d.yield(reflect.Value{}, fmt.Errorf("restproxy: decode event: %w", err))
		return false
	}
	return d.yield(ptr.Elem(), nil)
}

func startsWith(br *bufio.Reader, c byte) bool {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return false
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		_ = br.UnreadByte()
		return b == c
	}
}
