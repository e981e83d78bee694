package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"

	"gopkg.in/yaml.v3"
)

// JSON handles application/json and the streaming JSON media types.
type JSON struct{}

func (JSON) MediaTypes() []string {
	return []string{MediaTypeJSON, MediaTypeNDJSON, "application/stream+json"}
}

func (JSON) Encode(v any) (io.Reader, string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "", nil
}

func (JSON) Decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// XML handles application/xml and text/xml.
type XML struct{}

func (XML) MediaTypes() []string { return []string{MediaTypeXML, "text/xml"} }

func (XML) Encode(v any) (io.Reader, string, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "", nil
}

func (XML) Decode(r io.Reader, v any) error {
	return xml.NewDecoder(r).Decode(v)
}

// YAML handles application/yaml and its legacy aliases.
type YAML struct{}

func (YAML) MediaTypes() []string {
	return []string{MediaTypeYAML, "application/x-yaml", "text/yaml"}
}

func (YAML) Encode(v any) (io.Reader, string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, "", err
	}
	if err := enc.Close(); err != nil {
		return nil, "", err
	}
	return &buf, "", nil
}

func (YAML) Decode(r io.Reader, v any) error {
	return yaml.NewDecoder(r).Decode(v)
}
