package schema

import (
	"bytes"
	"errors"
)

// Document is a raw canonical document paired with its origin.
type Document struct {
	source Source
	raw    []byte
	format Format
}

// NewDocument copies raw and records its format, taken from the source
// extension or sniffed from the payload.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is required")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, errors.New("schema: raw document is empty")
	}
	format, ok := FormatFromPath(src.Location())
	if !ok {
		format = sniffFormat(raw)
	}
	return Document{source: src, raw: append([]byte(nil), raw...), format: format}, nil
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte) Document {
	doc, err := NewDocument(src, raw)
	if err != nil {
		panic(err)
	}
	return doc
}

func sniffFormat(raw []byte) Format {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Source returns the origin metadata.
func (d Document) Source() Source { return d.source }

// Format reports the detected serialization.
func (d Document) Format() Format { return d.format }

// Raw returns a copy of the payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// Location returns the string identifier for the origin.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}
