package transform

import (
	"bytes"
	"encoding/json"
)

// ElementKind tags an Element.
type ElementKind uint8

const (
	// ElementScalar is a string, number or boolean passed through unchanged.
	ElementScalar ElementKind = iota
	// ElementObject is an object (or nested array) carried as its JSON text.
	ElementObject
)

// Element is one entry of a mapped array field. Object entries are encoded
// downstream as JSON strings and scalars as themselves, so consumers receive
// an array of JSON-encoded object strings or raw scalars.
type Element struct {
	Kind ElementKind
	// Raw is the compact JSON of the source entry.
	Raw json.RawMessage
}

// NewElement classifies a raw JSON value. Source key order is preserved.
func NewElement(raw json.RawMessage) Element {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		buf.Reset()
		buf.Write(bytes.TrimSpace(raw))
	}
	compact := json.RawMessage(buf.Bytes())

	kind := ElementScalar
	if len(compact) > 0 && (compact[0] == '{' || compact[0] == '[') {
		kind = ElementObject
	}
	return Element{Kind: kind, Raw: compact}
}

// MarshalJSON encodes objects as strings and scalars verbatim.
func (e Element) MarshalJSON() ([]byte, error) {
	if e.Kind == ElementObject {
		return json.Marshal(string(e.Raw))
	}
	if len(e.Raw) == 0 {
		return []byte("null"), nil
	}
	return e.Raw, nil
}
