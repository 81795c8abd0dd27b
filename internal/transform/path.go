package transform

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Path addresses a value in a JSON document. Numeric segments index arrays.
type Path []string

// P splits a dotted path such as "organization.0.reference".
func P(dotted string) Path {
	if dotted == "" {
		return nil
	}
	return strings.Split(dotted, ".")
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// lookup resolves p against doc. Missing keys, out of range indexes and JSON
// null all report false.
func lookup(doc json.RawMessage, p Path) (json.RawMessage, bool) {
	cur := bytes.TrimSpace(doc)
	for _, seg := range p {
		if len(cur) == 0 {
			return nil, false
		}
		switch cur[0] {
		case '{':
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(cur, &obj); err != nil {
				return nil, false
			}
			next, ok := obj[seg]
			if !ok {
				return nil, false
			}
			cur = bytes.TrimSpace(next)
		case '[':
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 {
				return nil, false
			}
			var arr []json.RawMessage
			if err := json.Unmarshal(cur, &arr); err != nil || idx >= len(arr) {
				return nil, false
			}
			cur = bytes.TrimSpace(arr[idx])
		default:
			return nil, false
		}
	}
	if len(cur) == 0 || bytes.Equal(cur, []byte("null")) {
		return nil, false
	}
	return cur, true
}

// lookupString resolves p and returns it when it is a JSON string.
func lookupString(doc json.RawMessage, p Path) string {
	raw, ok := lookup(doc, p)
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// lookupArray resolves p and returns its entries when it is a JSON array.
func lookupArray(doc json.RawMessage, p Path) ([]json.RawMessage, bool) {
	raw, ok := lookup(doc, p)
	if !ok || raw[0] != '[' {
		return nil, false
	}
	var arr []json.RawMessage
	if json.Unmarshal(raw, &arr) != nil {
		return nil, false
	}
	return arr, true
}
