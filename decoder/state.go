// Package decoder turns the bootstrap state embedded in a Maps place page
// into a sparse place record.
//
// The embedded format is an undocumented, deeply nested positional array.
// Nothing here enforces a schema: every field is read through PathGet at a
// fixed offset and any mismatch simply leaves that field out.
package decoder

import (
	"encoding/json"
	"strings"
)

const (
	// stateStartMarker and stateEndMarker bracket the serialized literal
	// assigned in the page's bootstrap script.
	stateStartMarker = ";window.APP_INITIALIZATION_STATE="
	stateEndMarker   = ";window.APP_FLAGS"

	// guardPrefix is the anti-JSON-hijacking prefix the nested payload
	// string starts with.
	guardPrefix = ")]}'\n"

	envelopeIndex = 3
	payloadIndex  = 6
)

// ExtractEmbeddedState returns the literal between the bootstrap markers.
// The result is only returned when it looks like a JSON array or object;
// missing markers or any other shape yield ok == false.
func ExtractEmbeddedState(html string) (string, bool) {
	start := strings.Index(html, stateStartMarker)
	if start < 0 {
		return "", false
	}
	rest := html[start+len(stateStartMarker):]

	end := strings.Index(rest, stateEndMarker)
	if end < 0 {
		return "", false
	}

	raw := strings.TrimSpace(rest[:end])
	if raw == "" || (raw[0] != '[' && raw[0] != '{') {
		return "", false
	}
	return raw, true
}

// DecodeEnvelope parses the raw bootstrap literal and returns the place blob.
//
// The blob sits at [3][6] of the envelope, either inline as an array or as a
// guard-prefixed JSON string whose own element 6 is the blob.
func DecodeEnvelope(raw string) ([]any, bool) {
	var outer any
	if err := json.Unmarshal([]byte(raw), &outer); err != nil {
		return nil, false
	}

	root, ok := outer.([]any)
	if !ok || len(root) <= envelopeIndex {
		return nil, false
	}
	envelope, ok := root[envelopeIndex].([]any)
	if !ok || len(envelope) <= payloadIndex {
		return nil, false
	}

	switch candidate := envelope[payloadIndex].(type) {
	case []any:
		return candidate, true
	case string:
		return decodeGuardedPayload(candidate)
	default:
		return nil, false
	}
}

func decodeGuardedPayload(s string) ([]any, bool) {
	if !strings.HasPrefix(s, guardPrefix) {
		return nil, false
	}

	var inner any
	if err := json.Unmarshal([]byte(s[len(guardPrefix):]), &inner); err != nil {
		return nil, false
	}
	seq, ok := inner.([]any)
	if !ok || len(seq) <= payloadIndex {
		return nil, false
	}
	blob, ok := seq[payloadIndex].([]any)
	return blob, ok
}
