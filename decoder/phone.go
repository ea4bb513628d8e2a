package decoder

import (
	"maps"
	"slices"
	"strings"
)

const (
	// callIconMarker identifies the icon URL that immediately precedes the
	// phone number in the blob.
	callIconMarker = "call_googblue"

	maxPhoneDepth = 50
	maxPhoneNodes = 100_000
)

// FindPhone walks node depth-first looking for an array in which a string
// containing the call-icon marker is directly followed by a string with at
// least one digit. The first match is returned with every non-digit removed,
// so a leading '+' is dropped on purpose.
//
// The walk stops descending past maxPhoneDepth levels and gives up after
// visiting maxPhoneNodes values.
func FindPhone(node any) (string, bool) {
	w := phoneWalker{budget: maxPhoneNodes}
	return w.walk(node, 0)
}

type phoneWalker struct {
	budget int
}

func (w *phoneWalker) walk(node any, depth int) (string, bool) {
	if w.budget <= 0 || depth > maxPhoneDepth {
		return "", false
	}
	w.budget--

	switch n := node.(type) {
	case []any:
		for i, item := range n {
			if s, ok := item.(string); ok && strings.Contains(s, callIconMarker) && i+1 < len(n) {
				if digits, ok := phoneDigits(n[i+1]); ok {
					return digits, true
				}
			}
			if phone, ok := w.walk(item, depth+1); ok {
				return phone, true
			}
		}
	case map[string]any:
		// Object keys are visited in sorted order so the result is stable.
		for _, k := range slices.Sorted(maps.Keys(n)) {
			if phone, ok := w.walk(n[k], depth+1); ok {
				return phone, true
			}
		}
	}
	return "", false
}

func phoneDigits(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}
