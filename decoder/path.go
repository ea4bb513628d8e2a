package decoder

// PathGet walks container through keys. A string key only resolves against
// a map[string]any and an int key only against a []any (negative indices
// are out of bounds). Any mismatch returns ok == false; with no keys the
// container itself is returned.
//
// A JSON null reached at the end of the path counts as absent.
func PathGet(container any, keys ...any) (any, bool) {
	cur := container
	for _, key := range keys {
		switch k := key.(type) {
		case int:
			seq, ok := cur.([]any)
			if !ok || k < 0 || k >= len(seq) {
				return nil, false
			}
			cur = seq[k]
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			v, found := m[k]
			if !found {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func pathString(blob []any, keys ...any) (string, bool) {
	v, ok := PathGet(blob, keys...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func pathFloat(blob []any, keys ...any) (float64, bool) {
	v, ok := PathGet(blob, keys...)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func pathSlice(blob []any, keys ...any) ([]any, bool) {
	v, ok := PathGet(blob, keys...)
	if !ok {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}
