package decoder

import "testing"

func TestFindPhone(t *testing.T) {
	tests := []struct {
		name   string
		node   any
		want   string
		wantOK bool
	}{
		{
			name:   "adjacent pair",
			node:   []any{"https://maps.gstatic.com/call_googblue_24dp.png", "+1 (555) 123-4567"},
			want:   "15551234567",
			wantOK: true,
		},
		{
			name: "deeply nested",
			node: []any{nil, []any{"a", []any{[]any{
				"icon/call_googblue", "020 7946 0018",
			}}}},
			want:   "02079460018",
			wantOK: true,
		},
		{
			name:   "inside object",
			node:   map[string]any{"b": []any{"call_googblue", "555-0100"}, "a": "noise"},
			want:   "5550100",
			wantOK: true,
		},
		{
			name:   "first match wins",
			node:   []any{[]any{"call_googblue", "111"}, []any{"call_googblue", "222"}},
			want:   "111",
			wantOK: true,
		},
		{
			name:   "following value has no digits",
			node:   []any{"call_googblue", "call us"},
			wantOK: false,
		},
		{
			name:   "following value is a number",
			node:   []any{"call_googblue", 5551234.0},
			wantOK: false,
		},
		{
			name:   "marker is last element",
			node:   []any{"x", "call_googblue"},
			wantOK: false,
		},
		{
			name:   "marker not adjacent",
			node:   []any{"call_googblue", nil, "555"},
			wantOK: false,
		},
		{
			name:   "no marker",
			node:   []any{"555-1234", []any{"tel", "555"}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindPhone(tt.node)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FindPhone() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFindPhone_DepthCap(t *testing.T) {
	var node any = []any{"call_googblue", "555"}
	for range maxPhoneDepth + 5 {
		node = []any{node}
	}
	if _, ok := FindPhone(node); ok {
		t.Error("FindPhone should not descend past the depth cap")
	}

	node = []any{"call_googblue", "555"}
	for range maxPhoneDepth - 1 {
		node = []any{node}
	}
	if got, ok := FindPhone(node); !ok || got != "555" {
		t.Errorf("FindPhone() within depth cap = (%q, %v), want (555, true)", got, ok)
	}
}

func TestFindPhone_NodeBudget(t *testing.T) {
	wide := make([]any, maxPhoneNodes+10)
	wide[len(wide)-1] = []any{"call_googblue", "555"}
	if _, ok := FindPhone(wide); ok {
		t.Error("FindPhone should give up once the node budget is spent")
	}
}
