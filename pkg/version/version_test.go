package version

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []int
		ok   bool
	}{
		{name: "plain", raw: "16.2", want: []int{16, 2}, ok: true},
		{name: "v prefix", raw: "v16.2", want: []int{16, 2}, ok: true},
		{name: "whitespace", raw: "  16.2 \n", want: []int{16, 2}, ok: true},
		{name: "pads missing components", raw: "16", want: []int{16, 0}, ok: true},
		{name: "non-numeric component", raw: "16.x", ok: false},
		{name: "empty", raw: "", ok: false},
		{name: "garbage", raw: "latest", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw, 2)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if !ok {
				return
			}
			if len(got.Components) != len(tt.want) {
				t.Fatalf("Parse(%q) components = %v, want %v", tt.raw, got.Components, tt.want)
			}
			for i, c := range tt.want {
				if got.Components[i] != c {
					t.Errorf("Parse(%q) component %d = %d, want %d", tt.raw, i, got.Components[i], c)
				}
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "equal", a: "16.2", b: "16.2", want: 0},
		{name: "a older", a: "15.4", b: "16.2", want: -1},
		{name: "a newer", a: "16.3", b: "16.2", want: 1},
		{name: "padded equal", a: "16", b: "16.0", want: 0},
		{name: "minor beats missing", a: "16.1", b: "16", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := Parse(tt.a, 2)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.a)
			}
			b, ok := Parse(tt.b, 2)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.b)
			}
			if got := Compare(a, b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			// Antisymmetry: swapping the operands flips the sign.
			if got := Compare(b, a); got != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestIsValidFormat(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"16.2", true},
		{"25.6.0.0", true},
		{"v1.16.3", true},
		{"16", false},
		{"", false},
		{"latest", false},
		{"a.b", false},
	}

	for _, tt := range tests {
		if got := IsValidFormat(tt.raw); got != tt.want {
			t.Errorf("IsValidFormat(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
