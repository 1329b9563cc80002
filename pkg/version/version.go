// Package version implements per-engine version parsing, comparison, and the
// restore-compatibility policy that gates pulling data between instances of
// different server versions.
package version

import (
	"strconv"
	"strings"
)

// Info holds the parsed numeric components of an engine version string
// alongside the original raw form. It is never constructed from an
// unparseable string; parsing fails closed with an absence return instead of
// a zeroed struct.
type Info struct {
	// Raw is the original version string as reported by the server.
	Raw string `json:"raw"`

	// Components are the numeric components in engine precedence order.
	Components []int `json:"components"`
}

// String reassembles the parsed components.
func (i Info) String() string {
	parts := make([]string, len(i.Components))
	for n, c := range i.Components {
		parts[n] = strconv.Itoa(c)
	}
	return strings.Join(parts, ".")
}

// Parse extracts numeric components from raw, tolerating surrounding
// whitespace and a leading version-prefix letter ("v1.16.3"). Missing
// trailing components are padded with zeros up to want (when want > 0); any
// non-numeric component makes the whole parse fail.
func Parse(raw string, want int) (Info, bool) {
	s := strings.TrimSpace(raw)
	if len(s) > 1 && (s[0] == 'v' || s[0] == 'V') && s[1] >= '0' && s[1] <= '9' {
		s = s[1:]
	}
	if s == "" {
		return Info{}, false
	}

	parts := strings.Split(s, ".")
	components := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Info{}, false
		}
		components = append(components, n)
	}
	for len(components) < want {
		components = append(components, 0)
	}

	return Info{Raw: raw, Components: components}, true
}

// Compare orders two parsed versions lexicographically over their components
// in declared precedence order; a shorter component list is padded with
// zeros. It returns -1, 0, or 1.
func Compare(a, b Info) int {
	n := len(a.Components)
	if len(b.Components) > n {
		n = len(b.Components)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(a.Components) {
			av = a.Components[i]
		}
		if i < len(b.Components) {
			bv = b.Components[i]
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// CompareRaw parses both strings and compares them. The third return is
// false when either side fails to parse.
func CompareRaw(a, b string) (int, bool) {
	av, ok := Parse(a, 0)
	if !ok {
		return 0, false
	}
	bv, ok := Parse(b, 0)
	if !ok {
		return 0, false
	}
	return Compare(av, bv), true
}

// IsValidFormat reports whether s has at least two numeric components.
func IsValidFormat(s string) bool {
	info, ok := Parse(s, 0)
	return ok && len(info.Components) >= 2
}
