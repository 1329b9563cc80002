package version

import (
	"strings"
	"testing"

	"github.com/dbnest/dbnest/pkg/engine"
)

func TestCompatibleClickHouse(t *testing.T) {
	p := PolicyFor(engine.KindClickHouse)

	tests := []struct {
		name        string
		source      string
		target      string
		wantOK      bool
		wantWarning bool
	}{
		{name: "identical", source: "25.6.0.0", target: "25.6.0.0", wantOK: true},
		{name: "target newer same year", source: "25.6.0.0", target: "25.12.0.0", wantOK: true},
		{name: "source a year ahead", source: "26.6.0.0", target: "25.6.0.0", wantOK: false, wantWarning: true},
		{name: "source within six months", source: "25.10.0.0", target: "25.6.0.0", wantOK: true, wantWarning: true},
		{name: "year rollover within window", source: "26.1.0.0", target: "25.10.0.0", wantOK: true, wantWarning: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Compatible(tt.source, tt.target)
			if got.OK != tt.wantOK {
				t.Errorf("Compatible(%q, %q).OK = %v, want %v (warning: %s)", tt.source, tt.target, got.OK, tt.wantOK, got.Warning)
			}
			if tt.wantWarning && got.Warning == "" {
				t.Errorf("Compatible(%q, %q) expected a warning", tt.source, tt.target)
			}
			if !got.OK && !strings.Contains(got.Warning, "much newer") {
				t.Errorf("Compatible(%q, %q) refusal should say the source is much newer, got %q", tt.source, tt.target, got.Warning)
			}
		})
	}
}

func TestCompatibleQdrant(t *testing.T) {
	p := PolicyFor(engine.KindQdrant)

	got := p.Compatible("2.0.0", "1.16.3")
	if got.OK {
		t.Errorf("major downgrade should be incompatible, got OK (warning: %s)", got.Warning)
	}
	if got.Warning == "" {
		t.Error("major downgrade must carry a warning")
	}

	got = p.Compatible("1.15.0", "1.16.3")
	if !got.OK {
		t.Errorf("upgrade direction should be compatible: %s", got.Warning)
	}
	if got.Warning != "" {
		t.Errorf("same-major upgrade should carry no warning, got %q", got.Warning)
	}
}

func TestCompatibleFailsOpen(t *testing.T) {
	p := PolicyFor(engine.KindPostgres)

	tests := []struct {
		source, target string
	}{
		{"mystery", "16.2"},
		{"16.2", "mystery"},
		{"", ""},
	}

	for _, tt := range tests {
		got := p.Compatible(tt.source, tt.target)
		if !got.OK {
			t.Errorf("Compatible(%q, %q) must not block on unparseable versions", tt.source, tt.target)
		}
		if got.Warning == "" {
			t.Errorf("Compatible(%q, %q) must warn that the versions are unknown", tt.source, tt.target)
		}
	}
}

func TestCompatibleSemverDowngrade(t *testing.T) {
	p := PolicyFor(engine.KindPostgres)

	if got := p.Compatible("16.2", "15.4"); got.OK {
		t.Errorf("major downgrade should be refused, got OK (warning: %s)", got.Warning)
	}
	got := p.Compatible("16.3", "16.1")
	if !got.OK {
		t.Errorf("minor downgrade should pass with a warning: %s", got.Warning)
	}
	if got.Warning == "" {
		t.Error("minor downgrade should carry a warning")
	}
}

func TestIsSupported(t *testing.T) {
	p := PolicyFor(engine.KindPostgres)

	v, ok := p.Parse("16.2")
	if !ok {
		t.Fatal("Parse failed")
	}
	if !p.IsSupported(v) {
		t.Error("16.2 should be supported")
	}

	old, ok := p.Parse("12.9")
	if !ok {
		t.Fatal("Parse failed")
	}
	if p.IsSupported(old) {
		t.Error("12.9 predates the supported floor")
	}
}

func TestPolicyForUnknownKind(t *testing.T) {
	p := PolicyFor(engine.Kind("graphite"))
	if got := p.Compatible("1.0.0", "1.0.0"); !got.OK {
		t.Errorf("fallback policy should accept identical versions: %s", got.Warning)
	}
}
