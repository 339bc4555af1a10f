package parser

import (
	"testing"

	"github.com/battery-insight/backend/internal/models"
)

func TestNormalizeUID(t *testing.T) {
	tests := []struct {
		token string
		uid   int
		ok    bool
	}{
		{"10123", 10123, true},
		{"1000", 1000, true},
		{"0", 0, true},
		{"u0a123", 10123, true},
		{"u0a47", 10047, true},
		{"u10a5", 1010005, true},
		{"com.google.android.gms", 0, false},
		{"Screen", 0, false},
		{"u0s1000", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			uid, ok := NormalizeUID(tt.token)
			if ok != tt.ok || (ok && uid != tt.uid) {
				t.Errorf("NormalizeUID(%q) = %d,%v, want %d,%v", tt.token, uid, ok, tt.uid, tt.ok)
			}
		})
	}
}

func TestIdentityResolver_SameUIDSingleIdentity(t *testing.T) {
	sink := &anomalySink{}
	r := NewIdentityResolver(nil, sink)

	a := r.Resolve("u0a123")
	b := r.Resolve("10123")

	if a != b {
		t.Fatal("u0a123 and 10123 must resolve to one identity")
	}
	if a.UID != 10123 {
		t.Errorf("uid = %d, want 10123", a.UID)
	}
	if len(a.RawTokens) != 2 {
		t.Errorf("raw tokens = %v, want both spellings", a.RawTokens)
	}
	if len(r.Entities()) != 1 {
		t.Errorf("entities = %d, want 1", len(r.Entities()))
	}
}

func TestIdentityResolver_LabelsMatchExactly(t *testing.T) {
	sink := &anomalySink{}
	r := NewIdentityResolver(nil, sink)

	a := r.Resolve("Screen")
	b := r.Resolve("Screen")
	c := r.Resolve("screen") // case-sensitive: no fuzzy merging

	if a != b {
		t.Error("identical labels must share an identity")
	}
	if a == c {
		t.Error("labels differing in case must stay separate identities")
	}
}

func TestIdentityResolver_PackageMapNames(t *testing.T) {
	sink := &anomalySink{}
	pkgs := PackageMap{10123: "com.google.android.gms"}
	r := NewIdentityResolver(pkgs, sink)

	e := r.Resolve("u0a123")

	if e.DisplayName != "com.google.android.gms" {
		t.Errorf("display name = %q, want package name", e.DisplayName)
	}
}

func TestIdentityResolver_FriendlyNameUpgrade(t *testing.T) {
	sink := &anomalySink{}
	r := NewIdentityResolver(nil, sink)

	e := r.Resolve("u0a123")
	if e.DisplayName != "u0a123" {
		t.Fatalf("initial display name = %q", e.DisplayName)
	}

	r.ResolveNamed("u0a123", "Maps")
	if e.DisplayName != "Maps" {
		t.Errorf("display name = %q, want Maps", e.DisplayName)
	}
	if len(sink.anomalies) != 0 {
		t.Errorf("upgrading a numeric name is not an ambiguity: %v", sink.anomalies)
	}
}

func TestIdentityResolver_ConflictingNamesFlagged(t *testing.T) {
	sink := &anomalySink{}
	r := NewIdentityResolver(nil, sink)

	r.ResolveNamed("u0a123", "Maps")
	e := r.ResolveNamed("u0a123", "Navigation")

	if e.DisplayName != "Maps" {
		t.Errorf("display name = %q, want first human-readable name kept", e.DisplayName)
	}
	found := false
	for _, a := range sink.anomalies {
		if a.Kind == models.AnomalyIdentityAmbiguity {
			found = true
		}
	}
	if !found {
		t.Error("conflicting display names must surface an identity_ambiguity anomaly")
	}
	// Both names stay traceable as raw tokens.
	if len(e.RawTokens) != 3 {
		t.Errorf("raw tokens = %v, want token plus both names", e.RawTokens)
	}
}

func TestParsePackageList(t *testing.T) {
	text := `package:com.google.android.gms uid:10123
package:com.android.systemui uid:10040
garbage line
package:broken uid:notanumber
`
	pkgs := ParsePackageList(text)

	if len(pkgs) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(pkgs))
	}
	if pkgs[10123] != "com.google.android.gms" {
		t.Errorf("pkgs[10123] = %q", pkgs[10123])
	}
	if pkgs[10040] != "com.android.systemui" {
		t.Errorf("pkgs[10040] = %q", pkgs[10040])
	}
}
