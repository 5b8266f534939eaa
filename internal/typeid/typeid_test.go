package typeid

import (
	"strings"
	"testing"
)

func TestNewHasPrefix(t *testing.T) {
	gens := map[string]func() string{
		PrefixScene:    NewSceneID,
		PrefixOp:       NewOpID,
		PrefixSnapshot: NewSnapshotID,
	}
	for _, prefix := range []string{PrefixPoint, PrefixLine, PrefixCircle, PrefixAngle, PrefixPolygon} {
		gens[prefix] = func() string { return New(prefix) }
	}
	for prefix, gen := range gens {
		id := gen()
		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("id %q does not start with %q", id, prefix+"_")
		}
		if err := Validate(id, prefix); err != nil {
			t.Errorf("Validate(%q, %q): %v", id, prefix, err)
		}
		if got := PrefixOf(id); got != prefix {
			t.Errorf("PrefixOf(%q) = %q, want %q", id, got, prefix)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	if err := Validate(New(PrefixPoint), PrefixLine); err == nil {
		t.Error("expected prefix mismatch error")
	}
	if err := Validate("not-an-id", PrefixPoint); err == nil {
		t.Error("expected parse error")
	}
	if got := PrefixOf("garbage!"); got != "" {
		t.Errorf("PrefixOf(garbage) = %q, want empty", got)
	}
}

func TestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New(PrefixPoint)
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
