package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixPoint    = "pt"
	PrefixLine     = "ln"
	PrefixCircle   = "circ"
	PrefixAngle    = "ang"
	PrefixPolygon  = "poly"
	PrefixScene    = "scene"
	PrefixOp       = "op"
	PrefixSnapshot = "snap"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

// Ids minted outside the engine, which calls New with an entity prefix.
func NewSceneID() string    { return New(PrefixScene) }
func NewOpID() string       { return New(PrefixOp) }
func NewSnapshotID() string { return New(PrefixSnapshot) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}

// PrefixOf returns the type prefix of id, or "" if id is not a typeid.
func PrefixOf(id string) string {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return ""
	}
	return parsed.Prefix()
}
