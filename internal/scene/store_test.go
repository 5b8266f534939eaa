package scene

import (
	"errors"
	"testing"

	"github.com/inamate/geoconstruct/internal/document"
)

func addPoint(t *testing.T, s *Store, id string, x, y float64) *document.Point {
	t.Helper()
	p := &document.Point{ID: id, X: x, Y: y, Kind: document.KindFree}
	if err := s.AddPoint(p); err != nil {
		t.Fatalf("AddPoint(%s): %v", id, err)
	}
	return p
}

func TestAddAndLookup(t *testing.T) {
	s := New()
	addPoint(t, s, "a", 1, 2)
	addPoint(t, s, "b", 3, 4)

	if p := s.Point("b"); p == nil || p.X != 3 {
		t.Fatalf("Point(b) = %+v", p)
	}
	if i, ok := s.Index(document.PointRef("b")); !ok || i != 1 {
		t.Errorf("Index(b) = %d, %v", i, ok)
	}
	if s.Point("missing") != nil {
		t.Error("expected nil for missing id")
	}

	err := s.AddPoint(&document.Point{ID: "a"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate add err = %v, want ErrDuplicateID", err)
	}
}

func TestRemoveRebuildsIndex(t *testing.T) {
	s := New()
	addPoint(t, s, "a", 0, 0)
	addPoint(t, s, "b", 1, 0)
	addPoint(t, s, "c", 2, 0)
	if err := s.AddLine(&document.Line{ID: "l", Defining: [2]string{"a", "c"}, Points: []string{"a", "c"}}); err != nil {
		t.Fatal(err)
	}

	if n := s.Remove(document.PointRef("a"), document.LineRef("l"), document.PointRef("nope")); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if len(s.Points) != 2 || len(s.Lines) != 0 {
		t.Fatalf("points=%d lines=%d", len(s.Points), len(s.Lines))
	}
	if i, ok := s.Index(document.PointRef("c")); !ok || i != 1 {
		t.Errorf("Index(c) after removal = %d, %v; want 1, true", i, ok)
	}
	if s.Exists(document.PointRef("a")) {
		t.Error("a should be gone")
	}
}

func TestDocumentRoundTripIsDeepCopy(t *testing.T) {
	s := New()
	p := addPoint(t, s, "a", 1, 1)
	p.Parents = []document.Ref{document.LineRef("l")}
	s.Counters.Points = 1

	doc := s.Document()
	doc.Points[0].X = 99
	doc.Points[0].Parents[0].ID = "changed"

	if p.X != 1 || p.Parents[0].ID != "l" {
		t.Fatal("Document() must not alias store entities")
	}

	s2 := FromDocument(doc)
	if got := s2.Point("a"); got == nil || got.X != 99 {
		t.Fatalf("FromDocument lost data: %+v", got)
	}
	if s2.Counters.Points != 1 {
		t.Errorf("counters = %+v", s2.Counters)
	}
	doc.Points[0].X = 5
	if s2.Point("a").X != 99 {
		t.Error("FromDocument must copy")
	}
}

func TestQueries(t *testing.T) {
	s := New()
	addPoint(t, s, "a", 0, 0)
	addPoint(t, s, "b", 1, 0)
	addPoint(t, s, "r", 0, 1)
	s.AddLine(&document.Line{ID: "l", Defining: [2]string{"a", "b"}, Points: []string{"a", "b"}})
	s.AddCircle(&document.Circle{ID: "c", Kind: document.CircleCenterRadius, Center: "a", RadiusPoint: "r"})
	on := addPoint(t, s, "p", 0.5, 0)
	on.Parents = []document.Ref{document.LineRef("l")}

	if got := s.LinesDefinedBy("a"); len(got) != 1 || got[0].ID != "l" {
		t.Errorf("LinesDefinedBy(a) = %v", got)
	}
	if got := s.CirclesDefinedBy("r"); len(got) != 1 {
		t.Errorf("CirclesDefinedBy(r) = %v", got)
	}
	if got := s.PointsWithParent(document.LineRef("l")); len(got) != 1 || got[0].ID != "p" {
		t.Errorf("PointsWithParent = %v", got)
	}
	if s.LineBetween("b", "a") == nil {
		t.Error("LineBetween should be order independent")
	}

	s.LinkChild("a", "l")
	s.LinkChild("a", "l")
	if got := s.Point("a").Children; len(got) != 1 {
		t.Errorf("children = %v, want one entry", got)
	}
	s.UnlinkChild("a", "l")
	if got := s.Point("a").Children; len(got) != 0 {
		t.Errorf("children after unlink = %v", got)
	}
}
