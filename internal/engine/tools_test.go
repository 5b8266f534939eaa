package engine

import (
	"errors"
	"testing"

	"github.com/inamate/geoconstruct/internal/document"
)

func pickAll(t *testing.T, e *Engine, refs ...document.Ref) PickResult {
	t.Helper()
	var res PickResult
	for _, r := range refs {
		var err error
		res, err = e.Pick(r)
		if err != nil {
			t.Fatalf("Pick(%v): %v", r, err)
		}
	}
	return res
}

func TestToolLineStaysArmed(t *testing.T) {
	e := newTestEngine()
	a := mustPoint(t, e, 0, 0)
	b := mustPoint(t, e, 10, 0)
	c := mustPoint(t, e, 0, 10)

	if err := e.BeginConstruction(ToolLine, document.Style{}); err != nil {
		t.Fatal(err)
	}
	res, err := e.Pick(document.PointRef(a))
	if err != nil {
		t.Fatal(err)
	}
	if res.Done || res.Picks != 1 {
		t.Errorf("first pick = %+v", res)
	}
	res = pickAll(t, e, document.PointRef(b))
	if !res.Done || len(res.Created) != 1 || e.Scene().Line(res.Created[0]) == nil {
		t.Fatalf("second pick = %+v", res)
	}
	if e.ActiveTool() != ToolLine || len(e.PendingPicks()) != 0 {
		t.Errorf("tool = %q picks = %v, want armed and empty", e.ActiveTool(), e.PendingPicks())
	}

	res = pickAll(t, e, document.PointRef(a), document.PointRef(c))
	if !res.Done {
		t.Errorf("next line = %+v", res)
	}
	if n := len(e.Scene().Lines); n != 2 {
		t.Errorf("lines = %d, want 2", n)
	}
}

func TestToolRejectsWrongKind(t *testing.T) {
	e := newTestEngine()
	e.LoadSampleDocument()

	if err := e.BeginConstruction(ToolCircle, document.Style{}); err != nil {
		t.Fatal(err)
	}
	pickAll(t, e, document.PointRef("pt_a"))
	if _, err := e.Pick(document.LineRef("ln_cd")); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("line pick for circle tool = %v, want ErrInvalidRef", err)
	}
	if _, err := e.Pick(document.PointRef("pt_zz")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing point pick = %v, want ErrNotFound", err)
	}
	if picks := e.PendingPicks(); len(picks) != 1 || picks[0] != document.PointRef("pt_a") {
		t.Errorf("picks = %v, want [pt_a] kept", picks)
	}
	res := pickAll(t, e, document.PointRef("pt_b"))
	c := e.Scene().Circle(res.Created[0])
	if c == nil || c.Center != "pt_a" || c.RadiusPoint != "pt_b" {
		t.Errorf("circle = %+v", c)
	}
}

func TestToolErrors(t *testing.T) {
	e := newTestEngine()
	if _, err := e.Pick(document.PointRef("pt_a")); !errors.Is(err, ErrNoConstruction) {
		t.Errorf("Pick without tool = %v", err)
	}
	if err := e.BeginConstruction("lasso", document.Style{}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("unknown tool = %v", err)
	}
	if e.ActiveTool() != "" {
		t.Errorf("tool = %q after failed begin", e.ActiveTool())
	}
}

func TestToolFailedBuildDropsPicks(t *testing.T) {
	e := newTestEngine()
	a := mustPoint(t, e, 0, 0)
	b := mustPoint(t, e, 0, 0)
	if err := e.BeginConstruction(ToolLine, document.Style{}); err != nil {
		t.Fatal(err)
	}
	pickAll(t, e, document.PointRef(a))
	if _, err := e.Pick(document.PointRef(b)); !errors.Is(err, ErrDegenerate) {
		t.Errorf("coincident line = %v, want ErrDegenerate", err)
	}
	if len(e.PendingPicks()) != 0 || e.ActiveTool() != ToolLine {
		t.Error("a failed build drops the picks and keeps the tool")
	}
}

func TestToolIntersectAndMidpoint(t *testing.T) {
	e := newTestEngine()
	e.LoadSampleDocument()

	if err := e.BeginConstruction(ToolIntersect, document.Style{}); err != nil {
		t.Fatal(err)
	}
	pickAll(t, e, document.LineRef("ln_ab"))
	if _, err := e.Pick(document.LineRef("ln_ab")); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("self intersection pick = %v", err)
	}
	res := pickAll(t, e, document.CircleRef("circ_o"))
	if len(res.Created) != 2 {
		t.Errorf("line-circle intersections = %v", res.Created)
	}

	if err := e.BeginConstruction(ToolMidpoint, document.Style{}); err != nil {
		t.Fatal(err)
	}
	res = pickAll(t, e, document.LineRef("ln_cd"))
	if !res.Done {
		t.Fatalf("midpoint of line = %+v", res)
	}
	m := point(t, e, res.Created[0])
	if m.Midpoint.ParentLineID != "ln_cd" || !near(m, 0, 0) {
		t.Errorf("midpoint = %+v", m)
	}

	res = pickAll(t, e, document.PointRef("pt_a"), document.PointRef("pt_c"))
	if m := point(t, e, res.Created[0]); !near(m, -200, 0) {
		t.Errorf("midpoint of A, C = (%g, %g)", m.X, m.Y)
	}
}

func TestToolParallelEitherOrder(t *testing.T) {
	e := newTestEngine()
	e.LoadSampleDocument()
	if err := e.BeginConstruction(ToolPerpendicular, document.Style{}); err != nil {
		t.Fatal(err)
	}
	res := pickAll(t, e, document.LineRef("ln_ab"), document.PointRef("pt_o"))
	l := e.Scene().Line(res.Created[0])
	if l.Perpendicular == nil || l.Perpendicular.ThroughPoint != "pt_o" || l.Perpendicular.ReferenceLine != "ln_ab" {
		t.Errorf("line = %+v", l)
	}

	if err := e.BeginConstruction(ToolParallel, document.Style{}); err != nil {
		t.Fatal(err)
	}
	pickAll(t, e, document.PointRef("pt_o"))
	if _, err := e.Pick(document.PointRef("pt_r")); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("second point for parallel tool = %v", err)
	}
	res = pickAll(t, e, document.LineRef("ln_cd"))
	if l := e.Scene().Line(res.Created[0]); l.Parallel == nil {
		t.Errorf("line = %+v", l)
	}
}

func TestToolSymmetric(t *testing.T) {
	e := newTestEngine()
	e.LoadSampleDocument()
	if err := e.BeginConstruction(ToolSymmetric, document.Style{}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Pick(document.LineRef("ln_ab")); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("line as source = %v", err)
	}
	res := pickAll(t, e, document.PointRef("pt_r"), document.PointRef("pt_o"))
	if s := point(t, e, res.Created[0]); !near(s, -120, 0) {
		t.Errorf("R through O = (%g, %g), want (-120, 0)", s.X, s.Y)
	}
}

func TestToolPolygonClosesOnFirstVertex(t *testing.T) {
	e := newTestEngine()
	a := mustPoint(t, e, 0, 0)
	b := mustPoint(t, e, 4, 0)
	c := mustPoint(t, e, 4, 4)
	d := mustPoint(t, e, 0, 4)
	if err := e.BeginConstruction(ToolPolygon, document.Style{}); err != nil {
		t.Fatal(err)
	}

	pickAll(t, e, document.PointRef(a), document.PointRef(b))
	if _, err := e.Pick(document.PointRef(a)); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("closing with two vertices = %v, want ErrInvalidRef", err)
	}
	pickAll(t, e, document.PointRef(c), document.PointRef(d))
	if _, err := e.Pick(document.PointRef(c)); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("repeated vertex = %v, want ErrInvalidRef", err)
	}
	res := pickAll(t, e, document.PointRef(a))
	if !res.Done {
		t.Fatalf("closing pick = %+v", res)
	}
	poly := e.Scene().Polygon(res.Created[0])
	if poly == nil || len(poly.Vertices) != 4 || len(poly.Lines) != 4 {
		t.Errorf("polygon = %+v", poly)
	}
}

func TestToolAngleReusesLines(t *testing.T) {
	e := newTestEngine()
	a := mustPoint(t, e, 10, 0)
	v := mustPoint(t, e, 0, 0)
	b := mustPoint(t, e, 0, 10)
	mustLine(t, e, a, v)

	if err := e.BeginConstruction(ToolAngle, document.Style{}); err != nil {
		t.Fatal(err)
	}
	res := pickAll(t, e, document.PointRef(a), document.PointRef(v), document.PointRef(b))
	// One new leg line and the angle.
	if len(res.Created) != 2 || e.Scene().Angle(res.Created[1]) == nil {
		t.Errorf("created = %v", res.Created)
	}
	if n := len(e.Scene().Lines); n != 2 {
		t.Errorf("lines = %d, want 2", n)
	}

	if _, err := e.angleFromPoints(a, v, a, document.Style{}); !errors.Is(err, ErrDegenerate) {
		t.Errorf("a-v-a = %v, want ErrDegenerate", err)
	}
}

func TestCancelConstructionAndDeletedPicks(t *testing.T) {
	e := newTestEngine()
	a := mustPoint(t, e, 0, 0)
	b := mustPoint(t, e, 1, 0)
	if err := e.BeginConstruction(ToolCircle3, document.Style{}); err != nil {
		t.Fatal(err)
	}
	pickAll(t, e, document.PointRef(a), document.PointRef(b))
	if _, err := e.DeletePoints(a); err != nil {
		t.Fatal(err)
	}
	if picks := e.PendingPicks(); len(picks) != 1 || picks[0] != document.PointRef(b) {
		t.Errorf("picks = %v, want only the surviving point", picks)
	}

	e.CancelConstruction()
	if e.ActiveTool() != "" || e.PendingPicks() != nil {
		t.Error("cancel should disarm the tool")
	}
	if e.Scene().Point(b) == nil {
		t.Error("cancel must not touch committed entities")
	}
}
