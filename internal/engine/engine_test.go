package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/geom"
)

const tol = 1e-6

func approx(a, b float64) bool {
	return math.Abs(a-b) < tol
}

func near(p *document.Point, x, y float64) bool {
	return approx(p.X, x) && approx(p.Y, y)
}

// newTestEngine returns an engine with readable sequential ids.
func newTestEngine(opts ...Option) *Engine {
	n := 0
	gen := WithIDGenerator(func(prefix string) string {
		n++
		return fmt.Sprintf("%s_%d", prefix, n)
	})
	return New(append([]Option{gen}, opts...)...)
}

func mustPoint(t *testing.T, e *Engine, x, y float64) string {
	t.Helper()
	id, err := e.AddPoint(geom.V(x, y), document.Style{})
	if err != nil {
		t.Fatalf("AddPoint(%v, %v): %v", x, y, err)
	}
	return id
}

func mustLine(t *testing.T, e *Engine, a, b string) string {
	t.Helper()
	id, err := e.AddLine(a, b, document.Style{})
	if err != nil {
		t.Fatalf("AddLine(%s, %s): %v", a, b, err)
	}
	return id
}

func mustCircle(t *testing.T, e *Engine, center, radius string) string {
	t.Helper()
	id, err := e.AddCircle(center, radius, document.Style{})
	if err != nil {
		t.Fatalf("AddCircle(%s, %s): %v", center, radius, err)
	}
	return id
}

func point(t *testing.T, e *Engine, id string) *document.Point {
	t.Helper()
	p := e.Scene().Point(id)
	if p == nil {
		t.Fatalf("point %s missing", id)
	}
	return p
}

// drag performs a complete pointer drag of a point.
func drag(t *testing.T, e *Engine, id string, to geom.Vec) {
	t.Helper()
	p := point(t, e, id)
	if err := e.BeginDrag(document.PointRef(id), geom.V(p.X, p.Y)); err != nil {
		t.Fatalf("BeginDrag(%s): %v", id, err)
	}
	if err := e.DragTo(to); err != nil {
		t.Fatalf("DragTo: %v", err)
	}
	if err := e.EndDrag(); err != nil {
		t.Fatalf("EndDrag: %v", err)
	}
}

func TestLoadSampleDocument(t *testing.T) {
	e := newTestEngine()
	e.LoadSampleDocument()

	if got := len(e.Scene().Points); got != 8 {
		t.Fatalf("points = %d, want 8", got)
	}
	if p := point(t, e, "pt_e"); !near(p, 0, 0) {
		t.Errorf("intersection E = (%g, %g), want (0, 0)", p.X, p.Y)
	}
	if p := point(t, e, "pt_f"); !near(p, 0, 120) {
		t.Errorf("on-circle F = (%g, %g), want (0, 120)", p.X, p.Y)
	}
	c := e.Scene().Circle("circ_o")
	if !approx(c.Radius, 120) || !approx(c.CX, 0) {
		t.Errorf("circle = center (%g, %g) r %g", c.CX, c.CY, c.Radius)
	}
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	e := newTestEngine()
	e.LoadSampleDocument()
	data := e.DocumentJSON()

	e2 := newTestEngine()
	if err := e2.LoadDocumentJSON(data); err != nil {
		t.Fatalf("LoadDocumentJSON: %v", err)
	}
	if got, want := len(e2.Scene().Lines), len(e.Scene().Lines); got != want {
		t.Errorf("lines = %d, want %d", got, want)
	}
	if e2.Scene().Counters != e.Scene().Counters {
		t.Errorf("counters = %+v, want %+v", e2.Scene().Counters, e.Scene().Counters)
	}
}

func TestLoadDocumentRejectsDanglingReferences(t *testing.T) {
	doc := document.NewSampleDocument()
	doc.Points[6].Parents[1] = document.LineRef("ln_missing")

	e := newTestEngine()
	err := e.LoadDocument(doc)
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("LoadDocument err = %v, want ErrInvalidDocument", err)
	}
	if !strings.Contains(err.Error(), "ln_missing") {
		t.Errorf("error %q should name the missing line", err)
	}
	if len(e.Scene().Points) != 0 {
		t.Error("a rejected document must leave the engine untouched")
	}
}

func TestLoadDocumentJSONParseError(t *testing.T) {
	e := newTestEngine()
	if err := e.LoadDocumentJSON("{not json"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCheckpointer(t *testing.T) {
	var docs []*document.Document
	e := newTestEngine(WithCheckpointer(CheckpointFunc(func(d *document.Document) {
		docs = append(docs, d)
	})))
	a := mustPoint(t, e, 0, 0)
	mustPoint(t, e, 1, 1)
	e.Commit()
	drag(t, e, a, geom.V(-3, 7))

	if len(docs) != 2 {
		t.Fatalf("checkpoints = %d, want 2", len(docs))
	}
	if p := docs[1].Points[0]; !approx(p.X, -3) || !approx(p.Y, 7) {
		t.Errorf("checkpointed A = (%g, %g)", p.X, p.Y)
	}
	docs[1].Points[0].X = 100
	if point(t, e, a).X == 100 {
		t.Error("checkpoint must be a copy")
	}
}
