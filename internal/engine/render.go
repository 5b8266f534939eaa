package engine

import (
	"encoding/json"
	"math"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/geom"
	"github.com/inamate/geoconstruct/internal/scene"
)

// DrawCommand represents a single drawing operation for the frontend to execute.
// Coordinates are in world space; Transform maps them to the canvas.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "polygon", "circle", "line", "angle", "point", "snap"
	ObjectID    string        `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Path        []PathCommand `json:"path,omitempty"`        // Path data for lines, angles and polygons
	X           float64       `json:"x,omitempty"`           // Point position or circle center
	Y           float64       `json:"y,omitempty"`           //
	Radius      float64       `json:"radius,omitempty"`      // Circle or point radius
	Label       string        `json:"label,omitempty"`       //
	Fill        string        `json:"fill,omitempty"`        //
	Stroke      string        `json:"stroke,omitempty"`      //
	StrokeWidth float64       `json:"strokeWidth,omitempty"` //
	Dashed      bool          `json:"dashed,omitempty"`      //
	Selected    bool          `json:"selected,omitempty"`    //
	Strength    float64       `json:"strength,omitempty"`    // Axis snap blend weight
}

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["A", cx, cy, r, start, end], ["Z"].
type PathCommand []interface{}

const angleArcRadius = 24

// CompileDrawCommands generates the draw commands for every visible entity
// of the scene, in painter's order (back to front): polygons, circles,
// lines, angles, points. Lines are clipped to bounds.
func CompileDrawCommands(s *scene.Store, bounds Rect, selected map[document.Ref]bool) []DrawCommand {
	var commands []DrawCommand

	for _, poly := range s.Polygons {
		path := make([]PathCommand, 0, len(poly.Vertices)+1)
		for i, id := range poly.Vertices {
			p, ok := s.Pos(id)
			if !ok {
				path = nil
				break
			}
			op := "L"
			if i == 0 {
				op = "M"
			}
			path = append(path, PathCommand{op, p.X, p.Y})
		}
		if len(path) == 0 {
			continue
		}
		path = append(path, PathCommand{"Z"})
		commands = append(commands, DrawCommand{
			Op:       "polygon",
			ObjectID: poly.ID,
			Path:     path,
			Label:    poly.Label,
			Fill:     poly.Style.Fill,
			Selected: selected[document.Ref{Kind: document.RefPolygon, ID: poly.ID}],
		})
	}

	for _, c := range s.Circles {
		if c.Hidden {
			continue
		}
		commands = append(commands, DrawCommand{
			Op:          "circle",
			ObjectID:    c.ID,
			X:           c.CX,
			Y:           c.CY,
			Radius:      c.Radius,
			Label:       c.Label,
			Stroke:      c.Style.Stroke,
			StrokeWidth: c.Style.StrokeWidth,
			Dashed:      c.Style.Dashed,
			Selected:    selected[document.CircleRef(c.ID)],
		})
	}

	for _, l := range s.Lines {
		if l.Hidden {
			continue
		}
		a, b, ok := s.LineEnds(l)
		if !ok {
			continue
		}
		from, to, ok := clipLine(a, b, bounds)
		if !ok {
			continue
		}
		commands = append(commands, DrawCommand{
			Op:          "line",
			ObjectID:    l.ID,
			Path:        []PathCommand{{"M", from.X, from.Y}, {"L", to.X, to.Y}},
			Label:       l.Label,
			Stroke:      l.Style.Stroke,
			StrokeWidth: l.Style.StrokeWidth,
			Dashed:      l.Style.Dashed,
			Selected:    selected[document.LineRef(l.ID)],
		})
	}

	for _, a := range s.Angles {
		start, end, ok := angleSpan(s, a)
		if !ok {
			continue
		}
		v, _ := s.Pos(a.Vertex)
		commands = append(commands, DrawCommand{
			Op:          "angle",
			ObjectID:    a.ID,
			Path:        []PathCommand{{"A", v.X, v.Y, float64(angleArcRadius), start, end}},
			X:           v.X,
			Y:           v.Y,
			Label:       a.Label,
			Fill:        a.Style.Fill,
			Stroke:      a.Style.Stroke,
			StrokeWidth: a.Style.StrokeWidth,
			Selected:    selected[document.Ref{Kind: document.RefAngle, ID: a.ID}],
		})
	}

	for _, p := range s.Points {
		if p.Hidden || p.IsHelper() {
			continue
		}
		commands = append(commands, DrawCommand{
			Op:       "point",
			ObjectID: p.ID,
			X:        p.X,
			Y:        p.Y,
			Radius:   p.Style.PointRadius,
			Label:    p.Label,
			Fill:     p.Style.Fill,
			Stroke:   p.Style.Stroke,
			Selected: selected[document.PointRef(p.ID)],
		})
	}
	return commands
}

// clipLine returns the part of the infinite line through a and b that
// crosses bounds.
func clipLine(a, b geom.Vec, bounds Rect) (geom.Vec, geom.Vec, bool) {
	dir, ok := geom.Direction(a, b)
	if !ok {
		return geom.Vec{}, geom.Vec{}, false
	}
	c := bounds.Center()
	foot := geom.ProjectOntoLine(c, a, b)
	half := math.Hypot(bounds.Width, bounds.Height) / 2
	if geom.Dist(foot, c) > half {
		return geom.Vec{}, geom.Vec{}, false
	}
	return geom.V(foot.X-half*dir.X, foot.Y-half*dir.Y), geom.V(foot.X+half*dir.X, foot.Y+half*dir.Y), true
}

// angleLeg returns the unit direction of an angle leg away from the
// vertex, along the leg's segment of the line.
func angleLeg(s *scene.Store, vertex string, leg document.Leg) (geom.Vec, bool) {
	l := s.Line(leg.Line)
	if l == nil || l.Hidden || leg.SegmentIndex < 0 || leg.SegmentIndex+1 >= len(l.Points) {
		return geom.Vec{}, false
	}
	v, ok := s.Pos(vertex)
	if !ok {
		return geom.Vec{}, false
	}
	from, to := l.Points[leg.SegmentIndex], l.Points[leg.SegmentIndex+1]
	other := to
	if to == vertex {
		other = from
	}
	o, ok := s.Pos(other)
	if !ok {
		return geom.Vec{}, false
	}
	return geom.Direction(v, o)
}

// angleSpan returns the start and end polar angles of the arc drawn
// counter-clockwise from the first leg to the second.
func angleSpan(s *scene.Store, a *document.Angle) (float64, float64, bool) {
	d1, ok1 := angleLeg(s, a.Vertex, a.Legs[0])
	d2, ok2 := angleLeg(s, a.Vertex, a.Legs[1])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	start := math.Atan2(d1.Y, d1.X)
	end := math.Atan2(d2.Y, d2.X)
	if end < start {
		end += 2 * math.Pi
	}
	return start, end, true
}

// AngleMeasure returns the size of an angle in radians, in [0, 2π).
func AngleMeasure(s *scene.Store, a *document.Angle) (float64, bool) {
	start, end, ok := angleSpan(s, a)
	return end - start, ok
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// HitTest returns the entity nearest to pos within tolerance. Points win
// over lines, and lines over circles. Hidden entities and helper points
// are never hit. The zero Ref means nothing was hit.
func HitTest(s *scene.Store, pos geom.Vec, tolerance float64) document.Ref {
	best, bestDist := document.Ref{}, math.Inf(1)
	for _, p := range s.Points {
		if p.Hidden || p.IsHelper() {
			continue
		}
		if d := geom.Dist(pos, geom.V(p.X, p.Y)); d <= tolerance && d < bestDist {
			best, bestDist = document.PointRef(p.ID), d
		}
	}
	if !best.IsZero() {
		return best
	}
	for _, l := range s.Lines {
		if l.Hidden {
			continue
		}
		a, b, ok := s.LineEnds(l)
		if !ok || geom.Dist(a, b) < geom.Epsilon {
			continue
		}
		if d := geom.DistanceToLine(pos, a, b); d <= tolerance && d < bestDist {
			best, bestDist = document.LineRef(l.ID), d
		}
	}
	if !best.IsZero() {
		return best
	}
	for _, c := range s.Circles {
		if c.Hidden {
			continue
		}
		d := math.Abs(geom.Dist(pos, geom.V(c.CX, c.CY)) - c.Radius)
		if d <= tolerance && d < bestDist {
			best, bestDist = document.CircleRef(c.ID), d
		}
	}
	return best
}

// Bounds returns the world bounding box of an entity. Lines are bounded
// by their outermost points.
func Bounds(s *scene.Store, ref document.Ref) Rect {
	switch ref.Kind {
	case document.RefPoint:
		if p, ok := s.Pos(ref.ID); ok {
			return rectAround(p, 0.5)
		}
	case document.RefLine:
		if l := s.Line(ref.ID); l != nil {
			var r Rect
			for _, id := range l.Points {
				if p, ok := s.Pos(id); ok {
					r = r.Union(rectAround(p, 0.5))
				}
			}
			return r
		}
	case document.RefCircle:
		if c := s.Circle(ref.ID); c != nil {
			return rectAround(geom.V(c.CX, c.CY), c.Radius)
		}
	case document.RefPolygon:
		if poly := s.Polygon(ref.ID); poly != nil {
			var r Rect
			for _, id := range poly.Vertices {
				if p, ok := s.Pos(id); ok {
					r = r.Union(rectAround(p, 0.5))
				}
			}
			return r
		}
	case document.RefAngle:
		if a := s.Angle(ref.ID); a != nil {
			if v, ok := s.Pos(a.Vertex); ok {
				return rectAround(v, angleArcRadius)
			}
		}
	}
	return Rect{}
}

// --- Engine queries ---

func (e *Engine) SetViewport(v Viewport) {
	e.view = v
}

func (e *Engine) Viewport() Viewport {
	return e.view
}

// ScreenToWorld resolves a canvas position to world space.
func (e *Engine) ScreenToWorld(screen geom.Vec) geom.Vec {
	return e.view.ToWorld(screen)
}

// Render returns the draw commands of the current construction as JSON.
// An active axis snap is appended as a "snap" command.
func (e *Engine) Render() string {
	selected := make(map[document.Ref]bool, len(e.selection))
	for _, r := range e.selection {
		selected[r] = true
	}
	commands := CompileDrawCommands(e.scene, e.view.WorldBounds(), selected)
	transform := e.view.Matrix().ToSlice()
	for i := range commands {
		commands[i].Transform = transform
	}
	if e.snap.Active {
		commands = append(commands, e.snapCommand(transform))
	}
	result, err := DrawCommandsToJSON(commands)
	if err != nil {
		e.log.Error("marshal draw commands", "error", err)
	}
	return result
}

func (e *Engine) snapCommand(transform []float64) DrawCommand {
	b := e.view.WorldBounds()
	path := []PathCommand{{"M", b.X, e.snap.Value}, {"L", b.X + b.Width, e.snap.Value}}
	if e.snap.Axis == AxisVertical {
		path = []PathCommand{{"M", e.snap.Value, b.Y}, {"L", e.snap.Value, b.Y + b.Height}}
	}
	return DrawCommand{
		Op:        "snap",
		ObjectID:  e.snap.LineID,
		Transform: transform,
		Path:      path,
		Strength:  e.snap.Strength,
		Dashed:    true,
	}
}

// HitTest finds the entity under a world-space position, using the
// configured pick radius in screen pixels.
func (e *Engine) HitTest(pos geom.Vec) document.Ref {
	return HitTest(e.scene, pos, e.opts.HitTolerance/e.view.zoom())
}

// SelectionBounds returns the combined bounding box of the selection.
func (e *Engine) SelectionBounds() Rect {
	var r Rect
	for _, ref := range e.selection {
		r = r.Union(Bounds(e.scene, ref))
	}
	return r
}
