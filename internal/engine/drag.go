package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/geom"
)

// Axis names the cardinal axis a dragged point is being pulled onto.
type Axis string

const (
	AxisNone       Axis = ""
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// SnapIndicator is the axis-snap state of the current drag, for rendering.
type SnapIndicator struct {
	Active   bool    `json:"active"`
	Axis     Axis    `json:"axis,omitempty"`
	Strength float64 `json:"strength"`
	LineID   string  `json:"lineId,omitempty"`
	// Value is the shared coordinate the point is pulled toward: y for a
	// horizontal axis, x for a vertical one.
	Value float64 `json:"value"`
}

type dragState struct {
	target   document.Ref
	start    geom.Vec
	moving   []string
	original map[string]geom.Vec
	params   map[string]*float64
	helpers  map[string]document.Directed
}

func (e *Engine) Dragging() bool {
	return e.drag != nil
}

func (e *Engine) SnapIndicator() SnapIndicator {
	return e.snap
}

// BeginDrag starts dragging a point, line or circle from the world-space
// pointer position. It captures the original positions of the target and
// of everything that moves rigidly with it.
func (e *Engine) BeginDrag(target document.Ref, pointer geom.Vec) error {
	if e.drag != nil {
		return ErrDragInProgress
	}
	moving, err := e.coMoving(target)
	if err != nil {
		return err
	}

	d := &dragState{
		target:   target,
		start:    pointer,
		moving:   moving,
		original: make(map[string]geom.Vec, len(moving)),
		params:   make(map[string]*float64),
		helpers:  make(map[string]document.Directed),
	}
	for _, id := range moving {
		p := e.scene.Point(id)
		d.original[id] = geom.V(p.X, p.Y)
		if p.Param != nil {
			v := *p.Param
			d.params[id] = &v
		}
		if l := e.helperLine(p); l != nil {
			d.helpers[l.ID] = *directedMeta(l, l.Perpendicular != nil)
		}
	}
	e.drag = d
	e.snap = SnapIndicator{}
	e.log.Debug("drag started", "kind", target.Kind, "id", target.ID, "moving", len(moving))
	return nil
}

// coMoving returns the ids of the points a drag on target moves directly.
func (e *Engine) coMoving(target document.Ref) ([]string, error) {
	switch target.Kind {
	case document.RefPoint:
		p := e.scene.Point(target.ID)
		if p == nil {
			return nil, fmt.Errorf("point %s: %w", target.ID, ErrNotFound)
		}
		if p.Kind != document.KindFree && p.Kind != document.KindOnObject {
			return nil, fmt.Errorf("drag %s point %s: %w", p.Kind, p.ID, ErrNotDraggable)
		}
		moving := []string{p.ID}
		if p.Kind == document.KindFree && !p.IsHelper() {
			// A circle follows its center rigidly.
			for _, c := range e.scene.Circles {
				if c.Kind != document.CircleCenterRadius || c.Center != p.ID {
					continue
				}
				if rp := e.scene.Point(c.RadiusPoint); rp != nil && e.freeMover(rp) && !contains(moving, rp.ID) {
					moving = append(moving, rp.ID)
				}
			}
		}
		return moving, nil
	case document.RefLine:
		l := e.scene.Line(target.ID)
		if l == nil {
			return nil, fmt.Errorf("line %s: %w", target.ID, ErrNotFound)
		}
		ids := l.Defining[:]
		if m := directedMeta(l, l.Perpendicular != nil); m != nil {
			ids = []string{m.ThroughPoint}
		}
		return e.freeMovers(target, ids)
	case document.RefCircle:
		c := e.scene.Circle(target.ID)
		if c == nil {
			return nil, fmt.Errorf("circle %s: %w", target.ID, ErrNotFound)
		}
		return e.freeMovers(target, c.DefiningPoints())
	}
	return nil, fmt.Errorf("drag %s: %w", target.Kind, ErrNotDraggable)
}

func (e *Engine) freeMover(p *document.Point) bool {
	return p.Kind == document.KindFree && !p.IsHelper()
}

func (e *Engine) freeMovers(target document.Ref, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		p := e.scene.Point(id)
		if p == nil || !e.freeMover(p) {
			return nil, fmt.Errorf("drag %s %s: %w", target.Kind, target.ID, ErrNotDraggable)
		}
		if !contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// helperLine returns the directed line a helper point belongs to.
func (e *Engine) helperLine(p *document.Point) *document.Line {
	id := p.ParallelHelperFor
	if id == "" {
		id = p.PerpendicularHelperFor
	}
	if id == "" {
		return nil
	}
	return e.scene.Line(id)
}

// DragTo moves the drag target so that it follows the pointer, applies the
// position constraints of every moved point, and propagates.
func (e *Engine) DragTo(pointer geom.Vec) error {
	d := e.drag
	if d == nil {
		return ErrNoDrag
	}
	delta := r2.Sub(pointer, d.start)
	e.snap = SnapIndicator{}

	// The snap of a dragged point shifts its whole rigid group.
	if d.target.Kind == document.RefPoint {
		if p := e.scene.Point(d.target.ID); p != nil && e.freeMover(p) {
			raw := r2.Add(d.original[p.ID], delta)
			delta = r2.Sub(e.axisSnap(p, raw, delta, false), d.original[p.ID])
		}
	}

	targets := make(map[string]geom.Vec, len(d.moving))
	for _, id := range d.moving {
		p := e.scene.Point(id)
		if p == nil {
			continue
		}
		if pos, ok := e.constrain(p, r2.Add(d.original[id], delta)); ok {
			targets[id] = pos
		}
	}
	e.moveRigid(d.moving, targets)
	return nil
}

// moveRigid places every point first and propagates afterwards, so that
// no dependent is ever solved against a half-moved group.
func (e *Engine) moveRigid(order []string, targets map[string]geom.Vec) {
	e.cascade = false
	for _, id := range order {
		if pos, ok := targets[id]; ok {
			if p := e.scene.Point(id); p != nil {
				e.movePoint(p, pos, 0)
			}
		}
	}
	e.cascade = true
	for _, id := range order {
		if _, ok := targets[id]; ok {
			e.propagatePoint(id, 0)
		}
	}
}

// constrain applies the positional constraint of a point to a raw drag
// position: projection onto a parent line or circle, or onto the line of a
// helper point. Free points are unconstrained.
func (e *Engine) constrain(p *document.Point, raw geom.Vec) (geom.Vec, bool) {
	if l := e.helperLine(p); l != nil {
		return e.slideHelper(l, raw)
	}
	switch p.Kind {
	case document.KindFree:
		return raw, true
	case document.KindOnObject:
		if len(p.Parents) != 1 {
			return geom.Vec{}, false
		}
		placed, param, err := e.placeOn(p.Parents[0], raw)
		if err != nil {
			return geom.Vec{}, false
		}
		p.Param = &param
		return placed, true
	}
	return geom.Vec{}, false
}

// slideHelper projects a dragged helper point onto its directed line and
// stores the new signed offset so later recomputes keep it there.
func (e *Engine) slideHelper(l *document.Line, raw geom.Vec) (geom.Vec, bool) {
	dir, meta, ok := e.directedDir(l)
	if !ok {
		return geom.Vec{}, false
	}
	through, ok := e.scene.Pos(meta.ThroughPoint)
	if !ok {
		return geom.Vec{}, false
	}
	s := r2.Dot(r2.Sub(raw, through), dir)
	if math.Abs(s) < geom.Epsilon {
		// The helper may not collapse onto the through point.
		return geom.Vec{}, false
	}
	meta.HelperDistance = math.Abs(s)
	meta.HelperOrientation = math.Copysign(1, s)
	return helperPos(through, dir, meta), true
}

// axisSnap pulls a free point toward the horizontal or vertical through
// the other defining point of one of its lines, when the line is within
// the snap angle of that axis. The pull eases in quadratically once the
// closeness passes the blend threshold. With full set the point is moved
// all the way onto the axis if any pull applies.
func (e *Engine) axisSnap(p *document.Point, pos, delta geom.Vec, full bool) geom.Vec {
	if !full && r2.Norm(delta) < geom.Epsilon {
		return pos
	}
	threshold := e.opts.SnapAngleDegrees * math.Pi / 180
	if threshold <= 0 {
		return pos
	}

	best := SnapIndicator{}
	bestAngle := math.Inf(1)
	for _, l := range e.scene.LinesDefinedBy(p.ID) {
		if l.Parallel != nil || l.Perpendicular != nil {
			continue
		}
		partnerID := l.Defining[0]
		if partnerID == p.ID {
			partnerID = l.Defining[1]
		}
		partner, ok := e.scene.Pos(partnerID)
		if !ok {
			continue
		}
		v := r2.Sub(pos, partner)
		if r2.Norm(v) < geom.Epsilon {
			continue
		}
		// Angle to the horizontal and to the vertical, folded into [0, π/2].
		h := math.Atan2(math.Abs(v.Y), math.Abs(v.X))
		axis, angle, value := AxisHorizontal, h, partner.Y
		if math.Pi/2-h < h {
			axis, angle, value = AxisVertical, math.Pi/2-h, partner.X
		}
		if angle >= threshold || angle >= bestAngle {
			continue
		}
		bestAngle = angle
		best = SnapIndicator{Active: true, Axis: axis, LineID: l.ID, Value: value}
	}
	if !best.Active {
		return pos
	}

	weight := 1.0
	if !full {
		closeness := 1 - bestAngle/threshold
		t := 1.0
		if e.opts.SnapBlendThreshold > 0 {
			t = math.Min(1, closeness/e.opts.SnapBlendThreshold)
		}
		weight = t * t
	}
	best.Strength = weight
	e.snap = best

	switch {
	case best.Axis == AxisHorizontal && weight >= 1:
		pos.Y = best.Value
	case best.Axis == AxisHorizontal:
		pos.Y += (best.Value - pos.Y) * weight
	case weight >= 1:
		pos.X = best.Value
	default:
		pos.X += (best.Value - pos.X) * weight
	}
	return pos
}

// EndDrag commits the drag. A pending axis snap is applied at full
// strength, the indicator is cleared and one checkpoint is recorded.
func (e *Engine) EndDrag() error {
	d := e.drag
	if d == nil {
		return ErrNoDrag
	}
	if e.snap.Active && d.target.Kind == document.RefPoint {
		if p := e.scene.Point(d.target.ID); p != nil && e.freeMover(p) {
			cur := geom.V(p.X, p.Y)
			shift := r2.Sub(e.axisSnap(p, cur, geom.Vec{}, true), cur)
			targets := make(map[string]geom.Vec, len(d.moving))
			for _, id := range d.moving {
				if q := e.scene.Point(id); q != nil {
					targets[id] = r2.Add(geom.V(q.X, q.Y), shift)
				}
			}
			e.moveRigid(d.moving, targets)
		}
	}
	e.drag = nil
	e.snap = SnapIndicator{}
	e.checkpoint()
	e.log.Debug("drag ended", "kind", d.target.Kind, "id", d.target.ID)
	return nil
}

// CancelDrag puts every moved point back where the drag found it.
func (e *Engine) CancelDrag() error {
	d := e.drag
	if d == nil {
		return ErrNoDrag
	}
	for lineID, meta := range d.helpers {
		l := e.scene.Line(lineID)
		if l == nil {
			continue
		}
		if cur := directedMeta(l, l.Perpendicular != nil); cur != nil {
			*cur = meta
		}
	}
	for _, id := range d.moving {
		if p := e.scene.Point(id); p != nil {
			p.Param = d.params[id]
		}
	}
	e.moveRigid(d.moving, d.original)
	e.drag = nil
	e.snap = SnapIndicator{}
	return nil
}
