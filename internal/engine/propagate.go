package engine

import (
	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/geom"
)

// Every entry point in this file is idempotent: calling it twice in a row
// leaves the scene exactly as one call would. Degenerate results never
// delete anything; they keep the dependent's last position and set its
// Hidden flag until a later pass can solve it again.

// UpdateIntersectionsForLine re-solves every intersection point that has
// the line as a parent.
func (e *Engine) UpdateIntersectionsForLine(lineID string) {
	e.updateIntersections(document.LineRef(lineID), 0)
}

// UpdateIntersectionsForCircle re-solves every intersection point that has
// the circle as a parent.
func (e *Engine) UpdateIntersectionsForCircle(circleID string) {
	e.updateIntersections(document.CircleRef(circleID), 0)
}

// UpdateMidpointsForPoint re-evaluates the midpoints and symmetric points
// that reference the point.
func (e *Engine) UpdateMidpointsForPoint(pointID string) {
	e.updateMidpointsForPoint(pointID, 0)
}

// UpdateParallelLinesForLine re-derives every line parallel to lineID.
func (e *Engine) UpdateParallelLinesForLine(lineID string) {
	e.updateDirectedForLine(lineID, false, 0)
}

// UpdateParallelLinesForPoint re-derives every parallel line through pointID.
func (e *Engine) UpdateParallelLinesForPoint(pointID string) {
	e.updateDirectedForPoint(pointID, false, 0)
}

// UpdatePerpendicularLinesForLine re-derives every line perpendicular to lineID.
func (e *Engine) UpdatePerpendicularLinesForLine(lineID string) {
	e.updateDirectedForLine(lineID, true, 0)
}

// UpdatePerpendicularLinesForPoint re-derives every perpendicular line
// through pointID.
func (e *Engine) UpdatePerpendicularLinesForPoint(pointID string) {
	e.updateDirectedForPoint(pointID, true, 0)
}

// PropagateFromPoint recomputes everything downstream of a point whose
// position was changed directly.
func (e *Engine) PropagateFromPoint(pointID string) {
	e.propagatePoint(pointID, 0)
}

// --- Cascade ---

func (e *Engine) tooDeep(depth int) bool {
	if depth > e.opts.MaxDepth {
		e.log.Warn("propagation depth limit reached", "depth", depth)
		return true
	}
	return false
}

// movePoint sets a point's position, clears its hidden flag and, while
// cascading, propagates to its dependents.
func (e *Engine) movePoint(p *document.Point, pos geom.Vec, depth int) {
	unchanged := !p.Hidden && p.X == pos.X && p.Y == pos.Y
	p.X, p.Y = pos.X, pos.Y
	p.Hidden = false
	for _, r := range p.Parents {
		if r.Kind == document.RefLine {
			if l := e.scene.Line(r.ID); l != nil {
				e.sortLinePoints(l)
			}
		}
	}
	if unchanged || !e.cascade {
		return
	}
	e.propagatePoint(p.ID, depth+1)
}

// hidePoint marks a point unsolvable, keeping its last position, and
// cascades so that everything built on it hides too.
func (e *Engine) hidePoint(p *document.Point, depth int) {
	if p.Hidden {
		return
	}
	p.Hidden = true
	if e.cascade {
		e.propagatePoint(p.ID, depth+1)
	}
}

// visiblePos returns the position of a point that can be built on. A
// hidden point has no reliable position.
func (e *Engine) visiblePos(id string) (geom.Vec, bool) {
	p := e.scene.Point(id)
	if p == nil || p.Hidden {
		return geom.Vec{}, false
	}
	return geom.V(p.X, p.Y), true
}

// visibleEnds is LineEnds restricted to visible, distinct defining points.
func (e *Engine) visibleEnds(l *document.Line) (geom.Vec, geom.Vec, bool) {
	a, okA := e.visiblePos(l.Defining[0])
	b, okB := e.visiblePos(l.Defining[1])
	return a, b, okA && okB && geom.Dist(a, b) >= geom.Epsilon
}

func (e *Engine) propagatePoint(pointID string, depth int) {
	if e.tooDeep(depth) || e.pointsInProgress[pointID] {
		return
	}
	if e.scene.Point(pointID) == nil {
		return
	}
	e.pointsInProgress[pointID] = true
	defer delete(e.pointsInProgress, pointID)

	// Helpers first, so the directed lines are whole again before the
	// lines defined by this point are refreshed.
	e.updateDirectedForPoint(pointID, false, depth)
	e.updateDirectedForPoint(pointID, true, depth)

	for _, l := range e.scene.LinesDefinedBy(pointID) {
		e.refreshLine(l, depth)
	}
	for _, c := range e.scene.CirclesDefinedBy(pointID) {
		e.refreshCircle(c, depth)
	}
	e.updateMidpointsForPoint(pointID, depth)
}

// refreshLine reacts to a change of a line's defining points.
func (e *Engine) refreshLine(l *document.Line, depth int) {
	if e.tooDeep(depth) {
		return
	}
	if _, _, ok := e.visibleEnds(l); !ok {
		e.hideLine(l, depth)
		return
	}
	l.Hidden = false
	ref := document.LineRef(l.ID)

	for _, p := range e.scene.PointsWithParent(ref) {
		if p.Kind != document.KindOnObject {
			continue
		}
		if pos, ok := e.ridePos(p); ok {
			e.movePoint(p, pos, depth)
		}
	}
	e.updateIntersections(ref, depth)
	e.updateSymmetricForLine(l.ID, depth)
	e.updateDirectedForLine(l.ID, false, depth)
	e.updateDirectedForLine(l.ID, true, depth)
	e.sortLinePoints(l)
}

// hideLine hides a line that cannot be solved together with its riders,
// intersections, reflections across it and the lines directed by it. All
// of them keep their last position.
func (e *Engine) hideLine(l *document.Line, depth int) {
	l.Hidden = true
	ref := document.LineRef(l.ID)
	for _, p := range e.scene.PointsWithParent(ref) {
		if p.Kind == document.KindOnObject {
			e.hidePoint(p, depth)
		}
	}
	e.updateIntersections(ref, depth)
	e.updateSymmetricForLine(l.ID, depth)
	e.updateDirectedForLine(l.ID, false, depth)
	e.updateDirectedForLine(l.ID, true, depth)
}

// refreshCircle recomputes a circle's cached center and radius and moves
// everything riding on it.
func (e *Engine) refreshCircle(c *document.Circle, depth int) {
	if e.tooDeep(depth) {
		return
	}
	ref := document.CircleRef(c.ID)
	if !e.solveCircle(c) {
		for _, p := range e.scene.PointsWithParent(ref) {
			if p.Kind == document.KindOnObject {
				e.hidePoint(p, depth)
			}
		}
		e.updateIntersections(ref, depth)
		return
	}
	for _, p := range e.scene.PointsWithParent(ref) {
		if p.Kind != document.KindOnObject {
			continue
		}
		if pos, ok := e.ridePos(p); ok {
			e.movePoint(p, pos, depth)
		}
	}
	e.updateIntersections(ref, depth)
}

// solveCircle updates the cached geometry of a circle from its defining
// points. It reports false and hides the circle when they are degenerate.
func (e *Engine) solveCircle(c *document.Circle) bool {
	var center geom.Vec
	var radius float64
	switch c.Kind {
	case document.CircleThreePoint:
		var pos [3]geom.Vec
		for i, id := range c.Defining {
			p, ok := e.visiblePos(id)
			if !ok {
				c.Hidden = true
				return false
			}
			pos[i] = p
		}
		ctr, ok := geom.CircleFromThree(pos[0], pos[1], pos[2])
		if !ok {
			c.Hidden = true
			return false
		}
		center, radius = ctr, geom.Dist(ctr, pos[0])
	default:
		ctr, ok1 := e.visiblePos(c.Center)
		rp, ok2 := e.visiblePos(c.RadiusPoint)
		if !ok1 || !ok2 {
			c.Hidden = true
			return false
		}
		center, radius = ctr, geom.Dist(ctr, rp)
	}
	if radius < geom.Epsilon {
		c.Hidden = true
		return false
	}
	c.CX, c.CY, c.Radius = center.X, center.Y, radius
	c.Hidden = false
	return true
}

// ridePos returns where an on_object point sits on its parent for its
// stored parameter. A point without a parameter gets one from its current
// position.
func (e *Engine) ridePos(p *document.Point) (geom.Vec, bool) {
	if len(p.Parents) != 1 {
		return geom.Vec{}, false
	}
	ref := p.Parents[0]
	switch ref.Kind {
	case document.RefLine:
		a, b, ok := e.lineGeom(ref.ID)
		if !ok {
			return geom.Vec{}, false
		}
		if p.Param == nil {
			t := geom.LineParam(geom.V(p.X, p.Y), a, b)
			p.Param = &t
		}
		return geom.PointAt(a, b, *p.Param), true
	case document.RefCircle:
		c, r, ok := e.circleGeom(ref.ID)
		if !ok {
			return geom.Vec{}, false
		}
		if p.Param == nil {
			th := geom.Angle(geom.V(p.X, p.Y), c)
			p.Param = &th
		}
		return geom.OnCircle(c, r, *p.Param), true
	}
	return geom.Vec{}, false
}

// --- Intersections ---

// updateIntersections re-solves every intersection point with ref as a
// parent, one sibling group per partner object. Roots are handed to the
// existing siblings by minimum total displacement so that two visible
// intersection points never trade places while their parents move.
func (e *Engine) updateIntersections(ref document.Ref, depth int) {
	var partners []document.Ref
	seen := make(map[document.Ref]bool)
	for _, p := range e.scene.PointsWithParent(ref) {
		if p.Kind != document.KindIntersection || len(p.Parents) != 2 {
			continue
		}
		other := p.Parents[0]
		if other == ref {
			other = p.Parents[1]
		}
		if !seen[other] {
			seen[other] = true
			partners = append(partners, other)
		}
	}
	for _, other := range partners {
		e.solveSiblings(ref, other, depth)
	}
}

func (e *Engine) solveSiblings(a, b document.Ref, depth int) {
	siblings := e.siblings(a, b)
	if len(siblings) == 0 {
		return
	}
	roots := e.solvePair(a, b)
	prev := make([]geom.Vec, len(siblings))
	for i, s := range siblings {
		prev[i] = geom.V(s.X, s.Y)
	}
	assign := geom.AssignRoots(prev, roots)
	for i, s := range siblings {
		if assign[i] < 0 {
			if !s.Hidden {
				e.log.Debug("intersection unsolvable", "id", s.ID)
			}
			e.hidePoint(s, depth)
			continue
		}
		e.movePoint(s, roots[assign[i]], depth)
	}
}

// --- Midpoints and reflections ---

func (e *Engine) updateMidpointsForPoint(pointID string, depth int) {
	for _, p := range e.scene.Points {
		switch {
		case p.Midpoint != nil && (p.Midpoint.Parents[0] == pointID || p.Midpoint.Parents[1] == pointID):
		case p.Symmetric != nil && (p.Symmetric.Source == pointID ||
			(p.Symmetric.Mirror.Kind == document.RefPoint && p.Symmetric.Mirror.ID == pointID)):
		default:
			continue
		}
		e.recomputeDerived(p, depth)
	}
}

func (e *Engine) updateSymmetricForLine(lineID string, depth int) {
	mirror := document.LineRef(lineID)
	for _, p := range e.scene.Points {
		if p.Symmetric != nil && p.Symmetric.Mirror == mirror {
			e.recomputeDerived(p, depth)
		}
	}
}

// recomputeDerived places a midpoint or symmetric point from its metadata.
func (e *Engine) recomputeDerived(p *document.Point, depth int) {
	var pos geom.Vec
	var ok bool
	switch {
	case p.Midpoint != nil:
		a, okA := e.visiblePos(p.Midpoint.Parents[0])
		b, okB := e.visiblePos(p.Midpoint.Parents[1])
		pos, ok = geom.Midpoint(a, b), okA && okB
	case p.Symmetric != nil:
		pos, ok = e.symmetricPos(p.Symmetric)
	default:
		return
	}
	if !ok {
		e.hidePoint(p, depth)
		return
	}
	e.movePoint(p, pos, depth)
}

func (e *Engine) symmetricPos(info *document.SymmetricInfo) (geom.Vec, bool) {
	src, ok := e.visiblePos(info.Source)
	if !ok {
		return geom.Vec{}, false
	}
	switch info.Mirror.Kind {
	case document.RefPoint:
		m, ok := e.visiblePos(info.Mirror.ID)
		if !ok {
			return geom.Vec{}, false
		}
		return geom.ReflectPoint(src, m), true
	case document.RefLine:
		l := e.scene.Line(info.Mirror.ID)
		if l == nil || l.Hidden {
			return geom.Vec{}, false
		}
		a, b, ok := e.visibleEnds(l)
		if !ok {
			return geom.Vec{}, false
		}
		return geom.ReflectAcrossLine(src, a, b)
	}
	return geom.Vec{}, false
}

// --- Parallel and perpendicular lines ---

func directedMeta(l *document.Line, perpendicular bool) *document.Directed {
	if perpendicular {
		return l.Perpendicular
	}
	return l.Parallel
}

func (e *Engine) updateDirectedForLine(refID string, perpendicular bool, depth int) {
	for _, l := range e.scene.Lines {
		if m := directedMeta(l, perpendicular); m != nil && m.ReferenceLine == refID {
			e.recomputeDirectedLine(l, perpendicular, depth)
		}
	}
}

func (e *Engine) updateDirectedForPoint(pointID string, perpendicular bool, depth int) {
	for _, l := range e.scene.Lines {
		if m := directedMeta(l, perpendicular); m != nil && m.ThroughPoint == pointID {
			e.recomputeDirectedLine(l, perpendicular, depth)
		}
	}
}

// recomputeDirectedLine moves the helper of a parallel or perpendicular
// line so the line follows its reference direction. The stored signed
// distance and orientation are reused as is, so the helper stays on the
// same side of the through point whatever the through point does.
//
// The line is pushed onto the in-progress set of its kind for the
// duration of the call and skipped on re-entry; this is the only thing
// that stops two lines defined through each other's helpers from
// recursing forever, and in that topology the inner line keeps the state
// it had when the outer recompute started.
func (e *Engine) recomputeDirectedLine(l *document.Line, perpendicular bool, depth int) {
	guard := e.parallelInProgress
	if perpendicular {
		guard = e.perpendicularInProgress
	}
	if guard[l.ID] || e.tooDeep(depth) {
		return
	}
	guard[l.ID] = true
	defer delete(guard, l.ID)

	meta := directedMeta(l, perpendicular)
	pos, ok := e.directedHelperPos(meta, perpendicular)
	if !ok {
		if !l.Hidden {
			e.hideLine(l, depth)
		}
		return
	}
	helper := e.scene.Point(meta.HelperPoint)
	if helper == nil {
		return
	}
	wasHidden := l.Hidden
	l.Hidden = false
	e.movePoint(helper, pos, depth)
	if wasHidden && e.cascade {
		// The helper may not have moved, so nothing else would bring
		// the line's dependents back.
		e.refreshLine(l, depth+1)
	}
}

func (e *Engine) directedHelperPos(meta *document.Directed, perpendicular bool) (geom.Vec, bool) {
	through, ok := e.visiblePos(meta.ThroughPoint)
	if !ok {
		return geom.Vec{}, false
	}
	ref := e.scene.Line(meta.ReferenceLine)
	if ref == nil || ref.Hidden {
		return geom.Vec{}, false
	}
	a, b, ok := e.visibleEnds(ref)
	if !ok {
		return geom.Vec{}, false
	}
	dir, ok := geom.Direction(a, b)
	if !ok {
		return geom.Vec{}, false
	}
	if perpendicular {
		dir = geom.Perp(dir)
	}
	return helperPos(through, dir, meta), true
}

// directedDir returns the current unit direction of a parallel or
// perpendicular line, as its reference line dictates.
func (e *Engine) directedDir(l *document.Line) (geom.Vec, *document.Directed, bool) {
	perpendicular := l.Perpendicular != nil
	meta := directedMeta(l, perpendicular)
	if meta == nil {
		return geom.Vec{}, nil, false
	}
	ref := e.scene.Line(meta.ReferenceLine)
	if ref == nil || ref.Hidden {
		return geom.Vec{}, nil, false
	}
	a, b, ok := e.visibleEnds(ref)
	if !ok {
		return geom.Vec{}, nil, false
	}
	dir, ok := geom.Direction(a, b)
	if !ok {
		return geom.Vec{}, nil, false
	}
	if perpendicular {
		dir = geom.Perp(dir)
	}
	return dir, meta, true
}

// --- Full recompute ---

// RecomputeAll brings every derived object up to date. Objects are
// visited in dependency order; if the dependency graph has a cycle the
// guarded cascade from every free point is used instead.
func (e *Engine) RecomputeAll() {
	order, err := DependencyOrder(e.scene)
	if err != nil {
		e.log.Warn("dependency cycle, falling back to cascade", "error", err)
		for _, c := range e.scene.Circles {
			e.solveCircle(c)
		}
		for _, p := range append([]*document.Point(nil), e.scene.Points...) {
			if p.Kind == document.KindFree && !p.IsHelper() {
				e.propagatePoint(p.ID, 0)
			}
		}
		return
	}

	e.cascade = false
	defer func() { e.cascade = true }()

	solved := make(map[[2]document.Ref]bool)
	for _, ref := range order {
		switch ref.Kind {
		case document.RefLine:
			if l := e.scene.Line(ref.ID); l != nil {
				_, _, ok := e.visibleEnds(l)
				l.Hidden = !ok
				if l.Parallel != nil || l.Perpendicular != nil {
					if _, _, ok := e.directedDir(l); !ok {
						l.Hidden = true
					}
				}
				e.sortLinePoints(l)
			}
		case document.RefCircle:
			if c := e.scene.Circle(ref.ID); c != nil {
				e.solveCircle(c)
			}
		case document.RefPoint:
			if p := e.scene.Point(ref.ID); p != nil {
				e.recomputePoint(p, solved)
			}
		}
	}
}

// recomputePoint places one point from its construction without
// cascading to dependents.
func (e *Engine) recomputePoint(p *document.Point, solved map[[2]document.Ref]bool) {
	switch {
	case p.IsHelper():
		lineID := p.ParallelHelperFor
		perpendicular := false
		if lineID == "" {
			lineID, perpendicular = p.PerpendicularHelperFor, true
		}
		l := e.scene.Line(lineID)
		if l == nil || directedMeta(l, perpendicular) == nil {
			return
		}
		if pos, ok := e.directedHelperPos(directedMeta(l, perpendicular), perpendicular); ok {
			e.movePoint(p, pos, 0)
		} else {
			l.Hidden = true
		}
	case p.Kind == document.KindOnObject:
		if pos, ok := e.ridePos(p); ok {
			e.movePoint(p, pos, 0)
		} else {
			e.hidePoint(p, 0)
		}
	case p.Kind == document.KindIntersection && len(p.Parents) == 2:
		key := [2]document.Ref{p.Parents[0], p.Parents[1]}
		if key[0].Kind > key[1].Kind || (key[0].Kind == key[1].Kind && key[0].ID > key[1].ID) {
			key[0], key[1] = key[1], key[0]
		}
		if solved[key] {
			return
		}
		solved[key] = true
		e.solveSiblings(key[0], key[1], 0)
	case p.Kind == document.KindMidpoint, p.Kind == document.KindSymmetric:
		e.recomputeDerived(p, 0)
	}
}
