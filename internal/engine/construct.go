package engine

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/geom"
	"github.com/inamate/geoconstruct/internal/typeid"
)

// --- Labels ---

func pointLabel(n int) string {
	letter := string(rune('A' + (n-1)%26))
	if n <= 26 {
		return letter
	}
	return letter + strconv.Itoa((n-1)/26)
}

func lineLabel(n int) string {
	letter := string(rune('a' + (n-1)%26))
	if n <= 26 {
		return letter
	}
	return letter + strconv.Itoa((n-1)/26)
}

var greek = []rune("αβγδεζηθικλμνξοπρστυφχψω")

func angleLabel(n int) string {
	g := string(greek[(n-1)%len(greek)])
	if n <= len(greek) {
		return g
	}
	return g + strconv.Itoa((n-1)/len(greek))
}

// --- Entity factories ---

// newPoint and newLine fail only when the id generator hands out an id
// that is already in use, for example one that came in with a loaded
// document.
func (e *Engine) newPoint(pos geom.Vec, style document.Style, kind document.ConstructionKind) (*document.Point, error) {
	e.scene.Counters.Points++
	p := &document.Point{
		ID:    e.newID(typeid.PrefixPoint),
		Label: pointLabel(e.scene.Counters.Points),
		X:     pos.X,
		Y:     pos.Y,
		Style: style,
		Kind:  kind,
	}
	if err := e.scene.AddPoint(p); err != nil {
		e.scene.Counters.Points--
		return nil, fmt.Errorf("add point: %w", err)
	}
	return p, nil
}

func (e *Engine) newLine(id string, a, b string, style document.Style) (*document.Line, error) {
	e.scene.Counters.Lines++
	l := &document.Line{
		ID:       id,
		Label:    lineLabel(e.scene.Counters.Lines),
		Points:   []string{a, b},
		Defining: [2]string{a, b},
		Style:    style,
	}
	if err := e.scene.AddLine(l); err != nil {
		e.scene.Counters.Lines--
		return nil, fmt.Errorf("add line: %w", err)
	}
	e.scene.LinkChild(a, l.ID)
	e.scene.LinkChild(b, l.ID)
	return l, nil
}

// --- Free points and base objects ---

// AddPoint places a free point.
func (e *Engine) AddPoint(pos geom.Vec, style document.Style) (string, error) {
	p, err := e.newPoint(pos, style, document.KindFree)
	if err != nil {
		return "", err
	}
	e.log.Debug("point added", "id", p.ID, "x", pos.X, "y", pos.Y)
	return p.ID, nil
}

// AddPointOn places a point constrained to a line or circle, projected
// from pos onto the object.
func (e *Engine) AddPointOn(ref document.Ref, pos geom.Vec, style document.Style) (string, error) {
	placed, param, err := e.placeOn(ref, pos)
	if err != nil {
		return "", err
	}
	p, err := e.newPoint(placed, style, document.KindOnObject)
	if err != nil {
		return "", err
	}
	p.Parents = []document.Ref{ref}
	p.Param = &param
	e.addToObject(ref, p.ID)
	return p.ID, nil
}

// placeOn projects pos onto a line or circle and returns the ride
// parameter for that position.
func (e *Engine) placeOn(ref document.Ref, pos geom.Vec) (geom.Vec, float64, error) {
	switch ref.Kind {
	case document.RefLine:
		l := e.scene.Line(ref.ID)
		if l == nil {
			return geom.Vec{}, 0, fmt.Errorf("line %s: %w", ref.ID, ErrNotFound)
		}
		a, b, ok := e.scene.LineEnds(l)
		if l.Hidden || !ok || geom.Dist(a, b) < geom.Epsilon {
			return geom.Vec{}, 0, fmt.Errorf("line %s: %w", ref.ID, ErrDegenerate)
		}
		t := geom.LineParam(pos, a, b)
		return geom.PointAt(a, b, t), t, nil
	case document.RefCircle:
		c := e.scene.Circle(ref.ID)
		if c == nil {
			return geom.Vec{}, 0, fmt.Errorf("circle %s: %w", ref.ID, ErrNotFound)
		}
		if c.Hidden || c.Radius < geom.Epsilon {
			return geom.Vec{}, 0, fmt.Errorf("circle %s: %w", ref.ID, ErrDegenerate)
		}
		center := geom.V(c.CX, c.CY)
		placed := geom.ProjectOntoCircle(pos, center, c.Radius)
		return placed, geom.Angle(placed, center), nil
	default:
		return geom.Vec{}, 0, fmt.Errorf("place on %s: %w", ref.Kind, ErrInvalidRef)
	}
}

// addToObject records a point as lying on a line or circle.
func (e *Engine) addToObject(ref document.Ref, pointID string) {
	switch ref.Kind {
	case document.RefLine:
		if l := e.scene.Line(ref.ID); l != nil {
			e.insertPointOnLine(l, pointID)
		}
	case document.RefCircle:
		if c := e.scene.Circle(ref.ID); c != nil && !contains(c.Perimeter, pointID) {
			c.Perimeter = append(c.Perimeter, pointID)
		}
	}
}

func (e *Engine) insertPointOnLine(l *document.Line, pointID string) {
	if !contains(l.Points, pointID) {
		l.Points = append(l.Points, pointID)
	}
	e.sortLinePoints(l)
}

// sortLinePoints orders a line's points by their projection along the
// direction of its defining points.
func (e *Engine) sortLinePoints(l *document.Line) {
	a, b, ok := e.scene.LineEnds(l)
	if !ok || geom.Dist(a, b) < geom.Epsilon {
		return
	}
	params := make(map[string]float64, len(l.Points))
	for _, id := range l.Points {
		if p, ok := e.scene.Pos(id); ok {
			params[id] = geom.LineParam(p, a, b)
		}
	}
	sort.SliceStable(l.Points, func(i, j int) bool {
		return params[l.Points[i]] < params[l.Points[j]]
	})
}

// AddLine creates the line through two existing points. Asking for a line
// that already joins the same two points returns the existing one.
func (e *Engine) AddLine(a, b string, style document.Style) (string, error) {
	pa, ok := e.scene.Pos(a)
	if !ok {
		return "", fmt.Errorf("point %s: %w", a, ErrNotFound)
	}
	pb, ok := e.scene.Pos(b)
	if !ok {
		return "", fmt.Errorf("point %s: %w", b, ErrNotFound)
	}
	if a == b || geom.Dist(pa, pb) < geom.Epsilon {
		return "", fmt.Errorf("line %s-%s: %w", a, b, ErrDegenerate)
	}
	if existing := e.scene.LineBetween(a, b); existing != nil {
		return existing.ID, nil
	}
	l, err := e.newLine(e.newID(typeid.PrefixLine), a, b, style)
	if err != nil {
		return "", err
	}
	e.sortLinePoints(l)
	e.log.Debug("line added", "id", l.ID, "from", a, "to", b)
	return l.ID, nil
}

// AddCircle creates a circle from a center point and a point on its
// perimeter.
func (e *Engine) AddCircle(center, radiusPoint string, style document.Style) (string, error) {
	c0, ok := e.scene.Pos(center)
	if !ok {
		return "", fmt.Errorf("point %s: %w", center, ErrNotFound)
	}
	r0, ok := e.scene.Pos(radiusPoint)
	if !ok {
		return "", fmt.Errorf("point %s: %w", radiusPoint, ErrNotFound)
	}
	radius := geom.Dist(c0, r0)
	if center == radiusPoint || radius < geom.Epsilon {
		return "", fmt.Errorf("circle around %s: %w", center, ErrDegenerate)
	}

	e.scene.Counters.Circles++
	c := &document.Circle{
		ID:          e.newID(typeid.PrefixCircle),
		Label:       "c" + strconv.Itoa(e.scene.Counters.Circles),
		Kind:        document.CircleCenterRadius,
		Center:      center,
		RadiusPoint: radiusPoint,
		Perimeter:   []string{radiusPoint},
		CX:          c0.X,
		CY:          c0.Y,
		Radius:      radius,
		Style:       style,
	}
	if err := e.scene.AddCircle(c); err != nil {
		return "", err
	}
	e.scene.LinkChild(center, c.ID)
	e.scene.LinkChild(radiusPoint, c.ID)
	return c.ID, nil
}

// AddCircleThreePoints creates the circle through three points.
func (e *Engine) AddCircleThreePoints(a, b, c string, style document.Style) (string, error) {
	ids := [3]string{a, b, c}
	var pos [3]geom.Vec
	for i, id := range ids {
		p, ok := e.scene.Pos(id)
		if !ok {
			return "", fmt.Errorf("point %s: %w", id, ErrNotFound)
		}
		pos[i] = p
	}
	center, ok := geom.CircleFromThree(pos[0], pos[1], pos[2])
	if !ok || a == b || b == c || a == c {
		return "", fmt.Errorf("circle through %s, %s, %s: %w", a, b, c, ErrDegenerate)
	}
	radius := geom.Dist(center, pos[0])
	if radius < geom.Epsilon {
		return "", fmt.Errorf("circle through %s, %s, %s: %w", a, b, c, ErrDegenerate)
	}

	e.scene.Counters.Circles++
	circ := &document.Circle{
		ID:        e.newID(typeid.PrefixCircle),
		Label:     "c" + strconv.Itoa(e.scene.Counters.Circles),
		Kind:      document.CircleThreePoint,
		Defining:  ids,
		Perimeter: []string{a, b, c},
		CX:        center.X,
		CY:        center.Y,
		Radius:    radius,
		Style:     style,
	}
	if err := e.scene.AddCircle(circ); err != nil {
		return "", err
	}
	for _, id := range ids {
		e.scene.LinkChild(id, circ.ID)
	}
	return circ.ID, nil
}

// AddAngle marks the angle at vertex between two legs. The vertex must
// lie on both leg lines.
func (e *Engine) AddAngle(vertex string, legs [2]document.Leg, style document.Style) (string, error) {
	if e.scene.Point(vertex) == nil {
		return "", fmt.Errorf("point %s: %w", vertex, ErrNotFound)
	}
	for _, leg := range legs {
		l := e.scene.Line(leg.Line)
		if l == nil {
			return "", fmt.Errorf("line %s: %w", leg.Line, ErrNotFound)
		}
		if !contains(l.Points, vertex) {
			return "", fmt.Errorf("vertex %s not on line %s: %w", vertex, leg.Line, ErrInvalidRef)
		}
		if leg.SegmentIndex < 0 || leg.SegmentIndex >= len(l.Points)-1 {
			return "", fmt.Errorf("segment %d of line %s: %w", leg.SegmentIndex, leg.Line, ErrInvalidRef)
		}
	}
	if legs[0].Line == legs[1].Line && legs[0].SegmentIndex == legs[1].SegmentIndex {
		return "", fmt.Errorf("angle at %s: %w", vertex, ErrDegenerate)
	}

	e.scene.Counters.Angles++
	a := &document.Angle{
		ID:     e.newID(typeid.PrefixAngle),
		Label:  angleLabel(e.scene.Counters.Angles),
		Vertex: vertex,
		Legs:   legs,
		Style:  style,
	}
	if err := e.scene.AddAngle(a); err != nil {
		return "", err
	}
	e.scene.LinkChild(vertex, a.ID)
	return a.ID, nil
}

// AddPolygon closes a loop through the given vertices, reusing existing
// lines between consecutive vertices. Every edge is checked before any
// line is created.
func (e *Engine) AddPolygon(vertices []string, style document.Style) (string, error) {
	if len(vertices) < 3 {
		return "", fmt.Errorf("polygon with %d vertices: %w", len(vertices), ErrDegenerate)
	}
	seen := make(map[string]bool, len(vertices))
	for i, id := range vertices {
		if seen[id] {
			return "", fmt.Errorf("polygon repeats vertex %s: %w", id, ErrDegenerate)
		}
		seen[id] = true
		a, ok := e.scene.Pos(id)
		if !ok {
			return "", fmt.Errorf("point %s: %w", id, ErrNotFound)
		}
		b, _ := e.scene.Pos(vertices[(i+1)%len(vertices)])
		if geom.Dist(a, b) < geom.Epsilon {
			return "", fmt.Errorf("polygon edge at %s: %w", id, ErrDegenerate)
		}
	}

	lines := make([]string, 0, len(vertices))
	for i, id := range vertices {
		lid, err := e.AddLine(id, vertices[(i+1)%len(vertices)], style)
		if err != nil {
			return "", err
		}
		lines = append(lines, lid)
	}

	e.scene.Counters.Polygons++
	poly := &document.Polygon{
		ID:       e.newID(typeid.PrefixPolygon),
		Label:    "poly" + strconv.Itoa(e.scene.Counters.Polygons),
		Lines:    lines,
		Vertices: append([]string(nil), vertices...),
		Style:    style,
	}
	if err := e.scene.AddPolygon(poly); err != nil {
		return "", err
	}
	return poly.ID, nil
}

// --- Intersections ---

// canonicalPair validates two line/circle references and orders them so
// that (a, b) and (b, a) describe the same intersection.
func (e *Engine) canonicalPair(a, b document.Ref) (document.Ref, document.Ref, error) {
	for _, r := range []document.Ref{a, b} {
		if r.Kind != document.RefLine && r.Kind != document.RefCircle {
			return a, b, fmt.Errorf("intersect %s: %w", r.Kind, ErrInvalidRef)
		}
		if !e.scene.Exists(r) {
			return a, b, fmt.Errorf("%s %s: %w", r.Kind, r.ID, ErrNotFound)
		}
	}
	if a == b {
		return a, b, fmt.Errorf("intersect %s with itself: %w", a.ID, ErrInvalidRef)
	}
	if a.Kind > b.Kind || (a.Kind == b.Kind && a.ID > b.ID) {
		a, b = b, a
	}
	return a, b, nil
}

// Intersect creates intersection points for every current root of the two
// objects. Roots already represented by an existing intersection point of
// the same pair are not duplicated. The ids of all intersection points of
// the pair are returned.
func (e *Engine) Intersect(a, b document.Ref, style document.Style) ([]string, error) {
	a, b, err := e.canonicalPair(a, b)
	if err != nil {
		return nil, err
	}
	roots := e.solvePair(a, b)
	if len(roots) == 0 {
		return nil, fmt.Errorf("intersect %s and %s: %w", a.ID, b.ID, ErrNoIntersection)
	}

	siblings := e.siblings(a, b)
	var ids []string
	for _, s := range siblings {
		ids = append(ids, s.ID)
	}
	for _, r := range roots {
		dup := false
		for _, s := range siblings {
			if geom.Dist(geom.V(s.X, s.Y), r) < 1e-6 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		p, err := e.newPoint(r, style, document.KindIntersection)
		if err != nil {
			return ids, err
		}
		p.Parents = []document.Ref{a, b}
		e.addToObject(a, p.ID)
		e.addToObject(b, p.ID)
		ids = append(ids, p.ID)
		e.log.Debug("intersection added", "id", p.ID, "a", a.ID, "b", b.ID)
	}
	return ids, nil
}

// siblings returns the intersection points whose parents are exactly the
// pair (a, b), in store order.
func (e *Engine) siblings(a, b document.Ref) []*document.Point {
	var out []*document.Point
	for _, p := range e.scene.Points {
		if p.Kind == document.KindIntersection && len(p.Parents) == 2 && p.HasParent(a) && p.HasParent(b) {
			out = append(out, p)
		}
	}
	return out
}

// solvePair returns the current intersection roots of two objects. A
// hidden or degenerate parent has no roots.
func (e *Engine) solvePair(a, b document.Ref) []geom.Vec {
	if a.Kind == document.RefCircle && b.Kind == document.RefLine {
		a, b = b, a
	}
	switch {
	case a.Kind == document.RefLine && b.Kind == document.RefLine:
		a1, a2, okA := e.lineGeom(a.ID)
		b1, b2, okB := e.lineGeom(b.ID)
		if !okA || !okB {
			return nil
		}
		if p, ok := geom.IntersectLines(a1, a2, b1, b2); ok {
			return []geom.Vec{p}
		}
		return nil
	case a.Kind == document.RefLine && b.Kind == document.RefCircle:
		a1, a2, okA := e.lineGeom(a.ID)
		c, r, okC := e.circleGeom(b.ID)
		if !okA || !okC {
			return nil
		}
		return geom.LineCircleIntersections(a1, a2, c, r, false)
	case a.Kind == document.RefCircle && b.Kind == document.RefCircle:
		c1, r1, ok1 := e.circleGeom(a.ID)
		c2, r2, ok2 := e.circleGeom(b.ID)
		if !ok1 || !ok2 {
			return nil
		}
		return geom.CircleCircleIntersections(c1, r1, c2, r2)
	}
	return nil
}

func (e *Engine) lineGeom(id string) (geom.Vec, geom.Vec, bool) {
	l := e.scene.Line(id)
	if l == nil || l.Hidden {
		return geom.Vec{}, geom.Vec{}, false
	}
	a, b, ok := e.scene.LineEnds(l)
	if !ok || geom.Dist(a, b) < geom.Epsilon {
		return geom.Vec{}, geom.Vec{}, false
	}
	return a, b, true
}

func (e *Engine) circleGeom(id string) (geom.Vec, float64, bool) {
	c := e.scene.Circle(id)
	if c == nil || c.Hidden || c.Radius < geom.Epsilon {
		return geom.Vec{}, 0, false
	}
	return geom.V(c.CX, c.CY), c.Radius, true
}

// AttachPoint adds a line or circle as a parent of an existing point, as
// happens when a point is dropped onto an object. A free point becomes
// on_object; an on_object point becomes the intersection of its two
// parents and jumps to the nearest root. Midpoints, symmetric points and
// helper points keep their construction.
func (e *Engine) AttachPoint(pointID string, ref document.Ref) error {
	p := e.scene.Point(pointID)
	if p == nil {
		return fmt.Errorf("point %s: %w", pointID, ErrNotFound)
	}
	if ref.Kind != document.RefLine && ref.Kind != document.RefCircle {
		return fmt.Errorf("attach to %s: %w", ref.Kind, ErrInvalidRef)
	}
	if !e.scene.Exists(ref) {
		return fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	if p.HasParent(ref) {
		return nil
	}
	if p.Kind == document.KindMidpoint || p.Kind == document.KindSymmetric || p.IsHelper() {
		return fmt.Errorf("attach %s point %s: %w", p.Kind, pointID, ErrStickyKind)
	}
	if e.definesObject(pointID, ref) {
		return fmt.Errorf("point %s defines %s: %w", pointID, ref.ID, ErrInvalidRef)
	}

	switch p.Kind {
	case document.KindFree:
		placed, param, err := e.placeOn(ref, geom.V(p.X, p.Y))
		if err != nil {
			return err
		}
		p.Kind = document.KindOnObject
		p.Parents = []document.Ref{ref}
		p.Param = &param
		e.addToObject(ref, p.ID)
		e.movePoint(p, placed, 0)
	case document.KindOnObject:
		a, b, err := e.canonicalPair(p.Parents[0], ref)
		if err != nil {
			return err
		}
		roots := e.solvePair(a, b)
		if len(roots) == 0 {
			return fmt.Errorf("attach %s to %s: %w", pointID, ref.ID, ErrNoIntersection)
		}
		cur := geom.V(p.X, p.Y)
		best := roots[0]
		for _, r := range roots[1:] {
			if geom.Dist(r, cur) < geom.Dist(best, cur) {
				best = r
			}
		}
		p.Kind = document.KindIntersection
		p.Parents = []document.Ref{a, b}
		p.Param = nil
		e.addToObject(ref, p.ID)
		e.movePoint(p, best, 0)
	default:
		return fmt.Errorf("attach point %s: %w", pointID, ErrTooManyParents)
	}
	e.log.Debug("point attached", "id", pointID, "to", ref.ID, "kind", p.Kind)
	return nil
}

// definesObject reports whether pointID is one of the points fixing ref,
// directly or as the helper of a directed line.
func (e *Engine) definesObject(pointID string, ref document.Ref) bool {
	switch ref.Kind {
	case document.RefLine:
		if l := e.scene.Line(ref.ID); l != nil {
			return l.Defining[0] == pointID || l.Defining[1] == pointID
		}
	case document.RefCircle:
		if c := e.scene.Circle(ref.ID); c != nil {
			return contains(c.DefiningPoints(), pointID)
		}
	}
	return false
}

// --- Midpoints and reflections ---

// Midpoint creates the midpoint of two points.
func (e *Engine) Midpoint(a, b string, style document.Style) (string, error) {
	pa, ok := e.scene.Pos(a)
	if !ok {
		return "", fmt.Errorf("point %s: %w", a, ErrNotFound)
	}
	pb, ok := e.scene.Pos(b)
	if !ok {
		return "", fmt.Errorf("point %s: %w", b, ErrNotFound)
	}
	if a == b {
		return "", fmt.Errorf("midpoint of %s with itself: %w", a, ErrDegenerate)
	}
	p, err := e.newPoint(geom.Midpoint(pa, pb), style, document.KindMidpoint)
	if err != nil {
		return "", err
	}
	p.Midpoint = &document.MidpointInfo{Parents: [2]string{a, b}}
	e.scene.LinkChild(a, p.ID)
	e.scene.LinkChild(b, p.ID)
	return p.ID, nil
}

// MidpointOfLine creates the midpoint of a line's defining segment and
// places it on the line.
func (e *Engine) MidpointOfLine(lineID string, style document.Style) (string, error) {
	l := e.scene.Line(lineID)
	if l == nil {
		return "", fmt.Errorf("line %s: %w", lineID, ErrNotFound)
	}
	id, err := e.Midpoint(l.Defining[0], l.Defining[1], style)
	if err != nil {
		return "", err
	}
	e.scene.Point(id).Midpoint.ParentLineID = lineID
	e.insertPointOnLine(l, id)
	return id, nil
}

// Symmetric reflects source through a point or across a line.
func (e *Engine) Symmetric(source string, mirror document.Ref, style document.Style) (string, error) {
	if e.scene.Point(source) == nil {
		return "", fmt.Errorf("point %s: %w", source, ErrNotFound)
	}
	switch mirror.Kind {
	case document.RefPoint, document.RefLine:
	default:
		return "", fmt.Errorf("mirror %s: %w", mirror.Kind, ErrInvalidRef)
	}
	if !e.scene.Exists(mirror) {
		return "", fmt.Errorf("%s %s: %w", mirror.Kind, mirror.ID, ErrNotFound)
	}
	if mirror.Kind == document.RefPoint && mirror.ID == source {
		return "", fmt.Errorf("reflect %s through itself: %w", source, ErrDegenerate)
	}

	info := &document.SymmetricInfo{Source: source, Mirror: mirror}
	pos, ok := e.symmetricPos(info)
	if !ok {
		return "", fmt.Errorf("reflect %s across %s: %w", source, mirror.ID, ErrDegenerate)
	}
	p, err := e.newPoint(pos, style, document.KindSymmetric)
	if err != nil {
		return "", err
	}
	p.Symmetric = info
	e.scene.LinkChild(source, p.ID)
	if mirror.Kind == document.RefPoint {
		e.scene.LinkChild(mirror.ID, p.ID)
	}
	return p.ID, nil
}

// --- Parallel and perpendicular lines ---

// ParallelLine creates the line through a point parallel to a reference
// line. Its direction is carried by a helper point.
func (e *Engine) ParallelLine(through, reference string, style document.Style) (string, error) {
	return e.directedLine(through, reference, false, style)
}

// PerpendicularLine creates the line through a point perpendicular to a
// reference line.
func (e *Engine) PerpendicularLine(through, reference string, style document.Style) (string, error) {
	return e.directedLine(through, reference, true, style)
}

func (e *Engine) directedLine(through, reference string, perpendicular bool, style document.Style) (string, error) {
	tp, ok := e.scene.Pos(through)
	if !ok {
		return "", fmt.Errorf("point %s: %w", through, ErrNotFound)
	}
	ref := e.scene.Line(reference)
	if ref == nil {
		return "", fmt.Errorf("line %s: %w", reference, ErrNotFound)
	}
	a, b, ok := e.scene.LineEnds(ref)
	if !ok {
		return "", fmt.Errorf("line %s: %w", reference, ErrNotFound)
	}
	dir, ok := geom.Direction(a, b)
	if !ok {
		return "", fmt.Errorf("reference line %s: %w", reference, ErrDegenerate)
	}
	if perpendicular {
		dir = geom.Perp(dir)
	}

	meta := &document.Directed{
		ThroughPoint:      through,
		ReferenceLine:     reference,
		HelperDistance:    geom.Dist(a, b),
		HelperOrientation: 1,
	}
	lineID := e.newID(typeid.PrefixLine)

	helper, err := e.newPoint(helperPos(tp, dir, meta), document.Style{}, document.KindFree)
	if err != nil {
		return "", err
	}
	helper.Label = ""
	if perpendicular {
		helper.PerpendicularHelperFor = lineID
	} else {
		helper.ParallelHelperFor = lineID
	}
	meta.HelperPoint = helper.ID

	l, err := e.newLine(lineID, through, helper.ID, style)
	if err != nil {
		e.scene.Remove(document.PointRef(helper.ID))
		return "", err
	}
	if perpendicular {
		l.Perpendicular = meta
	} else {
		l.Parallel = meta
	}
	e.sortLinePoints(l)

	e.log.Debug("directed line added", "id", lineID, "through", through,
		"reference", reference, "perpendicular", perpendicular)
	return lineID, nil
}

func helperPos(through, dir geom.Vec, meta *document.Directed) geom.Vec {
	s := meta.HelperOrientation * meta.HelperDistance
	return geom.V(through.X+s*dir.X, through.Y+s*dir.Y)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
