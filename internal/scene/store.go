// Package scene owns the live entities of one construction. Entities are
// kept in arena slices; the id→index maps are a cache that is rebuilt
// whenever an entity is removed, so callers hold ids, never indices.
package scene

import (
	"errors"
	"fmt"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/geom"
)

var ErrDuplicateID = errors.New("duplicate id")

type Store struct {
	Points   []*document.Point
	Lines    []*document.Line
	Circles  []*document.Circle
	Angles   []*document.Angle
	Polygons []*document.Polygon

	Counters document.Counters

	pointIdx   map[string]int
	lineIdx    map[string]int
	circleIdx  map[string]int
	angleIdx   map[string]int
	polygonIdx map[string]int
}

// New creates an empty store.
func New() *Store {
	s := &Store{}
	s.Reindex()
	return s
}

// FromDocument builds a store holding deep copies of the document's entities.
func FromDocument(doc *document.Document) *Store {
	doc = doc.Clone()
	s := &Store{Counters: doc.Counters}
	for i := range doc.Points {
		s.Points = append(s.Points, &doc.Points[i])
	}
	for i := range doc.Lines {
		s.Lines = append(s.Lines, &doc.Lines[i])
	}
	for i := range doc.Circles {
		s.Circles = append(s.Circles, &doc.Circles[i])
	}
	for i := range doc.Angles {
		s.Angles = append(s.Angles, &doc.Angles[i])
	}
	for i := range doc.Polygons {
		s.Polygons = append(s.Polygons, &doc.Polygons[i])
	}
	s.Reindex()
	return s
}

// Document returns a deep copy of the store as plain data.
func (s *Store) Document() *document.Document {
	doc := document.NewEmptyDocument()
	doc.Counters = s.Counters
	for _, p := range s.Points {
		doc.Points = append(doc.Points, p.Clone())
	}
	for _, l := range s.Lines {
		doc.Lines = append(doc.Lines, l.Clone())
	}
	for _, c := range s.Circles {
		doc.Circles = append(doc.Circles, c.Clone())
	}
	for _, a := range s.Angles {
		doc.Angles = append(doc.Angles, *a)
	}
	for _, p := range s.Polygons {
		doc.Polygons = append(doc.Polygons, p.Clone())
	}
	return doc
}

// Reindex rebuilds every id→index map from the arena slices.
func (s *Store) Reindex() {
	s.pointIdx = make(map[string]int, len(s.Points))
	for i, p := range s.Points {
		s.pointIdx[p.ID] = i
	}
	s.lineIdx = make(map[string]int, len(s.Lines))
	for i, l := range s.Lines {
		s.lineIdx[l.ID] = i
	}
	s.circleIdx = make(map[string]int, len(s.Circles))
	for i, c := range s.Circles {
		s.circleIdx[c.ID] = i
	}
	s.angleIdx = make(map[string]int, len(s.Angles))
	for i, a := range s.Angles {
		s.angleIdx[a.ID] = i
	}
	s.polygonIdx = make(map[string]int, len(s.Polygons))
	for i, p := range s.Polygons {
		s.polygonIdx[p.ID] = i
	}
}

// --- Insertion ---

func (s *Store) AddPoint(p *document.Point) error {
	if s.Exists(document.PointRef(p.ID)) {
		return fmt.Errorf("add point %s: %w", p.ID, ErrDuplicateID)
	}
	s.pointIdx[p.ID] = len(s.Points)
	s.Points = append(s.Points, p)
	return nil
}

func (s *Store) AddLine(l *document.Line) error {
	if s.Exists(document.LineRef(l.ID)) {
		return fmt.Errorf("add line %s: %w", l.ID, ErrDuplicateID)
	}
	s.lineIdx[l.ID] = len(s.Lines)
	s.Lines = append(s.Lines, l)
	return nil
}

func (s *Store) AddCircle(c *document.Circle) error {
	if s.Exists(document.CircleRef(c.ID)) {
		return fmt.Errorf("add circle %s: %w", c.ID, ErrDuplicateID)
	}
	s.circleIdx[c.ID] = len(s.Circles)
	s.Circles = append(s.Circles, c)
	return nil
}

func (s *Store) AddAngle(a *document.Angle) error {
	if _, ok := s.angleIdx[a.ID]; ok {
		return fmt.Errorf("add angle %s: %w", a.ID, ErrDuplicateID)
	}
	s.angleIdx[a.ID] = len(s.Angles)
	s.Angles = append(s.Angles, a)
	return nil
}

func (s *Store) AddPolygon(p *document.Polygon) error {
	if _, ok := s.polygonIdx[p.ID]; ok {
		return fmt.Errorf("add polygon %s: %w", p.ID, ErrDuplicateID)
	}
	s.polygonIdx[p.ID] = len(s.Polygons)
	s.Polygons = append(s.Polygons, p)
	return nil
}

// --- Lookup ---

func (s *Store) Point(id string) *document.Point {
	if i, ok := s.pointIdx[id]; ok {
		return s.Points[i]
	}
	return nil
}

func (s *Store) Line(id string) *document.Line {
	if i, ok := s.lineIdx[id]; ok {
		return s.Lines[i]
	}
	return nil
}

func (s *Store) Circle(id string) *document.Circle {
	if i, ok := s.circleIdx[id]; ok {
		return s.Circles[i]
	}
	return nil
}

func (s *Store) Angle(id string) *document.Angle {
	if i, ok := s.angleIdx[id]; ok {
		return s.Angles[i]
	}
	return nil
}

func (s *Store) Polygon(id string) *document.Polygon {
	if i, ok := s.polygonIdx[id]; ok {
		return s.Polygons[i]
	}
	return nil
}

// Index returns the current arena index of the referenced entity. The
// value is only valid until the next removal.
func (s *Store) Index(ref document.Ref) (int, bool) {
	var i int
	var ok bool
	switch ref.Kind {
	case document.RefPoint:
		i, ok = s.pointIdx[ref.ID]
	case document.RefLine:
		i, ok = s.lineIdx[ref.ID]
	case document.RefCircle:
		i, ok = s.circleIdx[ref.ID]
	case document.RefAngle:
		i, ok = s.angleIdx[ref.ID]
	case document.RefPolygon:
		i, ok = s.polygonIdx[ref.ID]
	}
	return i, ok
}

// Exists reports whether the referenced entity is in the store.
func (s *Store) Exists(ref document.Ref) bool {
	_, ok := s.Index(ref)
	return ok
}

// Pos returns the position of a point.
func (s *Store) Pos(id string) (geom.Vec, bool) {
	p := s.Point(id)
	if p == nil {
		return geom.Vec{}, false
	}
	return geom.V(p.X, p.Y), true
}

// SetPos moves a point without any propagation.
func (s *Store) SetPos(id string, v geom.Vec) {
	if p := s.Point(id); p != nil {
		p.X, p.Y = v.X, v.Y
	}
}

// LineEnds returns the positions of a line's defining points.
func (s *Store) LineEnds(l *document.Line) (geom.Vec, geom.Vec, bool) {
	a, okA := s.Pos(l.Defining[0])
	b, okB := s.Pos(l.Defining[1])
	return a, b, okA && okB
}

// --- Queries ---

// PointsWithParent returns the points whose parent references include ref.
func (s *Store) PointsWithParent(ref document.Ref) []*document.Point {
	var out []*document.Point
	for _, p := range s.Points {
		if p.HasParent(ref) {
			out = append(out, p)
		}
	}
	return out
}

// LinesDefinedBy returns the lines that have pointID as a defining point.
func (s *Store) LinesDefinedBy(pointID string) []*document.Line {
	var out []*document.Line
	for _, l := range s.Lines {
		if l.Defining[0] == pointID || l.Defining[1] == pointID {
			out = append(out, l)
		}
	}
	return out
}

// CirclesDefinedBy returns the circles that have pointID as a defining point.
func (s *Store) CirclesDefinedBy(pointID string) []*document.Circle {
	var out []*document.Circle
	for _, c := range s.Circles {
		for _, id := range c.DefiningPoints() {
			if id == pointID {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// LineBetween returns a line whose defining points are a and b in either
// order, or nil.
func (s *Store) LineBetween(a, b string) *document.Line {
	for _, l := range s.Lines {
		if (l.Defining[0] == a && l.Defining[1] == b) || (l.Defining[0] == b && l.Defining[1] == a) {
			return l
		}
	}
	return nil
}

// --- Children bookkeeping ---

// LinkChild records childID as depending on the point parentID.
func (s *Store) LinkChild(parentID, childID string) {
	p := s.Point(parentID)
	if p == nil {
		return
	}
	for _, c := range p.Children {
		if c == childID {
			return
		}
	}
	p.Children = append(p.Children, childID)
}

// UnlinkChild removes childID from the children of parentID.
func (s *Store) UnlinkChild(parentID, childID string) {
	p := s.Point(parentID)
	if p == nil {
		return
	}
	p.Children = removeString(p.Children, childID)
}

// --- Removal ---

// Remove deletes the given entities and rebuilds the indices once. It
// does not touch references held by other entities; see the engine's
// orphan collector for that. It returns the number of entities removed.
func (s *Store) Remove(refs ...document.Ref) int {
	drop := make(map[document.Ref]bool, len(refs))
	for _, r := range refs {
		if s.Exists(r) {
			drop[r] = true
		}
	}
	if len(drop) == 0 {
		return 0
	}

	s.Points = filter(s.Points, func(p *document.Point) bool { return !drop[document.PointRef(p.ID)] })
	s.Lines = filter(s.Lines, func(l *document.Line) bool { return !drop[document.LineRef(l.ID)] })
	s.Circles = filter(s.Circles, func(c *document.Circle) bool { return !drop[document.CircleRef(c.ID)] })
	s.Angles = filter(s.Angles, func(a *document.Angle) bool {
		return !drop[document.Ref{Kind: document.RefAngle, ID: a.ID}]
	})
	s.Polygons = filter(s.Polygons, func(p *document.Polygon) bool {
		return !drop[document.Ref{Kind: document.RefPolygon, ID: p.ID}]
	})
	s.Reindex()
	return len(drop)
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	clear(in[len(out):])
	return out
}

func removeString(in []string, s string) []string {
	out := in[:0]
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
