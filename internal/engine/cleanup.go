package engine

import (
	"fmt"
	"slices"

	"github.com/inamate/geoconstruct/internal/document"
)

// CleanupReport lists what one deletion or orphan collection changed.
type CleanupReport struct {
	Removed      []document.Ref `json:"removed"`
	Reclassified []string       `json:"reclassified,omitempty"`
}

// DeletePoints removes points and everything that can no longer be
// constructed without them.
func (e *Engine) DeletePoints(ids ...string) (CleanupReport, error) {
	refs := make([]document.Ref, 0, len(ids))
	for _, id := range ids {
		if e.scene.Point(id) == nil {
			return CleanupReport{}, fmt.Errorf("point %s: %w", id, ErrNotFound)
		}
		refs = append(refs, document.PointRef(id))
	}
	return e.deleteRefs(refs), nil
}

// DeleteLine removes a line together with the parallel and perpendicular
// lines built on it, their helper points, and the points that only
// existed on it.
func (e *Engine) DeleteLine(id string) (CleanupReport, error) {
	if e.scene.Line(id) == nil {
		return CleanupReport{}, fmt.Errorf("line %s: %w", id, ErrNotFound)
	}
	return e.deleteRefs([]document.Ref{document.LineRef(id)}), nil
}

func (e *Engine) DeleteCircle(id string) (CleanupReport, error) {
	if e.scene.Circle(id) == nil {
		return CleanupReport{}, fmt.Errorf("circle %s: %w", id, ErrNotFound)
	}
	return e.deleteRefs([]document.Ref{document.CircleRef(id)}), nil
}

func (e *Engine) DeleteAngle(id string) (CleanupReport, error) {
	if e.scene.Angle(id) == nil {
		return CleanupReport{}, fmt.Errorf("angle %s: %w", id, ErrNotFound)
	}
	return e.deleteRefs([]document.Ref{{Kind: document.RefAngle, ID: id}}), nil
}

// DeletePolygon removes the polygon record. Its edges are ordinary lines
// and stay.
func (e *Engine) DeletePolygon(id string) (CleanupReport, error) {
	if e.scene.Polygon(id) == nil {
		return CleanupReport{}, fmt.Errorf("polygon %s: %w", id, ErrNotFound)
	}
	return e.deleteRefs([]document.Ref{{Kind: document.RefPolygon, ID: id}}), nil
}

// Delete removes any mix of entities.
func (e *Engine) Delete(refs ...document.Ref) (CleanupReport, error) {
	for _, r := range refs {
		if !e.scene.Exists(r) {
			return CleanupReport{}, fmt.Errorf("%s %s: %w", r.Kind, r.ID, ErrNotFound)
		}
	}
	return e.deleteRefs(refs), nil
}

func (e *Engine) deleteRefs(refs []document.Ref) CleanupReport {
	var removed []document.Ref
	for _, r := range refs {
		if e.scene.Exists(r) && !containsRef(removed, r) {
			removed = append(removed, r)
		}
	}
	e.scene.Remove(removed...)
	report := e.CollectOrphans()
	report.Removed = append(removed, report.Removed...)
	e.forget(report.Removed)
	e.checkpoint()
	e.log.Info("entities deleted", "requested", len(refs), "removed", len(report.Removed),
		"reclassified", len(report.Reclassified))
	return report
}

// CollectOrphans removes every entity whose construction refers to
// something that no longer exists, strips dangling references from the
// survivors and reclassifies points by their remaining parents. It runs
// to a fixpoint, then recomputes the scene once.
func (e *Engine) CollectOrphans() CleanupReport {
	var report CleanupReport
	reclassified := make(map[string]bool)

	for {
		var drop []document.Ref
		for _, p := range e.scene.Points {
			if e.orphanPoint(p, reclassified) {
				drop = append(drop, document.PointRef(p.ID))
			}
		}
		for _, l := range e.scene.Lines {
			if e.orphanLine(l) {
				drop = append(drop, document.LineRef(l.ID))
			}
		}
		for _, c := range e.scene.Circles {
			if e.orphanCircle(c) {
				drop = append(drop, document.CircleRef(c.ID))
			}
		}
		for _, a := range e.scene.Angles {
			if e.orphanAngle(a) {
				drop = append(drop, document.Ref{Kind: document.RefAngle, ID: a.ID})
			}
		}
		for _, p := range e.scene.Polygons {
			if e.orphanPolygon(p) {
				drop = append(drop, document.Ref{Kind: document.RefPolygon, ID: p.ID})
			}
		}
		if len(drop) == 0 {
			break
		}
		e.scene.Remove(drop...)
		report.Removed = append(report.Removed, drop...)
	}

	for _, p := range e.scene.Points {
		p.Children = e.existing(p.Children)
	}
	for id := range reclassified {
		if e.scene.Point(id) != nil {
			report.Reclassified = append(report.Reclassified, id)
		}
	}
	slices.Sort(report.Reclassified)
	if len(report.Removed) > 0 || len(report.Reclassified) > 0 {
		e.RecomputeAll()
	}
	return report
}

// orphanPoint strips dangling parents from p and reports whether p can no
// longer be constructed.
func (e *Engine) orphanPoint(p *document.Point, reclassified map[string]bool) bool {
	if id := p.ParallelHelperFor; id != "" {
		if l := e.scene.Line(id); l == nil || l.Parallel == nil || l.Parallel.HelperPoint != p.ID {
			return true
		}
	}
	if id := p.PerpendicularHelperFor; id != "" {
		if l := e.scene.Line(id); l == nil || l.Perpendicular == nil || l.Perpendicular.HelperPoint != p.ID {
			return true
		}
	}

	switch p.Kind {
	case document.KindMidpoint:
		if p.Midpoint == nil {
			return true
		}
		for _, id := range p.Midpoint.Parents {
			if e.scene.Point(id) == nil {
				return true
			}
		}
		if id := p.Midpoint.ParentLineID; id != "" && e.scene.Line(id) == nil {
			p.Midpoint.ParentLineID = ""
		}
		return false
	case document.KindSymmetric:
		return p.Symmetric == nil ||
			e.scene.Point(p.Symmetric.Source) == nil ||
			!e.scene.Exists(p.Symmetric.Mirror)
	case document.KindFree:
		return false
	}

	kept := p.Parents[:0]
	for _, r := range p.Parents {
		if e.scene.Exists(r) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(p.Parents) {
		return false
	}
	p.Parents = kept

	switch len(kept) {
	case 0:
		return true
	case 1:
		p.Kind = document.KindOnObject
		p.Param = nil
	default:
		p.Kind = document.KindIntersection
	}
	reclassified[p.ID] = true
	return false
}

func (e *Engine) orphanLine(l *document.Line) bool {
	for _, id := range l.Defining {
		if e.scene.Point(id) == nil {
			return true
		}
	}
	for _, m := range []*document.Directed{l.Parallel, l.Perpendicular} {
		if m == nil {
			continue
		}
		if e.scene.Line(m.ReferenceLine) == nil || e.scene.Point(m.ThroughPoint) == nil || e.scene.Point(m.HelperPoint) == nil {
			return true
		}
	}
	l.Points = e.existing(l.Points)
	return false
}

func (e *Engine) orphanCircle(c *document.Circle) bool {
	for _, id := range c.DefiningPoints() {
		if e.scene.Point(id) == nil {
			return true
		}
	}
	c.Perimeter = e.existing(c.Perimeter)
	return false
}

func (e *Engine) orphanAngle(a *document.Angle) bool {
	if e.scene.Point(a.Vertex) == nil {
		return true
	}
	for _, leg := range a.Legs {
		l := e.scene.Line(leg.Line)
		if l == nil || !contains(l.Points, a.Vertex) || leg.SegmentIndex >= len(l.Points)-1 {
			return true
		}
	}
	return false
}

func (e *Engine) orphanPolygon(p *document.Polygon) bool {
	for _, id := range p.Lines {
		if e.scene.Line(id) == nil {
			return true
		}
	}
	return false
}

// existing filters ids down to the entities still in the scene.
func (e *Engine) existing(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if e.scene.Point(id) != nil || e.scene.Line(id) != nil || e.scene.Circle(id) != nil || e.scene.Angle(id) != nil {
			out = append(out, id)
		}
	}
	return out
}

// forget drops removed entities from the interaction state.
func (e *Engine) forget(removed []document.Ref) {
	gone := make(map[document.Ref]bool, len(removed))
	for _, r := range removed {
		gone[r] = true
	}
	sel := e.selection[:0]
	for _, r := range e.selection {
		if !gone[r] {
			sel = append(sel, r)
		}
	}
	e.selection = sel

	if e.drag != nil && gone[e.drag.target] {
		e.drag = nil
		e.snap = SnapIndicator{}
	}
	if e.drag != nil {
		for _, id := range e.drag.moving {
			if gone[document.PointRef(id)] {
				e.drag = nil
				e.snap = SnapIndicator{}
				break
			}
		}
	}
	if e.pending != nil {
		e.pending.forget(gone)
	}
}

func containsRef(list []document.Ref, r document.Ref) bool {
	for _, v := range list {
		if v == r {
			return true
		}
	}
	return false
}
