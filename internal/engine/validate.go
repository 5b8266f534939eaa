package engine

import (
	"fmt"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/scene"
)

// ValidationSeverity indicates whether a finding prevents a document from
// being loaded or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks loading
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Ref      document.Ref // offending entity (zero if scene-level)
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.Ref.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s %s: %s", e.Severity, e.Ref.Kind, e.Ref.ID, e.Message)
}

// Validate checks the structural invariants of a scene and returns every
// finding. It never mutates the scene. Dependency cycles are reported as
// warnings: propagation tolerates them through its guard sets.
func Validate(s *scene.Store) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validatePoints(s)...)
	errs = append(errs, validateLines(s)...)
	errs = append(errs, validateCircles(s)...)
	errs = append(errs, validateAngles(s)...)
	errs = append(errs, validatePolygons(s)...)
	errs = append(errs, validateCycles(s)...)
	return errs
}

func errorf(ref document.Ref, format string, args ...any) ValidationError {
	return ValidationError{Ref: ref, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

func validatePoints(s *scene.Store) []ValidationError {
	var errs []ValidationError
	for _, p := range s.Points {
		ref := document.PointRef(p.ID)
		if len(p.Parents) > 2 {
			errs = append(errs, errorf(ref, "%d parents, at most 2 allowed", len(p.Parents)))
		}
		seen := make(map[document.Ref]bool, len(p.Parents))
		for _, r := range p.Parents {
			if r.Kind != document.RefLine && r.Kind != document.RefCircle {
				errs = append(errs, errorf(ref, "parent %s %s is not a line or circle", r.Kind, r.ID))
				continue
			}
			if seen[r] {
				errs = append(errs, errorf(ref, "duplicate parent %s %s", r.Kind, r.ID))
			}
			seen[r] = true
			if !s.Exists(r) {
				errs = append(errs, errorf(ref, "parent %s %s does not exist", r.Kind, r.ID))
			}
		}

		switch p.Kind {
		case document.KindFree:
			if len(p.Parents) != 0 {
				errs = append(errs, errorf(ref, "free point with %d parents", len(p.Parents)))
			}
		case document.KindOnObject:
			if len(p.Parents) != 1 {
				errs = append(errs, errorf(ref, "on_object point with %d parents", len(p.Parents)))
			}
		case document.KindIntersection:
			if len(p.Parents) != 2 {
				errs = append(errs, errorf(ref, "intersection point with %d parents", len(p.Parents)))
			}
		case document.KindMidpoint:
			if p.Midpoint == nil {
				errs = append(errs, errorf(ref, "midpoint without metadata"))
				break
			}
			for _, id := range p.Midpoint.Parents {
				if s.Point(id) == nil {
					errs = append(errs, errorf(ref, "midpoint parent %s does not exist", id))
				}
			}
			if id := p.Midpoint.ParentLineID; id != "" && s.Line(id) == nil {
				errs = append(errs, errorf(ref, "midpoint line %s does not exist", id))
			}
		case document.KindSymmetric:
			if p.Symmetric == nil {
				errs = append(errs, errorf(ref, "symmetric point without metadata"))
				break
			}
			if s.Point(p.Symmetric.Source) == nil {
				errs = append(errs, errorf(ref, "source %s does not exist", p.Symmetric.Source))
			}
			if m := p.Symmetric.Mirror; !s.Exists(m) {
				errs = append(errs, errorf(ref, "mirror %s %s does not exist", m.Kind, m.ID))
			}
		default:
			errs = append(errs, errorf(ref, "unknown construction kind %q", p.Kind))
		}

		if id := p.ParallelHelperFor; id != "" {
			if l := s.Line(id); l == nil || l.Parallel == nil || l.Parallel.HelperPoint != p.ID {
				errs = append(errs, errorf(ref, "helper of missing parallel line %s", id))
			}
		}
		if id := p.PerpendicularHelperFor; id != "" {
			if l := s.Line(id); l == nil || l.Perpendicular == nil || l.Perpendicular.HelperPoint != p.ID {
				errs = append(errs, errorf(ref, "helper of missing perpendicular line %s", id))
			}
		}
	}
	return errs
}

func validateLines(s *scene.Store) []ValidationError {
	var errs []ValidationError
	for _, l := range s.Lines {
		ref := document.LineRef(l.ID)
		for _, id := range l.Defining {
			if s.Point(id) == nil {
				errs = append(errs, errorf(ref, "defining point %s does not exist", id))
			} else if !contains(l.Points, id) {
				errs = append(errs, errorf(ref, "points do not contain defining point %s", id))
			}
		}
		if l.Defining[0] == l.Defining[1] {
			errs = append(errs, errorf(ref, "defined by a single point"))
		}
		for _, id := range l.Points {
			if s.Point(id) == nil {
				errs = append(errs, errorf(ref, "point %s does not exist", id))
			}
		}
		if l.Parallel != nil && l.Perpendicular != nil {
			errs = append(errs, errorf(ref, "both parallel and perpendicular"))
		}
		for _, m := range []*document.Directed{l.Parallel, l.Perpendicular} {
			if m == nil {
				continue
			}
			if s.Point(m.ThroughPoint) == nil {
				errs = append(errs, errorf(ref, "through point %s does not exist", m.ThroughPoint))
			}
			if s.Point(m.HelperPoint) == nil {
				errs = append(errs, errorf(ref, "helper point %s does not exist", m.HelperPoint))
			}
			if s.Line(m.ReferenceLine) == nil {
				errs = append(errs, errorf(ref, "reference line %s does not exist", m.ReferenceLine))
			}
		}
	}
	return errs
}

func validateCircles(s *scene.Store) []ValidationError {
	var errs []ValidationError
	for _, c := range s.Circles {
		ref := document.CircleRef(c.ID)
		switch c.Kind {
		case document.CircleCenterRadius, document.CircleThreePoint:
		default:
			errs = append(errs, errorf(ref, "unknown circle kind %q", c.Kind))
			continue
		}
		for _, id := range c.DefiningPoints() {
			if s.Point(id) == nil {
				errs = append(errs, errorf(ref, "defining point %s does not exist", id))
			}
		}
		if c.Radius <= 0 {
			errs = append(errs, ValidationError{Ref: ref, Message: "non-positive radius", Severity: SeverityWarning})
		}
	}
	return errs
}

func validateAngles(s *scene.Store) []ValidationError {
	var errs []ValidationError
	for _, a := range s.Angles {
		ref := document.Ref{Kind: document.RefAngle, ID: a.ID}
		if s.Point(a.Vertex) == nil {
			errs = append(errs, errorf(ref, "vertex %s does not exist", a.Vertex))
		}
		for _, leg := range a.Legs {
			if s.Line(leg.Line) == nil {
				errs = append(errs, errorf(ref, "leg line %s does not exist", leg.Line))
			}
		}
	}
	return errs
}

func validatePolygons(s *scene.Store) []ValidationError {
	var errs []ValidationError
	for _, p := range s.Polygons {
		ref := document.Ref{Kind: document.RefPolygon, ID: p.ID}
		if len(p.Lines) < 3 {
			errs = append(errs, errorf(ref, "%d edges, at least 3 required", len(p.Lines)))
		}
		for _, id := range p.Lines {
			if s.Line(id) == nil {
				errs = append(errs, errorf(ref, "edge %s does not exist", id))
			}
		}
	}
	return errs
}

func validateCycles(s *scene.Store) []ValidationError {
	var errs []ValidationError
	for _, comp := range buildDepGraph(s).cycles() {
		errs = append(errs, ValidationError{
			Ref:      comp[0],
			Message:  fmt.Sprintf("dependency cycle through %d entities", len(comp)),
			Severity: SeverityWarning,
		})
	}
	return errs
}
