package engine

import (
	"errors"
	"fmt"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/geom"
)

var ErrUnknownTool = errors.New("unknown construction tool")

// Tool names a multi-click construction.
type Tool string

const (
	ToolLine          Tool = "line"
	ToolCircle        Tool = "circle"
	ToolCircle3       Tool = "circle3"
	ToolIntersect     Tool = "intersect"
	ToolMidpoint      Tool = "midpoint"
	ToolSymmetric     Tool = "symmetric"
	ToolParallel      Tool = "parallel"
	ToolPerpendicular Tool = "perpendicular"
	ToolPolygon       Tool = "polygon"
	ToolAngle         Tool = "angle"
)

// PickResult tells the UI what a pick did.
type PickResult struct {
	// Done is set when the pick completed the construction.
	Done bool `json:"done"`
	// Created holds the ids of the entities the construction produced.
	Created []string `json:"created,omitempty"`
	// Picks is the number of picks collected so far for the next
	// construction.
	Picks int `json:"picks"`
}

type pendingConstruction struct {
	tool  Tool
	style document.Style
	picks []document.Ref
}

func (p *pendingConstruction) count(kind document.RefKind) int {
	n := 0
	for _, r := range p.picks {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func (p *pendingConstruction) forget(gone map[document.Ref]bool) {
	kept := p.picks[:0]
	for _, r := range p.picks {
		if !gone[r] {
			kept = append(kept, r)
		}
	}
	p.picks = kept
}

// BeginConstruction arms a tool. Any previous pending construction is
// discarded.
func (e *Engine) BeginConstruction(tool Tool, style document.Style) error {
	switch tool {
	case ToolLine, ToolCircle, ToolCircle3, ToolIntersect, ToolMidpoint, ToolSymmetric,
		ToolParallel, ToolPerpendicular, ToolPolygon, ToolAngle:
	default:
		return fmt.Errorf("begin construction %q: %w", tool, ErrUnknownTool)
	}
	e.pending = &pendingConstruction{tool: tool, style: style}
	return nil
}

// CancelConstruction discards the armed tool and its picks. Nothing that
// was already committed is touched.
func (e *Engine) CancelConstruction() {
	e.pending = nil
}

// ActiveTool returns the armed tool, or "" when none is.
func (e *Engine) ActiveTool() Tool {
	if e.pending == nil {
		return ""
	}
	return e.pending.tool
}

// PendingPicks returns the picks collected for the armed tool.
func (e *Engine) PendingPicks() []document.Ref {
	if e.pending == nil {
		return nil
	}
	return append([]document.Ref(nil), e.pending.picks...)
}

// Pick feeds one selected entity to the armed tool. A pick of the wrong
// kind is rejected and leaves the collected picks alone. When the picks
// complete the construction it is built and the tool stays armed for the
// next one; if building fails the picks are dropped.
func (e *Engine) Pick(ref document.Ref) (PickResult, error) {
	pc := e.pending
	if pc == nil {
		return PickResult{}, ErrNoConstruction
	}
	if !e.scene.Exists(ref) {
		return PickResult{Picks: len(pc.picks)}, fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	if err := pc.accepts(ref); err != nil {
		return PickResult{Picks: len(pc.picks)}, err
	}

	// A polygon closes when its first vertex is picked again.
	if pc.tool == ToolPolygon && len(pc.picks) >= 3 && pc.picks[0] == ref {
		return e.complete(pc)
	}
	pc.picks = append(pc.picks, ref)
	if pc.ready() {
		return e.complete(pc)
	}
	return PickResult{Picks: len(pc.picks)}, nil
}

func (p *pendingConstruction) accepts(ref document.Ref) error {
	isPoint := ref.Kind == document.RefPoint
	isLine := ref.Kind == document.RefLine
	isCurve := isLine || ref.Kind == document.RefCircle
	n := len(p.picks)

	ok := false
	switch p.tool {
	case ToolLine, ToolCircle, ToolCircle3, ToolAngle:
		ok = isPoint
	case ToolPolygon:
		// Vertices are distinct; the first one may come back to close.
		ok = isPoint
		for i, r := range p.picks {
			if r == ref && (i != 0 || n < 3) {
				ok = false
			}
		}
	case ToolIntersect:
		ok = isCurve && (n == 0 || p.picks[0] != ref)
	case ToolMidpoint:
		// Two points, or one line.
		ok = isPoint || (isLine && n == 0)
	case ToolSymmetric:
		// Source point first, then a point or line mirror.
		ok = (n == 0 && isPoint) || (n == 1 && (isPoint || isLine))
	case ToolParallel, ToolPerpendicular:
		// One point and one line, in either order.
		ok = (isPoint && p.count(document.RefPoint) == 0) || (isLine && p.count(document.RefLine) == 0)
	}
	if !ok {
		return fmt.Errorf("%s tool cannot take %s %s: %w", p.tool, ref.Kind, ref.ID, ErrInvalidRef)
	}
	return nil
}

func (p *pendingConstruction) ready() bool {
	n := len(p.picks)
	switch p.tool {
	case ToolLine, ToolCircle, ToolIntersect, ToolSymmetric, ToolParallel, ToolPerpendicular:
		return n == 2
	case ToolMidpoint:
		return n == 2 || (n == 1 && p.picks[0].Kind == document.RefLine)
	case ToolCircle3, ToolAngle:
		return n == 3
	}
	return false
}

func (e *Engine) complete(pc *pendingConstruction) (PickResult, error) {
	picks := pc.picks
	pc.picks = nil

	created, err := e.build(pc.tool, picks, pc.style)
	if err != nil {
		return PickResult{}, fmt.Errorf("%s construction: %w", pc.tool, err)
	}
	e.checkpoint()
	e.log.Debug("construction completed", "tool", pc.tool, "created", created)
	return PickResult{Done: true, Created: created}, nil
}

func (e *Engine) build(tool Tool, picks []document.Ref, style document.Style) ([]string, error) {
	one := func(id string, err error) ([]string, error) {
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}

	switch tool {
	case ToolLine:
		return one(e.AddLine(picks[0].ID, picks[1].ID, style))
	case ToolCircle:
		return one(e.AddCircle(picks[0].ID, picks[1].ID, style))
	case ToolCircle3:
		return one(e.AddCircleThreePoints(picks[0].ID, picks[1].ID, picks[2].ID, style))
	case ToolIntersect:
		return e.Intersect(picks[0], picks[1], style)
	case ToolMidpoint:
		if len(picks) == 1 {
			return one(e.MidpointOfLine(picks[0].ID, style))
		}
		return one(e.Midpoint(picks[0].ID, picks[1].ID, style))
	case ToolSymmetric:
		return one(e.Symmetric(picks[0].ID, picks[1], style))
	case ToolParallel, ToolPerpendicular:
		point, line := picks[0], picks[1]
		if point.Kind != document.RefPoint {
			point, line = line, point
		}
		if tool == ToolParallel {
			return one(e.ParallelLine(point.ID, line.ID, style))
		}
		return one(e.PerpendicularLine(point.ID, line.ID, style))
	case ToolPolygon:
		ids := make([]string, len(picks))
		for i, r := range picks {
			ids[i] = r.ID
		}
		return one(e.AddPolygon(ids, style))
	case ToolAngle:
		return e.angleFromPoints(picks[0].ID, picks[1].ID, picks[2].ID, style)
	}
	return nil, ErrUnknownTool
}

// angleFromPoints marks the angle a-v-b, creating the lines va and vb when
// they do not exist yet.
func (e *Engine) angleFromPoints(a, v, b string, style document.Style) ([]string, error) {
	for _, end := range []string{a, b} {
		p, okP := e.scene.Pos(end)
		q, okQ := e.scene.Pos(v)
		if !okP || !okQ {
			return nil, fmt.Errorf("angle %s-%s-%s: %w", a, v, b, ErrNotFound)
		}
		if end == v || geom.Dist(p, q) < geom.Epsilon {
			return nil, fmt.Errorf("angle leg %s-%s: %w", v, end, ErrDegenerate)
		}
	}
	if a == b {
		return nil, fmt.Errorf("angle %s-%s-%s: %w", a, v, b, ErrDegenerate)
	}

	var legs [2]document.Leg
	var created []string
	for i, end := range []string{a, b} {
		existed := e.scene.LineBetween(v, end) != nil
		lineID, err := e.AddLine(v, end, style)
		if err != nil {
			return nil, err
		}
		if !existed {
			created = append(created, lineID)
		}
		l := e.scene.Line(lineID)
		iv, ie := indexOf(l.Points, v), indexOf(l.Points, end)
		seg := iv
		if ie < iv {
			seg = iv - 1
		}
		legs[i] = document.Leg{Line: lineID, SegmentIndex: seg}
	}
	id, err := e.AddAngle(v, legs, style)
	if err != nil {
		return nil, err
	}
	return append(created, id), nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// Commit records a history checkpoint for edits made through the direct
// construction calls.
func (e *Engine) Commit() {
	e.checkpoint()
}
