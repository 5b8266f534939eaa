package engine

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/scene"
)

// depGraph is the parent→child graph of the points, lines and circles of a
// scene. Angles and polygons never feed a position and are left out.
type depGraph struct {
	g    *simple.DirectedGraph
	refs []document.Ref
	ids  map[document.Ref]int64
}

func buildDepGraph(s *scene.Store) *depGraph {
	d := &depGraph{
		g:   simple.NewDirectedGraph(),
		ids: make(map[document.Ref]int64),
	}
	for _, p := range s.Points {
		d.node(document.PointRef(p.ID))
	}
	for _, l := range s.Lines {
		d.node(document.LineRef(l.ID))
	}
	for _, c := range s.Circles {
		d.node(document.CircleRef(c.ID))
	}

	for _, l := range s.Lines {
		to := document.LineRef(l.ID)
		d.edge(document.PointRef(l.Defining[0]), to)
		d.edge(document.PointRef(l.Defining[1]), to)
		for _, m := range []*document.Directed{l.Parallel, l.Perpendicular} {
			if m == nil {
				continue
			}
			helper := document.PointRef(m.HelperPoint)
			d.edge(document.PointRef(m.ThroughPoint), helper)
			d.edge(document.LineRef(m.ReferenceLine), helper)
		}
	}
	for _, c := range s.Circles {
		for _, id := range c.DefiningPoints() {
			d.edge(document.PointRef(id), document.CircleRef(c.ID))
		}
	}
	for _, p := range s.Points {
		to := document.PointRef(p.ID)
		if p.Kind == document.KindOnObject || p.Kind == document.KindIntersection {
			for _, r := range p.Parents {
				d.edge(r, to)
			}
		}
		if p.Midpoint != nil {
			d.edge(document.PointRef(p.Midpoint.Parents[0]), to)
			d.edge(document.PointRef(p.Midpoint.Parents[1]), to)
		}
		if p.Symmetric != nil {
			d.edge(document.PointRef(p.Symmetric.Source), to)
			d.edge(p.Symmetric.Mirror, to)
		}
	}
	return d
}

func (d *depGraph) node(ref document.Ref) {
	if _, ok := d.ids[ref]; ok {
		return
	}
	id := int64(len(d.refs))
	d.ids[ref] = id
	d.refs = append(d.refs, ref)
	d.g.AddNode(simple.Node(id))
}

// edge links two known entities. Dangling references and self references
// are skipped; Validate reports them.
func (d *depGraph) edge(from, to document.Ref) {
	f, ok1 := d.ids[from]
	t, ok2 := d.ids[to]
	if !ok1 || !ok2 || f == t {
		return
	}
	d.g.SetEdge(d.g.NewEdge(simple.Node(f), simple.Node(t)))
}

// byID keeps the topological order stable across runs: among nodes that
// are free to go next, earlier store entries go first.
func byID(nodes []graph.Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].ID() < nodes[j-1].ID(); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

// DependencyOrder returns every point, line and circle of the scene with
// parents before children. It fails with the entities that form cycles
// when the construction is not a DAG.
func DependencyOrder(s *scene.Store) ([]document.Ref, error) {
	d := buildDepGraph(s)
	sorted, err := topo.SortStabilized(d.g, byID)
	if err != nil {
		var cyclic []document.Ref
		if u, ok := err.(topo.Unorderable); ok {
			for _, comp := range u {
				for _, n := range comp {
					cyclic = append(cyclic, d.refs[n.ID()])
				}
			}
		}
		return nil, fmt.Errorf("dependency order: %d entities in cycles %v: %w", len(cyclic), cyclic, err)
	}
	out := make([]document.Ref, len(sorted))
	for i, n := range sorted {
		out[i] = d.refs[n.ID()]
	}
	return out, nil
}

// cycles returns the strongly connected components with more than one
// member.
func (d *depGraph) cycles() [][]document.Ref {
	var out [][]document.Ref
	for _, comp := range topo.TarjanSCC(d.g) {
		if len(comp) < 2 {
			continue
		}
		refs := make([]document.Ref, len(comp))
		for i, n := range comp {
			refs[i] = d.refs[n.ID()]
		}
		out = append(out, refs)
	}
	return out
}
