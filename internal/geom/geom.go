// Package geom holds the pure geometric functions the construction engine
// is built on. Nothing here touches scene state; every function is
// deterministic for a given input and reports degeneracy through its
// return values instead of panicking.
package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Vec is a 2D position or displacement.
type Vec = r2.Vec

const (
	// Epsilon is the threshold below which lengths, denominators and
	// determinants are treated as zero.
	Epsilon = 1e-9

	// TangentEpsilon is the slack used to decide that a line or circle
	// touches a circle in exactly one point.
	TangentEpsilon = 1e-7
)

// V is a convenience constructor for Vec.
func V(x, y float64) Vec {
	return Vec{X: x, Y: y}
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// Perp returns v rotated by +90 degrees.
func Perp(v Vec) Vec {
	return Vec{X: -v.Y, Y: v.X}
}

// Midpoint returns the arithmetic mean of a and b.
func Midpoint(a, b Vec) Vec {
	return r2.Scale(0.5, r2.Add(a, b))
}

// Direction returns the unit vector from a to b, or false when the two
// points coincide.
func Direction(a, b Vec) (Vec, bool) {
	d := r2.Sub(b, a)
	n := r2.Norm(d)
	if n < Epsilon {
		return Vec{}, false
	}
	return r2.Scale(1/n, d), true
}

// IntersectLines intersects the infinite lines a1→a2 and b1→b2. It returns
// false when the lines are parallel or coincident; the caller decides what
// that means for the dependent object.
func IntersectLines(a1, a2, b1, b2 Vec) (Vec, bool) {
	da := r2.Sub(a2, a1)
	db := r2.Sub(b2, b1)
	denom := r2.Cross(da, db)
	if math.Abs(denom) < Epsilon {
		return Vec{}, false
	}
	t := r2.Cross(r2.Sub(b1, a1), db) / denom
	return r2.Add(a1, r2.Scale(t, da)), true
}

// LineParam returns the parameter t of the projection of p onto the line
// a→b, where t=0 is a and t=1 is b. A degenerate line yields 0.
func LineParam(p, a, b Vec) float64 {
	d := r2.Sub(b, a)
	l2 := r2.Norm2(d)
	if l2 < Epsilon*Epsilon {
		return 0
	}
	return r2.Dot(r2.Sub(p, a), d) / l2
}

// PointAt returns a + t*(b-a).
func PointAt(a, b Vec, t float64) Vec {
	return r2.Add(a, r2.Scale(t, r2.Sub(b, a)))
}

// ProjectOntoLine returns the foot of the perpendicular from p to the
// infinite line through a and b. A degenerate line projects onto a.
func ProjectOntoLine(p, a, b Vec) Vec {
	return PointAt(a, b, LineParam(p, a, b))
}

// DistanceToLine is the distance from p to the infinite line through a and b.
func DistanceToLine(p, a, b Vec) float64 {
	return Dist(p, ProjectOntoLine(p, a, b))
}

// DistanceToSegment is the distance from p to the segment [a, b].
func DistanceToSegment(p, a, b Vec) float64 {
	t := math.Max(0, math.Min(1, LineParam(p, a, b)))
	return Dist(p, PointAt(a, b, t))
}

// ProjectOntoCircle returns the point of the circle nearest to p. When p
// sits on the center the point at angle zero is returned.
func ProjectOntoCircle(p, center Vec, radius float64) Vec {
	d, ok := Direction(center, p)
	if !ok {
		d = Vec{X: 1}
	}
	return r2.Add(center, r2.Scale(radius, d))
}

// Angle returns the polar angle of p around center.
func Angle(p, center Vec) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X)
}

// OnCircle returns the point of the circle at polar angle theta.
func OnCircle(center Vec, radius, theta float64) Vec {
	return Vec{X: center.X + radius*math.Cos(theta), Y: center.Y + radius*math.Sin(theta)}
}

// ReflectPoint mirrors p through the point m.
func ReflectPoint(p, m Vec) Vec {
	return r2.Sub(r2.Scale(2, m), p)
}

// ReflectAcrossLine mirrors p across the infinite line through a and b.
// It returns false for a degenerate line.
func ReflectAcrossLine(p, a, b Vec) (Vec, bool) {
	if Dist(a, b) < Epsilon {
		return Vec{}, false
	}
	foot := ProjectOntoLine(p, a, b)
	return r2.Sub(r2.Scale(2, foot), p), true
}

// LineCircleIntersections intersects the line a→b with a circle. The
// result has 0, 1 (tangent) or 2 points ordered by their parameter along
// a→b. With clampToSegment only roots with t in [0, 1] are kept.
func LineCircleIntersections(a, b, center Vec, radius float64, clampToSegment bool) []Vec {
	d := r2.Sub(b, a)
	l2 := r2.Norm2(d)
	if l2 < Epsilon*Epsilon || radius < Epsilon {
		return nil
	}
	l := math.Sqrt(l2)
	u := r2.Scale(1/l, d)

	tFoot := r2.Dot(r2.Sub(center, a), u)
	foot := r2.Add(a, r2.Scale(tFoot, u))
	h := Dist(center, foot)

	var ts []float64
	switch {
	case h > radius+TangentEpsilon:
		return nil
	case math.Abs(h-radius) <= TangentEpsilon:
		ts = []float64{tFoot}
	default:
		half := math.Sqrt(radius*radius - h*h)
		ts = []float64{tFoot - half, tFoot + half}
	}

	out := make([]Vec, 0, len(ts))
	for _, t := range ts {
		if clampToSegment {
			frac := t / l
			if frac < -Epsilon || frac > 1+Epsilon {
				continue
			}
		}
		out = append(out, r2.Add(a, r2.Scale(t, u)))
	}
	return out
}

// CircleCircleIntersections intersects two circles using the radical line.
// It returns nothing for concentric, separate or nested circles, a single
// point at external or internal tangency, and two points otherwise. The
// two roots are ordered left then right of the center line c1→c2.
func CircleCircleIntersections(c1 Vec, r1 float64, c2 Vec, r2v float64) []Vec {
	if r1 < Epsilon || r2v < Epsilon {
		return nil
	}
	d := Dist(c1, c2)
	if d < Epsilon {
		return nil
	}
	sum := r1 + r2v
	diff := math.Abs(r1 - r2v)
	if d > sum+TangentEpsilon || d < diff-TangentEpsilon {
		return nil
	}

	u := r2.Scale(1/d, r2.Sub(c2, c1))
	a := (r1*r1 - r2v*r2v + d*d) / (2 * d)
	base := r2.Add(c1, r2.Scale(a, u))

	if math.Abs(d-sum) <= TangentEpsilon || math.Abs(d-diff) <= TangentEpsilon {
		return []Vec{base}
	}

	h := math.Sqrt(math.Max(0, r1*r1-a*a))
	n := r2.Scale(h, Perp(u))
	return []Vec{r2.Add(base, n), r2.Sub(base, n)}
}

// CircleFromThree returns the center of the circle through a, b and c, or
// false when the points are collinear.
func CircleFromThree(a, b, c Vec) (Vec, bool) {
	// |x|^2 - |a|^2 = 2 x·(p - a) for p in {b, c}
	abx, aby := b.X-a.X, b.Y-a.Y
	acx, acy := c.X-a.X, c.Y-a.Y
	det := abx*acy - aby*acx
	scale := math.Max(r2.Norm2(r2.Sub(b, a)), r2.Norm2(r2.Sub(c, a)))
	if scale < Epsilon || math.Abs(det) < Epsilon*scale {
		return Vec{}, false
	}

	A := mat.NewDense(2, 2, []float64{
		2 * abx, 2 * aby,
		2 * acx, 2 * acy,
	})
	rhs := mat.NewVecDense(2, []float64{
		r2.Norm2(b) - r2.Norm2(a),
		r2.Norm2(c) - r2.Norm2(a),
	})
	var x mat.VecDense
	if err := x.SolveVec(A, rhs); err != nil {
		return Vec{}, false
	}
	center := Vec{X: x.AtVec(0), Y: x.AtVec(1)}
	if math.IsNaN(center.X) || math.IsNaN(center.Y) {
		return Vec{}, false
	}
	return center, true
}
