package geom

import (
	"math"
	"testing"
)

const tol = 1e-9

func approx(a, b Vec) bool {
	return math.Abs(a.X-b.X) < 1e-7 && math.Abs(a.Y-b.Y) < 1e-7
}

func TestIntersectLines(t *testing.T) {
	tests := []struct {
		name           string
		a1, a2, b1, b2 Vec
		want           Vec
		ok             bool
	}{
		{"axes", V(-1, 0), V(1, 0), V(0, -1), V(0, 1), V(0, 0), true},
		{"diagonals", V(0, 0), V(10, 10), V(0, 10), V(10, 0), V(5, 5), true},
		{"outside segments", V(0, 0), V(1, 0), V(5, 1), V(5, 2), V(5, 0), true},
		{"parallel", V(0, 0), V(1, 0), V(0, 1), V(1, 1), Vec{}, false},
		{"coincident", V(0, 0), V(1, 1), V(2, 2), V(3, 3), Vec{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IntersectLines(tt.a1, tt.a2, tt.b1, tt.b2)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !approx(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectLinesTranslationEquivariant(t *testing.T) {
	lines := [][4]Vec{
		{V(0, 0), V(10, 3), V(2, -4), V(1, 8)},
		{V(-3, 2), V(7, 7), V(0, 10), V(10, -1)},
		{V(1, 1), V(2, 5), V(-6, 0), V(4, 0.5)},
	}
	shifts := []Vec{V(0, 0), V(13.5, -7), V(-1e3, 2e3), V(0.25, 0.125)}

	for i, l := range lines {
		base, ok := IntersectLines(l[0], l[1], l[2], l[3])
		if !ok {
			t.Fatalf("case %d: expected intersection", i)
		}
		for _, s := range shifts {
			sh := func(v Vec) Vec { return V(v.X+s.X, v.Y+s.Y) }
			got, ok := IntersectLines(sh(l[0]), sh(l[1]), sh(l[2]), sh(l[3]))
			if !ok {
				t.Fatalf("case %d shift %v: lost intersection", i, s)
			}
			if want := sh(base); math.Abs(got.X-want.X) > 1e-6 || math.Abs(got.Y-want.Y) > 1e-6 {
				t.Errorf("case %d shift %v: got %v, want %v", i, s, got, want)
			}
		}
	}
}

func TestLineCircleIntersections(t *testing.T) {
	c := V(0, 0)

	got := LineCircleIntersections(V(-10, 0), V(10, 0), c, 5, false)
	if len(got) != 2 || !approx(got[0], V(-5, 0)) || !approx(got[1], V(5, 0)) {
		t.Fatalf("secant: got %v", got)
	}

	got = LineCircleIntersections(V(-10, 5), V(10, 5), c, 5, false)
	if len(got) != 1 || !approx(got[0], V(0, 5)) {
		t.Fatalf("tangent: got %v", got)
	}

	if got = LineCircleIntersections(V(-10, 6), V(10, 6), c, 5, false); len(got) != 0 {
		t.Fatalf("miss: got %v", got)
	}

	got = LineCircleIntersections(V(0, 0), V(10, 0), c, 5, true)
	if len(got) != 1 || !approx(got[0], V(5, 0)) {
		t.Fatalf("clamped: got %v", got)
	}

	if got = LineCircleIntersections(V(1, 1), V(1, 1), c, 5, false); got != nil {
		t.Fatalf("degenerate line: got %v", got)
	}
}

func TestCircleCircleIntersections(t *testing.T) {
	got := CircleCircleIntersections(V(0, 0), 5, V(8, 0), 5)
	if len(got) != 2 {
		t.Fatalf("got %d roots, want 2", len(got))
	}
	if !approx(got[0], V(4, 3)) || !approx(got[1], V(4, -3)) {
		t.Errorf("roots = %v, want (4,3) (4,-3)", got)
	}

	got = CircleCircleIntersections(V(0, 0), 5, V(10, 0), 5)
	if len(got) != 1 || !approx(got[0], V(5, 0)) {
		t.Errorf("external tangency = %v, want [(5,0)]", got)
	}

	got = CircleCircleIntersections(V(0, 0), 5, V(2, 0), 3)
	if len(got) != 1 || !approx(got[0], V(5, 0)) {
		t.Errorf("internal tangency = %v, want [(5,0)]", got)
	}

	cases := []struct {
		name   string
		c2     Vec
		r2     float64
		expect int
	}{
		{"too far", V(10.5, 0), 5, 0},
		{"contained", V(1, 0), 1, 0},
		{"concentric", V(0, 0), 3, 0},
		{"overlap", V(3, 4), 4, 2},
	}
	for _, tc := range cases {
		if n := len(CircleCircleIntersections(V(0, 0), 5, tc.c2, tc.r2)); n != tc.expect {
			t.Errorf("%s: got %d roots, want %d", tc.name, n, tc.expect)
		}
	}
}

func TestCircleCircleRootsLieOnBoth(t *testing.T) {
	c1, r1 := V(1, -2), 4.0
	c2, r2 := V(4, 1.5), 3.0
	for _, p := range CircleCircleIntersections(c1, r1, c2, r2) {
		if d := math.Abs(Dist(p, c1) - r1); d > 1e-9 {
			t.Errorf("root %v off circle 1 by %g", p, d)
		}
		if d := math.Abs(Dist(p, c2) - r2); d > 1e-9 {
			t.Errorf("root %v off circle 2 by %g", p, d)
		}
	}
}

func TestCircleFromThree(t *testing.T) {
	c, ok := CircleFromThree(V(5, 0), V(0, 5), V(-5, 0))
	if !ok || !approx(c, V(0, 0)) {
		t.Fatalf("center = %v (%v), want origin", c, ok)
	}

	c, ok = CircleFromThree(V(3, 1), V(1, 3), V(3, 5))
	if !ok || !approx(c, V(3, 3)) {
		t.Fatalf("center = %v (%v), want (3,3)", c, ok)
	}

	if _, ok := CircleFromThree(V(0, 0), V(1, 1), V(2, 2)); ok {
		t.Error("collinear points must not produce a circle")
	}
	if _, ok := CircleFromThree(V(1, 1), V(1, 1), V(1, 1)); ok {
		t.Error("coincident points must not produce a circle")
	}
}

func TestProjectionAndReflection(t *testing.T) {
	if got := ProjectOntoLine(V(3, 4), V(0, 0), V(10, 0)); !approx(got, V(3, 0)) {
		t.Errorf("ProjectOntoLine = %v", got)
	}
	if got := ProjectOntoCircle(V(0, 10), V(0, 0), 2); !approx(got, V(0, 2)) {
		t.Errorf("ProjectOntoCircle = %v", got)
	}
	if got := ReflectPoint(V(1, 1), V(2, 3)); !approx(got, V(3, 5)) {
		t.Errorf("ReflectPoint = %v", got)
	}
	got, ok := ReflectAcrossLine(V(1, 2), V(0, 0), V(1, 1))
	if !ok || !approx(got, V(2, 1)) {
		t.Errorf("ReflectAcrossLine = %v (%v)", got, ok)
	}
	if _, ok := ReflectAcrossLine(V(1, 2), V(1, 1), V(1, 1)); ok {
		t.Error("degenerate mirror line must be rejected")
	}
	if got := LineParam(V(5, 7), V(0, 0), V(10, 0)); math.Abs(got-0.5) > tol {
		t.Errorf("LineParam = %g", got)
	}
}
