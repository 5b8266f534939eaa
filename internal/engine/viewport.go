package engine

import (
	"math"

	"github.com/inamate/geoconstruct/internal/geom"
)

// Matrix2D represents a 2D affine transformation matrix.
// Layout: [a, b, c, d, e, f] representing:
// | a  c  e |
// | b  d  f |
// | 0  0  1 |
type Matrix2D [6]float64

func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Multiply returns m * other: other is applied first, then m.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],
		m[1]*other[0] + m[3]*other[1],
		m[0]*other[2] + m[2]*other[3],
		m[1]*other[2] + m[3]*other[3],
		m[0]*other[4] + m[2]*other[5] + m[4],
		m[1]*other[4] + m[3]*other[5] + m[5],
	}
}

func (m Matrix2D) Apply(v geom.Vec) geom.Vec {
	return geom.V(m[0]*v.X+m[2]*v.Y+m[4], m[1]*v.X+m[3]*v.Y+m[5])
}

func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of the matrix, or Identity if not invertible.
func (m Matrix2D) Invert() Matrix2D {
	det := m.Determinant()
	if det == 0 {
		return Identity()
	}
	inv := 1.0 / det
	return Matrix2D{
		m[3] * inv,
		-m[1] * inv,
		-m[2] * inv,
		m[0] * inv,
		(m[2]*m[5] - m[3]*m[4]) * inv,
		(m[1]*m[4] - m[0]*m[5]) * inv,
	}
}

// ToSlice returns the matrix as a float64 slice for JSON serialization.
func (m Matrix2D) ToSlice() []float64 {
	return []float64{m[0], m[1], m[2], m[3], m[4], m[5]}
}

// Viewport maps world coordinates (y up) onto a canvas (y down). The world
// point Center is drawn in the middle of a Width×Height canvas at Zoom
// pixels per world unit.
type Viewport struct {
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Center geom.Vec `json:"center"`
	Zoom   float64  `json:"zoom"`
}

func DefaultViewport() Viewport {
	return Viewport{Width: 800, Height: 600, Zoom: 1}
}

func (v Viewport) zoom() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// Matrix returns the world→screen transform.
func (v Viewport) Matrix() Matrix2D {
	z := v.zoom()
	return Translate(v.Width/2, v.Height/2).
		Multiply(Scale(z, -z)).
		Multiply(Translate(-v.Center.X, -v.Center.Y))
}

func (v Viewport) ToScreen(world geom.Vec) geom.Vec {
	return v.Matrix().Apply(world)
}

func (v Viewport) ToWorld(screen geom.Vec) geom.Vec {
	return v.Matrix().Invert().Apply(screen)
}

// WorldBounds returns the visible world rectangle.
func (v Viewport) WorldBounds() Rect {
	z := v.zoom()
	w, h := v.Width/z, v.Height/z
	return Rect{X: v.Center.X - w/2, Y: v.Center.Y - h/2, Width: w, Height: h}
}

// ZoomAt scales the view by factor while keeping the world point under
// the screen position anchor fixed.
func (v Viewport) ZoomAt(anchor geom.Vec, factor float64) Viewport {
	if factor <= 0 || math.IsNaN(factor) {
		return v
	}
	before := v.ToWorld(anchor)
	v.Zoom = v.zoom() * factor
	after := v.ToWorld(anchor)
	v.Center = geom.V(v.Center.X+before.X-after.X, v.Center.Y+before.Y-after.Y)
	return v
}

// Pan moves the view by a screen-space offset.
func (v Viewport) Pan(dx, dy float64) Viewport {
	z := v.zoom()
	v.Center = geom.V(v.Center.X-dx/z, v.Center.Y+dy/z)
	return v
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Contains(p geom.Vec) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func (r Rect) Center() geom.Vec {
	return geom.V(r.X+r.Width/2, r.Y+r.Height/2)
}

func rectAround(c geom.Vec, half float64) Rect {
	return Rect{X: c.X - half, Y: c.Y - half, Width: 2 * half, Height: 2 * half}
}
