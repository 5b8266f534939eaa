package document

// NewSampleDocument returns a small construction used by the playground:
// two crossing lines, a circle, and their intersection points.
func NewSampleDocument() *Document {
	f := func(v float64) *float64 { return &v }
	stroke := Style{Stroke: "#e0e0e0", StrokeWidth: 2}
	dot := Style{Fill: "#4a90d9", PointRadius: 4}
	derived := Style{Fill: "#e67e22", PointRadius: 4}

	return &Document{
		Version: 1,
		Points: []Point{
			{ID: "pt_a", Label: "A", X: -200, Y: -100, Style: dot, Kind: KindFree, Children: []string{"ln_ab"}},
			{ID: "pt_b", Label: "B", X: 200, Y: 100, Style: dot, Kind: KindFree, Children: []string{"ln_ab"}},
			{ID: "pt_c", Label: "C", X: -200, Y: 100, Style: dot, Kind: KindFree, Children: []string{"ln_cd"}},
			{ID: "pt_d", Label: "D", X: 200, Y: -100, Style: dot, Kind: KindFree, Children: []string{"ln_cd"}},
			{ID: "pt_o", Label: "O", X: 0, Y: 0, Style: dot, Kind: KindFree, Children: []string{"circ_o"}},
			{ID: "pt_r", Label: "R", X: 120, Y: 0, Style: dot, Kind: KindFree, Children: []string{"circ_o"}},
			{
				ID: "pt_e", Label: "E", X: 0, Y: 0, Style: derived, Kind: KindIntersection,
				Parents: []Ref{LineRef("ln_ab"), LineRef("ln_cd")},
			},
			{
				ID: "pt_f", Label: "F", X: 0, Y: 120, Style: derived, Kind: KindOnObject,
				Parents: []Ref{CircleRef("circ_o")}, Param: f(1.5707963267948966),
			},
		},
		Lines: []Line{
			{ID: "ln_ab", Label: "a", Points: []string{"pt_a", "pt_e", "pt_b"}, Defining: [2]string{"pt_a", "pt_b"}, Style: stroke},
			{ID: "ln_cd", Label: "b", Points: []string{"pt_c", "pt_e", "pt_d"}, Defining: [2]string{"pt_c", "pt_d"}, Style: stroke},
		},
		Circles: []Circle{
			{
				ID: "circ_o", Label: "c", Kind: CircleCenterRadius, Center: "pt_o", RadiusPoint: "pt_r",
				Perimeter: []string{"pt_r", "pt_f"}, Radius: 120, Style: stroke,
			},
		},
		Angles:   []Angle{},
		Polygons: []Polygon{},
		Counters: Counters{Points: 8, Lines: 2, Circles: 1},
	}
}
