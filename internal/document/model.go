package document

import "encoding/json"

// Document is the plain-data view of a construction. It carries no
// behaviour and is what gets written to and read from storage.
type Document struct {
	Version  int       `json:"version"`
	Points   []Point   `json:"points"`
	Lines    []Line    `json:"lines"`
	Circles  []Circle  `json:"circles"`
	Angles   []Angle   `json:"angles"`
	Polygons []Polygon `json:"polygons"`
	Counters Counters  `json:"counters"`
}

// Counters count how many entities of each kind were ever created. They
// only grow, so labels derived from them are never reused after deletion.
type Counters struct {
	Points   int `json:"points"`
	Lines    int `json:"lines"`
	Circles  int `json:"circles"`
	Angles   int `json:"angles"`
	Polygons int `json:"polygons"`
}

type ConstructionKind string

const (
	KindFree         ConstructionKind = "free"
	KindOnObject     ConstructionKind = "on_object"
	KindIntersection ConstructionKind = "intersection"
	KindMidpoint     ConstructionKind = "midpoint"
	KindSymmetric    ConstructionKind = "symmetric"
)

type RefKind string

const (
	RefPoint   RefKind = "point"
	RefLine    RefKind = "line"
	RefCircle  RefKind = "circle"
	RefAngle   RefKind = "angle"
	RefPolygon RefKind = "polygon"
)

// Ref points at another entity by kind and id.
type Ref struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

func LineRef(id string) Ref   { return Ref{Kind: RefLine, ID: id} }
func CircleRef(id string) Ref { return Ref{Kind: RefCircle, ID: id} }
func PointRef(id string) Ref  { return Ref{Kind: RefPoint, ID: id} }

func (r Ref) IsZero() bool { return r.ID == "" }

// Style is passed through from the UI layer untouched.
type Style struct {
	Stroke      string  `json:"stroke,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	PointRadius float64 `json:"pointRadius,omitempty"`
	Dashed      bool    `json:"dashed,omitempty"`
}

type Point struct {
	ID       string           `json:"id"`
	Label    string           `json:"label,omitempty"`
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Style    Style            `json:"style"`
	Kind     ConstructionKind `json:"kind"`
	Parents  []Ref            `json:"parents,omitempty"`
	Children []string         `json:"children,omitempty"`
	Hidden   bool             `json:"hidden,omitempty"`

	// Param is the ride position of an on_object point: the fraction along
	// the parent line's defining points, or the polar angle on the parent
	// circle.
	Param *float64 `json:"param,omitempty"`

	Midpoint  *MidpointInfo  `json:"midpoint,omitempty"`
	Symmetric *SymmetricInfo `json:"symmetric,omitempty"`

	ParallelHelperFor      string `json:"parallelHelperFor,omitempty"`
	PerpendicularHelperFor string `json:"perpendicularHelperFor,omitempty"`
}

type MidpointInfo struct {
	Parents      [2]string `json:"parents"`
	ParentLineID string    `json:"parentLineId,omitempty"`
}

type SymmetricInfo struct {
	Source string `json:"source"`
	Mirror Ref    `json:"mirror"`
}

// IsHelper reports whether the point only encodes the direction of a
// parallel or perpendicular line.
func (p *Point) IsHelper() bool {
	return p.ParallelHelperFor != "" || p.PerpendicularHelperFor != ""
}

// HasParent reports whether ref is one of the point's parent references.
func (p *Point) HasParent(ref Ref) bool {
	for _, r := range p.Parents {
		if r == ref {
			return true
		}
	}
	return false
}

type Line struct {
	ID            string    `json:"id"`
	Label         string    `json:"label,omitempty"`
	Points        []string  `json:"points"`
	Defining      [2]string `json:"defining"`
	Parallel      *Directed `json:"parallel,omitempty"`
	Perpendicular *Directed `json:"perpendicular,omitempty"`
	Style         Style     `json:"style"`
	Hidden        bool      `json:"hidden,omitempty"`
}

// Directed is the metadata of a line constructed parallel or
// perpendicular to a reference line. HelperPoint sits at
// ThroughPoint + HelperOrientation*HelperDistance*dir, where dir is the
// reference direction (parallel) or its +90° rotation (perpendicular).
type Directed struct {
	ThroughPoint      string  `json:"throughPoint"`
	ReferenceLine     string  `json:"referenceLine"`
	HelperPoint       string  `json:"helperPoint"`
	HelperDistance    float64 `json:"helperDistance"`
	HelperOrientation float64 `json:"helperOrientation"`
}

type CircleKind string

const (
	CircleCenterRadius CircleKind = "center-radius"
	CircleThreePoint   CircleKind = "three-point"
)

type Circle struct {
	ID          string     `json:"id"`
	Label       string     `json:"label,omitempty"`
	Kind        CircleKind `json:"kind"`
	Center      string     `json:"center,omitempty"`
	RadiusPoint string     `json:"radiusPoint,omitempty"`
	Defining    [3]string  `json:"defining,omitempty"`
	Perimeter   []string   `json:"perimeter"`
	CX          float64    `json:"cx"`
	CY          float64    `json:"cy"`
	Radius      float64    `json:"radius"`
	Style       Style      `json:"style"`
	Hidden      bool       `json:"hidden,omitempty"`
}

// DefiningPoints returns the ids of the points that fix the circle.
func (c *Circle) DefiningPoints() []string {
	if c.Kind == CircleThreePoint {
		return c.Defining[:]
	}
	return []string{c.Center, c.RadiusPoint}
}

type Leg struct {
	Line         string `json:"line"`
	SegmentIndex int    `json:"segmentIndex"`
}

type Angle struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Vertex string `json:"vertex"`
	Legs   [2]Leg `json:"legs"`
	Style  Style  `json:"style"`
}

type Polygon struct {
	ID       string   `json:"id"`
	Label    string   `json:"label,omitempty"`
	Lines    []string `json:"lines"`
	Vertices []string `json:"vertices"`
	Style    Style    `json:"style"`
}

// NewEmptyDocument creates a document with no entities.
func NewEmptyDocument() *Document {
	return &Document{
		Version:  1,
		Points:   []Point{},
		Lines:    []Line{},
		Circles:  []Circle{},
		Angles:   []Angle{},
		Polygons: []Polygon{},
	}
}

// Parse decodes a document from JSON.
func Parse(data []byte) (*Document, error) {
	doc := NewEmptyDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Version:  d.Version,
		Counters: d.Counters,
		Points:   make([]Point, len(d.Points)),
		Lines:    make([]Line, len(d.Lines)),
		Circles:  make([]Circle, len(d.Circles)),
		Angles:   make([]Angle, len(d.Angles)),
		Polygons: make([]Polygon, len(d.Polygons)),
	}
	for i := range d.Points {
		out.Points[i] = d.Points[i].Clone()
	}
	for i := range d.Lines {
		out.Lines[i] = d.Lines[i].Clone()
	}
	for i := range d.Circles {
		out.Circles[i] = d.Circles[i].Clone()
	}
	copy(out.Angles, d.Angles)
	for i := range d.Polygons {
		out.Polygons[i] = d.Polygons[i].Clone()
	}
	return out
}

func (p Point) Clone() Point {
	p.Parents = append([]Ref(nil), p.Parents...)
	p.Children = append([]string(nil), p.Children...)
	if p.Param != nil {
		v := *p.Param
		p.Param = &v
	}
	if p.Midpoint != nil {
		m := *p.Midpoint
		p.Midpoint = &m
	}
	if p.Symmetric != nil {
		s := *p.Symmetric
		p.Symmetric = &s
	}
	return p
}

func (l Line) Clone() Line {
	l.Points = append([]string(nil), l.Points...)
	if l.Parallel != nil {
		d := *l.Parallel
		l.Parallel = &d
	}
	if l.Perpendicular != nil {
		d := *l.Perpendicular
		l.Perpendicular = &d
	}
	return l
}

func (c Circle) Clone() Circle {
	c.Perimeter = append([]string(nil), c.Perimeter...)
	return c
}

func (p Polygon) Clone() Polygon {
	p.Lines = append([]string(nil), p.Lines...)
	p.Vertices = append([]string(nil), p.Vertices...)
	return p
}
