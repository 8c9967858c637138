// Package vectorfake provides in-memory geo.VectorLayer/geo.OutputVectorLayer
// fakes used by this module's own tests, in the spirit of
// bamprovider.fakeProvider.
package vectorfake

import (
	"context"
	"math"

	"github.com/terrastrata/geosample/geo"
)

// Geometry is a fake geo.Geometry holding its points directly.
type Geometry struct {
	GeomType geo.GeometryType
	Pts      []geo.Point
}

func (g Geometry) Type() geo.GeometryType { return g.GeomType }
func (g Geometry) Points() []geo.Point    { return g.Pts }

// Layer is a fake geo.VectorLayer that yields a fixed slice of geometries.
// It is only for unittests.
type Layer struct {
	name string
	srs  string
	geoms []Geometry
	pos   int
}

// NewLayer creates a Layer that returns geoms in order, then ok=false.
func NewLayer(name, srs string, geoms []Geometry) *Layer {
	return &Layer{name: name, srs: srs, geoms: geoms}
}

func (l *Layer) Name() string { return l.name }
func (l *Layer) SRS() string  { return l.srs }

func (l *Layer) Next(ctx context.Context) (geo.Geometry, bool, error) {
	if l.pos >= len(l.geoms) {
		return nil, false, nil
	}
	g := l.geoms[l.pos]
	l.pos++
	return g, true, nil
}

func (l *Layer) Close() error { return nil }

// OutputLayer is a fake geo.OutputVectorLayer that records appended points
// in memory, for assertions in tests without touching a filesystem.
type OutputLayer struct {
	Points []geo.Point
	// WriteErr, when set, is returned by Write; used to exercise error paths.
	WriteErr error
}

func NewOutputLayer() *OutputLayer { return &OutputLayer{} }

func (o *OutputLayer) AppendPoint(p geo.Point) error {
	o.Points = append(o.Points, p)
	return nil
}

func (o *OutputLayer) Write(ctx context.Context, path, ext string) error {
	return o.WriteErr
}

func (o *OutputLayer) Count() int { return len(o.Points) }

// Ops is a minimal fake geo.VectorOps: Buffer/Union/Intersection/Difference
// are no-ops returning their first argument, Area sums a polygon's ring via
// the shoelace formula, and Rasterize burns fill over every pixel whose
// center falls inside the geometry's ring using even-odd point-in-polygon.
// It is only for unittests exercising the access-mask builder.
type Ops struct{}

func (Ops) Buffer(g geo.Geometry, distance float64) geo.Geometry { return g }
func (Ops) Union(a, b geo.Geometry) geo.Geometry                 { return a }
func (Ops) Intersection(a, b geo.Geometry) geo.Geometry          { return a }
func (Ops) Difference(a, b geo.Geometry) geo.Geometry            { return a }

func (Ops) Area(g geo.Geometry) float64 {
	pts := g.Points()
	n := len(pts)
	if n < 3 {
		return 0
	}
	var area float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(area) / 2
}

func (Ops) Rasterize(g geo.Geometry, transform geo.Affine, w, h int, fill byte, dst []byte) {
	ring := g.Points()
	if len(ring) < 3 {
		return
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			wx, wy := transform.ToWorld(x, y)
			if pointInRing(ring, wx, wy) {
				dst[y*w+x] = fill
			}
		}
	}
}

// BufferCall records one Ops.Buffer invocation.
type BufferCall struct {
	Geometry geo.Geometry
	Distance float64
}

// BufferRecordingOps wraps Ops, recording every Buffer call so tests can
// assert which geometries a caller buffered and at what distance -- plain
// Ops can't distinguish "buffer each line, then union" from "buffer the
// union" since Buffer is an identity no-op either way.
type BufferRecordingOps struct {
	Ops
	Calls []BufferCall
}

func (o *BufferRecordingOps) Buffer(g geo.Geometry, distance float64) geo.Geometry {
	o.Calls = append(o.Calls, BufferCall{Geometry: g, Distance: distance})
	return o.Ops.Buffer(g, distance)
}

func pointInRing(ring []geo.Point, x, y float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if ((pi.Y > y) != (pj.Y > y)) &&
			(x < (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}
	return inside
}
