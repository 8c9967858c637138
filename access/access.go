// Package access builds the rasterized accessibility mask (§4.D): the
// union of buffered access lines (minus an optional inner buffer),
// intersected with the raster extent, rasterized with all-touched
// semantics into a co-registered byte band where 1 marks accessible
// pixels.
package access

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/terrastrata/geosample/geo"
)

// Mask is a rasterized accessibility mask co-registered with a primary
// raster (§3 "Access mask").
type Mask struct {
	width, height int
	transform     geo.Affine
	data          []byte // 1 = accessible, 0 = not; row-major
	// AccessibleArea is the geodesic area of the accessible polygon clipped
	// to the raster extent, used to calibrate the probability bitmask
	// (§4.B "access_ratio").
	AccessibleArea float64
}

// Build constructs a Mask from a set of line geometries read from layer,
// with outer and inner buffer distances (§4.D "Build"). inner == 0 means no
// inner buffer is subtracted.
func Build(ctx context.Context, ops geo.VectorOps, layer geo.VectorLayer, width, height int, transform geo.Affine, outer, inner float64) (*Mask, error) {
	var union, innerUnion geo.Geometry
	for {
		g, ok, err := layer.Next(ctx)
		if err != nil {
			return nil, errors.E(err, "access: failed reading layer", layer.Name())
		}
		if !ok {
			break
		}
		if g.Type() != geo.GeomLineString && g.Type() != geo.GeomMultiLineString {
			return nil, errors.E("access: layer contains non-line geometry", layer.Name())
		}
		buffered := ops.Buffer(g, outer)
		if union == nil {
			union = buffered
		} else {
			union = ops.Union(union, buffered)
		}
		if inner > 0 {
			innerBuffered := ops.Buffer(g, inner)
			if innerUnion == nil {
				innerUnion = innerBuffered
			} else {
				innerUnion = ops.Union(innerUnion, innerBuffered)
			}
		}
	}
	if union == nil {
		return nil, errors.E("access: no line geometry found in layer", layer.Name())
	}
	if inner > 0 {
		// Subtract the union of each line's own inner buffer, per §4.D --
		// not an erosion of the outer-buffered union, which is not
		// equivalent near corners, line endpoints, or where nearby lines'
		// buffers overlap.
		union = ops.Difference(union, innerUnion)
	}

	extent := extentPolygon(width, height, transform)
	clipped := ops.Intersection(union, extent)
	area := ops.Area(clipped)

	data := make([]byte, width*height)
	ops.Rasterize(clipped, transform, width, height, 1, data)

	return &Mask{width: width, height: height, transform: transform, data: data, AccessibleArea: area}, nil
}

// extentPolygon is a minimal rectangle geometry covering the raster grid,
// used only to intersect the access union against the raster bounds. It
// satisfies geo.Geometry with its four corner points; VectorOps
// implementations interpret a 4-point, non-point geometry type contextually
// (mirrors how the core treats geometry as an opaque handle per §6).
type rectGeometry struct {
	pts []geo.Point
}

func (r rectGeometry) Type() geo.GeometryType { return geo.GeomPolygon }
func (r rectGeometry) Points() []geo.Point    { return r.pts }

func extentPolygon(width, height int, t geo.Affine) geo.Geometry {
	x0, y0 := t.ToWorld(0, 0)
	x1, y1 := t.ToWorld(width, 0)
	x2, y2 := t.ToWorld(width, height)
	x3, y3 := t.ToWorld(0, height)
	return rectGeometry{pts: []geo.Point{{X: x0, Y: y0}, {X: x1, Y: y1}, {X: x2, Y: y2}, {X: x3, Y: y3}}}
}

// Accessible reports whether pixel (x, y) is marked accessible. Per §4.D's
// documented polarity, the current core tests mask[p] != 1 to reject, i.e.
// Accessible returns data[p] == 1.
func (m *Mask) Accessible(x, y int) bool {
	return m.data[y*m.width+x] == 1
}

// band adapts Mask to geo.Band so it can be handed to raster.Pipeline as
// the access band without a round trip through a real dataset.
type band struct{ m *Mask }

// AsBand returns an in-memory geo.Band view of the mask.
func (m *Mask) AsBand() geo.Band { return band{m: m} }

func (b band) PixelType() geo.PixelType        { return geo.Uint8 }
func (b band) NoData() (float64, bool)         { return 0, false }
func (b band) NativeBlockSize() geo.BlockSize  { return geo.BlockSize{BX: b.m.width, BY: b.m.height} }

func (b band) ReadBlock(ctx context.Context, bx, by int, dst []byte) (int, int, error) {
	if bx != 0 || by != 0 {
		return 0, 0, errors.E("access: mask band has a single full-raster block")
	}
	copy(dst, b.m.data)
	return b.m.width, b.m.height, nil
}

func (b band) ReadWindow(ctx context.Context, x, y, w, h int, dst []byte) error {
	for row := 0; row < h; row++ {
		srcOff := (y+row)*b.m.width + x
		dstOff := row * w
		copy(dst[dstOff:dstOff+w], b.m.data[srcOff:srcOff+w])
	}
	return nil
}

func (b band) WriteWindow(ctx context.Context, x, y, w, h int, src []byte) error {
	return errors.E("access: mask band is read-only")
}
