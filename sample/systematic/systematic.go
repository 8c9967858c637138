// Package systematic implements the Systematic grid sampler (§4.H): a
// randomly placed and rotated square or hexagon tiling of the raster
// extent, with per-cell point placement and admission filtering.
package systematic

import (
	"context"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/terrastrata/geosample/access"
	"github.com/terrastrata/geosample/existing"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/prng"
)

// Shape selects the grid tiling.
type Shape string

const (
	ShapeSquare  Shape = "square"
	ShapeHexagon Shape = "hexagon"
)

// Location selects where within each cell the candidate point is drawn.
type Location string

const (
	LocationCenters Location = "centers"
	LocationCorners Location = "corners"
	LocationRandom  Location = "random"
)

const randomPlacementAttempts = 10

// Opts configures a Systematic run (§6 `systematic` op).
type Opts struct {
	CellSize float64
	Shape    Shape
	Location Location

	// ForceOrigin/ForceRotation override the random draws of step 1, used by
	// deterministic tests (§8 "Systematic-centers-square").
	ForceOrigin   *geo.Point
	ForceRotation *float64

	Existing *existing.Set
	Access   *access.Mask
	Ops      geo.VectorOps
	// Force requires every input band to be non-no-data at the candidate
	// pixel for the point to be admitted (§4.H step 4).
	Force bool
	Seed  uint64
}

// Result is the Systematic outcome.
type Result struct {
	Points []geo.Point
	Count  int
}

// Run executes the Systematic sampler over ds using opts.
func Run(ctx context.Context, ds geo.Dataset, opts Opts, out geo.OutputVectorLayer) (Result, error) {
	if opts.CellSize <= 0 {
		return Result{}, errors.E("systematic: cellSize must be > 0")
	}
	if opts.Shape != ShapeSquare && opts.Shape != ShapeHexagon {
		return Result{}, errors.E("systematic: shape must be 'square' or 'hexagon'")
	}
	if opts.Location != LocationCenters && opts.Location != LocationCorners && opts.Location != LocationRandom {
		return Result{}, errors.E("systematic: location must be one of 'centers', 'corners', 'random'")
	}

	width, height := ds.Width(), ds.Height()
	transform := ds.Transform()
	rng := prng.New(opts.Seed)

	// Extent corners come from the affine terms directly, since ToWorld
	// maps pixel centres rather than pixel edges.
	x0, y0 := transform.OX, transform.OY
	x1 := transform.OX + transform.SX*float64(width) + transform.RX*float64(height)
	y1 := transform.OY + transform.RY*float64(width) + transform.SY*float64(height)
	minX, maxX := math.Min(x0, x1), math.Max(x0, x1)
	minY, maxY := math.Min(y0, y1), math.Max(y0, y1)

	// Step 1: random origin inside the extent rectangle and random rotation
	// in [0, 180 degrees).
	var origin geo.Point
	if opts.ForceOrigin != nil {
		origin = *opts.ForceOrigin
	} else {
		origin = geo.Point{
			X: minX + prng.Uniform(rng)*(maxX-minX),
			Y: minY + prng.Uniform(rng)*(maxY-minY),
		}
	}
	rotation := prng.Uniform(rng) * math.Pi
	if opts.ForceRotation != nil {
		rotation = *opts.ForceRotation * math.Pi / 180
	}

	cells := buildCells(origin, rotation, opts.CellSize, opts.Shape, minX, minY, maxX, maxY)

	res := Result{}
	for _, cell := range cells {
		candidates := candidatePoints(cell, opts.Location, rng)
		for _, p := range candidates {
			if p.X < minX || p.X >= maxX || p.Y < minY || p.Y >= maxY {
				continue
			}
			if opts.Access != nil {
				inv, ok := transform.Invert()
				if !ok {
					return res, errors.E("systematic: raster transform is not invertible")
				}
				px, py := inv.ToPixel(p.X, p.Y)
				ix, iy := int(px), int(py)
				if ix < 0 || ix >= width || iy < 0 || iy >= height || !opts.Access.Accessible(ix, iy) {
					continue
				}
			}
			if opts.Existing != nil && opts.Existing.ContainsCoord(p.X, p.Y) {
				continue
			}
			if opts.Force && bandsAreNoData(ctx, ds, transform, p) {
				continue
			}
			if err := out.AppendPoint(p); err != nil {
				return res, errors.E(err, "systematic: append point failed")
			}
			res.Points = append(res.Points, p)
			res.Count++
			// Systematic grids place at most one point per cell: centers
			// yields one candidate, corners the first two ring vertices,
			// random up to several draws; the first admitted candidate wins.
			break
		}
	}
	return res, nil
}

// cell is a single tile polygon of the (possibly rotated) grid, already
// rotated back into the original frame, expressed by its ring vertices in
// the same order step 3 expects ("first two linear-ring vertices" for
// corners placement).
type cell struct {
	ring []geo.Point
}

// buildCells generates the rotated tiling and rotates each cell's vertices
// back by the same angle (§4.H steps 1-2). The geometry-algebra heavy
// lifting (grid generation proper) is delegated to an external layer in
// production; here the grid is built directly since square/hex tiling over
// an axis-aligned bounding box needs no general polygon boolean ops.
func buildCells(origin geo.Point, rotation, cellSize float64, shape Shape, minX, minY, maxX, maxY float64) []cell {
	cosT, sinT := math.Cos(rotation), math.Sin(rotation)
	rotate := func(x, y float64) (float64, float64) {
		return origin.X + x*cosT-y*sinT, origin.Y + x*sinT+y*cosT
	}

	// Bound the rotated-frame coordinates needed to cover the (unrotated)
	// extent by rotating the four extent corners into the grid frame.
	unrotate := func(X, Y float64) (float64, float64) {
		dx, dy := X-origin.X, Y-origin.Y
		return dx*cosT + dy*sinT, -dx*sinT + dy*cosT
	}
	corners := [][2]float64{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
	var gMinX, gMinY, gMaxX, gMaxY float64
	for i, c := range corners {
		gx, gy := unrotate(c[0], c[1])
		if i == 0 {
			gMinX, gMaxX, gMinY, gMaxY = gx, gx, gy, gy
		}
		if gx < gMinX {
			gMinX = gx
		}
		if gx > gMaxX {
			gMaxX = gx
		}
		if gy < gMinY {
			gMinY = gy
		}
		if gy > gMaxY {
			gMaxY = gy
		}
	}

	var cells []cell
	if shape == ShapeSquare {
		// Square lattice lines pass through the origin.
		for gy := math.Floor(gMinY/cellSize) * cellSize; gy < gMaxY; gy += cellSize {
			for gx := math.Floor(gMinX/cellSize) * cellSize; gx < gMaxX; gx += cellSize {
				ring := make([]geo.Point, 4)
				corners := [4][2]float64{{gx, gy}, {gx + cellSize, gy}, {gx + cellSize, gy + cellSize}, {gx, gy + cellSize}}
				for i, c := range corners {
					X, Y := rotate(c[0], c[1])
					ring[i] = geo.Point{X: X, Y: Y}
				}
				cells = append(cells, cell{ring: ring})
			}
		}
		return cells
	}

	// Hexagon tiling: flat-top hexagons of "radius" cellSize, offset rows.
	hexW := cellSize * math.Sqrt(3)
	hexH := cellSize * 1.5
	row := 0
	for gy := gMinY; gy < gMaxY+hexH; gy += hexH {
		xOff := 0.0
		if row%2 == 1 {
			xOff = hexW / 2
		}
		for gx := gMinX - hexW; gx < gMaxX+hexW; gx += hexW {
			cx, cy := gx+xOff, gy
			ring := make([]geo.Point, 6)
			for i := 0; i < 6; i++ {
				angle := math.Pi/3*float64(i) + math.Pi/6
				X, Y := rotate(cx+cellSize*math.Cos(angle), cy+cellSize*math.Sin(angle))
				ring[i] = geo.Point{X: X, Y: Y}
			}
			cells = append(cells, cell{ring: ring})
		}
		row++
	}
	return cells
}

func centroid(ring []geo.Point) geo.Point {
	var sx, sy float64
	for _, p := range ring {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(ring))
	return geo.Point{X: sx / n, Y: sy / n}
}

func boundingBox(ring []geo.Point) (minX, minY, maxX, maxY float64) {
	minX, minY = ring[0].X, ring[0].Y
	maxX, maxY = minX, minY
	for _, p := range ring[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return
}

// pointInRing is a standard ray-casting point-in-polygon test, used only by
// the `random` placement flavour to reject draws outside the (possibly
// non-rectangular hexagon) cell.
func pointInRing(ring []geo.Point, p geo.Point) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

func candidatePoints(c cell, location Location, rng *prng.Source) []geo.Point {
	switch location {
	case LocationCenters:
		return []geo.Point{centroid(c.ring)}
	case LocationCorners:
		return []geo.Point{c.ring[0], c.ring[1]}
	default: // LocationRandom
		minX, minY, maxX, maxY := boundingBox(c.ring)
		var pts []geo.Point
		for i := 0; i < randomPlacementAttempts; i++ {
			p := geo.Point{
				X: minX + prng.Uniform(rng)*(maxX-minX),
				Y: minY + prng.Uniform(rng)*(maxY-minY),
			}
			if pointInRing(c.ring, p) {
				pts = append(pts, p)
			}
		}
		return pts
	}
}

func bandsAreNoData(ctx context.Context, ds geo.Dataset, transform geo.Affine, p geo.Point) bool {
	inv, ok := transform.Invert()
	if !ok {
		return false
	}
	px, py := inv.ToPixel(p.X, p.Y)
	x, y := int(px), int(py)
	if x < 0 || y < 0 || x >= ds.Width() || y >= ds.Height() {
		return true
	}
	for i := 0; i < ds.NumBands(); i++ {
		band := ds.Band(i)
		nd, ok := band.NoData()
		if !ok {
			continue
		}
		buf := make([]byte, band.PixelType().ByteSize())
		if err := band.ReadWindow(ctx, x, y, 1, 1, buf); err != nil {
			return true
		}
		v := decodeOne(buf, band.PixelType())
		if v == nd {
			return true
		}
	}
	return false
}

func decodeOne(buf []byte, pt geo.PixelType) float64 {
	switch pt {
	case geo.Int8:
		return float64(int8(buf[0]))
	case geo.Uint8:
		return float64(buf[0])
	case geo.Int16:
		return float64(int16(uint16(buf[0]) | uint16(buf[1])<<8))
	case geo.Uint16:
		return float64(uint16(buf[0]) | uint16(buf[1])<<8)
	case geo.Int32:
		u := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		return float64(int32(u))
	case geo.Uint32:
		return float64(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
	case geo.Float32:
		u := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		return float64(math.Float32frombits(u))
	case geo.Float64:
		var u uint64
		for i := 7; i >= 0; i-- {
			u = u<<8 | uint64(buf[i])
		}
		return math.Float64frombits(u)
	default:
		return 0
	}
}
