package stratified

import "github.com/grailbio/base/errors"

// FocalWindow implements the Queinnec rolling focal-window eligibility
// check (§3 "Focal-window matrix (Queinnec)", §4.G "Queinnec"). Two dense,
// row-cyclic boolean grids of height wrow and width equal to the raster
// width are kept, plus a third row-cyclic array of raw stratum values of
// the same shape for the vertical check, following §9's design note ("Encode the window as two
// dense row-cyclic arrays ... rather than a ring of sub-windows: the cache
// footprint is smaller and resetting a row is a single pass") and adapted
// from circular.Bitmap's row-cyclic reuse strategy in the teacher repo,
// specialized to plain bools since Queinnec's per-pixel state is a single
// flag rather than a bitset column.
type FocalWindow struct {
	wrow, wcol int
	width      int
	vpad, hpad int
	m          []bool    // homogeneous-horizontal-window flag, row-major cyclic
	valid      []bool    // individually-eligible flag, row-major cyclic
	raw        []float64 // raw stratum value at the window's centre column, row-major cyclic
}

// NewFocalWindow validates wrow/wcol are in {3,5,7} (§4.J / §7
// PreconditionFailure) and allocates the rolling buffers.
func NewFocalWindow(wrow, wcol, width int) (*FocalWindow, error) {
	if wrow != 3 && wrow != 5 && wrow != 7 {
		return nil, errors.E("stratified: wrow must be one of 3, 5, 7")
	}
	if wcol != 3 && wcol != 5 && wcol != 7 {
		return nil, errors.E("stratified: wcol must be one of 3, 5, 7")
	}
	return &FocalWindow{
		wrow: wrow, wcol: wcol, width: width,
		vpad: wrow / 2, hpad: wcol / 2,
		m:     make([]bool, wrow*width),
		valid: make([]bool, wrow*width),
		raw:   make([]float64, wrow*width),
	}, nil
}

// VPad/HPad expose the padding sizes so callers can compute the interior
// eligible column range [hpad, width-hpad) and the row lag (§4.G).
func (fw *FocalWindow) VPad() int { return fw.vpad }
func (fw *FocalWindow) HPad() int { return fw.hpad }

// Reset clears the row slot that `row` maps onto, before it is reused for a
// new raster row (§3 invariant "a row is cleared before reuse").
func (fw *FocalWindow) Reset(row int) {
	start := (row % fw.wrow) * fw.width
	for i := start; i < start+fw.width; i++ {
		fw.m[i] = false
		fw.valid[i] = false
		fw.raw[i] = 0
	}
}

// SetHomogeneous records whether the horizontal window of width wcol
// centred at column x on raster row `row` is homogeneous (§3 "m[row,col]").
func (fw *FocalWindow) SetHomogeneous(row, x int, v bool) {
	fw.m[(row%fw.wrow)*fw.width+x] = v
}

// SetValid records whether pixel (x, row) is individually eligible
// (§3 "valid[row,col]").
func (fw *FocalWindow) SetValid(row, x int, v bool) {
	fw.valid[(row%fw.wrow)*fw.width+x] = v
}

// SetValue records the raw stratum value at the window's centre column x
// on raster row `row`, so Check can additionally confirm the centre column
// is itself constant down all wrow rows of the window, not merely
// horizontally homogeneous on each row independently.
func (fw *FocalWindow) SetValue(row, x int, v float64) {
	fw.raw[(row%fw.wrow)*fw.width+x] = v
}

// Check reports whether column x is eligible as a Queinnec pixel centred
// on raster row `centerRow`: every one of the wrow rows currently held in
// the rolling buffer must be horizontally homogeneous at column x, the
// centre row's individual-eligibility flag must be set, and the raw
// stratum value at column x must be identical across all wrow rows (§4.G;
// a raster where every row is internally homogeneous but rows differ from
// each other is not a valid Queinnec neighbourhood).
func (fw *FocalWindow) Check(x, centerRow int) bool {
	first := fw.raw[x]
	for r := 0; r < fw.wrow; r++ {
		off := r*fw.width + x
		if !fw.m[off] {
			return false
		}
		if fw.raw[off] != first {
			return false
		}
	}
	return fw.valid[(centerRow%fw.wrow)*fw.width+x]
}
