package effects

import (
	"math/rand/v2"
)

// Region names the part of the image a Ken Burns shot starts on.
type Region string

const (
	RegionCenter       Region = "center"
	RegionTopLeft      Region = "top_left"
	RegionTopRight     Region = "top_right"
	RegionBottomLeft   Region = "bottom_left"
	RegionBottomRight  Region = "bottom_right"
	RegionTopCenter    Region = "top_center"
	RegionBottomCenter Region = "bottom_center"
	RegionLeftCenter   Region = "left_center"
	RegionRightCenter  Region = "right_center"
)

// Regions lists every region in selection order.
var Regions = []Region{
	RegionCenter,
	RegionTopLeft,
	RegionTopRight,
	RegionBottomLeft,
	RegionBottomRight,
	RegionTopCenter,
	RegionBottomCenter,
	RegionLeftCenter,
	RegionRightCenter,
}

// Anchors as a fraction of the frame. Corners sit 1/20 in from the edge,
// edge midpoints 1/15.
const (
	cornerMargin = 1.0 / 20
	edgeMargin   = 1.0 / 15
	middle       = 0.5
)

// RandomRegion picks a region uniformly.
func RandomRegion(rng *rand.Rand) Region {
	return Regions[rng.IntN(len(Regions))]
}

// Focus returns the focal point of the region as fractions of width and height.
func (r Region) Focus() (fx, fy float64) {
	switch r {
	case RegionTopLeft:
		return cornerMargin, cornerMargin
	case RegionTopRight:
		return 1 - cornerMargin, cornerMargin
	case RegionBottomLeft:
		return cornerMargin, 1 - cornerMargin
	case RegionBottomRight:
		return 1 - cornerMargin, 1 - cornerMargin
	case RegionTopCenter:
		return middle, edgeMargin
	case RegionBottomCenter:
		return middle, 1 - edgeMargin
	case RegionLeftCenter:
		return edgeMargin, middle
	case RegionRightCenter:
		return 1 - edgeMargin, middle
	default:
		return middle, middle
	}
}

// Valid reports whether r is one of Regions.
func (r Region) Valid() bool {
	for _, known := range Regions {
		if r == known {
			return true
		}
	}
	return false
}

// Origin returns the top-left corner of the visible window for an input of
// size w x h at the given zoom. The window is centred on the focal point and
// clamped so it never leaves the image.
func (r Region) Origin(w, h, zoom float64) (x, y float64) {
	fx, fy := r.Focus()
	return clampAxis(w, fx, zoom), clampAxis(h, fy, zoom)
}

func clampAxis(size, focus, zoom float64) float64 {
	window := size / zoom
	pos := size*focus - window/2
	return min(max(pos, 0), size-window)
}
