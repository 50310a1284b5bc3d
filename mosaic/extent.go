package mosaic

import (
	"math"

	"github.com/go-spatial/geom"
)

// ExtentBuffer is the scale factor applied to the combined extent before zooming on it (+5%)
const ExtentBuffer = 1.05

// NewExtent returns the extent [minx, miny, maxx, maxy]
func NewExtent(bounds [4]float64) *geom.Extent {
	e := geom.Extent(bounds)
	return &e
}

// ValidExtent returns true if the extent is finite and not empty
func ValidExtent(e *geom.Extent) bool {
	if e == nil {
		return false
	}
	for _, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return e.MaxX() > e.MinX() && e.MaxY() > e.MinY()
}

// Union merges e into the combined extent. A nil combined extent is initialized with a copy of e.
func Union(combined, e *geom.Extent) *geom.Extent {
	if combined == nil {
		c := *e
		return &c
	}
	combined.Add(e)
	return combined
}

// Scale returns the extent scaled by factor around its center (width and height are multiplied by factor)
func Scale(e *geom.Extent, factor float64) *geom.Extent {
	cx, cy := (e.MinX()+e.MaxX())/2, (e.MinY()+e.MaxY())/2
	hw, hh := (e.MaxX()-e.MinX())*factor/2, (e.MaxY()-e.MinY())*factor/2
	return &geom.Extent{cx - hw, cy - hh, cx + hw, cy + hh}
}
