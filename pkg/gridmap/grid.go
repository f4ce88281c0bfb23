// Package gridmap rasterizes occupancy grids for the dashboard map view and
// overlays the robot marker at its map-frame pose.
package gridmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Cell values carried by nav_msgs/OccupancyGrid.
const (
	CellUnknown int8 = -1
	CellFree    int8 = 0
)

var (
	// UnknownColor fills cells that have never been observed.
	UnknownColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	// FreeColor fills cells known to be empty.
	FreeColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	// OccupiedColor fills every other cell regardless of probability.
	OccupiedColor = color.RGBA{A: 255}
	// MarkerColor fills the robot marker.
	MarkerColor = color.RGBA{R: 255, A: 255}
)

// ErrDegenerateGrid is returned for grids that cannot be laid out on a canvas.
var ErrDegenerateGrid = errors.New("degenerate occupancy grid")

// Origin is the map-frame position of cell (0, 0), in meters.
type Origin struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OccupancyGrid is one full map snapshot. Data is row-major with row 0 at
// the bottom of the map.
type OccupancyGrid struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution float64 `json:"resolution"`
	Origin     Origin  `json:"origin"`
	Data       []int8  `json:"data"`
}

// Validate reports whether the grid can be rendered.
func (g *OccupancyGrid) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil grid", ErrDegenerateGrid)
	}
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrDegenerateGrid, g.Width, g.Height)
	}
	if !(g.Resolution > 0) {
		return fmt.Errorf("%w: resolution %v", ErrDegenerateGrid, g.Resolution)
	}
	if len(g.Data) != g.Width*g.Height {
		return fmt.Errorf("%w: %d cells for %dx%d grid", ErrDegenerateGrid, len(g.Data), g.Width, g.Height)
	}
	return nil
}

// CellColor classifies a cell into unknown, free or occupied.
func CellColor(v int8) color.RGBA {
	switch v {
	case CellUnknown:
		return UnknownColor
	case CellFree:
		return FreeColor
	default:
		return OccupiedColor
	}
}

// Rasterize paints one pixel per cell, flipping rows so the grid's bottom row
// lands at the bottom of the image. The grid must be valid.
func Rasterize(g *OccupancyGrid) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i, v := range g.Data {
		x := i % g.Width
		y := i / g.Width
		flippedY := (g.Height - 1) - y
		c := CellColor(v)
		off := img.PixOffset(x, flippedY)
		img.Pix[off] = c.R
		img.Pix[off+1] = c.G
		img.Pix[off+2] = c.B
		img.Pix[off+3] = c.A
	}
	return img
}
