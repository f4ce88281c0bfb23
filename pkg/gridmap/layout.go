package gridmap

import (
	"math"

	"github.com/open-teleop/dashboard/pkg/geometry"
)

// Layout places a grid on a canvas with a uniform scale, centered.
type Layout struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	// Grid dimensions in cells, kept for the marker flip.
	GridWidth  int
	GridHeight int
}

// ComputeLayout fits a gridW x gridH raster into a canvasW x canvasH canvas
// without distortion.
func ComputeLayout(canvasW, canvasH, gridW, gridH int) Layout {
	scale := math.Min(float64(canvasW)/float64(gridW), float64(canvasH)/float64(gridH))
	return Layout{
		Scale:      scale,
		OffsetX:    (float64(canvasW) - float64(gridW)*scale) / 2,
		OffsetY:    (float64(canvasH) - float64(gridH)*scale) / 2,
		GridWidth:  gridW,
		GridHeight: gridH,
	}
}

// Width is the scaled raster width on the canvas.
func (l Layout) Width() float64 { return float64(l.GridWidth) * l.Scale }

// Height is the scaled raster height on the canvas.
func (l Layout) Height() float64 { return float64(l.GridHeight) * l.Scale }

// CellToCanvas converts already-flipped cell coordinates to canvas pixels.
func (l Layout) CellToCanvas(cellX, cellY float64) (float64, float64) {
	return l.OffsetX + cellX*l.Scale, l.OffsetY + cellY*l.Scale
}

// MarkerPlacement is where and how the robot marker is drawn.
type MarkerPlacement struct {
	X     float64
	Y     float64
	Angle float64
}

// PlaceMarker converts a map-frame pose into canvas coordinates and the
// screen rotation for a marker whose tip points up at angle zero.
func PlaceMarker(g *OccupancyGrid, l Layout, pose geometry.Pose) MarkerPlacement {
	cellX := (pose.Position.X - g.Origin.X) / g.Resolution
	cellY := (pose.Position.Y - g.Origin.Y) / g.Resolution
	flippedCellY := float64(g.Height-1) - cellY

	x, y := l.CellToCanvas(cellX, flippedCellY)
	yaw := geometry.Yaw(pose.Orientation)
	return MarkerPlacement{
		X:     x,
		Y:     y,
		Angle: -yaw + math.Pi/2,
	}
}
