package gridmap

import (
	"fmt"

	"github.com/open-teleop/dashboard/pkg/geometry"
)

// Render repaints s with grid and, when pose is non-nil, the robot marker.
// The surface is always cleared first; a degenerate grid leaves it blank and
// returns an error wrapping ErrDegenerateGrid.
func Render(s Surface, grid *OccupancyGrid, pose *geometry.Pose) error {
	s.Clear()

	if err := grid.Validate(); err != nil {
		return err
	}
	canvasW, canvasH := s.Size()
	if canvasW <= 0 || canvasH <= 0 {
		return fmt.Errorf("%w: canvas %dx%d", ErrDegenerateGrid, canvasW, canvasH)
	}

	layout := ComputeLayout(canvasW, canvasH, grid.Width, grid.Height)
	s.Blit(Rasterize(grid), layout.OffsetX, layout.OffsetY, layout.Width(), layout.Height())

	if pose != nil {
		m := PlaceMarker(grid, layout, *pose)
		s.DrawMarker(m.X, m.Y, m.Angle)
	}
	return nil
}
