package gridmap

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// Marker outline in its own frame: apex forward (up), 24 wide, 32 tall.
var markerOutline = [3]gg.Point{
	{X: 0, Y: -20},
	{X: -12, Y: 12},
	{X: 12, Y: 12},
}

// Surface is the drawing target a render paints into.
type Surface interface {
	Size() (width, height int)
	// Clear wipes the whole surface to transparent.
	Clear()
	// Blit draws src scaled into the canvas rectangle at (x, y) of size w x h.
	Blit(src image.Image, x, y, w, h float64)
	// DrawMarker fills the robot marker at (x, y) rotated by angle radians.
	DrawMarker(x, y, angle float64)
}

// Canvas is a Surface backed by a gg drawing context.
type Canvas struct {
	dc *gg.Context
}

var _ Surface = (*Canvas)(nil)

// NewCanvas allocates a transparent width x height canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{dc: gg.NewContext(width, height)}
}

func (c *Canvas) Size() (int, int) {
	return c.dc.Width(), c.dc.Height()
}

func (c *Canvas) Clear() {
	c.dc.SetColor(color.Transparent)
	c.dc.Clear()
}

// Blit uses nearest-neighbour sampling so each cell stays a solid block.
func (c *Canvas) Blit(src image.Image, x, y, w, h float64) {
	dst, ok := c.dc.Image().(xdraw.Image)
	if !ok {
		return
	}
	rect := image.Rect(
		int(math.Round(x)),
		int(math.Round(y)),
		int(math.Round(x+w)),
		int(math.Round(y+h)),
	)
	xdraw.NearestNeighbor.Scale(dst, rect, src, src.Bounds(), xdraw.Src, nil)
}

func (c *Canvas) DrawMarker(x, y, angle float64) {
	c.dc.Push()
	defer c.dc.Pop()

	c.dc.Translate(x, y)
	c.dc.Rotate(angle)
	c.dc.MoveTo(markerOutline[0].X, markerOutline[0].Y)
	for _, p := range markerOutline[1:] {
		c.dc.LineTo(p.X, p.Y)
	}
	c.dc.ClosePath()
	c.dc.SetColor(MarkerColor)
	c.dc.Fill()
}

// Image exposes the backing raster.
func (c *Canvas) Image() image.Image {
	return c.dc.Image()
}

// EncodePNG writes the current canvas contents as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}
