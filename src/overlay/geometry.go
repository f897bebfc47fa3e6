package overlay

import (
	"image"
	"math"

	"fyne.io/fyne/v2"

	"screen-capture-extractor/src/screenshot"
)

// toScreen maps a position on the selector canvas to virtual-screen pixels. The canvas
// shows the whole virtual screen stretched over size.
func toScreen(p fyne.Position, size fyne.Size, screen image.Rectangle) image.Point {
	if size.Width <= 0 || size.Height <= 0 {
		return screen.Min
	}
	fx := math.Min(math.Max(float64(p.X/size.Width), 0), 1)
	fy := math.Min(math.Max(float64(p.Y/size.Height), 0), 1)
	return image.Point{
		X: screen.Min.X + int(math.Round(fx*float64(screen.Dx()))),
		Y: screen.Min.Y + int(math.Round(fy*float64(screen.Dy()))),
	}
}

// regionBetween converts a drag on the canvas into a screen region. Drags smaller than
// MinSize on either edge are rejected.
func regionBetween(a, b fyne.Position, size fyne.Size, screen image.Rectangle) (screenshot.Region, bool) {
	p0 := toScreen(a, size, screen)
	p1 := toScreen(b, size, screen)
	r := screenshot.RegionFromCorners(p0.X, p0.Y, p1.X, p1.Y)
	if r.Width < MinSize || r.Height < MinSize {
		return screenshot.Region{}, false
	}
	return r, true
}
