package overlay

import (
	"image"
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"

	"screen-capture-extractor/src/screenshot"
)

func TestToScreen(t *testing.T) {
	size := fyne.NewSize(960, 540)
	screen := image.Rect(-1920, 0, 1920, 1080)

	tests := []struct {
		name string
		pos  fyne.Position
		want image.Point
	}{
		{"origin", fyne.NewPos(0, 0), image.Pt(-1920, 0)},
		{"center", fyne.NewPos(480, 270), image.Pt(0, 540)},
		{"far corner", fyne.NewPos(960, 540), image.Pt(1920, 1080)},
		{"clamped", fyne.NewPos(-10, 600), image.Pt(-1920, 1080)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toScreen(tt.pos, size, screen))
		})
	}

	assert.Equal(t, screen.Min, toScreen(fyne.NewPos(5, 5), fyne.NewSize(0, 0), screen))
}

func TestRegionBetween(t *testing.T) {
	size := fyne.NewSize(1000, 500)
	screen := image.Rect(0, 0, 2000, 1000)

	r, ok := regionBetween(fyne.NewPos(300, 200), fyne.NewPos(100, 50), size, screen)
	assert.True(t, ok)
	assert.Equal(t, screenshot.Region{X: 200, Y: 100, Width: 400, Height: 300}, r)

	_, ok = regionBetween(fyne.NewPos(100, 100), fyne.NewPos(101, 300), size, screen)
	assert.False(t, ok, "a sliver is treated as a click")
}
