package overlay

import (
	"context"
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"screen-capture-extractor/src/screenshot"
)

// fyneSelector shows a frozen screenshot in a full-screen window and lets the user drag a
// rectangle over it. Escape, closing the window or a plain click cancels.
type fyneSelector struct {
	app fyne.App
}

// NewSelector returns the full-screen selector. Select must not be called from the fyne
// thread.
func NewSelector(a fyne.App) Selector {
	return &fyneSelector{app: a}
}

type selection struct {
	region screenshot.Region
	ok     bool
}

func (s *fyneSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	screen, err := screenshot.VirtualBounds()
	if err != nil {
		return screenshot.Region{}, false, err
	}
	shot, err := screenshot.CaptureDisplay()
	if err != nil {
		return screenshot.Region{}, false, err
	}

	done := make(chan selection, 1)
	var (
		win    fyne.Window
		closed bool
	)
	// finish only runs on the fyne thread.
	finish := func(sel selection) {
		if closed {
			return
		}
		closed = true
		done <- sel
		win.Close()
	}

	fyne.DoAndWait(func() {
		win = s.app.NewWindow("Select region")
		win.SetPadded(false)
		win.SetContent(newSelectArea(shot, screen, func(r screenshot.Region, ok bool) {
			finish(selection{region: r, ok: ok})
		}))
		win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			if ev.Name == fyne.KeyEscape {
				finish(selection{})
			}
		})
		win.SetOnClosed(func() { finish(selection{}) })
		win.SetFullScreen(true)
		win.Show()
	})
	log.Debug().Str("screen", screen.String()).Msg("region selector shown")

	select {
	case sel := <-done:
		if !sel.ok {
			log.Debug().Msg("region selection cancelled")
			return screenshot.Region{}, true, nil
		}
		log.Info().Str("region", sel.region.String()).Msg("region selected")
		return sel.region, false, nil
	case <-ctx.Done():
		fyne.Do(func() { finish(selection{}) })
		return screenshot.Region{}, false, ctx.Err()
	}
}

// selectArea paints the screenshot and the rubber band rectangle.
type selectArea struct {
	widget.BaseWidget

	screen   image.Rectangle
	img      *canvas.Image
	band     *canvas.Rectangle
	start    fyne.Position
	end      fyne.Position
	dragging bool
	onDone   func(screenshot.Region, bool)
}

var (
	_ fyne.Draggable    = (*selectArea)(nil)
	_ desktop.Mouseable = (*selectArea)(nil)
)

func newSelectArea(shot image.Image, screen image.Rectangle, onDone func(screenshot.Region, bool)) *selectArea {
	a := &selectArea{screen: screen, onDone: onDone}
	a.img = canvas.NewImageFromImage(shot)
	a.img.FillMode = canvas.ImageFillStretch
	a.img.ScaleMode = canvas.ImageScaleFastest

	a.band = canvas.NewRectangle(color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0x30})
	a.band.StrokeColor = color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	a.band.StrokeWidth = 2
	a.band.Hide()

	a.ExtendBaseWidget(a)
	return a
}

func (a *selectArea) CreateRenderer() fyne.WidgetRenderer {
	shade := canvas.NewRectangle(color.NRGBA{A: 0x50})
	return widget.NewSimpleRenderer(container.NewStack(a.img, shade, container.NewWithoutLayout(a.band)))
}

func (a *selectArea) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		a.dragging = false
		a.onDone(screenshot.Region{}, false)
		return
	}
	a.start, a.end = ev.Position, ev.Position
	a.dragging = true
	a.redraw()
}

func (a *selectArea) MouseUp(ev *desktop.MouseEvent) {
	if !a.dragging {
		return
	}
	a.end = ev.Position
	a.complete()
}

func (a *selectArea) Dragged(ev *fyne.DragEvent) {
	if !a.dragging {
		a.start = ev.Position.Subtract(ev.Dragged)
		a.dragging = true
	}
	a.end = ev.Position
	a.redraw()
}

func (a *selectArea) DragEnd() {
	if a.dragging {
		a.complete()
	}
}

func (a *selectArea) complete() {
	a.dragging = false
	r, ok := regionBetween(a.start, a.end, a.Size(), a.screen)
	a.onDone(r, ok)
}

func (a *selectArea) redraw() {
	left := fyne.NewPos(min(a.start.X, a.end.X), min(a.start.Y, a.end.Y))
	size := fyne.NewSize(abs32(a.end.X-a.start.X), abs32(a.end.Y-a.start.Y))
	a.band.Move(left)
	a.band.Resize(size)
	a.band.Show()
	a.band.Refresh()
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
