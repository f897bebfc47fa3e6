package gui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"screen-capture-extractor/src/table"
	"screen-capture-extractor/src/tray"
)

const maxLogLines = 200

// Actions are wired to the event loop.
type Actions struct {
	Capture    func()
	QuickSave  func()
	RemoveLast func()
}

// Window is the main application window: prompt, buttons, a preview of the table and a
// status log. Its methods are safe to call from any goroutine.
type Window struct {
	win   fyne.Window
	store *table.Store

	prompt   *widget.Entry
	grid     *widget.Table
	status   *widget.Label
	logView  *widget.Label
	progress *widget.ProgressBarInfinite
	buttons  []*widget.Button

	mu         sync.Mutex
	promptText string
	model      model
	logLines   []string
}

// New builds the window and loads the current table. Call it on the fyne thread or
// before the app runs.
func New(a fyne.App, store *table.Store, prompt string, actions Actions) *Window {
	w := &Window{
		win:        a.NewWindow("Screen Capture Extractor"),
		store:      store,
		promptText: prompt,
	}
	w.win.SetIcon(tray.Icon)

	w.prompt = widget.NewMultiLineEntry()
	w.prompt.SetPlaceHolder("What should be extracted from the captured region?")
	w.prompt.SetText(prompt)
	w.prompt.SetMinRowsVisible(3)
	w.prompt.Wrapping = fyne.TextWrapWord
	w.prompt.OnChanged = func(s string) {
		w.mu.Lock()
		w.promptText = s
		w.mu.Unlock()
	}

	capture := widget.NewButtonWithIcon("Capture + save", theme.ContentAddIcon(), actions.Capture)
	capture.Importance = widget.HighImportance
	quick := widget.NewButtonWithIcon("Quick save (last region)", theme.MediaReplayIcon(), actions.QuickSave)
	remove := widget.NewButtonWithIcon("Remove last row", theme.ContentUndoIcon(), actions.RemoveLast)
	reload := widget.NewButtonWithIcon("Reload", theme.ViewRefreshIcon(), func() { go w.Reload() })
	w.buttons = []*widget.Button{capture, quick, remove}

	w.progress = widget.NewProgressBarInfinite()
	w.progress.Stop()
	w.progress.Hide()

	w.status = widget.NewLabel("")
	w.status.Truncation = fyne.TextTruncateEllipsis
	w.logView = widget.NewLabel("")
	w.logView.Wrapping = fyne.TextWrapWord

	w.grid = widget.NewTable(
		func() (int, int) {
			w.mu.Lock()
			defer w.mu.Unlock()
			return w.model.dims()
		},
		func() fyne.CanvasObject {
			l := widget.NewLabel("template cell")
			l.Truncation = fyne.TextTruncateEllipsis
			return l
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			w.mu.Lock()
			text, header := w.model.cell(id.Row, id.Col)
			w.mu.Unlock()
			l := obj.(*widget.Label)
			l.TextStyle = fyne.TextStyle{Bold: header}
			l.SetText(text)
		},
	)

	top := container.NewVBox(
		widget.NewLabel("Prompt"),
		w.prompt,
		container.NewHBox(capture, quick, remove, reload, w.progress),
		w.status,
	)
	logs := container.NewVScroll(w.logView)
	logs.SetMinSize(fyne.NewSize(0, 90))
	split := container.NewVSplit(w.grid, logs)
	split.Offset = 0.8

	w.win.SetContent(container.NewBorder(top, nil, nil, nil, split))
	w.win.Resize(fyne.NewSize(960, 640))
	w.win.SetCloseIntercept(func() { w.win.Hide() })

	if err := w.load(); err != nil {
		w.status.SetText("Error: " + err.Error())
	} else {
		w.status.SetText(w.model.summary(store.Path()))
	}
	return w
}

// Prompt returns the current prompt text.
func (w *Window) Prompt() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.promptText
}

func (w *Window) Show() {
	fyne.Do(func() {
		w.win.Show()
	})
}

func (w *Window) ShowAndRun() { w.win.ShowAndRun() }

// SetBusy disables the action buttons while a request runs.
func (w *Window) SetBusy(busy bool) {
	fyne.Do(func() {
		for _, b := range w.buttons {
			if busy {
				b.Disable()
			} else {
				b.Enable()
			}
		}
		if busy {
			w.progress.Show()
			w.progress.Start()
		} else {
			w.progress.Stop()
			w.progress.Hide()
		}
	})
}

// Status shows msg in the status line and appends it to the log.
func (w *Window) Status(msg string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format(time.TimeOnly), msg)
	w.mu.Lock()
	w.logLines = append(w.logLines, line)
	if len(w.logLines) > maxLogLines {
		w.logLines = w.logLines[len(w.logLines)-maxLogLines:]
	}
	text := strings.Join(w.logLines, "\n")
	w.mu.Unlock()

	fyne.Do(func() {
		w.status.SetText(msg)
		w.logView.SetText(text)
	})
}

// Changed reloads the table after a save or removal.
func (w *Window) Changed(path string) {
	go w.Reload()
}

// Reload re-reads the table file and refreshes the grid.
func (w *Window) Reload() {
	if err := w.load(); err != nil {
		w.Status("Error: " + err.Error())
		return
	}
	fyne.Do(func() { w.grid.Refresh() })
}

func (w *Window) load() error {
	t, err := w.store.Load()
	if err != nil {
		log.Error().Err(err).Str("path", w.store.Path()).Msg("failed to load table")
		return err
	}
	m := newModel(t)
	w.mu.Lock()
	w.model = m
	w.mu.Unlock()
	return nil
}
