package tray

import (
	_ "embed"

	"fyne.io/fyne/v2"
)

// Selection rectangle over a small table.
//
//go:embed icon.svg
var iconSVG []byte

// Icon is the application and tray icon.
var Icon = fyne.NewStaticResource("icon.svg", iconSVG)
