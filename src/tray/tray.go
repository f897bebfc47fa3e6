package tray

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/rs/zerolog/log"
)

// Config holds the tray menu callbacks. Nil callbacks hide their item.
type Config struct {
	Hotkey          string
	QuickSaveHotkey string
	OnShow          func()
	OnCapture       func()
	OnQuickSave     func()
	OnRemoveLast    func()
}

// Setup installs the system tray menu when the driver supports one. It reports whether
// a tray is available. Fyne adds its own Quit item.
func Setup(a fyne.App, cfg Config) bool {
	desk, ok := a.(desktop.App)
	if !ok {
		log.Warn().Msg("system tray not supported by this driver")
		return false
	}
	desk.SetSystemTrayIcon(Icon)
	desk.SetSystemTrayMenu(fyne.NewMenu("Screen Capture Extractor", Items(cfg)...))
	return true
}

// Items builds the menu entries.
func Items(cfg Config) []*fyne.MenuItem {
	var items []*fyne.MenuItem
	add := func(label string, fn func()) {
		if fn != nil {
			items = append(items, fyne.NewMenuItem(label, fn))
		}
	}
	add("Show window", cfg.OnShow)
	add(withHotkey("Capture + save", cfg.Hotkey), cfg.OnCapture)
	add(withHotkey("Quick save (last region)", cfg.QuickSaveHotkey), cfg.OnQuickSave)
	add("Remove last row", cfg.OnRemoveLast)
	return items
}

func withHotkey(label, hotkey string) string {
	if hotkey == "" {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, hotkey)
}
