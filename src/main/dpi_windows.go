//go:build windows

package main

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows"
)

// enableDPIAwareness sets per-monitor DPI awareness so captured pixels match selector
// coordinates on scaled displays.
func enableDPIAwareness() {
	shcore := windows.NewLazySystemDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret != 0 {
			log.Warn().Uint64("code", uint64(ret)).Msg("failed to set per-monitor DPI awareness")
		}
		return
	}

	user32 := windows.NewLazySystemDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		log.Warn().Msg("no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
		log.Warn().Msg("failed to set system DPI awareness")
	}
}
