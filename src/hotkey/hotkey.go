package hotkey

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
	"github.com/rs/zerolog/log"
)

// Binding ties a combination like "Ctrl+Alt+S" to a callback.
type Binding struct {
	Combo  string
	Action func()
}

// Combo is a parsed key combination: every key must be held at once.
type Combo struct {
	name string
	keys []key
}

type key struct {
	name     string
	rawcodes []uint16
}

func (c Combo) String() string { return c.name }

// Parse validates a combination. Unknown key names are an error.
func Parse(s string) (Combo, error) {
	names := parseHotkey(s)
	if len(names) == 0 {
		return Combo{}, fmt.Errorf("empty hotkey %q", s)
	}
	c := Combo{name: s}
	for _, n := range names {
		codes := keyNameToRawcodes(n)
		if len(codes) == 0 {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", s, n)
		}
		c.keys = append(c.keys, key{name: n, rawcodes: codes})
	}
	return c, nil
}

var (
	startOnce sync.Once
	mu        sync.Mutex
	active    []*matcher
)

// Listen registers bindings on the shared keyboard hook. Blank combos are skipped;
// invalid ones are reported and nothing is registered. Callbacks run on the hook goroutine
// and should only post into the event loop.
func Listen(bindings ...Binding) error {
	var ms []*matcher
	for _, b := range bindings {
		if strings.TrimSpace(b.Combo) == "" {
			continue
		}
		c, err := Parse(b.Combo)
		if err != nil {
			return err
		}
		ms = append(ms, newMatcher(c, b.Action))
		log.Info().Str("hotkey", b.Combo).Msg("hotkey registered")
	}
	if len(ms) == 0 {
		return nil
	}

	mu.Lock()
	active = append(active, ms...)
	mu.Unlock()

	startOnce.Do(func() { go run() })
	return nil
}

func run() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("hotkey hook crashed")
		}
	}()

	evChan := gohook.Start()
	if evChan == nil {
		log.Error().Msg("gohook.Start() returned nil channel")
		return
	}
	defer gohook.End()

	for ev := range evChan {
		if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyUp {
			continue
		}
		mu.Lock()
		var fired []func()
		for _, m := range active {
			if ev.Kind == gohook.KeyDown {
				if m.press(ev.Rawcode) && m.action != nil {
					fired = append(fired, m.action)
				}
			} else {
				m.release(ev.Rawcode)
			}
		}
		mu.Unlock()

		for _, f := range fired {
			f()
		}
	}
	log.Debug().Msg("hotkey event channel closed")
}

// matcher tracks which keys of one combo are held.
type matcher struct {
	combo   Combo
	action  func()
	pressed []bool
}

func newMatcher(c Combo, action func()) *matcher {
	return &matcher{combo: c, action: action, pressed: make([]bool, len(c.keys))}
}

// press records a key down and reports whether the whole combo is now held.
// A completed combo resets, so holding the keys fires once.
func (m *matcher) press(rawcode uint16) bool {
	for i, k := range m.combo.keys {
		for _, rc := range k.rawcodes {
			if rc == rawcode {
				m.pressed[i] = true
			}
		}
	}
	for _, p := range m.pressed {
		if !p {
			return false
		}
	}
	log.Debug().Str("hotkey", m.combo.name).Msg("hotkey combination detected")
	for i := range m.pressed {
		m.pressed[i] = false
	}
	return true
}

func (m *matcher) release(rawcode uint16) {
	for i, k := range m.combo.keys {
		for _, rc := range k.rawcodes {
			if rc == rawcode {
				m.pressed[i] = false
			}
		}
	}
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names.
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			part = "ctrl"
		case "win", "super":
			part = "cmd"
		}
		keys = append(keys, part)
	}
	return keys
}

// Windows virtual key codes.
var specialKeys = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to its rawcodes. Modifiers map to both the left
// and right variant.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if keyName == "win" || keyName == "super" {
		keyName = "cmd"
	}
	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}
	if len(keyName) == 1 {
		switch c := keyName[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)} // VK_F1 = 112
		}
	}
	return nil
}
