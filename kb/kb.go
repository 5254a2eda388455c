// Package kb provides keyboard code mappings for use with CDP Input events.
//
// This file hand-maintains the smaller, named subset of keys that
// press_key's tool schema actually needs: printable characters plus the
// named non-printable keys an agent would plausibly ask to press.
package kb

import "unicode"

// Key describes one physical/logical key for Input.dispatchKeyEvent: the DOM
// "code" and "key" values, the text a char event should carry (empty for
// non-printable keys), and the legacy Windows virtual-key code CDP still
// expects in windowsVirtualKeyCode.
type Key struct {
	Code       string
	Key        string
	Text       string
	Unmodified string
	Windows    int
	Shift      bool
	Print      bool
}

// Named is the table of keys addressable by name in press_key's "key"
// argument, keyed case-sensitively on the key's name. Most are
// non-printable; Enter, Tab and Space are marked Print and carry char text.
var Named = map[string]Key{
	"Enter":      {Code: "Enter", Key: "Enter", Text: "\r", Unmodified: "\r", Windows: 0x0d, Print: true},
	"Tab":        {Code: "Tab", Key: "Tab", Text: "\t", Unmodified: "\t", Windows: 0x09, Print: true},
	"Backspace":  {Code: "Backspace", Key: "Backspace", Windows: 0x08},
	"Delete":     {Code: "Delete", Key: "Delete", Windows: 0x2e},
	"Escape":     {Code: "Escape", Key: "Escape", Windows: 0x1b},
	"Space":      {Code: "Space", Key: " ", Text: " ", Unmodified: " ", Windows: 0x20, Print: true},
	"ArrowUp":    {Code: "ArrowUp", Key: "ArrowUp", Windows: 0x26},
	"ArrowDown":  {Code: "ArrowDown", Key: "ArrowDown", Windows: 0x28},
	"ArrowLeft":  {Code: "ArrowLeft", Key: "ArrowLeft", Windows: 0x25},
	"ArrowRight": {Code: "ArrowRight", Key: "ArrowRight", Windows: 0x27},
	"Home":       {Code: "Home", Key: "Home", Windows: 0x24},
	"End":        {Code: "End", Key: "End", Windows: 0x23},
	"PageUp":     {Code: "PageUp", Key: "PageUp", Windows: 0x21},
	"PageDown":   {Code: "PageDown", Key: "PageDown", Windows: 0x22},
}

// Encode returns the Key for a single printable rune, synthesizing its Code
// from the US QWERTY layout for letters and digits. Non-ASCII runes still
// get a usable Key/Text pair for the "char" event CDP expects; their Code is
// left blank since DOM code assignment for non-US layouts isn't meaningful
// without the full generated table.
func Encode(r rune) Key {
	switch {
	case r >= 'a' && r <= 'z':
		return Key{Code: "Key" + string(unicode.ToUpper(r)), Key: string(r), Text: string(r), Unmodified: string(r), Windows: int(unicode.ToUpper(r)), Print: true}
	case r >= 'A' && r <= 'Z':
		return Key{Code: "Key" + string(r), Key: string(r), Text: string(r), Unmodified: string(unicode.ToLower(r)), Windows: int(r), Shift: true, Print: true}
	case r >= '0' && r <= '9':
		return Key{Code: "Digit" + string(r), Key: string(r), Text: string(r), Unmodified: string(r), Windows: int(r), Print: true}
	default:
		return Key{Key: string(r), Text: string(r), Unmodified: string(r), Print: true}
	}
}

// Lookup resolves a press_key name to its Key, first checking the Named
// table and falling back to Encode for single-rune names.
func Lookup(name string) (Key, bool) {
	if k, ok := Named[name]; ok {
		return k, true
	}
	r := []rune(name)
	if len(r) == 1 {
		return Encode(r[0]), true
	}
	return Key{}, false
}
