package keys

import (
	"fmt"
	"strings"
)

// RawKey is a host key-down event before translation.
type RawKey struct {
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

var pureModifiers = map[string]struct{}{
	"control": {},
	"ctrl":    {},
	"shift":   {},
	"alt":     {},
	"meta":    {},
	"os":      {},
}

// shiftedSymbols already encode shift in the symbol itself.
var shiftedSymbols = map[Key]struct{}{
	"!": {}, "@": {}, "#": {}, "$": {}, "%": {}, "^": {}, "*": {},
	"+": {}, "~": {}, "{": {}, "}": {},
}

// FromRaw translates a raw event into a chord. Pure modifier presses and keys
// outside the vocabulary report false.
func FromRaw(ev RawKey) (Chord, bool) {
	if _, ok := pureModifiers[strings.ToLower(ev.Key)]; ok {
		return Chord{}, false
	}
	shift := ev.Shift
	raw := ev.Key
	if len(raw) == 1 && raw[0] >= 'A' && raw[0] <= 'Z' {
		shift = true
	}
	key, ok := NormalizeKey(raw)
	if !ok {
		return Chord{}, false
	}
	if _, ok := shiftedSymbols[key]; ok {
		shift = false
	}
	var mods []Modifier
	if ev.Ctrl {
		mods = append(mods, Ctrl)
	}
	if shift {
		mods = append(mods, Shift)
	}
	if ev.Alt {
		mods = append(mods, Alt)
	}
	if ev.Meta {
		mods = append(mods, Meta)
	}
	return New(key, mods...), true
}

// ParseChord parses strings such as "ctrl+shift+p", "cmd+k" or "G".
func ParseChord(s string) (Chord, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Chord{}, fmt.Errorf("empty chord")
	}
	if len(s) == 1 {
		return parseBase(s, nil)
	}
	var mods []Modifier
	rest := s
	for {
		idx := strings.Index(rest, "+")
		if idx <= 0 || idx == len(rest)-1 {
			break
		}
		name := strings.ToLower(strings.TrimSpace(rest[:idx]))
		mod, ok := modifierNames[name]
		if !ok {
			return Chord{}, fmt.Errorf("unknown modifier %q in %q", name, s)
		}
		mods = append(mods, mod)
		rest = rest[idx+1:]
	}
	return parseBase(strings.TrimSpace(rest), mods)
}

func parseBase(base string, mods []Modifier) (Chord, error) {
	if len(base) == 1 && base[0] >= 'A' && base[0] <= 'Z' {
		mods = append(mods, Shift)
	}
	key, ok := NormalizeKey(base)
	if !ok {
		return Chord{}, fmt.Errorf("unknown key %q", base)
	}
	return New(key, mods...), nil
}

// ParseSequence parses whitespace-separated chords, e.g. "ctrl+w v".
func ParseSequence(s string) ([]Chord, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty sequence")
	}
	out := make([]Chord, 0, len(fields))
	for _, f := range fields {
		c, err := ParseChord(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Format renders a chord for display, e.g. "Ctrl+Shift+P".
func Format(c Chord) string {
	var parts []string
	if c.Has(Ctrl) {
		parts = append(parts, "Ctrl")
	}
	if c.Has(Alt) {
		parts = append(parts, "Alt")
	}
	if c.Has(Shift) {
		parts = append(parts, "Shift")
	}
	if c.Has(Meta) {
		parts = append(parts, "⌘")
	}
	parts = append(parts, displayKey(c.Key))
	return strings.Join(parts, "+")
}

// FormatSequence renders a sequence for display.
func FormatSequence(seq []Chord) string {
	parts := make([]string, len(seq))
	for i, c := range seq {
		parts[i] = Format(c)
	}
	return strings.Join(parts, " → ")
}

func displayKey(k Key) string {
	switch k {
	case "space":
		return "Space"
	case "enter":
		return "Enter"
	case "escape":
		return "Esc"
	case "tab":
		return "Tab"
	case "backspace":
		return "Backspace"
	case "delete":
		return "Del"
	case "up":
		return "↑"
	case "down":
		return "↓"
	case "left":
		return "←"
	case "right":
		return "→"
	case "pageup":
		return "PgUp"
	case "pagedown":
		return "PgDn"
	case "home":
		return "Home"
	case "end":
		return "End"
	}
	return strings.ToUpper(string(k))
}
