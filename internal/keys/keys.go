// Package keys defines the key vocabulary, chords and raw event translation.
package keys

import (
	"fmt"
	"sort"
	"strings"
)

// Modifier is a chord modifier.
type Modifier string

// Supported modifiers.
const (
	Alt   Modifier = "alt"
	Ctrl  Modifier = "ctrl"
	Meta  Modifier = "meta"
	Shift Modifier = "shift"
)

// Key is a base key from the closed vocabulary.
type Key string

// Chord is a set of modifiers pressed together with one base key.
type Chord struct {
	Modifiers []Modifier `json:"modifiers,omitempty"`
	Key       Key        `json:"key"`
}

var vocabulary = func() map[Key]struct{} {
	names := []string{
		"enter", "escape", "tab", "space", "backspace", "delete",
		"up", "down", "left", "right",
		"home", "end", "pageup", "pagedown",
		"[", "]", "\\", ";", "'", ",", ".", "/", "`", "-", "=",
		"+", "*", "^", "$", "%", "#", "@", "!", "~", "{", "}",
	}
	for c := 'a'; c <= 'z'; c++ {
		names = append(names, string(c))
	}
	for c := '0'; c <= '9'; c++ {
		names = append(names, string(c))
	}
	for i := 1; i <= 12; i++ {
		names = append(names, fmt.Sprintf("f%d", i))
	}
	out := make(map[Key]struct{}, len(names))
	for _, n := range names {
		out[Key(n)] = struct{}{}
	}
	return out
}()

// aliases maps host key names onto the vocabulary. Numpad keys fold onto
// their main-keyboard counterparts.
var aliases = func() map[string]Key {
	out := map[string]Key{
		"numpadenter":    "enter",
		"numpadadd":      "+",
		"numpadsubtract": "-",
		"numpadmultiply": "*",
		"numpaddivide":   "/",
		"numpaddecimal":  ".",
		"numpadequal":    "=",
	}
	for c := '0'; c <= '9'; c++ {
		out["numpad"+string(c)] = Key(string(c))
	}
	for k, v := range baseAliases {
		out[k] = v
	}
	return out
}()

var baseAliases = map[string]Key{
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	" ":          "space",
	"return":     "enter",
	"esc":        "escape",
	"del":        "delete",
	"pgup":       "pageup",
	"pgdown":     "pagedown",
	"pgdn":       "pagedown",
}

var modifierNames = map[string]Modifier{
	"ctrl":    Ctrl,
	"control": Ctrl,
	"shift":   Shift,
	"alt":     Alt,
	"option":  Alt,
	"meta":    Meta,
	"cmd":     Meta,
	"command": Meta,
	"super":   Meta,
}

// NormalizeKey maps a raw key name to a vocabulary key.
func NormalizeKey(raw string) (Key, bool) {
	lower := strings.ToLower(raw)
	if k, ok := aliases[lower]; ok {
		return k, true
	}
	k := Key(lower)
	if _, ok := vocabulary[k]; ok {
		return k, true
	}
	return "", false
}

// Valid reports whether k belongs to the vocabulary.
func Valid(k Key) bool {
	_, ok := vocabulary[k]
	return ok
}

// NormalizeModifiers returns a sorted, deduplicated copy.
func NormalizeModifiers(mods []Modifier) []Modifier {
	if len(mods) == 0 {
		return nil
	}
	seen := make(map[Modifier]struct{}, len(mods))
	out := make([]Modifier, 0, len(mods))
	for _, m := range mods {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New builds a chord with normalized modifiers.
func New(key Key, mods ...Modifier) Chord {
	return Chord{Modifiers: NormalizeModifiers(mods), Key: key}
}

// Has reports whether the chord carries the modifier.
func (c Chord) Has(m Modifier) bool {
	for _, have := range c.Modifiers {
		if have == m {
			return true
		}
	}
	return false
}

// Equal compares base keys and modifier sets, ignoring modifier order.
func Equal(a, b Chord) bool {
	if a.Key != b.Key {
		return false
	}
	am := NormalizeModifiers(a.Modifiers)
	bm := NormalizeModifiers(b.Modifiers)
	if len(am) != len(bm) {
		return false
	}
	for i := range am {
		if am[i] != bm[i] {
			return false
		}
	}
	return true
}

// EqualSequence compares two chord sequences position by position.
func EqualSequence(a, b []Chord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// String renders the chord in parseable form, e.g. "ctrl+shift+p".
func (c Chord) String() string {
	mods := NormalizeModifiers(c.Modifiers)
	parts := make([]string, 0, len(mods)+1)
	for _, m := range mods {
		parts = append(parts, string(m))
	}
	parts = append(parts, string(c.Key))
	return strings.Join(parts, "+")
}

// SequenceString renders a sequence in parseable form, e.g. "ctrl+w v".
func SequenceString(seq []Chord) string {
	parts := make([]string, len(seq))
	for i, c := range seq {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
