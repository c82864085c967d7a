package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/keydrill/internal/keys"
)

type styledToken struct {
	s       string
	width   int
	isSpace bool
}

const hiddenKeycap = "?"

// buildKeycaps renders target as keycaps coloured by the typed prefix. When
// reveal is false untyped chords are masked. Typed chords past the target
// length are shown as mistakes.
func buildKeycaps(target, typed []keys.Chord, reveal bool) []styledToken {
	n := len(target)
	if len(typed) > n {
		n = len(typed)
	}
	out := make([]styledToken, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, spaceToken(keycapGap))
		}
		var label string
		style := pendingStyle
		switch {
		case i < len(typed) && i < len(target) && keys.Equal(typed[i], target[i]):
			label = keys.Format(typed[i])
			style = correctStyle
		case i < len(typed):
			label = keys.Format(typed[i])
			style = incorrectStyle
		case reveal:
			label = keys.Format(target[i])
		default:
			label = hiddenKeycap
		}
		if i == len(typed) && i < len(target) {
			style = cursorStyle
		}
		text := "[" + label + "]"
		out = append(out, styledToken{
			s:     style.Render(text),
			width: runewidth.StringWidth(text),
		})
	}
	return out
}

const keycapGap = " "

func spaceToken(s string) styledToken {
	return styledToken{s: s, width: runewidth.StringWidth(s), isSpace: true}
}

// styleText splits text into per-rune tokens so it can be wrapped.
func styleText(text string, style lipgloss.Style) []styledToken {
	out := make([]styledToken, 0, len(text))
	for _, r := range text {
		out = append(out, styledToken{
			s:       style.Render(string(r)),
			width:   runewidth.RuneWidth(r),
			isSpace: r == ' ',
		})
	}
	return out
}

func renderTokens(tokens []styledToken) string {
	var b strings.Builder
	for _, item := range tokens {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapTokens breaks tokens into lines no wider than width, preferring the
// last space on the line.
func wrapTokens(tokens []styledToken, width int) string {
	if width <= 0 {
		return renderTokens(tokens)
	}
	var out strings.Builder
	line := make([]styledToken, 0, len(tokens))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(tokens); {
		item := tokens[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				out.WriteString(renderTokens(line[:lastSpaceIdx]))
				out.WriteRune('\n')
				line = append([]styledToken{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				out.WriteString(renderTokens(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderTokens(line))
	return out.String()
}

func lineWidthOf(line []styledToken) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledToken) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
