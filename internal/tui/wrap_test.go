package tui

import (
	"strings"
	"testing"

	"github.com/verte-zerg/keydrill/internal/keys"
)

func TestBuildKeycapsCursor(t *testing.T) {
	target := []keys.Chord{keys.New("g"), keys.New("g")}
	typed := []keys.Chord{keys.New("g")}

	tokens := buildKeycaps(target, typed, true)
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	if tokens[0].s != correctStyle.Render("[G]") {
		t.Fatalf("expected correct style for first keycap")
	}
	if !tokens[1].isSpace {
		t.Fatalf("expected gap between keycaps")
	}
	if tokens[2].s != cursorStyle.Render("[G]") {
		t.Fatalf("expected cursor style for second keycap")
	}
}

func TestBuildKeycapsHidden(t *testing.T) {
	target := []keys.Chord{keys.New("p", keys.Meta)}

	tokens := buildKeycaps(target, nil, false)
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if tokens[0].s != cursorStyle.Render("[?]") {
		t.Fatalf("expected masked keycap, got %q", tokens[0].s)
	}
}

func TestBuildKeycapsMistype(t *testing.T) {
	target := []keys.Chord{keys.New("p", keys.Meta)}
	typed := []keys.Chord{keys.New("o", keys.Meta), keys.New("x")}

	tokens := buildKeycaps(target, typed, true)
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	if tokens[0].s != incorrectStyle.Render("[⌘+O]") {
		t.Fatalf("expected incorrect style for wrong chord, got %q", tokens[0].s)
	}
	if tokens[2].s != incorrectStyle.Render("[X]") {
		t.Fatalf("expected overflow chord marked wrong")
	}
}

func TestBuildKeycapsWidth(t *testing.T) {
	tokens := buildKeycaps([]keys.Chord{keys.New("p", keys.Meta, keys.Shift)}, nil, true)
	// "[Shift+⌘+P]" is 11 cells wide.
	if tokens[0].width != 11 {
		t.Fatalf("expected width 11, got %d", tokens[0].width)
	}
}

func TestWrapTokensBreaksAtSpace(t *testing.T) {
	tokens := styleText("one two three", pendingStyle)
	out := wrapTokens(tokens, 8)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	if lines[0] != renderTokens(styleText("one two", pendingStyle)) {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
}

func TestWrapTokensHardBreak(t *testing.T) {
	tokens := styleText("abcdef", pendingStyle)
	out := wrapTokens(tokens, 4)
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one hard break, got %q", out)
	}
}
