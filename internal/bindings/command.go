package bindings

import (
	"regexp"
	"strings"
	"unicode"
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

type categoryRule struct {
	category string
	needles  []string
}

// Rules are checked in order; the first hit wins.
var categoryRules = []categoryRule{
	{"navigation", []string{"cursor", "navigate", "goto", "scroll"}},
	{"search", []string{"find", "search", "replace"}},
	{"edit", []string{"delete", "copy", "cut", "paste", "undo", "redo", "comment", "indent", "format", "fold", "unfold", "Line", "insert"}},
	{"debug", []string{"debug", "breakpoint"}},
	{"terminal", []string{"terminal"}},
	{"editor", []string{"editor", "split", "close", "focus"}},
	{"view", []string{"view", "sidebar", "panel", "zoom", "toggle"}},
	{"file", []string{"file", "save", "open"}},
	{"intellisense", []string{"suggest", "snippet", "trigger"}},
	{"refactor", []string{"refactor", "rename", "quickFix"}},
	{"ai", []string{"composer", "chat", "ai"}},
}

// CategorizeCommand guesses a category from an editor command id such as
// "workbench.action.files.save".
func CategorizeCommand(command string) string {
	for _, rule := range categoryRules {
		for _, needle := range rule.needles {
			if strings.Contains(command, needle) {
				return rule.category
			}
		}
	}
	return defaultCategory
}

// HumanizeCommand turns the last segment of a command id into a label:
// "editor.action.commentLine" becomes "Comment line".
func HumanizeCommand(command string) string {
	last := command
	if i := strings.LastIndex(command, "."); i >= 0 {
		last = command[i+1:]
	}
	var b strings.Builder
	for _, r := range last {
		switch {
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || r == '_':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	words := strings.TrimSpace(b.String())
	if words == "" {
		return command
	}
	runes := []rune(words)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// CommandID derives a binding id from a tool and command id.
func CommandID(tool, command string) string {
	return tool + "-" + strings.ToLower(nonAlnum.ReplaceAllString(command, "-"))
}
