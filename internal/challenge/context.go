package challenge

import "github.com/verte-zerg/keydrill/internal/model"

// Context map keys.
const (
	CtxMode        = "mode"
	CtxCursor      = "cursorPosition"
	CtxSelection   = "hasSelection"
	CtxWindowCount = "windowCount"
	CtxDirty       = "isDirty"
)

// FoldContext flattens context rules into a display map. Later rules of the
// same type win.
func FoldContext(rules []model.ContextRule) map[string]any {
	ctx := map[string]any{}
	for _, rule := range rules {
		switch rule.Type {
		case model.RuleMode:
			ctx[CtxMode] = rule.Value
		case model.RuleCursor:
			ctx[CtxCursor] = rule.Value
		case model.RuleSelection:
			ctx[CtxSelection] = rule.Value == "active"
		case model.RuleWindows:
			ctx[CtxWindowCount] = rule.Min
		case model.RuleFileState:
			ctx[CtxDirty] = rule.Value == "dirty"
		}
	}
	return ctx
}
