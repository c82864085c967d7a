package stats

import (
	"sort"
	"time"

	"github.com/verte-zerg/keydrill/internal/mastery"
	"github.com/verte-zerg/keydrill/internal/model"
)

// WeakBinding is a binding with its current mastery score.
type WeakBinding struct {
	Binding model.Binding
	Score   float64
}

// SelectWeakBindings returns up to top bindings of tool with the lowest
// mastery score at now. Unseen bindings are skipped.
func SelectWeakBindings(tool model.ToolDefinition, table map[string]model.MasteryRecord, now time.Time, top int) []WeakBinding {
	var out []WeakBinding
	for _, b := range tool.Bindings {
		rec, ok := table[b.ID]
		if !ok || rec.Attempts == 0 {
			continue
		}
		out = append(out, WeakBinding{Binding: b, Score: mastery.Score(rec, now)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Binding.ID < out[j].Binding.ID
		}
		return out[i].Score < out[j].Score
	})
	if top > 0 && top < len(out) {
		out = out[:top]
	}
	return out
}
