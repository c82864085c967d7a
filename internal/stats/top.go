package stats

import (
	"sort"

	"github.com/verte-zerg/keydrill/internal/model"
)

// TopBindingsByAttempts returns the ids of the n most drilled bindings.
func TopBindingsByAttempts(aggs []model.BindingAggregate, n int) []string {
	if n <= 0 || len(aggs) == 0 {
		return nil
	}
	items := make([]model.BindingAggregate, len(aggs))
	copy(items, aggs)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Attempts == items[j].Attempts {
			return items[i].BindingID < items[j].BindingID
		}
		return items[i].Attempts > items[j].Attempts
	})
	n = min(n, len(items))
	out := make([]string, 0, n)
	for _, item := range items[:n] {
		out = append(out, item.BindingID)
	}
	return out
}
