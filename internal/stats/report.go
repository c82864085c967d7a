package stats

import (
	"context"

	"github.com/verte-zerg/keydrill/internal/model"
	"github.com/verte-zerg/keydrill/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Attempts       []model.Attempt
	BindingsAll    []model.BindingAggregate
	BindingsWindow []model.BindingAggregate
}

// BuildReport loads and prepares data for stats rendering. Attempts honour
// cfg.Last; BindingsAll covers the whole filter and BindingsWindow only the
// last cfg.CurveWindow attempts.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	attempts, err := st.ListAttempts(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	all, err := st.AggregateBindings(ctx, model.StatsConfig{Tool: cfg.Tool, Since: cfg.Since})
	if err != nil {
		return Report{}, err
	}
	return Report{
		Attempts:       attempts,
		BindingsAll:    all,
		BindingsWindow: Aggregate(lastAttempts(attempts, cfg.CurveWindow)),
	}, nil
}

func lastAttempts(attempts []model.Attempt, window int) []model.Attempt {
	if window <= 0 || len(attempts) <= window {
		return attempts
	}
	return attempts[len(attempts)-window:]
}
