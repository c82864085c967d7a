// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/model"
)

const sparkChars = " .:-=+*#%@"

// AttemptMetrics computes accuracy and the mean reaction time of successful
// attempts.
func AttemptMetrics(attempts []model.Attempt) (accuracy, avgReactionMs float64) {
	if len(attempts) == 0 {
		return 0, 0
	}
	var correct int
	var sum int64
	for _, a := range attempts {
		if a.Success {
			correct++
			sum += a.ReactionMs
		}
	}
	accuracy = float64(correct) / float64(len(attempts))
	if correct > 0 {
		avgReactionMs = float64(sum) / float64(correct)
	}
	return accuracy, avgReactionMs
}

// AggregateMetrics is AttemptMetrics for a pre-summed aggregate.
func AggregateMetrics(agg model.BindingAggregate) (accuracy, avgReactionMs float64) {
	if agg.Attempts == 0 {
		return 0, 0
	}
	accuracy = float64(agg.Successes) / float64(agg.Attempts)
	if agg.Successes > 0 {
		avgReactionMs = float64(agg.ReactionSumMs) / float64(agg.Successes)
	}
	return accuracy, avgReactionMs
}

// Aggregate sums attempts per binding, ordered by binding id.
func Aggregate(attempts []model.Attempt) []model.BindingAggregate {
	byID := map[string]*model.BindingAggregate{}
	for _, a := range attempts {
		agg, ok := byID[a.BindingID]
		if !ok {
			agg = &model.BindingAggregate{BindingID: a.BindingID}
			byID[a.BindingID] = agg
		}
		agg.Attempts++
		if a.Success {
			agg.Successes++
			agg.ReactionSumMs += a.ReactionMs
		}
	}
	out := make([]model.BindingAggregate, 0, len(byID))
	for _, agg := range byID {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BindingID < out[j].BindingID })
	return out
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Resample shrinks values to at most width points by averaging buckets.
func Resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		return values
	}
	out := make([]float64, width)
	for i := range out {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// RenderSummary prints a summary block for attempts.
func RenderSummary(w io.Writer, attempts []model.Attempt) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts found.")
		return err
	}
	acc, avg := AttemptMetrics(attempts)
	best := int64(0)
	bindings := map[string]struct{}{}
	for _, a := range attempts {
		bindings[a.BindingID] = struct{}{}
		if a.Success && (best == 0 || a.ReactionMs < best) {
			best = a.ReactionMs
		}
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Attempts: %d", len(attempts)),
		fmt.Sprintf("Bindings: %d", len(bindings)),
		fmt.Sprintf("Accuracy: %.2f%%", acc*100),
		fmt.Sprintf("Avg Reaction: %.0fms", avg),
		fmt.Sprintf("Best Reaction: %dms", best),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// CurveSeries returns per-attempt accuracy (0 or 100) and reaction series
// smoothed over window. Reaction only counts successes; failures carry the
// previous value forward.
func CurveSeries(attempts []model.Attempt, window int) (accuracy, reaction []float64) {
	accuracy = make([]float64, len(attempts))
	reaction = make([]float64, len(attempts))
	last := 0.0
	for i, a := range attempts {
		if a.Success {
			accuracy[i] = 100
			last = float64(a.ReactionMs)
		}
		reaction[i] = last
	}
	return MovingAverage(accuracy, window), MovingAverage(reaction, window)
}

// RenderCurves prints accuracy and reaction sparklines no wider than width.
func RenderCurves(w io.Writer, attempts []model.Attempt, window, width int) error {
	if len(attempts) == 0 {
		return nil
	}
	acc, react := CurveSeries(attempts, window)
	lines := []string{
		"Learning Curves",
		fmt.Sprintf("Accuracy  |%s| %.1f%%", Sparkline(Resample(acc, width)), acc[len(acc)-1]),
		fmt.Sprintf("Reaction  |%s| %.0fms", Sparkline(Resample(react, width)), react[len(react)-1]),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// BindingLabels maps binding ids to "Action" labels and formatted sequences.
func BindingLabels(tools []model.ToolDefinition) (actions, sequences map[string]string) {
	actions = map[string]string{}
	sequences = map[string]string{}
	for _, t := range tools {
		for _, b := range t.Bindings {
			actions[b.ID] = b.Action
			sequences[b.ID] = keys.FormatSequence(b.Sequence)
		}
	}
	return actions, sequences
}

// BindingRows builds sortable table rows, lowest accuracy first.
func BindingRows(aggs []model.BindingAggregate, actions, sequences map[string]string) [][]string {
	sorted := make([]model.BindingAggregate, len(aggs))
	copy(sorted, aggs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, _ := AggregateMetrics(sorted[i])
		aj, _ := AggregateMetrics(sorted[j])
		if ai == aj {
			return sorted[i].BindingID < sorted[j].BindingID
		}
		return ai < aj
	})
	rows := make([][]string, 0, len(sorted))
	for _, agg := range sorted {
		acc, avg := AggregateMetrics(agg)
		action := actions[agg.BindingID]
		if action == "" {
			action = agg.BindingID
		}
		rows = append(rows, []string{
			action,
			sequences[agg.BindingID],
			fmt.Sprintf("%.1f%%", acc*100),
			fmt.Sprintf("%.0f", avg),
			fmt.Sprintf("%d", agg.Attempts),
		})
	}
	return rows
}

// BindingHeaders are the column titles for BindingRows.
var BindingHeaders = []string{"Action", "Keys", "Accuracy", "Avg ms", "Attempts"}

// RenderBindingTable prints per-binding aggregates.
func RenderBindingTable(w io.Writer, aggs []model.BindingAggregate, actions, sequences map[string]string) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No binding stats found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Per-Binding"); err != nil {
		return err
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true}
	for _, line := range formatTable(BindingHeaders, BindingRows(aggs, actions, sequences), rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
