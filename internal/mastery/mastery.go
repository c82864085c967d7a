// Package mastery maintains per-binding performance records and scores.
package mastery

import (
	"math"
	"time"

	"github.com/verte-zerg/keydrill/internal/model"
)

const (
	// SlowReaction is the reaction time at which speed stops contributing.
	SlowReaction = 5000 * time.Millisecond
	// DecayWindow is the recency decay constant.
	DecayWindow = 7 * 24 * time.Hour

	successWeight = 0.5
	speedWeight   = 0.3
	decayWeight   = 0.2
)

// Update folds one result into the previous record.
func Update(prev model.MasteryRecord, result model.Result, ts time.Time) model.MasteryRecord {
	next := prev
	next.BindingID = result.BindingID
	next.Attempts = prev.Attempts + 1
	if result.Success {
		next.Successes = prev.Successes + 1
		next.AvgReactionMs = (prev.AvgReactionMs*float64(prev.Successes) + float64(result.ReactionMs)) / float64(next.Successes)
	}
	if next.Successes == 0 {
		next.AvgReactionMs = 0
	}
	next.LastSeen = ts
	return next
}

// Score ranks a record in [0,1]; a never-attempted record scores 0.
func Score(rec model.MasteryRecord, now time.Time) float64 {
	if rec.Attempts <= 0 {
		return 0
	}
	successRate := float64(rec.Successes) / float64(rec.Attempts)
	speed := math.Max(0, 1-rec.AvgReactionMs/float64(SlowReaction.Milliseconds()))
	age := now.Sub(rec.LastSeen)
	if age < 0 {
		age = 0
	}
	decay := math.Exp(-float64(age) / float64(DecayWindow))
	score := successWeight*successRate + speedWeight*speed + decayWeight*decay
	return math.Min(1, math.Max(0, score))
}

// Apply returns a copy of state with result folded into its mastery table.
func Apply(state model.PersistedState, result model.Result, ts time.Time) model.PersistedState {
	table := make(map[string]model.MasteryRecord, len(state.Mastery)+1)
	for id, rec := range state.Mastery {
		table[id] = rec
	}
	prev, ok := table[result.BindingID]
	if !ok {
		prev = model.MasteryRecord{BindingID: result.BindingID}
	}
	table[result.BindingID] = Update(prev, result, ts)
	state.Mastery = table
	return state
}
