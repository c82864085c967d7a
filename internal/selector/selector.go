// Package selector picks the next binding to drill.
package selector

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/verte-zerg/keydrill/internal/mastery"
	"github.com/verte-zerg/keydrill/internal/model"
)

// TopK is the size of the shortlist the pick is drawn from.
const TopK = 5

const (
	difficultyWeight = 0.2
	weaknessWeight   = 0.5
	recencyWeight    = 0.3
	recencyWindow    = 24 * time.Hour
)

// Scored is a candidate binding with its composite score.
type Scored struct {
	Binding model.Binding
	Score   float64
}

// Selector draws bindings with a bias toward weak and stale ones.
type Selector struct {
	rnd *rand.Rand
}

// New returns a Selector seeded with the current time.
func New() *Selector {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource returns a Selector drawing from src.
func NewWithSource(src rand.Source) *Selector {
	return &Selector{rnd: rand.New(src)}
}

// Select returns the next binding. It never fails for a tool with bindings.
// The game mode does not influence the draw.
func (s *Selector) Select(tool model.ToolDefinition, table map[string]model.MasteryRecord, _ model.GameMode, modeID string, now time.Time) model.Binding {
	ranked := Rank(tool, table, modeID, now)
	if len(ranked) == 0 {
		return model.Binding{}
	}
	top := TopK
	if top > len(ranked) {
		top = len(ranked)
	}
	return ranked[s.rnd.Intn(top)].Binding
}

// Candidates filters tool bindings to modeID, falling back to every binding
// when the filter leaves nothing.
func Candidates(tool model.ToolDefinition, modeID string) []model.Binding {
	if modeID == "" || len(tool.Modes) == 0 {
		return tool.Bindings
	}
	out := make([]model.Binding, 0, len(tool.Bindings))
	for _, b := range tool.Bindings {
		if b.Mode == "" || b.Mode == modeID {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return tool.Bindings
	}
	return out
}

// Rank scores every candidate and sorts them best first.
func Rank(tool model.ToolDefinition, table map[string]model.MasteryRecord, modeID string, now time.Time) []Scored {
	candidates := Candidates(tool, modeID)
	scored := make([]Scored, 0, len(candidates))
	for _, b := range candidates {
		scored = append(scored, Scored{Binding: b, Score: score(b, table, now)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func score(b model.Binding, table map[string]model.MasteryRecord, now time.Time) float64 {
	difficulty := b.Difficulty
	if difficulty < 1 {
		difficulty = 1
	}
	rec, seen := table[b.ID]
	weakness := 1.0
	recency := 1.0
	if seen {
		weakness = 1 - mastery.Score(rec, now)
		recency = math.Min(1, float64(now.Sub(rec.LastSeen))/float64(recencyWindow))
		if recency < 0 {
			recency = 0
		}
	}
	return difficultyWeight/float64(difficulty) + weaknessWeight*weakness + recencyWeight*recency
}
