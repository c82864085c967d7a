package mastery

import (
	"time"

	"github.com/verte-zerg/keydrill/internal/model"
)

// SessionStats are the running totals for one drill session.
type SessionStats struct {
	TotalAttempts   int
	CorrectAttempts int
	AvgReactionMs   float64
	StartedAt       time.Time
}

// NewSessionStats starts an empty session at t.
func NewSessionStats(t time.Time) SessionStats {
	return SessionStats{StartedAt: t}
}

// Record folds a result into the session totals.
func Record(stats SessionStats, result model.Result) SessionStats {
	stats.TotalAttempts++
	if result.Success {
		prev := stats.CorrectAttempts
		stats.CorrectAttempts++
		stats.AvgReactionMs = (stats.AvgReactionMs*float64(prev) + float64(result.ReactionMs)) / float64(stats.CorrectAttempts)
	}
	return stats
}

// Accuracy is the share of correct attempts, 0 for an empty session.
func (s SessionStats) Accuracy() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.CorrectAttempts) / float64(s.TotalAttempts)
}
