// Package model defines shared data structures.
package model

import (
	"time"

	"github.com/verte-zerg/keydrill/internal/keys"
)

// GameMode selects how challenges are presented.
type GameMode string

const (
	// ModeReflex hides the binding and tests recall.
	ModeReflex GameMode = "reflex"
	// ModeScenario shows the binding and auto-advances.
	ModeScenario GameMode = "scenario"
)

// ParseGameMode validates a mode name.
func ParseGameMode(s string) (GameMode, bool) {
	switch GameMode(s) {
	case ModeReflex, ModeScenario:
		return GameMode(s), true
	}
	return "", false
}

// Config defines trainer settings resolved from flags and the config file.
type Config struct {
	Tool             string
	Mode             GameMode
	ToolMode         string
	Assist           bool
	ReducedMotion    bool
	SequenceTimeout  time.Duration
	ChallengeTimeout time.Duration
	MetaKey          string
	SkipKey          string
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Tool        string
	Since       *time.Time
	Last        int
	CurveWindow int
}

// ContextRule is a scenario precondition used for flavour text only.
type ContextRule struct {
	Type  string `toml:"type"`
	Value string `toml:"value"`
	Min   int    `toml:"min"`
}

// Context rule types.
const (
	RuleMode      = "mode"
	RuleCursor    = "cursor"
	RuleSelection = "selection"
	RuleWindows   = "windows"
	RuleFileState = "fileState"
)

// Binding is an immutable action-to-sequence mapping within one tool.
type Binding struct {
	ID          string
	Tool        string
	Mode        string
	Action      string
	Sequence    []keys.Chord
	Category    string
	Difficulty  int
	Description string
	Context     []ContextRule
}

// ModeDefinition describes one tool mode (e.g. vim normal mode).
type ModeDefinition struct {
	ID      string
	Name    string
	Default bool
}

// DifficultyCurve is descriptive metadata for a tool.
type DifficultyCurve struct {
	Warmup  int
	Mastery int
}

// ToolDefinition is a tool with its bindings.
type ToolDefinition struct {
	ID              string
	Name            string
	Modes           []ModeDefinition
	Bindings        []Binding
	DifficultyCurve DifficultyCurve
}

// DefaultMode returns the id of the default mode, or "" when the tool has none.
func (t ToolDefinition) DefaultMode() string {
	for _, m := range t.Modes {
		if m.Default {
			return m.ID
		}
	}
	if len(t.Modes) > 0 {
		return t.Modes[0].ID
	}
	return ""
}

// MasteryRecord holds per-binding performance.
type MasteryRecord struct {
	BindingID     string
	Attempts      int
	Successes     int
	AvgReactionMs float64
	LastSeen      time.Time
}

// GameSettings are user-tunable trainer settings.
type GameSettings struct {
	AssistMode       bool
	ReducedMotion    bool
	SequenceTimeout  time.Duration
	ChallengeTimeout time.Duration
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	AssistMode       *bool
	ReducedMotion    *bool
	SequenceTimeout  *time.Duration
	ChallengeTimeout *time.Duration
}

// Apply merges the patch onto s.
func (p SettingsPatch) Apply(s GameSettings) GameSettings {
	if p.AssistMode != nil {
		s.AssistMode = *p.AssistMode
	}
	if p.ReducedMotion != nil {
		s.ReducedMotion = *p.ReducedMotion
	}
	if p.SequenceTimeout != nil {
		s.SequenceTimeout = *p.SequenceTimeout
	}
	if p.ChallengeTimeout != nil {
		s.ChallengeTimeout = *p.ChallengeTimeout
	}
	return s
}

// DefaultSequenceTimeout is the inactivity window between chords.
const DefaultSequenceTimeout = 1500 * time.Millisecond

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() GameSettings {
	return GameSettings{SequenceTimeout: DefaultSequenceTimeout}
}

// PersistedState is the snapshot owned by the persistence gateway.
type PersistedState struct {
	Version  int
	Mastery  map[string]MasteryRecord
	Settings GameSettings
	LastTool string
	LastMode GameMode
}

// UIHints tell the host what to reveal for a challenge.
type UIHints struct {
	ShowBinding     bool
	ShowHint        bool
	InstructionText string
}

// Challenge is one drill round.
type Challenge struct {
	ID        string
	Binding   Binding
	Prompt    string
	Context   map[string]any
	StartedAt time.Time
	Hints     UIHints
}

// Result is the outcome of a completed attempt.
type Result struct {
	ChallengeID string
	BindingID   string
	ReactionMs  int64
	Success     bool
	Input       []keys.Chord
}

// FailureKind enumerates why a challenge failed.
type FailureKind string

const (
	FailureWrong   FailureKind = "wrong"
	FailureSkipped FailureKind = "skipped"
	FailureTimeout FailureKind = "timeout"
)

// FailureReason explains a failed challenge.
type FailureReason struct {
	Kind  FailureKind
	Input []keys.Chord
}

// Attempt is one persisted history row.
type Attempt struct {
	Result
	Tool       string
	Mode       GameMode
	RecordedAt time.Time
}

// BindingAggregate summarizes attempts for one binding.
type BindingAggregate struct {
	BindingID     string
	Attempts      int
	Successes     int
	ReactionSumMs int64
}
