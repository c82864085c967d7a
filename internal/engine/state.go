// Package engine implements the drill session as a pure state reducer.
package engine

import (
	"time"

	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/model"
)

// State is one of the session states. The set of variants is closed.
type State interface {
	isState()
}

// Idle is the state before anything is loaded.
type Idle struct{}

// Loading waits for the next challenge to be generated.
type Loading struct{}

// ToolSelect is the tool menu.
type ToolSelect struct{}

// ModeSelect is the game mode menu for a chosen tool.
type ModeSelect struct {
	Tool model.ToolDefinition
}

// Prompt shows a challenge with an empty input buffer.
type Prompt struct {
	Challenge model.Challenge
}

// Listening shows a challenge with a matching prefix typed.
type Listening struct {
	Challenge model.Challenge
	Buffer    []keys.Chord
}

// Success is a completed challenge.
type Success struct {
	Challenge model.Challenge
	Result    model.Result
}

// Failed is a challenge that ended without a match.
type Failed struct {
	Challenge model.Challenge
	Reason    model.FailureReason
}

func (Idle) isState()       {}
func (Loading) isState()    {}
func (ToolSelect) isState() {}
func (ModeSelect) isState() {}
func (Prompt) isState()     {}
func (Listening) isState()  {}
func (Success) isState()    {}
func (Failed) isState()     {}

// ActiveChallenge returns the challenge accepting input, if any.
func ActiveChallenge(s State) (model.Challenge, bool) {
	switch st := s.(type) {
	case Prompt:
		return st.Challenge, true
	case Listening:
		return st.Challenge, true
	}
	return model.Challenge{}, false
}

// Name is a short label used in logs.
func Name(s State) string {
	switch s.(type) {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case ToolSelect:
		return "toolSelect"
	case ModeSelect:
		return "modeSelect"
	case Prompt:
		return "prompt"
	case Listening:
		return "listening"
	case Success:
		return "success"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Event drives a transition.
type Event interface {
	isEvent()
}

// SelectTool opens the mode menu for a tool.
type SelectTool struct {
	Tool model.ToolDefinition
}

// StartSession begins drilling a tool in a game mode.
type StartSession struct {
	Tool   model.ToolDefinition
	Mode   model.GameMode
	ModeID string
}

// PresentChallenge delivers a generated challenge.
type PresentChallenge struct {
	Challenge model.Challenge
}

// KeyInput is one captured chord.
type KeyInput struct {
	Chord keys.Chord
}

// SequenceTimeout reports that the inactivity window elapsed.
type SequenceTimeout struct {
	ChallengeID string
}

// ChallengeTimeout reports that the per-challenge time limit elapsed.
type ChallengeTimeout struct {
	ChallengeID string
}

// Skip gives up on the active challenge.
type Skip struct{}

// NextChallenge requests a new challenge.
type NextChallenge struct{}

// ExitToMenu returns to the tool menu.
type ExitToMenu struct{}

func (SelectTool) isEvent()       {}
func (StartSession) isEvent()     {}
func (PresentChallenge) isEvent() {}
func (KeyInput) isEvent()         {}
func (SequenceTimeout) isEvent()  {}
func (ChallengeTimeout) isEvent() {}
func (Skip) isEvent()             {}
func (NextChallenge) isEvent()    {}
func (ExitToMenu) isEvent()       {}

// TimerKind names a deferred event owned by the driver.
type TimerKind string

const (
	TimerInactivity TimerKind = "inactivity"
	TimerSettle     TimerKind = "settle"
	TimerAdvance    TimerKind = "advance"
	TimerChallenge  TimerKind = "challenge"
)

// AllTimers lists every timer kind.
var AllTimers = []TimerKind{TimerInactivity, TimerSettle, TimerAdvance, TimerChallenge}

// Effect is a side effect requested by a transition.
type Effect interface {
	isEffect()
}

// PersistResult asks the driver to fold a result into mastery and save it.
type PersistResult struct {
	Result model.Result
}

// ScheduleTimer arms a timer for the given challenge.
type ScheduleTimer struct {
	Kind        TimerKind
	ChallengeID string
	After       time.Duration
}

// CancelTimer disarms every pending timer of a kind.
type CancelTimer struct {
	Kind TimerKind
}

// GenerateChallenge asks the driver to build the next challenge.
type GenerateChallenge struct {
	Tool   model.ToolDefinition
	Mode   model.GameMode
	ModeID string
}

func (PersistResult) isEffect()     {}
func (ScheduleTimer) isEffect()     {}
func (CancelTimer) isEffect()       {}
func (GenerateChallenge) isEffect() {}

// Context carries driver-owned inputs to a transition.
type Context struct {
	// Buffer holds the chords typed before the KeyInput chord.
	Buffer   []keys.Chord
	Now      time.Time
	Tool     model.ToolDefinition
	Mode     model.GameMode
	ModeID   string
	Settings model.GameSettings
}
