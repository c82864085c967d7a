package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/verte-zerg/keydrill/internal/model"
)

// CurrentVersion is the persisted state schema version.
const CurrentVersion = 1

const stateKey = "state"

// Gateway loads and saves the persisted trainer state. Load never fails and
// Save never reports errors; both log instead.
type Gateway struct {
	store  *Store
	logger *slog.Logger
}

// NewGateway wraps s. A nil logger uses slog.Default.
func NewGateway(s *Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: s, logger: logger}
}

// DefaultState is the snapshot used when nothing valid is stored.
func DefaultState() model.PersistedState {
	return model.PersistedState{
		Version:  CurrentVersion,
		Mastery:  map[string]model.MasteryRecord{},
		Settings: model.DefaultSettings(),
	}
}

// Load returns the stored state, defaults when nothing usable is stored, or
// a migrated copy when the stored version differs.
func (g *Gateway) Load(ctx context.Context) model.PersistedState {
	data, ok, err := g.store.GetBlob(ctx, stateKey)
	if err != nil {
		g.logger.Warn("load state", "err", err)
		return DefaultState()
	}
	if !ok {
		return DefaultState()
	}
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		g.logger.Warn("corrupt state, using defaults", "err", err)
		return DefaultState()
	}
	state := w.decode()
	if w.Version != CurrentVersion {
		g.logger.Info("migrate state", "from", w.Version, "to", CurrentVersion)
		state = migrate(state)
		g.Save(ctx, state)
	}
	return state
}

// Save stores state. Failures are logged and swallowed.
func (g *Gateway) Save(ctx context.Context, state model.PersistedState) {
	data, err := json.Marshal(encodeState(state))
	if err != nil {
		g.logger.Error("encode state", "err", err)
		return
	}
	if err := g.store.PutBlob(ctx, stateKey, data); err != nil {
		g.logger.Error("save state", "err", err)
	}
}

// UpdateSettings merges patch into the stored settings and saves.
func (g *Gateway) UpdateSettings(ctx context.Context, patch model.SettingsPatch) model.PersistedState {
	state := g.Load(ctx)
	state.Settings = patch.Apply(state.Settings)
	g.Save(ctx, state)
	return state
}

// RecordAttempt appends an attempt to the history. Failures are logged.
func (g *Gateway) RecordAttempt(ctx context.Context, attempt model.Attempt) {
	if _, err := g.store.InsertAttempt(ctx, attempt); err != nil {
		g.logger.Error("record attempt", "binding", attempt.BindingID, "err", err)
	}
}

// Clear removes the stored state and, when history is true, the attempts.
func (g *Gateway) Clear(ctx context.Context, history bool) error {
	if err := g.store.DeleteBlob(ctx, stateKey); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	if history {
		if err := g.store.ClearAttempts(ctx); err != nil {
			return fmt.Errorf("clear attempts: %w", err)
		}
	}
	return nil
}

// Export returns the current state in its wire form, indented.
func (g *Gateway) Export(ctx context.Context) ([]byte, error) {
	return json.MarshalIndent(encodeState(g.Load(ctx)), "", "  ")
}

// migrate keeps mastery, merges settings onto defaults and stamps the
// current version.
func migrate(state model.PersistedState) model.PersistedState {
	defaults := DefaultState()
	out := defaults
	for id, rec := range state.Mastery {
		out.Mastery[id] = rec
	}
	out.Settings.AssistMode = state.Settings.AssistMode
	out.Settings.ReducedMotion = state.Settings.ReducedMotion
	if state.Settings.SequenceTimeout > 0 {
		out.Settings.SequenceTimeout = state.Settings.SequenceTimeout
	}
	if state.Settings.ChallengeTimeout > 0 {
		out.Settings.ChallengeTimeout = state.Settings.ChallengeTimeout
	}
	out.LastTool = state.LastTool
	if mode, ok := model.ParseGameMode(string(state.LastMode)); ok {
		out.LastMode = mode
	}
	return out
}

type wireState struct {
	Version  int                   `json:"version"`
	Mastery  map[string]wireRecord `json:"mastery"`
	Settings wireSettings          `json:"settings"`
	LastTool string                `json:"lastTool,omitempty"`
	LastMode string                `json:"lastMode,omitempty"`
}

type wireRecord struct {
	Attempts      int     `json:"attempts"`
	Successes     int     `json:"successes"`
	AvgReactionMs float64 `json:"avgReactionMs"`
	LastSeen      int64   `json:"lastSeen"`
}

type wireSettings struct {
	AssistMode       bool   `json:"assistMode"`
	ReducedMotion    bool   `json:"reducedMotion"`
	SequenceTimeout  int64  `json:"sequenceTimeout"`
	ChallengeTimeout *int64 `json:"challengeTimeout,omitempty"`
}

func encodeState(state model.PersistedState) wireState {
	w := wireState{
		Version:  state.Version,
		Mastery:  make(map[string]wireRecord, len(state.Mastery)),
		LastTool: state.LastTool,
		LastMode: string(state.LastMode),
		Settings: wireSettings{
			AssistMode:      state.Settings.AssistMode,
			ReducedMotion:   state.Settings.ReducedMotion,
			SequenceTimeout: state.Settings.SequenceTimeout.Milliseconds(),
		},
	}
	if state.Settings.ChallengeTimeout > 0 {
		ms := state.Settings.ChallengeTimeout.Milliseconds()
		w.Settings.ChallengeTimeout = &ms
	}
	for id, rec := range state.Mastery {
		w.Mastery[id] = wireRecord{
			Attempts:      rec.Attempts,
			Successes:     rec.Successes,
			AvgReactionMs: rec.AvgReactionMs,
			LastSeen:      rec.LastSeen.UnixMilli(),
		}
	}
	return w
}

func (w wireState) decode() model.PersistedState {
	state := model.PersistedState{
		Version:  w.Version,
		Mastery:  make(map[string]model.MasteryRecord, len(w.Mastery)),
		LastTool: w.LastTool,
		LastMode: model.GameMode(w.LastMode),
		Settings: model.GameSettings{
			AssistMode:      w.Settings.AssistMode,
			ReducedMotion:   w.Settings.ReducedMotion,
			SequenceTimeout: time.Duration(w.Settings.SequenceTimeout) * time.Millisecond,
		},
	}
	if w.Settings.ChallengeTimeout != nil {
		state.Settings.ChallengeTimeout = time.Duration(*w.Settings.ChallengeTimeout) * time.Millisecond
	}
	for id, rec := range w.Mastery {
		state.Mastery[id] = model.MasteryRecord{
			BindingID:     id,
			Attempts:      rec.Attempts,
			Successes:     rec.Successes,
			AvgReactionMs: rec.AvgReactionMs,
			LastSeen:      time.UnixMilli(rec.LastSeen).UTC(),
		}
	}
	return state
}
