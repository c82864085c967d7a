package session

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keydrill/internal/challenge"
	"github.com/verte-zerg/keydrill/internal/engine"
	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/model"
	"github.com/verte-zerg/keydrill/internal/selector"
)

type fakeScheduler struct {
	timers []Timer
	delays []time.Duration
}

func (f *fakeScheduler) After(d time.Duration, t Timer) {
	f.timers = append(f.timers, t)
	f.delays = append(f.delays, d)
}

func (f *fakeScheduler) last(t *testing.T, kind engine.TimerKind) Timer {
	t.Helper()
	for i := len(f.timers) - 1; i >= 0; i-- {
		if f.timers[i].Kind == kind {
			return f.timers[i]
		}
	}
	t.Fatalf("no %s timer scheduled", kind)
	return Timer{}
}

type fakeGateway struct {
	d           *Driver
	saves       []model.PersistedState
	attempts    []model.Attempt
	stateAtSave []string
}

func (g *fakeGateway) Save(_ context.Context, state model.PersistedState) {
	g.saves = append(g.saves, state)
	if g.d != nil {
		g.stateAtSave = append(g.stateAtSave, engine.Name(g.d.State()))
	}
}

func (g *fakeGateway) RecordAttempt(_ context.Context, a model.Attempt) {
	g.attempts = append(g.attempts, a)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	d     *Driver
	gw    *fakeGateway
	sched *fakeScheduler
	clk   *clock
}

func newHarness(t *testing.T, settings model.GameSettings, bindings ...model.Binding) (*harness, model.ToolDefinition) {
	t.Helper()
	tool := model.ToolDefinition{ID: "test", Name: "Test", Bindings: bindings}
	clk := &clock{t: time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)}
	gw := &fakeGateway{}
	sched := &fakeScheduler{}
	state := model.PersistedState{Version: 1, Mastery: map[string]model.MasteryRecord{}, Settings: settings}
	d := New(context.Background(), state, gw, sched, Options{
		Selector:  selector.NewWithSource(rand.NewSource(1)),
		Factory:   challenge.NewFactoryWithSource(rand.NewSource(1)),
		Now:       clk.now,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		SkipChord: keys.New(`\`, keys.Ctrl),
	})
	gw.d = d
	return &harness{d: d, gw: gw, sched: sched, clk: clk}, tool
}

func quickOpen() model.Binding {
	return model.Binding{ID: "quick-open", Action: "Quick open", Sequence: []keys.Chord{keys.New("p", keys.Meta)}, Difficulty: 1}
}

func goTop() model.Binding {
	return model.Binding{ID: "go-top", Action: "Go to first line", Sequence: []keys.Chord{keys.New("g"), keys.New("g")}, Difficulty: 1}
}

func active(t *testing.T, d *Driver) model.Challenge {
	t.Helper()
	ch, ok := engine.ActiveChallenge(d.State())
	require.True(t, ok, "no active challenge in %s", engine.Name(d.State()))
	return ch
}

func TestSuccessPersistsBeforeCommit(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), quickOpen())
	h.d.Start(tool, model.ModeReflex, "")
	ch := active(t, h.d)

	h.clk.advance(350 * time.Millisecond)
	require.True(t, h.d.HandleKey(keys.RawKey{Key: "p", Meta: true}))

	st, ok := h.d.State().(engine.Success)
	require.True(t, ok, "got %s", engine.Name(h.d.State()))
	assert.Equal(t, ch.ID, st.Result.ChallengeID)
	assert.Equal(t, int64(350), st.Result.ReactionMs)
	assert.Equal(t, StatusSuccess, h.d.Status())

	require.Len(t, h.gw.saves, 1)
	assert.Equal(t, []string{"prompt"}, h.gw.stateAtSave)
	rec := h.d.Persisted().Mastery["quick-open"]
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 1, rec.Successes)
	require.Len(t, h.gw.attempts, 1)
	assert.Equal(t, "test", h.gw.attempts[0].Tool)
	assert.Equal(t, 1, h.d.Stats().CorrectAttempts)
}

func TestSequenceTimeoutReturnsToPrompt(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), goTop())
	h.d.Start(tool, model.ModeReflex, "")
	ch := active(t, h.d)

	h.d.HandleKey(keys.RawKey{Key: "g"})
	require.IsType(t, engine.Listening{}, h.d.State())
	assert.Equal(t, StatusPartial, h.d.Status())

	timer := h.sched.last(t, engine.TimerInactivity)
	assert.Equal(t, model.DefaultSequenceTimeout, h.sched.delays[len(h.sched.delays)-1])
	h.clk.advance(2 * time.Second)
	h.d.Fire(timer)

	st, ok := h.d.State().(engine.Prompt)
	require.True(t, ok, "got %s", engine.Name(h.d.State()))
	assert.Equal(t, ch.ID, st.Challenge.ID)
	assert.Equal(t, ch.StartedAt, st.Challenge.StartedAt)
	assert.Empty(t, h.d.Buffer())
	assert.Empty(t, h.gw.saves)

	// A fired token only counts once.
	h.d.Fire(timer)
	assert.IsType(t, engine.Prompt{}, h.d.State())
}

func TestWrongInputFailsAfterSettle(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), quickOpen())
	h.d.Start(tool, model.ModeReflex, "")

	h.d.HandleKey(keys.RawKey{Key: "o", Meta: true})
	assert.IsType(t, engine.Prompt{}, h.d.State())
	assert.Equal(t, StatusError, h.d.Status())
	assert.Empty(t, h.gw.saves)
	assert.Equal(t, []keys.Chord{keys.New("o", keys.Meta)}, h.d.Buffer())

	settle := h.sched.last(t, engine.TimerSettle)
	h.clk.advance(SettleDelay)
	h.d.Fire(settle)

	st, ok := h.d.State().(engine.Failed)
	require.True(t, ok, "got %s", engine.Name(h.d.State()))
	assert.Equal(t, model.FailureWrong, st.Reason.Kind)
	require.Len(t, h.gw.saves, 1)
	rec := h.d.Persisted().Mastery["quick-open"]
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 0, rec.Successes)

	h.d.Fire(settle)
	assert.Len(t, h.gw.saves, 1)
}

func TestFurtherChordRearmsSettle(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), quickOpen())
	h.d.Start(tool, model.ModeReflex, "")

	h.d.HandleKey(keys.RawKey{Key: "o", Meta: true})
	first := h.sched.last(t, engine.TimerSettle)
	h.d.HandleKey(keys.RawKey{Key: "x"})
	second := h.sched.last(t, engine.TimerSettle)
	require.NotEqual(t, first.Seq, second.Seq)

	h.d.Fire(first)
	assert.IsType(t, engine.Prompt{}, h.d.State())
	assert.Len(t, h.d.Buffer(), 2)

	h.d.Fire(second)
	st := h.d.State().(engine.Failed)
	assert.Len(t, st.Reason.Input, 2)
	assert.Len(t, h.gw.attempts, 1)
}

func TestScenarioAutoAdvance(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), quickOpen())
	h.d.Start(tool, model.ModeScenario, "")
	first := active(t, h.d)
	assert.True(t, first.Hints.ShowBinding)

	h.d.HandleKey(keys.RawKey{Key: "p", Meta: true})
	require.IsType(t, engine.Success{}, h.d.State())

	// Keys during feedback are swallowed without advancing.
	assert.True(t, h.d.HandleKey(keys.RawKey{Key: "a"}))
	assert.IsType(t, engine.Success{}, h.d.State())

	advance := h.sched.last(t, engine.TimerAdvance)
	assert.Equal(t, first.ID, advance.ChallengeID)
	h.d.Fire(advance)

	next := active(t, h.d)
	assert.NotEqual(t, first.ID, next.ID)
}

func TestStaleAdvanceAfterExit(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), quickOpen())
	h.d.Start(tool, model.ModeScenario, "")
	h.d.HandleKey(keys.RawKey{Key: "p", Meta: true})
	advance := h.sched.last(t, engine.TimerAdvance)

	h.d.Exit()
	h.d.Fire(advance)
	assert.Equal(t, engine.ToolSelect{}, h.d.State())
}

func TestReflexWaitsForKey(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), quickOpen())
	h.d.Start(tool, model.ModeReflex, "")
	first := active(t, h.d)
	h.d.HandleKey(keys.RawKey{Key: "p", Meta: true})

	for _, tm := range h.sched.timers {
		assert.NotEqual(t, engine.TimerAdvance, tm.Kind)
	}
	// Pure modifier presses do nothing.
	assert.True(t, h.d.HandleKey(keys.RawKey{Key: "shift", Shift: true}))
	assert.IsType(t, engine.Success{}, h.d.State())

	h.d.HandleKey(keys.RawKey{Key: "a"})
	assert.NotEqual(t, first.ID, active(t, h.d).ID)

	h.d.HandleKey(keys.RawKey{Key: "o", Meta: true})
	h.d.Fire(h.sched.last(t, engine.TimerSettle))
	require.IsType(t, engine.Failed{}, h.d.State())
	h.d.HandleKey(keys.RawKey{Key: "esc"})
	assert.Equal(t, engine.ToolSelect{}, h.d.State())
}

func TestSkipRecordsOneFailure(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), goTop())
	h.d.Start(tool, model.ModeReflex, "")
	h.d.HandleKey(keys.RawKey{Key: "g"})
	inactivity := h.sched.last(t, engine.TimerInactivity)

	require.True(t, h.d.HandleKey(keys.RawKey{Key: `\`, Ctrl: true}))
	st, ok := h.d.State().(engine.Failed)
	require.True(t, ok, "got %s", engine.Name(h.d.State()))
	assert.Equal(t, model.FailureSkipped, st.Reason.Kind)
	require.Len(t, h.gw.attempts, 1)
	assert.False(t, h.gw.attempts[0].Success)
	assert.Equal(t, 1, h.d.Persisted().Mastery["go-top"].Attempts)

	h.d.Fire(inactivity)
	assert.IsType(t, engine.Failed{}, h.d.State())
}

func TestSkipChordYieldsToExpectedChord(t *testing.T) {
	splitPane := model.Binding{ID: "split-pane", Action: "Split pane", Sequence: []keys.Chord{keys.New("w", keys.Ctrl), keys.New(`\`, keys.Ctrl)}, Difficulty: 2}
	h, tool := newHarness(t, model.DefaultSettings(), splitPane)
	h.d.Start(tool, model.ModeReflex, "")

	require.True(t, h.d.HandleKey(keys.RawKey{Key: "w", Ctrl: true}))
	require.True(t, h.d.HandleKey(keys.RawKey{Key: `\`, Ctrl: true}))
	_, ok := h.d.State().(engine.Success)
	require.True(t, ok, "got %s", engine.Name(h.d.State()))
	rec := h.d.Persisted().Mastery["split-pane"]
	assert.Equal(t, 1, rec.Successes)
	assert.Equal(t, 1, rec.Attempts)

	h.d.Next()
	active(t, h.d)
	require.True(t, h.d.HandleKey(keys.RawKey{Key: `\`, Ctrl: true}))
	st, ok := h.d.State().(engine.Failed)
	require.True(t, ok, "got %s", engine.Name(h.d.State()))
	assert.Equal(t, model.FailureSkipped, st.Reason.Kind)
}

func TestChallengeTimeout(t *testing.T) {
	settings := model.DefaultSettings()
	settings.ChallengeTimeout = 5 * time.Second
	h, tool := newHarness(t, settings, quickOpen())
	h.d.Start(tool, model.ModeReflex, "")
	ch := active(t, h.d)

	limit := h.sched.last(t, engine.TimerChallenge)
	assert.Equal(t, ch.ID, limit.ChallengeID)
	h.clk.advance(5 * time.Second)
	h.d.Fire(limit)

	st, ok := h.d.State().(engine.Failed)
	require.True(t, ok)
	assert.Equal(t, model.FailureTimeout, st.Reason.Kind)
	assert.Len(t, h.gw.attempts, 1)
}

func TestEmptyToolReturnsToMenu(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings())
	h.d.Start(tool, model.ModeReflex, "")
	assert.Equal(t, engine.ToolSelect{}, h.d.State())
}

func TestUpdateSettingsSaves(t *testing.T) {
	h, _ := newHarness(t, model.DefaultSettings(), quickOpen())
	assist := true
	timeout := 900 * time.Millisecond
	h.d.UpdateSettings(model.SettingsPatch{AssistMode: &assist, SequenceTimeout: &timeout})

	require.Len(t, h.gw.saves, 1)
	assert.True(t, h.gw.saves[0].Settings.AssistMode)
	assert.Equal(t, timeout, h.d.Persisted().Settings.SequenceTimeout)
}

func TestMenuKeysAreNotConsumed(t *testing.T) {
	h, tool := newHarness(t, model.DefaultSettings(), quickOpen())
	assert.False(t, h.d.HandleKey(keys.RawKey{Key: "enter"}))
	h.d.SelectTool(tool)
	assert.IsType(t, engine.ModeSelect{}, h.d.State())
	assert.False(t, h.d.HandleKey(keys.RawKey{Key: "down"}))
}
