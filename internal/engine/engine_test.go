package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/model"
)

var t0 = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func quickOpen() model.Challenge {
	return model.Challenge{
		ID: "c1",
		Binding: model.Binding{
			ID:       "vscode-quick-open",
			Action:   "Quick open",
			Sequence: []keys.Chord{keys.New("p", keys.Meta)},
		},
		StartedAt: t0,
	}
}

func goTop() model.Challenge {
	return model.Challenge{
		ID: "c2",
		Binding: model.Binding{
			ID:       "vim-top",
			Action:   "Go to first line",
			Sequence: []keys.Chord{keys.New("g"), keys.New("g")},
		},
		StartedAt: t0,
	}
}

func persisted(t *testing.T, effects []Effect) []model.Result {
	t.Helper()
	var out []model.Result
	for _, e := range effects {
		if p, ok := e.(PersistResult); ok {
			out = append(out, p.Result)
		}
	}
	return out
}

func cancelsAll(t *testing.T, effects []Effect) {
	t.Helper()
	for _, kind := range AllTimers {
		assert.Contains(t, effects, Effect(CancelTimer{Kind: kind}))
	}
}

func TestCompleteChordSucceeds(t *testing.T) {
	ch := quickOpen()
	ctx := Context{Now: t0.Add(420 * time.Millisecond)}
	next, effects := Transition(Prompt{Challenge: ch}, KeyInput{Chord: keys.New("p", keys.Meta)}, ctx)

	st, ok := next.(Success)
	require.True(t, ok, "got %T", next)
	assert.True(t, st.Result.Success)
	assert.Equal(t, int64(420), st.Result.ReactionMs)
	assert.Equal(t, "vscode-quick-open", st.Result.BindingID)
	assert.Equal(t, "c1", st.Result.ChallengeID)

	results := persisted(t, effects)
	require.Len(t, results, 1)
	assert.Equal(t, st.Result, results[0])
	cancelsAll(t, effects)
}

func TestWrongChordFails(t *testing.T) {
	ch := quickOpen()
	wrong := keys.New("o", keys.Meta)
	next, effects := Transition(Prompt{Challenge: ch}, KeyInput{Chord: wrong}, Context{Now: t0.Add(time.Second)})

	st, ok := next.(Failed)
	require.True(t, ok, "got %T", next)
	assert.Equal(t, model.FailureWrong, st.Reason.Kind)
	assert.Equal(t, []keys.Chord{wrong}, st.Reason.Input)

	results := persisted(t, effects)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestSequencePartialThenComplete(t *testing.T) {
	ch := goTop()
	g := keys.New("g")

	next, effects := Transition(Prompt{Challenge: ch}, KeyInput{Chord: g}, Context{Now: t0})
	require.IsType(t, Listening{}, next)
	assert.Empty(t, effects)
	assert.Equal(t, []keys.Chord{g}, next.(Listening).Buffer)

	next, effects = Transition(next, KeyInput{Chord: g}, Context{Buffer: []keys.Chord{g}, Now: t0.Add(300 * time.Millisecond)})
	require.IsType(t, Success{}, next)
	assert.Len(t, persisted(t, effects), 1)
}

func TestSequenceTimeoutKeepsChallenge(t *testing.T) {
	ch := goTop()
	listening := Listening{Challenge: ch, Buffer: []keys.Chord{keys.New("g")}}

	next, effects := Transition(listening, SequenceTimeout{ChallengeID: ch.ID}, Context{Now: t0.Add(2 * time.Second)})
	st, ok := next.(Prompt)
	require.True(t, ok, "got %T", next)
	assert.Equal(t, ch.ID, st.Challenge.ID)
	assert.Equal(t, t0, st.Challenge.StartedAt)
	assert.Empty(t, effects)
}

func TestStaleTimedEventsIgnored(t *testing.T) {
	ch := goTop()
	listening := Listening{Challenge: ch, Buffer: []keys.Chord{keys.New("g")}}

	next, effects := Transition(listening, SequenceTimeout{ChallengeID: "old"}, Context{})
	assert.Equal(t, listening, next)
	assert.Empty(t, effects)

	next, effects = Transition(listening, ChallengeTimeout{ChallengeID: "old"}, Context{})
	assert.Equal(t, listening, next)
	assert.Empty(t, effects)
}

func TestChallengeTimeoutFails(t *testing.T) {
	ch := quickOpen()
	next, effects := Transition(Prompt{Challenge: ch}, ChallengeTimeout{ChallengeID: ch.ID}, Context{Now: t0.Add(10 * time.Second)})
	st, ok := next.(Failed)
	require.True(t, ok)
	assert.Equal(t, model.FailureTimeout, st.Reason.Kind)
	results := persisted(t, effects)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, int64(10000), results[0].ReactionMs)
}

func TestSkipDoesNotPersist(t *testing.T) {
	ch := goTop()
	next, effects := Transition(Listening{Challenge: ch, Buffer: []keys.Chord{keys.New("g")}}, Skip{}, Context{})
	st, ok := next.(Failed)
	require.True(t, ok)
	assert.Equal(t, model.FailureSkipped, st.Reason.Kind)
	assert.Empty(t, persisted(t, effects))
	cancelsAll(t, effects)
}

func TestPresentChallengeSchedulesLimit(t *testing.T) {
	ch := quickOpen()
	next, effects := Transition(Loading{}, PresentChallenge{Challenge: ch}, Context{})
	assert.Equal(t, Prompt{Challenge: ch}, next)
	assert.Empty(t, effects)

	ctx := Context{Settings: model.GameSettings{ChallengeTimeout: 5 * time.Second}}
	_, effects = Transition(Loading{}, PresentChallenge{Challenge: ch}, ctx)
	assert.Equal(t, []Effect{ScheduleTimer{Kind: TimerChallenge, ChallengeID: "c1", After: 5 * time.Second}}, effects)

	// Only Loading accepts a challenge.
	next, _ = Transition(ToolSelect{}, PresentChallenge{Challenge: ch}, Context{})
	assert.Equal(t, ToolSelect{}, next)
}

func TestMenuTransitions(t *testing.T) {
	tool := model.ToolDefinition{ID: "vim"}

	for _, from := range []State{Idle{}, ToolSelect{}, ModeSelect{}} {
		next, _ := Transition(from, SelectTool{Tool: tool}, Context{})
		assert.Equal(t, ModeSelect{Tool: tool}, next)
	}
	next, _ := Transition(Prompt{Challenge: quickOpen()}, SelectTool{Tool: tool}, Context{})
	assert.IsType(t, Prompt{}, next)

	next, effects := Transition(ModeSelect{Tool: tool}, StartSession{Tool: tool, Mode: model.ModeReflex, ModeID: "normal"}, Context{})
	assert.Equal(t, Loading{}, next)
	assert.Contains(t, effects, Effect(GenerateChallenge{Tool: tool, Mode: model.ModeReflex, ModeID: "normal"}))

	ctx := Context{Tool: tool, Mode: model.ModeScenario}
	next, effects = Transition(Success{}, NextChallenge{}, ctx)
	assert.Equal(t, Loading{}, next)
	assert.Contains(t, effects, Effect(GenerateChallenge{Tool: tool, Mode: model.ModeScenario}))

	next, effects = Transition(Listening{Challenge: goTop()}, ExitToMenu{}, Context{})
	assert.Equal(t, ToolSelect{}, next)
	cancelsAll(t, effects)
}

func TestUnhandledPairsAreNoops(t *testing.T) {
	cases := []struct {
		state State
		event Event
	}{
		{Idle{}, KeyInput{Chord: keys.New("a")}},
		{Success{}, KeyInput{Chord: keys.New("a")}},
		{Failed{}, Skip{}},
		{Prompt{Challenge: goTop()}, SequenceTimeout{ChallengeID: "c2"}},
		{Loading{}, Skip{}},
	}
	for _, tc := range cases {
		next, effects := Transition(tc.state, tc.event, Context{})
		assert.Equal(t, tc.state, next, "%s + %T", Name(tc.state), tc.event)
		assert.Empty(t, effects)
	}
}

func TestTransitionDoesNotAliasBuffer(t *testing.T) {
	ch := goTop()
	prior := make([]keys.Chord, 1, 4)
	prior[0] = keys.New("g")
	next, _ := Transition(Prompt{Challenge: ch}, KeyInput{Chord: keys.New("x")}, Context{Buffer: prior})
	failed := next.(Failed)
	failed.Reason.Input[0] = keys.New("z")
	assert.Equal(t, keys.New("g"), prior[0])
}
