// Package session runs the drill engine against real input, timers and storage.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/verte-zerg/keydrill/internal/challenge"
	"github.com/verte-zerg/keydrill/internal/engine"
	"github.com/verte-zerg/keydrill/internal/input"
	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/mastery"
	"github.com/verte-zerg/keydrill/internal/match"
	"github.com/verte-zerg/keydrill/internal/model"
	"github.com/verte-zerg/keydrill/internal/selector"
)

// Gateway persists the mastery snapshot and attempt history. Both calls are
// best-effort: implementations log failures instead of returning them.
type Gateway interface {
	Save(ctx context.Context, state model.PersistedState)
	RecordAttempt(ctx context.Context, attempt model.Attempt)
}

// InputStatus is the feedback shown for the current buffer.
type InputStatus int

const (
	StatusIdle InputStatus = iota
	StatusPartial
	StatusError
	StatusSuccess
)

func (s InputStatus) String() string {
	switch s {
	case StatusPartial:
		return "partial"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "idle"
	}
}

// Options configures a Driver. Zero fields get defaults.
type Options struct {
	Selector  *selector.Selector
	Factory   *challenge.Factory
	Now       func() time.Time
	Logger    *slog.Logger
	SkipChord keys.Chord
}

// Driver owns the session context: the persisted snapshot, the selected
// tool and mode, the input buffer and the timer table. It is not safe for
// concurrent use; the host serialises keys and timer firings.
type Driver struct {
	ctx      context.Context
	gateway  Gateway
	sched    Scheduler
	selector *selector.Selector
	factory  *challenge.Factory
	now      func() time.Time
	logger   *slog.Logger
	skip     keys.Chord

	state     engine.State
	persisted model.PersistedState
	tool      model.ToolDefinition
	mode      model.GameMode
	modeID    string
	input     *input.Manager
	stats     mastery.SessionStats
	status    InputStatus
	seq       map[engine.TimerKind]uint64
	wrong     []keys.Chord

	queue    []pending
	draining bool
}

type pending struct {
	event engine.Event
	prior []keys.Chord
}

// New builds a driver in the tool menu around a loaded snapshot.
func New(ctx context.Context, state model.PersistedState, gateway Gateway, sched Scheduler, opts Options) *Driver {
	d := &Driver{
		ctx:       ctx,
		gateway:   gateway,
		sched:     sched,
		selector:  opts.Selector,
		factory:   opts.Factory,
		now:       opts.Now,
		logger:    opts.Logger,
		skip:      opts.SkipChord,
		state:     engine.ToolSelect{},
		persisted: state,
		seq:       map[engine.TimerKind]uint64{},
	}
	if d.selector == nil {
		d.selector = selector.New()
	}
	if d.factory == nil {
		d.factory = challenge.NewFactory()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.persisted.Settings.SequenceTimeout <= 0 {
		d.persisted.Settings.SequenceTimeout = model.DefaultSequenceTimeout
	}
	d.input = input.NewManager(d.persisted.Settings.SequenceTimeout, inputTimers{d: d}, d.onChord)
	d.stats = mastery.NewSessionStats(d.now())
	return d
}

// State returns the committed engine state.
func (d *Driver) State() engine.State { return d.state }

// Status returns the input feedback status.
func (d *Driver) Status() InputStatus { return d.status }

// Stats returns the running session totals.
func (d *Driver) Stats() mastery.SessionStats { return d.stats }

// Persisted returns the current snapshot.
func (d *Driver) Persisted() model.PersistedState { return d.persisted }

// Tool returns the tool being drilled.
func (d *Driver) Tool() model.ToolDefinition { return d.tool }

// Mode returns the game mode being drilled.
func (d *Driver) Mode() model.GameMode { return d.mode }

// Buffer returns the chords typed for the active challenge, including a
// wrong buffer waiting to settle.
func (d *Driver) Buffer() []keys.Chord {
	if d.wrong != nil {
		out := make([]keys.Chord, len(d.wrong))
		copy(out, d.wrong)
		return out
	}
	return d.input.Buffer()
}

// SelectTool opens the mode menu for tool.
func (d *Driver) SelectTool(tool model.ToolDefinition) {
	d.dispatch(engine.SelectTool{Tool: tool}, nil)
}

// Start begins a session. modeID may be empty for tools without modes.
func (d *Driver) Start(tool model.ToolDefinition, mode model.GameMode, modeID string) {
	d.tool = tool
	d.mode = mode
	d.modeID = modeID
	d.stats = mastery.NewSessionStats(d.now())
	d.persisted.LastTool = tool.ID
	d.persisted.LastMode = mode
	d.dispatch(engine.StartSession{Tool: tool, Mode: mode, ModeID: modeID}, nil)
}

// Next requests the next challenge.
func (d *Driver) Next() {
	d.dispatch(engine.NextChallenge{}, nil)
}

// Exit returns to the tool menu.
func (d *Driver) Exit() {
	d.dispatch(engine.ExitToMenu{}, nil)
}

// Skip abandons the active challenge. It records one failed attempt.
func (d *Driver) Skip() {
	ch, ok := engine.ActiveChallenge(d.state)
	if !ok {
		return
	}
	buf := d.Buffer()
	d.cancelTimers()
	d.persist(model.Result{
		ChallengeID: ch.ID,
		BindingID:   ch.Binding.ID,
		ReactionMs:  challenge.ReactionMs(ch, d.now()),
		Input:       buf,
	})
	d.dispatch(engine.Skip{}, nil)
}

// UpdateSettings merges patch into the snapshot and saves it.
func (d *Driver) UpdateSettings(patch model.SettingsPatch) {
	d.persisted.Settings = patch.Apply(d.persisted.Settings)
	if d.persisted.Settings.SequenceTimeout > 0 {
		d.input.SetTimeout(d.persisted.Settings.SequenceTimeout)
	}
	d.gateway.Save(d.ctx, d.persisted)
}

// HandleKey routes one key event. It reports whether the driver consumed it;
// unconsumed keys belong to the host (menus, quit).
func (d *Driver) HandleKey(raw keys.RawKey) bool {
	chord, ok := keys.FromRaw(raw)
	if ok && len(d.skip.Key) > 0 && keys.Equal(chord, d.skip) {
		if ch, active := engine.ActiveChallenge(d.state); active && !d.expects(ch, chord) {
			d.Skip()
			return true
		}
	}
	if d.input.Active() {
		return d.input.HandleKey(raw)
	}
	switch d.state.(type) {
	case engine.Success, engine.Failed:
		if !ok {
			return true
		}
		if chord.Key == "escape" && len(chord.Modifiers) == 0 {
			d.Exit()
			return true
		}
		if d.mode == model.ModeReflex {
			d.Next()
		}
		return true
	}
	return false
}

// expects reports whether chord is the next chord of the active binding.
// The skip chord yields to it so such a binding stays completable.
func (d *Driver) expects(ch model.Challenge, chord keys.Chord) bool {
	if d.wrong != nil {
		return false
	}
	i := len(d.input.Buffer())
	return i < len(ch.Binding.Sequence) && keys.Equal(ch.Binding.Sequence[i], chord)
}

// Fire delivers a timer scheduled through the Scheduler.
func (d *Driver) Fire(t Timer) {
	if t.Kind == engine.TimerInactivity {
		if !d.input.Expire(t.Token) {
			return
		}
		if d.wrong == nil {
			d.status = StatusIdle
		}
		d.dispatch(engine.SequenceTimeout{ChallengeID: t.ChallengeID}, nil)
		return
	}
	if t.Seq != d.seq[t.Kind] {
		d.logger.Debug("drop stale timer", "kind", t.Kind, "challenge", t.ChallengeID)
		return
	}
	switch t.Kind {
	case engine.TimerSettle:
		ch, ok := engine.ActiveChallenge(d.state)
		if !ok || ch.ID != t.ChallengeID || len(d.wrong) == 0 {
			return
		}
		wrong := d.wrong
		d.wrong = nil
		n := len(wrong)
		d.dispatch(engine.KeyInput{Chord: wrong[n-1]}, wrong[:n-1])
	case engine.TimerAdvance:
		if finishedID(d.state) == t.ChallengeID {
			d.Next()
		}
	case engine.TimerChallenge:
		d.dispatch(engine.ChallengeTimeout{ChallengeID: t.ChallengeID}, nil)
	}
}

func (d *Driver) onChord(chord keys.Chord, buffer []keys.Chord) {
	ch, ok := engine.ActiveChallenge(d.state)
	if !ok {
		return
	}
	if d.wrong != nil {
		d.wrong = append(d.wrong, chord)
		d.input.Reset()
		d.arm(engine.TimerSettle, ch.ID, SettleDelay)
		return
	}
	if match.SequenceMatches(buffer, ch.Binding.Sequence) == match.None {
		d.wrong = buffer
		d.status = StatusError
		d.input.Reset()
		d.arm(engine.TimerSettle, ch.ID, SettleDelay)
		return
	}
	d.dispatch(engine.KeyInput{Chord: chord}, buffer[:len(buffer)-1])
}

func (d *Driver) dispatch(ev engine.Event, prior []keys.Chord) {
	d.queue = append(d.queue, pending{event: ev, prior: prior})
	if d.draining {
		return
	}
	d.draining = true
	for len(d.queue) > 0 {
		p := d.queue[0]
		d.queue = d.queue[1:]
		d.step(p)
	}
	d.draining = false
}

func (d *Driver) step(p pending) {
	ctx := engine.Context{
		Buffer:   p.prior,
		Now:      d.now(),
		Tool:     d.tool,
		Mode:     d.mode,
		ModeID:   d.modeID,
		Settings: d.persisted.Settings,
	}
	next, effects := engine.Transition(d.state, p.event, ctx)
	// Effects run before the new state becomes visible.
	for _, eff := range effects {
		d.execute(eff)
	}
	prev := d.state
	d.state = next
	if engine.Name(prev) != engine.Name(next) {
		d.logger.Debug("transition", "from", engine.Name(prev), "to", engine.Name(next))
	}
	d.enter(prev, next)
}

func (d *Driver) execute(eff engine.Effect) {
	switch e := eff.(type) {
	case engine.PersistResult:
		d.persist(e.Result)
	case engine.ScheduleTimer:
		d.arm(e.Kind, e.ChallengeID, e.After)
	case engine.CancelTimer:
		d.cancel(e.Kind)
	case engine.GenerateChallenge:
		d.generate(e)
	}
}

func (d *Driver) enter(prev, next engine.State) {
	switch st := next.(type) {
	case engine.Prompt:
		if _, fresh := prev.(engine.Loading); fresh {
			d.wrong = nil
			d.input.Activate()
		}
		if d.wrong == nil {
			d.status = StatusIdle
		}
	case engine.Listening:
		d.status = StatusPartial
	case engine.Success:
		d.input.Deactivate()
		d.status = StatusSuccess
		d.scheduleAdvance(st.Challenge.ID)
	case engine.Failed:
		d.input.Deactivate()
		d.status = StatusError
		d.scheduleAdvance(st.Challenge.ID)
	default:
		d.input.Deactivate()
		d.wrong = nil
		d.status = StatusIdle
	}
}

func (d *Driver) scheduleAdvance(challengeID string) {
	if d.mode == model.ModeScenario {
		d.arm(engine.TimerAdvance, challengeID, AdvanceDelay)
	}
}

func (d *Driver) generate(e engine.GenerateChallenge) {
	now := d.now()
	binding := d.selector.Select(e.Tool, d.persisted.Mastery, e.Mode, e.ModeID, now)
	if len(binding.Sequence) == 0 {
		d.logger.Warn("no bindings to drill", "tool", e.Tool.ID, "mode", e.ModeID)
		d.dispatch(engine.ExitToMenu{}, nil)
		return
	}
	ch := d.factory.New(binding, e.Mode, d.persisted.Settings, now)
	d.dispatch(engine.PresentChallenge{Challenge: ch}, nil)
}

func (d *Driver) persist(r model.Result) {
	ts := d.now()
	d.persisted = mastery.Apply(d.persisted, r, ts)
	d.stats = mastery.Record(d.stats, r)
	d.gateway.Save(d.ctx, d.persisted)
	d.gateway.RecordAttempt(d.ctx, model.Attempt{
		Result:     r,
		Tool:       d.tool.ID,
		Mode:       d.mode,
		RecordedAt: ts,
	})
}

func (d *Driver) arm(kind engine.TimerKind, challengeID string, after time.Duration) {
	d.seq[kind]++
	d.sched.After(after, Timer{Kind: kind, ChallengeID: challengeID, Seq: d.seq[kind]})
}

func (d *Driver) cancel(kind engine.TimerKind) {
	switch kind {
	case engine.TimerInactivity:
		d.input.Reset()
	case engine.TimerSettle:
		d.wrong = nil
	}
	d.seq[kind]++
}

func (d *Driver) cancelTimers() {
	for _, kind := range engine.AllTimers {
		d.cancel(kind)
	}
}

func finishedID(s engine.State) string {
	switch st := s.(type) {
	case engine.Success:
		return st.Challenge.ID
	case engine.Failed:
		return st.Challenge.ID
	}
	return ""
}
