package engine

import (
	"github.com/verte-zerg/keydrill/internal/challenge"
	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/match"
	"github.com/verte-zerg/keydrill/internal/model"
)

// Transition applies ev to s. Pairs without a rule return s unchanged and no
// effects. Transition never mutates its arguments.
func Transition(s State, ev Event, ctx Context) (State, []Effect) {
	switch e := ev.(type) {
	case SelectTool:
		switch s.(type) {
		case Idle, ToolSelect, ModeSelect:
			return ModeSelect{Tool: e.Tool}, nil
		}
	case StartSession:
		effects := append(cancelAll(), GenerateChallenge{Tool: e.Tool, Mode: e.Mode, ModeID: e.ModeID})
		return Loading{}, effects
	case PresentChallenge:
		if _, ok := s.(Loading); !ok {
			return s, nil
		}
		var effects []Effect
		if limit := ctx.Settings.ChallengeTimeout; limit > 0 {
			effects = append(effects, ScheduleTimer{Kind: TimerChallenge, ChallengeID: e.Challenge.ID, After: limit})
		}
		return Prompt{Challenge: e.Challenge}, effects
	case KeyInput:
		if ch, ok := ActiveChallenge(s); ok {
			return keyInput(ch, e.Chord, ctx)
		}
	case SequenceTimeout:
		if st, ok := s.(Listening); ok && st.Challenge.ID == e.ChallengeID {
			return Prompt{Challenge: st.Challenge}, nil
		}
	case ChallengeTimeout:
		ch, ok := ActiveChallenge(s)
		if !ok || ch.ID != e.ChallengeID {
			return s, nil
		}
		buf := bufferOf(s)
		result := newResult(ch, buf, false, ctx)
		return Failed{Challenge: ch, Reason: model.FailureReason{Kind: model.FailureTimeout, Input: buf}},
			append(cancelAll(), PersistResult{Result: result})
	case Skip:
		if ch, ok := ActiveChallenge(s); ok {
			return Failed{Challenge: ch, Reason: model.FailureReason{Kind: model.FailureSkipped, Input: bufferOf(s)}}, cancelAll()
		}
	case NextChallenge:
		effects := append(cancelAll(), GenerateChallenge{Tool: ctx.Tool, Mode: ctx.Mode, ModeID: ctx.ModeID})
		return Loading{}, effects
	case ExitToMenu:
		return ToolSelect{}, cancelAll()
	}
	return s, nil
}

func keyInput(ch model.Challenge, chord keys.Chord, ctx Context) (State, []Effect) {
	buf := make([]keys.Chord, 0, len(ctx.Buffer)+1)
	buf = append(buf, ctx.Buffer...)
	buf = append(buf, chord)

	switch match.SequenceMatches(buf, ch.Binding.Sequence) {
	case match.Complete:
		result := newResult(ch, buf, true, ctx)
		return Success{Challenge: ch, Result: result}, append(cancelAll(), PersistResult{Result: result})
	case match.Partial:
		return Listening{Challenge: ch, Buffer: buf}, nil
	default:
		result := newResult(ch, buf, false, ctx)
		return Failed{Challenge: ch, Reason: model.FailureReason{Kind: model.FailureWrong, Input: buf}},
			append(cancelAll(), PersistResult{Result: result})
	}
}

func newResult(ch model.Challenge, input []keys.Chord, success bool, ctx Context) model.Result {
	return model.Result{
		ChallengeID: ch.ID,
		BindingID:   ch.Binding.ID,
		ReactionMs:  challenge.ReactionMs(ch, ctx.Now),
		Success:     success,
		Input:       input,
	}
}

func bufferOf(s State) []keys.Chord {
	if st, ok := s.(Listening); ok {
		out := make([]keys.Chord, len(st.Buffer))
		copy(out, st.Buffer)
		return out
	}
	return nil
}

func cancelAll() []Effect {
	effects := make([]Effect, 0, len(AllTimers)+1)
	for _, kind := range AllTimers {
		effects = append(effects, CancelTimer{Kind: kind})
	}
	return effects
}
