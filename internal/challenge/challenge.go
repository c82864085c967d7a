// Package challenge builds presentable drill rounds from bindings.
package challenge

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/keydrill/internal/model"
)

const fallbackPhrase = "Execute the action"

var phrases = map[string][]string{
	"motion": {
		"Move to the target position",
		"Navigate to the specified location",
		"Reach the destination",
	},
	"edit": {
		"Modify the text as needed",
		"Apply the required change",
		"Transform the content",
	},
	"search": {
		"Locate the pattern",
		"Find the target",
		"Search for the match",
	},
	"mode": {
		"Switch to the appropriate mode",
		"Enter the required state",
		"Change the editing mode",
	},
	"file": {
		"Perform the file operation",
		"Execute the file action",
	},
	"navigation": {
		"Navigate to the target",
		"Jump to the location",
	},
	"view": {
		"Adjust the view",
		"Change the display",
	},
}

// Factory creates challenges.
type Factory struct {
	rnd   *rand.Rand
	newID func() string
}

// NewFactory returns a Factory seeded with the current time.
func NewFactory() *Factory {
	return NewFactoryWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewFactoryWithSource returns a Factory drawing phrases from src.
func NewFactoryWithSource(src rand.Source) *Factory {
	return &Factory{
		rnd:   rand.New(src),
		newID: func() string { return uuid.NewString() },
	}
}

// New builds a challenge for binding. ts is the start of the reaction clock.
func (f *Factory) New(binding model.Binding, mode model.GameMode, settings model.GameSettings, ts time.Time) model.Challenge {
	c := model.Challenge{
		ID:        f.newID(),
		Binding:   binding,
		Prompt:    binding.Action,
		StartedAt: ts,
		Hints:     Hints(mode, settings.AssistMode),
	}
	if mode == model.ModeScenario {
		c.Prompt = f.scenarioPrompt(binding)
		c.Context = FoldContext(binding.Context)
	}
	return c
}

// Hints computes the UI hints for a mode.
func Hints(mode model.GameMode, assist bool) model.UIHints {
	h := model.UIHints{
		ShowBinding: mode == model.ModeScenario || assist,
		ShowHint:    assist && mode == model.ModeReflex,
	}
	switch {
	case mode == model.ModeScenario:
		h.InstructionText = "keybinding to learn"
	case assist:
		h.InstructionText = "hint"
	}
	return h
}

func (f *Factory) scenarioPrompt(b model.Binding) string {
	bank, ok := phrases[b.Category]
	if !ok || len(bank) == 0 {
		bank = []string{fallbackPhrase}
	}
	return fmt.Sprintf("%s: %s", bank[f.rnd.Intn(len(bank))], b.Action)
}

// ReactionMs measures reaction from the challenge start.
func ReactionMs(c model.Challenge, at time.Time) int64 {
	ms := at.Sub(c.StartedAt).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
