// Package match classifies captured chord sequences against targets.
package match

import (
	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/model"
)

// Match is the classification of an input buffer against a target.
type Match int

const (
	None Match = iota
	Partial
	Complete
)

func (m Match) String() string {
	switch m {
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	default:
		return "none"
	}
}

// SequenceMatches is a strict ordered-prefix comparison of input against target.
func SequenceMatches(input, target []keys.Chord) Match {
	if len(input) == 0 || len(input) > len(target) {
		return None
	}
	for i := range input {
		if !keys.Equal(input[i], target[i]) {
			return None
		}
	}
	if len(input) == len(target) {
		return Complete
	}
	return Partial
}

// Ambiguity extends a match with the bindings the input is still a prefix of.
type Ambiguity struct {
	Match    Match
	Possible []string
}

// WithAmbiguity classifies input against target and, for partial matches,
// lists every binding whose sequence the input still prefixes.
func WithAmbiguity(input, target []keys.Chord, bindings []model.Binding) Ambiguity {
	direct := SequenceMatches(input, target)
	if direct != Partial {
		return Ambiguity{Match: direct}
	}
	var possible []string
	for _, b := range bindings {
		if SequenceMatches(input, b.Sequence) != None {
			possible = append(possible, b.ID)
		}
	}
	return Ambiguity{Match: Partial, Possible: possible}
}

// Overlapping returns the other bindings of tool that share a leading chord
// prefix with binding.
func Overlapping(tool model.ToolDefinition, binding model.Binding) []model.Binding {
	if len(binding.Sequence) == 0 {
		return nil
	}
	var out []model.Binding
	for _, b := range tool.Bindings {
		if b.ID == binding.ID {
			continue
		}
		if SequenceMatches(binding.Sequence[:1], b.Sequence) != None {
			out = append(out, b)
		}
	}
	return out
}
