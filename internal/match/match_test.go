package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/model"
)

func mustSeq(t *testing.T, s string) []keys.Chord {
	t.Helper()
	seq, err := keys.ParseSequence(s)
	require.NoError(t, err)
	return seq
}

func TestSequenceMatchesPrefixProperty(t *testing.T) {
	for _, s := range []string{"cmd+p", "g g", "ctrl+k ctrl+s", "ctrl+b shift+5 x", "escape escape"} {
		target := mustSeq(t, s)
		assert.Equal(t, None, SequenceMatches(nil, target), s)
		for k := 1; k < len(target); k++ {
			assert.Equal(t, Partial, SequenceMatches(target[:k], target), "%s k=%d", s, k)
		}
		assert.Equal(t, Complete, SequenceMatches(target, target), s)
	}
}

func TestSequenceMatchesMismatch(t *testing.T) {
	target := mustSeq(t, "ctrl+k ctrl+s")
	assert.Equal(t, None, SequenceMatches(mustSeq(t, "ctrl+j"), target))
	assert.Equal(t, None, SequenceMatches(mustSeq(t, "ctrl+k s"), target))
	assert.Equal(t, None, SequenceMatches(mustSeq(t, "ctrl+k ctrl+s ctrl+s"), target))
	// A wrong first chord is fatal even when later chords line up.
	assert.Equal(t, None, SequenceMatches(mustSeq(t, "ctrl+x ctrl+s"), target))
}

func TestSequenceMatchesModifierOrder(t *testing.T) {
	target := []keys.Chord{{Modifiers: []keys.Modifier{keys.Shift, keys.Ctrl}, Key: "p"}}
	input := []keys.Chord{{Modifiers: []keys.Modifier{keys.Ctrl, keys.Shift}, Key: "p"}}
	assert.Equal(t, Complete, SequenceMatches(input, target))
}

func TestWithAmbiguity(t *testing.T) {
	bindings := []model.Binding{
		{ID: "split-v", Sequence: mustSeq(t, "ctrl+w v")},
		{ID: "split-s", Sequence: mustSeq(t, "ctrl+w s")},
		{ID: "save", Sequence: mustSeq(t, "ctrl+s")},
	}
	got := WithAmbiguity(mustSeq(t, "ctrl+w"), bindings[0].Sequence, bindings)
	assert.Equal(t, Partial, got.Match)
	assert.ElementsMatch(t, []string{"split-v", "split-s"}, got.Possible)

	got = WithAmbiguity(mustSeq(t, "ctrl+w v"), bindings[0].Sequence, bindings)
	assert.Equal(t, Complete, got.Match)
	assert.Empty(t, got.Possible)
}

func TestOverlapping(t *testing.T) {
	tool := model.ToolDefinition{Bindings: []model.Binding{
		{ID: "gg", Sequence: mustSeq(t, "g g")},
		{ID: "gu", Sequence: mustSeq(t, "g u")},
		{ID: "G", Sequence: mustSeq(t, "G")},
	}}
	out := Overlapping(tool, tool.Bindings[0])
	require.Len(t, out, 1)
	assert.Equal(t, "gu", out[0].ID)
}
