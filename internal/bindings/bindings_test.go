package bindings

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/match"
)

func testLoader() Loader {
	return Loader{
		Reserved: []keys.Chord{keys.New("c", keys.Ctrl), keys.New(`\`, keys.Ctrl)},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestBuiltinPacks(t *testing.T) {
	tools, err := testLoader().Builtin()
	require.NoError(t, err)
	require.Len(t, tools, 3)
	assert.Equal(t, "tmux", tools[0].ID)
	assert.Equal(t, "vim", tools[1].ID)
	assert.Equal(t, "vscode", tools[2].ID)

	for _, tool := range tools {
		ids := map[string]bool{}
		require.NotEmpty(t, tool.Bindings, tool.ID)
		for _, b := range tool.Bindings {
			assert.False(t, ids[b.ID], "duplicate id %s", b.ID)
			ids[b.ID] = true
			assert.Equal(t, tool.ID, b.Tool)
			assert.NotEmpty(t, b.Sequence, b.ID)
			assert.NotEmpty(t, b.Action, b.ID)
			assert.NotEmpty(t, b.Category, b.ID)
			assert.GreaterOrEqual(t, b.Difficulty, 1, b.ID)
			assert.LessOrEqual(t, b.Difficulty, 5, b.ID)
			for _, c := range b.Sequence {
				assert.True(t, keys.Valid(c.Key), "%s: invalid key %q", b.ID, c.Key)
			}
		}
	}

	vim, ok := Find(tools, "vim")
	require.True(t, ok)
	assert.Equal(t, "normal", vim.DefaultMode())
}

func TestVSCodeDerivedFields(t *testing.T) {
	tools, err := testLoader().Builtin()
	require.NoError(t, err)
	vscode, ok := Find(tools, "vscode")
	require.True(t, ok)

	var found bool
	for _, b := range vscode.Bindings {
		if b.ID != "vscode-editor-action-commentline" {
			continue
		}
		found = true
		assert.Equal(t, "Comment line", b.Action)
		assert.Equal(t, "edit", b.Category)
		assert.Equal(t, []keys.Chord{keys.New("/", keys.Meta)}, b.Sequence)
		assert.Equal(t, 1, b.Difficulty)
	}
	assert.True(t, found)
}

func TestParseDropsAndNormalizes(t *testing.T) {
	pack := `
id = "demo"

[[bindings]]
id = "ok"
action = "Fine"
keys = "ctrl+k ctrl+s"

[[bindings]]
id = "ok"
action = "Duplicate id"
keys = "q"
difficulty = 9

[[bindings]]
id = "bad-key"
action = "Unknown key"
keys = "ctrl+nope"

[[bindings]]
id = "empty"
action = "No keys"
keys = ""

[[bindings]]
id = "reserved"
action = "Collides with quit"
keys = "ctrl+c x"

[[bindings]]
id = "low"
action = "Negative difficulty"
keys = "shift+alt+ctrl+z"
difficulty = -2
`
	tool, err := testLoader().Parse([]byte(pack), "demo.toml")
	require.NoError(t, err)
	require.Len(t, tool.Bindings, 3)

	assert.Equal(t, "ok", tool.Bindings[0].ID)
	assert.Equal(t, 3, tool.Bindings[0].Difficulty)
	assert.Equal(t, "general", tool.Bindings[0].Category)
	assert.Equal(t, "demo", tool.Name)

	assert.Equal(t, "ok-1", tool.Bindings[1].ID)
	assert.Equal(t, 5, tool.Bindings[1].Difficulty)

	assert.Equal(t, "low", tool.Bindings[2].ID)
	assert.Equal(t, 1, tool.Bindings[2].Difficulty)
}

func TestParseDropsReservedChordAnywhere(t *testing.T) {
	pack := `
id = "demo"

[[bindings]]
id = "keep"
action = "Next window"
keys = "ctrl+w w"

[[bindings]]
id = "skip-second"
action = "Cycle tabs"
keys = "ctrl+w tab"

[[bindings]]
id = "quit-second"
action = "Interrupt"
keys = "x ctrl+c"

[[bindings]]
id = "skip-only"
action = "Indent"
keys = "tab"
`
	loader := testLoader()
	loader.Reserved = append(loader.Reserved, keys.New("tab"))
	tool, err := loader.Parse([]byte(pack), "demo.toml")
	require.NoError(t, err)
	require.Len(t, tool.Bindings, 1)
	assert.Equal(t, "keep", tool.Bindings[0].ID)
}

func TestParseErrors(t *testing.T) {
	_, err := testLoader().Parse([]byte("name = \"no id\""), "x.toml")
	assert.Error(t, err)
	_, err = testLoader().Parse([]byte("id = ["), "y.toml")
	assert.Error(t, err)
}

func TestLoadMergesUserPacks(t *testing.T) {
	dir := t.TempDir()
	custom := "id = \"vim\"\nname = \"My Vim\"\n\n[[bindings]]\nid = \"mine\"\naction = \"Mine\"\nkeys = \"g x\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vim.toml"), []byte(custom), 0o644))
	extra := "id = \"helix\"\n\n[[bindings]]\naction = \"Goto\"\nkeys = \"g d\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helix.toml"), []byte(extra), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	tools, err := testLoader().Load(dir)
	require.NoError(t, err)
	require.Len(t, tools, 4)

	vim, ok := Find(tools, "vim")
	require.True(t, ok)
	assert.Equal(t, "My Vim", vim.Name)
	require.Len(t, vim.Bindings, 1)

	helix, ok := Find(tools, "helix")
	require.True(t, ok)
	assert.Equal(t, "helix-g-d", helix.Bindings[0].ID)

	missing, err := testLoader().LoadDir(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCommandHelpers(t *testing.T) {
	assert.Equal(t, "Comment line", HumanizeCommand("editor.action.commentLine"))
	assert.Equal(t, "Undo", HumanizeCommand("undo"))
	assert.Equal(t, "search", CategorizeCommand("workbench.action.findInFiles"))
	assert.Equal(t, "debug", CategorizeCommand("editor.debug.action.toggleBreakpoint"))
	assert.Equal(t, "general", CategorizeCommand("workbench.action.quickOpen"))
	assert.Equal(t, "vscode-workbench-action-files-save", CommandID("vscode", "workbench.action.files.save"))
}

func TestBuiltinOverlapsAreKnown(t *testing.T) {
	tools, err := testLoader().Builtin()
	require.NoError(t, err)
	tmux, ok := Find(tools, "tmux")
	require.True(t, ok)
	// Every tmux binding shares the prefix chord.
	assert.Len(t, match.Overlapping(tmux, tmux.Bindings[0]), len(tmux.Bindings)-1)
}
