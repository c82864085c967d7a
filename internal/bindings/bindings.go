// Package bindings loads tool binding packs from TOML.
package bindings

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/model"
)

//go:embed data/*.toml
var builtin embed.FS

const defaultCategory = "general"

type packFile struct {
	ID              string        `toml:"id"`
	Name            string        `toml:"name"`
	DifficultyCurve curveFile     `toml:"difficulty-curve"`
	Modes           []modeFile    `toml:"modes"`
	Bindings        []bindingFile `toml:"bindings"`
}

type curveFile struct {
	Warmup  int `toml:"warmup"`
	Mastery int `toml:"mastery"`
}

type modeFile struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Default bool   `toml:"default"`
}

type bindingFile struct {
	ID          string              `toml:"id"`
	Mode        string              `toml:"mode"`
	Action      string              `toml:"action"`
	Command     string              `toml:"command"`
	Keys        string              `toml:"keys"`
	Category    string              `toml:"category"`
	Difficulty  int                 `toml:"difficulty"`
	Description string              `toml:"description"`
	Context     []model.ContextRule `toml:"context"`
}

// Loader parses packs and drops bindings the trainer cannot drill.
type Loader struct {
	// Reserved chords belong to the host; bindings using one anywhere are dropped.
	Reserved []keys.Chord

	// Unreachable chords cannot be delivered by the host terminal.
	Unreachable []keys.Chord

	Logger *slog.Logger
}

func (l Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Builtin returns the embedded packs sorted by id.
func (l Loader) Builtin() ([]model.ToolDefinition, error) {
	entries, err := fs.ReadDir(builtin, "data")
	if err != nil {
		return nil, fmt.Errorf("failed to list builtin packs: %w", err)
	}
	tools := make([]model.ToolDefinition, 0, len(entries))
	for _, entry := range entries {
		data, err := builtin.ReadFile("data/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin pack %s: %w", entry.Name(), err)
		}
		tool, err := l.Parse(data, entry.Name())
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	sortTools(tools)
	return tools, nil
}

// LoadDir parses every *.toml file in dir. A missing directory yields no packs.
func (l Loader) LoadDir(dir string) ([]model.ToolDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tools directory: %w", err)
	}
	var tools []model.ToolDefinition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read pack %s: %w", path, err)
		}
		tool, err := l.Parse(data, path)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	sortTools(tools)
	return tools, nil
}

// Load returns the builtin packs merged with the packs in userDir. A user
// pack replaces a builtin pack with the same id.
func (l Loader) Load(userDir string) ([]model.ToolDefinition, error) {
	tools, err := l.Builtin()
	if err != nil {
		return nil, err
	}
	user, err := l.LoadDir(userDir)
	if err != nil {
		return nil, err
	}
	for _, u := range user {
		replaced := false
		for i := range tools {
			if tools[i].ID == u.ID {
				tools[i] = u
				replaced = true
				break
			}
		}
		if !replaced {
			tools = append(tools, u)
		}
	}
	return tools, nil
}

// Parse decodes one pack. source names it in errors and logs.
func (l Loader) Parse(data []byte, source string) (model.ToolDefinition, error) {
	var pack packFile
	if _, err := toml.Decode(string(data), &pack); err != nil {
		return model.ToolDefinition{}, fmt.Errorf("failed to decode pack %s: %w", source, err)
	}
	if pack.ID == "" {
		return model.ToolDefinition{}, fmt.Errorf("pack %s has no id", source)
	}
	tool := model.ToolDefinition{
		ID:   pack.ID,
		Name: pack.Name,
		DifficultyCurve: model.DifficultyCurve{
			Warmup:  pack.DifficultyCurve.Warmup,
			Mastery: pack.DifficultyCurve.Mastery,
		},
	}
	if tool.Name == "" {
		tool.Name = pack.ID
	}
	for _, m := range pack.Modes {
		tool.Modes = append(tool.Modes, model.ModeDefinition{ID: m.ID, Name: m.Name, Default: m.Default})
	}

	seen := map[string]int{}
	for i, bf := range pack.Bindings {
		b, ok := l.binding(pack.ID, bf, source)
		if !ok {
			continue
		}
		if n := seen[b.ID]; n > 0 {
			b.ID = fmt.Sprintf("%s-%d", b.ID, i)
		}
		seen[b.ID]++
		tool.Bindings = append(tool.Bindings, b)
	}
	return tool, nil
}

func (l Loader) binding(toolID string, bf bindingFile, source string) (model.Binding, bool) {
	log := l.logger().With("pack", source, "binding", bf.ID)
	seq, err := keys.ParseSequence(bf.Keys)
	if err != nil {
		log.Warn("drop binding", "err", err)
		return model.Binding{}, false
	}
	if len(seq) == 0 {
		log.Warn("drop binding", "err", "empty sequence")
		return model.Binding{}, false
	}
	for _, c := range seq {
		for _, r := range l.Reserved {
			if keys.Equal(c, r) {
				log.Warn("drop binding", "err", "uses reserved chord", "chord", r.String())
				return model.Binding{}, false
			}
		}
		for _, u := range l.Unreachable {
			if keys.Equal(c, u) {
				log.Info("drop binding", "err", "chord not deliverable by terminal", "chord", u.String())
				return model.Binding{}, false
			}
		}
	}
	b := model.Binding{
		ID:          bf.ID,
		Tool:        toolID,
		Mode:        bf.Mode,
		Action:      bf.Action,
		Sequence:    seq,
		Category:    bf.Category,
		Difficulty:  bf.Difficulty,
		Description: bf.Description,
		Context:     bf.Context,
	}
	if bf.Command != "" {
		if b.ID == "" {
			b.ID = CommandID(toolID, bf.Command)
		}
		if b.Action == "" {
			b.Action = HumanizeCommand(bf.Command)
		}
		if b.Category == "" {
			b.Category = CategorizeCommand(bf.Command)
		}
	}
	if b.ID == "" {
		b.ID = toolID + "-" + strings.ReplaceAll(keys.SequenceString(seq), " ", "-")
	}
	if b.Action == "" {
		b.Action = b.ID
	}
	if b.Category == "" {
		b.Category = defaultCategory
	}
	switch {
	case b.Difficulty == 0:
		b.Difficulty = DeriveDifficulty(seq)
	case b.Difficulty < 1:
		b.Difficulty = 1
	case b.Difficulty > 5:
		b.Difficulty = 5
	}
	return b, true
}

// DeriveDifficulty rates a sequence by shape: multi-chord sequences are 3,
// otherwise the modifier count decides.
func DeriveDifficulty(seq []keys.Chord) int {
	if len(seq) > 1 {
		return 3
	}
	switch mods := len(seq[0].Modifiers); {
	case mods <= 1:
		return 1
	case mods == 2:
		return 2
	default:
		return 3
	}
}

// Find returns the tool with id.
func Find(tools []model.ToolDefinition, id string) (model.ToolDefinition, bool) {
	for _, t := range tools {
		if t.ID == id {
			return t, true
		}
	}
	return model.ToolDefinition{}, false
}

func sortTools(tools []model.ToolDefinition) {
	sort.SliceStable(tools, func(i, j int) bool { return tools[i].ID < tools[j].ID })
}
