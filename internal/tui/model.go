// Package tui provides the Bubble Tea trainer interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keydrill/internal/bindings"
	"github.com/verte-zerg/keydrill/internal/challenge"
	"github.com/verte-zerg/keydrill/internal/engine"
	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/mastery"
	"github.com/verte-zerg/keydrill/internal/match"
	"github.com/verte-zerg/keydrill/internal/model"
	"github.com/verte-zerg/keydrill/internal/session"
)

var gameModes = []model.GameMode{model.ModeReflex, model.ModeScenario}

var gameModeInfo = map[model.GameMode]string{
	model.ModeReflex:   "recall the binding from the action",
	model.ModeScenario: "follow a described situation, binding shown",
}

// Model implements the Bubble Tea trainer UI.
type Model struct {
	config    model.Config
	tools     []model.ToolDefinition
	driver    *session.Driver
	sched     *tickScheduler
	metaAsAlt bool

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width  int
	height int

	toolIdx     int
	modeIdx     int
	toolModeIdx int
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Cycle  key.Binding
	Select key.Binding
	Back   key.Binding
	Assist key.Binding
	Motion key.Binding
	Skip   key.Binding
	Next   key.Binding
	Quit   key.Binding
}

func newKeyMap(skip string) keyMap {
	if skip == "" {
		skip = "tab"
	}
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Cycle:  key.NewBinding(key.WithKeys("left", "right", "h", "l"), key.WithHelp("←/→", "tool mode")),
		Select: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "select")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Assist: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "assist")),
		Motion: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reduced motion")),
		Skip:   key.NewBinding(key.WithKeys(skip), key.WithHelp(skip, "skip")),
		Next:   key.NewBinding(key.WithKeys("any"), key.WithHelp("any key", "next")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

var (
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	accentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle    = pendingStyle.Copy().Underline(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	titleStyle     = accentStyle.Copy().Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	failStyle      = incorrectStyle.Copy().Bold(true)
)

// NewModel constructs the trainer UI around a loaded snapshot. When cfg names
// a known tool the mode menu opens directly; when it also names a game mode
// the session starts immediately.
func NewModel(ctx context.Context, cfg model.Config, tools []model.ToolDefinition, state model.PersistedState, gateway session.Gateway, opts session.Options) *Model {
	sched := &tickScheduler{}
	m := &Model{
		config:    cfg,
		tools:     tools,
		sched:     sched,
		driver:    session.New(ctx, state, gateway, sched, opts),
		metaAsAlt: cfg.MetaKey == "alt",
		keys:      newKeyMap(cfg.SkipKey),
		help:      help.New(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
	}

	toolID := cfg.Tool
	if toolID == "" {
		toolID = state.LastTool
	}
	mode := cfg.Mode
	if mode == "" {
		mode = state.LastMode
	}
	for i, g := range gameModes {
		if g == mode {
			m.modeIdx = i
		}
	}
	for i, t := range tools {
		if t.ID == toolID {
			m.toolIdx = i
		}
	}
	if cfg.Tool == "" {
		return m
	}
	tool, ok := bindings.Find(tools, cfg.Tool)
	if !ok {
		return m
	}
	m.openTool(tool)
	if cfg.Mode != "" {
		m.driver.Start(tool, cfg.Mode, m.toolModeID())
	}
	return m
}

// Driver exposes the session driver.
func (m *Model) Driver() *session.Driver { return m.driver }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.sched.drain())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case timerMsg:
		m.driver.Fire(msg.timer)
		return m, m.sched.drain()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.driver.HandleKey(rawFromTea(msg, m.metaAsAlt)) {
			return m, m.sched.drain()
		}
		cmd := m.handleMenuKey(msg)
		return m, tea.Batch(cmd, m.sched.drain())
	default:
		return m, nil
	}
}

func (m *Model) handleMenuKey(msg tea.KeyMsg) tea.Cmd {
	switch st := m.driver.State().(type) {
	case engine.ToolSelect, engine.Idle:
		switch {
		case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Back):
			return tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.toolIdx = wrapIndex(m.toolIdx-1, len(m.tools))
		case key.Matches(msg, m.keys.Down):
			m.toolIdx = wrapIndex(m.toolIdx+1, len(m.tools))
		case key.Matches(msg, m.keys.Select):
			if len(m.tools) > 0 {
				m.openTool(m.tools[m.toolIdx])
			}
		}
	case engine.ModeSelect:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return tea.Quit
		case key.Matches(msg, m.keys.Back):
			m.driver.Exit()
		case key.Matches(msg, m.keys.Up):
			m.modeIdx = wrapIndex(m.modeIdx-1, len(gameModes))
		case key.Matches(msg, m.keys.Down):
			m.modeIdx = wrapIndex(m.modeIdx+1, len(gameModes))
		case key.Matches(msg, m.keys.Cycle):
			delta := 1
			if msg.String() == "left" || msg.String() == "h" {
				delta = -1
			}
			m.toolModeIdx = wrapIndex(m.toolModeIdx+delta, len(st.Tool.Modes))
		case key.Matches(msg, m.keys.Assist):
			v := !m.driver.Persisted().Settings.AssistMode
			m.driver.UpdateSettings(model.SettingsPatch{AssistMode: &v})
		case key.Matches(msg, m.keys.Motion):
			v := !m.driver.Persisted().Settings.ReducedMotion
			m.driver.UpdateSettings(model.SettingsPatch{ReducedMotion: &v})
		case key.Matches(msg, m.keys.Select):
			m.driver.Start(st.Tool, gameModes[m.modeIdx], m.toolModeID())
		}
	}
	return nil
}

func (m *Model) openTool(tool model.ToolDefinition) {
	m.toolModeIdx = 0
	for _, want := range []string{tool.DefaultMode(), m.config.ToolMode} {
		for i, md := range tool.Modes {
			if md.ID == want {
				m.toolModeIdx = i
			}
		}
	}
	m.driver.SelectTool(tool)
}

func (m *Model) toolModeID() string {
	st, ok := m.driver.State().(engine.ModeSelect)
	if !ok || len(st.Tool.Modes) == 0 {
		return ""
	}
	return st.Tool.Modes[wrapIndex(m.toolModeIdx, len(st.Tool.Modes))].ID
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	var helpKeys []key.Binding
	switch st := m.driver.State().(type) {
	case engine.ToolSelect, engine.Idle:
		content = m.renderToolMenu()
		helpKeys = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Quit}
	case engine.ModeSelect:
		content = m.renderModeMenu(st.Tool)
		helpKeys = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Cycle, m.keys.Assist, m.keys.Motion, m.keys.Select, m.keys.Back}
	case engine.Loading:
		content = m.renderLoading()
	case engine.Prompt:
		content = m.renderChallenge(st.Challenge, m.driver.Buffer())
		helpKeys = []key.Binding{m.keys.Skip}
	case engine.Listening:
		content = m.renderChallenge(st.Challenge, m.driver.Buffer())
		helpKeys = []key.Binding{m.keys.Skip}
	case engine.Success:
		content = m.renderSuccess(st)
		helpKeys = m.feedbackBindings()
	case engine.Failed:
		content = m.renderFailed(st)
		helpKeys = m.feedbackBindings()
	}

	helpLine := m.help.ShortHelpView(helpKeys)
	footer := m.renderFooter()
	if helpLine != "" {
		content += "\n\n" + helpLine
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) feedbackBindings() []key.Binding {
	if m.driver.Mode() == model.ModeReflex {
		return []key.Binding{m.keys.Next, m.keys.Back}
	}
	return []key.Binding{m.keys.Back}
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 0
	}
	w := int(float64(m.width) * 0.70)
	if w < 1 {
		w = 1
	}
	return w
}

func (m *Model) renderToolMenu() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("keydrill"))
	b.WriteString("\n\n")
	if len(m.tools) == 0 {
		b.WriteString(pendingStyle.Render("no binding packs found"))
		return b.String()
	}
	for i, t := range m.tools {
		line := fmt.Sprintf("%-12s %3d bindings", t.Name, len(t.Bindings))
		b.WriteString(menuLine(line, i == m.toolIdx))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderModeMenu(tool model.ToolDefinition) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(tool.Name))
	b.WriteString("\n\n")
	for i, g := range gameModes {
		line := fmt.Sprintf("%-9s %s", g, gameModeInfo[g])
		b.WriteString(menuLine(line, i == m.modeIdx))
		b.WriteString("\n")
	}
	if len(tool.Modes) > 0 {
		md := tool.Modes[wrapIndex(m.toolModeIdx, len(tool.Modes))]
		name := md.Name
		if name == "" {
			name = md.ID
		}
		b.WriteString("\n")
		b.WriteString(pendingStyle.Render("tool mode  ") + accentStyle.Render("‹ "+name+" ›"))
	}
	settings := m.driver.Persisted().Settings
	b.WriteString("\n")
	b.WriteString(pendingStyle.Render(fmt.Sprintf("assist %s  reduced motion %s", onOff(settings.AssistMode), onOff(settings.ReducedMotion))))
	return b.String()
}

func (m *Model) renderLoading() string {
	if m.driver.Persisted().Settings.ReducedMotion {
		return pendingStyle.Render("loading…")
	}
	return m.spinner.View() + pendingStyle.Render(" loading")
}

func (m *Model) renderChallenge(ch model.Challenge, typed []keys.Chord) string {
	var b strings.Builder
	if ch.Hints.InstructionText != "" {
		b.WriteString(pendingStyle.Render(ch.Hints.InstructionText))
		b.WriteString("\n\n")
	}
	b.WriteString(wrapTokens(styleText(ch.Prompt, correctStyle), m.contentWidth()))
	if line := contextLine(ch.Context); line != "" {
		b.WriteString("\n")
		b.WriteString(pendingStyle.Render("context: " + line))
	}
	if ch.Hints.ShowHint {
		hint := ch.Binding.Description
		if hint == "" {
			hint = ch.Binding.Category
		}
		b.WriteString("\n")
		b.WriteString(pendingStyle.Render("hint: " + hint))
		if len(typed) > 0 {
			amb := match.WithAmbiguity(typed, ch.Binding.Sequence, m.driver.Tool().Bindings)
			if amb.Match == match.Partial && len(amb.Possible) > 1 {
				b.WriteString("\n")
				b.WriteString(pendingStyle.Render(fmt.Sprintf("%d bindings start this way", len(amb.Possible))))
			}
		}
	}
	b.WriteString("\n\n")
	b.WriteString(wrapTokens(buildKeycaps(ch.Binding.Sequence, typed, ch.Hints.ShowBinding), m.contentWidth()))
	if line := statusLine(m.driver.Status()); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

func (m *Model) renderSuccess(st engine.Success) string {
	var b strings.Builder
	b.WriteString(successStyle.Render("✓ correct"))
	b.WriteString(pendingStyle.Render(fmt.Sprintf("  %dms", st.Result.ReactionMs)))
	b.WriteString("\n\n")
	b.WriteString(correctStyle.Render(st.Challenge.Binding.Action))
	b.WriteString("\n")
	b.WriteString(accentStyle.Render(keys.FormatSequence(st.Challenge.Binding.Sequence)))
	return b.String()
}

func (m *Model) renderFailed(st engine.Failed) string {
	var b strings.Builder
	switch st.Reason.Kind {
	case model.FailureSkipped:
		b.WriteString(failStyle.Render("skipped"))
	case model.FailureTimeout:
		b.WriteString(failStyle.Render("time's up"))
	default:
		b.WriteString(failStyle.Render("✗ wrong"))
	}
	if len(st.Reason.Input) > 0 {
		b.WriteString(pendingStyle.Render("  you typed "))
		b.WriteString(incorrectStyle.Render(keys.FormatSequence(st.Reason.Input)))
	}
	b.WriteString("\n\n")
	b.WriteString(correctStyle.Render(st.Challenge.Binding.Action))
	b.WriteString("\n")
	b.WriteString(accentStyle.Render(keys.FormatSequence(st.Challenge.Binding.Sequence)))
	return b.String()
}

func (m *Model) renderFooter() string {
	if _, ok := m.driver.State().(engine.ModeSelect); ok {
		return ""
	}
	if _, ok := m.driver.State().(engine.ToolSelect); ok {
		return ""
	}
	attempts, successes := 0, 0
	table := m.driver.Persisted().Mastery
	for _, b := range m.driver.Tool().Bindings {
		rec := table[b.ID]
		attempts += rec.Attempts
		successes += rec.Successes
	}
	return renderFooter(m.driver.Stats(), attempts, successes)
}

// renderFooter formats session totals next to all-time accuracy for the tool.
func renderFooter(stats mastery.SessionStats, allAttempts, allSuccesses int) string {
	segments := []string{fmt.Sprintf("Session %d/%d · %.1f%%", stats.CorrectAttempts, stats.TotalAttempts, stats.Accuracy()*100)}
	if stats.CorrectAttempts > 0 {
		segments = append(segments, fmt.Sprintf("Avg %.0fms", stats.AvgReactionMs))
	}
	if allAttempts > 0 {
		segments = append(segments, fmt.Sprintf("All-time %.1f%%", float64(allSuccesses)/float64(allAttempts)*100))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

// contextLine renders a folded scenario context in a fixed key order.
func contextLine(ctx map[string]any) string {
	var parts []string
	if v, ok := ctx[challenge.CtxMode].(string); ok && v != "" {
		parts = append(parts, "mode "+v)
	}
	if v, ok := ctx[challenge.CtxCursor].(string); ok && v != "" {
		parts = append(parts, "cursor "+v)
	}
	if v, ok := ctx[challenge.CtxSelection].(bool); ok && v {
		parts = append(parts, "selection")
	}
	if v, ok := ctx[challenge.CtxWindowCount].(int); ok && v > 0 {
		parts = append(parts, fmt.Sprintf("%d+ windows", v))
	}
	if v, ok := ctx[challenge.CtxDirty].(bool); ok && v {
		parts = append(parts, "unsaved changes")
	}
	return strings.Join(parts, " · ")
}

func statusLine(s session.InputStatus) string {
	switch s {
	case session.StatusPartial:
		return pendingStyle.Render("…")
	case session.StatusError:
		return incorrectStyle.Render("wrong key")
	default:
		return ""
	}
}

func menuLine(s string, selected bool) string {
	if selected {
		return accentStyle.Render("› " + s)
	}
	return pendingStyle.Render("  " + s)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func wrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

type timerMsg struct {
	timer session.Timer
}

// tickScheduler turns driver timers into tea.Tick commands. Commands pile up
// until the next Update returns them.
type tickScheduler struct {
	cmds []tea.Cmd
}

func (s *tickScheduler) After(d time.Duration, t session.Timer) {
	s.cmds = append(s.cmds, tea.Tick(d, func(time.Time) tea.Msg { return timerMsg{timer: t} }))
}

func (s *tickScheduler) drain() tea.Cmd {
	if len(s.cmds) == 0 {
		return nil
	}
	cmds := s.cmds
	s.cmds = nil
	return tea.Batch(cmds...)
}

// rawFromTea converts a Bubble Tea key message into a raw key event. With
// metaAsAlt the terminal's Alt flag is reported as Meta.
func rawFromTea(msg tea.KeyMsg, metaAsAlt bool) keys.RawKey {
	s := msg.String()
	var raw keys.RawKey
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range []string{"ctrl+", "alt+", "shift+"} {
			if len(s) <= len(prefix) || !strings.HasPrefix(s, prefix) {
				continue
			}
			switch prefix {
			case "ctrl+":
				raw.Ctrl = true
			case "alt+":
				raw.Alt = true
			case "shift+":
				raw.Shift = true
			}
			s = s[len(prefix):]
			stripped = true
		}
	}
	raw.Key = s
	// NUL arrives as ctrl+@; on a keyboard that is ctrl+space.
	if raw.Ctrl && raw.Key == "@" {
		raw.Key = "space"
	}
	if metaAsAlt && raw.Alt {
		raw.Alt = false
		raw.Meta = true
	}
	return raw
}

// UnreachableChords lists chords a terminal cannot deliver intact: ctrl+`
// and ctrl+2 arrive as NUL (read as ctrl+space), ctrl+- and ctrl+/ as ctrl+_,
// and the remaining punctuation is sent without ctrl.
func UnreachableChords() []keys.Chord {
	out := make([]keys.Chord, 0, 9)
	for _, k := range []keys.Key{"`", "2", "-", "/", "=", ",", ".", ";", "'"} {
		out = append(out, keys.New(k, keys.Ctrl))
	}
	return out
}
