// Package main provides the CLI entrypoint for keydrill.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/keydrill/internal/bindings"
	"github.com/verte-zerg/keydrill/internal/config"
	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/match"
	"github.com/verte-zerg/keydrill/internal/model"
	"github.com/verte-zerg/keydrill/internal/session"
	"github.com/verte-zerg/keydrill/internal/statsui"
	"github.com/verte-zerg/keydrill/internal/store"
	"github.com/verte-zerg/keydrill/internal/tui"
)

const (
	defaultSkipKey     = "tab"
	defaultMetaKey     = "alt"
	defaultCurveWindow = 20
)

// reservedChords belong to the terminal and the program itself.
var reservedChords = []string{"ctrl+c", `ctrl+\`}

var (
	trainerTool             string
	trainerMode             string
	trainerVimMode          string
	trainerAssist           bool
	trainerReducedMotion    bool
	trainerSequenceTimeout  string
	trainerChallengeTimeout string
	trainerMetaKey          string
	trainerSkipKey          string

	logLevel string
	logFile  string
	toolsDir string
	dbPath   string

	toolsCheck bool

	statsTool        string
	statsSince       string
	statsLast        int
	statsCurveWindow int

	resetHistory bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keydrill",
		Short:         "TUI keyboard shortcut trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTrainerCmd,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&trainerTool, "tool", "", "tool to drill (skips the tool menu)")
	flags.StringVar(&trainerMode, "mode", "", "game mode: reflex or scenario (skips the mode menu)")
	flags.StringVar(&trainerVimMode, "vim-mode", "", "tool mode to drill, e.g. normal or visual")
	flags.BoolVar(&trainerAssist, "assist", false, "show bindings in reflex mode")
	flags.BoolVar(&trainerReducedMotion, "reduced-motion", false, "disable animations")
	flags.StringVar(&trainerSequenceTimeout, "sequence-timeout", model.DefaultSequenceTimeout.String(), "inactivity window between chords")
	flags.StringVar(&trainerChallengeTimeout, "challenge-timeout", "0s", "time limit per challenge (0 disables)")
	flags.StringVar(&trainerMetaKey, "meta-key", defaultMetaKey, "terminal key reported as meta: alt or none")
	flags.StringVar(&trainerSkipKey, "skip-key", defaultSkipKey, "chord that skips a challenge")

	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflags.StringVar(&logFile, "log-file", "", "log file path")
	pflags.StringVar(&toolsDir, "tools-dir", config.DefaultToolsDir(), "directory with user binding packs")
	pflags.StringVar(&dbPath, "db", config.DefaultDBPath(), "database path")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newExportCmd())

	return rootCmd
}

func runTrainerCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("keydrill needs an interactive terminal")
	}
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "tool", &trainerTool, fileCfg.Trainer.Tool)
	applyStringConfig(cmd, "mode", &trainerMode, fileCfg.Trainer.Mode)
	applyStringConfig(cmd, "vim-mode", &trainerVimMode, fileCfg.Trainer.VimMode)
	applyBoolConfig(cmd, "assist", &trainerAssist, fileCfg.Trainer.Assist)
	applyBoolConfig(cmd, "reduced-motion", &trainerReducedMotion, fileCfg.Trainer.ReducedMotion)
	applyStringConfig(cmd, "sequence-timeout", &trainerSequenceTimeout, fileCfg.Trainer.SequenceTimeout)
	applyStringConfig(cmd, "challenge-timeout", &trainerChallengeTimeout, fileCfg.Trainer.ChallengeTimeout)
	applyStringConfig(cmd, "meta-key", &trainerMetaKey, fileCfg.Trainer.MetaKey)
	applyStringConfig(cmd, "skip-key", &trainerSkipKey, fileCfg.Trainer.SkipKey)

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	skip, err := keys.ParseChord(cfg.SkipKey)
	if err != nil {
		return fmt.Errorf("invalid --skip-key: %w", err)
	}

	logger, closer, err := openLogger()
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	tools, err := loadTools(logger, skip)
	if err != nil {
		return err
	}
	if cfg.Tool != "" {
		if _, ok := bindings.Find(tools, cfg.Tool); !ok {
			return fmt.Errorf("unknown tool %q (see: keydrill tools)", cfg.Tool)
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	gateway := store.NewGateway(st, logger)
	state := gateway.Load(ctx)
	if patch, ok := settingsPatch(cmd, fileCfg, cfg); ok {
		state = gateway.UpdateSettings(ctx, patch)
	}

	logger.Info("start trainer", "tool", cfg.Tool, "mode", cfg.Mode, "tools", len(tools))
	m := tui.NewModel(ctx, cfg, tools, state, gateway, session.Options{
		Logger:    logger,
		SkipChord: skip,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func buildConfig() (model.Config, error) {
	cfg := model.Config{
		Tool:          strings.TrimSpace(trainerTool),
		ToolMode:      strings.TrimSpace(trainerVimMode),
		Assist:        trainerAssist,
		ReducedMotion: trainerReducedMotion,
		MetaKey:       strings.ToLower(strings.TrimSpace(trainerMetaKey)),
		SkipKey:       strings.TrimSpace(trainerSkipKey),
	}
	if trainerMode != "" {
		mode, ok := model.ParseGameMode(trainerMode)
		if !ok {
			return cfg, fmt.Errorf("--mode must be reflex or scenario")
		}
		cfg.Mode = mode
	}
	var err error
	if cfg.SequenceTimeout, err = parseDuration("sequence-timeout", trainerSequenceTimeout); err != nil {
		return cfg, err
	}
	if cfg.SequenceTimeout <= 0 {
		return cfg, fmt.Errorf("--sequence-timeout must be > 0")
	}
	if cfg.ChallengeTimeout, err = parseDuration("challenge-timeout", trainerChallengeTimeout); err != nil {
		return cfg, err
	}
	if cfg.ChallengeTimeout < 0 {
		return cfg, fmt.Errorf("--challenge-timeout must be >= 0")
	}
	switch cfg.MetaKey {
	case "alt", "none":
	default:
		return cfg, fmt.Errorf("--meta-key must be alt or none")
	}
	if cfg.SkipKey == "" {
		cfg.SkipKey = defaultSkipKey
	}
	return cfg, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return d, nil
}

// settingsPatch collects the persisted settings that the user set explicitly
// through a flag or the config file.
func settingsPatch(cmd *cobra.Command, fileCfg config.FileConfig, cfg model.Config) (model.SettingsPatch, bool) {
	var patch model.SettingsPatch
	set := func(flag string, fromFile bool) bool {
		return cmd.Flags().Changed(flag) || fromFile
	}
	changed := false
	if set("assist", fileCfg.Trainer.Assist != nil) {
		patch.AssistMode = &cfg.Assist
		changed = true
	}
	if set("reduced-motion", fileCfg.Trainer.ReducedMotion != nil) {
		patch.ReducedMotion = &cfg.ReducedMotion
		changed = true
	}
	if set("sequence-timeout", fileCfg.Trainer.SequenceTimeout != nil) {
		patch.SequenceTimeout = &cfg.SequenceTimeout
		changed = true
	}
	if set("challenge-timeout", fileCfg.Trainer.ChallengeTimeout != nil) {
		patch.ChallengeTimeout = &cfg.ChallengeTimeout
		changed = true
	}
	return patch, changed
}

func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)
	return fileCfg, nil
}

func openLogger() (*slog.Logger, io.Closer, error) {
	logger, closer, err := config.OpenLogger(logFile, logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, closer, nil
}

// loadTools loads the binding packs. Bindings that need a reserved chord or
// the skip chord are dropped because the trainer intercepts those keys, as
// are bindings the terminal cannot deliver.
func loadTools(logger *slog.Logger, skip keys.Chord) ([]model.ToolDefinition, error) {
	loader := bindings.Loader{
		Logger:      logger,
		Reserved:    []keys.Chord{skip},
		Unreachable: tui.UnreachableChords(),
	}
	for _, s := range reservedChords {
		c, err := keys.ParseChord(s)
		if err != nil {
			return nil, err
		}
		loader.Reserved = append(loader.Reserved, c)
	}
	tools, err := loader.Load(toolsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load binding packs: %w", err)
	}
	return tools, nil
}

// configSkipChord resolves the skip chord for subcommands that do not take
// the trainer flags.
func configSkipChord(fileCfg config.FileConfig) (keys.Chord, error) {
	key := defaultSkipKey
	if fileCfg.Trainer.SkipKey != nil && strings.TrimSpace(*fileCfg.Trainer.SkipKey) != "" {
		key = strings.TrimSpace(*fileCfg.Trainer.SkipKey)
	}
	skip, err := keys.ParseChord(key)
	if err != nil {
		return keys.Chord{}, fmt.Errorf("invalid skip-key in config: %w", err)
	}
	return skip, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List binding packs",
		Args:  cobra.NoArgs,
		RunE:  runToolsCmd,
	}
	cmd.Flags().BoolVar(&toolsCheck, "check", false, "report bindings whose first chord overlaps another binding")
	return cmd
}

func runToolsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	logger, closer, err := openLogger()
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	skip, err := configSkipChord(fileCfg)
	if err != nil {
		return err
	}
	tools, err := loadTools(logger, skip)
	if err != nil {
		return err
	}
	return writeTools(cmd.OutOrStdout(), tools, toolsCheck)
}

func writeTools(w io.Writer, tools []model.ToolDefinition, check bool) error {
	for _, tool := range tools {
		modes := make([]string, 0, len(tool.Modes))
		for _, md := range tool.Modes {
			modes = append(modes, md.ID)
		}
		line := fmt.Sprintf("%-10s %-16s %4d bindings", tool.ID, tool.Name, len(tool.Bindings))
		if len(modes) > 0 {
			line += "  modes: " + strings.Join(modes, ", ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if !check {
			continue
		}
		for _, b := range tool.Bindings {
			others := match.Overlapping(tool, b)
			if len(others) == 0 {
				continue
			}
			verb := "overlaps"
			ids := make([]string, len(others))
			for i, o := range others {
				ids[i] = o.ID
				if keys.EqualSequence(o.Sequence, b.Sequence) {
					verb = "duplicates"
				}
			}
			if _, err := fmt.Fprintf(w, "  %s (%s) %s %s\n", b.ID, keys.SequenceString(b.Sequence), verb, strings.Join(ids, ", ")); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsTool, "tool", "", "tool filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N attempts")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("keydrill stats needs an interactive terminal")
	}
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	cfg := model.StatsConfig{
		Tool:        statsTool,
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}

	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	logger, closer, err := openLogger()
	if err != nil {
		return err
	}
	defer closeQuietly(closer)
	skip, err := configSkipChord(fileCfg)
	if err != nil {
		return err
	}
	tools, err := loadTools(logger, skip)
	if err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	state := store.NewGateway(st, logger).Load(context.Background())

	m := statsui.NewModel(st, tools, state.Mastery, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear mastery progress and settings",
		Args:  cobra.NoArgs,
		RunE:  runResetCmd,
	}
	cmd.Flags().BoolVar(&resetHistory, "history", false, "also delete the attempt history")
	return cmd
}

func runResetCmd(cmd *cobra.Command, _ []string) error {
	return withGateway(cmd, func(ctx context.Context, g *store.Gateway) error {
		if err := g.Clear(ctx, resetHistory); err != nil {
			return fmt.Errorf("failed to reset: %w", err)
		}
		logErrln("Progress cleared.")
		return nil
	})
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the persisted progress as JSON",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	return withGateway(cmd, func(ctx context.Context, g *store.Gateway) error {
		data, err := g.Export(ctx)
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	})
}

func withGateway(cmd *cobra.Command, fn func(context.Context, *store.Gateway) error) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	logger, closer, err := openLogger()
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return fn(cmd.Context(), store.NewGateway(st, logger))
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# keydrill configuration
# Uncomment a value to enable it. CLI flags override config values.

[trainer]
# tool = "vim"                  # Skip the tool menu
# mode = "reflex"               # reflex or scenario; skips the mode menu
# vim-mode = "normal"           # Tool mode for packs that define modes
# assist = false                # Show bindings in reflex mode
# reduced-motion = false        # Disable animations
# sequence-timeout = %q       # Inactivity window between chords
# challenge-timeout = "0s"      # Time limit per challenge (0 disables)
# meta-key = %q              # Terminal key reported as meta: alt or none
# skip-key = %q               # Chord that skips a challenge

[log]
# level = "info"                # debug, info, warn, error
# file = %q
`,
		model.DefaultSequenceTimeout.String(),
		defaultMetaKey,
		defaultSkipKey,
		config.DefaultLogPath(),
	)
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		logErrf("failed to close log: %v\n", err)
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
