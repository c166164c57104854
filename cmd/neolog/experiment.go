package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/neolog/internal/experiment"
	"github.com/verte-zerg/neolog/internal/generator"
	"github.com/verte-zerg/neolog/internal/logging"
	"github.com/verte-zerg/neolog/internal/model"
	"github.com/verte-zerg/neolog/internal/pilot"
	"github.com/verte-zerg/neolog/internal/sink"
	"github.com/verte-zerg/neolog/internal/store"
	"github.com/verte-zerg/neolog/internal/texts"
	"github.com/verte-zerg/neolog/internal/tui"
	"github.com/verte-zerg/neolog/internal/wordlist"
)

const defaultContinueLabel = "Press space to continue"

var (
	pilotScript string
	pilotName   string
	pilotAge    string
	pilotGender string
	pilotTrace  bool
)

func runExperimentCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("an interactive terminal is required; use 'neolog pilot' for scripted runs")
	}
	cfg, paths, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	provider, err := texts.Load(paths.Texts)
	if err != nil {
		return fmt.Errorf("failed to load texts: %w", err)
	}

	setup := tui.NewSetup(provider, provider.Languages(), cfg.Lang, cfg.WordCount)
	if _, err := tea.NewProgram(setup, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run setup: %w", err)
	}
	answers, ok := setup.Result()
	if !ok {
		logErrln("Setup cancelled.")
		return nil
	}
	cfg.Lang = answers.Language
	cfg.WordCount = answers.WordCount
	participant := model.ParticipantInfo{
		Name:        answers.Name,
		Age:         answers.Age,
		Gender:      answers.Gender,
		SessionDate: time.Now().Format("2006-01-02"),
		WordCount:   answers.WordCount,
		Language:    answers.Language,
	}

	r, err := newRunner(cfg, paths, provider, participant, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	program := tea.NewProgram(tui.NewModel(r.session, cfg.Width, cfg.Height), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		r.session.Fail(fmt.Errorf("failed to run TUI: %w", err))
	} else if !r.session.Done() {
		r.session.Abort()
	}
	return r.report()
}

func newPilotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pilot",
		Short: "Run a session headlessly from a key script",
		Args:  cobra.NoArgs,
		RunE:  runPilotCmd,
	}
	addExperimentFlags(cmd)
	cmd.Flags().StringVar(&pilotScript, "script", "", "key script: one \"<delay_ms> <key>\" per line")
	cmd.Flags().StringVar(&pilotName, "name", "pilot", "participant name")
	cmd.Flags().StringVar(&pilotAge, "age", "", "participant age")
	cmd.Flags().StringVar(&pilotGender, "gender", tui.Genders[len(tui.Genders)-1], "participant gender (m, w, d)")
	cmd.Flags().BoolVar(&pilotTrace, "trace", false, "print screen changes and keys to stdout")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func runPilotCmd(cmd *cobra.Command, _ []string) error {
	cfg, paths, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	if !validGender(pilotGender) {
		return fmt.Errorf("--gender must be one of %s", strings.Join(tui.Genders, ", "))
	}
	steps, err := pilot.LoadScript(pilotScript)
	if err != nil {
		return err
	}
	provider, err := texts.Load(paths.Texts)
	if err != nil {
		return fmt.Errorf("failed to load texts: %w", err)
	}

	clock := pilot.NewVirtualClock(time.Now())
	participant := model.ParticipantInfo{
		Name:        pilotName,
		Age:         pilotAge,
		Gender:      pilotGender,
		SessionDate: clock.Now().Format("2006-01-02"),
		WordCount:   cfg.WordCount,
		Language:    cfg.Lang,
	}
	r, err := newRunner(cfg, paths, provider, participant, clock.Now)
	if err != nil {
		return err
	}
	defer r.Close()

	var trace io.Writer
	if pilotTrace {
		trace = cmd.OutOrStdout()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = experiment.Run(ctx, r.session, pilot.NewScriptSurface(clock, steps, trace), clock)
	if err != nil && r.session.Err() == nil && r.session.Status() != model.StatusFinal {
		logErrf("pilot run interrupted: %v\n", err)
	}
	return r.report()
}

func validGender(g string) bool {
	for _, v := range tui.Genders {
		if v == g {
			return true
		}
	}
	return false
}

// runner owns everything a session writes to.
type runner struct {
	session *experiment.Session
	logger  *logging.Logger
	store   *store.Store
	csv     *sink.CSV
}

// newRunner opens the operator log, builds the trials and wires the sinks.
// now overrides the session's wall clock when non-nil.
func newRunner(cfg model.Config, paths pathSettings, provider *texts.Provider, participant model.ParticipantInfo, now func() time.Time) (*runner, error) {
	format, err := logging.ParseFormat(paths.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-format: %w", err)
	}
	level, err := logging.ParseLevel(paths.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	logger, err := logging.Open(logging.Config{
		Dir:       paths.Logs,
		Date:      participant.SessionDate,
		Level:     level,
		Format:    format,
		Component: "neolog",
	})
	if err != nil {
		return nil, err
	}
	r := &runner{logger: logger}

	wordPath := wordlist.PathFor(paths.Stimuli, cfg.Lang)
	words, err := wordlist.LoadWords(wordPath)
	if err != nil {
		logger.Error("failed to load stimuli", "path", wordPath, "error", err)
		r.Close()
		return nil, wordListLoadError(cfg.Lang, wordPath, err)
	}
	count, err := generator.ParseWordCount(cfg.WordCount, len(words))
	if err != nil {
		logger.Warn("invalid word count, using all words", "requested", cfg.WordCount, "available", len(words), "error", err)
	}
	gen := generator.New()
	if cfg.Seed != 0 {
		gen = generator.NewSeeded(cfg.Seed)
	}
	trials := gen.Trials(words, count, cfg.Shuffle)

	r.csv = sink.NewCSV(paths.Data)
	sinks := sink.Multi{r.csv}
	if paths.DB != "" {
		st, err := store.Open(paths.DB)
		if err != nil {
			logger.Warn("session archive unavailable", "path", paths.DB, "error", err)
		} else {
			r.store = st
			sinks = append(sinks, st)
		}
	}

	continueLabel := provider.Section(cfg.Lang, texts.UI, texts.SectionContinue)
	if strings.TrimSpace(continueLabel) == "" {
		continueLabel = defaultContinueLabel
	}
	r.session = experiment.New(experiment.Options{
		Config:        cfg,
		Instructions:  provider.Sections(cfg.Lang, texts.Instructions, cfg.InstructionSections),
		ThankYou:      provider.Section(cfg.Lang, texts.Instructions, texts.SectionThankYou),
		ContinueLabel: continueLabel,
		Trials:        trials,
		Participant:   participant,
		Sink:          sinks,
		Logger:        logger.Logger,
		Now:           now,
	})
	return r, nil
}

// report prints where the log went and surfaces a session failure.
func (r *runner) report() error {
	s := r.session
	if path := r.csv.LastPath(); path != "" {
		logErrf("Session %s %s: %d keystrokes, %d/%d trials. Log: %s\n",
			s.ID(), s.Status(), len(s.Events()), s.TrialsCompleted(), s.TrialsTotal(), path)
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("session failed: %w", err)
	}
	return nil
}

func (r *runner) Close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			logErrf("failed to close db: %v\n", err)
		}
	}
	if err := r.logger.Close(); err != nil {
		logErrf("failed to close log: %v\n", err)
	}
}

func wordListLoadError(lang, path string, err error) error {
	lines := []string{
		fmt.Sprintf("failed to load stimuli: %v", err),
		fmt.Sprintf("expected word list at: %s", path),
		"Run: neolog langs",
	}
	if errors.Is(err, wordlist.ErrEmpty) {
		lines = append(lines, fmt.Sprintf("the %s word list has no words", lang))
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}
