package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/neolog/internal/model"
	"github.com/verte-zerg/neolog/internal/sink"
	"github.com/verte-zerg/neolog/internal/stats"
	"github.com/verte-zerg/neolog/internal/statsui"
	"github.com/verte-zerg/neolog/internal/store"
)

var (
	sessionsName   string
	sessionsLang   string
	sessionsStatus string
	sessionsSince  string
	sessionsLast   int
	exportOut      string
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect archived sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsListCmd,
	}
	addListFlags(cmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsListCmd,
	}
	addListFlags(listCmd)

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show per-attempt and per-character summaries of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsShowCmd,
	}

	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write the keystroke log of a session as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsExportCmd,
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse archived sessions interactively",
		Args:  cobra.NoArgs,
		RunE:  runSessionsBrowseCmd,
	}
	addListFlags(browseCmd)

	cmd.AddCommand(listCmd, showCmd, exportCmd, browseCmd)
	return cmd
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sessionsName, "name", "", "participant filter")
	cmd.Flags().StringVar(&sessionsLang, "lang", "", "language filter")
	cmd.Flags().StringVar(&sessionsStatus, "status", "", "status filter (final, aborted, intermediate)")
	cmd.Flags().StringVar(&sessionsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&sessionsLast, "last", 0, "limit to last N sessions")
}

func runSessionsListCmd(cmd *cobra.Command, _ []string) error {
	filter, err := sessionFilter()
	if err != nil {
		return err
	}
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		sessions, err := st.ListSessions(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		return stats.RenderSessions(cmd.OutOrStdout(), sessions)
	})
}

func runSessionsShowCmd(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		report, err := stats.BuildReport(ctx, st, args[0])
		if err != nil {
			return err
		}
		return stats.RenderReport(cmd.OutOrStdout(), report)
	})
}

func runSessionsBrowseCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("an interactive terminal is required; use 'neolog sessions list'")
	}
	filter, err := sessionFilter()
	if err != nil {
		return err
	}
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		program := tea.NewProgram(statsui.NewModel(ctx, st, filter), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run browser: %w", err)
		}
		return nil
	})
}

func runSessionsExportCmd(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		events, err := st.ListEvents(ctx, args[0])
		if err != nil {
			return err
		}
		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOut, err)
			}
			defer func() {
				if cerr := f.Close(); cerr != nil {
					logErrf("failed to close %s: %v\n", exportOut, cerr)
				}
			}()
			w = f
		}
		if err := sink.WriteEvents(w, events); err != nil {
			return fmt.Errorf("failed to write events: %w", err)
		}
		return nil
	})
}

func sessionFilter() (model.SessionFilter, error) {
	filter := model.SessionFilter{
		Name:     sessionsName,
		Language: sessionsLang,
		Status:   model.Status(sessionsStatus),
		Last:     sessionsLast,
	}
	switch filter.Status {
	case "", model.StatusFinal, model.StatusAborted, model.StatusIntermediate:
	default:
		return model.SessionFilter{}, fmt.Errorf("invalid --status value %q", sessionsStatus)
	}
	if sessionsLast < 0 {
		return model.SessionFilter{}, fmt.Errorf("--last must be >= 0")
	}
	if sessionsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sessionsSince, time.Local)
		if err != nil {
			return model.SessionFilter{}, fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	return filter, nil
}

func withStore(cmd *cobra.Command, fn func(context.Context, *store.Store) error) error {
	paths, err := resolvePaths(cmd)
	if err != nil {
		return err
	}
	if paths.DB == "" {
		return fmt.Errorf("the session archive is disabled (--db is empty)")
	}
	st, err := store.Open(paths.DB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return fn(cmd.Context(), st)
}
