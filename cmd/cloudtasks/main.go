package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/cloudtasks/internal/model"
	"github.com/sandeepkv93/cloudtasks/internal/scheduler"
	"github.com/sandeepkv93/cloudtasks/internal/update"
	"github.com/sandeepkv93/cloudtasks/internal/views"
)

var errNotSignedIn = errors.New("not signed in; run cloudtasks to sign in")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cloudtasks failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configDir string
		route     string
	)

	root := &cobra.Command{
		Use:           "cloudtasks",
		Short:         "Terminal client for the hosted task service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(configDir)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.RequireBackend(); err != nil {
				return err
			}

			engine := scheduler.NewEngine(a.cfg.ExpiryBuffer)
			engine.Start()
			defer engine.Stop()

			m := update.NewModel(update.Deps{
				Sessions:     a.sessions,
				Tasks:        a.tasks,
				Scheduler:    engine,
				Logger:       a.logger,
				InitialRoute: route,
			})
			program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = program.Run()
			if dropped := engine.Dropped(); dropped > 0 {
				a.logger.Warn().Uint64("dropped", dropped).Msg("expiry events dropped")
			}
			return err
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory for the state db and log (default $XDG_CONFIG_HOME/cloudtasks)")
	root.Flags().StringVar(&route, "route", "tasks", "screen to open first: login, register, confirm?username=..., tasks")

	root.AddCommand(
		newListCmd(&configDir),
		newWhoamiCmd(&configDir),
		newLogoutCmd(&configDir),
	)
	return root
}

func newListCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configDir)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.RequireBackend(); err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			items, err := a.tasks.FetchAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No tasks yet.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for i, task := range items {
				fmt.Fprintf(w, "%d.\t%s\t%s\t%s\n", i+1, views.Checkbox(string(task.Status)), task.Name, expiryColumn(a, task))
			}
			return w.Flush()
		},
	}
}

func expiryColumn(a *app, task model.Task) string {
	hours := 0
	if task.ExpiryDate != nil {
		hours = a.tasks.RemainingHours(*task.ExpiryDate)
	}
	return views.ExpiryLabel(string(task.Status), task.ExpiryDate != nil, hours)
}

func newWhoamiCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configDir)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			claims, ok := a.sessions.Identity()
			if !ok {
				return errNotSignedIn
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "email: %s\nuser:  %s\n", claims.Email, claims.Subject)
			if !claims.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "token expires: %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newLogoutCmd(configDir *string) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configDir)
			if err != nil {
				return err
			}
			defer a.Close()
			a.sessions.Restore(cmd.Context())
			a.sessions.Logout(cmd.Context())
			if purge {
				if err := a.store.Purge(cmd.Context()); err != nil {
					return err
				}
				a.logger.Info().Msg("local state purged")
				fmt.Fprintln(cmd.OutOrStdout(), "signed out, local state cleared")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "also drop every table in the local state db")
	return cmd
}
