// Command imperium is the command-line front end of the IMPERIUM progression
// engine: register, study trials, complete tasks, summon the council and keep
// a journal. "imperium serve" exposes health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/imperium-ai/imperium/config"
	"github.com/imperium-ai/imperium/internal/domain/shared"
)

var (
	// Global flags
	userFlag string
	verbose  bool

	// Set by PersistentPreRunE, closed by execute
	cfg     *config.Config
	current *app
)

var rootCmd = &cobra.Command{
	Use:   "imperium",
	Short: "IMPERIUM - progression and gating engine for strategic self-development",
	Long: `IMPERIUM tracks influence XP, ranks and daily streaks.

XP comes from passing trials, completing tasks and summoning the council of
mentors (once per calendar day). State lives in a local file by default;
set STORAGE_BACKEND=postgres to use a database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cmd.Context())
		if err != nil {
			return err
		}

		quiet := !verbose && cmd.Name() != "serve"
		log := newLogger(cfg, quiet)

		current, err = newApp(cmd.Context(), cfg, log)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user id (defaults to the registered profile)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	rootCmd.AddCommand(registerCmd, mentorCmd, statusCmd, taskCmd, trialCmd, councilCmd, journalCmd, serveCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, rootCmd, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs cmd and returns the process exit code. The app is closed
// whether or not the command succeeded.
func execute(ctx context.Context, cmd *cobra.Command, stderr io.Writer) int {
	defer func() {
		if current != nil {
			current.Close()
			current = nil
		}
	}()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", describeError(err))
		return exitCode(err)
	}
	return 0
}

// describeError strips the domain/op prefix from domain errors.
func describeError(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func exitCode(err error) int {
	switch {
	case shared.IsValidation(err):
		return 2
	case shared.IsGateExceeded(err), errors.Is(err, shared.ErrLocked):
		return 3
	case shared.IsNotFound(err):
		return 4
	default:
		return 1
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// activeUser resolves the user id from --user or the profile file.
func activeUser() (string, error) {
	if userFlag != "" {
		return userFlag, nil
	}
	data, err := os.ReadFile(cfg.Storage.ProfileFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", shared.NewDomainError("cli", "activeUser", shared.ErrNotFound,
				"no profile found, run `imperium register` first or pass --user")
		}
		return "", fmt.Errorf("read profile: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", shared.NewDomainError("cli", "activeUser", shared.ErrNotFound, "profile file is empty")
	}
	return id, nil
}

func saveProfile(id string) error {
	if cfg.Storage.ProfileFile == "" {
		return nil
	}
	if err := os.WriteFile(cfg.Storage.ProfileFile, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
