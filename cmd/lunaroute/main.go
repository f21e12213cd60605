// Command lunaroute is the gateway process (spec.md §6): `serve` resolves
// the bootstrap document and runs the HTTP server until terminated;
// `validate` resolves and checks a config document without starting
// anything. Grounded on the teacher's cmd/root.go + cmd/start.go cobra
// layout, trimmed to the two subcommands spec.md §6 names — the
// teacher's process-manager `stop`/`status`/`code` commands have no
// analogue here; this process runs in the foreground under its caller's
// supervision instead of forking and tracking a pidfile (see DESIGN.md).
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lunaroute/lunaroute/internal/config"
	"github.com/lunaroute/lunaroute/internal/server"
)

const appName = "lunaroute"

var logger *slog.Logger

func main() {
	root := &cobra.Command{Use: appName, Short: "LunaRoute LLM gateway"}
	root.PersistentFlags().StringP("bootstrap", "c", "lunaroute.yaml", "path to the bootstrap config document")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.AddCommand(serveCmd(), validateCmd())

	if err := root.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(exitCodeFor(err))
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveConfig builds the config.Source the --bootstrap flag names. The
// CLI only ever points at a local file, so the bootstrap document and its
// BootstrapFile.Path collapse into one flag; config.NewSource's database
// branch exists for a future bootstrap-document format that distinguishes
// the two (spec.md §6).
func resolveConfig(cmd *cobra.Command) (config.Source, string, error) {
	path, _ := cmd.Flags().GetString("bootstrap")

	src, err := config.NewSource(config.Bootstrap{Kind: config.BootstrapFile, Path: path})
	if err != nil {
		return nil, "", err
	}
	return src, path, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(verbose)

			src, path, err := resolveConfig(cmd)
			if err != nil {
				return &configError{err}
			}

			watcher, err := config.NewWatcher(src, logger)
			if err != nil {
				return &configError{err}
			}

			jsonlPath, _ := cmd.Flags().GetString("record-jsonl")
			sqlitePath, _ := cmd.Flags().GetString("record-sqlite")
			redactFlag, _ := cmd.Flags().GetBool("redact")

			srv, err := server.New(watcher, path, server.RecordingConfig{
				JSONLPath:  jsonlPath,
				SQLitePath: sqlitePath,
				Redact:     redactFlag,
			}, logger)
			if err != nil {
				return &configError{err}
			}

			cfg := watcher.Current()
			color.Green("starting %s on %s:%d", appName, cfg.Host, cfg.Port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			startErr := srv.Start(ctx)
			if startErr != nil {
				return startErr
			}
			if ctx.Err() != nil {
				return errInterrupted
			}
			return nil
		},
	}
	cmd.Flags().String("record-jsonl", "", "path to a JSONL recording sink (empty disables it)")
	cmd.Flags().String("record-sqlite", "", "path to a SQLite recording sink (empty disables it)")
	cmd.Flags().Bool("redact", false, "scrub PII from recorded events before they reach the configured sinks")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Resolve and validate a config document without starting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, _, err := resolveConfig(cmd)
			if err != nil {
				return &configError{err}
			}
			cfg, err := src.Resolve()
			if err != nil {
				return &configError{err}
			}
			color.Green("config OK: %d provider(s), %d routing rule(s)", len(cfg.Providers), len(cfg.Routing.Rules))
			return nil
		},
	}
	return cmd
}

// configError wraps a bootstrap/resolve failure (spec.md §6 exit code 1).
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// errInterrupted signals a SIGINT/SIGTERM-triggered shutdown (spec.md §6
// exit code 130).
var errInterrupted = errors.New("interrupted")

func exitCodeFor(err error) int {
	var cfgErr *configError
	var bindErr *server.BindError
	switch {
	case errors.As(err, &cfgErr):
		return 1
	case errors.As(err, &bindErr):
		return 2
	case errors.Is(err, errInterrupted):
		return 130
	default:
		return 1
	}
}
