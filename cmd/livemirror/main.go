package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/livemirror/livemirror/internal/mirror"
	"github.com/livemirror/livemirror/internal/mirror/config"
	"github.com/livemirror/livemirror/internal/version"
)

var (
	flagConfig      string
	flagLastUpdated string
)

var rootCmd = &cobra.Command{
	Use:     "livemirror",
	Short:   "Incrementally mirrors a live knowledge-base export into a local triple store",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		slog.Info("livemirror", "version", version.Version, "revision", version.Revision)

		client, err := mirror.New(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		// Operator override: set the cursor and quit without polling.
		if flagLastUpdated != "" {
			return client.SetCursor(flagLastUpdated)
		}

		defer slog.Info("Bye!")
		if err := client.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringVarP(&flagLastUpdated, "last-updated", "u", "",
		"Set the last applied cursor in YYYY-MM-DD-HH-IIIIII format and quit (at least YYYY-MM required)")
	rootCmd.Flags().StringVarP(&flagConfig, "local-config", "c", "",
		"Path to a local configuration JSON file merged over defaults")
}

func main() {
	// local development overrides, ignored when absent
	godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
