package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skillswap/backend/internal/app"
	"github.com/skillswap/backend/internal/config"
)

// current is opened by the root command before any subcommand runs.
var current *app.App

var rootCmd = &cobra.Command{
	Use:           "skillswapctl",
	Short:         "Operate the SkillSwap booking ledger",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelInfo
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		if current != nil {
			current.Close()
		}
		a, err := app.Open(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if current != nil {
			current.Close()
			current = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at info level")
}

func userFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("user")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--user is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q: %w", raw, err)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
