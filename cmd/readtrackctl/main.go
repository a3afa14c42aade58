// Package main provides readtrackctl, an operator CLI for the reading engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/readtrack-server/internal/auth"
	"github.com/listenupapp/readtrack-server/internal/config"
	"github.com/listenupapp/readtrack-server/internal/di"
	"github.com/listenupapp/readtrack-server/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	envFile  string
	dataDir  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "readtrackctl",
		Short:         "Operate a ReadTrack reading engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Path to .env file")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Directory for on-disk state")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newSweepCmd(&flags))
	root.AddCommand(newStreakCmd(&flags))
	root.AddCommand(newTokenCmd(&flags))
	return root
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	args := []string{"-env-file", flags.envFile, "-log-level", flags.logLevel}
	if flags.dataDir != "" {
		args = append(args, "-data-dir", flags.dataDir)
	}
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, err
	}
	// The server owns the schedule; the CLI runs sweeps on demand.
	cfg.Sweep.Enabled = false
	return cfg, nil
}

// withContainer runs fn against a container built from flags and shuts it
// down afterwards.
func withContainer(flags *globalFlags, fn func(i do.Injector) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	injector := di.NewContainerWithConfig(cfg)
	defer func() { _ = injector.Shutdown() }()
	return fn(injector)
}

func newSweepCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Abandon sessions idle past the timeout, once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(flags, func(i do.Injector) error {
				sweeper, err := do.Invoke[*service.Sweeper](i)
				if err != nil {
					return err
				}
				result, err := sweeper.Sweep(context.Background())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "checked=%d abandoned=%d skipped=%d failed=%d\n",
					result.Checked, result.Abandoned, result.Skipped, result.Failed)
				return nil
			})
		},
	}
}

func newStreakCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "streak <user-id>",
		Short: "Show a user's reading streak",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(flags, func(i do.Injector) error {
				progress, err := do.Invoke[*service.ProgressService](i)
				if err != nil {
					return err
				}
				resp, err := progress.GetStreak(context.Background(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(resp)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "current=%d longest=%d\n", resp.CurrentStreak, resp.LongestStreak)
				for _, day := range resp.Calendar {
					mark := "."
					if day.Active {
						mark = "#"
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d\n", day.Date.Format(time.DateOnly), mark, day.Count)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full streak response as JSON")
	return cmd
}

func newTokenCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(flags, func(i do.Injector) error {
				tokens, err := do.Invoke[*auth.TokenService](i)
				if err != nil {
					return err
				}
				token, err := tokens.Issue(args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}
