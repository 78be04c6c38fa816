package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"alertbot/internal/app"
	"alertbot/internal/config"
	"alertbot/internal/feed"
	"alertbot/internal/region"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultConfigPath = "./config.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "alertbot",
		Short: "Air-raid alert notifier for Telegram.",
		Long: `Polls the regional air-raid status feed and notifies subscribers on Telegram
when an alert starts or ends in the region they follow.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to configuration file (yaml or json)")

	root.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration, then exit.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := config.NewManager(configPath).Load(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "config ok")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Fetch the feed once and print every region's status.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printStatus(cmd, configPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information.",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "alertbot", version)
			},
		},
	)
	return root
}

func run(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, configPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(stopCtx, app.StopFatalError)
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)

	if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printStatus(cmd *cobra.Command, configPath string) error {
	m := config.NewManager(configPath)
	cfg, err := m.Parse(cmd.Context())
	if err != nil {
		return err
	}
	timeout, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, feed.DefaultTimeout)
	if err != nil {
		return err
	}
	client := feed.New(feed.Config{
		BaseURL: cfg.Feed.BaseURL,
		Path:    cfg.Feed.Path,
		Token:   cfg.Feed.Token,
		Timeout: timeout,
	})
	st, err := client.FetchStatuses(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INDEX\tREGION\tCODE\tSTATUS")
	for _, r := range region.Default().All() {
		reading := st.At(r.FeedIndex)
		_, _ = fmt.Fprintf(w, "%d\t%s\t%c\t%s\n", r.FeedIndex, r.Title, reading.Code, reading.Status)
	}
	return w.Flush()
}
