package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdobrica/yui/common/version"
	"github.com/bdobrica/yui/internal/yui/app"
	"github.com/bdobrica/yui/internal/yui/config"
	"github.com/bdobrica/yui/internal/yui/matrix"
	"github.com/bdobrica/yui/internal/yui/observability"
	"github.com/bdobrica/yui/internal/yui/store"
)

type rootOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "yui",
		Short:         "Yui answers questions in chat rooms",
		Long:          "Yui is a chat bot that answers from a curated Q&A corpus, a local language model, or a hosted model selected per user.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Connect to the Matrix homeserver and answer mentions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMatrix(cmd.Context(), opts)
			},
		},
		newConsoleCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Yui "+version.Info())
		},
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runMatrix(parent context.Context, opts *rootOptions) error {
	cfg := config.Load(opts.envFiles...)
	if err := cfg.Validate(); err != nil {
		return err
	}
	closeLog := observability.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer closeLog()
	slog.Info("starting Yui", "version", version.Version, "commit", version.GitCommit)

	ctx, cancel := signalContext(parent)
	defer cancel()

	var st *store.Store
	if cfg.DatabasePath != "" {
		var err error
		st, err = store.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
	}

	client, err := matrix.New(&matrix.Config{
		Homeserver:   cfg.Matrix.Homeserver,
		UserID:       cfg.Matrix.UserID,
		AccessToken:  cfg.Matrix.AccessToken,
		AllowedRooms: cfg.Matrix.AllowedRooms,
		AutoJoin:     cfg.Matrix.AutoJoin,
		Store:        st,
	}, slog.Default())
	if err != nil {
		closeStore(st)
		return err
	}

	bot, err := app.New(ctx, cfg, client, app.WithStore(st), app.WithConcurrentTurns())
	if err != nil {
		closeStore(st)
		return fmt.Errorf("failed to initialize Yui: %w", err)
	}
	defer bot.Stop()

	return bot.Run(ctx)
}

func closeStore(st *store.Store) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		slog.Warn("failed to close database", "err", err)
	}
}
