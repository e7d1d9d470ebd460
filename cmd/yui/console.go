package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bdobrica/yui/common/version"
	"github.com/bdobrica/yui/internal/yui/app"
	"github.com/bdobrica/yui/internal/yui/config"
	"github.com/bdobrica/yui/internal/yui/console"
	"github.com/bdobrica/yui/internal/yui/observability"
)

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	var user string
	var noColor bool
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with Yui in the terminal",
		Long:  "Every line typed is sent to Yui as a mention. Commands such as !switch and !reset work as in a room. End input (Ctrl+D) to quit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts, user, !noColor && !color.NoColor)
		},
	}
	cmd.Flags().StringVar(&user, "user", console.DefaultUser, "user ID the session belongs to")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable coloured output")
	return cmd
}

func runConsole(cmd *cobra.Command, opts *rootOptions, user string, useColor bool) error {
	cfg := config.Load(opts.envFiles...)
	if err := cfg.ValidateForConsole(); err != nil {
		return err
	}
	closeLog := observability.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer closeLog()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signalContext(parent)
	defer cancel()

	transport := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), console.Options{User: user, Color: useColor}, slog.Default())
	bot, err := app.New(ctx, cfg, transport)
	if err != nil {
		return fmt.Errorf("failed to initialize Yui: %w", err)
	}
	defer bot.Stop()

	banner := color.New(color.Bold)
	if !useColor {
		banner.DisableColor()
	}
	banner.Fprintf(cmd.OutOrStdout(), "Yui %s. Type a message, !help for commands, Ctrl+D to quit.\n", version.Version)

	return bot.Run(ctx)
}
