package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// globalFlags returns the flags available on every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging, including every rehash.",
			Sources: cli.EnvVars("OAMAP_VERBOSE"),
		},
		&cli.BoolFlag{
			Name:    "json",
			Usage:   "Output logs as JSON.",
			Sources: cli.EnvVars("OAMAP_LOG_JSON"),
		},
	}
}

type loggerKey struct{}

// loggerFrom returns the logger installed by the root command.
func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "oamap",
		Usage:     "Drive the open-addressing hash map from the command line.",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}
			l := newLogger(stderr, level, cmd.Bool("json"))
			return context.WithValue(ctx, loggerKey{}, l), nil
		},
		Commands: []*cli.Command{
			workloadCommand(),
			allocCommand(),
			hashCommand(),
		},
	}
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(ctx, args); err != nil {
		newLogger(os.Stderr, slog.LevelError, false).Error("oamap failed", "err", err)
		return 1
	}
	return 0
}
