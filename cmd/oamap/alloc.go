package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v3"

	"github.com/llxisdsh/oamap"
	"github.com/llxisdsh/oamap/internal/workload"
)

func allocCommand() *cli.Command {
	return &cli.Command{
		Name:      "alloc",
		Usage:     "Check memory strategies with a fixed allocate/release pattern. Every named strategy runs; failures are reported together.",
		UsageText: "oamap alloc [strategy...]",
		Action:    allocAction,
	}
}

func allocAction(ctx context.Context, cmd *cli.Command) error {
	logger := loggerFrom(ctx)
	names := cmd.Args().Slice()
	if len(names) == 0 {
		names = workload.MemoryNames
	}
	w := cmd.Root().Writer
	var errs *multierror.Error
	for _, name := range names {
		mem, err := workload.NewMemory[int64](name)
		if errors.Is(err, oamap.ErrMemoryStrategy) {
			logger.Warn("skipping memory strategy", "memory", name, "err", err)
			fmt.Fprintf(w, "%-6s skipped\n", name)
			continue
		}
		if err == nil {
			err = workload.Exercise(mem)
		}
		if err != nil {
			fmt.Fprintf(w, "%-6s FAILED\n", name)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		logger.Debug("memory strategy passed", "memory", name)
		fmt.Fprintf(w, "%-6s ok\n", name)
	}
	return errs.ErrorOrNil()
}
