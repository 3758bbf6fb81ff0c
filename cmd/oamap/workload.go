package main

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/llxisdsh/oamap/internal/workload"
)

func workloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "workload",
		Usage:     "Run randomized operations against the map and check them against a built-in map.",
		UsageText: "oamap workload [options]",
		Action:    workloadAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "JSON or YAML file with workload settings; flags override it",
				Sources: cli.EnvVars("OAMAP_PROFILE"),
			},
			&cli.IntFlag{
				Name:    "ops",
				Aliases: []string{"n"},
				Value:   1_000_000,
				Usage:   "Operations per worker",
				Sources: cli.EnvVars("OAMAP_OPS"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   runtime.GOMAXPROCS(0),
				Usage:   "Independent maps exercised in parallel",
				Sources: cli.EnvVars("OAMAP_WORKERS"),
			},
			&cli.IntFlag{
				Name:    "keys",
				Aliases: []string{"k"},
				Value:   1 << 16,
				Usage:   "Size of the key space",
				Sources: cli.EnvVars("OAMAP_KEYS"),
			},
			&cli.Uint64Flag{
				Name:    "seed",
				Usage:   "Random seed; 0 picks one from the clock",
				Sources: cli.EnvVars("OAMAP_SEED"),
			},
			&cli.FloatFlag{
				Name:    "max-load-factor",
				Usage:   "Maximum load factor of every map; 0 keeps the default",
				Sources: cli.EnvVars("OAMAP_MAX_LOAD_FACTOR"),
			},
			&cli.StringFlag{
				Name:    "memory",
				Aliases: []string{"m"},
				Value:   workload.MemoryHeap,
				Usage:   fmt.Sprintf("Memory strategy, one of %v", workload.MemoryNames),
				Sources: cli.EnvVars("OAMAP_MEMORY"),
				Validator: func(s string) error {
					if !slices.Contains(workload.MemoryNames, s) {
						return fmt.Errorf("unknown memory strategy %q", s)
					}
					return nil
				},
			},
		},
	}
}

func workloadAction(ctx context.Context, cmd *cli.Command) error {
	logger := loggerFrom(ctx)

	var p profile
	var k *koanf.Koanf
	if path := cmd.String("profile"); path != "" {
		var err error
		if k, err = loadProfile(path); err != nil {
			return err
		}
		logger.Info("using profile", "file", path)
	}
	if err := p.resolve(cmd, k); err != nil {
		return err
	}
	seed := p.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	cfg := workload.Config{
		Ops:           p.Ops,
		Workers:       p.Workers,
		Keys:          p.Keys,
		Seed:          seed,
		MaxLoadFactor: p.MaxLoadFactor,
		Memory:        p.Memory,
		Logger:        logger,
	}
	logger.Info("starting workload",
		"ops", cfg.Ops,
		"workers", cfg.Workers,
		"keys", cfg.Keys,
		"seed", cfg.Seed,
		"memory", cfg.Memory,
	)

	start := time.Now()
	r, err := workload.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("workload (seed %d): %w", seed, err)
	}
	elapsed := time.Since(start)

	t := r.Total
	total := t.Inserts + t.Assigns + t.Emplaces + t.Erases + t.Indexes + t.Lookups
	w := cmd.Root().Writer
	fmt.Fprintf(w, "ops:       %d in %v (%.0f ops/s)\n", total, elapsed.Round(time.Millisecond),
		float64(total)/elapsed.Seconds())
	fmt.Fprintf(w, "inserts:   %d (assign %d, emplace %d)\n", t.Inserts, t.Assigns, t.Emplaces)
	fmt.Fprintf(w, "erases:    %d\n", t.Erases)
	fmt.Fprintf(w, "lookups:   %d (misses %d, index %d)\n", t.Lookups, t.Misses, t.Indexes)
	fmt.Fprintf(w, "rehashes:  %d\n", t.Rehashes)
	fmt.Fprintf(w, "entries:   %d in %d buckets\n", t.FinalSize, t.FinalBuckets)
	if cfg.Memory == workload.MemoryPool {
		fmt.Fprintf(w, "pool:      %d hits, %d misses\n", r.PoolHits, r.PoolMisses)
	}
	return nil
}
