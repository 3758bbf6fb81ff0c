package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/urfave/cli/v3"

	"github.com/llxisdsh/oamap"
)

func hashCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print the xxhash of each key and the bucket it lands in.",
		UsageText: "oamap hash [--capacity N] key...",
		Action:    hashAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "capacity",
				Aliases: []string{"c"},
				Value:   16,
				Usage:   "Bucket count of the map the keys are inserted into",
			},
		},
	}
}

func hashAction(_ context.Context, cmd *cli.Command) error {
	keys := cmd.Args().Slice()
	if len(keys) == 0 {
		return errors.New("no keys given")
	}
	capacity := cmd.Int("capacity")
	if capacity < 1 {
		return fmt.Errorf("capacity must be positive, got %d: %w", capacity, oamap.ErrInvalidArgument)
	}

	m := oamap.New[string, int](
		oamap.WithKeyHasher(func(key string, _ uintptr) uintptr {
			return uintptr(xxhash.Sum64String(key))
		}),
		oamap.WithCapacity(capacity),
		oamap.WithMaxLoadFactor(1),
	)
	w := cmd.Root().Writer
	for i, key := range keys {
		h := xxhash.Sum64String(key)
		m.Insert(key, i)
		home := int(uintptr(h) % uintptr(m.BucketCount()))
		slot, err := m.Bucket(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-20s %016x home %-4d slot %d\n", key, h, home, slot)
	}
	fmt.Fprintf(w, "%d keys in %d buckets, load factor %.2f\n", m.Size(), m.BucketCount(), m.LoadFactor())
	return nil
}
