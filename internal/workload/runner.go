// Package workload runs randomized operation sequences against oamap.Map and
// checks every result against Go's built-in map.
package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"unsafe"

	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/oamap"
	"github.com/llxisdsh/oamap/internal/opt"
)

// ErrMismatch is returned when the map under test diverges from the
// reference map.
var ErrMismatch = errors.New("workload: map diverged from reference")

// Config describes a workload run. Each worker owns one map; workers share
// only the memory strategy.
type Config struct {
	// Ops is the number of operations per worker.
	Ops int
	// Workers is the number of independent maps exercised in parallel.
	Workers int
	// Keys bounds the key space; smaller values mean more hits and more
	// tombstone reuse.
	Keys int
	// Seed makes a run reproducible. Worker w uses PCG(Seed, w).
	Seed uint64
	// MaxLoadFactor of every map; zero means the map default.
	MaxLoadFactor float64
	// Memory names the strategy: "heap", "pool" or "mmap".
	Memory string
	// Logger receives progress records; nil discards them.
	Logger *slog.Logger
}

func (c *Config) validate() error {
	switch {
	case c.Ops < 0:
		return fmt.Errorf("ops must not be negative, got %d: %w", c.Ops, oamap.ErrInvalidArgument)
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d: %w", c.Workers, oamap.ErrInvalidArgument)
	case c.Keys < 1:
		return fmt.Errorf("keys must be positive, got %d: %w", c.Keys, oamap.ErrInvalidArgument)
	case c.MaxLoadFactor != 0 && !(c.MaxLoadFactor > 0 && c.MaxLoadFactor <= 1):
		return fmt.Errorf("max load factor %v outside (0, 1]: %w", c.MaxLoadFactor, oamap.ErrInvalidArgument)
	}
	return nil
}

// Stats counts what a worker did.
type Stats struct {
	Inserts  int
	Assigns  int
	Emplaces int
	Erases   int
	Indexes  int
	Lookups  int
	Misses   int
	Rehashes int
	// FinalSize and FinalBuckets describe the map after the last operation.
	FinalSize    int
	FinalBuckets int
}

func (s *Stats) add(o *Stats) {
	s.Inserts += o.Inserts
	s.Assigns += o.Assigns
	s.Emplaces += o.Emplaces
	s.Erases += o.Erases
	s.Indexes += o.Indexes
	s.Lookups += o.Lookups
	s.Misses += o.Misses
	s.Rehashes += o.Rehashes
	s.FinalSize += o.FinalSize
	s.FinalBuckets += o.FinalBuckets
}

// paddedStats keeps each worker's counters on its own cache lines.
type paddedStats struct {
	Stats
	_ [(opt.CacheLineSize_ - unsafe.Sizeof(Stats{})%opt.CacheLineSize_) % opt.CacheLineSize_]byte
}

// Report is the outcome of a successful run.
type Report struct {
	Workers []Stats
	Total   Stats
	// PoolHits and PoolMisses are set for the "pool" strategy.
	PoolHits   int64
	PoolMisses int64
}

type entry = oamap.Entry[uint64, uint64]

// Run executes cfg and returns an error wrapping ErrMismatch at the first
// divergence from the reference map, or ctx.Err() if ctx is cancelled.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mem, err := NewMemory[entry](cfg.Memory)
	if err != nil {
		return nil, err
	}

	stats := make([]paddedStats, cfg.Workers)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for w := range cfg.Workers {
		g.Go(func() error {
			return runWorker(ctx, &cfg, w, mem, logger.With("worker", w), &stats[w].Stats)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := &Report{Workers: make([]Stats, cfg.Workers)}
	for w := range stats {
		r.Workers[w] = stats[w].Stats
		r.Total.add(&stats[w].Stats)
	}
	if pool, ok := mem.(*oamap.PoolMemory[entry]); ok {
		r.PoolHits, r.PoolMisses = pool.Stats()
	}
	logger.Info("workload finished",
		"workers", cfg.Workers,
		"ops", cfg.Ops,
		"size", r.Total.FinalSize,
		"rehashes", r.Total.Rehashes,
	)
	return r, nil
}

const (
	opInsert = iota
	opAssign
	opEmplace
	opEraseKey
	opEraseCursor
	opIndex
	opAt
	opContains
	numOps
)

var opNames = [numOps]string{
	"insert", "insert-or-assign", "try-emplace", "erase-key",
	"erase-cursor", "index", "at", "contains",
}

func runWorker(
	ctx context.Context,
	cfg *Config,
	w int,
	mem oamap.Memory[entry],
	logger *slog.Logger,
	st *Stats,
) error {
	options := []func(*oamap.MapConfig){
		oamap.WithMemory(mem),
		oamap.WithLogger(logger),
	}
	if cfg.MaxLoadFactor != 0 {
		options = append(options, oamap.WithMaxLoadFactor(cfg.MaxLoadFactor))
	}
	m := oamap.New[uint64, uint64](options...)
	defer m.Release()

	ref := make(map[uint64]uint64)
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(w)))
	buckets := m.BucketCount()

	for i := range cfg.Ops {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		op := rng.IntN(numOps)
		k := rng.Uint64N(uint64(cfg.Keys))
		v := rng.Uint64()
		want, had := ref[k]
		fail := func(format string, args ...any) error {
			return fmt.Errorf("worker %d op %d (%s %d): %s: %w",
				w, i, opNames[op], k, fmt.Sprintf(format, args...), ErrMismatch)
		}

		switch op {
		case opInsert:
			st.Inserts++
			if _, inserted := m.Insert(k, v); inserted == had {
				return fail("inserted=%v with key present=%v", inserted, had)
			}
			if !had {
				ref[k] = v
			}
		case opAssign:
			st.Assigns++
			if _, inserted := m.InsertOrAssign(k, v); inserted == had {
				return fail("inserted=%v with key present=%v", inserted, had)
			}
			ref[k] = v
		case opEmplace:
			st.Emplaces++
			called := false
			_, inserted := m.TryEmplace(k, func() uint64 {
				called = true
				return v
			})
			if inserted == had || called == had {
				return fail("inserted=%v constructed=%v with key present=%v", inserted, called, had)
			}
			if !had {
				ref[k] = v
			}
		case opEraseKey:
			st.Erases++
			n := m.EraseKey(k)
			if (n == 1) != had {
				return fail("erased %d with key present=%v", n, had)
			}
			delete(ref, k)
		case opEraseCursor:
			st.Erases++
			c := m.Find(k)
			if c.IsEnd() == had {
				return fail("found=%v with key present=%v", !c.IsEnd(), had)
			}
			if had {
				if _, err := m.Erase(c); err != nil {
					return fail("erase: %v", err)
				}
				delete(ref, k)
			}
		case opIndex:
			st.Indexes++
			p := m.Index(k)
			if *p != want {
				return fail("index = %d, want %d", *p, want)
			}
			*p++
			ref[k] = want + 1
		case opAt:
			st.Lookups++
			got, err := m.At(k)
			switch {
			case had && (err != nil || got != want):
				return fail("at = %d, %v; want %d", got, err, want)
			case !had && !errors.Is(err, oamap.ErrKeyNotFound):
				return fail("at on absent key: %v", err)
			case !had:
				st.Misses++
			}
		case opContains:
			st.Lookups++
			if m.Contains(k) != had {
				return fail("contains=%v", !had)
			}
			if !had {
				st.Misses++
			}
		}

		if m.Size() != len(ref) {
			return fail("size %d, want %d", m.Size(), len(ref))
		}
		if m.LoadFactor() > m.MaxLoadFactor() {
			return fail("load factor %v above %v", m.LoadFactor(), m.MaxLoadFactor())
		}
		if bc := m.BucketCount(); bc != buckets {
			st.Rehashes++
			buckets = bc
		}
	}

	if err := compare(m, ref); err != nil {
		return fmt.Errorf("worker %d: %w", w, err)
	}
	st.FinalSize = m.Size()
	st.FinalBuckets = m.BucketCount()
	logger.Debug("worker finished", "size", st.FinalSize, "buckets", st.FinalBuckets)
	return nil
}

// compare checks that m and ref hold exactly the same pairs.
func compare(m *oamap.Map[uint64, uint64], ref map[uint64]uint64) error {
	n := 0
	for k, v := range m.All() {
		n++
		if want, ok := ref[k]; !ok || want != v {
			return fmt.Errorf("iterated %d:%d, reference has %d (present=%v): %w",
				k, v, want, ok, ErrMismatch)
		}
	}
	if n != len(ref) {
		return fmt.Errorf("iterated %d entries, reference has %d: %w", n, len(ref), ErrMismatch)
	}
	return nil
}
