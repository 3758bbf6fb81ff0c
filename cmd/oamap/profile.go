package main

import (
	"fmt"
	"path/filepath"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
)

// profile is a workload description read from a JSON or YAML file. Keys
// match the workload flag names.
type profile struct {
	Ops           int     `koanf:"ops"`
	Workers       int     `koanf:"workers"`
	Keys          int     `koanf:"keys"`
	Seed          uint64  `koanf:"seed"`
	MaxLoadFactor float64 `koanf:"max-load-factor"`
	Memory        string  `koanf:"memory"`
}

// loadProfile reads path, choosing the parser by extension. Files without an
// extension are tried as YAML, then JSON.
func loadProfile(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	ext := filepath.Ext(path)

	var parser koanf.Parser
	switch ext {
	case ".json":
		parser = json.Parser()
	default:
		parser = yaml.Parser()
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		if ext != "" {
			return nil, fmt.Errorf("reading profile %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("profile %s must be JSON or YAML: %w", path, err)
		}
	}
	return k, nil
}

// resolve fills p with, per setting, the flag value if the flag was set on
// the command line or through its environment variable, else the profile
// value if present, else the flag default.
func (p *profile) resolve(cmd *cli.Command, k *koanf.Koanf) error {
	if k != nil {
		if err := k.Unmarshal("", p); err != nil {
			return fmt.Errorf("decoding profile: %w", err)
		}
	}
	fromProfile := func(key string) bool {
		return k != nil && k.Exists(key) && !cmd.IsSet(key)
	}
	if !fromProfile("ops") {
		p.Ops = cmd.Int("ops")
	}
	if !fromProfile("workers") {
		p.Workers = cmd.Int("workers")
	}
	if !fromProfile("keys") {
		p.Keys = cmd.Int("keys")
	}
	if !fromProfile("seed") {
		p.Seed = cmd.Uint64("seed")
	}
	if !fromProfile("max-load-factor") {
		p.MaxLoadFactor = cmd.Float("max-load-factor")
	}
	if !fromProfile("memory") {
		p.Memory = cmd.String("memory")
	}
	return nil
}
