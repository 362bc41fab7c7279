// Package config holds the typed configuration surface: the
// search parameters, the strategy-tag enums with string/int
// conversion, and optional TOML file loading layered under explicit
// flag overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/evoswarm/evoswarm/evoerr"
)

// MutateMethod selects how the population engine generates candidates
// each round.
type MutateMethod int

const (
	Simple MutateMethod = iota
	OnlyBest
	LowMem
)

func (m MutateMethod) String() string {
	switch m {
	case Simple:
		return "simple"
	case OnlyBest:
		return "only_best"
	case LowMem:
		return "low_mem"
	default:
		return "unknown"
	}
}

// ParseMutateMethod converts a strategy tag to a MutateMethod.
func ParseMutateMethod(s string) (MutateMethod, error) {
	switch s {
	case "simple":
		return Simple, nil
	case "only_best":
		return OnlyBest, nil
	case "low_mem":
		return LowMem, nil
	default:
		return 0, evoerr.ParseEnum("mutate_method", s)
	}
}

// MutateMethodFromInt converts an integer tag to a MutateMethod.
func MutateMethodFromInt(n int) (MutateMethod, error) {
	switch n {
	case 0:
		return Simple, nil
	case 1:
		return OnlyBest, nil
	case 2:
		return LowMem, nil
	default:
		return 0, evoerr.ConvertEnum("mutate_method", n)
	}
}

// DeleteMethod selects how the population engine restores the size
// invariant after a mutate pass.
type DeleteMethod int

const (
	SortKeep DeleteMethod = iota
	SortUnique
	RandomBest3
)

func (d DeleteMethod) String() string {
	switch d {
	case SortKeep:
		return "sort_keep"
	case SortUnique:
		return "sort_unique"
	case RandomBest3:
		return "random_best3"
	default:
		return "unknown"
	}
}

// ParseDeleteMethod converts a strategy tag to a DeleteMethod.
func ParseDeleteMethod(s string) (DeleteMethod, error) {
	switch s {
	case "sort_keep":
		return SortKeep, nil
	case "sort_unique":
		return SortUnique, nil
	case "random_best3":
		return RandomBest3, nil
	default:
		return 0, evoerr.ParseEnum("delete_method", s)
	}
}

// DeleteMethodFromInt converts an integer tag to a DeleteMethod.
func DeleteMethodFromInt(n int) (DeleteMethod, error) {
	switch n {
	case 0:
		return SortKeep, nil
	case 1:
		return SortUnique, nil
	case 2:
		return RandomBest3, nil
	default:
		return 0, evoerr.ConvertEnum("delete_method", n)
	}
}

// FileFormat selects the persistence codec.
type FileFormat int

const (
	Binary FileFormat = iota
	JSON
)

func (f FileFormat) String() string {
	switch f {
	case Binary:
		return "binary"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// Ext returns the file extension associated with f ("dat" or "json").
func (f FileFormat) Ext() string {
	switch f {
	case Binary:
		return "dat"
	case JSON:
		return "json"
	default:
		return "bin"
	}
}

// ParseFileFormat converts a strategy tag to a FileFormat.
func ParseFileFormat(s string) (FileFormat, error) {
	switch s {
	case "binary":
		return Binary, nil
	case "json":
		return JSON, nil
	default:
		return 0, evoerr.ParseEnum("file_format", s)
	}
}

// FileFormatFromInt converts an integer tag to a FileFormat.
func FileFormatFromInt(n int) (FileFormat, error) {
	switch n {
	case 0:
		return Binary, nil
	case 1:
		return JSON, nil
	default:
		return 0, evoerr.ConvertEnum("file_format", n)
	}
}

// Config is the single record of recognized search and persistence
// options. TOML keys use snake_case (max_population_size,
// fitness_limit, ...); Go field names follow normal Go naming.
type Config struct {
	// Common
	MaxPopulationSize int     `toml:"max_population_size"`
	FitnessLimit      float64 `toml:"fitness_limit"`

	// Server
	ExportFileName        string     `toml:"export_file_name"`
	SaveNewBestIndividual bool       `toml:"save_new_best_individual"`
	FileFormat            FileFormat `toml:"-"`
	FileFormatTag         string     `toml:"file_format"`

	// Node
	NumOfIterations             uint64       `toml:"num_of_iterations"`
	NumOfMutations               uint64       `toml:"num_of_mutations"`
	MutateMethod                 MutateMethod `toml:"-"`
	MutateMethodTag               string       `toml:"mutate_method"`
	DeleteMethod                  DeleteMethod `toml:"-"`
	DeleteMethodTag                string       `toml:"delete_method"`
	AdditionalFitnessThreshold    *float64     `toml:"additional_fitness_threshold"`
	ResetLimit                    uint64       `toml:"reset_limit"`
}

// Default returns the built-in default configuration.
func Default() Config {
	return Config{
		MaxPopulationSize:     20,
		FitnessLimit:          1.0,
		ExportFileName:        "best_population",
		SaveNewBestIndividual: false,
		FileFormat:            JSON,
		FileFormatTag:         "json",
		NumOfIterations:       1000,
		NumOfMutations:        10,
		MutateMethod:          Simple,
		MutateMethodTag:       "simple",
		DeleteMethod:          SortUnique,
		DeleteMethodTag:       "sort_unique",
		ResetLimit:            100,
	}
}

// MaxReset returns the stagnation ceiling. There is no separate
// configurable field for it: ResetLimit IS max_reset.
func (c Config) MaxReset() uint64 {
	return c.ResetLimit
}

// Validate checks the invariants the engine assumes hold.
func (c Config) Validate() error {
	if c.MaxPopulationSize < 1 {
		return fmt.Errorf("max_population_size must be >= 1, got %d", c.MaxPopulationSize)
	}
	if c.NumOfMutations < 1 {
		return fmt.Errorf("num_of_mutations must be >= 1, got %d", c.NumOfMutations)
	}
	return nil
}

// String renders a multi-line human-readable summary, grounded on the
// original configuration's Display implementation.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Common: max population size: '%d', fitness limit: '%g'\n", c.MaxPopulationSize, c.FitnessLimit)
	fmt.Fprintf(&b, "Server: export file name: '%s', save new best individual: '%t', file format: '%s'\n",
		c.ExportFileName, c.SaveNewBestIndividual, c.FileFormat)
	fmt.Fprintf(&b, "Node: num of iterations: '%d', num of mutations: '%d', reset limit: '%d',\n",
		c.NumOfIterations, c.NumOfMutations, c.ResetLimit)
	fmt.Fprintf(&b, "mutate method: '%s', delete method: '%s'", c.MutateMethod, c.DeleteMethod)
	return b.String()
}

// LoadTOML decodes a TOML file into Config, starting from defaults and
// overwriting only fields present in the file. Unknown keys are
// rejected via strict-mode checking of MetaData.Undecoded().
func LoadTOML(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, evoerr.IO(err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.resolveTags(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveTags converts the string strategy tags decoded from TOML
// into their typed enum fields.
func (c *Config) resolveTags() error {
	if c.MutateMethodTag != "" {
		m, err := ParseMutateMethod(c.MutateMethodTag)
		if err != nil {
			return err
		}
		c.MutateMethod = m
	}
	if c.DeleteMethodTag != "" {
		d, err := ParseDeleteMethod(c.DeleteMethodTag)
		if err != nil {
			return err
		}
		c.DeleteMethod = d
	}
	if c.FileFormatTag != "" {
		f, err := ParseFileFormat(c.FileFormatTag)
		if err != nil {
			return err
		}
		c.FileFormat = f
	}
	return nil
}
