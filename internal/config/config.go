// Package config loads the run configuration: a .properties or YAML file
// with MDM_* environment overrides on top of defaults for every key.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mdm-linkage/internal/address"
	"github.com/mdm-linkage/internal/checkpoint"
	"github.com/mdm-linkage/internal/db"
	"github.com/mdm-linkage/internal/proximity"
)

// envPrefix is the environment variable prefix of every setting
const envPrefix = "MDM"

// Strategy names for candidate generation
const (
	StrategyOrdered    = "ordered"
	StrategyBruteForce = "bruteforce"
)

// Compare configures one comparison pass
type Compare struct {
	InputFile  string
	OutputFile string
	Threshold  float64
	Metric     string
	Strategy   string
}

// NER configures the name normalization stage
type NER struct {
	InputFile  string
	OutputFile string
	MinWords   int
}

// Address extends Compare with the parser choice
type Address struct {
	Compare
	Parser        string
	Abbreviations bool
}

// Full configures fusion
type Full struct {
	InputFile        string
	OutputFile       string
	FullThreshold    float64
	AddrThreshold    float64
	AddressMetric    string
	TaxonomyMetric   string
	UseAddressMatrix bool
	ConfirmAddress   bool
	SplitFactor      int
}

// Engine tunes the pairwise engine
type Engine struct {
	Workers               int
	ChunkSize             int
	BruteForceSplitFactor int
}

// Log configures the process logger
type Log struct {
	Level   string
	Format  string
	Outputs []string
}

// Metrics configures the optional listener and textfile dump
type Metrics struct {
	Listen          string
	Textfile        string
	ShutdownTimeout time.Duration
}

// Config is the immutable configuration of a run
type Config struct {
	NER          NER
	Names        Compare
	Addresses    Address
	Full         Full
	AmbiguityCap int
	Engine       Engine
	Checkpoint   checkpoint.Options
	Log          Log
	Metrics      Metrics
	Debug        bool
}

// newViper builds a viper instance with the MDM_ env prefix and a "." to
// "_" key replacer, so names.compare.metric resolves to MDM_NAMES_COMPARE_METRIC
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads path (format from its extension, .properties when unknown),
// merges environment overrides and validates the result. An empty path
// loads from defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return fromViper(v)
}

// New returns a viper instance carrying the defaults and env binding, for
// callers that bind flags before loading
func New() *viper.Viper {
	return newViper()
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("properties")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", path, err)
	}
	return nil
}

// FromViper builds and validates a Config from a populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		NER: NER{
			InputFile:  v.GetString(KeyNERInput),
			OutputFile: v.GetString(KeyNEROutput),
			MinWords:   v.GetInt(KeyNERMinWords),
		},
		Names: Compare{
			InputFile:  v.GetString(KeyNamesInput),
			OutputFile: v.GetString(KeyNamesOutput),
			Threshold:  v.GetFloat64(KeyNamesThreshold),
			Metric:     v.GetString(KeyNamesMetric),
			Strategy:   v.GetString(KeyNamesStrategy),
		},
		Addresses: Address{
			Compare: Compare{
				InputFile:  v.GetString(KeyAddrInput),
				OutputFile: v.GetString(KeyAddrOutput),
				Threshold:  v.GetFloat64(KeyAddrThreshold),
				Metric:     v.GetString(KeyAddrMetric),
				Strategy:   v.GetString(KeyAddrStrategy),
			},
			Parser:        v.GetString(KeyAddrParser),
			Abbreviations: v.GetBool(KeyAddrAbbreviations),
		},
		Full: Full{
			InputFile:        v.GetString(KeyFullInput),
			OutputFile:       v.GetString(KeyFullOutput),
			FullThreshold:    v.GetFloat64(KeyFullThreshold),
			AddrThreshold:    v.GetFloat64(KeyFullAddrThreshold),
			AddressMetric:    v.GetString(KeyFullAddressMetric),
			TaxonomyMetric:   v.GetString(KeyFullTaxonomyMetric),
			UseAddressMatrix: v.GetBool(KeyFullUseAddressMatrix),
			ConfirmAddress:   v.GetBool(KeyFullConfirmAddress),
			SplitFactor:      v.GetInt(KeyFullSplitFactor),
		},
		AmbiguityCap: v.GetInt(KeyAmbiguityCap),
		Engine: Engine{
			Workers:               v.GetInt(KeyEngineWorkers),
			ChunkSize:             v.GetInt(KeyEngineChunkSize),
			BruteForceSplitFactor: v.GetInt(KeyEngineBruteForceSplit),
		},
		Checkpoint: checkpoint.Options{
			Backend: v.GetString(KeyCheckpointBackend),
			Codec:   v.GetString(KeyCheckpointCodec),
			Postgres: checkpoint.PostgresOptions{
				DSN:   v.GetString(KeyCheckpointPostgresDSN),
				Table: v.GetString(KeyCheckpointPostgresTable),
				Pool:  db.DefaultPoolOptions(),
			},
			S3: checkpoint.S3Options{
				Endpoint:        v.GetString(KeyCheckpointS3Endpoint),
				AccessKeyID:     v.GetString(KeyCheckpointS3AccessKey),
				SecretAccessKey: v.GetString(KeyCheckpointS3SecretKey),
				UseSSL:          v.GetBool(KeyCheckpointS3UseSSL),
				Region:          v.GetString(KeyCheckpointS3Region),
				Bucket:          v.GetString(KeyCheckpointS3Bucket),
				Prefix:          v.GetString(KeyCheckpointS3Prefix),
				CreateBucket:    v.GetBool(KeyCheckpointS3CreateBucket),
			},
		},
		Log: Log{
			Level:   v.GetString(KeyLogLevel),
			Format:  v.GetString(KeyLogFormat),
			Outputs: splitList(v.GetString(KeyLogOutput)),
		},
		Metrics: Metrics{
			Listen:          v.GetString(KeyMetricsListen),
			Textfile:        v.GetString(KeyMetricsTextfile),
			ShutdownTimeout: v.GetDuration(KeyMetricsShutdownTimeout),
		},
		Debug: v.GetBool(KeyDebug),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// splitList accepts "a,b" as well as a single value
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks ranges and names
func (c *Config) Validate() error {
	thresholds := map[string]float64{
		KeyNamesThreshold:    c.Names.Threshold,
		KeyAddrThreshold:     c.Addresses.Threshold,
		KeyFullThreshold:     c.Full.FullThreshold,
		KeyFullAddrThreshold: c.Full.AddrThreshold,
	}
	for key, v := range thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", key, v)
		}
	}

	positive := map[string]int{
		KeyNERMinWords:           c.NER.MinWords,
		KeyAmbiguityCap:          c.AmbiguityCap,
		KeyEngineWorkers:         c.Engine.Workers,
		KeyEngineChunkSize:       c.Engine.ChunkSize,
		KeyEngineBruteForceSplit: c.Engine.BruteForceSplitFactor,
		KeyFullSplitFactor:       c.Full.SplitFactor,
	}
	for key, v := range positive {
		if v < 1 {
			return fmt.Errorf("%s must be >= 1, got %d", key, v)
		}
	}

	for key, name := range map[string]string{
		KeyNamesMetric:        c.Names.Metric,
		KeyAddrMetric:         c.Addresses.Metric,
		KeyFullAddressMetric:  c.Full.AddressMetric,
		KeyFullTaxonomyMetric: c.Full.TaxonomyMetric,
	} {
		if _, err := proximity.Lookup(name); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	for key, name := range map[string]string{
		KeyNamesStrategy: c.Names.Strategy,
		KeyAddrStrategy:  c.Addresses.Strategy,
	} {
		if name != StrategyOrdered && name != StrategyBruteForce {
			return fmt.Errorf("%s must be %q or %q, got %q", key, StrategyOrdered, StrategyBruteForce, name)
		}
	}

	if _, err := address.NewParser(c.Addresses.Parser); err != nil {
		return fmt.Errorf("%s: %w", KeyAddrParser, err)
	}

	switch c.Checkpoint.Backend {
	case checkpoint.BackendFile, checkpoint.BackendPostgres, checkpoint.BackendS3:
	default:
		return fmt.Errorf("%s: unknown backend %q", KeyCheckpointBackend, c.Checkpoint.Backend)
	}
	if _, err := checkpoint.ParseCodec(c.Checkpoint.Codec); err != nil {
		return fmt.Errorf("%s: %w", KeyCheckpointCodec, err)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%s must be json or console, got %q", KeyLogFormat, c.Log.Format)
	}
	return nil
}
