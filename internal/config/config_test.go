package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdm-linkage/internal/checkpoint"
	"github.com/mdm-linkage/internal/cluster"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Names.Threshold)
	assert.Equal(t, "jaro-winkler", cfg.Names.Metric)
	assert.Equal(t, "jaro", cfg.Addresses.Metric)
	assert.Equal(t, StrategyOrdered, cfg.Names.Strategy)
	assert.Equal(t, 0.8, cfg.Full.FullThreshold)
	assert.Equal(t, cluster.DefaultAmbiguityCap, cfg.AmbiguityCap)
	assert.Equal(t, checkpoint.BackendFile, cfg.Checkpoint.Backend)
	assert.Equal(t, "zstd", cfg.Checkpoint.Codec)
	assert.Equal(t, []string{"stderr"}, cfg.Log.Outputs)
	assert.True(t, cfg.Full.UseAddressMatrix, "address candidates are unioned by default")
}

func TestLoadProperties(t *testing.T) {
	path := writeFile(t, "mdm.properties", `
names.compare.input.file = in/names.csv
names.compare.output.file = out/names.mdmx
names.compare.proximity.threshold = 0.93
addr.compare.proximity.threshold = 0.85
full.compare.probability.full_threshold = 0.75
full.compare.probability.addr_threshold = 0.95
cluster.ambiguity_cap = 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "in/names.csv", cfg.Names.InputFile)
	assert.Equal(t, "out/names.mdmx", cfg.Names.OutputFile)
	assert.Equal(t, 0.93, cfg.Names.Threshold)
	assert.Equal(t, 0.85, cfg.Addresses.Threshold)
	assert.Equal(t, 0.75, cfg.Full.FullThreshold)
	assert.Equal(t, 0.95, cfg.Full.AddrThreshold)
	assert.Equal(t, 5, cfg.AmbiguityCap)
	// untouched keys keep their defaults
	assert.Equal(t, "jaro-winkler", cfg.Names.Metric)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "mdm.yaml", `
names:
  compare:
    strategy: bruteforce
checkpoint:
  backend: s3
  codec: lz4
  s3:
    bucket: linkage
log:
  format: json
  output: stdout,run.log
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StrategyBruteForce, cfg.Names.Strategy)
	assert.Equal(t, checkpoint.BackendS3, cfg.Checkpoint.Backend)
	assert.Equal(t, "lz4", cfg.Checkpoint.Codec)
	assert.Equal(t, "linkage", cfg.Checkpoint.S3.Bucket)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"stdout", "run.log"}, cfg.Log.Outputs)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MDM_NAMES_COMPARE_PROXIMITY_THRESHOLD", "0.97")
	t.Setenv("MDM_CLUSTER_AMBIGUITY_CAP", "7")
	t.Setenv("MDM_CHECKPOINT_BACKEND", "postgres")

	path := writeFile(t, "mdm.properties", "names.compare.proximity.threshold = 0.5\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.97, cfg.Names.Threshold)
	assert.Equal(t, 7, cfg.AmbiguityCap)
	assert.Equal(t, checkpoint.BackendPostgres, cfg.Checkpoint.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.properties"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"threshold above one", KeyNamesThreshold, 1.5},
		{"negative threshold", KeyFullAddrThreshold, -0.1},
		{"zero cap", KeyAmbiguityCap, 0},
		{"zero workers", KeyEngineWorkers, 0},
		{"unknown metric", KeyNamesMetric, "soundex"},
		{"unknown strategy", KeyAddrStrategy, "random"},
		{"unknown parser", KeyAddrParser, "regex"},
		{"unknown backend", KeyCheckpointBackend, "redis"},
		{"unknown codec", KeyCheckpointCodec, "gzip"},
		{"unknown log format", KeyLogFormat, "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := FromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
