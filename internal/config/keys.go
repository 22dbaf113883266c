package config

import (
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/mdm-linkage/internal/address"
	"github.com/mdm-linkage/internal/checkpoint"
	"github.com/mdm-linkage/internal/cluster"
	"github.com/mdm-linkage/internal/engine"
	"github.com/mdm-linkage/internal/fusion"
	"github.com/mdm-linkage/internal/normalize"
	"github.com/mdm-linkage/internal/proximity"
)

// Configuration keys
const (
	KeyNERInput    = "names.ner.input.file"
	KeyNEROutput   = "names.ner.output.file"
	KeyNERMinWords = "names.ner.min_words"

	KeyNamesInput     = "names.compare.input.file"
	KeyNamesOutput    = "names.compare.output.file"
	KeyNamesThreshold = "names.compare.proximity.threshold"
	KeyNamesMetric    = "names.compare.metric"
	KeyNamesStrategy  = "names.compare.strategy"

	KeyAddrInput         = "addr.compare.input.file"
	KeyAddrOutput        = "addr.compare.output.file"
	KeyAddrThreshold     = "addr.compare.proximity.threshold"
	KeyAddrMetric        = "addr.compare.metric"
	KeyAddrStrategy      = "addr.compare.strategy"
	KeyAddrParser        = "addr.parser"
	KeyAddrAbbreviations = "addr.expand_abbreviations"

	KeyFullInput            = "full.compare.input.file"
	KeyFullOutput           = "full.compare.output.file"
	KeyFullThreshold        = "full.compare.probability.full_threshold"
	KeyFullAddrThreshold    = "full.compare.probability.addr_threshold"
	KeyFullAddressMetric    = "full.compare.address.metric"
	KeyFullTaxonomyMetric   = "full.compare.taxonomy.metric"
	KeyFullUseAddressMatrix = "full.compare.use_address_matrix"
	KeyFullConfirmAddress   = "full.compare.address.confirm"
	KeyFullSplitFactor      = "full.compare.split_factor"

	KeyAmbiguityCap = "cluster.ambiguity_cap"

	KeyEngineWorkers         = "engine.workers"
	KeyEngineChunkSize       = "engine.chunk_size"
	KeyEngineBruteForceSplit = "engine.bruteforce.split_factor"

	KeyCheckpointBackend        = "checkpoint.backend"
	KeyCheckpointCodec          = "checkpoint.codec"
	KeyCheckpointPostgresDSN    = "checkpoint.postgres.dsn"
	KeyCheckpointPostgresTable  = "checkpoint.postgres.table"
	KeyCheckpointS3Endpoint     = "checkpoint.s3.endpoint"
	KeyCheckpointS3AccessKey    = "checkpoint.s3.access_key_id"
	KeyCheckpointS3SecretKey    = "checkpoint.s3.secret_access_key"
	KeyCheckpointS3UseSSL       = "checkpoint.s3.use_ssl"
	KeyCheckpointS3Region       = "checkpoint.s3.region"
	KeyCheckpointS3Bucket       = "checkpoint.s3.bucket"
	KeyCheckpointS3Prefix       = "checkpoint.s3.prefix"
	KeyCheckpointS3CreateBucket = "checkpoint.s3.create_bucket"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyLogOutput = "log.output"

	KeyMetricsListen          = "metrics.listen"
	KeyMetricsTextfile        = "metrics.textfile"
	KeyMetricsShutdownTimeout = "metrics.shutdown_timeout"

	KeyDebug = "debug"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyNERInput, "data/records.csv")
	v.SetDefault(KeyNEROutput, "data/records.ner.csv")
	v.SetDefault(KeyNERMinWords, normalize.DefaultMinWords)

	v.SetDefault(KeyNamesInput, "data/records.ner.csv")
	v.SetDefault(KeyNamesOutput, "data/names.mdmx")
	v.SetDefault(KeyNamesThreshold, 0.9)
	v.SetDefault(KeyNamesMetric, proximity.JaroWinklerName)
	v.SetDefault(KeyNamesStrategy, StrategyOrdered)

	v.SetDefault(KeyAddrInput, "data/records.ner.csv")
	v.SetDefault(KeyAddrOutput, "data/addresses.mdmx")
	v.SetDefault(KeyAddrThreshold, 0.9)
	v.SetDefault(KeyAddrMetric, proximity.JaroName)
	v.SetDefault(KeyAddrStrategy, StrategyOrdered)
	v.SetDefault(KeyAddrParser, address.ParserPositional)
	v.SetDefault(KeyAddrAbbreviations, false)

	v.SetDefault(KeyFullInput, "data/records.ner.csv")
	v.SetDefault(KeyFullOutput, "data/matches.csv")
	v.SetDefault(KeyFullThreshold, 0.8)
	v.SetDefault(KeyFullAddrThreshold, 0.9)
	v.SetDefault(KeyFullAddressMetric, proximity.JaroName)
	v.SetDefault(KeyFullTaxonomyMetric, proximity.JaroName)
	v.SetDefault(KeyFullUseAddressMatrix, true)
	v.SetDefault(KeyFullConfirmAddress, false)
	v.SetDefault(KeyFullSplitFactor, fusion.DefaultSplitFactor)

	v.SetDefault(KeyAmbiguityCap, cluster.DefaultAmbiguityCap)

	v.SetDefault(KeyEngineWorkers, runtime.GOMAXPROCS(0))
	v.SetDefault(KeyEngineChunkSize, engine.DefaultChunkSize)
	v.SetDefault(KeyEngineBruteForceSplit, engine.DefaultBruteForceSplitFactor)

	v.SetDefault(KeyCheckpointBackend, checkpoint.BackendFile)
	v.SetDefault(KeyCheckpointCodec, checkpoint.CodecZstd.String())
	v.SetDefault(KeyCheckpointPostgresDSN, "")
	v.SetDefault(KeyCheckpointPostgresTable, checkpoint.DefaultTable)
	v.SetDefault(KeyCheckpointS3Endpoint, "localhost:9000")
	v.SetDefault(KeyCheckpointS3AccessKey, "")
	v.SetDefault(KeyCheckpointS3SecretKey, "")
	v.SetDefault(KeyCheckpointS3UseSSL, false)
	v.SetDefault(KeyCheckpointS3Region, "")
	v.SetDefault(KeyCheckpointS3Bucket, "mdm")
	v.SetDefault(KeyCheckpointS3Prefix, "matrices")
	v.SetDefault(KeyCheckpointS3CreateBucket, true)

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyLogOutput, "stderr")

	v.SetDefault(KeyMetricsListen, "")
	v.SetDefault(KeyMetricsTextfile, "")
	v.SetDefault(KeyMetricsShutdownTimeout, 30*time.Second)

	v.SetDefault(KeyDebug, false)
}
