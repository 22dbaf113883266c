// Package pipeline wires the linkage stages together: name normalization,
// the name and address candidate passes, fusion and cluster filtering.
// File based stages hand their matrices over through a checkpoint store so
// each can run as a separate process.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mdm-linkage/internal/address"
	"github.com/mdm-linkage/internal/blocking"
	"github.com/mdm-linkage/internal/checkpoint"
	"github.com/mdm-linkage/internal/cluster"
	"github.com/mdm-linkage/internal/config"
	"github.com/mdm-linkage/internal/debug"
	"github.com/mdm-linkage/internal/engine"
	"github.com/mdm-linkage/internal/fusion"
	"github.com/mdm-linkage/internal/matrix"
	"github.com/mdm-linkage/internal/metrics"
	"github.com/mdm-linkage/internal/normalize"
	"github.com/mdm-linkage/internal/proximity"
	"github.com/mdm-linkage/internal/record"
)

// Stage names, also used as metric labels
const (
	StageNormalize = "ner"
	StageNames     = "names"
	StageAddresses = "addresses"
	StageFull      = "full"
)

// Pipeline runs stages against one configuration
type Pipeline struct {
	cfg       *config.Config
	store     checkpoint.Store
	metrics   *metrics.Metrics
	logger    *zap.Logger
	extractor normalize.Extractor
	abbrev    *normalize.AbbrevRules
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithMetrics reports progress into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithExtractor sets the name extractor of the normalize stage
func WithExtractor(e normalize.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// New creates a pipeline. store may be nil for Run, which never touches it.
func New(cfg *config.Config, store checkpoint.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		store:     store,
		logger:    zap.NewNop(),
		extractor: normalize.Passthrough,
	}
	for _, opt := range opts {
		opt(p)
	}
	if cfg.Addresses.Abbreviations {
		p.abbrev = normalize.NewAbbrevRules(normalize.DefaultUSAbbreviations)
	}
	return p
}

// run holds the state scoped to one pipeline invocation
type run struct {
	cache  *address.Cache
	engine *engine.Engine
}

func (p *Pipeline) newRun() (*run, error) {
	parser, err := address.NewParser(p.cfg.Addresses.Parser)
	if err != nil {
		return nil, err
	}
	eng := engine.New(engine.Options{
		Workers:               p.cfg.Engine.Workers,
		ChunkSize:             p.cfg.Engine.ChunkSize,
		BruteForceSplitFactor: p.cfg.Engine.BruteForceSplitFactor,
		Debug:                 p.cfg.Debug,
	}, p.logger, p.metrics)
	return &run{cache: address.NewCache(parser), engine: eng}, nil
}

// close drops the run's address cache after reporting its statistics
func (p *Pipeline) close(r *run) {
	hits, misses := r.cache.Stats()
	p.metrics.Cache(hits, misses)
	p.logger.Debug("address cache released",
		zap.Int("entries", r.cache.Len()),
		zap.Int64("hits", hits),
		zap.Int64("misses", misses))
	r.cache = nil
}

func (p *Pipeline) stage(name string) func(err error) {
	done := p.metrics.StartStage(name)
	start := time.Now()
	p.logger.Info("stage started", zap.String("stage", name))
	return func(err error) {
		done()
		if err != nil {
			p.logger.Error("stage failed", zap.String("stage", name), zap.Error(err))
			return
		}
		p.logger.Info("stage finished", zap.String("stage", name), zap.Duration("elapsed", time.Since(start)))
	}
}

// NormalizeRecords cleans every record name and returns the records sorted
// by name then id
func (p *Pipeline) NormalizeRecords(records []record.Record) []record.Record {
	proc := normalize.NewProcessor(p.extractor, p.cfg.NER.MinWords)
	out, fallbacks := proc.Process(records)
	p.logger.Info("names normalized",
		zap.Int("records", len(out)),
		zap.Int("fallbacks", fallbacks))
	return out
}

// compareNames runs the name candidate pass
func (p *Pipeline) compareNames(ctx context.Context, r *run, records []record.Record) (matrix.Matrix, error) {
	metric, err := proximity.Lookup(p.cfg.Names.Metric)
	if err != nil {
		return nil, err
	}
	pass := engine.Pass{
		Name:     StageNames,
		Field:    blocking.ByName,
		Comparer: engine.NameComparer{Metric: metric},
		Accept:   engine.AtLeast(p.cfg.Names.Threshold),
	}
	return p.runPass(ctx, r, records, pass, p.cfg.Names.Strategy, nil)
}

// prepareAddresses strips leading noise from every address and optionally
// expands street abbreviations
func (p *Pipeline) prepareAddresses(records []record.Record) []record.Record {
	out := make([]record.Record, len(records))
	for i, rec := range records {
		line := address.FilterNoise(rec.Address)
		if p.abbrev != nil {
			line = p.abbrev.Expand(line)
		}
		rec.Address = line
		out[i] = rec
	}
	return out
}

func (p *Pipeline) compareAddresses(ctx context.Context, r *run, records []record.Record) (matrix.Matrix, error) {
	metric, err := proximity.Lookup(p.cfg.Addresses.Metric)
	if err != nil {
		return nil, err
	}
	pass := engine.Pass{
		Name:     StageAddresses,
		Field:    blocking.ByCity,
		Comparer: engine.AddressComparer{Cache: r.cache, Metric: metric},
		Accept:   engine.Above(p.cfg.Addresses.Threshold),
	}
	return p.runPass(ctx, r, p.prepareAddresses(records), pass, p.cfg.Addresses.Strategy, r.cache)
}

func (p *Pipeline) runPass(ctx context.Context, r *run, records []record.Record, pass engine.Pass, strategy string, parser address.Parser) (matrix.Matrix, error) {
	if strategy == config.StrategyBruteForce {
		return r.engine.BruteForce(ctx, records, pass)
	}
	done := debug.DebugTiming(p.cfg.Debug, pass.Name+" ordering")
	ord, err := blocking.Order(records, pass.Field, parser)
	done()
	if err != nil {
		return nil, fmt.Errorf("%s ordering: %w", pass.Name, err)
	}
	return r.engine.Ordered(ctx, ord, pass)
}

// fuse rescores the name candidates, merges the address candidates when
// given and applies the cluster filter
func (p *Pipeline) fuse(ctx context.Context, r *run, ds *record.Dataset, names, addresses matrix.Matrix) ([]matrix.Result, error) {
	addrMetric, err := proximity.Lookup(p.cfg.Full.AddressMetric)
	if err != nil {
		return nil, err
	}
	taxMetric, err := proximity.Lookup(p.cfg.Full.TaxonomyMetric)
	if err != nil {
		return nil, err
	}

	fuser := fusion.NewFuser(ds, r.cache, fusion.Options{
		Thresholds: fusion.Thresholds{
			Address: p.cfg.Full.AddrThreshold,
			Full:    p.cfg.Full.FullThreshold,
		},
		AddressMetric:  addrMetric,
		TaxonomyMetric: taxMetric,
		SplitFactor:    p.cfg.Full.SplitFactor,
		Workers:        p.cfg.Engine.Workers,
		ConfirmAddress: p.cfg.Full.ConfirmAddress,
		Debug:          p.cfg.Debug,
	}, p.logger)

	p.metrics.Pairs(metrics.PairsCandidate, len(names))
	fused, err := fuser.FuseMatrix(ctx, names)
	if err != nil {
		return nil, err
	}
	p.metrics.Pairs(metrics.PairsFused, len(fused))

	if addresses != nil {
		before := len(fused)
		fused, err = fuser.MergeAddress(ctx, fused, addresses)
		if err != nil {
			return nil, err
		}
		p.metrics.Pairs(metrics.PairsMerged, len(fused)-before)
	}

	results, stats := cluster.Filter(fused, p.cfg.AmbiguityCap)
	p.metrics.Pairs(metrics.PairsKept, len(results))
	p.metrics.Pairs(metrics.PairsDropped, stats.DroppedPairs)
	p.logger.Info("clusters filtered",
		zap.Int("groups", stats.Groups),
		zap.Int("dropped_groups", stats.DroppedGroups),
		zap.Int("dropped_pairs", stats.DroppedPairs),
		zap.Int("kept", len(results)))
	return results, nil
}
