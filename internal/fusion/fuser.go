package fusion

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mdm-linkage/internal/address"
	"github.com/mdm-linkage/internal/blocking"
	"github.com/mdm-linkage/internal/debug"
	"github.com/mdm-linkage/internal/faults"
	"github.com/mdm-linkage/internal/matrix"
	"github.com/mdm-linkage/internal/proximity"
	"github.com/mdm-linkage/internal/record"
	"github.com/mdm-linkage/internal/taxonomy"
)

// DefaultSplitFactor divides the candidate count into the leaf size
const DefaultSplitFactor = 20

// Options configures a Fuser
type Options struct {
	Thresholds     Thresholds
	AddressMetric  proximity.Metric
	TaxonomyMetric proximity.Metric
	SplitFactor    int
	Workers        int
	// ConfirmAddress keeps an address-only pair only when both its address
	// and taxonomy scores are exact, with final score 1
	ConfirmAddress bool
	Debug          bool
}

// Fuser rescores candidate matrices against one dataset
type Fuser struct {
	opts     Options
	dataset  *record.Dataset
	cache    *address.Cache
	taxonomy taxonomy.Comparer
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// NewFuser creates a fuser. cache must be the run's address cache.
func NewFuser(dataset *record.Dataset, cache *address.Cache, opts Options, logger *zap.Logger) *Fuser {
	if opts.AddressMetric == nil {
		opts.AddressMetric = proximity.Jaro
	}
	if opts.TaxonomyMetric == nil {
		opts.TaxonomyMetric = proximity.Jaro
	}
	if opts.SplitFactor < 1 {
		opts.SplitFactor = DefaultSplitFactor
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if cache == nil {
		cache = address.NewCache(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fuser{
		opts:     opts,
		dataset:  dataset,
		cache:    cache,
		taxonomy: taxonomy.Comparer{Metric: opts.TaxonomyMetric},
		sem:      semaphore.NewWeighted(int64(opts.Workers)),
		logger:   logger,
	}
}

// FuseMatrix rescores every pair of the name candidate matrix and keeps the
// pairs whose final score exceeds the full threshold
func (f *Fuser) FuseMatrix(ctx context.Context, names matrix.Matrix) (matrix.Matrix, error) {
	start := time.Now()
	keys := names.Keys()
	if len(keys) == 0 {
		return matrix.New(), nil
	}

	chunkSize := len(keys) / f.opts.SplitFactor
	if chunkSize < 1 {
		chunkSize = 1
	}

	out, err := f.fuseTask(ctx, names, keys, blocking.Range{Start: 0, End: len(keys)}, chunkSize)
	if err != nil {
		return nil, err
	}

	f.logger.Info("name candidates fused",
		zap.Int("candidates", len(keys)),
		zap.Int("survivors", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (f *Fuser) fuseTask(ctx context.Context, names matrix.Matrix, keys []matrix.PairKey, r blocking.Range, chunkSize int) (matrix.Matrix, error) {
	if r.IsLeaf(chunkSize) {
		if err := f.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer f.sem.Release(1)
		return f.fuseRange(ctx, names, keys[r.Start:r.End])
	}

	left, right := r.Halve()
	var leftOut, rightOut matrix.Matrix

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := f.fuseTask(gctx, names, keys, left, chunkSize)
		leftOut = m
		return err
	})
	g.Go(func() error {
		m, err := f.fuseTask(gctx, names, keys, right, chunkSize)
		rightOut = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matrix.Merge(leftOut, rightOut), nil
}

func (f *Fuser) fuseRange(ctx context.Context, names matrix.Matrix, keys []matrix.PairKey) (matrix.Matrix, error) {
	out := matrix.New()
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, b, err := f.pair(k)
		if err != nil {
			return nil, err
		}
		nameScore, ok := names[k]
		if !ok {
			return nil, faults.Missing("fusion.fuse", "pair %s has no name score", k)
		}

		addrScore, err := f.cache.Compare(a.Address, b.Address, f.opts.AddressMetric)
		if err != nil {
			return nil, err
		}

		final := Fuse(nameScore, addrScore, func() float64 {
			return f.taxonomy.Compare(a.Taxonomy, b.Taxonomy)
		}, f.opts.Thresholds)

		if f.opts.Thresholds.Survives(final) {
			out[k] = final
			debug.DebugOutput(f.opts.Debug, "fused %s name=%.4f addr=%.4f final=%.4f", k, nameScore, addrScore, final)
		}
	}
	return out, nil
}

func (f *Fuser) pair(k matrix.PairKey) (record.Record, record.Record, error) {
	a, ok := f.dataset.Get(k.Lo)
	if !ok {
		return record.Record{}, record.Record{}, faults.Missing("fusion.lookup", "record %d of pair %s not in dataset", k.Lo, k)
	}
	b, ok := f.dataset.Get(k.Hi)
	if !ok {
		return record.Record{}, record.Record{}, faults.Missing("fusion.lookup", "record %d of pair %s not in dataset", k.Hi, k)
	}
	return a, b, nil
}

// MergeAddress unions the address candidates into the fused matrix. Pairs
// already fused keep their fused score. With ConfirmAddress unset the
// remaining address pairs are added with their address score as is.
func (f *Fuser) MergeAddress(ctx context.Context, fused, addresses matrix.Matrix) (matrix.Matrix, error) {
	if !f.opts.ConfirmAddress {
		return MergeAddress(fused, addresses), nil
	}

	out := matrix.Merge(fused)
	added := 0
	for _, k := range addresses.Keys() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := fused[k]; ok {
			continue
		}
		if addresses[k] < 1 {
			continue
		}
		a, b, err := f.pair(k)
		if err != nil {
			return nil, err
		}
		if f.taxonomy.Compare(a.Taxonomy, b.Taxonomy) >= 1 {
			out[k] = 1
			added++
		}
	}
	f.logger.Info("address candidates confirmed",
		zap.Int("address_candidates", len(addresses)),
		zap.Int("added", added))
	return out, nil
}

// MergeAddress returns fused plus every pair of addresses that fused lacks,
// carrying its address score unchanged
func MergeAddress(fused, addresses matrix.Matrix) matrix.Matrix {
	out := matrix.Merge(fused)
	for k, v := range addresses {
		if _, ok := fused[k]; !ok {
			out[k] = v
		}
	}
	return out
}
