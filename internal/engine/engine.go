// Package engine computes candidate similarity matrices in parallel. Work is
// split recursively and every task returns its own matrix, merged by the
// parent once both children have finished.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mdm-linkage/internal/blocking"
	"github.com/mdm-linkage/internal/debug"
	"github.com/mdm-linkage/internal/matrix"
	"github.com/mdm-linkage/internal/record"
)

// DefaultBruteForceSplitFactor sets the brute force chunk to n / 4
const DefaultBruteForceSplitFactor = 4

// DefaultChunkSize is the record count under which a group of runs is
// compared in a single task
const DefaultChunkSize = 256

// Options tunes the engine
type Options struct {
	// Workers bounds the number of leaf tasks running at once
	Workers int
	// ChunkSize is the ordered leaf size in records
	ChunkSize int
	// BruteForceSplitFactor divides the dataset size into the brute force chunk size
	BruteForceSplitFactor int
	// Debug logs every emitted pair
	Debug bool
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ChunkSize < 1 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.BruteForceSplitFactor < 1 {
		o.BruteForceSplitFactor = DefaultBruteForceSplitFactor
	}
	return o
}

// Pass describes one candidate generation pass
type Pass struct {
	Name     string
	Field    blocking.Field
	Comparer Comparer
	Accept   Accept
}

func (p Pass) validate() error {
	if p.Comparer == nil {
		return fmt.Errorf("pass %q has no comparer", p.Name)
	}
	if p.Accept == nil {
		return fmt.Errorf("pass %q has no accept rule", p.Name)
	}
	return nil
}

// Observer receives progress counts. Implementations must be safe for
// concurrent use.
type Observer interface {
	Compared(pass string, n int)
	Emitted(pass string, n int)
	Blocks(pass string, n int)
}

type nopObserver struct{}

func (nopObserver) Compared(string, int) {}
func (nopObserver) Emitted(string, int)  {}
func (nopObserver) Blocks(string, int)   {}

// Engine runs candidate passes
type Engine struct {
	opts     Options
	sem      *semaphore.Weighted
	logger   *zap.Logger
	observer Observer
}

// New creates an engine. logger and observer may be nil.
func New(opts Options, logger *zap.Logger, observer Observer) *Engine {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Engine{
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.Workers)),
		logger:   logger,
		observer: observer,
	}
}

// Options returns the effective options
func (e *Engine) Options() Options { return e.opts }

// leaf runs fn while holding one worker slot
func (e *Engine) leaf(ctx context.Context, fn func() (matrix.Matrix, error)) (matrix.Matrix, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)
	return fn()
}

// emit compares a and b and records the pair in out when accepted
func (e *Engine) emit(pass Pass, a, b record.Record, out matrix.Matrix) error {
	score, err := pass.Comparer.Compare(a, b)
	if err != nil {
		return fmt.Errorf("%s pass, records %d and %d: %w", pass.Name, a.ID, b.ID, err)
	}
	if !pass.Accept(score) {
		return nil
	}
	if err := out.Put(a.ID, b.ID, score); err != nil {
		return fmt.Errorf("%s pass: %w", pass.Name, err)
	}
	if e.opts.Debug {
		debug.DebugOutput(true, "%s match (%d,%d) %.4f %q ~ %q", pass.Name, a.ID, b.ID, score,
			comparedText(pass.Field, a), comparedText(pass.Field, b))
	}
	return nil
}

// comparedText is the record field a pass scores
func comparedText(field blocking.Field, rec record.Record) string {
	if field == blocking.ByCity {
		return rec.Address
	}
	return rec.Name
}

func (e *Engine) finish(pass Pass, mode string, start time.Time, result matrix.Matrix, err error) (matrix.Matrix, error) {
	if err != nil {
		e.logger.Error("candidate pass failed", zap.String("pass", pass.Name), zap.String("mode", mode), zap.Error(err))
		return nil, err
	}
	e.logger.Info("candidate pass complete",
		zap.String("pass", pass.Name),
		zap.String("mode", mode),
		zap.Int("candidates", len(result)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
