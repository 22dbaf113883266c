package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mdm-linkage/internal/blocking"
	"github.com/mdm-linkage/internal/matrix"
	"github.com/mdm-linkage/internal/record"
)

// BruteForce compares every record against every later record of the whole
// dataset. The index range is split in half until a range is smaller than
// len(records) / BruteForceSplitFactor.
func (e *Engine) BruteForce(ctx context.Context, records []record.Record, pass Pass) (matrix.Matrix, error) {
	start := time.Now()
	if err := pass.validate(); err != nil {
		return nil, err
	}

	n := len(records)
	chunkSize := n / e.opts.BruteForceSplitFactor
	if chunkSize < 1 {
		chunkSize = 1
	}
	e.logger.Debug("brute force pass starting", zap.String("pass", pass.Name), zap.Int("records", n), zap.Int("chunk_size", chunkSize))

	if n < 2 {
		return e.finish(pass, "bruteforce", start, matrix.New(), nil)
	}
	result, err := e.bruteForceTask(ctx, records, blocking.Range{Start: 0, End: n}, chunkSize, pass)
	return e.finish(pass, "bruteforce", start, result, err)
}

func (e *Engine) bruteForceTask(ctx context.Context, records []record.Record, r blocking.Range, chunkSize int, pass Pass) (matrix.Matrix, error) {
	if r.IsLeaf(chunkSize) {
		e.observer.Blocks(pass.Name, 1)
		return e.leaf(ctx, func() (matrix.Matrix, error) {
			return e.compareRange(ctx, records, r, pass)
		})
	}

	left, right := r.Halve()
	var leftOut, rightOut matrix.Matrix

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := e.bruteForceTask(gctx, records, left, chunkSize, pass)
		leftOut = m
		return err
	})
	g.Go(func() error {
		m, err := e.bruteForceTask(gctx, records, right, chunkSize, pass)
		rightOut = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matrix.Merge(leftOut, rightOut), nil
}

func (e *Engine) compareRange(ctx context.Context, records []record.Record, r blocking.Range, pass Pass) (matrix.Matrix, error) {
	out := matrix.New()
	compared := 0
	for i := r.Start; i < r.End; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(records); j++ {
			if err := e.emit(pass, records[i], records[j], out); err != nil {
				return nil, err
			}
		}
		compared += len(records) - i - 1
	}
	e.observer.Compared(pass.Name, compared)
	e.observer.Emitted(pass.Name, len(out))
	return out, nil
}
