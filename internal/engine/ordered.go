package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mdm-linkage/internal/blocking"
	"github.com/mdm-linkage/internal/matrix"
)

// Ordered compares every record with every later record of the same run
func (e *Engine) Ordered(ctx context.Context, ord *blocking.Ordering, pass Pass) (matrix.Matrix, error) {
	start := time.Now()
	if err := pass.validate(); err != nil {
		return nil, err
	}
	e.observer.Blocks(pass.Name, len(ord.Runs))
	e.logger.Debug("ordered pass starting",
		zap.String("pass", pass.Name), zap.Int("records", len(ord.Entries)), zap.Int("runs", len(ord.Runs)))

	if len(ord.Runs) == 0 {
		return e.finish(pass, "ordered", start, matrix.New(), nil)
	}
	result, err := e.orderedTask(ctx, ord, ord.Runs, pass)
	return e.finish(pass, "ordered", start, result, err)
}

func (e *Engine) orderedTask(ctx context.Context, ord *blocking.Ordering, runs []blocking.Run, pass Pass) (matrix.Matrix, error) {
	if len(runs) == 1 || blocking.Records(runs) <= e.opts.ChunkSize {
		return e.leaf(ctx, func() (matrix.Matrix, error) {
			return e.compareRuns(ctx, ord, runs, pass)
		})
	}

	left, right := blocking.SplitRuns(runs)
	var leftOut, rightOut matrix.Matrix

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := e.orderedTask(gctx, ord, left, pass)
		leftOut = m
		return err
	})
	g.Go(func() error {
		m, err := e.orderedTask(gctx, ord, right, pass)
		rightOut = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matrix.Merge(leftOut, rightOut), nil
}

func (e *Engine) compareRuns(ctx context.Context, ord *blocking.Ordering, runs []blocking.Run, pass Pass) (matrix.Matrix, error) {
	out := matrix.New()
	compared := 0
	for _, run := range runs {
		for i := run.Start; i < run.End; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for j := i + 1; j < run.End; j++ {
				if err := e.emit(pass, ord.Entries[i].Record, ord.Entries[j].Record, out); err != nil {
					return nil, err
				}
			}
			compared += run.End - i - 1
		}
	}
	e.observer.Compared(pass.Name, compared)
	e.observer.Emitted(pass.Name, len(out))
	return out, nil
}
