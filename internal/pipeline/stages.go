package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mdm-linkage/internal/matrix"
	"github.com/mdm-linkage/internal/record"
)

func (p *Pipeline) load(path string) (*record.Dataset, error) {
	ds, err := record.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p.metrics.Records(ds.Len())
	p.logger.Info("records loaded", zap.String("file", path), zap.Int("records", ds.Len()))
	return ds, nil
}

func (p *Pipeline) needStore() error {
	if p.store == nil {
		return fmt.Errorf("pipeline has no checkpoint store")
	}
	return nil
}

// Normalize reads the raw records, cleans the names and writes them sorted
func (p *Pipeline) Normalize(ctx context.Context) (err error) {
	done := p.stage(StageNormalize)
	defer func() { done(err) }()

	ds, err := p.load(p.cfg.NER.InputFile)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return record.WriteFile(p.cfg.NER.OutputFile, p.NormalizeRecords(ds.Records()))
}

// CompareNames runs the name pass and checkpoints its matrix
func (p *Pipeline) CompareNames(ctx context.Context) (err error) {
	done := p.stage(StageNames)
	defer func() { done(err) }()

	if err := p.needStore(); err != nil {
		return err
	}
	ds, err := p.load(p.cfg.Names.InputFile)
	if err != nil {
		return err
	}
	r, err := p.newRun()
	if err != nil {
		return err
	}
	defer p.close(r)

	m, err := p.compareNames(ctx, r, ds.Records())
	if err != nil {
		return err
	}
	return p.store.Save(ctx, p.cfg.Names.OutputFile, m)
}

// CompareAddresses runs the address pass and checkpoints its matrix
func (p *Pipeline) CompareAddresses(ctx context.Context) (err error) {
	done := p.stage(StageAddresses)
	defer func() { done(err) }()

	if err := p.needStore(); err != nil {
		return err
	}
	ds, err := p.load(p.cfg.Addresses.InputFile)
	if err != nil {
		return err
	}
	r, err := p.newRun()
	if err != nil {
		return err
	}
	defer p.close(r)

	m, err := p.compareAddresses(ctx, r, ds.Records())
	if err != nil {
		return err
	}
	return p.store.Save(ctx, p.cfg.Addresses.OutputFile, m)
}

// Full loads the checkpointed name matrix, and the address matrix when
// configured, fuses them against the records and writes the filtered pairs
func (p *Pipeline) Full(ctx context.Context) (results []matrix.Result, err error) {
	done := p.stage(StageFull)
	defer func() { done(err) }()

	if err := p.needStore(); err != nil {
		return nil, err
	}
	ds, err := p.load(p.cfg.Full.InputFile)
	if err != nil {
		return nil, err
	}
	names, err := p.store.Load(ctx, p.cfg.Names.OutputFile)
	if err != nil {
		return nil, err
	}
	var addresses matrix.Matrix
	if p.cfg.Full.UseAddressMatrix {
		if addresses, err = p.store.Load(ctx, p.cfg.Addresses.OutputFile); err != nil {
			return nil, err
		}
	}

	r, err := p.newRun()
	if err != nil {
		return nil, err
	}
	defer p.close(r)

	results, err = p.fuse(ctx, r, ds, names, addresses)
	if err != nil {
		return nil, err
	}
	if err := matrix.WriteResultsFile(p.cfg.Full.OutputFile, results); err != nil {
		return nil, err
	}
	return results, nil
}

// Link runs every stage in memory over records and returns the filtered
// pairs. Names are normalized first; the address pass runs only when the
// address matrix is configured into fusion.
func (p *Pipeline) Link(ctx context.Context, records []record.Record) ([]matrix.Result, error) {
	normalized := p.NormalizeRecords(records)
	ds, err := record.NewDataset(normalized)
	if err != nil {
		return nil, err
	}
	p.metrics.Records(ds.Len())

	r, err := p.newRun()
	if err != nil {
		return nil, err
	}
	defer p.close(r)

	doneNames := p.stage(StageNames)
	names, err := p.compareNames(ctx, r, normalized)
	doneNames(err)
	if err != nil {
		return nil, err
	}

	var addresses matrix.Matrix
	if p.cfg.Full.UseAddressMatrix {
		doneAddr := p.stage(StageAddresses)
		addresses, err = p.compareAddresses(ctx, r, normalized)
		doneAddr(err)
		if err != nil {
			return nil, err
		}
	}

	doneFull := p.stage(StageFull)
	results, err := p.fuse(ctx, r, ds, names, addresses)
	doneFull(err)
	return results, err
}

// Run reads the raw records, links them in memory and writes the result
// to the full stage output file
func (p *Pipeline) Run(ctx context.Context) ([]matrix.Result, error) {
	ds, err := p.load(p.cfg.NER.InputFile)
	if err != nil {
		return nil, err
	}
	results, err := p.Link(ctx, ds.Records())
	if err != nil {
		return nil, err
	}
	if err := matrix.WriteResultsFile(p.cfg.Full.OutputFile, results); err != nil {
		return nil, err
	}
	return results, nil
}
