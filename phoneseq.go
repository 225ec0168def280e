// Package phoneseq generates allophone state label sequences for batches of
// orthographies, one reproducible random stream per sequence.
package phoneseq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/phoneseq-go/acoustic"
	"github.com/ieee0824/phoneseq-go/internal/observe"
	"github.com/ieee0824/phoneseq-go/lexicon"
	"github.com/ieee0824/phoneseq-go/seqgen"
	"github.com/ieee0824/phoneseq-go/statetying"
)

// Pipeline is the top-level sequence generator.
type Pipeline struct {
	gen        *seqgen.Generator
	cfg        seqgen.Config
	tyingPath  string
	logger     *slog.Logger
	metrics    *observe.Metrics
	workers    int
	randomSeqs int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig sets the generator parameters.
func WithConfig(cfg seqgen.Config) Option {
	return func(p *Pipeline) {
		p.cfg = cfg
	}
}

// WithStateTyingFile maps labels through a state tying file.
func WithStateTyingFile(path string) Option {
	return func(p *Pipeline) {
		p.tyingPath = path
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics records generation metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithWorkers sets the number of concurrent generators used by Batch.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		p.workers = n
	}
}

// WithRandomSeqs adds n garbage label sequences to every result, each as
// long as the real sequence.
func WithRandomSeqs(n int) Option {
	return func(p *Pipeline) {
		p.randomSeqs = n
	}
}

// Result is the outcome for one orthography. Err holds recoverable
// per-sequence failures: unresolved words and states missing from the tying.
type Result struct {
	Index   int
	Orth    string
	States  []acoustic.AllophoneState
	Labels  []int
	Garbage [][]int
	Err     error
}

// NewPipeline loads the lexicon (Bliss XML, optionally gzipped, or a text
// dictionary) and the optional state tying.
func NewPipeline(lexiconPath string, opts ...Option) (*Pipeline, error) {
	p := newPipeline(opts)
	lex, err := lexicon.LoadAny(lexiconPath, lexicon.WithLogger(p.logger))
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	var genOpts []seqgen.Option
	if p.tyingPath != "" {
		st, err := statetying.LoadFile(p.tyingPath)
		if err != nil {
			return nil, fmt.Errorf("load state tying: %w", err)
		}
		genOpts = append(genOpts, seqgen.WithStateTying(st))
	}
	if p.gen, err = seqgen.New(lex, p.cfg, genOpts...); err != nil {
		return nil, err
	}
	p.logger.Info("pipeline ready",
		slog.Int("phonemes", lex.Inventory.Len()),
		slog.Int("lemmas", len(lex.Lemmas)),
		slog.Int("classes", p.gen.NumClasses()),
		slog.Bool("state_tying", p.tyingPath != ""))
	return p, nil
}

// NewPipelineFromGenerator wraps an existing generator. Its random stream is
// not used; sequences always run on clones.
func NewPipelineFromGenerator(g *seqgen.Generator, opts ...Option) *Pipeline {
	p := newPipeline(opts)
	p.gen = g
	p.cfg = g.Config()
	return p
}

func newPipeline(opts []Option) *Pipeline {
	p := &Pipeline{
		cfg:     seqgen.DefaultConfig(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// Generator returns the underlying generator.
func (p *Pipeline) Generator() *seqgen.Generator { return p.gen }

// Lexicon returns the loaded lexicon.
func (p *Pipeline) Lexicon() *lexicon.Lexicon { return p.gen.Lexicon() }

// ClassLabels names the label classes by class id.
func (p *Pipeline) ClassLabels() []string { return p.gen.ClassLabels() }

// Indices encodes states with the allophone state codec.
func (p *Pipeline) Indices(states []acoustic.AllophoneState) ([]uint64, error) {
	return p.gen.Indices(states)
}

// Decode maps a codec index back to its allophone state.
func (p *Pipeline) Decode(index uint64) (acoustic.AllophoneState, error) {
	return p.gen.Alphabet().FromIndex(index)
}

// SeedFor derives the random seed of one sequence in one epoch.
func SeedFor(epoch int64, seqIdx int) int64 {
	x := uint64(epoch)<<32 ^ uint64(uint32(seqIdx))
	x += 0x9e3779b97f4a7c15
	x = (x ^ x>>30) * 0xbf58476d1ce4e5b9
	x = (x ^ x>>27) * 0x94d049bb133111eb
	return int64(x ^ x>>31)
}

// Sequence generates one orthography. A recoverable failure is returned in
// Result.Err with a nil error.
func (p *Pipeline) Sequence(ctx context.Context, epoch int64, seqIdx int, orth string) (*Result, error) {
	r, err := p.run(ctx, p.gen.Clone(), epoch, seqIdx, orth)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Batch generates all orthographies of an epoch with the configured number of
// workers. Results are in input order and do not depend on the worker count.
func (p *Pipeline) Batch(ctx context.Context, epoch int64, orths []string) ([]Result, error) {
	start := time.Now()
	results := make([]Result, len(orths))
	eg, egCtx := errgroup.WithContext(ctx)

	jobs := make(chan int)
	eg.Go(func() error {
		defer close(jobs)
		for i := range orths {
			select {
			case jobs <- i:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})
	for w := 0; w < p.workers; w++ {
		g := p.gen.Clone()
		eg.Go(func() error {
			for i := range jobs {
				r, err := p.run(egCtx, g, epoch, i, orths[i])
				if err != nil {
					return err
				}
				results[i] = r
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.BatchDuration.Record(ctx, time.Since(start).Seconds())
	}
	p.logger.Debug("batch done",
		slog.Int64("epoch", epoch),
		slog.Int("sequences", len(orths)),
		slog.Duration("elapsed", time.Since(start)))
	return results, nil
}

func (p *Pipeline) run(ctx context.Context, g *seqgen.Generator, epoch int64, seqIdx int, orth string) (Result, error) {
	r := Result{Index: seqIdx, Orth: orth}
	if err := ctx.Err(); err != nil {
		return r, err
	}
	g.Reseed(SeedFor(epoch, seqIdx))

	states, err := g.Generate(orth)
	if err == nil {
		r.States = states
		r.Labels, err = g.Labels(states)
	}
	if err == nil {
		r.Garbage, err = p.garbage(ctx, g, len(states))
	}
	if err != nil {
		if !recoverable(err) {
			return r, fmt.Errorf("sequence %d: %w", seqIdx, err)
		}
		r.States, r.Labels, r.Garbage = nil, nil, nil
		r.Err = err
		p.record(ctx, err, 0)
		return r, nil
	}
	p.record(ctx, nil, len(states))
	return r, nil
}

func (p *Pipeline) garbage(ctx context.Context, g *seqgen.Generator, n int) ([][]int, error) {
	if p.randomSeqs == 0 {
		return nil, nil
	}
	out := make([][]int, p.randomSeqs)
	for k := range out {
		states, err := g.GenerateGarbage(n)
		if err != nil {
			return nil, err
		}
		if out[k], err = g.Labels(states); err != nil {
			return nil, err
		}
		if p.metrics != nil {
			p.metrics.RecordGarbage(ctx, n)
		}
	}
	return out, nil
}

func (p *Pipeline) record(ctx context.Context, err error, numStates int) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordSequence(ctx, status(err), numStates)
}

func recoverable(err error) bool {
	return errors.Is(err, lexicon.ErrUnresolvedWord) || errors.Is(err, statetying.ErrUnknownAllophoneState)
}

func status(err error) string {
	switch {
	case err == nil:
		return observe.StatusOK
	case errors.Is(err, lexicon.ErrUnresolvedWord):
		return observe.StatusUnresolved
	default:
		return observe.StatusUnknownState
	}
}
