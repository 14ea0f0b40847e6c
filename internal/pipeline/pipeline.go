// Package pipeline orchestrates one import run: ordering the input
// files, streaming their records through normalization and entity
// resolution into graph operations, and flushing those operations to
// the sink. The pipeline is single-threaded; determinism over wall
// clock is the contract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/refgraph/refgraph/internal/category"
	"github.com/refgraph/refgraph/internal/entity"
	"github.com/refgraph/refgraph/internal/field"
	"github.com/refgraph/refgraph/internal/graph"
	"github.com/refgraph/refgraph/internal/record"
	"github.com/refgraph/refgraph/internal/sink"
)

// progressEvery is the record interval between progress log lines.
const progressEvery = 100

// Input is one export file tagged with its category.
type Input struct {
	Path     string
	Category category.Category
}

// Options tunes one run. Zero values take the writer defaults; a nil
// Mappings entry falls back to the category's built-in header mapping.
type Options struct {
	BatchSize int
	Retries   int
	Backoff   time.Duration
	DryRun    bool
	Clear     bool
	Mappings  map[category.Category]field.Mapping
	Logger    *log.Logger
}

// Runner executes import runs against one sink.
type Runner struct {
	sink sink.Sink
	opts Options
	log  *log.Logger
}

// NewRunner returns a runner writing to s.
func NewRunner(s sink.Sink, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{sink: s, opts: opts, log: logger}
}

// Run collects every operation the inputs describe and flushes them.
// Record skips, malformed files, and abandoned batches are reported in
// the summary, not returned; the error return is reserved for
// conditions that abort the run (an unopenable input file, schema
// setup, clearing, cancellation).
func (r *Runner) Run(ctx context.Context, inputs []Input) (*Summary, error) {
	ops, summary, err := r.Collect(ctx, inputs)
	if err != nil {
		summary.finish()
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if err := r.sink.EnsureSchema(ctx); err != nil {
		return summary, fmt.Errorf("preparing sink schema: %w", err)
	}
	if r.opts.Clear {
		r.log.Info("clearing graph store before import")
		if err := r.sink.Clear(ctx); err != nil {
			return summary, fmt.Errorf("clearing sink: %w", err)
		}
		summary.Cleared = true
	}

	writer := sink.NewWriter(r.sink, sink.WriterOptions{
		BatchSize: r.opts.BatchSize,
		Retries:   r.opts.Retries,
		Backoff:   r.opts.Backoff,
		Logger:    r.log,
	})
	summary.Batches = writer.Flush(ctx, ops)
	for _, b := range summary.Batches {
		if b.Failed() {
			summary.FailedBatches++
		}
	}
	summary.finish()

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	r.log.Info("run complete",
		"run_id", summary.RunID,
		"nodes", summary.Nodes,
		"edges", summary.Edges,
		"skipped", len(summary.Skipped),
		"failed_batches", summary.FailedBatches)
	return summary, nil
}

// Collect streams every input through the builder without touching the
// sink. Inputs are reordered so entity-defining categories run before
// cross-references, with path order breaking ties; the caller's
// argument order never changes the result. A non-nil error means an
// input could not be read at all, which stops collection; malformed
// files are only marked failed in the summary.
func (r *Runner) Collect(ctx context.Context, inputs []Input) (*graph.OpSet, *Summary, error) {
	summary := newSummary(r.opts.DryRun)
	builder := graph.NewBuilder(entity.NewResolver())

	var fatal error
	for _, in := range orderInputs(inputs) {
		if ctx.Err() != nil {
			break
		}
		r.log.Info("reading", "path", in.Path, "category", in.Category)
		rep, err := r.processFile(ctx, builder, in, summary)
		if err != nil {
			fatal = err
			break
		}
		summary.Files = append(summary.Files, rep)
	}

	ops := builder.Ops()
	summary.Nodes = len(ops.Nodes())
	summary.Edges = len(ops.Edges())
	summary.aggregate()
	return ops, summary, fatal
}

// orderInputs sorts by category rank, then path. Stable and pure; the
// caller's slice is untouched.
func orderInputs(inputs []Input) []Input {
	out := make([]Input, len(inputs))
	copy(out, inputs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category.Order() != out[j].Category.Order() {
			return out[i].Category.Order() < out[j].Category.Order()
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func (r *Runner) mappingFor(cat category.Category) field.Mapping {
	if m, ok := r.opts.Mappings[cat]; ok && m != nil {
		return m
	}
	return field.DefaultMapping(cat)
}

// processFile reads one file to the end, dispatching each record into
// the builder. A file that cannot be opened at all returns an error
// and stops the run; a malformed file rejects only itself; a record
// the resolver cannot place is skipped and reported, and the file
// continues.
func (r *Runner) processFile(ctx context.Context, b *graph.Builder, in Input, summary *Summary) (FileReport, error) {
	rep := FileReport{Path: in.Path, Category: in.Category.String()}
	mapping := r.mappingFor(in.Category)

	rd, err := record.Open(in.Path, in.Category)
	if err != nil {
		var malformed *record.MalformedInputError
		if !errors.As(err, &malformed) {
			return rep, fmt.Errorf("reading %s: %w", in.Path, err)
		}
		rep.Failed = true
		rep.Error = err.Error()
		r.log.Error("file rejected", "path", in.Path, "error", err)
		return rep, nil
	}
	defer rd.Close()

	for {
		if err := ctx.Err(); err != nil {
			rep.Failed = true
			rep.Error = err.Error()
			return rep, nil
		}
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		if err != nil {
			rep.Failed = true
			rep.Error = err.Error()
			r.log.Error("file aborted", "path", in.Path, "error", err)
			return rep, nil
		}

		rep.Records++
		if err := dispatch(b, in.Category, mapping, rec); err != nil {
			rep.Skipped++
			summary.Skipped = append(summary.Skipped, newSkipReport(in.Path, rec.Row, err))
			r.log.Warn("record skipped", "path", in.Path, "row", rec.Row, "reason", err)
			continue
		}
		rep.Loaded++
		if rep.Records%progressEvery == 0 {
			r.log.Info("processing", "path", in.Path, "records", rep.Records)
		}
	}
}

func dispatch(b *graph.Builder, cat category.Category, m field.Mapping, rec *record.RawRecord) error {
	fields := m.Extract(rec.Columns, rec.Values)
	switch cat {
	case category.Papers:
		return b.AddPaper(fields)
	case category.Authors:
		return b.AddAuthorRow(fields)
	case category.Keywords:
		return b.AddKeywordRow(fields)
	case category.CrossReferences:
		return b.AddCrossReference(fields)
	}
	return fmt.Errorf("unhandled category %q", cat)
}

func newSkipReport(path string, row int, err error) SkipReport {
	skip := SkipReport{Path: path, Row: row, Reason: err.Error()}
	var ue *entity.UnresolvableEntityError
	if errors.As(err, &ue) {
		skip.Field = ue.Field
		skip.Value = ue.Value
		skip.Reason = ue.Reason
	}
	return skip
}

func newSummary(dryRun bool) *Summary {
	return &Summary{
		RunID:      uuid.NewString(),
		DryRun:     dryRun,
		Categories: make(map[string]CategoryStat),
		started:    time.Now(),
	}
}
