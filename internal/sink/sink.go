// Package sink writes graph upsert operations to a store. Backends
// share one contract: writes are idempotent merges by identity key,
// issued in batches partitioned by node label and relationship kind.
// The Writer owns batching and retry policy; backends execute one
// batch per call and report plain errors.
package sink

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/refgraph/refgraph/internal/graph"
)

// Sink is one graph store backend. WriteNodes and WriteEdges apply a
// single already-partitioned batch; callers never mix labels or kinds
// within one call.
type Sink interface {
	// EnsureSchema prepares constraints or tables. Best effort on
	// backends where schema setup needs privileges the data writes
	// do not.
	EnsureSchema(ctx context.Context) error
	// Clear removes every node and edge from the store.
	Clear(ctx context.Context) error
	WriteNodes(ctx context.Context, label string, nodes []graph.Node) error
	WriteEdges(ctx context.Context, kind graph.EdgeKind, edges []graph.Edge) error
	Close(ctx context.Context) error
}

// WriteBatchError reports one batch that failed after all retry
// attempts. Only that batch is lost; the run continues with the next.
// Keys lists the identity keys of the rows the batch carried.
type WriteBatchError struct {
	Kind  string // "nodes" or "edges"
	Label string // node label or relationship kind
	Size  int
	Keys  []string
	Err   error
}

func (e *WriteBatchError) Error() string {
	return fmt.Sprintf("writing %s batch %s (%d rows): %v", e.Kind, e.Label, e.Size, e.Err)
}

func (e *WriteBatchError) Unwrap() error {
	return e.Err
}

// BatchResult records the outcome of one issued batch. Keys is set
// only on abandoned batches, naming the rows that were lost.
type BatchResult struct {
	Kind     string   `json:"kind"`
	Label    string   `json:"label"`
	Size     int      `json:"size"`
	Attempts int      `json:"attempts"`
	Keys     []string `json:"keys,omitempty"`
	Err      error    `json:"-"`
	Error    string   `json:"error,omitempty"`
}

// Failed reports whether the batch was abandoned after retries.
func (r BatchResult) Failed() bool {
	return r.Err != nil
}

const (
	// DefaultBatchSize bounds one UNWIND batch.
	DefaultBatchSize = 500
	defaultRetries   = 3
	defaultBackoff   = 500 * time.Millisecond
)

// WriterOptions tunes the flush policy. Zero values take defaults.
type WriterOptions struct {
	BatchSize int
	Retries   int
	Backoff   time.Duration
	Logger    *log.Logger
}

// Writer flushes an operation set to a sink: node batches first so
// every edge endpoint exists before any edge batch runs, then edge
// batches. Each batch gets a bounded number of attempts with linear
// backoff; a batch that still fails is recorded and skipped.
type Writer struct {
	sink      Sink
	batchSize int
	retries   int
	backoff   time.Duration
	log       *log.Logger
}

// NewWriter wraps a sink with the flush policy.
func NewWriter(s Sink, opts WriterOptions) *Writer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Writer{
		sink:      s,
		batchSize: opts.BatchSize,
		retries:   opts.Retries,
		backoff:   opts.Backoff,
		log:       opts.Logger,
	}
}

// Flush writes every operation in the set and returns one result per
// issued batch. It stops early only when the context is done; batch
// failures are recorded, not returned.
func (w *Writer) Flush(ctx context.Context, ops *graph.OpSet) []BatchResult {
	var results []BatchResult
	for _, g := range ops.NodeGroups() {
		for _, batch := range chunk(g.Nodes, w.batchSize) {
			results = append(results, w.run(ctx, "nodes", g.Label, nodeKeys(batch), func(ctx context.Context) error {
				return w.sink.WriteNodes(ctx, g.Label, batch)
			}))
			if ctx.Err() != nil {
				return results
			}
		}
	}
	for _, g := range ops.EdgeGroups() {
		for _, batch := range chunk(g.Edges, w.batchSize) {
			results = append(results, w.run(ctx, "edges", string(g.Kind), edgeKeys(batch), func(ctx context.Context) error {
				return w.sink.WriteEdges(ctx, g.Kind, batch)
			}))
			if ctx.Err() != nil {
				return results
			}
		}
	}
	return results
}

func (w *Writer) run(ctx context.Context, kind, label string, keys []string, write func(context.Context) error) BatchResult {
	size := len(keys)
	res := BatchResult{Kind: kind, Label: label, Size: size}
	var err error
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		err = write(ctx)
		if err == nil {
			w.log.Debug("batch applied", "kind", kind, "label", label, "size", size, "attempt", attempt)
			return res
		}
		if attempt == w.retries {
			break
		}
		w.log.Warn("batch failed, retrying", "kind", kind, "label", label, "size", size, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
		if ctx.Err() != nil {
			break
		}
	}
	res.Keys = keys
	res.Err = &WriteBatchError{Kind: kind, Label: label, Size: size, Keys: keys, Err: err}
	res.Error = res.Err.Error()
	w.log.Error("batch abandoned", "kind", kind, "label", label, "size", size, "attempts", res.Attempts, "error", err)
	return res
}

func nodeKeys(nodes []graph.Node) []string {
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = n.Key
	}
	return keys
}

func edgeKeys(edges []graph.Edge) []string {
	keys := make([]string, len(edges))
	for i, e := range edges {
		keys[i] = e.SourceKey + "->" + e.TargetKey
	}
	return keys
}

func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
