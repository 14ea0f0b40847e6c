package sink

import (
	"context"

	"github.com/refgraph/refgraph/internal/graph"
)

// sampleKeys caps how many example keys a dry run reports per group.
const sampleKeys = 5

// Report is the dry-run sink: it counts what would be written and
// keeps a few sample keys per group, touching no store.
type Report struct {
	NodeCounts map[string]int
	EdgeCounts map[string]int
	Samples    map[string][]string
	Cleared    bool
}

// NewReport returns an empty dry-run sink.
func NewReport() *Report {
	return &Report{
		NodeCounts: make(map[string]int),
		EdgeCounts: make(map[string]int),
		Samples:    make(map[string][]string),
	}
}

func (r *Report) EnsureSchema(ctx context.Context) error {
	return nil
}

// Clear records that a real run would have wiped the store first.
func (r *Report) Clear(ctx context.Context) error {
	r.Cleared = true
	return nil
}

func (r *Report) WriteNodes(ctx context.Context, label string, nodes []graph.Node) error {
	r.NodeCounts[label] += len(nodes)
	for _, n := range nodes {
		if len(r.Samples[label]) >= sampleKeys {
			break
		}
		r.Samples[label] = append(r.Samples[label], n.Key)
	}
	return nil
}

func (r *Report) WriteEdges(ctx context.Context, kind graph.EdgeKind, edges []graph.Edge) error {
	r.EdgeCounts[string(kind)] += len(edges)
	return nil
}

func (r *Report) Close(ctx context.Context) error {
	return nil
}

// TotalNodes sums node counts across labels.
func (r *Report) TotalNodes() int {
	total := 0
	for _, c := range r.NodeCounts {
		total += c
	}
	return total
}

// TotalEdges sums edge counts across kinds.
func (r *Report) TotalEdges() int {
	total := 0
	for _, c := range r.EdgeCounts {
		total += c
	}
	return total
}
