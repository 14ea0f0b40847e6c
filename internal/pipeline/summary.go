package pipeline

import (
	"time"

	"github.com/refgraph/refgraph/internal/sink"
)

// Summary is the run report: what was read, what was loaded, what was
// skipped or lost, and what the sink applied. It is the single source
// for the process exit decision.
type Summary struct {
	RunID         string                  `json:"run_id"`
	DryRun        bool                    `json:"dry_run,omitempty"`
	Cleared       bool                    `json:"cleared,omitempty"`
	Files         []FileReport            `json:"files"`
	Categories    map[string]CategoryStat `json:"categories"`
	Nodes         int                     `json:"nodes"`
	Edges         int                     `json:"edges"`
	Batches       []sink.BatchResult      `json:"batches,omitempty"`
	FailedBatches int                     `json:"failed_batches,omitempty"`
	Skipped       []SkipReport            `json:"skipped,omitempty"`
	DurationMS    int64                   `json:"duration_ms"`

	started time.Time
}

// FileReport is the outcome of one input file.
type FileReport struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Records  int    `json:"records"`
	Loaded   int    `json:"loaded"`
	Skipped  int    `json:"skipped"`
	Failed   bool   `json:"failed,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SkipReport locates one skipped record and why it was skipped.
type SkipReport struct {
	Path   string `json:"path"`
	Row    int    `json:"row"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// CategoryStat aggregates file outcomes per category.
type CategoryStat struct {
	Files   int `json:"files"`
	Records int `json:"records"`
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Clean reports whether the run completed with nothing lost: every
// file parsed, every record loaded, every batch applied.
func (s *Summary) Clean() bool {
	if len(s.Skipped) > 0 || s.FailedBatches > 0 {
		return false
	}
	for _, f := range s.Files {
		if f.Failed {
			return false
		}
	}
	return true
}

func (s *Summary) aggregate() {
	for _, f := range s.Files {
		stat := s.Categories[f.Category]
		stat.Files++
		stat.Records += f.Records
		stat.Loaded += f.Loaded
		stat.Skipped += f.Skipped
		if f.Failed {
			stat.Failed++
		}
		s.Categories[f.Category] = stat
	}
}

func (s *Summary) finish() {
	s.DurationMS = time.Since(s.started).Milliseconds()
}
