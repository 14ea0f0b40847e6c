package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/refgraph/refgraph/internal/category"
	"github.com/refgraph/refgraph/internal/pipeline"
)

// SkipValueMaxLen truncates skipped values in human output
const SkipValueMaxLen = 60

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// printSummaryHuman prints a run summary in human-readable format.
func printSummaryHuman(s *pipeline.Summary) {
	if s.DryRun {
		fmt.Println("Dry run - nothing written...")
	} else {
		fmt.Println("Importing...")
	}
	for _, cat := range category.All {
		stat, ok := s.Categories[cat.String()]
		if !ok {
			continue
		}
		fmt.Printf("  %-10s %d files, %d records, %d loaded, %d skipped\n",
			cat.String()+":", stat.Files, stat.Records, stat.Loaded, stat.Skipped)
	}
	fmt.Printf("  Nodes:   %d\n", s.Nodes)
	fmt.Printf("  Edges:   %d\n", s.Edges)

	if len(s.Skipped) > 0 {
		fmt.Println("\nSkipped records:")
		for _, skip := range s.Skipped {
			fmt.Printf("  - %s row %d: %s", skip.Path, skip.Row, skip.Reason)
			if skip.Value != "" {
				fmt.Printf(" (%s)", truncateString(skip.Value, SkipValueMaxLen))
			}
			fmt.Println()
		}
	}
	for _, f := range s.Files {
		if f.Failed {
			fmt.Printf("\n  [FAIL] %s: %s\n", f.Path, f.Error)
		}
	}
	if s.FailedBatches > 0 {
		fmt.Printf("\nFailed batches: %d\n", s.FailedBatches)
		for _, b := range s.Batches {
			if b.Failed() {
				fmt.Printf("  - %s/%s (%d rows, %d attempts): %s\n", b.Kind, b.Label, b.Size, b.Attempts, b.Error)
				fmt.Printf("    keys: %s\n", truncateString(strings.Join(b.Keys, ", "), SkipValueMaxLen*2))
			}
		}
	}
	fmt.Printf("\nDone in %s\n", formatDuration(time.Duration(s.DurationMS)*time.Millisecond))
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
