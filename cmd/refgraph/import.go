package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/refgraph/refgraph/internal/category"
	"github.com/refgraph/refgraph/internal/config"
	"github.com/refgraph/refgraph/internal/entity"
	"github.com/refgraph/refgraph/internal/field"
	"github.com/refgraph/refgraph/internal/graph"
	"github.com/refgraph/refgraph/internal/pipeline"
	"github.com/refgraph/refgraph/internal/sink"
	"github.com/spf13/cobra"
)

var (
	importCategory  string
	importMapping   string
	importURI       string
	importUser      string
	importPassword  string
	importDatabase  string
	importSQLite    string
	importDryRun    bool
	importClear     bool
	importBatchSize int
	importThrottle  float64
)

func init() {
	importCmd.Flags().StringVar(&importCategory, "category", "", "Category for a single explicit file (papers, authors, keywords, crossrefs)")
	importCmd.Flags().StringVar(&importMapping, "mapping", "", "YAML file overriding column mappings per category")
	importCmd.Flags().StringVar(&importURI, "uri", "", "Neo4j connection URI (or NEO4J_URI)")
	importCmd.Flags().StringVar(&importUser, "user", "", "Neo4j user (or NEO4J_USER)")
	importCmd.Flags().StringVar(&importPassword, "password", "", "Neo4j password (or NEO4J_PASSWORD)")
	importCmd.Flags().StringVar(&importDatabase, "database", "", "Neo4j database name (or NEO4J_DATABASE)")
	importCmd.Flags().StringVar(&importSQLite, "sqlite", "", "Write a SQLite snapshot to this file instead of Neo4j")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Collect and report without writing to any store")
	importCmd.Flags().BoolVar(&importClear, "clear", false, "Wipe the target store before importing")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", sink.DefaultBatchSize, "Rows per write batch")
	importCmd.Flags().Float64Var(&importThrottle, "throttle", 0, "Max write batches per second against Neo4j (0 = unlimited)")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [paths...]",
	Short: "Import CSV exports into the graph store",
	Long: `Import categorized CSV exports into the graph store.

Usage:
  refgraph import exports/
  refgraph import papers.csv authors.csv --uri bolt://localhost:7687
  refgraph import papers.csv --sqlite refs.db --clear
  refgraph import weird-name.csv --category papers --dry-run

Each file's category is guessed from its name (papers*, authors*,
keywords*, crossref*/links*); directories are scanned for *.csv files
that classify. Use --category to tag a single file that does not.

Entity files are always processed before cross-reference files, so the
order paths are given does not change the result. The import is
idempotent: nodes and relationships merge by identity key, and re-runs
update properties without duplicating anything.

Exit codes: 0 full success, 3 completed with skipped records or failed
batches, 2 configuration errors, 1 everything else.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

// DryRunResult pairs the run summary with what would be written.
type DryRunResult struct {
	Summary *pipeline.Summary   `json:"summary"`
	Nodes   map[string]int      `json:"nodes_by_label"`
	Edges   map[string]int      `json:"edges_by_type"`
	Samples map[string][]string `json:"sample_keys,omitempty"`
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	settings := config.Settings{
		URI:        importURI,
		User:       importUser,
		Password:   importPassword,
		Database:   importDatabase,
		SQLitePath: importSQLite,
		DryRun:     importDryRun,
	}.WithEnv()
	if err := settings.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if settings.URI != "" && settings.SQLitePath != "" {
		exitWithError(ExitConfigError, "choose one of --uri or --sqlite, not both")
	}

	mappings := mustLoadMappings(importMapping)
	inputs, err := collectInputs(args, importCategory)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	ctx := context.Background()
	target, report, err := openSink(ctx, settings, importThrottle, logger)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer target.Close(ctx)

	runner := pipeline.NewRunner(target, pipeline.Options{
		BatchSize: importBatchSize,
		DryRun:    importDryRun,
		Clear:     importClear,
		Mappings:  mappings,
		Logger:    logger,
	})
	summary, err := runner.Run(ctx, inputs)
	if err != nil {
		exitWithError(ExitError, "import failed: %v", err)
	}

	if humanOutput {
		printSummaryHuman(summary)
		if report != nil {
			printReportHuman(report)
		}
	} else if report != nil {
		outputJSON(DryRunResult{
			Summary: summary,
			Nodes:   report.NodeCounts,
			Edges:   report.EdgeCounts,
			Samples: report.Samples,
		})
	} else {
		outputJSON(summary)
	}

	if !summary.Clean() {
		os.Exit(ExitDataError)
	}
	return nil
}

// openSink picks the write target from the settings. The report sink
// is returned as well when the run is a dry run, so the command can
// render what would have been written.
func openSink(ctx context.Context, settings config.Settings, throttle float64, logger *log.Logger) (sink.Sink, *sink.Report, error) {
	if settings.DryRun {
		report := sink.NewReport()
		return report, report, nil
	}
	if settings.SQLitePath != "" {
		s, err := sink.OpenSQLite(settings.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	s, err := sink.OpenNeo4j(ctx, sink.Neo4jConfig{
		URI:             settings.URI,
		User:            settings.User,
		Password:        settings.Password,
		Database:        settings.Database,
		Timeout:         settings.Timeout,
		WritesPerSecond: throttle,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

// printReportHuman prints the dry-run breakdown per label and type.
func printReportHuman(r *sink.Report) {
	fmt.Printf("\nWould write %d nodes, %d edges:\n", r.TotalNodes(), r.TotalEdges())
	for _, kind := range entity.Kinds {
		label := kind.Label()
		count, ok := r.NodeCounts[label]
		if !ok {
			continue
		}
		fmt.Printf("  %-20s %d\n", label, count)
		for _, key := range r.Samples[label] {
			fmt.Printf("    %s\n", truncateString(key, SkipValueMaxLen))
		}
	}
	for _, kind := range graph.Kinds {
		count, ok := r.EdgeCounts[string(kind)]
		if !ok {
			continue
		}
		fmt.Printf("  %-20s %d\n", kind, count)
	}
}

// collectInputs expands the command-line paths into categorized
// inputs. Directories contribute every *.csv file whose name
// classifies; explicitly named files must classify or carry
// --category, which applies to exactly one file.
func collectInputs(args []string, override string) ([]pipeline.Input, error) {
	if override != "" {
		if len(args) != 1 {
			return nil, fmt.Errorf("--category applies to exactly one file, got %d paths", len(args))
		}
		cat, err := category.Parse(override)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(args[0])
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("--category needs a file, %s is a directory", args[0])
		}
		return []pipeline.Input{{Path: args[0], Category: cat}}, nil
	}

	var inputs []pipeline.Input
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := scanDir(arg)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, found...)
			continue
		}
		cat, ok := category.Classify(arg)
		if !ok {
			return nil, fmt.Errorf("cannot tell the category of %s from its name; use --category", arg)
		}
		inputs = append(inputs, pipeline.Input{Path: arg, Category: cat})
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no importable CSV files found")
	}
	return inputs, nil
}

// scanDir returns the classifiable *.csv files directly inside dir.
func scanDir(dir string) ([]pipeline.Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var inputs []pipeline.Input
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		cat, ok := category.Classify(e.Name())
		if !ok {
			continue
		}
		inputs = append(inputs, pipeline.Input{Path: filepath.Join(dir, e.Name()), Category: cat})
	}
	return inputs, nil
}

// mustLoadMappings loads mapping overrides, exiting on a bad file.
func mustLoadMappings(path string) map[category.Category]field.Mapping {
	if path == "" {
		return nil
	}
	m, err := config.LoadMappings(path)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return m
}
