// Package main provides the refgraph CLI entry point.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// verbose raises the log level to debug
var verbose bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "refgraph",
	Short: "Load bibliographic CSV exports into a labeled property graph",
	Long: `refgraph converts categorized bibliographic CSV exports into a graph of
papers, authors, keywords, institutions, venues, publishers and subjects.

Exports come one file per category (papers, authors, keywords,
cross-references). Rows are normalized, resolved against a shared
identity index, and merged idempotently into Neo4j or a SQLite
snapshot. All commands output JSON by default for easy integration
with other tools; use --human for readable text.

Environment Variables:
  NEO4J_URI       Neo4j connection URI (bolt:// or neo4j://)
  NEO4J_USER      Neo4j user (default neo4j)
  NEO4J_PASSWORD  Neo4j password
  NEO4J_DATABASE  Neo4j database name`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env if present (for NEO4J_* connection settings)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.Version = Version
}

// newLogger returns the stderr logger shared by the commands.
func newLogger() *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}
