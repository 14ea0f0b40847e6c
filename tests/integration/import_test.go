// Package integration exercises the full import path: CSV fixtures on
// disk, through the pipeline, into a real SQLite store, read back.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/refgraph/refgraph/internal/category"
	"github.com/refgraph/refgraph/internal/graph"
	"github.com/refgraph/refgraph/internal/pipeline"
	"github.com/refgraph/refgraph/internal/sink"
)

const papersCSV = `Key,Item Type,Publication Year,Author,Title,Publication Title,ISSN,DOI,Url,Abstract Note,Date,Pages,Publisher,Place,Manual Tags,Automatic Tags,File Attachments,Extra,Institution
A1,journalArticle,2021,"Zhang, San; Li, Si",Graph Databases in Practice,Journal of Data Engineering,1234-5678,10.1000/xyz,https://example.org/p1,An abstract.,2021-03-15,1-10,,,graph database; knowledge graph,,files/p1.pdf,"download: 12
major: Computer Science",Tsinghua University
A2,conferencePaper,2020,"Wang, Wu",Stream Processing at Scale,Some Conference,,,,,2020-06-01,,ACM,,stream processing,,,,
`

const authorsCSV = `Name,Institution
"Zhang, San",Tsinghua University
"Wang, Wu",Peking University
`

const keywordsCSV = `Name
graph database
stream processing
`

const crossrefsCSV = `Title,Publication Year,Relation,Target
Graph Databases in Practice,2021,HAS_KEYWORD,benchmarking
`

func writeFixture(t *testing.T, dir, name, content string) pipeline.Input {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	cat, ok := category.Classify(path)
	if !ok {
		t.Fatalf("fixture name %s does not classify", name)
	}
	return pipeline.Input{Path: path, Category: cat}
}

func fullFixture(t *testing.T) []pipeline.Input {
	t.Helper()
	dir := t.TempDir()
	return []pipeline.Input{
		writeFixture(t, dir, "papers.csv", papersCSV),
		writeFixture(t, dir, "authors.csv", authorsCSV),
		writeFixture(t, dir, "keywords.csv", keywordsCSV),
		writeFixture(t, dir, "crossrefs.csv", crossrefsCSV),
	}
}

// openStore opens a SQLite sink on a per-test file.
func openStore(t *testing.T) (*sink.SQLite, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "refs.db")
	return reopenStore(t, dbPath), dbPath
}

func reopenStore(t *testing.T, dbPath string) *sink.SQLite {
	t.Helper()
	store, err := sink.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func runImport(t *testing.T, store *sink.SQLite, inputs []pipeline.Input, opts pipeline.Options) *pipeline.Summary {
	t.Helper()
	summary, err := pipeline.NewRunner(store, opts).Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return summary
}

func TestImportEndToEnd(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)

	summary := runImport(t, store, fullFixture(t), pipeline.Options{})
	if !summary.Clean() {
		t.Fatalf("Clean() = false: files=%+v skipped=%+v failed_batches=%d",
			summary.Files, summary.Skipped, summary.FailedBatches)
	}

	nodeCounts := map[string]int{
		"Paper": 2, "Author": 3, "Keyword": 4, "Institution": 1,
		"Venue": 1, "Publisher": 1, "Subject": 1,
	}
	for label, want := range nodeCounts {
		got, err := store.CountNodes(ctx, label)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("CountNodes(%s) = %d, want %d", label, got, want)
		}
	}
	if got, _ := store.CountNodes(ctx, ""); got != 13 {
		t.Errorf("CountNodes(all) = %d, want 13", got)
	}
	if got, _ := store.CountEdges(ctx, ""); got != 11 {
		t.Errorf("CountEdges(all) = %d, want 11", got)
	}

	paper, err := store.Node(ctx, "Paper", "graph databases in practice|2021")
	if err != nil {
		t.Fatal(err)
	}
	if paper == nil {
		t.Fatal("paper A1 not stored")
	}
	if paper.Display != "Graph Databases in Practice" {
		t.Errorf("paper display = %q", paper.Display)
	}
	if paper.Props["doi"] != "10.1000/xyz" {
		t.Errorf("paper doi = %v", paper.Props["doi"])
	}
	if paper.Props["year"] != float64(2021) {
		t.Errorf("paper year = %v", paper.Props["year"])
	}
	if paper.Props["download_count"] != float64(12) {
		t.Errorf("paper download_count = %v", paper.Props["download_count"])
	}
	if paper.Props["has_pdf"] != true {
		t.Errorf("paper has_pdf = %v", paper.Props["has_pdf"])
	}
	if paper.FirstImported == "" {
		t.Error("paper first_imported empty")
	}

	// The authors file adds the affiliation onto the node the papers
	// file already registered.
	author, err := store.Node(ctx, "Author", "zhang san")
	if err != nil {
		t.Fatal(err)
	}
	if author == nil {
		t.Fatal("author not stored")
	}
	if author.Display != "Zhang, San" {
		t.Errorf("author display = %q", author.Display)
	}
	if author.Props["affiliation"] != "Tsinghua University" {
		t.Errorf("author affiliation = %v", author.Props["affiliation"])
	}

	edges := []graph.Edge{
		{SourceLabel: "Paper", SourceKey: "graph databases in practice|2021", Kind: graph.AuthoredBy, TargetLabel: "Author", TargetKey: "zhang san"},
		{SourceLabel: "Paper", SourceKey: "graph databases in practice|2021", Kind: graph.HasKeyword, TargetLabel: "Keyword", TargetKey: "benchmarking"},
		{SourceLabel: "Paper", SourceKey: "graph databases in practice|2021", Kind: graph.AffiliatedWith, TargetLabel: "Institution", TargetKey: "tsinghua university"},
		{SourceLabel: "Paper", SourceKey: "graph databases in practice|2021", Kind: graph.PublishedIn, TargetLabel: "Venue", TargetKey: "journal of data engineering"},
		{SourceLabel: "Paper", SourceKey: "stream processing at scale|2020", Kind: graph.PublishedBy, TargetLabel: "Publisher", TargetKey: "acm"},
		{SourceLabel: "Paper", SourceKey: "graph databases in practice|2021", Kind: graph.BelongsToSubject, TargetLabel: "Subject", TargetKey: "computer science"},
	}
	for _, e := range edges {
		ok, err := store.HasEdge(ctx, e)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("edge missing: %s", e.TripleKey())
		}
	}
}

func TestImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, dbPath := openStore(t)

	runImport(t, store, fullFixture(t), pipeline.Options{})
	before, err := store.Node(ctx, "Paper", "graph databases in practice|2021")
	if err != nil || before == nil {
		t.Fatalf("first run: paper = %v, err = %v", before, err)
	}

	// Second run through a fresh sink on the same file, as a re-invoked
	// process would do.
	store2 := reopenStore(t, dbPath)
	summary := runImport(t, store2, fullFixture(t), pipeline.Options{})
	if !summary.Clean() {
		t.Fatalf("second run not clean: %+v", summary)
	}

	if got, _ := store2.CountNodes(ctx, ""); got != 13 {
		t.Errorf("CountNodes(all) after re-run = %d, want 13", got)
	}
	if got, _ := store2.CountEdges(ctx, ""); got != 11 {
		t.Errorf("CountEdges(all) after re-run = %d, want 11", got)
	}

	after, err := store2.Node(ctx, "Paper", "graph databases in practice|2021")
	if err != nil || after == nil {
		t.Fatalf("second run: paper = %v, err = %v", after, err)
	}
	if after.FirstImported != before.FirstImported {
		t.Errorf("first_imported changed on re-run: %q -> %q", before.FirstImported, after.FirstImported)
	}
	if after.Props["doi"] != before.Props["doi"] {
		t.Errorf("doi changed on re-run: %v -> %v", before.Props["doi"], after.Props["doi"])
	}
}

func TestImportClearWipesPreviousRun(t *testing.T) {
	ctx := context.Background()
	store, dbPath := openStore(t)

	runImport(t, store, fullFixture(t), pipeline.Options{})

	dir := t.TempDir()
	onlyKeywords := []pipeline.Input{writeFixture(t, dir, "keywords.csv", keywordsCSV)}
	store2 := reopenStore(t, dbPath)
	summary := runImport(t, store2, onlyKeywords, pipeline.Options{Clear: true})
	if !summary.Cleared {
		t.Error("summary.Cleared = false")
	}

	if got, _ := store2.CountNodes(ctx, ""); got != 2 {
		t.Errorf("CountNodes(all) = %d, want 2 keywords only", got)
	}
	if got, _ := store2.CountEdges(ctx, ""); got != 0 {
		t.Errorf("CountEdges(all) = %d, want 0", got)
	}
	paper, err := store2.Node(ctx, "Paper", "graph databases in practice|2021")
	if err != nil {
		t.Fatal(err)
	}
	if paper != nil {
		t.Error("cleared paper still present")
	}
}

func TestImportSkipsBadRecordsButWritesGoodOnes(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)

	dir := t.TempDir()
	bad := `Title,Publication Year,Author
Graph Databases in Practice,2021,"Zhang, San"
"???",2022,"Li, Si"
`
	inputs := []pipeline.Input{writeFixture(t, dir, "papers.csv", bad)}
	summary := runImport(t, store, inputs, pipeline.Options{})

	if summary.Clean() {
		t.Error("Clean() = true, want false with a skipped record")
	}
	if len(summary.Skipped) != 1 {
		t.Fatalf("len(Skipped) = %d, want 1", len(summary.Skipped))
	}
	if summary.Skipped[0].Field != "title" {
		t.Errorf("Skipped[0].Field = %q, want title", summary.Skipped[0].Field)
	}

	if got, _ := store.CountNodes(ctx, "Paper"); got != 1 {
		t.Errorf("CountNodes(Paper) = %d, want 1", got)
	}
	author, err := store.Node(ctx, "Author", "zhang san")
	if err != nil {
		t.Fatal(err)
	}
	if author == nil {
		t.Error("author from the good row not stored")
	}
}
