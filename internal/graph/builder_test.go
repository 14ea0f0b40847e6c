package graph

import (
	"errors"
	"testing"

	"github.com/refgraph/refgraph/internal/category"
	"github.com/refgraph/refgraph/internal/entity"
	"github.com/refgraph/refgraph/internal/field"
)

// extract runs a row through the default header mapping of a category,
// the same path records take in a real run.
func extract(cat category.Category, cols []string, vals map[string]string) field.Set {
	return field.DefaultMapping(cat).Extract(cols, vals)
}

func paperRow(vals map[string]string) field.Set {
	cols := []string{
		"Key", "Item Type", "Publication Year", "Author", "Title",
		"Publication Title", "ISSN", "DOI", "Url", "Abstract Note",
		"Date", "Pages", "Publisher", "Place", "Manual Tags",
		"Automatic Tags", "File Attachments", "Extra", "Institution",
	}
	return extract(category.Papers, cols, vals)
}

func findNode(t *testing.T, s *OpSet, label, key string) Node {
	t.Helper()
	for _, n := range s.Nodes() {
		if n.Label == label && n.Key == key {
			return n
		}
	}
	t.Fatalf("node %s:%s not in op set", label, key)
	return Node{}
}

func hasEdge(s *OpSet, kind EdgeKind, sourceKey, targetKey string) bool {
	for _, e := range s.Edges() {
		if e.Kind == kind && e.SourceKey == sourceKey && e.TargetKey == targetKey {
			return true
		}
	}
	return false
}

func TestBuilder_AddPaper(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := paperRow(map[string]string{
		"Key":               "ABC123",
		"Item Type":         "journalArticle",
		"Publication Year":  "2021",
		"Author":            "Zhang, San; Li, Si",
		"Title":             "Graph Databases in Practice",
		"Publication Title": "Journal of Data Engineering",
		"ISSN":              "1234-5678",
		"DOI":               "10.1000/xyz",
		"Date":              "2021-03-15",
		"Manual Tags":       "graph database; knowledge graph",
		"File Attachments":  "/papers/abc123.pdf",
		"Extra":             "download: 120\nCNKICite: 15\nmajor: Computer Science",
		"Institution":       "Tsinghua University",
	})

	if err := b.AddPaper(fields); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}

	ops := b.Ops()
	paperKey := "graph databases in practice|2021"
	paper := findNode(t, ops, "Paper", paperKey)
	if paper.Display != "Graph Databases in Practice" {
		t.Errorf("paper display = %q", paper.Display)
	}
	for prop, want := range map[string]any{
		"year":           2021,
		"date":           "2021-03-15",
		"venue":          "Journal of Data Engineering",
		"doi":            "10.1000/xyz",
		"item_type":      "journalArticle",
		"source_key":     "ABC123",
		"download_count": 120,
		"cite_count":     15,
		"has_pdf":        true,
	} {
		if got := paper.Props[prop]; got != want {
			t.Errorf("paper prop %s = %v, want %v", prop, got, want)
		}
	}

	findNode(t, ops, "Author", "zhang san")
	findNode(t, ops, "Author", "li si")
	findNode(t, ops, "Keyword", "graph database")
	findNode(t, ops, "Keyword", "knowledge graph")
	findNode(t, ops, "Institution", "tsinghua university")
	findNode(t, ops, "Venue", "journal of data engineering")
	findNode(t, ops, "Subject", "computer science")

	for _, e := range []struct {
		kind EdgeKind
		key  string
	}{
		{AuthoredBy, "zhang san"},
		{AuthoredBy, "li si"},
		{HasKeyword, "graph database"},
		{HasKeyword, "knowledge graph"},
		{AffiliatedWith, "tsinghua university"},
		{PublishedIn, "journal of data engineering"},
		{BelongsToSubject, "computer science"},
	} {
		if !hasEdge(ops, e.kind, paperKey, e.key) {
			t.Errorf("missing edge %s -> %s", e.kind, e.key)
		}
	}
}

func TestBuilder_AddPaper_NoPDFNoYear(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := paperRow(map[string]string{"Title": "Untracked Report"})

	if err := b.AddPaper(fields); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}

	paper := findNode(t, b.Ops(), "Paper", "untracked report")
	if got := paper.Props["has_pdf"]; got != false {
		t.Errorf("has_pdf = %v, want false", got)
	}
	if _, ok := paper.Props["year"]; ok {
		t.Error("year set on a record with no year column value")
	}
}

func TestBuilder_AddPaper_NoAuthorsNoEdges(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := paperRow(map[string]string{"Title": "Anonymous Pamphlet", "Author": ""})

	if err := b.AddPaper(fields); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}

	findNode(t, b.Ops(), "Paper", "anonymous pamphlet")
	for _, e := range b.Ops().Edges() {
		if e.Kind == AuthoredBy {
			t.Fatalf("authorless paper produced edge %+v", e)
		}
	}
}

func TestBuilder_AddPaper_EmptyTitleFails(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := paperRow(map[string]string{"Title": "???", "Publication Year": "2020"})

	err := b.AddPaper(fields)
	var ue *entity.UnresolvableEntityError
	if !errors.As(err, &ue) {
		t.Fatalf("AddPaper() error = %v, want UnresolvableEntityError", err)
	}
	if ue.Field != "title" {
		t.Errorf("Field = %q, want title", ue.Field)
	}
	if got := len(b.Ops().Nodes()); got != 0 {
		t.Errorf("op set holds %d nodes after failed record, want 0", got)
	}
}

func TestBuilder_AddPaper_VenueOnlyForJournalArticles(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := paperRow(map[string]string{
		"Title":             "Proceedings Piece",
		"Item Type":         "conferencePaper",
		"Publication Title": "Some Conference",
	})

	if err := b.AddPaper(fields); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}

	ops := b.Ops()
	for _, n := range ops.Nodes() {
		if n.Label == "Venue" {
			t.Fatalf("venue node %q emitted for a conference paper", n.Display)
		}
	}
	// The venue string survives as a plain property.
	paper := findNode(t, ops, "Paper", "proceedings piece")
	if got := paper.Props["venue"]; got != "Some Conference" {
		t.Errorf("venue prop = %v, want Some Conference", got)
	}
}

func TestBuilder_AddPaper_VenueEdgeCarriesISSN(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := paperRow(map[string]string{
		"Title":             "An Article",
		"Item Type":         "journalArticle",
		"Publication Title": "Nature",
		"ISSN":              "0028-0836",
	})

	if err := b.AddPaper(fields); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}
	venue := findNode(t, b.Ops(), "Venue", "nature")
	if got := venue.Props["issn"]; got != "0028-0836" {
		t.Errorf("issn = %v, want 0028-0836", got)
	}
}

func TestBuilder_AddPaper_PublisherFallsBackToPlace(t *testing.T) {
	tests := []struct {
		name string
		vals map[string]string
		want string
	}{
		{
			name: "publisher named",
			vals: map[string]string{"Title": "Book A", "Publisher": "Springer", "Place": "Berlin"},
			want: "springer",
		},
		{
			name: "place only",
			vals: map[string]string{"Title": "Book B", "Place": "Beijing"},
			want: "beijing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(entity.NewResolver())
			if err := b.AddPaper(paperRow(tt.vals)); err != nil {
				t.Fatalf("AddPaper() error = %v", err)
			}
			findNode(t, b.Ops(), "Publisher", tt.want)
		})
	}
}

func TestBuilder_SharedAuthorGetsOneNode(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	first := paperRow(map[string]string{"Title": "Paper One", "Author": "Zhang, San"})
	second := paperRow(map[string]string{"Title": "Paper Two", "Author": "ZHANG, SAN"})

	if err := b.AddPaper(first); err != nil {
		t.Fatalf("AddPaper(first) error = %v", err)
	}
	if err := b.AddPaper(second); err != nil {
		t.Fatalf("AddPaper(second) error = %v", err)
	}

	ops := b.Ops()
	authors := 0
	for _, n := range ops.Nodes() {
		if n.Label == "Author" {
			authors++
		}
	}
	if authors != 1 {
		t.Fatalf("author nodes = %d, want 1", authors)
	}
	if !hasEdge(ops, AuthoredBy, "paper one", "zhang san") || !hasEdge(ops, AuthoredBy, "paper two", "zhang san") {
		t.Error("expected one AUTHORED_BY edge from each paper to the shared author")
	}
}

func TestBuilder_EmptyAuthorAtomsDropped(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := paperRow(map[string]string{"Title": "Gapped List", "Author": "Zhang, San; ???; Li, Si"})

	if err := b.AddPaper(fields); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}
	authors := 0
	for _, n := range b.Ops().Nodes() {
		if n.Label == "Author" {
			authors++
		}
	}
	if authors != 2 {
		t.Errorf("author nodes = %d, want 2 (punctuation-only atom dropped)", authors)
	}
}

func TestBuilder_AddAuthorRow(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := extract(category.Authors,
		[]string{"Name", "Institution"},
		map[string]string{"Name": "Zhang, San", "Institution": "Tsinghua University"})

	if err := b.AddAuthorRow(fields); err != nil {
		t.Fatalf("AddAuthorRow() error = %v", err)
	}
	n := findNode(t, b.Ops(), "Author", "zhang san")
	if got := n.Props["affiliation"]; got != "Tsinghua University" {
		t.Errorf("affiliation = %v, want Tsinghua University", got)
	}
	if got := len(b.Ops().Edges()); got != 0 {
		t.Errorf("author row emitted %d edges, want 0", got)
	}
}

func TestBuilder_AddAuthorRow_AffiliationSurvivesPriorSighting(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	if err := b.AddPaper(paperRow(map[string]string{"Title": "Paper One", "Author": "Zhang, San"})); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}
	fields := extract(category.Authors,
		[]string{"Name", "Institution"},
		map[string]string{"Name": "zhang san", "Institution": "Tsinghua University"})
	if err := b.AddAuthorRow(fields); err != nil {
		t.Fatalf("AddAuthorRow() error = %v", err)
	}

	n := findNode(t, b.Ops(), "Author", "zhang san")
	if got := n.Props["affiliation"]; got != "Tsinghua University" {
		t.Errorf("affiliation = %v, want it merged onto the existing node", got)
	}
	if n.Display != "Zhang, San" {
		t.Errorf("display = %q, want first sighting kept", n.Display)
	}
}

func TestBuilder_AddAuthorRow_Unresolvable(t *testing.T) {
	tests := []struct {
		name string
		vals map[string]string
	}{
		{"no name column value", map[string]string{"Institution": "Somewhere"}},
		{"punctuation only", map[string]string{"Name": "---"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(entity.NewResolver())
			fields := extract(category.Authors, []string{"Name", "Institution"}, tt.vals)
			err := b.AddAuthorRow(fields)
			var ue *entity.UnresolvableEntityError
			if !errors.As(err, &ue) {
				t.Fatalf("AddAuthorRow() error = %v, want UnresolvableEntityError", err)
			}
			if ue.Kind != entity.KindAuthor {
				t.Errorf("Kind = %q, want author", ue.Kind)
			}
		})
	}
}

func TestBuilder_AddKeywordRow(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := extract(category.Keywords, []string{"Name"}, map[string]string{"Name": "Machine Learning"})

	if err := b.AddKeywordRow(fields); err != nil {
		t.Fatalf("AddKeywordRow() error = %v", err)
	}
	n := findNode(t, b.Ops(), "Keyword", "machine learning")
	if n.Display != "Machine Learning" {
		t.Errorf("display = %q", n.Display)
	}
}

func TestBuilder_AddCrossReference(t *testing.T) {
	b := NewBuilder(entity.NewResolver())

	// Pre-register the paper the way the papers file would.
	if err := b.AddPaper(paperRow(map[string]string{
		"Title":            "Graph Databases in Practice",
		"Publication Year": "2021",
	})); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}

	fields := extract(category.CrossReferences,
		[]string{"Title", "Year", "Relation", "Target"},
		map[string]string{
			"Title":    "graph databases IN practice",
			"Year":     "2021",
			"Relation": "AUTHORED_BY",
			"Target":   "Zhang, San",
		})
	if err := b.AddCrossReference(fields); err != nil {
		t.Fatalf("AddCrossReference() error = %v", err)
	}

	ops := b.Ops()
	papers := 0
	for _, n := range ops.Nodes() {
		if n.Label == "Paper" {
			papers++
		}
	}
	if papers != 1 {
		t.Fatalf("paper nodes = %d, want 1 (cross reference must land on the registered paper)", papers)
	}
	if !hasEdge(ops, AuthoredBy, "graph databases in practice|2021", "zhang san") {
		t.Error("missing AUTHORED_BY edge from cross reference")
	}
}

func TestBuilder_AddCrossReference_MintsUnknownPaper(t *testing.T) {
	b := NewBuilder(entity.NewResolver())
	fields := extract(category.CrossReferences,
		[]string{"Title", "Relation", "Target"},
		map[string]string{"Title": "Never Exported", "Relation": "keyword", "Target": "graphs"})

	if err := b.AddCrossReference(fields); err != nil {
		t.Fatalf("AddCrossReference() error = %v", err)
	}
	findNode(t, b.Ops(), "Paper", "never exported")
	if !hasEdge(b.Ops(), HasKeyword, "never exported", "graphs") {
		t.Error("missing HAS_KEYWORD edge to minted paper")
	}
}

func TestBuilder_AddCrossReference_Skips(t *testing.T) {
	tests := []struct {
		name      string
		vals      map[string]string
		wantField string
	}{
		{
			name:      "unknown relation",
			vals:      map[string]string{"Title": "A Paper", "Relation": "cited_by", "Target": "B"},
			wantField: "relation",
		},
		{
			name:      "missing relation",
			vals:      map[string]string{"Title": "A Paper", "Target": "B"},
			wantField: "relation",
		},
		{
			name:      "empty target",
			vals:      map[string]string{"Title": "A Paper", "Relation": "keyword", "Target": "!!"},
			wantField: "target",
		},
		{
			name:      "empty title",
			vals:      map[string]string{"Relation": "keyword", "Target": "graphs"},
			wantField: "title",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(entity.NewResolver())
			fields := extract(category.CrossReferences, []string{"Title", "Relation", "Target"}, tt.vals)
			err := b.AddCrossReference(fields)
			var ue *entity.UnresolvableEntityError
			if !errors.As(err, &ue) {
				t.Fatalf("AddCrossReference() error = %v, want UnresolvableEntityError", err)
			}
			if ue.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ue.Field, tt.wantField)
			}
			if got := len(b.Ops().Edges()); got != 0 {
				t.Errorf("skipped record emitted %d edges", got)
			}
		})
	}
}
