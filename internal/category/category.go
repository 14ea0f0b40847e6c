// Package category classifies export files into the categories the
// pipeline understands and fixes the order they are processed in.
package category

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Category identifies which kind of export file a record came from.
type Category string

const (
	// Papers rows define paper records together with their inline
	// author, keyword, and affiliation lists.
	Papers Category = "papers"

	// Authors rows pre-register author entities.
	Authors Category = "authors"

	// Keywords rows pre-register keyword entities.
	Keywords Category = "keywords"

	// CrossReferences rows link papers to entities by name.
	CrossReferences Category = "crossrefs"
)

// All lists the known categories in processing order.
var All = []Category{Papers, Authors, Keywords, CrossReferences}

// Order returns the processing rank of the category. Entity-defining
// categories rank before relationship-defining ones so the resolver
// has seen every entity before links are built; the rank is what makes
// a run independent of the order files were named on the command line.
func (c Category) Order() int {
	switch c {
	case Papers:
		return 0
	case Authors:
		return 1
	case Keywords:
		return 2
	case CrossReferences:
		return 3
	}
	return 4
}

// DefinesEntities reports whether rows of this category define
// entities, as opposed to linking entities defined elsewhere.
func (c Category) DefinesEntities() bool {
	return c != CrossReferences
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// Parse maps a user-supplied category name onto a Category.
func Parse(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "papers", "paper":
		return Papers, nil
	case "authors", "author":
		return Authors, nil
	case "keywords", "keyword", "tags":
		return Keywords, nil
	case "crossrefs", "crossref", "crossreferences", "links":
		return CrossReferences, nil
	}
	return "", fmt.Errorf("unknown category %q (want papers, authors, keywords, or crossrefs)", s)
}

// Classify guesses the category of a file from its base name.
// It reports false when the name matches no known pattern.
func Classify(path string) (Category, bool) {
	stem := strings.ToLower(filepath.Base(path))
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	switch {
	case strings.HasPrefix(stem, "paper"):
		return Papers, true
	case strings.HasPrefix(stem, "author"), strings.HasPrefix(stem, "creator"):
		return Authors, true
	case strings.HasPrefix(stem, "keyword"), strings.HasPrefix(stem, "tag"):
		return Keywords, true
	case strings.HasPrefix(stem, "crossref"), strings.HasPrefix(stem, "link"), strings.HasPrefix(stem, "relation"):
		return CrossReferences, true
	}
	return "", false
}
