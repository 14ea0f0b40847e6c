// Package entity resolves normalized atomic values into distinct
// graph entities. A Resolver deduplicates by canonical form for the
// duration of one run; the graph store, not the resolver, is the
// system of record across runs.
package entity

import (
	"fmt"
	"strconv"

	"github.com/refgraph/refgraph/internal/field"
)

// Kind discriminates the entity variants. All variants share the
// identity-key contract; kind-specific attributes travel on the node
// upserts the builder emits, not here.
type Kind string

const (
	KindPaper       Kind = "paper"
	KindAuthor      Kind = "author"
	KindKeyword     Kind = "keyword"
	KindInstitution Kind = "institution"
	KindVenue       Kind = "venue"
	KindPublisher   Kind = "publisher"
	KindSubject     Kind = "subject"
)

// Kinds lists every entity kind.
var Kinds = []Kind{
	KindPaper,
	KindAuthor,
	KindKeyword,
	KindInstitution,
	KindVenue,
	KindPublisher,
	KindSubject,
}

// Label returns the node label this kind carries on the graph store.
func (k Kind) Label() string {
	switch k {
	case KindPaper:
		return "Paper"
	case KindAuthor:
		return "Author"
	case KindKeyword:
		return "Keyword"
	case KindInstitution:
		return "Institution"
	case KindVenue:
		return "Venue"
	case KindPublisher:
		return "Publisher"
	case KindSubject:
		return "Subject"
	}
	return ""
}

// Entity is one resolved graph entity: a stable identity key derived
// from the canonical form, plus the display label in its original
// casing. Entities are minted on first sighting and never mutated.
type Entity struct {
	Kind    Kind
	Key     string
	Display string
}

// UnresolvableEntityError reports a value that cannot identify an
// entity, most often because its canonical form is empty. The record
// carrying it is skipped and reported, never silently dropped.
type UnresolvableEntityError struct {
	Kind   Kind
	Field  string
	Value  string
	Reason string
}

func (e *UnresolvableEntityError) Error() string {
	what := string(e.Kind)
	if what == "" {
		what = e.Field
	}
	if e.Value != "" {
		return fmt.Sprintf("unresolvable %s %q: %s", what, e.Value, e.Reason)
	}
	return fmt.Sprintf("unresolvable %s: %s", what, e.Reason)
}

// Resolver maintains one identity index per kind, scoped to a single
// run. It is constructed explicitly and handed to every stage that
// resolves values; it is never shared across runs.
type Resolver struct {
	index map[Kind]map[string]*Entity
}

// NewResolver returns an empty resolver for one run.
func NewResolver() *Resolver {
	return &Resolver{index: make(map[Kind]map[string]*Entity)}
}

// Resolve returns the entity the atomic value denotes, minting and
// registering it on first sighting. For all values a, b of one kind,
// Resolve(a) and Resolve(b) return the same entity exactly when their
// canonical forms are equal. A value whose canonical form is empty is
// rejected so no blank entity is ever shared across records.
func (r *Resolver) Resolve(kind Kind, value string) (*Entity, error) {
	canon := field.Canonical(value)
	if canon == "" {
		return nil, &UnresolvableEntityError{Kind: kind, Value: value, Reason: "canonical form is empty"}
	}
	return r.resolve(kind, canon, field.CollapseSpace(value)), nil
}

// ResolvePaper resolves a paper by title and publication year. The
// key composites the canonical title with the year so same-titled
// works from different years stay distinct; a missing year (zero)
// falls back to the title alone.
func (r *Resolver) ResolvePaper(title string, year int) (*Entity, error) {
	canon := field.Canonical(title)
	if canon == "" {
		return nil, &UnresolvableEntityError{Kind: KindPaper, Field: "title", Value: title, Reason: "canonical form is empty"}
	}
	key := canon
	if year > 0 {
		key = canon + "|" + strconv.Itoa(year)
	}
	return r.resolve(KindPaper, key, field.CollapseSpace(title)), nil
}

func (r *Resolver) resolve(kind Kind, key, display string) *Entity {
	byKey := r.index[kind]
	if byKey == nil {
		byKey = make(map[string]*Entity)
		r.index[kind] = byKey
	}
	if e, ok := byKey[key]; ok {
		return e
	}
	e := &Entity{Kind: kind, Key: key, Display: display}
	byKey[key] = e
	return e
}

// Count reports how many distinct entities of a kind this run minted.
func (r *Resolver) Count(kind Kind) int {
	return len(r.index[kind])
}
