package graph

import (
	"errors"
	"strings"

	"github.com/refgraph/refgraph/internal/entity"
	"github.com/refgraph/refgraph/internal/field"
)

// abstractLimit caps the abstract property at 500 runes.
const abstractLimit = 500

// Builder turns normalized records into graph upsert operations. One
// builder serves one run; it shares the run's resolver so that every
// record referring to the same real-world entity lands on the same
// node key.
type Builder struct {
	resolver *entity.Resolver
	ops      *OpSet
}

// NewBuilder returns a builder writing into a fresh operation set.
func NewBuilder(r *entity.Resolver) *Builder {
	return &Builder{resolver: r, ops: NewOpSet()}
}

// Ops returns the accumulated operation set.
func (b *Builder) Ops() *OpSet {
	return b.ops
}

// AddPaper consumes one papers-category record: the paper node with
// its properties, one node and AUTHORED_BY edge per author atom, one
// node and HAS_KEYWORD edge per keyword atom, one node and
// AFFILIATED_WITH edge per institution atom, plus venue, publisher
// and subject links when the record carries them. Atoms whose
// canonical form is empty are dropped; a paper whose own identity
// cannot be resolved fails the whole record.
func (b *Builder) AddPaper(fields field.Set) error {
	title := fields.First(field.RoleTitle)
	year, _ := field.ParseYear(fields.First(field.RoleYear))
	paper, err := b.resolver.ResolvePaper(title, year)
	if err != nil {
		return err
	}

	ex := field.ParseExtra(fields.First(field.RoleExtra))
	b.ops.AddNode(Node{
		Label:   paper.Kind.Label(),
		Key:     paper.Key,
		Display: paper.Display,
		Props:   paperProps(fields, year, ex),
	})

	b.linkAtoms(paper, fields, field.RoleAuthorList, AuthoredBy)
	b.linkAtoms(paper, fields, field.RoleKeywordList, HasKeyword)
	b.linkAtoms(paper, fields, field.RoleInstitution, AffiliatedWith)
	b.linkVenue(paper, fields)
	b.linkPublisher(paper, fields)
	b.linkSubject(paper, ex)
	return nil
}

// paperProps collects the scalar properties of a paper record. Absent
// fields stay absent rather than writing empty strings; has_pdf is
// always set so the flag is queryable on every paper.
func paperProps(fields field.Set, year int, ex field.Extra) map[string]any {
	props := map[string]any{}
	if year > 0 {
		props["year"] = year
	}
	if date, ok := field.ParseDate(fields.First(field.RolePublicationDate)); ok {
		props["date"] = date
	}
	for _, sc := range []struct {
		role field.Role
		key  string
	}{
		{field.RoleVenue, "venue"},
		{field.RoleDOI, "doi"},
		{field.RoleURL, "url"},
		{field.RolePages, "pages"},
		{field.RoleItemType, "item_type"},
		{field.RoleSourceID, "source_key"},
	} {
		if v := fields.First(sc.role); v != "" {
			props[sc.key] = v
		}
	}
	if abs := fields.First(field.RoleAbstract); abs != "" {
		props["abstract"] = field.Truncate(abs, abstractLimit)
	}
	if ex.DownloadCount > 0 {
		props["download_count"] = ex.DownloadCount
	}
	if ex.CiteCount > 0 {
		props["cite_count"] = ex.CiteCount
	}
	props["has_pdf"] = fields.First(field.RoleAttachments) != ""
	return props
}

// linkAtoms resolves every atom of a list-valued role and emits its
// node plus an edge from the paper. Unresolvable atoms are dropped,
// not errors: an empty entry in a list does not invalidate the record.
func (b *Builder) linkAtoms(paper *entity.Entity, fields field.Set, role field.Role, kind EdgeKind) {
	for _, v := range fields.Values(role) {
		e, err := b.resolver.Resolve(kind.TargetKind(), v)
		if err != nil {
			continue
		}
		b.link(paper, kind, e, nil)
	}
}

// linkVenue emits the venue node and PUBLISHED_IN edge. Venues are
// modeled for journal articles only; other item types keep the venue
// string as a plain paper property.
func (b *Builder) linkVenue(paper *entity.Entity, fields field.Set) {
	if !strings.EqualFold(fields.First(field.RoleItemType), "journalArticle") {
		return
	}
	v, err := b.resolver.Resolve(entity.KindVenue, fields.First(field.RoleVenue))
	if err != nil {
		return
	}
	var props map[string]any
	if issn := fields.First(field.RoleISSN); issn != "" {
		props = map[string]any{"issn": issn}
	}
	b.link(paper, PublishedIn, v, props)
}

// linkPublisher emits the publisher node and PUBLISHED_BY edge,
// falling back to the place of publication when no publisher is named.
func (b *Builder) linkPublisher(paper *entity.Entity, fields field.Set) {
	name := fields.First(field.RolePublisher)
	if name == "" {
		name = fields.First(field.RolePlace)
	}
	p, err := b.resolver.Resolve(entity.KindPublisher, name)
	if err != nil {
		return
	}
	b.link(paper, PublishedBy, p, nil)
}

// linkSubject emits the subject node and BELONGS_TO_SUBJECT edge from
// the major field parsed out of the extra column.
func (b *Builder) linkSubject(paper *entity.Entity, ex field.Extra) {
	s, err := b.resolver.Resolve(entity.KindSubject, ex.Subject)
	if err != nil {
		return
	}
	b.link(paper, BelongsToSubject, s, nil)
}

func (b *Builder) link(paper *entity.Entity, kind EdgeKind, target *entity.Entity, props map[string]any) {
	b.ops.AddNode(Node{
		Label:   target.Kind.Label(),
		Key:     target.Key,
		Display: target.Display,
		Props:   props,
	})
	b.ops.AddEdge(Edge{
		SourceLabel: paper.Kind.Label(),
		SourceKey:   paper.Key,
		Kind:        kind,
		TargetLabel: target.Kind.Label(),
		TargetKey:   target.Key,
	})
}

// AddAuthorRow consumes one authors-category record, registering each
// named author with an affiliation property when the record carries
// one. A record naming no resolvable author is unresolvable.
func (b *Builder) AddAuthorRow(fields field.Set) error {
	aff := fields.First(field.RoleInstitution)
	return b.addNamedRow(fields.Values(field.RoleAuthorList), entity.KindAuthor, func() map[string]any {
		if aff == "" {
			return nil
		}
		return map[string]any{"affiliation": aff}
	})
}

// AddKeywordRow consumes one keywords-category record, registering
// each named keyword.
func (b *Builder) AddKeywordRow(fields field.Set) error {
	return b.addNamedRow(fields.Values(field.RoleKeywordList), entity.KindKeyword, nil)
}

// addNamedRow registers one node per resolvable name. The props
// constructor runs per node so upserts never share a property map.
func (b *Builder) addNamedRow(names []string, kind entity.Kind, props func() map[string]any) error {
	if len(names) == 0 {
		return &entity.UnresolvableEntityError{Kind: kind, Field: "name", Reason: "record names no " + string(kind)}
	}
	resolved := false
	for _, name := range names {
		e, err := b.resolver.Resolve(kind, name)
		if err != nil {
			continue
		}
		resolved = true
		var p map[string]any
		if props != nil {
			p = props()
		}
		b.ops.AddNode(Node{Label: e.Kind.Label(), Key: e.Key, Display: e.Display, Props: p})
	}
	if !resolved {
		return &entity.UnresolvableEntityError{
			Kind:   kind,
			Field:  "name",
			Value:  strings.Join(names, "; "),
			Reason: "canonical form is empty",
		}
	}
	return nil
}

// AddCrossReference consumes one cross-reference record: a relation
// kind, the source paper (minted from title plus year when the papers
// file never mentioned it), and the target entity of the relation's
// kind. Unknown relation kinds and unresolvable endpoints skip the
// record.
func (b *Builder) AddCrossReference(fields field.Set) error {
	relRaw := fields.First(field.RoleRelation)
	kind, ok := ParseRelation(relRaw)
	if !ok {
		reason := "unknown relation kind"
		if relRaw == "" {
			reason = "record carries no relation"
		}
		return &entity.UnresolvableEntityError{Field: "relation", Value: relRaw, Reason: reason}
	}

	title := fields.First(field.RoleTitle)
	year, _ := field.ParseYear(fields.First(field.RoleYear))
	paper, err := b.resolver.ResolvePaper(title, year)
	if err != nil {
		return err
	}

	target, err := b.resolver.Resolve(kind.TargetKind(), fields.First(field.RoleTarget))
	if err != nil {
		var ue *entity.UnresolvableEntityError
		if errors.As(err, &ue) {
			ue.Field = "target"
		}
		return err
	}

	b.ops.AddNode(Node{Label: paper.Kind.Label(), Key: paper.Key, Display: paper.Display})
	b.link(paper, kind, target, nil)
	return nil
}
