package field

import (
	"fmt"
	"strings"

	"github.com/refgraph/refgraph/internal/category"
)

// Mapping associates normalized column headers with field roles for
// one export category. Keys are lower-cased, space-collapsed header
// names; lookups are therefore case-insensitive.
type Mapping map[string]Role

// defaultMappings carries the recognized header synonyms per category.
// The papers table follows the column set a reference-manager CSV
// export produces, plus the columns the metadata-capture plugin adds.
var defaultMappings = map[category.Category]Mapping{
	category.Papers: {
		"key":               RoleSourceID,
		"item type":         RoleItemType,
		"publication year":  RoleYear,
		"year":              RoleYear,
		"author":            RoleAuthorList,
		"authors":           RoleAuthorList,
		"author(s)":         RoleAuthorList,
		"creator":           RoleAuthorList,
		"creators":          RoleAuthorList,
		"title":             RoleTitle,
		"publication title": RoleVenue,
		"journal":           RoleVenue,
		"venue":             RoleVenue,
		"issn":              RoleISSN,
		"doi":               RoleDOI,
		"url":               RoleURL,
		"abstract note":     RoleAbstract,
		"abstract":          RoleAbstract,
		"date":              RolePublicationDate,
		"pages":             RolePages,
		"publisher":         RolePublisher,
		"place":             RolePlace,
		"manual tags":       RoleKeywordList,
		"automatic tags":    RoleKeywordList,
		"keywords":          RoleKeywordList,
		"tags":              RoleKeywordList,
		"file attachments":  RoleAttachments,
		"extra":             RoleExtra,
		"institution":       RoleInstitution,
		"affiliation":       RoleInstitution,
		"affiliations":      RoleInstitution,
	},
	category.Authors: {
		"name":        RoleAuthorList,
		"author":      RoleAuthorList,
		"authors":     RoleAuthorList,
		"creator":     RoleAuthorList,
		"institution": RoleInstitution,
		"affiliation": RoleInstitution,
	},
	category.Keywords: {
		"name":    RoleKeywordList,
		"keyword": RoleKeywordList,
		"tag":     RoleKeywordList,
		"term":    RoleKeywordList,
	},
	category.CrossReferences: {
		"title":            RoleTitle,
		"paper":            RoleTitle,
		"paper title":      RoleTitle,
		"source":           RoleTitle,
		"publication year": RoleYear,
		"year":             RoleYear,
		"relation":         RoleRelation,
		"relationship":     RoleRelation,
		"type":             RoleRelation,
		"target":           RoleTarget,
		"value":            RoleTarget,
		"entity":           RoleTarget,
	},
}

// DefaultMapping returns a copy of the built-in header mapping for the
// category, so callers can overlay overrides without touching the
// shared table.
func DefaultMapping(cat category.Category) Mapping {
	m := Mapping{}
	for k, v := range defaultMappings[cat] {
		m[k] = v
	}
	return m
}

// headerKey normalizes a column header for lookup.
func headerKey(header string) string {
	return strings.ToLower(CollapseSpace(header))
}

// RoleFor resolves a raw column header to its role.
func (m Mapping) RoleFor(header string) (Role, bool) {
	r, ok := m[headerKey(header)]
	return r, ok
}

// Merge overlays header→role-name overrides onto the mapping and
// returns the result. Unknown role names are rejected.
func (m Mapping) Merge(overrides map[string]string) (Mapping, error) {
	out := Mapping{}
	for k, v := range m {
		out[k] = v
	}
	for header, name := range overrides {
		role, err := ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("mapping for column %q: %w", header, err)
		}
		out[headerKey(header)] = role
	}
	return out, nil
}

// Extract applies the mapping to one row, normalizing every recognized
// column. Columns must be passed in file order so that multi-column
// roles (for example manual plus automatic tags) accumulate their
// atoms deterministically.
func (m Mapping) Extract(columns []string, values map[string]string) Set {
	set := Set{}
	for _, col := range columns {
		role, ok := m.RoleFor(col)
		if !ok {
			continue
		}
		nf := Normalize(role, values[col])
		if len(nf.Values) == 0 {
			continue
		}
		cur := set[role]
		cur.Role = role
		cur.Values = append(cur.Values, nf.Values...)
		set[role] = cur
	}
	return set
}
