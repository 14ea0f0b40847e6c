// Package field turns raw export columns into typed, normalized field
// values. It owns the semantic roles columns can play, the
// header-to-role mapping tables, list splitting, and the canonical
// form used for entity identity.
package field

import "fmt"

// Role is the semantic role of one export column. Roles are resolved
// once at the reader boundary so downstream stages never look values
// up by raw column name.
type Role string

const (
	RoleTitle           Role = "title"
	RoleAuthorList      Role = "author_list"
	RoleKeywordList     Role = "keyword_list"
	RoleInstitution     Role = "institution"
	RolePublicationDate Role = "publication_date"
	RoleYear            Role = "year"
	RoleSourceID        Role = "source_id"
	RoleItemType        Role = "item_type"
	RoleVenue           Role = "venue"
	RolePublisher       Role = "publisher"
	RolePlace           Role = "place"
	RoleISSN            Role = "issn"
	RoleDOI             Role = "doi"
	RoleURL             Role = "url"
	RoleAbstract        Role = "abstract"
	RolePages           Role = "pages"
	RoleAttachments     Role = "attachments"
	RoleExtra           Role = "extra"
	RoleRelation        Role = "relation"
	RoleTarget          Role = "target"
)

// roles lists every known role, for ParseRole validation.
var roles = map[Role]bool{
	RoleTitle:           true,
	RoleAuthorList:      true,
	RoleKeywordList:     true,
	RoleInstitution:     true,
	RolePublicationDate: true,
	RoleYear:            true,
	RoleSourceID:        true,
	RoleItemType:        true,
	RoleVenue:           true,
	RolePublisher:       true,
	RolePlace:           true,
	RoleISSN:            true,
	RoleDOI:             true,
	RoleURL:             true,
	RoleAbstract:        true,
	RolePages:           true,
	RoleAttachments:     true,
	RoleExtra:           true,
	RoleRelation:        true,
	RoleTarget:          true,
}

// IsList reports whether the role carries multiple delimited values in
// one cell.
func (r Role) IsList() bool {
	switch r {
	case RoleAuthorList, RoleKeywordList, RoleInstitution:
		return true
	}
	return false
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// ParseRole validates a role name from a mapping override file.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !roles[r] {
		return "", fmt.Errorf("unknown field role %q", s)
	}
	return r, nil
}
