package field

import "strings"

// Normalized is one field after normalization: a role plus the ordered
// atomic values that survived splitting and trimming. Zero values
// means the field is absent; callers must treat that as "no data",
// never as an error.
type Normalized struct {
	Role   Role
	Values []string
}

// First returns the first atomic value, or "" when the field is absent.
func (n Normalized) First() string {
	if len(n.Values) == 0 {
		return ""
	}
	return n.Values[0]
}

// Set holds the normalized fields of one record, keyed by role.
// Multiple columns mapping to the same role contribute atoms in column
// order.
type Set map[Role]Normalized

// First returns the first atom for the role, or "".
func (s Set) First(role Role) string {
	return s[role].First()
}

// Values returns all atoms for the role; nil when absent.
func (s Set) Values(role Role) []string {
	return s[role].Values
}

// Delimiter identifies one recognized list-delimiter class.
type Delimiter int

const (
	// Semicolon splits on ';' (and its full-width form).
	Semicolon Delimiter = iota
	// Pipe splits on '|'.
	Pipe
	// CommaOutsideParens splits on ',' (and its full-width form) when
	// not nested inside parentheses, so "Alpha (a, b), Beta" yields
	// two atoms.
	CommaOutsideParens
)

// DefaultDelimiters returns the delimiter set for a list role, in
// precedence order. Author and institution values carry in-value
// commas ("Zhang, San"; "Dept. of CS, Some University"), so the comma
// class applies only to keyword-style lists by default.
func DefaultDelimiters(role Role) []Delimiter {
	switch role {
	case RoleKeywordList:
		return []Delimiter{Semicolon, Pipe, CommaOutsideParens}
	case RoleAuthorList, RoleInstitution:
		return []Delimiter{Semicolon, Pipe}
	}
	return nil
}

// Normalize cleans one raw cell for its role. List roles are split
// into atoms with the role's default delimiters; scalar roles are
// trimmed with internal whitespace collapsed. The extra column keeps
// its newlines because its entries are line-structured. Empty input
// yields a Normalized with zero values.
func Normalize(role Role, raw string) Normalized {
	if role.IsList() {
		return Normalized{Role: role, Values: SplitList(raw, DefaultDelimiters(role)...)}
	}
	var v string
	if role == RoleExtra {
		v = strings.TrimSpace(raw)
	} else {
		v = CollapseSpace(raw)
	}
	if v == "" {
		return Normalized{Role: role}
	}
	return Normalized{Role: role, Values: []string{v}}
}

// SplitList splits a raw list value on exactly one delimiter class,
// the first in delims (precedence order) that actually divides the
// value. Atoms are trimmed and empties dropped, so ragged input like
// "a;; b ;" still yields clean atoms. A value no delimiter divides is
// returned whole as a single atom.
func SplitList(raw string, delims ...Delimiter) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, d := range delims {
		var parts []string
		switch d {
		case Semicolon:
			parts = splitOutsideParens(s, ';', '；')
		case Pipe:
			parts = splitOutsideParens(s, '|')
		case CommaOutsideParens:
			parts = splitOutsideParens(s, ',', '，')
		}
		if len(parts) > 1 {
			return cleanAtoms(parts)
		}
	}
	return cleanAtoms([]string{s})
}

// splitOutsideParens splits s on any of the separator runes, ignoring
// separators nested inside round parentheses (ASCII or full-width).
func splitOutsideParens(s string, seps ...rune) []string {
	var parts []string
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '（':
			depth++
		case ')', '）':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && isSep(r, seps) {
			parts = append(parts, b.String())
			b.Reset()
			continue
		}
		b.WriteRune(r)
	}
	parts = append(parts, b.String())
	return parts
}

func isSep(r rune, seps []rune) bool {
	for _, s := range seps {
		if r == s {
			return true
		}
	}
	return false
}

// cleanAtoms trims each part and drops the empties.
func cleanAtoms(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CollapseSpace trims s and collapses every internal whitespace run to
// a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at max runes. Truncation counts runes, not bytes, so
// multi-byte scripts are never cut mid-character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
