package safeq

import (
	"fmt"
	"strings"
)

// ValidIdent reports whether s has the shape of a plain SQL identifier:
// a letter or underscore followed by letters, digits or underscores.
func ValidIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ValidFieldIdent reports whether s is a plain or single-alias-qualified
// identifier (`status` or `b.status`).
func ValidFieldIdent(s string) bool {
	alias, col := splitQualified(s)
	if alias != "" && !ValidIdent(alias) {
		return false
	}
	return ValidIdent(col)
}

// splitQualified splits an alias-qualified field name on its last dot.
// Unqualified names return an empty alias.
func splitQualified(field string) (alias, col string) {
	i := strings.LastIndexByte(field, '.')
	if i < 0 {
		return "", field
	}
	return field[:i], field[i+1:]
}

// validateBase checks a trusted base query's leading table identifier.
// Everything after the first token (alias, joins) is caller territory, but a
// base whose table name is not identifier-shaped is a construction error.
func validateBase(base string) error {
	base = strings.TrimSpace(base)
	if base == "" {
		return fmt.Errorf("safeq: empty base query")
	}
	table := base
	if i := strings.IndexAny(base, " \t\n"); i >= 0 {
		table = base[:i]
	}
	if !ValidIdent(table) {
		return fmt.Errorf("safeq: invalid base table identifier %q", table)
	}
	return nil
}

// EscapeLike backslash-escapes the characters that carry wildcard meaning
// inside a LIKE pattern, so user input matches literally.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// FieldWhitelist is the closed set of column identifiers permitted for one
// table. Entries may be alias-qualified (`b.status`). The set is read-only
// after construction and safe to share across requests.
type FieldWhitelist struct {
	table          string
	allowed        map[string]bool
	exactQualified bool
}

// NewFieldWhitelist builds a whitelist for table from the given field names.
// Fields that are not identifier-shaped are dropped rather than admitted.
func NewFieldWhitelist(table string, fields ...string) *FieldWhitelist {
	w := &FieldWhitelist{table: table, allowed: make(map[string]bool, len(fields))}
	for _, f := range fields {
		if ValidFieldIdent(f) {
			w.allowed[f] = true
		}
	}
	return w
}

// ExactQualified returns a copy that only matches fields exactly as listed,
// for queries joining several tables with same-named columns under
// different aliases.
func (w *FieldWhitelist) ExactQualified() *FieldWhitelist {
	cp := &FieldWhitelist{table: w.table, allowed: w.allowed, exactQualified: true}
	return cp
}

// Table returns the table the whitelist was built for.
func (w *FieldWhitelist) Table() string { return w.table }

// IsAllowed reports whether field is permitted. The full qualified name is
// tried first, then the last dot-separated segment, so an unqualified name
// is accepted whenever its qualified form would be and vice versa.
func (w *FieldWhitelist) IsAllowed(field string) bool {
	if w == nil {
		return true
	}
	if !ValidFieldIdent(field) {
		return false
	}
	if w.allowed[field] {
		return true
	}
	if w.exactQualified {
		return false
	}
	_, col := splitQualified(field)
	if w.allowed[col] {
		return true
	}
	// an unqualified request may refer to a listed qualified entry
	if col == field {
		for entry := range w.allowed {
			if _, c := splitQualified(entry); c == field {
				return true
			}
		}
	}
	return false
}
