package safeq

import (
	"strings"

	"gorm.io/gorm"
)

// FtsConfig describes the full-text index of one searchable entity and the
// plain columns to LIKE over when the index does not exist.
type FtsConfig struct {
	IndexTable     string   // FTS virtual table, e.g. "books_fts"
	BaseTable      string   // table the index shadows
	IDField        string   // id column shared by both tables
	FallbackFields []string // columns for the OR-of-LIKE fallback
}

// ftsSpecials are the characters with operator meaning in the FTS query
// language; user input must never reach the MATCH expression carrying them.
const ftsSpecials = `()*":^-+~&|`

// BuildFtsQuery sanitizes a raw search term into a prefix-match expression:
// special characters are stripped, the rest is tokenized, and each token
// gets a `*` suffix. An empty result means no MATCH condition should be
// generated at all.
func BuildFtsQuery(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if strings.ContainsRune(ftsSpecials, r) {
			continue
		}
		b.WriteRune(r)
	}
	tokens := strings.Fields(b.String())
	if len(tokens) == 0 {
		return ""
	}
	for i, t := range tokens {
		tokens[i] = t + "*"
	}
	return strings.Join(tokens, " ")
}

// Available probes the database catalog for the index table. Any error,
// including a missing catalog, reads as unavailable so callers degrade to
// the LIKE fallback instead of failing the request.
func (c FtsConfig) Available(db *gorm.DB) bool {
	if db == nil {
		return false
	}
	var n int64
	err := db.Raw(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		c.IndexTable,
	).Scan(&n).Error
	return err == nil && n > 0
}

// SearchCondition generates the search condition for the given outer alias.
// FTS mode emits a MATCH subquery; the inner id is table-qualified so it
// cannot collide with the outer query's own id column. Fallback mode emits
// an OR-chain of LIKE over the configured fallback fields.
func (c FtsConfig) SearchCondition(alias, term string, useFts bool) (string, []any) {
	if alias == "" {
		alias = c.BaseTable
	}
	if useFts {
		match := BuildFtsQuery(term)
		if match == "" {
			return "", nil
		}
		text := alias + "." + c.IDField +
			" IN (SELECT " + c.IndexTable + "." + c.IDField +
			" FROM " + c.IndexTable +
			" WHERE " + c.IndexTable + " MATCH ?)"
		return text, []any{match}
	}

	term = strings.TrimSpace(term)
	if term == "" || len(c.FallbackFields) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(c.FallbackFields))
	params := make([]any, 0, len(c.FallbackFields))
	for _, f := range c.FallbackFields {
		parts = append(parts, alias+"."+f+" LIKE ?")
		params = append(params, "%"+term+"%")
	}
	if len(parts) == 1 {
		return parts[0], params
	}
	return "(" + strings.Join(parts, " OR ") + ")", params
}

// RelationSearch describes a related child table whose text columns also
// participate in a search, via a correlated EXISTS subquery.
type RelationSearch struct {
	Table      string   // child table name
	Alias      string   // subquery alias, distinct from the outer alias
	ForeignKey string   // child column referencing the parent id
	Fields     []string // child columns to LIKE over
}

// RelationSearchCondition OR-combines the entity's own search condition
// with an EXISTS probe into the related table, so a match in either place
// selects the parent row.
func (c FtsConfig) RelationSearchCondition(alias, term string, rel RelationSearch, useFts bool) (string, []any) {
	if alias == "" {
		alias = c.BaseTable
	}
	base, params := c.SearchCondition(alias, term, useFts)

	term = strings.TrimSpace(term)
	if term == "" || len(rel.Fields) == 0 {
		return base, params
	}
	childParts := make([]string, 0, len(rel.Fields))
	childParams := make([]any, 0, len(rel.Fields))
	for _, f := range rel.Fields {
		childParts = append(childParts, rel.Alias+"."+f+" LIKE ?")
		childParams = append(childParams, "%"+term+"%")
	}
	exists := "EXISTS (SELECT 1 FROM " + rel.Table + " " + rel.Alias +
		" WHERE " + rel.Alias + "." + rel.ForeignKey + " = " + alias + "." + c.IDField +
		" AND (" + strings.Join(childParts, " OR ") + "))"

	if base == "" {
		return exists, childParams
	}
	return "(" + base + " OR " + exists + ")", append(params, childParams...)
}
