package safeq

import (
	"strings"

	"gorm.io/gorm"
)

// GormSink is the direct-bind render target: the compile walk pushes text
// fragments and parameters into it, and Apply binds the accumulated
// condition into a live *gorm.DB statement in one step. Text and parameter
// order come from the same walk as the string renderer, so the two targets
// cannot drift.
type GormSink struct {
	sb     strings.Builder
	params []any
}

func (s *GormSink) EmitText(t string) { s.sb.WriteString(t) }
func (s *GormSink) EmitParam(v any)   { s.params = append(s.params, v) }

// Apply binds the accumulated condition onto the statement. An empty sink
// leaves the statement untouched.
func (s *GormSink) Apply(db *gorm.DB) *gorm.DB {
	if s.sb.Len() == 0 {
		return db
	}
	return db.Where(s.sb.String(), s.params...)
}

// ApplyFilterGroup compiles a filter tree directly into a gorm statement.
// Whitelist misses soft-skip exactly as in string rendering; arity errors
// abort before anything is bound.
func ApplyFilterGroup(db *gorm.DB, g FilterGroup, whitelist *FieldWhitelist) (*gorm.DB, error) {
	sink := &GormSink{}
	if err := NewFilterBuilder(whitelist).CompileInto(g, sink); err != nil {
		return db, err
	}
	return sink.Apply(db), nil
}

// Apply transfers the builder's accumulated state onto a gorm statement:
// every condition, then ordering and pagination. The statement executes the
// same query BuildSelect would render.
func (b *SafeQueryBuilder) Apply(db *gorm.DB) *gorm.DB {
	for _, c := range b.conds {
		db = db.Where(c.text, c.params...)
	}
	if b.orderField != "" {
		db = db.Order(b.orderField + " " + b.orderDir)
	}
	if b.limit >= 0 {
		db = db.Limit(b.limit)
	}
	if b.offset > 0 {
		db = db.Offset(b.offset)
	}
	return db
}
