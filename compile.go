package safeq

import "strings"

// Sink receives the output of a filter-tree compile. Implementations either
// collect text and parameters into a (sql, params) pair or push them into a
// live statement builder. Every leaf emits its placeholder text and binds
// its parameters in the same step, so the Nth `?` always pairs with the Nth
// emitted value.
type Sink interface {
	EmitText(s string)
	EmitParam(v any)
}

// stringSink renders the tree into condition text plus an ordered
// parameter list.
type stringSink struct {
	sb     strings.Builder
	params []any
}

func (s *stringSink) EmitText(t string) { s.sb.WriteString(t) }
func (s *stringSink) EmitParam(v any)   { s.params = append(s.params, v) }

func (s *stringSink) result() (string, []any) {
	return s.sb.String(), s.params
}

// FilterBuilder compiles FilterGroup trees into SQL condition text. Fields
// failing the whitelist are silently omitted; the surrounding group shrinks
// without leaving dangling logic keywords or empty parentheses.
type FilterBuilder struct {
	whitelist *FieldWhitelist
	naming    NamingStrategy
}

// NewFilterBuilder builds a compiler bound to the given whitelist. A nil
// whitelist admits every identifier-shaped field.
func NewFilterBuilder(whitelist *FieldWhitelist) *FilterBuilder {
	return &FilterBuilder{whitelist: whitelist, naming: NAMING_STRATEGY_NO_CHANGE}
}

// SetNamingStrategy normalizes incoming field names (e.g. camelCase request
// fields to snake_case columns) before whitelist checks and emission.
func (b *FilterBuilder) SetNamingStrategy(s NamingStrategy) *FilterBuilder {
	b.naming = s
	return b
}

// Compile validates the whole tree, then renders it to condition text and
// an ordered parameter list. An empty result means nothing survived the
// whitelist (or the group was empty) and no WHERE clause should be added.
func (b *FilterBuilder) Compile(g FilterGroup) (string, []any, error) {
	sink := &stringSink{}
	if err := b.CompileInto(g, sink); err != nil {
		return "", nil, err
	}
	text, params := sink.result()
	return text, params, nil
}

// CompileInto runs the same walk against a caller-supplied sink, e.g. a
// live gorm statement. Validation errors are aggregated and returned before
// anything is emitted.
func (b *FilterBuilder) CompileInto(g FilterGroup, sink Sink) error {
	if err := g.Validate(); err != nil {
		return err
	}
	b.compileGroup(g, sink)
	return nil
}

func (b *FilterBuilder) fieldAllowed(field string) bool {
	field = normalizeFieldName(b.naming, field)
	if b.whitelist == nil {
		return ValidFieldIdent(field)
	}
	return b.whitelist.IsAllowed(field)
}

// renderable reports whether an item would emit anything, so separators and
// parentheses are only written for items that actually render.
func (b *FilterBuilder) renderable(it FilterItem) bool {
	if it.Cond != nil {
		return b.fieldAllowed(it.Cond.Field)
	}
	if it.Group != nil {
		for _, sub := range it.Group.Items {
			if b.renderable(sub) {
				return true
			}
		}
	}
	return false
}

func (b *FilterBuilder) compileGroup(g FilterGroup, sink Sink) {
	kw := " AND "
	if g.Logic == LogicOr {
		kw = " OR "
	}
	first := true
	for _, it := range g.Items {
		if !b.renderable(it) {
			continue
		}
		if !first {
			sink.EmitText(kw)
		}
		first = false
		if it.Cond != nil {
			b.compileLeaf(*it.Cond, sink)
		} else {
			sink.EmitText("(")
			b.compileGroup(*it.Group, sink)
			sink.EmitText(")")
		}
	}
}

// compileLeaf is the single operator dispatch point: adding an operator
// touches this switch and Filter.validate only.
func (b *FilterBuilder) compileLeaf(f Filter, sink Sink) {
	field := normalizeFieldName(b.naming, f.Field)
	switch f.Op {
	case OperatorEq:
		sink.EmitText(field + " = ?")
		sink.EmitParam(f.Value.scalar())
	case OperatorNeq:
		sink.EmitText(field + " != ?")
		sink.EmitParam(f.Value.scalar())
	case OperatorLt:
		sink.EmitText(field + " < ?")
		sink.EmitParam(f.Value.scalar())
	case OperatorLte:
		sink.EmitText(field + " <= ?")
		sink.EmitParam(f.Value.scalar())
	case OperatorGt:
		sink.EmitText(field + " > ?")
		sink.EmitParam(f.Value.scalar())
	case OperatorGte:
		sink.EmitText(field + " >= ?")
		sink.EmitParam(f.Value.scalar())
	case OperatorLike:
		sink.EmitText(field + " LIKE ?")
		sink.EmitParam("%" + EscapeLike(f.Value.stringVal()) + "%")
	case OperatorStartsWith:
		sink.EmitText(field + " LIKE ?")
		sink.EmitParam(EscapeLike(f.Value.stringVal()) + "%")
	case OperatorEndsWith:
		sink.EmitText(field + " LIKE ?")
		sink.EmitParam("%" + EscapeLike(f.Value.stringVal()))
	case OperatorIn:
		if len(f.Value.arr) == 0 {
			// an empty IN list can never match
			sink.EmitText("1=0")
			return
		}
		sink.EmitText(field + " IN (" + placeholders(len(f.Value.arr)) + ")")
		for _, v := range f.Value.arr {
			sink.EmitParam(v)
		}
	case OperatorNotIn:
		if len(f.Value.arr) == 0 {
			sink.EmitText("1=1")
			return
		}
		sink.EmitText(field + " NOT IN (" + placeholders(len(f.Value.arr)) + ")")
		for _, v := range f.Value.arr {
			sink.EmitParam(v)
		}
	case OperatorBetween:
		sink.EmitText(field + " BETWEEN ? AND ?")
		sink.EmitParam(f.Value.lo)
		sink.EmitParam(f.Value.hi)
	case OperatorNotBetween:
		sink.EmitText(field + " NOT BETWEEN ? AND ?")
		sink.EmitParam(f.Value.lo)
		sink.EmitParam(f.Value.hi)
	case OperatorIsNull:
		sink.EmitText(field + " IS NULL")
	case OperatorIsNotNull:
		sink.EmitText(field + " IS NOT NULL")
	}
}

func placeholders(n int) string {
	s := strings.Repeat("?,", n)
	return s[:len(s)-1]
}
