package safeq

import (
	"strconv"
	"strings"
)

// comparisonOps is the closed set of operator symbols AddComparison may
// embed as literal SQL text.
var comparisonOps = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true, "<>": true,
}

type condition struct {
	text   string
	params []any
}

// SafeQueryBuilder accumulates whitelist-checked conditions, ordering and
// pagination, then renders SELECT or COUNT statements over the same state.
// Builders are single-use: created, populated and rendered within one
// request, never shared.
type SafeQueryBuilder struct {
	base       string
	whitelist  *FieldWhitelist
	naming     NamingStrategy
	conds      []condition
	orderField string
	orderDir   string
	limit      int
	offset     int
}

// NewSafeQueryBuilder builds a query builder over a trusted base query
// (a table name, optionally with alias and joins). A base whose leading
// table identifier is malformed is a hard construction error.
func NewSafeQueryBuilder(base string, whitelist *FieldWhitelist) (*SafeQueryBuilder, error) {
	if err := validateBase(base); err != nil {
		return nil, err
	}
	return &SafeQueryBuilder{
		base:      strings.TrimSpace(base),
		whitelist: whitelist,
		naming:    NAMING_STRATEGY_NO_CHANGE,
		limit:     -1,
		offset:    0,
	}, nil
}

// SetNamingStrategy normalizes incoming field names before whitelist
// checks and emission.
func (b *SafeQueryBuilder) SetNamingStrategy(s NamingStrategy) *SafeQueryBuilder {
	b.naming = s
	return b
}

// allowed normalizes the field and checks it against the whitelist.
// Rejected fields make every Add helper a silent no-op: an omitted
// condition only ever widens results.
func (b *SafeQueryBuilder) allowed(field string) (string, bool) {
	field = normalizeFieldName(b.naming, field)
	if b.whitelist == nil {
		return field, ValidFieldIdent(field)
	}
	return field, b.whitelist.IsAllowed(field)
}

func (b *SafeQueryBuilder) add(text string, params ...any) {
	b.conds = append(b.conds, condition{text: text, params: params})
}

// AddExactMatch adds `field = ?`.
func (b *SafeQueryBuilder) AddExactMatch(field string, value any) *SafeQueryBuilder {
	if f, ok := b.allowed(field); ok {
		b.add(f+" = ?", value)
	}
	return b
}

// AddLike adds `field LIKE ?` with the substring wildcard-escaped and
// wrapped in `%`.
func (b *SafeQueryBuilder) AddLike(field, substr string) *SafeQueryBuilder {
	if f, ok := b.allowed(field); ok {
		b.add(f+" LIKE ?", "%"+EscapeLike(substr)+"%")
	}
	return b
}

// AddStartsWith adds `field LIKE ?` matching an escaped prefix.
func (b *SafeQueryBuilder) AddStartsWith(field, prefix string) *SafeQueryBuilder {
	if f, ok := b.allowed(field); ok {
		b.add(f+" LIKE ?", EscapeLike(prefix)+"%")
	}
	return b
}

// AddEndsWith adds `field LIKE ?` matching an escaped suffix.
func (b *SafeQueryBuilder) AddEndsWith(field, suffix string) *SafeQueryBuilder {
	if f, ok := b.allowed(field); ok {
		b.add(f+" LIKE ?", "%"+EscapeLike(suffix))
	}
	return b
}

// AddComparison adds `field OP ?`. The operator symbol is checked against
// a fixed closed set before it is embedded as literal text; anything else
// is dropped together with the condition.
func (b *SafeQueryBuilder) AddComparison(field, op string, value any) *SafeQueryBuilder {
	if !comparisonOps[op] {
		return b
	}
	if f, ok := b.allowed(field); ok {
		b.add(f+" "+op+" ?", value)
	}
	return b
}

// AddIsNull adds `field IS NULL`.
func (b *SafeQueryBuilder) AddIsNull(field string) *SafeQueryBuilder {
	if f, ok := b.allowed(field); ok {
		b.add(f + " IS NULL")
	}
	return b
}

// AddIsNotNull adds `field IS NOT NULL`.
func (b *SafeQueryBuilder) AddIsNotNull(field string) *SafeQueryBuilder {
	if f, ok := b.allowed(field); ok {
		b.add(f + " IS NOT NULL")
	}
	return b
}

// AddInClause adds `field IN (?,...)`. An empty value list short-circuits
// to `1=0` with zero parameters.
func (b *SafeQueryBuilder) AddInClause(field string, values []any) *SafeQueryBuilder {
	f, ok := b.allowed(field)
	if !ok {
		return b
	}
	if len(values) == 0 {
		b.add("1=0")
		return b
	}
	b.add(f+" IN ("+placeholders(len(values))+")", values...)
	return b
}

// AddNotInClause adds `field NOT IN (?,...)`. An empty value list
// short-circuits to `1=1` with zero parameters.
func (b *SafeQueryBuilder) AddNotInClause(field string, values []any) *SafeQueryBuilder {
	f, ok := b.allowed(field)
	if !ok {
		return b
	}
	if len(values) == 0 {
		b.add("1=1")
		return b
	}
	b.add(f+" NOT IN ("+placeholders(len(values))+")", values...)
	return b
}

// AddBetween adds `field BETWEEN ? AND ?`.
func (b *SafeQueryBuilder) AddBetween(field string, lo, hi any) *SafeQueryBuilder {
	if f, ok := b.allowed(field); ok {
		b.add(f+" BETWEEN ? AND ?", lo, hi)
	}
	return b
}

// AddRawCondition appends condition text verbatim, bypassing the whitelist
// entirely. Callers must never pass user input as text; values still belong
// in params.
func (b *SafeQueryBuilder) AddRawCondition(text string, params ...any) *SafeQueryBuilder {
	if strings.TrimSpace(text) != "" {
		b.add(text, params...)
	}
	return b
}

// ApplyFilterGroup compiles a filter tree with the builder's whitelist and
// appends the result as one condition. Arity violations anywhere in the
// tree are aggregated and returned before anything is appended.
func (b *SafeQueryBuilder) ApplyFilterGroup(g FilterGroup) error {
	fb := NewFilterBuilder(b.whitelist).SetNamingStrategy(b.naming)
	text, params, err := fb.Compile(g)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if g.Logic == LogicOr {
		n := 0
		for _, it := range g.Items {
			if fb.renderable(it) {
				n++
			}
		}
		if n > 1 {
			text = "(" + text + ")"
		}
	}
	b.add(text, params...)
	return nil
}

// AddSearch appends a full-text or LIKE-fallback search condition for the
// given alias. An empty or fully-sanitized-away term adds nothing.
func (b *SafeQueryBuilder) AddSearch(cfg FtsConfig, alias, term string, useFts bool) *SafeQueryBuilder {
	text, params := cfg.SearchCondition(alias, term, useFts)
	if text != "" {
		b.add(text, params...)
	}
	return b
}

// OrderBy sets the ORDER BY field and direction. The field is
// whitelist-checked; the direction is normalized to exactly ASC or DESC,
// defaulting to DESC.
func (b *SafeQueryBuilder) OrderBy(field, dir string) *SafeQueryBuilder {
	f, ok := b.allowed(field)
	if !ok {
		return b
	}
	b.orderField = f
	if strings.EqualFold(strings.TrimSpace(dir), "ASC") {
		b.orderDir = "ASC"
	} else {
		b.orderDir = "DESC"
	}
	return b
}

// Paginate converts 1-based page/perPage input into LIMIT/OFFSET. perPage
// is clamped to [1,100] so a single request can never demand an unbounded
// result set.
func (b *SafeQueryBuilder) Paginate(page, perPage int) *SafeQueryBuilder {
	if perPage < 1 {
		perPage = 1
	} else if perPage > 100 {
		perPage = 100
	}
	if page < 1 {
		page = 1
	}
	b.limit = perPage
	b.offset = (page - 1) * perPage
	return b
}

func (b *SafeQueryBuilder) whereClause() (string, []any) {
	if len(b.conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(b.conds))
	params := make([]any, 0)
	for _, c := range b.conds {
		parts = append(parts, c.text)
		params = append(params, c.params...)
	}
	return strings.Join(parts, " AND "), params
}

// BuildSelect renders the SELECT statement from the accumulated state.
// Passing no fields selects `*`.
func (b *SafeQueryBuilder) BuildSelect(fields ...string) (string, []any) {
	cols := "*"
	if len(fields) > 0 {
		cols = strings.Join(fields, ", ")
	}
	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM " + b.base)
	where, params := b.whereClause()
	if where != "" {
		sb.WriteString(" WHERE " + where)
	}
	if b.orderField != "" {
		sb.WriteString(" ORDER BY " + b.orderField + " " + b.orderDir)
	}
	if b.limit >= 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(b.limit))
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(b.offset))
	}
	return sb.String(), params
}

// BuildCount renders `SELECT COUNT(*)` over the same WHERE clause,
// deliberately ignoring any configured order, limit and offset so the
// count matches the full filtered set.
func (b *SafeQueryBuilder) BuildCount() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM " + b.base)
	where, params := b.whereClause()
	if where != "" {
		sb.WriteString(" WHERE " + where)
	}
	return sb.String(), params
}

// CountQueryBuilder is a type-restricted view over SafeQueryBuilder that
// only exposes condition accumulation: callers cannot configure ordering
// or pagination that counting would silently ignore.
type CountQueryBuilder struct {
	qb *SafeQueryBuilder
}

// NewCountQueryBuilder builds a counting builder for the given table.
func NewCountQueryBuilder(table string, whitelist *FieldWhitelist) (*CountQueryBuilder, error) {
	qb, err := NewSafeQueryBuilder(table, whitelist)
	if err != nil {
		return nil, err
	}
	return &CountQueryBuilder{qb: qb}, nil
}

func (c *CountQueryBuilder) SetNamingStrategy(s NamingStrategy) *CountQueryBuilder {
	c.qb.SetNamingStrategy(s)
	return c
}

func (c *CountQueryBuilder) AddExactMatch(field string, value any) *CountQueryBuilder {
	c.qb.AddExactMatch(field, value)
	return c
}

func (c *CountQueryBuilder) AddLike(field, substr string) *CountQueryBuilder {
	c.qb.AddLike(field, substr)
	return c
}

func (c *CountQueryBuilder) AddComparison(field, op string, value any) *CountQueryBuilder {
	c.qb.AddComparison(field, op, value)
	return c
}

func (c *CountQueryBuilder) AddIsNull(field string) *CountQueryBuilder {
	c.qb.AddIsNull(field)
	return c
}

func (c *CountQueryBuilder) AddIsNotNull(field string) *CountQueryBuilder {
	c.qb.AddIsNotNull(field)
	return c
}

func (c *CountQueryBuilder) AddInClause(field string, values []any) *CountQueryBuilder {
	c.qb.AddInClause(field, values)
	return c
}

func (c *CountQueryBuilder) AddNotInClause(field string, values []any) *CountQueryBuilder {
	c.qb.AddNotInClause(field, values)
	return c
}

func (c *CountQueryBuilder) AddBetween(field string, lo, hi any) *CountQueryBuilder {
	c.qb.AddBetween(field, lo, hi)
	return c
}

func (c *CountQueryBuilder) AddRawCondition(text string, params ...any) *CountQueryBuilder {
	c.qb.AddRawCondition(text, params...)
	return c
}

func (c *CountQueryBuilder) ApplyFilterGroup(g FilterGroup) error {
	return c.qb.ApplyFilterGroup(g)
}

func (c *CountQueryBuilder) AddSearch(cfg FtsConfig, alias, term string, useFts bool) *CountQueryBuilder {
	c.qb.AddSearch(cfg, alias, term, useFts)
	return c
}

// BuildCount renders the COUNT statement.
func (c *CountQueryBuilder) BuildCount() (string, []any) {
	return c.qb.BuildCount()
}
