// Package safeq builds SQL text and parameter lists from untrusted,
// user-influenced filtering, searching, sorting and pagination input.
// Untrusted input never reaches a raw SQL-text position: field names are
// checked against a whitelist, values are always bound as parameters.
package safeq

import (
	"errors"
	"fmt"

	"github.com/gobeam/stringy"
)

type NamingStrategy string

const NAMING_STRATEGY_NO_CHANGE NamingStrategy = "no_change"
const NAMING_STRATEGY_SNAKE_CASE NamingStrategy = "snake_case"

// Operator is the closed set of comparison operators a Filter may use.
type Operator string

const (
	OperatorEq         Operator = "eq"
	OperatorNeq        Operator = "neq"
	OperatorLt         Operator = "lt"
	OperatorLte        Operator = "lte"
	OperatorGt         Operator = "gt"
	OperatorGte        Operator = "gte"
	OperatorLike       Operator = "like"
	OperatorStartsWith Operator = "startsWith"
	OperatorEndsWith   Operator = "endsWith"
	OperatorIn         Operator = "in"
	OperatorNotIn      Operator = "notIn"
	OperatorBetween    Operator = "between"
	OperatorNotBetween Operator = "notBetween"
	OperatorIsNull     Operator = "isNull"
	OperatorIsNotNull  Operator = "isNotNull"
)

// Logic joins the items of a FilterGroup.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// ValueKind discriminates the shapes a FilterValue can hold.
type ValueKind int

const (
	ValueNone ValueKind = iota // no value supplied
	ValueString
	ValueInt
	ValueFloat
	ValueBool
	ValueArray
	ValueRange
	ValueNull
	valueInvalid
)

// FilterValue is a discriminated union over the value shapes an operator
// can consume: scalar, array, two-element range, null, or nothing. Scalars
// keep their original Go type so they bind unchanged as parameters.
type FilterValue struct {
	kind ValueKind
	val  any
	arr  []any
	lo   any
	hi   any
}

func StringValue(s string) FilterValue { return FilterValue{kind: ValueString, val: s} }
func IntValue(n int64) FilterValue     { return FilterValue{kind: ValueInt, val: n} }
func FloatValue(f float64) FilterValue { return FilterValue{kind: ValueFloat, val: f} }
func BoolValue(b bool) FilterValue     { return FilterValue{kind: ValueBool, val: b} }
func NullValue() FilterValue           { return FilterValue{kind: ValueNull} }

// ArrayValue builds an array value for In/NotIn operators.
func ArrayValue(vals ...any) FilterValue {
	return FilterValue{kind: ValueArray, arr: vals}
}

// RangeValue builds a two-element range for Between/NotBetween operators.
func RangeValue(lo, hi any) FilterValue {
	return FilterValue{kind: ValueRange, lo: lo, hi: hi}
}

// valueOf coerces an arbitrary Go scalar into a FilterValue, keeping the
// original value for binding. Unsupported types yield an invalid value that
// surfaces as a construction error.
func valueOf(v any) FilterValue {
	switch v.(type) {
	case nil:
		return NullValue()
	case string:
		return FilterValue{kind: ValueString, val: v}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return FilterValue{kind: ValueInt, val: v}
	case float32, float64:
		return FilterValue{kind: ValueFloat, val: v}
	case bool:
		return FilterValue{kind: ValueBool, val: v}
	case FilterValue:
		return v.(FilterValue)
	default:
		return FilterValue{kind: valueInvalid, val: fmt.Sprintf("%T", v)}
	}
}

// Kind reports the shape held by the value.
func (v FilterValue) Kind() ValueKind { return v.kind }

// scalar returns the underlying scalar for parameter binding.
func (v FilterValue) scalar() any { return v.val }

// stringVal returns the scalar as a string for the substring operators.
func (v FilterValue) stringVal() string {
	s, _ := v.val.(string)
	return s
}

func (v FilterValue) isScalar() bool {
	switch v.kind {
	case ValueString, ValueInt, ValueFloat, ValueBool:
		return true
	}
	return false
}

// Filter is a single leaf comparison condition.
type Filter struct {
	Field string
	Op    Operator
	Value FilterValue
}

// NewFilter builds a Filter and eagerly checks that the value shape matches
// the operator's arity. The same check runs again over the whole tree when
// compiling, so filters assembled literal-style are validated too.
func NewFilter(field string, op Operator, value FilterValue) (Filter, error) {
	f := Filter{Field: field, Op: op, Value: value}
	if err := f.validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// validate enforces operator arity: scalar, string, array, range or none.
func (f Filter) validate() error {
	if f.Value.kind == valueInvalid {
		return fmt.Errorf("safeq: field %q: unsupported value type %v", f.Field, f.Value.val)
	}
	switch f.Op {
	case OperatorEq, OperatorNeq, OperatorLt, OperatorLte, OperatorGt, OperatorGte:
		if !f.Value.isScalar() {
			return fmt.Errorf("safeq: operator %q on field %q requires a scalar value", f.Op, f.Field)
		}
	case OperatorLike, OperatorStartsWith, OperatorEndsWith:
		if f.Value.kind != ValueString {
			return fmt.Errorf("safeq: operator %q on field %q requires a string value", f.Op, f.Field)
		}
	case OperatorIn, OperatorNotIn:
		if f.Value.kind != ValueArray {
			return fmt.Errorf("safeq: operator %q on field %q requires an array value", f.Op, f.Field)
		}
		for _, e := range f.Value.arr {
			if ev := valueOf(e); !ev.isScalar() && ev.kind != ValueNull {
				return fmt.Errorf("safeq: operator %q on field %q requires scalar array elements", f.Op, f.Field)
			}
		}
	case OperatorBetween, OperatorNotBetween:
		if f.Value.kind != ValueRange {
			return fmt.Errorf("safeq: operator %q on field %q requires a two-element range", f.Op, f.Field)
		}
	case OperatorIsNull, OperatorIsNotNull:
		if f.Value.kind != ValueNone && f.Value.kind != ValueNull {
			return fmt.Errorf("safeq: operator %q on field %q takes no value", f.Op, f.Field)
		}
	default:
		return fmt.Errorf("safeq: unknown operator %q on field %q", f.Op, f.Field)
	}
	return nil
}

// FilterItem is one entry of a FilterGroup: either a leaf Filter or a
// nested FilterGroup. Exactly one side is set.
type FilterItem struct {
	Cond  *Filter
	Group *FilterGroup
}

// FilterGroup is a boolean combination of filters and nested groups.
type FilterGroup struct {
	Logic Logic
	Items []FilterItem
}

// Validate walks the tree and aggregates every arity violation into a
// single error, returned before any rendering happens.
func (g FilterGroup) Validate() error {
	var errs []error
	g.collectErrors(&errs)
	return errors.Join(errs...)
}

func (g FilterGroup) collectErrors(errs *[]error) {
	for _, it := range g.Items {
		if it.Cond != nil {
			if err := it.Cond.validate(); err != nil {
				*errs = append(*errs, err)
			}
		}
		if it.Group != nil {
			it.Group.collectErrors(errs)
		}
	}
}

// And builds an AND group from the given items.
func And(items ...FilterItem) FilterGroup { return FilterGroup{Logic: LogicAnd, Items: items} }

// Or builds an OR group from the given items.
func Or(items ...FilterItem) FilterGroup { return FilterGroup{Logic: LogicOr, Items: items} }

// Nested wraps a group so it can be used as an item of an outer group.
func Nested(g FilterGroup) FilterItem { return FilterItem{Group: &g} }

func leaf(field string, op Operator, v FilterValue) FilterItem {
	return FilterItem{Cond: &Filter{Field: field, Op: op, Value: v}}
}

func Eq(field string, v any) FilterItem  { return leaf(field, OperatorEq, valueOf(v)) }
func Neq(field string, v any) FilterItem { return leaf(field, OperatorNeq, valueOf(v)) }
func Lt(field string, v any) FilterItem  { return leaf(field, OperatorLt, valueOf(v)) }
func Lte(field string, v any) FilterItem { return leaf(field, OperatorLte, valueOf(v)) }
func Gt(field string, v any) FilterItem  { return leaf(field, OperatorGt, valueOf(v)) }
func Gte(field string, v any) FilterItem { return leaf(field, OperatorGte, valueOf(v)) }

func Like(field, substr string) FilterItem       { return leaf(field, OperatorLike, StringValue(substr)) }
func StartsWith(field, prefix string) FilterItem { return leaf(field, OperatorStartsWith, StringValue(prefix)) }
func EndsWith(field, suffix string) FilterItem   { return leaf(field, OperatorEndsWith, StringValue(suffix)) }

func In(field string, vals ...any) FilterItem    { return leaf(field, OperatorIn, ArrayValue(vals...)) }
func NotIn(field string, vals ...any) FilterItem { return leaf(field, OperatorNotIn, ArrayValue(vals...)) }

func Between(field string, lo, hi any) FilterItem {
	return leaf(field, OperatorBetween, RangeValue(lo, hi))
}

func NotBetween(field string, lo, hi any) FilterItem {
	return leaf(field, OperatorNotBetween, RangeValue(lo, hi))
}

func IsNull(field string) FilterItem    { return leaf(field, OperatorIsNull, FilterValue{}) }
func IsNotNull(field string) FilterItem { return leaf(field, OperatorIsNotNull, FilterValue{}) }

// normalizeFieldName applies the configured naming strategy to a possibly
// alias-qualified field name, converting each dot segment independently so
// the alias survives (`b.createdAt` -> `b.created_at`).
func normalizeFieldName(strategy NamingStrategy, field string) string {
	if strategy != NAMING_STRATEGY_SNAKE_CASE {
		return field
	}
	alias, col := splitQualified(field)
	col = stringy.New(col).SnakeCase("?", "").ToLower()
	if alias == "" {
		return col
	}
	return alias + "." + col
}
