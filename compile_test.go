package safeq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookWhitelist() *FieldWhitelist {
	return NewFieldWhitelist("books", "id", "status", "qty", "expiry", "name", "price", "category")
}

func TestCompileTree(t *testing.T) {
	fb := NewFilterBuilder(bookWhitelist())

	t.Run("NestedGroups", func(t *testing.T) {
		g := And(
			Eq("status", "active"),
			Nested(Or(
				Gte("qty", "10"),
				IsNull("expiry"),
			)),
		)
		text, params, err := fb.Compile(g)
		require.NoError(t, err)
		assert.Equal(t, "status = ? AND (qty >= ? OR expiry IS NULL)", text)
		assert.Equal(t, []any{"active", "10"}, params)
	})

	t.Run("PlaceholderParamParity", func(t *testing.T) {
		g := And(
			Eq("status", "active"),
			In("category", "a", "b", "c"),
			Between("price", 10, 20),
			Like("name", "x"),
			IsNotNull("expiry"),
		)
		text, params, err := fb.Compile(g)
		require.NoError(t, err)
		assert.Equal(t, strings.Count(text, "?"), len(params))
		assert.Equal(t, []any{"active", "a", "b", "c", 10, 20, "%x%"}, params)
	})

	t.Run("RejectedFieldSoftSkips", func(t *testing.T) {
		g := And(
			Eq("status", "active"),
			Eq("password", "hunter2"),
		)
		text, params, err := fb.Compile(g)
		require.NoError(t, err)
		assert.Equal(t, "status = ?", text)
		assert.Equal(t, []any{"active"}, params)
		assert.NotContains(t, text, "AND")
		assert.NotContains(t, text, "()")
	})

	t.Run("FullyRejectedNestedGroupVanishes", func(t *testing.T) {
		g := And(
			Eq("status", "active"),
			Nested(Or(
				Eq("password", "x"),
				Eq("secret", "y"),
			)),
		)
		text, params, err := fb.Compile(g)
		require.NoError(t, err)
		assert.Equal(t, "status = ?", text)
		assert.Len(t, params, 1)
	})

	t.Run("EmptyGroup", func(t *testing.T) {
		text, params, err := fb.Compile(And())
		require.NoError(t, err)
		assert.Equal(t, "", text)
		assert.Empty(t, params)
	})
}

func TestCompileOperators(t *testing.T) {
	fb := NewFilterBuilder(bookWhitelist())

	cases := []struct {
		name   string
		item   FilterItem
		text   string
		params []any
	}{
		{"Eq", Eq("status", "a"), "status = ?", []any{"a"}},
		{"Neq", Neq("status", "a"), "status != ?", []any{"a"}},
		{"Lt", Lt("qty", 5), "qty < ?", []any{5}},
		{"Lte", Lte("qty", 5), "qty <= ?", []any{5}},
		{"Gt", Gt("qty", 5), "qty > ?", []any{5}},
		{"Gte", Gte("qty", 5), "qty >= ?", []any{5}},
		{"Like", Like("name", "ab"), "name LIKE ?", []any{"%ab%"}},
		{"LikeEscapes", Like("name", "50%_test"), "name LIKE ?", []any{`%50\%\_test%`}},
		{"StartsWith", StartsWith("name", "ab%"), "name LIKE ?", []any{`ab\%%`}},
		{"EndsWith", EndsWith("name", "_ab"), "name LIKE ?", []any{`%\_ab`}},
		{"In", In("category", "x", "y"), "category IN (?,?)", []any{"x", "y"}},
		{"InEmpty", In("category"), "1=0", nil},
		{"NotIn", NotIn("category", "x"), "category NOT IN (?)", []any{"x"}},
		{"NotInEmpty", NotIn("category"), "1=1", nil},
		{"Between", Between("price", 1, 2), "price BETWEEN ? AND ?", []any{1, 2}},
		{"NotBetween", NotBetween("price", 1, 2), "price NOT BETWEEN ? AND ?", []any{1, 2}},
		{"IsNull", IsNull("expiry"), "expiry IS NULL", nil},
		{"IsNotNull", IsNotNull("expiry"), "expiry IS NOT NULL", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, params, err := fb.Compile(And(tc.item))
			require.NoError(t, err)
			assert.Equal(t, tc.text, text)
			if tc.params == nil {
				assert.Empty(t, params)
			} else {
				assert.Equal(t, tc.params, params)
			}
		})
	}
}

func TestCompileValidation(t *testing.T) {
	fb := NewFilterBuilder(bookWhitelist())

	t.Run("ArityMismatchErrors", func(t *testing.T) {
		g := And(
			leaf("status", OperatorEq, ArrayValue("a", "b")),
			leaf("qty", OperatorIn, StringValue("oops")),
			leaf("price", OperatorBetween, IntValue(3)),
		)
		_, _, err := fb.Compile(g)
		require.Error(t, err)
		// every violation is aggregated into one error
		assert.Contains(t, err.Error(), `"eq"`)
		assert.Contains(t, err.Error(), `"in"`)
		assert.Contains(t, err.Error(), `"between"`)
	})

	t.Run("ErrorBeforeRendering", func(t *testing.T) {
		sink := &stringSink{}
		g := And(
			Eq("status", "ok"),
			leaf("qty", OperatorBetween, StringValue("bad")),
		)
		err := fb.CompileInto(g, sink)
		require.Error(t, err)
		text, params := sink.result()
		assert.Equal(t, "", text)
		assert.Empty(t, params)
	})

	t.Run("UnknownOperator", func(t *testing.T) {
		_, _, err := fb.Compile(And(leaf("status", Operator("regex"), StringValue("x"))))
		assert.Error(t, err)
	})

	t.Run("UnsupportedValueType", func(t *testing.T) {
		_, _, err := fb.Compile(And(Eq("status", struct{}{})))
		assert.Error(t, err)
	})

	t.Run("NewFilterChecksEagerly", func(t *testing.T) {
		_, err := NewFilter("qty", OperatorIn, StringValue("x"))
		assert.Error(t, err)

		f, err := NewFilter("qty", OperatorIn, ArrayValue(1, 2))
		require.NoError(t, err)
		assert.Equal(t, OperatorIn, f.Op)
	})
}

func TestCompileNamingStrategy(t *testing.T) {
	w := NewFieldWhitelist("books", "created_at", "unit_price")
	fb := NewFilterBuilder(w).SetNamingStrategy(NAMING_STRATEGY_SNAKE_CASE)

	text, params, err := fb.Compile(And(
		Gte("createdAt", "2026-01-01"),
		Lt("unitPrice", 100),
	))
	require.NoError(t, err)
	assert.Equal(t, "created_at >= ? AND unit_price < ?", text)
	assert.Len(t, params, 2)
}

func TestCompileNilWhitelist(t *testing.T) {
	fb := NewFilterBuilder(nil)

	// identifier-shaped fields pass, injection-shaped fields still skip
	text, params, err := fb.Compile(And(
		Eq("anything", 1),
		Eq("x = 1 OR 1=1 --", 2),
	))
	require.NoError(t, err)
	assert.Equal(t, "anything = ?", text)
	assert.Len(t, params, 1)
}
