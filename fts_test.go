package safeq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func bookFtsConfig() FtsConfig {
	return FtsConfig{
		IndexTable:     "books_fts",
		BaseTable:      "books",
		IDField:        "id",
		FallbackFields: []string{"name", "description"},
	}
}

func TestBuildFtsQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"sodium (chloride)*", "sodium* chloride*"},
		{"   ", ""},
		{"", ""},
		{"aspirin", "aspirin*"},
		{"acetyl salicylic acid", "acetyl* salicylic* acid*"},
		{`"quoted": -term^`, "quoted* term*"},
		{"a&b | c~d", "ab* cd*"},
		{"***", ""},
		{"  spaced   out  ", "spaced* out*"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BuildFtsQuery(tc.in), "input %q", tc.in)
	}
}

func TestSearchCondition(t *testing.T) {
	cfg := bookFtsConfig()

	t.Run("FtsMode", func(t *testing.T) {
		text, params := cfg.SearchCondition("b", "sodium chloride", true)
		assert.Equal(t,
			"b.id IN (SELECT books_fts.id FROM books_fts WHERE books_fts MATCH ?)",
			text)
		assert.Equal(t, []any{"sodium* chloride*"}, params)
	})

	t.Run("FtsModeQualifiesInnerId", func(t *testing.T) {
		// the subquery id must be table-qualified so it cannot collide with
		// the outer query's own id column
		text, _ := cfg.SearchCondition("b", "x", true)
		assert.Contains(t, text, "SELECT books_fts.id FROM books_fts")
	})

	t.Run("FtsModeEmptyTermShortCircuits", func(t *testing.T) {
		text, params := cfg.SearchCondition("b", "   ***   ", true)
		assert.Equal(t, "", text)
		assert.Empty(t, params)
	})

	t.Run("FallbackMode", func(t *testing.T) {
		text, params := cfg.SearchCondition("b", "sodium", false)
		assert.Equal(t, "(b.name LIKE ? OR b.description LIKE ?)", text)
		assert.Equal(t, []any{"%sodium%", "%sodium%"}, params)
	})

	t.Run("FallbackModeEmptyTerm", func(t *testing.T) {
		text, params := cfg.SearchCondition("b", "  ", false)
		assert.Equal(t, "", text)
		assert.Empty(t, params)
	})

	t.Run("DefaultAliasIsBaseTable", func(t *testing.T) {
		text, _ := cfg.SearchCondition("", "sodium", false)
		assert.Contains(t, text, "books.name LIKE ?")
	})

	t.Run("SingleFallbackFieldIsUnwrapped", func(t *testing.T) {
		one := cfg
		one.FallbackFields = []string{"name"}
		text, _ := one.SearchCondition("b", "x", false)
		assert.Equal(t, "b.name LIKE ?", text)
	})
}

func TestRelationSearchCondition(t *testing.T) {
	cfg := bookFtsConfig()
	rel := RelationSearch{
		Table:      "book_tags",
		Alias:      "bt",
		ForeignKey: "book_id",
		Fields:     []string{"tag"},
	}

	t.Run("CombinesWithExists", func(t *testing.T) {
		text, params := cfg.RelationSearchCondition("b", "sodium", rel, false)
		assert.Equal(t,
			"((b.name LIKE ? OR b.description LIKE ?) OR "+
				"EXISTS (SELECT 1 FROM book_tags bt WHERE bt.book_id = b.id AND (bt.tag LIKE ?)))",
			text)
		assert.Equal(t, []any{"%sodium%", "%sodium%", "%sodium%"}, params)
	})

	t.Run("FtsModeKeepsMatchSubquery", func(t *testing.T) {
		text, params := cfg.RelationSearchCondition("b", "sodium", rel, true)
		assert.Contains(t, text, "books_fts MATCH ?")
		assert.Contains(t, text, "EXISTS (SELECT 1 FROM book_tags bt")
		assert.Equal(t, []any{"sodium*", "%sodium%"}, params)
	})

	t.Run("EmptyTermAddsNothing", func(t *testing.T) {
		text, params := cfg.RelationSearchCondition("b", "   ", rel, false)
		assert.Equal(t, "", text)
		assert.Empty(t, params)
	})

	t.Run("ParamOrderMatchesPlaceholders", func(t *testing.T) {
		text, params := cfg.RelationSearchCondition("b", "zinc", rel, false)
		n := 0
		for _, c := range text {
			if c == '?' {
				n++
			}
		}
		assert.Equal(t, n, len(params))
	})
}

func TestFtsAvailable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec("CREATE TABLE books (id INTEGER PRIMARY KEY, name TEXT)").Error)
	require.NoError(t, db.Exec("CREATE TABLE books_fts (id INTEGER, name TEXT)").Error)

	t.Run("IndexTablePresent", func(t *testing.T) {
		assert.True(t, bookFtsConfig().Available(db))
	})

	t.Run("IndexTableMissing", func(t *testing.T) {
		cfg := bookFtsConfig()
		cfg.IndexTable = "no_such_fts"
		assert.False(t, cfg.Available(db))
	})

	t.Run("NilDatabase", func(t *testing.T) {
		assert.False(t, bookFtsConfig().Available(nil))
	})
}
