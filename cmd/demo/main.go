package main

import (
	"fmt"
	"log"

	"github.com/ramosky/safeq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Book is the demo entity; the schema mirrors a typical inventory table.
type Book struct {
	ID          int
	Name        string
	Description string
	Status      string
	Qty         int
	Price       float64
}

func main() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&Book{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	seed := []Book{
		{Name: "sodium chloride", Description: "table salt, food grade", Status: "active", Qty: 120, Price: 2.5},
		{Name: "sodium bicarbonate", Description: "baking soda", Status: "active", Qty: 45, Price: 1.8},
		{Name: "citric acid", Description: "food additive E330", Status: "archived", Qty: 0, Price: 4.2},
	}
	if err := db.Create(&seed).Error; err != nil {
		log.Fatalf("seed: %v", err)
	}

	whitelist := safeq.NewFieldWhitelist("books", "id", "name", "description", "status", "qty", "price")

	// The FTS index table may or may not exist; the probe decides which
	// search condition gets generated.
	if err := db.Exec("CREATE VIRTUAL TABLE books_fts USING fts5(id, name, description)").Error; err != nil {
		log.Printf("fts index unavailable, falling back to LIKE: %v", err)
	} else if err := db.Exec(
		"INSERT INTO books_fts (id, name, description) SELECT id, name, description FROM books",
	).Error; err != nil {
		log.Fatalf("populate fts index: %v", err)
	}
	cfg := safeq.FtsConfig{
		IndexTable:     "books_fts",
		BaseTable:      "books",
		IDField:        "id",
		FallbackFields: []string{"name", "description"},
	}
	useFts := cfg.Available(db)
	log.Printf("fts available: %v", useFts)

	qb, err := safeq.NewSafeQueryBuilder("books", whitelist)
	if err != nil {
		log.Fatalf("builder: %v", err)
	}
	qb.AddExactMatch("status", "active").
		AddSearch(cfg, "books", "sodium", useFts).
		OrderBy("qty", "DESC").
		Paginate(1, 20)

	listSQL, listParams := qb.BuildSelect()
	countSQL, countParams := qb.BuildCount()
	fmt.Printf("list:  %s %v\n", listSQL, listParams)
	fmt.Printf("count: %s %v\n", countSQL, countParams)

	var books []Book
	if err := db.Raw(listSQL, listParams...).Scan(&books).Error; err != nil {
		log.Fatalf("list query: %v", err)
	}
	var total int64
	if err := db.Raw(countSQL, countParams...).Scan(&total).Error; err != nil {
		log.Fatalf("count query: %v", err)
	}

	fmt.Printf("matched %d of %d:\n", len(books), total)
	for _, b := range books {
		fmt.Printf("  #%d %-22s qty=%d price=%.2f\n", b.ID, b.Name, b.Qty, b.Price)
	}
}
