package main

import (
	"log"
	"os"

	"ad-studio-be/internal/model"
	"ad-studio-be/pkg/database"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding Plan Catalog...")

	plans := []model.Plan{
		{Slug: "free", Name: "Free", Rank: 0, MonthlyPrice: decimal.Zero, TokenGrant: 25, IsBaseline: true, IsActive: true},
		{Slug: "pro", Name: "Pro", Rank: 1, MonthlyPrice: decimal.NewFromInt(29), TokenGrant: 500, StripePriceID: "price_plan_pro", IsActive: true},
		{Slug: "studio", Name: "Studio", Rank: 2, MonthlyPrice: decimal.NewFromInt(99), TokenGrant: 2500, StripePriceID: "price_plan_studio", IsActive: true},
	}

	for _, p := range plans {
		var existing model.Plan
		if err := db.Where("slug = ?", p.Slug).First(&existing).Error; err == nil {
			log.Printf("Plan '%s' already exists, skipping...", p.Slug)
			continue
		}

		if err := db.Create(&p).Error; err != nil {
			log.Printf("Error creating plan '%s': %v", p.Slug, err)
		} else {
			log.Printf("Created plan: %s (%s)", p.Name, p.Slug)
		}
	}

	log.Println("Plan seeding completed!")
}
