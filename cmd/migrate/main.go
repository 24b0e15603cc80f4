package main

import (
	"log"

	"roombooking/internal/config"
	"roombooking/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	log.Printf("migrate completed postgres=%t", database.IsPostgresDSN(cfg.DatabaseURL))
}
