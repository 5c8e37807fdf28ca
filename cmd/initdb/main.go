package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"dermai-backend/cmd"
	"dermai-backend/internal/config"
	"dermai-backend/internal/database"
)

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	dsn := cfg.DatabaseDSN()
	db, err := database.Open(dsn)
	if err != nil {
		slog.Error("database initialization failed", "error", err)
		fmt.Println("Failed to initialize database")
		os.Exit(1)
	}

	if !database.VerifySchema(db) {
		slog.Error("database tables missing after migration")
		fmt.Println("Failed to initialize database")
		os.Exit(1)
	}

	slog.Info("database tables verified successfully", "dsn", dsn)
	fmt.Println("Database initialized successfully")
}
