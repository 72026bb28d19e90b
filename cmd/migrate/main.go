package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/chinmaybhatk/frappe-kit/internal/config"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	dir := flag.String("dir", "migrations", "migrations directory")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	flag.Parse()

	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Tables live in the provisioner schema
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", cfg.Database.Schema)); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s, public", cfg.Database.Schema)); err != nil {
		log.Fatalf("Failed to set search_path: %v", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to configure goose: %v", err)
	}

	switch *command {
	case "up":
		if err := goose.UpContext(ctx, db, *dir); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	case "status":
		if err := goose.StatusContext(ctx, db, *dir); err != nil {
			log.Fatalf("Failed to fetch migration status: %v", err)
		}
	case "down":
		if err := goose.DownContext(ctx, db, *dir); err != nil {
			log.Fatalf("Failed to roll back migration: %v", err)
		}
	default:
		log.Fatalf("Unsupported command: %s", *command)
	}

	log.Printf("Migration command completed: %s", *command)
}
