// Command initdb bootstraps the Postgres database for the note store. It
// connects to the maintenance database and creates the target database when
// missing; the schema itself is migrated by the daemon on startup.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	host := flag.String("host", getEnv("DB_HOST", "localhost"), "postgres host")
	port := flag.String("port", getEnv("DB_PORT", "5432"), "postgres port")
	user := flag.String("user", getEnv("DB_USER", "postgres"), "postgres user")
	password := flag.String("password", getEnv("DB_PASSWORD", "postgres"), "postgres password")
	name := flag.String("name", getEnv("DB_NAME", "shieldswap"), "database to create")
	flag.Parse()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		*host, *port, *user, *password)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to reach postgres at %s:%s: %v", *host, *port, err)
	}

	var exists bool
	if err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", *name).Scan(&exists); err != nil {
		log.Fatalf("Failed to check for database %s: %v", *name, err)
	}
	if exists {
		log.Printf("Database %s already exists, nothing to do", *name)
		return
	}

	if _, err := db.Exec(fmt.Sprintf(`CREATE DATABASE %q`, *name)); err != nil {
		log.Fatalf("Failed to create database %s: %v", *name, err)
	}
	log.Printf("Created database %s", *name)
	log.Printf("Set database.dsn to: host=%s port=%s user=%s password=*** dbname=%s sslmode=disable",
		*host, *port, *user, *name)
}
