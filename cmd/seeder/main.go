// cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/unclebandit/civic-notify/internal/config"
	"github.com/unclebandit/civic-notify/internal/db"
)

func main() {
	cfg := config.MustLoad()

	dir := "seed"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	conn := db.MustOpen(context.Background(), cfg.Database.DSN())
	defer conn.Close()

	// Files run in name order; 001_schema.sql goes first.
	seedFiles, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		log.Fatal(err)
	}
	sort.Strings(seedFiles)

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("failed to read %s: %v", file, err)
		}

		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatalf("failed to execute %s: %v", file, err)
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	fmt.Println("Database seeding completed successfully!")
}
