// Admin tool: purge every report job and artifact for one wallet address.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/vietddude/ethtracker/internal/core/domain"
	"github.com/vietddude/ethtracker/internal/infra/storage/postgres"
)

func main() {
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	address := flag.String("address", "", "Wallet address to purge")
	flag.Parse()

	_ = godotenv.Load()
	if *dbURL == "" {
		*dbURL = os.Getenv("DATABASE_URL")
	}
	if *dbURL == "" {
		log.Fatal("set -db or DATABASE_URL")
	}

	addr, err := domain.ValidateAddress(*address)
	if err != nil {
		log.Fatalf("invalid -address: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, postgres.Config{URL: *dbURL})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	repo := postgres.NewReportJobRepo(db)
	paths, err := repo.DeleteByAddress(ctx, addr)
	if err != nil {
		log.Fatalf("purge: %v", err)
	}

	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("could not remove %s: %v", path, err)
			continue
		}
		removed++
	}

	fmt.Printf("Purged report jobs for %s (%d artifacts removed)\n", addr, removed)
}
