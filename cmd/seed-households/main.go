// seed-households loads verified household counts per carrier route from a
// CSV file (zipRoute,households) into the verified_households collection.
// Once seeded, a route's verified count takes precedence over heuristic
// estimates and is never overwritten by them.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"

	"github.com/quietroute/optout-api/internal/platform/config"
	firestoreclient "github.com/quietroute/optout-api/internal/platform/firestore"
	"github.com/quietroute/optout-api/pkg/model"
	"github.com/quietroute/optout-api/pkg/util"
)

func main() {
	csvPath := flag.String("csv", "", "path to CSV with zipRoute,households rows")
	flag.Parse()
	if *csvPath == "" {
		log.Fatal("usage: seed-households -csv routes.csv")
	}

	ctx := context.Background()
	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	client, credsSource, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("firestore init: %v", err)
	}
	defer client.Close()
	log.Printf("connected to Firestore project %s using %s credentials", cfg.FirebaseProjectID, credsSource)

	rows, err := readRows(*csvPath)
	if err != nil {
		log.Fatalf("read csv: %v", err)
	}
	log.Printf("loaded %d verified household rows", len(rows))

	if err := seed(ctx, client, rows); err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("Seeded %d routes into %s\n", len(rows), "verified_households")
}

func readRows(path string) ([]model.VerifiedHouseholds, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var rows []model.VerifiedHouseholds
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("row %d: want zipRoute,households", i+1)
		}
		if i == 0 && rec[1] == "households" {
			continue
		}
		if _, _, err := util.SplitRouteKey(rec[0]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		count, err := strconv.Atoi(rec[1])
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("row %d: bad household count %q", i+1, rec[1])
		}
		rows = append(rows, model.VerifiedHouseholds{
			RouteKey:   rec[0],
			Households: count,
			LoadedAt:   now,
		})
	}
	return rows, nil
}

func seed(ctx context.Context, client *firestore.Client, rows []model.VerifiedHouseholds) error {
	const batchSize = 400
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := client.Batch()
		for _, row := range rows[start:end] {
			ref := client.Collection("verified_households").Doc(row.RouteKey)
			batch.Set(ref, row)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit batch [%d:%d]: %w", start, end, err)
		}
		log.Printf("  seeded %d/%d routes", end, len(rows))
	}
	return nil
}
