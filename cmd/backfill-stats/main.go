// backfill-stats recounts opt-out ledger records per route and repairs any
// route_stats counters that drifted from the ledger (for example after a
// manual data fix). The aggregate invariant is optOutCount == number of
// ledger records for the route.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/quietroute/optout-api/internal/platform/config"
	firestoreclient "github.com/quietroute/optout-api/internal/platform/firestore"
	"github.com/quietroute/optout-api/internal/repository"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report drift without writing")
	flag.Parse()

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

	ledger := repository.NewOptOutRepository(client)
	statsRepo := repository.NewRouteStatsRepository(client)

	counts, err := ledger.CountByRoute(ctx)
	if err != nil {
		log.Fatalf("recount ledger: %v", err)
	}
	log.Printf("counted %d routes with ledger activity", len(counts))

	repaired := 0
	for routeKey, want := range counts {
		stats, found, err := statsRepo.GetRouteStats(ctx, routeKey)
		if err != nil {
			log.Fatalf("read stats %s: %v", routeKey, err)
		}
		if found && stats.OptOutCount == want {
			continue
		}
		if !found {
			log.Printf("  %s: no aggregate for %d ledger records (register path never completed?)", routeKey, want)
			continue
		}
		log.Printf("  %s: stored %d, ledger %d", routeKey, stats.OptOutCount, want)
		if *dryRun {
			repaired++
			continue
		}
		if err := statsRepo.OverwriteCount(ctx, routeKey, want); err != nil {
			log.Fatalf("repair %s: %v", routeKey, err)
		}
		repaired++
	}

	verb := "repaired"
	if *dryRun {
		verb = "would repair"
	}
	fmt.Printf("Backfill complete: %s %d of %d routes\n", verb, repaired, len(counts))
}
