package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quietroute/optout-api/internal/business/optout"
	"github.com/quietroute/optout-api/pkg/model"
	"github.com/quietroute/optout-api/pkg/util"
)

const (
	optOutsCollection    = "opt_outs"
	routeStatsCollection = "route_stats"
	verifiedCollection   = "verified_households"
)

// OptOutRepository is the ledger: one document per address identity hash,
// written atomically with the route aggregate.
type OptOutRepository struct {
	client *firestore.Client
}

func NewOptOutRepository(client *firestore.Client) *OptOutRepository {
	return &OptOutRepository{client: client}
}

// ApplyOptOut runs the ledger insert and the aggregate read-modify-write in
// one Firestore transaction, so concurrent registrations on the same route
// cannot lose counter updates and a failed write leaves no partial state.
// An existing ledger document short-circuits to Created=false without
// touching the aggregate.
func (r *OptOutRepository) ApplyOptOut(ctx context.Context, rec model.OptOutRecord, heuristic model.HouseholdEstimate) (optout.ApplyResult, error) {
	var result optout.ApplyResult

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = optout.ApplyResult{}

		recRef := r.client.Collection(optOutsCollection).Doc(rec.IdentityHash)
		recSnap, err := tx.Get(recRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("read opt-out %s: %w", rec.IdentityHash, err)
		}

		statsRef := r.client.Collection(routeStatsCollection).Doc(rec.RouteKey)
		stats, found, err := readStatsTx(tx, statsRef, rec.RouteKey)
		if err != nil {
			return err
		}

		if recSnap != nil && recSnap.Exists() {
			// Already opted out; report current state untouched.
			result.Created = false
			result.PrevCount = stats.OptOutCount
			result.NewCount = stats.OptOutCount
			result.Households = statsEstimate(stats, heuristic)
			result.Stats = stats
			return nil
		}

		households := r.resolveEstimateTx(tx, stats, found, rec.RouteKey, heuristic)

		if !found {
			zip, carrier, err := util.SplitRouteKey(rec.RouteKey)
			if err != nil {
				return err
			}
			stats = model.RouteStats{
				RouteKey:     rec.RouteKey,
				ZipCode:      zip,
				CarrierRoute: carrier,
				City:         rec.City,
				State:        rec.State,
			}
		}

		result.Created = true
		result.PrevCount = stats.OptOutCount
		result.NewCount = stats.OptOutCount + 1
		result.Households = households

		stats.OptOutCount = result.NewCount
		stats.EstimatedHouseholds = households.Count
		stats.EstimateSource = households.Source
		stats.EstimateConfidence = households.Confidence
		stats.LastUpdated = time.Now().UTC()
		result.Stats = stats

		if err := tx.Create(recRef, rec); err != nil {
			return fmt.Errorf("create opt-out %s: %w", rec.IdentityHash, err)
		}
		if err := tx.Set(statsRef, stats); err != nil {
			return fmt.Errorf("update stats %s: %w", rec.RouteKey, err)
		}
		return nil
	})
	if err != nil {
		return optout.ApplyResult{}, err
	}
	return result, nil
}

// resolveEstimateTx applies the precedence rule verified > heuristic >
// default. A stored verified value is final. The verified lookup degrades
// silently to the heuristic when unreadable.
func (r *OptOutRepository) resolveEstimateTx(tx *firestore.Transaction, stats model.RouteStats, found bool, routeKey string, heuristic model.HouseholdEstimate) model.HouseholdEstimate {
	if found && stats.EstimateSource == model.EstimateSourceVerified {
		return model.HouseholdEstimate{
			Count:      stats.EstimatedHouseholds,
			Source:     model.EstimateSourceVerified,
			Confidence: model.ConfidenceHigh,
		}
	}

	verRef := r.client.Collection(verifiedCollection).Doc(routeKey)
	snap, err := tx.Get(verRef)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			log.Printf("verified households %s unavailable, using heuristic: %v", routeKey, err)
		}
		return heuristic
	}
	var ver model.VerifiedHouseholds
	if err := snap.DataTo(&ver); err != nil || ver.Households <= 0 {
		return heuristic
	}
	return model.HouseholdEstimate{
		Count:      ver.Households,
		Source:     model.EstimateSourceVerified,
		Confidence: model.ConfidenceHigh,
	}
}

// ListApproxLocations returns up to limit coarsened coordinates for a route.
func (r *OptOutRepository) ListApproxLocations(ctx context.Context, routeKey string, limit int) ([]model.GeoPoint, error) {
	iter := r.client.Collection(optOutsCollection).
		Where("routeKey", "==", routeKey).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var points []model.GeoPoint
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate opt-outs for %s: %w", routeKey, err)
		}
		var rec model.OptOutRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode opt-out %s: %w", doc.Ref.ID, err)
		}
		points = append(points, rec.ApproxLoc)
	}
	return points, nil
}

// CountByRoute recounts ledger records per route key. Used by the
// backfill-stats tool to repair aggregate drift.
func (r *OptOutRepository) CountByRoute(ctx context.Context) (map[string]int, error) {
	iter := r.client.Collection(optOutsCollection).Select("routeKey").Documents(ctx)
	defer iter.Stop()

	counts := make(map[string]int)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate opt-outs: %w", err)
		}
		var rec model.OptOutRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode opt-out %s: %w", doc.Ref.ID, err)
		}
		counts[rec.RouteKey]++
	}
	return counts, nil
}

func readStatsTx(tx *firestore.Transaction, ref *firestore.DocumentRef, routeKey string) (model.RouteStats, bool, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return model.RouteStats{}, false, nil
		}
		return model.RouteStats{}, false, fmt.Errorf("read stats %s: %w", routeKey, err)
	}
	var stats model.RouteStats
	if err := snap.DataTo(&stats); err != nil {
		return model.RouteStats{}, false, fmt.Errorf("decode stats %s: %w", routeKey, err)
	}
	return stats, true, nil
}

func statsEstimate(stats model.RouteStats, fallback model.HouseholdEstimate) model.HouseholdEstimate {
	if stats.EstimatedHouseholds > 0 {
		return model.HouseholdEstimate{
			Count:      stats.EstimatedHouseholds,
			Source:     stats.EstimateSource,
			Confidence: stats.EstimateConfidence,
		}
	}
	return fallback
}
