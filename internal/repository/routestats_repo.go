package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quietroute/optout-api/pkg/model"
)

// RouteStatsRepository serves aggregate reads over route_stats.
type RouteStatsRepository struct {
	client *firestore.Client
}

func NewRouteStatsRepository(client *firestore.Client) *RouteStatsRepository {
	return &RouteStatsRepository{client: client}
}

// GetRouteStats reads one route aggregate. A missing document is a normal
// state reported as found=false.
func (r *RouteStatsRepository) GetRouteStats(ctx context.Context, routeKey string) (model.RouteStats, bool, error) {
	snap, err := r.client.Collection(routeStatsCollection).Doc(routeKey).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return model.RouteStats{}, false, nil
		}
		return model.RouteStats{}, false, fmt.Errorf("get stats %s: %w", routeKey, err)
	}
	var stats model.RouteStats
	if err := snap.DataTo(&stats); err != nil {
		return model.RouteStats{}, false, fmt.Errorf("decode stats %s: %w", routeKey, err)
	}
	return stats, true, nil
}

// TopRoutesByCount returns the busiest routes, bounded by limit. This is the
// leaderboard's candidate set; percent ordering happens in memory above.
func (r *RouteStatsRepository) TopRoutesByCount(ctx context.Context, limit int) ([]model.RouteStats, error) {
	iter := r.client.Collection(routeStatsCollection).
		Where("optOutCount", ">", 0).
		OrderBy("optOutCount", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var routes []model.RouteStats
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate route stats: %w", err)
		}
		var stats model.RouteStats
		if err := doc.DataTo(&stats); err != nil {
			return nil, fmt.Errorf("decode stats %s: %w", doc.Ref.ID, err)
		}
		routes = append(routes, stats)
	}
	return routes, nil
}

// GlobalTotals sums opt-outs and counts active routes across the whole
// collection with a server-side aggregation, so totals stay correct however
// the leaderboard page is truncated.
func (r *RouteStatsRepository) GlobalTotals(ctx context.Context) (model.GlobalTotals, error) {
	query := r.client.Collection(routeStatsCollection).Where("optOutCount", ">", 0)
	results, err := query.NewAggregationQuery().
		WithCount("activeRoutes").
		WithSum("optOutCount", "totalOptOuts").
		Get(ctx)
	if err != nil {
		return model.GlobalTotals{}, fmt.Errorf("aggregate route stats: %w", err)
	}

	totals := model.GlobalTotals{}
	if v, ok := results["totalOptOuts"].(*firestorepb.Value); ok {
		totals.TotalOptOuts = int(v.GetIntegerValue())
	}
	if v, ok := results["activeRoutes"].(*firestorepb.Value); ok {
		totals.ActiveRoutes = int(v.GetIntegerValue())
	}
	return totals, nil
}

// OverwriteCount force-sets a route's counter. Only the backfill-stats tool
// calls this, after recounting the ledger.
func (r *RouteStatsRepository) OverwriteCount(ctx context.Context, routeKey string, count int) error {
	ref := r.client.Collection(routeStatsCollection).Doc(routeKey)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "optOutCount", Value: count},
		{Path: "lastUpdated", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("overwrite count %s: %w", routeKey, err)
	}
	return nil
}
