package optout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/quietroute/optout-api/internal/platform/metrics"
	"github.com/quietroute/optout-api/pkg/model"
	"github.com/quietroute/optout-api/pkg/util"
)

// ErrInvalidRequest marks client-side validation failures. Handlers map it
// to a 400 response.
var ErrInvalidRequest = errors.New("invalid request")

// Ledger persists opt-out records atomically with their route aggregate.
type Ledger interface {
	// ApplyOptOut inserts the record and advances the route aggregate in a
	// single logical write. An existing record for the same identity hash
	// yields Created=false with the current aggregate and no mutation.
	ApplyOptOut(ctx context.Context, rec model.OptOutRecord, heuristic model.HouseholdEstimate) (ApplyResult, error)
	// ListApproxLocations returns up to limit coarsened opt-out coordinates
	// for a route.
	ListApproxLocations(ctx context.Context, routeKey string, limit int) ([]model.GeoPoint, error)
}

// StatsReader serves aggregate reads.
type StatsReader interface {
	GetRouteStats(ctx context.Context, routeKey string) (model.RouteStats, bool, error)
	TopRoutesByCount(ctx context.Context, limit int) ([]model.RouteStats, error)
	GlobalTotals(ctx context.Context) (model.GlobalTotals, error)
}

// MilestoneSink receives milestone events. Publishing is fire-and-forget;
// a failed publish never fails the registration that triggered it.
type MilestoneSink interface {
	Publish(ctx context.Context, ev model.MilestoneEvent) error
}

// RouteResolver maps free-form address text to its carrier route.
type RouteResolver interface {
	Resolve(ctx context.Context, addressText string) (model.RouteLookup, error)
}

// ApplyResult reports the outcome of a ledger insert. Households is the
// estimate resolved under the precedence rule; both percentages derive from
// it.
type ApplyResult struct {
	Created    bool
	PrevCount  int
	NewCount   int
	Households model.HouseholdEstimate
	Stats      model.RouteStats
}

// RegistrationRequest carries one opt-out attempt. Route fields may be
// empty, in which case the service resolves the address itself.
type RegistrationRequest struct {
	Address      string
	ZipCode      string
	CarrierRoute string
	City         string
	State        string
	Lat          float64
	Lng          float64
	Email        string
}

// RegistrationResult is the caller-facing outcome of a registration.
type RegistrationResult struct {
	ZipRoute            string  `json:"zipRoute"`
	OptOutCount         int     `json:"optOutCount"`
	EstimatedHouseholds int     `json:"estimatedHouseholds"`
	EstimateConfidence  string  `json:"estimateConfidence"`
	PercentOptedOut     float64 `json:"percentOptedOut"`
	IsNewOptOut         bool    `json:"isNewOptOut"`
	RouteType           string  `json:"routeType"`
	MilestoneReached    int     `json:"milestoneReached,omitempty"`
}

// RouteStatsView is the read-side stats payload, including coarsened opt-out
// locations for map display.
type RouteStatsView struct {
	ZipRoute            string           `json:"zipRoute"`
	ZipCode             string           `json:"zipCode,omitempty"`
	CarrierRoute        string           `json:"carrierRoute,omitempty"`
	City                string           `json:"city,omitempty"`
	State               string           `json:"state,omitempty"`
	RouteType           string           `json:"routeType,omitempty"`
	OptOutCount         int              `json:"optOutCount"`
	EstimatedHouseholds int              `json:"estimatedHouseholds"`
	EstimateConfidence  string           `json:"estimateConfidence,omitempty"`
	PercentOptedOut     float64          `json:"percentOptedOut"`
	Locations           []model.GeoPoint `json:"locations,omitempty"`
}

// LeaderboardView pairs a ranked page with totals over the full dataset.
type LeaderboardView struct {
	Routes       []LeaderboardEntry `json:"routes"`
	TotalOptOuts int                `json:"totalOptOuts"`
	ActiveRoutes int                `json:"activeRoutes"`
}

// Options tunes service behavior.
type Options struct {
	// CandidateLimit bounds the set of routes considered for ranking.
	CandidateLimit int
	// CacheTTL bounds leaderboard staleness.
	CacheTTL time.Duration
	// LocationLimit bounds the coordinates returned per route.
	LocationLimit int
}

// Service is the opt-out registration and route-statistics engine.
type Service struct {
	ledger     Ledger
	stats      StatsReader
	milestones MilestoneSink
	resolver   RouteResolver
	cache      *gocache.Cache

	candidateLimit int
	locationLimit  int
}

func NewService(ledger Ledger, stats StatsReader, milestones MilestoneSink, resolver RouteResolver, opts Options) *Service {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = 200
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.LocationLimit <= 0 {
		opts.LocationLimit = 100
	}
	return &Service{
		ledger:         ledger,
		stats:          stats,
		milestones:     milestones,
		resolver:       resolver,
		cache:          gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		candidateLimit: opts.CandidateLimit,
		locationLimit:  opts.LocationLimit,
	}
}

// Register records an opt-out for the household at req.Address. A repeat
// registration for the same normalized address is an idempotent no-op
// reported with IsNewOptOut=false.
func (s *Service) Register(ctx context.Context, req RegistrationRequest) (RegistrationResult, error) {
	if req.Address == "" {
		return RegistrationResult{}, fmt.Errorf("%w: address is required", ErrInvalidRequest)
	}

	if req.CarrierRoute == "" || req.ZipCode == "" {
		if s.resolver == nil {
			return RegistrationResult{}, fmt.Errorf("%w: carrierRoute and zipCode are required", ErrInvalidRequest)
		}
		lookup, err := s.resolver.Resolve(ctx, req.Address)
		if err != nil {
			return RegistrationResult{}, err
		}
		req.CarrierRoute = lookup.CarrierRoute
		req.ZipCode = lookup.ZipCode
		req.City = lookup.City
		req.State = lookup.State
		req.Lat = lookup.Lat
		req.Lng = lookup.Lng
	}
	if req.Lat == 0 && req.Lng == 0 {
		return RegistrationResult{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidRequest)
	}

	routeKey := util.MakeRouteKey(req.ZipCode, req.CarrierRoute)
	heuristic := EstimateHouseholds(req.CarrierRoute, req.State, req.ZipCode)

	rec := model.OptOutRecord{
		IdentityHash: util.HashAddress(req.Address),
		RouteKey:     routeKey,
		City:         req.City,
		State:        req.State,
		ApproxLoc:    util.ApproximateLocation(req.Lat, req.Lng),
		Email:        req.Email,
		CreatedAt:    time.Now().UTC(),
	}

	applied, err := s.ledger.ApplyOptOut(ctx, rec, heuristic)
	if err != nil {
		metrics.OptOutsRegistered.WithLabelValues("error").Inc()
		return RegistrationResult{}, err
	}

	res := RegistrationResult{
		ZipRoute:            routeKey,
		OptOutCount:         applied.NewCount,
		EstimatedHouseholds: applied.Households.Count,
		EstimateConfidence:  applied.Households.Confidence,
		PercentOptedOut:     DisplayPercent(applied.NewCount, applied.Households.Count),
		IsNewOptOut:         applied.Created,
		RouteType:           RouteTypeLabel(req.CarrierRoute),
	}

	if !applied.Created {
		metrics.OptOutsRegistered.WithLabelValues("duplicate").Inc()
		return res, nil
	}
	metrics.OptOutsRegistered.WithLabelValues("created").Inc()
	s.cache.Flush()

	prev := Percent(applied.PrevCount, applied.Households.Count)
	next := Percent(applied.NewCount, applied.Households.Count)
	if threshold, ok := CrossedMilestone(prev, next); ok {
		s.emitMilestone(ctx, routeKey, threshold, applied.NewCount)
		res.MilestoneReached = threshold
	}
	return res, nil
}

func (s *Service) emitMilestone(ctx context.Context, routeKey string, threshold, count int) {
	ev := model.MilestoneEvent{
		EventID:          uuid.NewString(),
		RouteKey:         routeKey,
		MilestonePercent: threshold,
		OptOutCount:      count,
		RecordedAt:       time.Now().UTC(),
	}
	if err := s.milestones.Publish(ctx, ev); err != nil {
		// Milestone delivery is best-effort; the registration stands.
		log.Printf("milestone publish %s@%d%%: %v", routeKey, threshold, err)
		return
	}
	metrics.MilestonesEmitted.WithLabelValues(strconv.Itoa(threshold)).Inc()
}

// RouteStats reads the aggregate for one route. A route with no activity
// returns a zero-state, not an error.
func (s *Service) RouteStats(ctx context.Context, routeKey string) (RouteStatsView, error) {
	stats, found, err := s.stats.GetRouteStats(ctx, routeKey)
	if err != nil {
		return RouteStatsView{}, err
	}
	if !found {
		return RouteStatsView{ZipRoute: routeKey}, nil
	}

	view := RouteStatsView{
		ZipRoute:            stats.RouteKey,
		ZipCode:             stats.ZipCode,
		CarrierRoute:        stats.CarrierRoute,
		City:                stats.City,
		State:               stats.State,
		RouteType:           RouteTypeLabel(stats.CarrierRoute),
		OptOutCount:         stats.OptOutCount,
		EstimatedHouseholds: stats.EstimatedHouseholds,
		EstimateConfidence:  stats.EstimateConfidence,
		PercentOptedOut:     DisplayPercent(stats.OptOutCount, stats.EstimatedHouseholds),
	}

	locs, err := s.ledger.ListApproxLocations(ctx, routeKey, s.locationLimit)
	if err != nil {
		// Map pins are decoration; stats still serve without them.
		log.Printf("list locations %s: %v", routeKey, err)
		return view, nil
	}
	view.Locations = locs
	return view, nil
}

// Leaderboard ranks active routes by the requested key. Totals always cover
// the full dataset, not just the returned page.
func (s *Service) Leaderboard(ctx context.Context, sortBy string, limit int) (LeaderboardView, error) {
	if sortBy != SortByPercent {
		sortBy = SortByCount
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("leaderboard:%s:%d", sortBy, limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(LeaderboardView), nil
	}

	candidates, err := s.stats.TopRoutesByCount(ctx, s.candidateLimit)
	if err != nil {
		return LeaderboardView{}, err
	}
	totals, err := s.stats.GlobalTotals(ctx)
	if err != nil {
		return LeaderboardView{}, err
	}

	view := LeaderboardView{
		Routes:       Rank(candidates, sortBy, limit),
		TotalOptOuts: totals.TotalOptOuts,
		ActiveRoutes: totals.ActiveRoutes,
	}
	s.cache.SetDefault(cacheKey, view)
	return view, nil
}
