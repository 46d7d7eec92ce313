package model

import "time"

// Estimate sources, ordered by precedence. A verified count always wins and
// is never replaced by a heuristic or default value.
const (
	EstimateSourceVerified  = "verified"
	EstimateSourceHeuristic = "heuristic"
	EstimateSourceDefault   = "default"
)

// Confidence tiers for household estimates.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// HouseholdEstimate is a tagged household count. Source records where the
// number came from so the precedence rule (verified > heuristic > default)
// can be applied without nullable-field guesswork.
type HouseholdEstimate struct {
	Count      int    `json:"count" firestore:"count"`
	Source     string `json:"source" firestore:"source"`
	Confidence string `json:"confidence" firestore:"confidence"`
}

// GeoPoint is a coarsened coordinate pair safe for public display.
type GeoPoint struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

// OptOutRecord is the ledger document stored in the `opt_outs` collection,
// keyed by the address identity hash. The raw address is never stored.
type OptOutRecord struct {
	IdentityHash string    `json:"identityHash" firestore:"identityHash"`
	RouteKey     string    `json:"routeKey" firestore:"routeKey"`
	City         string    `json:"city,omitempty" firestore:"city,omitempty"`
	State        string    `json:"state,omitempty" firestore:"state,omitempty"`
	ApproxLoc    GeoPoint  `json:"approxLoc" firestore:"approxLoc"`
	Email        string    `json:"email,omitempty" firestore:"email,omitempty"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
}

// RouteStats is the per-route aggregate stored in the `route_stats`
// collection, keyed by route key ({zip}-{carrierRoute}). OptOutCount is
// monotonically non-decreasing and equals the number of ledger records for
// the route.
type RouteStats struct {
	RouteKey            string    `json:"routeKey" firestore:"routeKey"`
	ZipCode             string    `json:"zipCode" firestore:"zipCode"`
	CarrierRoute        string    `json:"carrierRoute" firestore:"carrierRoute"`
	City                string    `json:"city,omitempty" firestore:"city,omitempty"`
	State               string    `json:"state,omitempty" firestore:"state,omitempty"`
	OptOutCount         int       `json:"optOutCount" firestore:"optOutCount"`
	EstimatedHouseholds int       `json:"estimatedHouseholds" firestore:"estimatedHouseholds"`
	EstimateSource      string    `json:"estimateSource,omitempty" firestore:"estimateSource,omitempty"`
	EstimateConfidence  string    `json:"estimateConfidence,omitempty" firestore:"estimateConfidence,omitempty"`
	LastUpdated         time.Time `json:"lastUpdated" firestore:"lastUpdated"`
}

// MilestoneEvent is an outbox document written to `milestone_events` when a
// route's opt-out percentage first reaches a threshold. The document ID is
// {routeKey}_{percent}, so each pair fires at most once.
type MilestoneEvent struct {
	EventID          string    `json:"eventId" firestore:"eventId"`
	RouteKey         string    `json:"routeKey" firestore:"routeKey"`
	MilestonePercent int       `json:"milestonePercent" firestore:"milestonePercent"`
	OptOutCount      int       `json:"optOutCount" firestore:"optOutCount"`
	RecordedAt       time.Time `json:"recordedAt" firestore:"recordedAt"`
}

// VerifiedHouseholds is a document in `verified_households`, keyed by route
// key. Rows are loaded by the seed-households tool from USPS route data.
type VerifiedHouseholds struct {
	RouteKey   string    `json:"routeKey" firestore:"routeKey"`
	Households int       `json:"households" firestore:"households"`
	LoadedAt   time.Time `json:"loadedAt" firestore:"loadedAt"`
}

// RouteLookup is the resolver's view of an address: the carrier route it
// belongs to plus display fields.
type RouteLookup struct {
	CarrierRoute     string  `json:"carrierRoute"`
	ZipCode          string  `json:"zipCode"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	FormattedAddress string  `json:"formattedAddress"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}

// GlobalTotals summarizes activity across every route, independent of any
// leaderboard page.
type GlobalTotals struct {
	TotalOptOuts int `json:"totalOptOuts"`
	ActiveRoutes int `json:"activeRoutes"`
}
