package optout

import (
	"sort"

	"github.com/quietroute/optout-api/pkg/model"
)

// Leaderboard sort keys.
const (
	SortByCount   = "count"
	SortByPercent = "percent"
)

// LeaderboardEntry is a RouteStats projection for ranked display.
type LeaderboardEntry struct {
	RouteKey            string  `json:"zipRoute"`
	ZipCode             string  `json:"zipCode"`
	CarrierRoute        string  `json:"carrierRoute"`
	City                string  `json:"city,omitempty"`
	State               string  `json:"state,omitempty"`
	RouteType           string  `json:"routeType"`
	OptOutCount         int     `json:"optOutCount"`
	EstimatedHouseholds int     `json:"estimatedHouseholds"`
	PercentOptedOut     float64 `json:"percentOptedOut"`
}

// Rank orders routes descending by the requested key and truncates to limit.
// Percent ordering compares unrounded ratios; the entries carry the rounded
// display value. Ties break on route key ascending so the order is stable
// across reads regardless of store iteration order.
func Rank(stats []model.RouteStats, sortBy string, limit int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(stats))
	raw := make(map[string]float64, len(stats))
	for _, s := range stats {
		if s.OptOutCount <= 0 {
			continue
		}
		raw[s.RouteKey] = Percent(s.OptOutCount, s.EstimatedHouseholds)
		entries = append(entries, LeaderboardEntry{
			RouteKey:            s.RouteKey,
			ZipCode:             s.ZipCode,
			CarrierRoute:        s.CarrierRoute,
			City:                s.City,
			State:               s.State,
			RouteType:           RouteTypeLabel(s.CarrierRoute),
			OptOutCount:         s.OptOutCount,
			EstimatedHouseholds: s.EstimatedHouseholds,
			PercentOptedOut:     DisplayPercent(s.OptOutCount, s.EstimatedHouseholds),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch sortBy {
		case SortByPercent:
			if raw[a.RouteKey] != raw[b.RouteKey] {
				return raw[a.RouteKey] > raw[b.RouteKey]
			}
		default:
			if a.OptOutCount != b.OptOutCount {
				return a.OptOutCount > b.OptOutCount
			}
		}
		return a.RouteKey < b.RouteKey
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
