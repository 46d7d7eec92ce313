package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quietroute/optout-api/internal/business/optout"
	"github.com/quietroute/optout-api/pkg/model"
	"github.com/quietroute/optout-api/pkg/util"
)

type memStore struct {
	records map[string]model.OptOutRecord
	stats   map[string]model.RouteStats
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]model.OptOutRecord),
		stats:   make(map[string]model.RouteStats),
	}
}

func (m *memStore) ApplyOptOut(ctx context.Context, rec model.OptOutRecord, heuristic model.HouseholdEstimate) (optout.ApplyResult, error) {
	stats := m.stats[rec.RouteKey]
	if _, dup := m.records[rec.IdentityHash]; dup {
		return optout.ApplyResult{PrevCount: stats.OptOutCount, NewCount: stats.OptOutCount, Households: heuristic, Stats: stats}, nil
	}
	if stats.RouteKey == "" {
		zip, carrier, _ := util.SplitRouteKey(rec.RouteKey)
		stats = model.RouteStats{RouteKey: rec.RouteKey, ZipCode: zip, CarrierRoute: carrier}
	}
	res := optout.ApplyResult{Created: true, PrevCount: stats.OptOutCount, NewCount: stats.OptOutCount + 1, Households: heuristic}
	stats.OptOutCount = res.NewCount
	stats.EstimatedHouseholds = heuristic.Count
	stats.EstimateSource = heuristic.Source
	stats.EstimateConfidence = heuristic.Confidence
	res.Stats = stats
	m.records[rec.IdentityHash] = rec
	m.stats[rec.RouteKey] = stats
	return res, nil
}

func (m *memStore) ListApproxLocations(ctx context.Context, routeKey string, limit int) ([]model.GeoPoint, error) {
	var out []model.GeoPoint
	for _, rec := range m.records {
		if rec.RouteKey == routeKey && len(out) < limit {
			out = append(out, rec.ApproxLoc)
		}
	}
	return out, nil
}

func (m *memStore) GetRouteStats(ctx context.Context, routeKey string) (model.RouteStats, bool, error) {
	s, ok := m.stats[routeKey]
	return s, ok, nil
}

func (m *memStore) TopRoutesByCount(ctx context.Context, limit int) ([]model.RouteStats, error) {
	var out []model.RouteStats
	for _, s := range m.stats {
		if s.OptOutCount > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) GlobalTotals(ctx context.Context) (model.GlobalTotals, error) {
	var t model.GlobalTotals
	for _, s := range m.stats {
		if s.OptOutCount > 0 {
			t.ActiveRoutes++
			t.TotalOptOuts += s.OptOutCount
		}
	}
	return t, nil
}

type nopSink struct{}

func (nopSink) Publish(ctx context.Context, ev model.MilestoneEvent) error { return nil }

func newTestRouter() (*gin.Engine, *memStore) {
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	svc := optout.NewService(store, store, nopSink{}, nil, optout.Options{CacheTTL: time.Millisecond})
	return NewRouter(svc, "*"), store
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	w := postJSON(t, router, "/api/opt-outs", map[string]any{
		"address":      "123 Main St",
		"zipCode":      "80202",
		"carrierRoute": "C001",
		"city":         "Denver",
		"state":        "CO",
		"latitude":     39.7392,
		"longitude":    -104.9903,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		ZipRoute    string `json:"zipRoute"`
		OptOutCount int    `json:"optOutCount"`
		IsNewOptOut bool   `json:"isNewOptOut"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ZipRoute != "80202-C001" || resp.OptOutCount != 1 || !resp.IsNewOptOut {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegisterEndpointMissingAddress(t *testing.T) {
	router, _ := newTestRouter()
	w := postJSON(t, router, "/api/opt-outs", map[string]any{"zipCode": "80202"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRouteStatsEndpointMissingParam(t *testing.T) {
	router, _ := newTestRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/route-stats", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRouteStatsEndpointUnknownRoute(t *testing.T) {
	router, _ := newTestRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/route-stats?zipRoute=00000-X000", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		OptOutCount     int     `json:"optOutCount"`
		PercentOptedOut float64 `json:"percentOptedOut"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OptOutCount != 0 || resp.PercentOptedOut != 0 {
		t.Fatalf("expected zero-state, got %+v", resp)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	for _, addr := range []string{"1 Main St", "2 Main St", "3 Main St"} {
		w := postJSON(t, router, "/api/opt-outs", map[string]any{
			"address":      addr,
			"zipCode":      "80202",
			"carrierRoute": "C001",
			"latitude":     39.7392,
			"longitude":    -104.9903,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("register %s: status %d", addr, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=10&sortBy=count", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Routes       []map[string]any `json:"routes"`
		TotalOptOuts int              `json:"totalOptOuts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Routes) != 1 || resp.TotalOptOuts != 3 {
		t.Fatalf("unexpected leaderboard: %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
