package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aurelius/pulse/internal/aggregator"
	"github.com/aurelius/pulse/internal/model"
)

// fakeMetricsProvider returns canned views and records the arguments it
// received.
type fakeMetricsProvider struct {
	provider     *model.ProviderMetrics
	series       []model.AggregateCounter
	user         *model.UserIntegrationMetrics
	system       *model.SystemMetrics
	topErrors    []model.TopError
	err          error
	lastProvider string
	lastRange    model.TimeRange
	lastDays     int
	lastLimit    int
}

func (f *fakeMetricsProvider) GetProviderMetrics(ctx context.Context, provider string, timeRange model.TimeRange) (*model.ProviderMetrics, error) {
	f.lastProvider = provider
	f.lastRange = timeRange
	return f.provider, f.err
}

func (f *fakeMetricsProvider) GetProviderDailySeries(ctx context.Context, provider string, days int) ([]model.AggregateCounter, error) {
	f.lastProvider = provider
	f.lastDays = days
	return f.series, f.err
}

func (f *fakeMetricsProvider) GetUserIntegrationMetrics(ctx context.Context, userID, integrationID string) (*model.UserIntegrationMetrics, error) {
	return f.user, f.err
}

func (f *fakeMetricsProvider) GetSystemMetrics(ctx context.Context) (*model.SystemMetrics, error) {
	return f.system, f.err
}

func (f *fakeMetricsProvider) GetTopErrors(ctx context.Context, provider string, limit int) ([]model.TopError, error) {
	f.lastProvider = provider
	f.lastLimit = limit
	return f.topErrors, f.err
}

func newMetricsRouter(agg MetricsProvider) *chi.Mux {
	h := NewMetricsHandler(agg, testLogger())
	r := chi.NewRouter()
	r.Get("/providers/{provider}/metrics", h.GetProviderMetrics)
	r.Get("/providers/{provider}/daily", h.GetProviderDailySeries)
	r.Get("/users/{userID}/integrations/{integrationID}/metrics", h.GetUserIntegrationMetrics)
	r.Get("/system/metrics", h.GetSystemMetrics)
	r.Get("/errors/top", h.GetTopErrors)
	return r
}

func TestGetProviderMetrics_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeMetricsProvider{
		provider: &model.ProviderMetrics{
			Provider:      "jira",
			TimeRange:     model.Range7d,
			TotalRequests: 42,
			SuccessRate:   95.5,
			GeneratedAt:   time.Now().UTC(),
		},
	}
	router := newMetricsRouter(fake)

	req := httptest.NewRequest(http.MethodGet, "/providers/jira/metrics?range=7d", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if fake.lastProvider != "jira" || fake.lastRange != model.Range7d {
		t.Errorf("aggregator called with %q/%q", fake.lastProvider, fake.lastRange)
	}

	var view model.ProviderMetrics
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.TotalRequests != 42 || view.SuccessRate != 95.5 {
		t.Errorf("view = %+v", view)
	}
}

func TestGetProviderMetrics_DefaultRange(t *testing.T) {
	t.Parallel()

	fake := &fakeMetricsProvider{provider: &model.ProviderMetrics{}}
	router := newMetricsRouter(fake)

	req := httptest.NewRequest(http.MethodGet, "/providers/jira/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if fake.lastRange != model.Range24h {
		t.Errorf("range = %q, want default 24h", fake.lastRange)
	}
}

func TestGetProviderMetrics_InvalidRange(t *testing.T) {
	t.Parallel()

	router := newMetricsRouter(&fakeMetricsProvider{})

	req := httptest.NewRequest(http.MethodGet, "/providers/jira/metrics?range=90d", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec.Body); resp.Code != "INVALID_RANGE" {
		t.Errorf("code = %q, want INVALID_RANGE", resp.Code)
	}
}

func TestGetProviderMetrics_AggregatorFailure(t *testing.T) {
	t.Parallel()

	router := newMetricsRouter(&fakeMetricsProvider{err: errors.New("redis down")})

	req := httptest.NewRequest(http.MethodGet, "/providers/jira/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestGetProviderDailySeries_Days(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		query      string
		wantStatus int
		wantDays   int
	}{
		{"default", "", http.StatusOK, 7},
		{"explicit", "?days=14", http.StatusOK, 14},
		{"too large", "?days=60", http.StatusBadRequest, 0},
		{"zero", "?days=0", http.StatusBadRequest, 0},
		{"not a number", "?days=week", http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeMetricsProvider{series: []model.AggregateCounter{}}
			router := newMetricsRouter(fake)

			req := httptest.NewRequest(http.MethodGet, "/providers/jira/daily"+tc.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && fake.lastDays != tc.wantDays {
				t.Errorf("days = %d, want %d", fake.lastDays, tc.wantDays)
			}
		})
	}
}

func TestGetUserIntegrationMetrics_NotFound(t *testing.T) {
	t.Parallel()

	router := newMetricsRouter(&fakeMetricsProvider{err: aggregator.ErrIntegrationNotFound})

	req := httptest.NewRequest(http.MethodGet, "/users/u1/integrations/missing/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec.Body); resp.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", resp.Code)
	}
}

func TestGetUserIntegrationMetrics_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeMetricsProvider{
		user: &model.UserIntegrationMetrics{
			UserID:        "u1",
			IntegrationID: "i1",
			Provider:      "asana",
			TotalSyncs:    3,
		},
	}
	router := newMetricsRouter(fake)

	req := httptest.NewRequest(http.MethodGet, "/users/u1/integrations/i1/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var view model.UserIntegrationMetrics
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.Provider != "asana" || view.TotalSyncs != 3 {
		t.Errorf("view = %+v", view)
	}
}

func TestGetSystemMetrics_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeMetricsProvider{
		system: &model.SystemMetrics{TotalIntegrations: 8, IngestQueueDepth: 2},
	}
	router := newMetricsRouter(fake)

	req := httptest.NewRequest(http.MethodGet, "/system/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var view model.SystemMetrics
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.TotalIntegrations != 8 || view.IngestQueueDepth != 2 {
		t.Errorf("view = %+v", view)
	}
}

func TestGetTopErrors_LimitValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"default", "", http.StatusOK, 0},
		{"explicit", "?limit=25", http.StatusOK, 25},
		{"with provider filter", "?provider=jira&limit=5", http.StatusOK, 5},
		{"over cap", "?limit=500", http.StatusBadRequest, 0},
		{"negative", "?limit=-1", http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeMetricsProvider{topErrors: []model.TopError{}}
			router := newMetricsRouter(fake)

			req := httptest.NewRequest(http.MethodGet, "/errors/top"+tc.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && fake.lastLimit != tc.wantLimit {
				t.Errorf("limit = %d, want %d", fake.lastLimit, tc.wantLimit)
			}
		})
	}
}
