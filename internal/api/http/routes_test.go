package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/forecastjournal/forecast-dashboard/internal/dashboard"
	"github.com/forecastjournal/forecast-dashboard/internal/forecast"
	"github.com/forecastjournal/forecast-dashboard/internal/gateway"
	"github.com/forecastjournal/forecast-dashboard/internal/store"
)

const upstreamRecords = `[
 {"location_id":2,"forecast_for_hour":"2024-01-01T05:00:00Z","actual_reading_id":1,"prediction_id":2,"forecast_made_at":"2024-01-01T00:00:00Z","hours_in_advance":5,"predicted_temperature":10.5,"actual_temperature":12.0,"prediction_error":1.5,"absolute_error":1.5},
 {"location_id":2,"forecast_for_hour":"2024-01-01T06:00:00Z","actual_reading_id":3,"prediction_id":4,"forecast_made_at":"2024-01-01T00:00:00Z","hours_in_advance":6,"predicted_temperature":11,"actual_temperature":12.0,"prediction_error":1,"absolute_error":1}
]`

// newTestApp wires the routes against a fake upstream forecast API.
func newTestApp(t *testing.T, upstream http.HandlerFunc) (*fiber.App, *dashboard.Feed) {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	gw := gateway.NewClient(srv.Client(), gateway.Config{BaseURL: srv.URL})
	feed := dashboard.NewFeed(10)
	ctrl, err := dashboard.New(gw, store.NewViewStore(), feed, dashboard.Options{
		Cities:      []string{"Najafgarh", "Dwarka"},
		DefaultCity: "Najafgarh",
		Seed:        1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	app := fiber.New()
	RegisterRoutes(app, ctrl, feed)
	return app, feed
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestDashboardStartsWithMockData(t *testing.T) {
	app, _ := newTestApp(t, http.NotFound)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body := decode[dashboardResponse](t, resp)
	if body.Source != store.SourceMock {
		t.Fatalf("expected mock source, got %q", body.Source)
	}
	if len(body.Projections.Heatmap) != 168 || len(body.Projections.ErrorDistribution) != 21 {
		t.Fatalf("unexpected mock shapes: %d heatmap cells, %d buckets",
			len(body.Projections.Heatmap), len(body.Projections.ErrorDistribution))
	}
}

func TestReloadUsesUpstreamRecords(t *testing.T) {
	app, feed := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(upstreamRecords))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/reload", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := decode[dashboardResponse](t, resp)
	if body.Source != store.SourceLive || body.Records != 2 {
		t.Fatalf("expected 2 live records, got %q/%d", body.Source, body.Records)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/charts/timeseries?limit=1", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	points := decode[[]forecast.TimeSeriesPoint](t, resp)
	if len(points) != 1 || points[0].Time != "2024-01-01T05:00:00.000Z" || points[0].HourOfDay != 5 {
		t.Fatalf("unexpected time series: %+v", points)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/charts/heatmap", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cells := decode[[]forecast.HeatmapCell](t, resp)
	if len(cells) != 2 || cells[0].Day != "Mon" {
		t.Fatalf("unexpected heatmap: %+v", cells)
	}

	if n := feed.Recent(0); len(n) != 1 || n[0].Title != "Data Loaded" {
		t.Fatalf("unexpected notifications: %+v", n)
	}
}

func TestReloadFailureFallsBack(t *testing.T) {
	app, feed := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/reload", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decode[dashboardResponse](t, resp)
	if body.Source != store.SourceMock || body.Error == "" {
		t.Fatalf("expected mock fallback with error, got %q / %q", body.Source, body.Error)
	}
	if n := feed.Recent(0); len(n) != 1 || n[0].Variant != dashboard.VariantDestructive {
		t.Fatalf("expected exactly one error notification, got %+v", n)
	}
}

func TestFilterValidation(t *testing.T) {
	app, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	cases := []string{
		`not json`,
		`{"city":"Dwarka"}`,
		`{"city":"Dwarka","start_date":"yesterday","end_date":"2024-01-08T00:00:00Z"}`,
		`{"city":"Paris","start_date":"2024-01-01T00:00:00Z","end_date":"2024-01-08T00:00:00Z"}`,
		`{"city":"Dwarka","start_date":"2024-01-08T00:00:00Z","end_date":"2024-01-01T00:00:00Z"}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/filter", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected status %d, got %d", body, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestFilterAppliesAndDownloads(t *testing.T) {
	app, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/home":
			_, _ = w.Write([]byte(upstreamRecords))
		case "/download":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("location_id\n2\n"))
		default:
			http.NotFound(w, r)
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/filter",
		strings.NewReader(`{"city":"Dwarka","start_date":"2024-01-01T00:00:00.000Z","end_date":"2024-01-08T00:00:00.000Z"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := decode[dashboardResponse](t, resp)
	if body.Filter.City != "Dwarka" || body.Source != store.SourceLive {
		t.Fatalf("unexpected view after filter: %+v", body.View.Filter)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/download", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	disposition := resp.Header.Get(fiber.HeaderContentDisposition)
	if !strings.Contains(disposition, "forecast_data_Dwarka_2024-01-01T00:00:00.000Z_2024-01-08T00:00:00.000Z.csv") {
		t.Fatalf("unexpected Content-Disposition: %q", disposition)
	}
	csv, _ := io.ReadAll(resp.Body)
	if string(csv) != "location_id\n2\n" {
		t.Fatalf("unexpected CSV body: %q", csv)
	}
}

func TestDownloadFailure(t *testing.T) {
	app, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/download", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestLimitValidation(t *testing.T) {
	app, _ := newTestApp(t, http.NotFound)

	for _, path := range []string{"/api/v1/charts/timeseries?limit=-1", "/api/v1/notifications?limit=abc"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestCities(t *testing.T) {
	app, _ := newTestApp(t, http.NotFound)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := decode[struct {
		Cities   []string `json:"cities"`
		Selected string   `json:"selected"`
	}](t, resp)
	if len(body.Cities) != 2 || body.Selected != "Najafgarh" {
		t.Fatalf("unexpected cities response: %+v", body)
	}
}
