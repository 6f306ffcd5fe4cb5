package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/forecastjournal/forecast-dashboard/internal/forecast"
)

// Config configures a Client.
type Config struct {
	BaseURL string

	// RPS and Burst bound outbound calls; RPS <= 0 disables the limiter.
	RPS   float64
	Burst int

	Backoff BackoffConfig

	// Location is used for zone-less timestamps in upstream payloads.
	Location *time.Location
}

// Client talks to the forecast API: record listing, filtered listing and CSV export.
// It reports failures as *Error and never presents them to the user itself.
type Client struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	loc     *time.Location
}

// NewClient creates a Client using the shared HTTP client.
func NewClient(client *http.Client, cfg Config) *Client {
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:  client,
			Limiter: limiter,
			Backoff: cfg.Backoff,
		},
		circuit: newBreaker("forecast-api"),
		loc:     loc,
	}
}

// filterBody is the POST /home payload.
type filterBody struct {
	City      string `json:"city"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// downloadBody is the POST /download payload. The upstream spells the date keys
// differently from /home.
type downloadBody struct {
	City      string `json:"city"`
	StartDate string `json:"start_Date"`
	EndDate   string `json:"end_Date"`
}

// FetchInitial lists the default record set (GET /home).
func (c *Client) FetchInitial(ctx context.Context) ([]forecast.ForecastRecord, error) {
	const op = "fetch initial"

	build := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/home", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
	return c.fetchRecords(ctx, op, build)
}

// FetchFiltered lists records for a city and date range (POST /home).
func (c *Client) FetchFiltered(ctx context.Context, f forecast.Filter) ([]forecast.ForecastRecord, error) {
	const op = "fetch filtered"

	body, err := json.Marshal(filterBody{
		City:      f.City,
		StartDate: forecast.FormatTime(f.StartDate),
		EndDate:   forecast.FormatTime(f.EndDate),
	})
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Err: err}
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/home", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
	return c.fetchRecords(ctx, op, build)
}

func (c *Client) fetchRecords(ctx context.Context, op string, build func() (*http.Request, error)) ([]forecast.ForecastRecord, error) {
	resp, err := doRequest(ctx, c.httpCfg, c.circuit, build)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, &Error{Op: op, Kind: KindDecode, Err: err}
	}

	res := forecast.ParseValue(payload, c.loc)
	if res.Err != nil {
		log.Printf("INFO: %s: %v; treating as empty result", op, res.Err)
	}
	if len(res.Skipped) > 0 {
		log.Printf("INFO: %s: skipped %d malformed records (first: %v)", op, len(res.Skipped), res.Skipped[0])
	}
	return res.Records, nil
}

// DownloadFilename is the name the exported CSV is saved under.
func DownloadFilename(f forecast.Filter) string {
	return fmt.Sprintf("forecast_data_%s_%s_%s.csv",
		f.City, forecast.FormatTime(f.StartDate), forecast.FormatTime(f.EndDate))
}

// Download streams the CSV export for f into w (POST /download) and returns the
// file name it should be saved as.
func (c *Client) Download(ctx context.Context, f forecast.Filter, w io.Writer) (string, error) {
	const op = "download"

	body, err := json.Marshal(downloadBody{
		City:      f.City,
		StartDate: forecast.FormatTime(f.StartDate),
		EndDate:   forecast.FormatTime(f.EndDate),
	})
	if err != nil {
		return "", &Error{Op: op, Kind: KindTransport, Err: err}
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/download", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := doRequest(ctx, c.httpCfg, c.circuit, build)
	if err != nil {
		return "", classify(op, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("copy body: %w", err)}
	}
	return DownloadFilename(f), nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func classify(op string, err error) *Error {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return &Error{Op: op, Kind: KindStatus, Status: se.code, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Op: op, Kind: KindCanceled, Err: err}
	case errors.Is(err, errUnavailable):
		return &Error{Op: op, Kind: KindUnavailable, Err: err}
	default:
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
}
