package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/forecastjournal/forecast-dashboard/internal/forecast"
	"github.com/forecastjournal/forecast-dashboard/internal/store"
)

var validate = validator.New()

// ErrInvalidFilter wraps every filter validation failure.
var ErrInvalidFilter = errors.New("invalid filter")

// Gateway is the upstream forecast API as seen by the controller.
type Gateway interface {
	FetchInitial(ctx context.Context) ([]forecast.ForecastRecord, error)
	FetchFiltered(ctx context.Context, f forecast.Filter) ([]forecast.ForecastRecord, error)
	Download(ctx context.Context, f forecast.Filter, w io.Writer) (string, error)
}

// Options configures a Controller.
type Options struct {
	Cities      []string
	DefaultCity string
	// MockDays is the length of the generated time series used as fallback.
	MockDays int
	// Location is the time zone for hours, weekdays and zone-less timestamps.
	Location *time.Location
	// Seed for the mock generator; zero picks a time-based seed.
	Seed int64
}

// Controller owns the dashboard state: the active filter and the current view.
// Each fetch supersedes the previous one; results of superseded fetches are dropped.
type Controller struct {
	gw       Gateway
	views    *store.ViewStore
	adapter  *forecast.Adapter
	mock     *forecast.MockGenerator
	notifier Notifier
	cities      []string
	defaultCity string
	mockDays    int

	mu       sync.Mutex
	filter   forecast.Filter
	filtered bool // last load used filter rather than the initial listing
	inflight int
	cancel   context.CancelFunc
	cancelID store.Generation
}

// New creates a Controller and commits a generated view so charts have data
// before the first fetch resolves.
func New(gw Gateway, views *store.ViewStore, notifier Notifier, opts Options) (*Controller, error) {
	if gw == nil {
		return nil, fmt.Errorf("dashboard: gateway is required")
	}
	if len(opts.Cities) == 0 {
		return nil, fmt.Errorf("dashboard: at least one city is required")
	}
	if opts.DefaultCity == "" {
		opts.DefaultCity = opts.Cities[0]
	}
	if !slices.Contains(opts.Cities, opts.DefaultCity) {
		return nil, fmt.Errorf("dashboard: default city %q is not in the city list", opts.DefaultCity)
	}
	if opts.MockDays <= 0 {
		opts.MockDays = 7
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}

	c := &Controller{
		gw:       gw,
		views:    views,
		adapter:  forecast.NewAdapter(opts.Location),
		mock:     forecast.NewMockGenerator(opts.Seed, opts.Location),
		notifier: notifier,
		cities:      slices.Clone(opts.Cities),
		defaultCity: opts.DefaultCity,
		mockDays:    opts.MockDays,
		filter:      forecast.DefaultFilter(opts.DefaultCity, time.Now().UTC()),
	}

	gen := views.Begin()
	if err := c.commitMock(gen, c.filter); err != nil {
		return nil, err
	}
	return c, nil
}

// Cities returns the selectable cities.
func (c *Controller) Cities() []string {
	return slices.Clone(c.cities)
}

// Filter returns the active filter.
func (c *Controller) Filter() forecast.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Loading reports whether a fetch is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// View returns a read-only snapshot of the current view.
func (c *Controller) View() (store.View, error) {
	return c.views.Current()
}

// ValidateFilter checks f against the struct rules and the configured cities.
func (c *Controller) ValidateFilter(f forecast.Filter) error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if !slices.Contains(c.cities, f.City) {
		return fmt.Errorf("%w: unknown city %q", ErrInvalidFilter, f.City)
	}
	return nil
}

// LoadInitial fetches the default record set and resets the active filter to
// the default one. Any failure, and an empty result, falls back to generated
// data. It returns the gateway error if there was one, or store.ErrStale if a
// newer request superseded this one.
func (c *Controller) LoadInitial(ctx context.Context) error {
	filter := forecast.DefaultFilter(c.defaultCity, time.Now().UTC())
	ctx, gen, done := c.begin(ctx, filter, false)
	defer done()

	records, err := c.gw.FetchInitial(ctx)
	if err != nil {
		if cerr := c.commitMock(gen, filter); cerr != nil {
			return c.dropStale("initial load", cerr)
		}
		log.Printf("ERROR: initial load failed: %v", err)
		c.notify("Data Fetch Error", "Failed to fetch forecast data. Using mock data instead.", VariantDestructive)
		return err
	}

	if len(records) == 0 {
		if cerr := c.commitMock(gen, filter); cerr != nil {
			return c.dropStale("initial load", cerr)
		}
		c.notify("Using Mock Data", "No data available from server. Using generated data.", VariantDestructive)
		return nil
	}

	if cerr := c.commitLive(gen, filter, records); cerr != nil {
		return c.dropStale("initial load", cerr)
	}
	c.notify("Data Loaded", fmt.Sprintf("Loaded %d records from the server.", len(records)), VariantDefault)
	return nil
}

// ApplyFilter makes f the active filter and fetches its records. A failed fetch
// falls back to generated data; an empty result keeps the previous view.
func (c *Controller) ApplyFilter(ctx context.Context, f forecast.Filter) error {
	if err := c.ValidateFilter(f); err != nil {
		return err
	}

	ctx, gen, done := c.begin(ctx, f, true)
	defer done()

	records, err := c.gw.FetchFiltered(ctx, f)
	if err != nil {
		if cerr := c.commitMock(gen, f); cerr != nil {
			return c.dropStale("filtered load", cerr)
		}
		log.Printf("ERROR: filtered load for %s failed: %v", f.City, err)
		c.notify("Data Fetch Error", "Failed to fetch filtered forecast data. Using mock data instead.", VariantDestructive)
		return err
	}

	if len(records) == 0 {
		if !c.views.IsLatest(gen) {
			return c.dropStale("filtered load", store.ErrStale)
		}
		c.notify("No Data Available", "No data available for the selected filters. Try a different selection.", VariantDestructive)
		return nil
	}

	if cerr := c.commitLive(gen, f, records); cerr != nil {
		return c.dropStale("filtered load", cerr)
	}
	c.notify("Data Loaded", fmt.Sprintf("Loaded %d records for %s from %s to %s.",
		len(records), f.City, f.StartDate.Format("Jan 2, 2006"), f.EndDate.Format("Jan 2, 2006")), VariantDefault)
	return nil
}

// Refresh repeats the last kind of load: the active filter if one was applied,
// the initial listing otherwise.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	filtered, f := c.filtered, c.filter
	c.mu.Unlock()

	if filtered {
		return c.ApplyFilter(ctx, f)
	}
	return c.LoadInitial(ctx)
}

// Download writes the CSV export for the active filter to w and returns its file name.
// It does not touch the current view.
func (c *Controller) Download(ctx context.Context, w io.Writer) (string, error) {
	f := c.Filter()

	name, err := c.gw.Download(ctx, f, w)
	if err != nil {
		log.Printf("ERROR: download for %s failed: %v", f.City, err)
		c.notify("Error", "Failed to download forecast data.", VariantDestructive)
		return "", err
	}
	c.notify("Success", "Data downloaded successfully", VariantDefault)
	return name, nil
}

// begin starts a new request for f: it takes a generation, makes f the active
// filter, cancels the request in flight and marks the controller as loading
// until done is called. The filter and the generation change together so the
// active filter always belongs to the latest request.
func (c *Controller) begin(parent context.Context, f forecast.Filter, filtered bool) (context.Context, store.Generation, func()) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	// Supersede before cancelling so the old request cannot commit in between.
	gen := c.views.Begin()
	c.filter = f
	c.filtered = filtered
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.cancelID = gen
	c.inflight++
	c.mu.Unlock()

	done := func() {
		cancel()
		c.mu.Lock()
		c.inflight--
		if c.cancelID == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
	}
	return ctx, gen, done
}

func (c *Controller) commitLive(gen store.Generation, f forecast.Filter, records []forecast.ForecastRecord) error {
	return c.views.Commit(gen, store.View{
		Filter:      f,
		Source:      store.SourceLive,
		Records:     len(records),
		Projections: c.adapter.Project(records),
	})
}

func (c *Controller) commitMock(gen store.Generation, f forecast.Filter) error {
	return c.views.Commit(gen, store.View{
		Filter:      f,
		Source:      store.SourceMock,
		Projections: c.mock.Projections(c.mockDays),
	})
}

func (c *Controller) dropStale(op string, err error) error {
	if errors.Is(err, store.ErrStale) {
		log.Printf("DEBUG: %s superseded by a newer request; result discarded", op)
	}
	return err
}

func (c *Controller) notify(title, message string, variant Variant) {
	c.notifier.Notify(newNotification(title, message, variant))
}
