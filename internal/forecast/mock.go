package forecast

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	mockErrorSamples = 1000
	mockBinWidth     = 0.5
	mockErrorMin     = -5.0
	mockErrorMax     = 5.0
)

// MockGenerator produces pre-shaped projections for when no live data is available.
// It is safe for concurrent use.
type MockGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	loc *time.Location
	now func() time.Time
}

// NewMockGenerator creates a generator seeded with seed. Hours and weekdays are
// reported in loc (UTC when nil).
func NewMockGenerator(seed int64, loc *time.Location) *MockGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &MockGenerator{
		rnd: rand.New(rand.NewSource(seed)),
		loc: loc,
		now: time.Now,
	}
}

// WithClock overrides the generator's notion of "now".
func (g *MockGenerator) WithClock(now func() time.Time) *MockGenerator {
	g.now = now
	return g
}

// uniform returns a sample in [lo, hi). Caller holds g.mu.
func (g *MockGenerator) uniform(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}

// TimeSeries returns days*24 hourly points starting now. Actual follows a slow
// sinusoid with noise; predicted adds independent noise on top of actual.
func (g *MockGenerator) TimeSeries(days int) []TimeSeriesPoint {
	g.mu.Lock()
	defer g.mu.Unlock()

	if days < 0 {
		days = 0
	}
	start := g.now()
	points := make([]TimeSeriesPoint, 0, days*24)

	for i := 0; i < days*24; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)

		actual := 15 + 10*math.Sin(float64(i)/24*math.Pi/3.5) + g.uniform(-1.5, 1.5)
		predicted := actual + g.uniform(-3, 3)

		points = append(points, TimeSeriesPoint{
			Time:      FormatTime(ts),
			HourOfDay: ts.In(g.loc).Hour(),
			Actual:    round(actual, 1),
			Predicted: round(predicted, 1),
			Error:     round(predicted-actual, 1),
		})
	}
	return points
}

// ErrorDistribution draws samples in [-5, 5) and counts them into fixed 0.5-wide
// bins. All 21 bins from -5.0 to 5.0 are returned in ascending order, empty ones included.
func (g *MockGenerator) ErrorDistribution() []ErrorHistogramBucket {
	g.mu.Lock()
	defer g.mu.Unlock()

	nbins := int((mockErrorMax-mockErrorMin)/mockBinWidth) + 1
	buckets := make([]ErrorHistogramBucket, nbins)
	for i := range buckets {
		buckets[i].Error = mockErrorMin + float64(i)*mockBinWidth
	}

	for n := 0; n < mockErrorSamples; n++ {
		sample := g.uniform(mockErrorMin, mockErrorMax)
		i := int(math.Floor((sample - mockErrorMin) / mockBinWidth))
		if i >= 0 && i < nbins {
			buckets[i].Count++
		}
	}
	return buckets
}

// Heatmap returns one cell for every weekday and hour. Night hours carry a
// higher bias, midday a lower one, and weekends a little extra.
func (g *MockGenerator) Heatmap() []HeatmapCell {
	g.mu.Lock()
	defer g.mu.Unlock()

	cells := make([]HeatmapCell, 0, 7*24)
	for day := time.Sunday; day <= time.Saturday; day++ {
		for hour := 0; hour < 24; hour++ {
			bias := slotBias(day, hour)
			cells = append(cells, HeatmapCell{
				Day:   ShortWeekday(day),
				Hour:  hour,
				Error: round(math.Abs(bias+g.uniform(0, 2.5)), 2),
			})
		}
	}
	return cells
}

func slotBias(day time.Weekday, hour int) float64 {
	var bias float64
	switch {
	case hour < 6:
		bias = 0.5
	case hour > 18:
		bias = 0.7
	case hour > 10 && hour < 14:
		bias = -0.3
	}
	if day == time.Sunday || day == time.Saturday {
		bias += 0.2
	}
	return bias
}

// Projections returns all three mock projections.
func (g *MockGenerator) Projections(days int) Projections {
	return Projections{
		TimeSeries:        g.TimeSeries(days),
		ErrorDistribution: g.ErrorDistribution(),
		Heatmap:           g.Heatmap(),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
