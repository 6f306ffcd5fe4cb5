package forecast

import (
	"math"
	"time"
)

// Adapter turns forecast records into chart projections. Hour and weekday are
// extracted in the adapter's location; it never consults the process time zone.
type Adapter struct {
	loc *time.Location
}

// NewAdapter creates an Adapter for loc. A nil loc means UTC.
func NewAdapter(loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	return &Adapter{loc: loc}
}

// Location returns the time zone used for hour and weekday extraction.
func (a *Adapter) Location() *time.Location {
	return a.loc
}

// TimeSeries maps each record to one point, preserving input order.
func (a *Adapter) TimeSeries(records []ForecastRecord) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, 0, len(records))
	for _, r := range records {
		points = append(points, TimeSeriesPoint{
			Time:      FormatTime(r.ForecastForHour),
			HourOfDay: r.ForecastForHour.In(a.loc).Hour(),
			Actual:    r.ActualTemperature,
			Predicted: r.PredictedTemperature,
			Error:     r.AbsoluteError,
		})
	}
	return points
}

// ErrorHistogram counts occurrences of each exact AbsoluteError value.
// Buckets appear in first-seen order and are not binned into ranges.
func (a *Adapter) ErrorHistogram(records []ForecastRecord) []ErrorHistogramBucket {
	buckets := make([]ErrorHistogramBucket, 0)
	index := make(map[uint64]int)

	for _, r := range records {
		key := errorKey(r.AbsoluteError)
		if i, ok := index[key]; ok {
			buckets[i].Count++
			continue
		}
		index[key] = len(buckets)
		buckets = append(buckets, ErrorHistogramBucket{Error: r.AbsoluteError, Count: 1})
	}
	return buckets
}

// errorKey groups by bit pattern, folding -0 into 0 and every NaN into one key.
func errorKey(v float64) uint64 {
	switch {
	case v == 0:
		return 0
	case math.IsNaN(v):
		return math.Float64bits(math.NaN())
	default:
		return math.Float64bits(v)
	}
}

// Heatmap emits one cell per record. Cells sharing (day, hour) are not merged.
func (a *Adapter) Heatmap(records []ForecastRecord) []HeatmapCell {
	cells := make([]HeatmapCell, 0, len(records))
	for _, r := range records {
		t := r.ForecastForHour.In(a.loc)
		cells = append(cells, HeatmapCell{
			Day:   ShortWeekday(t.Weekday()),
			Hour:  t.Hour(),
			Error: r.AbsoluteError,
		})
	}
	return cells
}

// Project computes all three projections from the same record set.
func (a *Adapter) Project(records []ForecastRecord) Projections {
	return Projections{
		TimeSeries:        a.TimeSeries(records),
		ErrorDistribution: a.ErrorHistogram(records),
		Heatmap:           a.Heatmap(records),
	}
}

var utcAdapter = NewAdapter(time.UTC)

// ToTimeSeries is TimeSeries with UTC hour extraction.
func ToTimeSeries(records []ForecastRecord) []TimeSeriesPoint {
	return utcAdapter.TimeSeries(records)
}

// ToErrorHistogram is ErrorHistogram on the UTC adapter.
func ToErrorHistogram(records []ForecastRecord) []ErrorHistogramBucket {
	return utcAdapter.ErrorHistogram(records)
}

// ToHeatmap is Heatmap with UTC weekday and hour extraction.
func ToHeatmap(records []ForecastRecord) []HeatmapCell {
	return utcAdapter.Heatmap(records)
}
