package forecast

import (
	"time"
)

// ForecastRecord is one predicted/actual temperature pair for a location and target hour.
// AbsoluteError is expected to equal |PredictionError| but nothing here enforces it.
type ForecastRecord struct {
	LocationID           int       `json:"location_id"`
	ForecastForHour      time.Time `json:"forecast_for_hour"`
	ActualReadingID      int       `json:"actual_reading_id"`
	PredictionID         int       `json:"prediction_id"`
	ForecastMadeAt       time.Time `json:"forecast_made_at"`
	HoursInAdvance       int       `json:"hours_in_advance"`
	PredictedTemperature float64   `json:"predicted_temperature"`
	ActualTemperature    float64   `json:"actual_temperature"`
	PredictionError      float64   `json:"prediction_error"`
	AbsoluteError        float64   `json:"absolute_error"`
}

// TimeSeriesPoint feeds the predicted vs. actual line chart.
type TimeSeriesPoint struct {
	Time      string  `json:"time"` // ISO-8601, always UTC
	HourOfDay int     `json:"hour"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
	Error     float64 `json:"error"`
}

// ErrorHistogramBucket is one bar of the error distribution chart.
type ErrorHistogramBucket struct {
	Error float64 `json:"error"`
	Count int     `json:"count"`
}

// HeatmapCell is one (weekday, hour) point of the error heatmap.
type HeatmapCell struct {
	Day   string  `json:"day"`
	Hour  int     `json:"hour"`
	Error float64 `json:"error"`
}

// Projections bundles the three chart-ready views of a record set.
type Projections struct {
	TimeSeries        []TimeSeriesPoint      `json:"timeSeries"`
	ErrorDistribution []ErrorHistogramBucket `json:"errorDistribution"`
	Heatmap           []HeatmapCell          `json:"heatmap"`
}

// Clone returns a deep copy so callers can hand out read-only snapshots.
func (p Projections) Clone() Projections {
	return Projections{
		TimeSeries:        cloneSlice(p.TimeSeries),
		ErrorDistribution: cloneSlice(p.ErrorDistribution),
		Heatmap:           cloneSlice(p.Heatmap),
	}
}

// cloneSlice never returns nil so empty projections encode as [] rather than null.
func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// timeLayout matches the millisecond ISO-8601 form the chart front end expects.
const timeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in UTC with millisecond precision, e.g. 2024-01-01T05:00:00.000Z.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ShortWeekday returns the three-letter English weekday name used by the heatmap.
func ShortWeekday(d time.Weekday) string {
	return d.String()[:3]
}
