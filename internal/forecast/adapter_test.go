package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(at time.Time, actual, predicted, absErr float64) ForecastRecord {
	return ForecastRecord{
		LocationID:           1,
		ForecastForHour:      at,
		ForecastMadeAt:       at.Add(-5 * time.Hour),
		HoursInAdvance:       5,
		PredictedTemperature: predicted,
		ActualTemperature:    actual,
		PredictionError:      actual - predicted,
		AbsoluteError:        absErr,
	}
}

func TestToTimeSeries_SampleRecord(t *testing.T) {
	res := ParseRecords([]byte(sampleRecordJSON), time.UTC)
	require.Len(t, res.Records, 1)

	points := ToTimeSeries(res.Records)
	require.Equal(t, []TimeSeriesPoint{{
		Time:      "2024-01-01T05:00:00.000Z",
		HourOfDay: 5,
		Actual:    12.0,
		Predicted: 10.5,
		Error:     1.5,
	}}, points)
}

func TestTimeSeries_PreservesOrderAndLength(t *testing.T) {
	base := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	records := []ForecastRecord{
		record(base.Add(5*time.Hour), 10, 11, 1),
		record(base, 12, 12, 0),
		record(base.Add(2*time.Hour), 8, 5, 3),
	}

	points := ToTimeSeries(records)
	require.Len(t, points, len(records))
	for i, p := range points {
		assert.Equal(t, FormatTime(records[i].ForecastForHour), p.Time)
		assert.Equal(t, records[i].AbsoluteError, p.Error)
		assert.GreaterOrEqual(t, p.HourOfDay, 0)
		assert.LessOrEqual(t, p.HourOfDay, 23)
	}
	assert.Equal(t, 3, points[0].HourOfDay)
}

func TestAdapter_UsesConfiguredLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	at := time.Date(2024, 1, 6, 20, 0, 0, 0, time.UTC) // Saturday 20:00 UTC, Sunday 01:30 IST

	a := NewAdapter(ist)
	ts := a.TimeSeries([]ForecastRecord{record(at, 1, 1, 0)})
	hm := a.Heatmap([]ForecastRecord{record(at, 1, 1, 0)})

	assert.Equal(t, "2024-01-06T20:00:00.000Z", ts[0].Time, "time is always rendered in UTC")
	assert.Equal(t, 1, ts[0].HourOfDay)
	assert.Equal(t, HeatmapCell{Day: "Sun", Hour: 1, Error: 0}, hm[0])

	utc := ToHeatmap([]ForecastRecord{record(at, 1, 1, 0)})
	assert.Equal(t, HeatmapCell{Day: "Sat", Hour: 20, Error: 0}, utc[0])
}

func TestToErrorHistogram_ExactValues(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []ForecastRecord{
		record(at, 0, 0, 1.23),
		record(at, 0, 0, 1.24),
		record(at, 0, 0, 1.23),
		record(at, 0, 0, 0),
		record(at, 0, 0, math.Copysign(0, -1)),
		record(at, 0, 0, 0.9999999999999982),
	}

	buckets := ToErrorHistogram(records)
	assert.Equal(t, []ErrorHistogramBucket{
		{Error: 1.23, Count: 2},
		{Error: 1.24, Count: 1},
		{Error: 0, Count: 2},
		{Error: 0.9999999999999982, Count: 1},
	}, buckets)

	total := 0
	for _, b := range buckets {
		total += b.Count
		found := false
		for _, r := range records {
			if r.AbsoluteError == b.Error {
				found = true
				break
			}
		}
		assert.True(t, found, "bucket %v not present in input", b.Error)
	}
	assert.Equal(t, len(records), total)
}

func TestToErrorHistogram_Empty(t *testing.T) {
	buckets := ToErrorHistogram(nil)
	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
}

func TestToHeatmap_NoAggregation(t *testing.T) {
	monday := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	records := []ForecastRecord{
		record(monday, 0, 0, 1),
		record(monday, 0, 0, 2),
		record(monday.AddDate(0, 0, 1).Add(3*time.Hour), 0, 0, 3),
	}

	cells := ToHeatmap(records)
	require.Len(t, cells, 3)
	assert.Equal(t, HeatmapCell{Day: "Mon", Hour: 9, Error: 1}, cells[0])
	assert.Equal(t, HeatmapCell{Day: "Mon", Hour: 9, Error: 2}, cells[1])
	assert.Equal(t, HeatmapCell{Day: "Tue", Hour: 12, Error: 3}, cells[2])

	days := map[string]bool{"Sun": true, "Mon": true, "Tue": true, "Wed": true, "Thu": true, "Fri": true, "Sat": true}
	for _, c := range cells {
		assert.True(t, days[c.Day])
	}
}

func TestProject(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []ForecastRecord{record(at, 1, 2, 1), record(at.Add(time.Hour), 3, 1, 2)}

	p := NewAdapter(nil).Project(records)
	assert.Len(t, p.TimeSeries, 2)
	assert.Len(t, p.ErrorDistribution, 2)
	assert.Len(t, p.Heatmap, 2)

	c := p.Clone()
	c.TimeSeries[0].Actual = 99
	assert.Equal(t, 1.0, p.TimeSeries[0].Actual)
}
