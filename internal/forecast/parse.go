package forecast

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedPayload is reported when the payload is not valid JSON.
	ErrMalformedPayload = errors.New("forecast payload is not valid JSON")
	// ErrNotArray is reported when the payload is valid JSON but not an array.
	ErrNotArray = errors.New("forecast payload is not a JSON array")
)

// ElementError describes why one element of the payload was skipped.
type ElementError struct {
	Index int
	Field string
	Err   error
}

func (e ElementError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("element %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("element %d: field %s: %v", e.Index, e.Field, e.Err)
}

func (e ElementError) Unwrap() error { return e.Err }

// ParseResult is the outcome of parsing a forecast payload. Records is never nil.
// Err is set only when the payload as a whole was unusable; in that case Records
// is empty and the caller is expected to fall back to mock data.
type ParseResult struct {
	Records []ForecastRecord
	Skipped []ElementError
	Err     error
}

// ParseRecords parses raw JSON text into forecast records.
// Zone-less timestamps are interpreted in loc (UTC when loc is nil).
func ParseRecords(data []byte, loc *time.Location) ParseResult {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return ParseResult{Records: []ForecastRecord{}, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	return ParseValue(v, loc)
}

// ParseValue converts an already decoded JSON value into forecast records.
// Malformed elements are skipped and reported; they never abort the batch.
func ParseValue(v any, loc *time.Location) ParseResult {
	if loc == nil {
		loc = time.UTC
	}

	items, ok := v.([]any)
	if !ok {
		return ParseResult{Records: []ForecastRecord{}, Err: ErrNotArray}
	}

	res := ParseResult{Records: make([]ForecastRecord, 0, len(items))}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			res.Skipped = append(res.Skipped, ElementError{Index: i, Err: errors.New("not an object")})
			continue
		}

		rec, err := parseRecord(obj, loc)
		if err != nil {
			var fe fieldError
			if errors.As(err, &fe) {
				res.Skipped = append(res.Skipped, ElementError{Index: i, Field: fe.field, Err: fe.err})
			} else {
				res.Skipped = append(res.Skipped, ElementError{Index: i, Err: err})
			}
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

type fieldError struct {
	field string
	err   error
}

func (e fieldError) Error() string { return e.field + ": " + e.err.Error() }

func parseRecord(obj map[string]any, loc *time.Location) (ForecastRecord, error) {
	var (
		rec ForecastRecord
		err error
	)

	ints := []struct {
		name string
		dst  *int
	}{
		{"location_id", &rec.LocationID},
		{"actual_reading_id", &rec.ActualReadingID},
		{"prediction_id", &rec.PredictionID},
		{"hours_in_advance", &rec.HoursInAdvance},
	}
	for _, f := range ints {
		if *f.dst, err = coerceInt(obj[f.name]); err != nil {
			return rec, fieldError{f.name, err}
		}
	}
	if rec.HoursInAdvance < 0 {
		return rec, fieldError{"hours_in_advance", fmt.Errorf("lead time %d is negative", rec.HoursInAdvance)}
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"predicted_temperature", &rec.PredictedTemperature},
		{"actual_temperature", &rec.ActualTemperature},
		{"prediction_error", &rec.PredictionError},
		{"absolute_error", &rec.AbsoluteError},
	}
	for _, f := range floats {
		if *f.dst, err = coerceFloat(obj[f.name]); err != nil {
			return rec, fieldError{f.name, err}
		}
	}

	if rec.ForecastForHour, err = coerceTime(obj["forecast_for_hour"], loc); err != nil {
		return rec, fieldError{"forecast_for_hour", err}
	}
	if rec.ForecastMadeAt, err = coerceTime(obj["forecast_made_at"], loc); err != nil {
		return rec, fieldError{"forecast_made_at", err}
	}

	return rec, nil
}

// coerceInt accepts JSON numbers and numeric strings; fractions are truncated toward zero.
func coerceInt(v any) (int, error) {
	f, err := coerceFloat(v)
	if err != nil {
		return 0, err
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= 1<<63 || f < -1<<63 {
		return 0, fmt.Errorf("value %v out of range", f)
	}
	return int(math.Trunc(f)), nil
}

func coerceFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, errors.New("missing value")
	case json.Number:
		return parseNumber(string(x))
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return parseNumber(x)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return f, nil
}

// zonedLayouts carry their own offset; localLayouts are read in the configured location.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

func coerceTime(v any, loc *time.Location) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return time.Time{}, errors.New("missing value")
		}
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
	s = strings.TrimSpace(s)

	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
