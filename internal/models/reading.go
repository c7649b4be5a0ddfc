package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Hour categories for demand profiling. The numeric codes are part of the
// downstream feature contract and must not be reordered.
const (
	HourCategoryOffPeak     = "off_peak"
	HourCategoryOfficeHours = "office_hours"
	HourCategoryEveningPeak = "evening_peak"
)

// HourCategoryCode maps an hour category name to its numeric feature code.
var HourCategoryCode = map[string]int{
	HourCategoryOffPeak:     0,
	HourCategoryOfficeHours: 1,
	HourCategoryEveningPeak: 2,
}

// Reading represents a single per-region demand observation.
// Demand is a pointer because upstream sources deliver null for gaps.
// Unknown payload fields are retained in Extra and passed through unchanged.
type Reading struct {
	Region      string   `json:"region" db:"region"`
	TimestampMs int64    `json:"timestamp_ms" db:"timestamp_ms"`
	Demand      *float64 `json:"demand" db:"demand"`

	Extra map[string]json.RawMessage `json:"-" db:"-"`
}

// Time returns the reading timestamp as UTC wall-clock time.
func (r *Reading) Time() time.Time {
	return time.UnixMilli(r.TimestampMs).UTC()
}

// SameWindow reports whether two readings describe the same time window,
// i.e. share both timestamp and region. Such readings are updates of one
// logical observation, never distinct history entries.
func (r *Reading) SameWindow(other *Reading) bool {
	return r.TimestampMs == other.TimestampMs && r.Region == other.Region
}

// DemandValue returns the demand and whether it is present.
func (r *Reading) DemandValue() (float64, bool) {
	if r.Demand == nil {
		return 0, false
	}
	return *r.Demand, true
}

// ParseReading decodes a raw JSON record into a Reading, validating the
// fields the pipeline depends on. Structural problems (missing region,
// non-numeric timestamp) are returned as *ValidationError so the caller can
// decide on dead-letter handling; a null demand is not an error.
func ParseReading(data []byte) (*Reading, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{
			Field:   "payload",
			Value:   string(truncate(data, 256)),
			Message: "record is not valid JSON",
		}
	}

	reading := &Reading{}

	regionRaw, ok := raw["region"]
	if !ok {
		return nil, &ValidationError{
			Field:   "region",
			Message: "region is required",
		}
	}
	if err := json.Unmarshal(regionRaw, &reading.Region); err != nil || reading.Region == "" {
		return nil, &ValidationError{
			Field:   "region",
			Value:   string(regionRaw),
			Message: "region must be a non-empty string",
		}
	}

	tsRaw, ok := raw["timestamp_ms"]
	if !ok {
		return nil, &ValidationError{
			Field:   "timestamp_ms",
			Message: "timestamp_ms is required",
		}
	}
	if err := json.Unmarshal(tsRaw, &reading.TimestampMs); err != nil {
		return nil, &ValidationError{
			Field:   "timestamp_ms",
			Value:   string(tsRaw),
			Message: "timestamp_ms must be integer milliseconds since epoch",
		}
	}

	if demandRaw, ok := raw["demand"]; ok {
		if err := json.Unmarshal(demandRaw, &reading.Demand); err != nil {
			return nil, &ValidationError{
				Field:   "demand",
				Value:   string(demandRaw),
				Message: "demand must be a number or null",
			}
		}
	}

	// Everything else is passthrough.
	delete(raw, "region")
	delete(raw, "timestamp_ms")
	delete(raw, "demand")
	if len(raw) > 0 {
		reading.Extra = raw
	}

	return reading, nil
}

// TimeFeatures holds the calendar and cyclical encodings derived from a
// reading's timestamp.
type TimeFeatures struct {
	IsHoliday       int     `json:"is_holiday" db:"is_holiday"`
	HourCategory    string  `json:"hour_category" db:"hour_category"`
	HourCategoryNum int     `json:"hour_category_num" db:"hour_category_num"`
	HourSin         float64 `json:"hour_sin" db:"hour_sin"`
	HourCos         float64 `json:"hour_cos" db:"hour_cos"`
	DayOfWeekSin    float64 `json:"day_of_week_sin" db:"day_of_week_sin"`
	DayOfWeekCos    float64 `json:"day_of_week_cos" db:"day_of_week_cos"`
	MonthSin        float64 `json:"month_sin" db:"month_sin"`
	MonthCos        float64 `json:"month_cos" db:"month_cos"`
}

// RollingFeatures holds the trailing statistics and lag features computed
// over a region's history. Values follow the fallback policy: when the
// history is too short for a span or lag, the current reading's own demand
// is used so short histories degrade to "assume no change".
type RollingFeatures struct {
	FullMean   float64 `json:"full_mean" db:"full_mean"`
	FullMedian float64 `json:"full_median" db:"full_median"`
	Mean3      float64 `json:"mean_3" db:"mean_3"`
	Median3    float64 `json:"median_3" db:"median_3"`
	Mean24     float64 `json:"mean_24" db:"mean_24"`
	Median24   float64 `json:"median_24" db:"median_24"`
	Mean168    float64 `json:"mean_168" db:"mean_168"`
	Median168  float64 `json:"median_168" db:"median_168"`
	Lag1h      float64 `json:"lag_1h" db:"lag_1h"`
	Lag24h     float64 `json:"lag_24h" db:"lag_24h"`
	Lag168h    float64 `json:"lag_168h" db:"lag_168h"`
}

// EnrichedReading is a Reading augmented with time and rolling features.
// It is the record shape emitted downstream and stored in the feature group.
type EnrichedReading struct {
	Reading
	TimeFeatures
	RollingFeatures
}

// MarshalJSON flattens the enriched reading into a single JSON object,
// re-attaching passthrough fields. Known fields win over passthrough keys.
func (e *EnrichedReading) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Extra)+24)

	for k, v := range e.Extra {
		out[k] = v
	}

	out["region"] = e.Region
	out["timestamp_ms"] = e.TimestampMs
	out["demand"] = e.Demand

	for _, part := range []interface{}{e.TimeFeatures, e.RollingFeatures} {
		data, err := json.Marshal(part)
		if err != nil {
			return nil, fmt.Errorf("failed to flatten enriched reading: %w", err)
		}
		fields := make(map[string]json.RawMessage)
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to flatten enriched reading: %w", err)
		}
		for k, v := range fields {
			out[k] = v
		}
	}

	return json.Marshal(out)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
