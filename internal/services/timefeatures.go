package services

import (
	"math"

	"demand-pipeline/internal/models"
)

// TimeFeatureEncoder derives calendar and cyclical features from reading
// timestamps. It is pure and stateless apart from the holiday calendar.
type TimeFeatureEncoder struct {
	holidays HolidayCalendar
}

// NewTimeFeatureEncoder creates an encoder using the given holiday calendar.
func NewTimeFeatureEncoder(holidays HolidayCalendar) *TimeFeatureEncoder {
	return &TimeFeatureEncoder{holidays: holidays}
}

// Encode computes the time feature set for a reading. All calendar fields
// are derived in UTC. Go's Weekday numbers Sunday as 0; the feature
// contract numbers Monday as 0, so the value is re-based before encoding.
func (e *TimeFeatureEncoder) Encode(reading *models.Reading) models.TimeFeatures {
	ts := reading.Time()

	hour := ts.Hour()
	dayOfWeek := (int(ts.Weekday()) + 6) % 7 // 0=Monday ... 6=Sunday
	month := int(ts.Month())

	features := models.TimeFeatures{
		HourCategory: hourCategory(hour, dayOfWeek),
		HourSin:      math.Sin(2 * math.Pi * float64(hour) / 24),
		HourCos:      math.Cos(2 * math.Pi * float64(hour) / 24),
		DayOfWeekSin: math.Sin(2 * math.Pi * float64(dayOfWeek) / 7),
		DayOfWeekCos: math.Cos(2 * math.Pi * float64(dayOfWeek) / 7),
		MonthSin:     math.Sin(2 * math.Pi * float64(month) / 12),
		MonthCos:     math.Cos(2 * math.Pi * float64(month) / 12),
	}
	features.HourCategoryNum = models.HourCategoryCode[features.HourCategory]

	if e.holidays.IsHoliday(ts) {
		features.IsHoliday = 1
	}

	return features
}

// hourCategory classifies an hour of day into demand categories.
// Weekends have no office-hours block.
func hourCategory(hour, dayOfWeek int) string {
	weekend := dayOfWeek >= 5 // 5=Saturday, 6=Sunday

	switch {
	case hour >= 18 && hour <= 22:
		return models.HourCategoryEveningPeak
	case !weekend && hour >= 9 && hour <= 17:
		return models.HourCategoryOfficeHours
	default:
		return models.HourCategoryOffPeak
	}
}
