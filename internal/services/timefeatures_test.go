package services

import (
	"math"
	"testing"
	"time"

	"demand-pipeline/internal/models"
)

func readingAt(ts time.Time) *models.Reading {
	demand := 100.0
	return &models.Reading{
		Region:      "CAL",
		TimestampMs: ts.UnixMilli(),
		Demand:      &demand,
	}
}

func TestTimeFeatureEncoder_HourCategory(t *testing.T) {
	encoder := NewTimeFeatureEncoder(NewUSFederalHolidays())

	tests := []struct {
		name     string
		ts       time.Time
		want     string
		wantCode int
	}{
		{
			name:     "weekday office hours",
			ts:       time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC), // Wednesday
			want:     models.HourCategoryOfficeHours,
			wantCode: 1,
		},
		{
			name:     "weekday evening peak",
			ts:       time.Date(2024, 7, 3, 19, 0, 0, 0, time.UTC),
			want:     models.HourCategoryEveningPeak,
			wantCode: 2,
		},
		{
			name:     "weekend evening peak still applies",
			ts:       time.Date(2024, 7, 6, 19, 0, 0, 0, time.UTC), // Saturday
			want:     models.HourCategoryEveningPeak,
			wantCode: 2,
		},
		{
			name:     "weekend midday has no office hours",
			ts:       time.Date(2024, 7, 6, 10, 0, 0, 0, time.UTC), // Saturday
			want:     models.HourCategoryOffPeak,
			wantCode: 0,
		},
		{
			name:     "weekday early morning",
			ts:       time.Date(2024, 7, 3, 8, 0, 0, 0, time.UTC),
			want:     models.HourCategoryOffPeak,
			wantCode: 0,
		},
		{
			name:     "office hours start boundary",
			ts:       time.Date(2024, 7, 3, 9, 0, 0, 0, time.UTC),
			want:     models.HourCategoryOfficeHours,
			wantCode: 1,
		},
		{
			name:     "office hours end boundary",
			ts:       time.Date(2024, 7, 3, 17, 0, 0, 0, time.UTC),
			want:     models.HourCategoryOfficeHours,
			wantCode: 1,
		},
		{
			name:     "evening peak start boundary",
			ts:       time.Date(2024, 7, 3, 18, 0, 0, 0, time.UTC),
			want:     models.HourCategoryEveningPeak,
			wantCode: 2,
		},
		{
			name:     "evening peak end boundary",
			ts:       time.Date(2024, 7, 3, 22, 0, 0, 0, time.UTC),
			want:     models.HourCategoryEveningPeak,
			wantCode: 2,
		},
		{
			name:     "late night off peak",
			ts:       time.Date(2024, 7, 3, 23, 0, 0, 0, time.UTC),
			want:     models.HourCategoryOffPeak,
			wantCode: 0,
		},
		{
			name:     "sunday midday off peak",
			ts:       time.Date(2024, 7, 7, 12, 0, 0, 0, time.UTC), // Sunday
			want:     models.HourCategoryOffPeak,
			wantCode: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features := encoder.Encode(readingAt(tt.ts))
			if features.HourCategory != tt.want {
				t.Errorf("HourCategory = %v, want %v", features.HourCategory, tt.want)
			}
			if features.HourCategoryNum != tt.wantCode {
				t.Errorf("HourCategoryNum = %v, want %v", features.HourCategoryNum, tt.wantCode)
			}
		})
	}
}

func TestTimeFeatureEncoder_CyclicalEncodings(t *testing.T) {
	encoder := NewTimeFeatureEncoder(NewUSFederalHolidays())

	// Midnight on a Monday in January: every cycle is at its origin except
	// month, which is 1-based.
	features := encoder.Encode(readingAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	if !almostEqual(features.HourSin, 0) || !almostEqual(features.HourCos, 1) {
		t.Errorf("hour encoding = (%v, %v), want (0, 1)", features.HourSin, features.HourCos)
	}
	if !almostEqual(features.DayOfWeekSin, 0) || !almostEqual(features.DayOfWeekCos, 1) {
		t.Errorf("day-of-week encoding = (%v, %v), want (0, 1) for Monday", features.DayOfWeekSin, features.DayOfWeekCos)
	}
	wantMonthSin := math.Sin(2 * math.Pi / 12)
	if !almostEqual(features.MonthSin, wantMonthSin) {
		t.Errorf("MonthSin = %v, want %v", features.MonthSin, wantMonthSin)
	}

	// 06:00 is a quarter turn around the hour cycle.
	features = encoder.Encode(readingAt(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)))
	if !almostEqual(features.HourSin, 1) || !almostEqual(features.HourCos, 0) {
		t.Errorf("hour encoding at 06:00 = (%v, %v), want (1, 0)", features.HourSin, features.HourCos)
	}

	// Sunday is day 6 under the Monday-based numbering.
	features = encoder.Encode(readingAt(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)))
	wantSin := math.Sin(2 * math.Pi * 6 / 7)
	wantCos := math.Cos(2 * math.Pi * 6 / 7)
	if !almostEqual(features.DayOfWeekSin, wantSin) || !almostEqual(features.DayOfWeekCos, wantCos) {
		t.Errorf("day-of-week encoding for Sunday = (%v, %v), want (%v, %v)",
			features.DayOfWeekSin, features.DayOfWeekCos, wantSin, wantCos)
	}
}

func TestTimeFeatureEncoder_HolidayFlag(t *testing.T) {
	encoder := NewTimeFeatureEncoder(NewUSFederalHolidays())

	holiday := encoder.Encode(readingAt(time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)))
	if holiday.IsHoliday != 1 {
		t.Errorf("IsHoliday on July 4 = %v, want 1", holiday.IsHoliday)
	}

	ordinary := encoder.Encode(readingAt(time.Date(2024, 7, 5, 12, 0, 0, 0, time.UTC)))
	if ordinary.IsHoliday != 0 {
		t.Errorf("IsHoliday on July 5 = %v, want 0", ordinary.IsHoliday)
	}
}
