package services

import (
	"time"
)

// HolidayCalendar decides whether a calendar date is a public holiday.
// The pipeline treats it as an injected collaborator so a service-backed
// calendar can replace the built-in one without touching the encoder.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// USFederalHolidays implements HolidayCalendar for the United States
// federal holiday schedule, including observed dates shifted off weekends.
type USFederalHolidays struct{}

// NewUSFederalHolidays creates the built-in US holiday calendar.
func NewUSFederalHolidays() *USFederalHolidays {
	return &USFederalHolidays{}
}

// IsHoliday reports whether date falls on a US federal holiday or its
// observed substitute. Only the year/month/day of date are considered.
func (c *USFederalHolidays) IsHoliday(date time.Time) bool {
	y, m, d := date.Date()
	// New Year's Day observed on a Saturday shifts to December 31 of the
	// prior year, so the next year's schedule must be checked too.
	for _, h := range append(federalHolidays(y), federalHolidays(y+1)...) {
		hy, hm, hd := h.Date()
		if hy == y && hm == m && hd == d {
			return true
		}
	}
	return false
}

// federalHolidays returns all federal holiday dates (observed) for a year.
func federalHolidays(year int) []time.Time {
	days := []time.Time{
		// New Year's Day
		observed(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),
		// Martin Luther King Jr. Day
		nthWeekday(year, time.January, time.Monday, 3),
		// Washington's Birthday
		nthWeekday(year, time.February, time.Monday, 3),
		// Memorial Day
		lastWeekday(year, time.May, time.Monday),
		// Independence Day
		observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)),
		// Labor Day
		nthWeekday(year, time.September, time.Monday, 1),
		// Columbus Day
		nthWeekday(year, time.October, time.Monday, 2),
		// Veterans Day
		observed(time.Date(year, time.November, 11, 0, 0, 0, 0, time.UTC)),
		// Thanksgiving
		nthWeekday(year, time.November, time.Thursday, 4),
		// Christmas Day
		observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)),
	}
	if year >= 2021 {
		// Juneteenth
		days = append(days, observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)))
	}
	return days
}

// observed shifts a fixed-date holiday to Friday when it lands on Saturday
// and to Monday when it lands on Sunday, matching federal observance rules.
func observed(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, -1)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	default:
		return date
	}
}

// nthWeekday returns the nth occurrence of a weekday in the given month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	date := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(date.Weekday()) + 7) % 7
	return date.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the final occurrence of a weekday in the given month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	date := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(date.Weekday()) - int(weekday) + 7) % 7
	return date.AddDate(0, 0, -offset)
}
