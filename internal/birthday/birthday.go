// Package birthday computes which birthdays fall into an upcoming window of days.
//
// All functions work on plain calendar dates. Nothing in this package reads the system clock;
// callers pass in the date they consider to be today.
package birthday

import (
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// NextOccurrence returns the first date on or after today that has the month and day of born.
// A birthday on February 29 is celebrated on February 28 in years that are not leap years.
func NextOccurrence(today civil.Date, born civil.Date) civil.Date {
	candidate := occurrenceIn(today.Year, born)
	if candidate.Before(today) {
		candidate = occurrenceIn(today.Year+1, born)
	}
	return candidate
}

// DaysUntil returns the number of whole days from today until the next occurrence of born.
// The result is never negative.
func DaysUntil(today civil.Date, born civil.Date) int {
	return NextOccurrence(today, born).DaysSince(today)
}

// Upcoming returns the items whose next birthday lies within the inclusive range from today to
// today plus windowDays. The result is ordered by the number of days until the birthday; items
// with the same distance keep their relative order from the input. The input is not modified.
//
// A window of zero days matches only birthdays that fall on today. A negative window matches
// nothing.
func Upcoming[T any](today civil.Date, windowDays int, items []T, birthDateOf func(T) civil.Date) []T {
	type match struct {
		item  T
		delta int
	}
	var matches []match
	for _, item := range items {
		delta := DaysUntil(today, birthDateOf(item))
		if delta >= 0 && delta <= windowDays {
			matches = append(matches, match{item: item, delta: delta})
		}
	}
	slices.SortStableFunc(matches, func(a, b match) int {
		return a.delta - b.delta
	})

	result := make([]T, 0, len(matches))
	for _, m := range matches {
		result = append(result, m.item)
	}
	return result
}

// occurrenceIn builds the date of the birthday in the given year.
func occurrenceIn(year int, born civil.Date) civil.Date {
	day := born.Day
	if born.Month == time.February && born.Day == 29 && !isLeapYear(year) {
		day = 28
	}
	return civil.Date{Year: year, Month: born.Month, Day: day}
}

// isLeapYear reports whether year has a February 29 in the proleptic Gregorian calendar.
func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
