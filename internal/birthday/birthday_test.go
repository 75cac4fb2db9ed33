package birthday

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// person is a minimal stand-in for a contact within the tests of this package.
type person struct {
	name string
	born civil.Date
}

func bornOf(p person) civil.Date {
	return p.born
}

func date(year int, month time.Month, day int) civil.Date {
	return civil.Date{Year: year, Month: month, Day: day}
}

func names(people []person) []string {
	result := make([]string, 0, len(people))
	for _, p := range people {
		result = append(result, p.name)
	}
	return result
}

// TestLeapDayInLeapYearAtWindowBoundary verifies that a February 29 birthday counts as that
// exact day in a leap year, and that a delta equal to the window size is still included.
func TestLeapDayInLeapYearAtWindowBoundary(t *testing.T) {
	today := date(2024, time.January, 1)
	born := date(1992, time.February, 29)

	assert.Equal(t, date(2024, time.February, 29), NextOccurrence(today, born))
	assert.Equal(t, 59, DaysUntil(today, born))

	people := []person{{name: "Leap", born: born}}
	assert.Equal(t, []string{"Leap"}, names(Upcoming(today, 59, people, bornOf)))
	assert.Empty(t, Upcoming(today, 58, people, bornOf))
}

// TestLeapDayPassedInNonLeapYear verifies that a February 29 birthday which was celebrated on
// February 28 of a non-leap year rolls over to February 29 of the following leap year.
func TestLeapDayPassedInNonLeapYear(t *testing.T) {
	today := date(2023, time.March, 1)
	born := date(1992, time.February, 29)

	assert.Equal(t, date(2024, time.February, 29), NextOccurrence(today, born))
	assert.Equal(t, 365, DaysUntil(today, born))
	assert.Empty(t, Upcoming(today, 3, []person{{name: "Leap", born: born}}, bornOf))
}

// TestLeapDayNormalizedToFebruary28 verifies that February 28 is used, not March 1, in both the
// current year and the following year.
func TestLeapDayNormalizedToFebruary28(t *testing.T) {
	born := date(2000, time.February, 29)

	assert.Equal(t, date(2023, time.February, 28), NextOccurrence(date(2023, time.February, 1), born))
	assert.Equal(t, 0, DaysUntil(date(2023, time.February, 28), born))
	assert.Equal(t, date(2025, time.February, 28), NextOccurrence(date(2024, time.March, 1), born))
	assert.Equal(t, date(2100, time.February, 28), NextOccurrence(date(2100, time.January, 1), born))
	assert.Equal(t, date(2000, time.February, 29), NextOccurrence(date(2000, time.January, 1), born))
}

// TestYearWraparound verifies that birthdays early in January are found when today is at the
// end of December, and that they are ordered by their distance.
func TestYearWraparound(t *testing.T) {
	today := date(2024, time.December, 30)
	people := []person{
		{name: "Fourth", born: date(1985, time.January, 4)},
		{name: "Second", born: date(1970, time.January, 2)},
		{name: "Summer", born: date(1990, time.July, 1)},
	}

	assert.Equal(t, 3, DaysUntil(today, people[1].born))
	assert.Equal(t, 5, DaysUntil(today, people[0].born))
	assert.Equal(t, []string{"Second", "Fourth"}, names(Upcoming(today, 7, people, bornOf)))
}

// TestZeroWindow verifies that a window of zero days returns only birthdays on today.
func TestZeroWindow(t *testing.T) {
	today := date(2024, time.June, 15)
	people := []person{
		{name: "Tomorrow", born: date(1990, time.June, 16)},
		{name: "Today", born: date(1980, time.June, 15)},
		{name: "Yesterday", born: date(1970, time.June, 14)},
	}

	assert.Equal(t, []string{"Today"}, names(Upcoming(today, 0, people, bornOf)))
}

// TestNegativeWindow verifies that a negative window never matches, not even today's birthday.
func TestNegativeWindow(t *testing.T) {
	today := date(2024, time.June, 15)
	people := []person{{name: "Today", born: date(1980, time.June, 15)}}

	assert.Empty(t, Upcoming(today, -1, people, bornOf))
}

// TestYesterdayIsAlmostAYearAway verifies that a birthday on the day before today is scheduled
// for the next year.
func TestYesterdayIsAlmostAYearAway(t *testing.T) {
	assert.Equal(t, 364, DaysUntil(date(2022, time.June, 15), date(1980, time.June, 14)))
	assert.Equal(t, 365, DaysUntil(date(2023, time.June, 15), date(1980, time.June, 14)))
	assert.Equal(t, 364, DaysUntil(date(2023, time.March, 1), date(1980, time.February, 28)))
}

// TestStableOrdering verifies that contacts with the same distance keep their input order.
func TestStableOrdering(t *testing.T) {
	today := date(2024, time.March, 1)
	people := []person{
		{name: "Anna", born: date(1990, time.March, 5)},
		{name: "Bert", born: date(1991, time.March, 3)},
		{name: "Cleo", born: date(1992, time.March, 5)},
		{name: "Dana", born: date(1993, time.March, 3)},
		{name: "Emil", born: date(1994, time.March, 1)},
	}

	result := Upcoming(today, 10, people, bornOf)
	assert.Equal(t, []string{"Emil", "Bert", "Dana", "Anna", "Cleo"}, names(result))
}

// TestIdempotent verifies that repeated calls with the same input return the same result and
// leave the input untouched.
func TestIdempotent(t *testing.T) {
	today := date(2024, time.November, 20)
	people := []person{
		{name: "Dirk", born: date(1974, time.November, 29)},
		{name: "Pavla", born: date(1980, time.January, 27)},
		{name: "David", born: date(2011, time.December, 11)},
		{name: "Adam", born: date(2009, time.March, 31)},
	}
	original := append([]person(nil), people...)

	first := Upcoming(today, 90, people, bornOf)
	second := Upcoming(today, 90, people, bornOf)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Dirk", "David", "Pavla"}, names(first))
	assert.Equal(t, original, people)
}

// TestEmptyInput verifies that no contacts yield an empty, non-nil result.
func TestEmptyInput(t *testing.T) {
	result := Upcoming(date(2024, time.June, 15), 7, []person(nil), bornOf)
	require.NotNil(t, result)
	assert.Empty(t, result)
}

// TestDaysUntilMatchesTimePackage compares the computed distance against an independent
// computation based on the time package, for every day of two consecutive years and a set of
// birth dates that are not February 29.
func TestDaysUntilMatchesTimePackage(t *testing.T) {
	births := []civil.Date{
		date(1974, time.November, 29),
		date(1980, time.January, 1),
		date(1999, time.December, 31),
		date(2001, time.February, 28),
		date(1960, time.March, 1),
		date(1988, time.July, 15),
	}
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < 731; offset++ {
		now := start.AddDate(0, 0, offset)
		today := civil.DateOf(now)
		for _, born := range births {
			next := time.Date(now.Year(), born.Month, born.Day, 0, 0, 0, 0, time.UTC)
			if next.Before(now) {
				next = time.Date(now.Year()+1, born.Month, born.Day, 0, 0, 0, 0, time.UTC)
			}
			expected := int(next.Sub(now).Hours() / 24)

			delta := DaysUntil(today, born)
			if !assert.Equal(t, expected, delta, "today %s, born %s", today, born) {
				return
			}
			assert.GreaterOrEqual(t, delta, 0)
			assert.Less(t, delta, 366)
		}
	}
}

// TestResultIsSortedAndWithinWindow checks the ordering and window properties over a year of
// start dates.
func TestResultIsSortedAndWithinWindow(t *testing.T) {
	var people []person
	for month := time.January; month <= time.December; month++ {
		people = append(people,
			person{name: month.String() + "-1", born: date(1970, month, 1)},
			person{name: month.String() + "-15", born: date(1980, month, 15)},
		)
	}
	people = append(people, person{name: "Leap", born: date(1996, time.February, 29)})

	for day := 0; day < 366; day += 5 {
		today := date(2023, time.January, 1).AddDays(day)
		result := Upcoming(today, 45, people, bornOf)
		previous := 0
		for _, p := range result {
			delta := DaysUntil(today, p.born)
			assert.GreaterOrEqual(t, delta, previous, "today %s", today)
			assert.LessOrEqual(t, delta, 45, "today %s", today)
			previous = delta
		}
	}
}
