// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package calendar implements the wall-clock arithmetic used to stamp
// outgoing messages and to apply time-sync offsets received from the
// network: leap-year test, day-of-week computation, and variable-radix
// rollover of datetime components.
package calendar

// Component identifies a datetime component in rollover order, least
// significant first.
type Component int

const (
	Second Component = iota
	Minute
	Hour
	Day
	Month
)

var componentMins = [5]int{0, 0, 0, 1, 1}

// Day entry unused; see Modulus.
var componentMaxes = [5]int{60, 60, 24, 31, 12}

var daysPerMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Month keys for the day-of-week computation, January first.
var monthKeys = [12]int{1, 4, 4, 0, 2, 5, 0, 3, 6, 1, 4, 6}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DayOfWeek computes the day of week (0 = Sunday) for a date. The
// algorithm is valid for years 2000-2099; outside that range it still
// returns a value in 0..6 but the value is not meaningful.
func DayOfWeek(day, month, year int) int {
	if month < 1 || month > 12 {
		return 0
	}
	dow := day + monthKeys[month-1]
	if (month == 1 || month == 2) && IsLeapYear(year) {
		dow--
	}
	// One off for the 2000-2099 century key, one to shift Sat=0 to Sun=0.
	dow -= 2
	y := year % 100
	dow += y + y/4
	dow %= 7
	if dow < 0 {
		dow += 7
	}
	return dow
}

// DaysIn returns the number of days in a month. Month values outside
// 1..12 wrap into the adjacent year, so DaysIn(0, 2024) is December 2023.
func DaysIn(month, year int) int {
	for month < 1 {
		month += 12
		year--
	}
	for month > 12 {
		month -= 12
		year++
	}
	days := daysPerMonth[month-1]
	if month == 2 && IsLeapYear(year) {
		days++
	}
	return days
}

// Modulus returns the exclusive rollover modulus for a component. The
// day modulus depends on the month and leap-year status.
func Modulus(c Component, month, year int) int {
	if c == Day {
		return DaysIn(month, year)
	}
	return componentMaxes[c]
}
