package core

import (
	"fmt"
	"strconv"
	"time"
)

// MonthKey identifies a billing month as the literal string "YYYY-MM".
// Zero-padded keys compare correctly as strings, so MonthKey values order
// chronologically with plain < and >.
type MonthKey string

// ParseMonthKey validates and normalizes a YYYY-MM string.
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != 7 || s[4] != '-' {
		return "", fmt.Errorf("%w: month key %q is not YYYY-MM", ErrInvalidInput, s)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 1 {
		return "", fmt.Errorf("%w: month key %q has a bad year", ErrInvalidInput, s)
	}
	month, err := strconv.Atoi(s[5:])
	if err != nil || month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month key %q has a bad month", ErrInvalidInput, s)
	}
	return MonthKeyOf(year, month), nil
}

// MonthKeyOf builds a key from a year and a 1-based month. Out-of-range
// months normalize the way time.Date does, so month 13 of 2024 yields
// "2025-01" rather than a malformed key.
func MonthKeyOf(year, month int) MonthKey {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// MonthOf returns the key of the month containing t, evaluated in UTC.
func MonthOf(t time.Time) MonthKey {
	u := t.UTC()
	return MonthKeyOf(u.Year(), int(u.Month()))
}

func (m MonthKey) Validate() error {
	_, err := ParseMonthKey(string(m))
	return err
}

func (m MonthKey) Year() int {
	y, _ := strconv.Atoi(string(m)[:4])
	return y
}

func (m MonthKey) Month() int {
	n, _ := strconv.Atoi(string(m)[5:])
	return n
}

// Start is the first instant of the month in UTC.
func (m MonthKey) Start() time.Time {
	return time.Date(m.Year(), time.Month(m.Month()), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month, making
// [Start, End) the half-open window reports aggregate over.
func (m MonthKey) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Next is the following month, wrapping December into January of the next
// year.
func (m MonthKey) Next() MonthKey {
	return MonthKeyOf(m.Year(), m.Month()+1)
}

func (m MonthKey) Before(other MonthKey) bool { return m < other }
func (m MonthKey) After(other MonthKey) bool  { return m > other }

// MonthRange lists every key from from to to inclusive.
func MonthRange(from, to MonthKey) ([]MonthKey, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: month range %s..%s is inverted", ErrInvalidInput, from, to)
	}
	var months []MonthKey
	for m := from; !m.After(to); m = m.Next() {
		months = append(months, m)
	}
	return months, nil
}

// YearRange is the twelve keys of a calendar year.
func YearRange(year int) (MonthKey, MonthKey) {
	return MonthKeyOf(year, 1), MonthKeyOf(year, 12)
}
