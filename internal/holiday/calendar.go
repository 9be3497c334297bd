// Package holiday answers whether a date is excluded from stretch scheduling.
//
// A calendar covers exactly one year. Dates outside that year are never
// holidays; the table has to be replaced for a new year.
package holiday

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const dateLayout = "2006-01-02"

type date struct {
	y int
	m time.Month
	d int
}

type table struct {
	year  int
	dates map[date]string
}

// Calendar is safe for concurrent use; Replace swaps the table atomically.
type Calendar struct {
	t atomic.Pointer[table]
}

// Ontario2018 is the default table: Ontario statutory holidays for 2018.
var Ontario2018 = map[string]string{
	"2018-01-01": "New Year's Day",
	"2018-03-30": "Good Friday",
	"2018-04-02": "Easter Monday",
	"2018-05-21": "Victoria Day",
	"2018-07-02": "Canada Day",
	"2018-08-06": "Civic Holiday",
	"2018-09-03": "Labour Day",
	"2018-10-08": "Thanksgiving Day",
	"2018-11-12": "Remembrance Day",
	"2018-12-25": "Christmas Day",
	"2018-12-26": "Boxing Day",
}

// New builds a calendar for year from "YYYY-MM-DD" -> name entries.
// Every date must fall within year.
func New(year int, dates map[string]string) (*Calendar, error) {
	t, err := buildTable(year, dates)
	if err != nil {
		return nil, err
	}
	c := &Calendar{}
	c.t.Store(t)
	return c, nil
}

// Default returns the built-in 2018 calendar.
func Default() *Calendar {
	c, err := New(2018, Ontario2018)
	if err != nil {
		panic(err)
	}
	return c
}

// Replace swaps in a new year's table.
func (c *Calendar) Replace(year int, dates map[string]string) error {
	t, err := buildTable(year, dates)
	if err != nil {
		return err
	}
	c.t.Store(t)
	return nil
}

func buildTable(year int, dates map[string]string) (*table, error) {
	t := &table{year: year, dates: make(map[date]string, len(dates))}
	for raw, name := range dates {
		d, err := time.Parse(dateLayout, strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", raw, err)
		}
		if d.Year() != year {
			return nil, fmt.Errorf("holiday %q is outside year %d", raw, year)
		}
		t.dates[date{d.Year(), d.Month(), d.Day()}] = name
	}
	return t, nil
}

// IsHoliday reports whether day (taken in its own location) is in the table.
func (c *Calendar) IsHoliday(day time.Time) bool {
	_, ok := c.Lookup(day)
	return ok
}

// Lookup returns the holiday name for day, if any.
func (c *Calendar) Lookup(day time.Time) (string, bool) {
	t := c.t.Load()
	if t == nil {
		return "", false
	}
	y, m, d := day.Date()
	name, ok := t.dates[date{y, m, d}]
	return name, ok
}

// Year reports which year the current table covers.
func (c *Calendar) Year() int {
	if t := c.t.Load(); t != nil {
		return t.year
	}
	return 0
}
