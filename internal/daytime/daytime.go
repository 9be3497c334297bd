// Package daytime provides a wall-clock time-of-day without a date.
package daytime

import (
	"fmt"
	"time"
)

const day = 24 * 60 * 60

// TimeOfDay is a wall-clock time in seconds since midnight.
type TimeOfDay int

// Off means "no session today". It compares before every real time.
const Off TimeOfDay = -1

// PrettyLayout renders times the way reminders show them ("02:00 PM").
const PrettyLayout = "03:04 PM"

func New(hour, minute, second int) TimeOfDay {
	return TimeOfDay(((hour*60+minute)*60 + second) % day)
}

// FromTime takes the wall clock of t in its own location.
func FromTime(t time.Time) TimeOfDay {
	return New(t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) IsOff() bool { return t < 0 }

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) / 60 % 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Truncate drops the seconds.
func (t TimeOfDay) Truncate() TimeOfDay {
	if t.IsOff() {
		return t
	}
	return t - t%60
}

// Add shifts t by d, wrapping around midnight. Off stays Off.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	if t.IsOff() {
		return t
	}
	v := (int(t) + int(d/time.Second)) % day
	if v < 0 {
		v += day
	}
	return TimeOfDay(v)
}

// On places t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, date.Location())
}

// Pretty formats t as "hh:mm AM"; Off renders as "off".
func (t TimeOfDay) Pretty() string {
	if t.IsOff() {
		return "off"
	}
	return t.On(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)).Format(PrettyLayout)
}

func (t TimeOfDay) String() string {
	if t.IsOff() {
		return "off"
	}
	if s := t.Second(); s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), s)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}
