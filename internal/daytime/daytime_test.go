package daytime

import (
	"testing"
	"time"
)

func TestAddWrapsMidnight(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   TimeOfDay
		d    time.Duration
		want TimeOfDay
	}{
		{name: "back an hour", in: New(14, 0, 0), d: -time.Hour, want: New(13, 0, 0)},
		{name: "back past midnight", in: New(0, 30, 0), d: -time.Hour, want: New(23, 30, 0)},
		{name: "forward past midnight", in: New(23, 50, 0), d: 20 * time.Minute, want: New(0, 10, 0)},
		{name: "off stays off", in: Off, d: time.Hour, want: Off},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Add(tt.d); got != tt.want {
				t.Fatalf("Add = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrettyAndString(t *testing.T) {
	t.Parallel()
	if got := New(14, 0, 0).Pretty(); got != "02:00 PM" {
		t.Fatalf("Pretty = %q", got)
	}
	if got := New(9, 5, 0).Pretty(); got != "09:05 AM" {
		t.Fatalf("Pretty = %q", got)
	}
	if got := Off.Pretty(); got != "off" {
		t.Fatalf("Pretty(Off) = %q", got)
	}
	if got := New(23, 15, 7).String(); got != "23:15:07" {
		t.Fatalf("String = %q", got)
	}
}

func TestTruncateAndFromTime(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ts := time.Date(2018, 12, 24, 13, 0, 42, 0, loc)
	got := FromTime(ts)
	if got.Truncate() != New(13, 0, 0) {
		t.Fatalf("Truncate = %v", got.Truncate())
	}
	if on := got.On(ts); !on.Equal(ts) {
		t.Fatalf("On = %v, want %v", on, ts)
	}
}
