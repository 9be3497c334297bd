package holiday

import (
	"testing"
	"time"
)

func TestDefaultCalendar(t *testing.T) {
	t.Parallel()
	c := Default()
	tests := []struct {
		day  time.Time
		want bool
	}{
		{day: time.Date(2018, 12, 25, 9, 30, 0, 0, time.UTC), want: true},
		{day: time.Date(2018, 12, 26, 0, 0, 0, 0, time.UTC), want: true},
		{day: time.Date(2018, 12, 24, 9, 30, 0, 0, time.UTC), want: false},
		// Year scoped: next year's New Year's Day is not in the table.
		{day: time.Date(2019, 1, 1, 9, 30, 0, 0, time.UTC), want: false},
	}
	for _, tt := range tests {
		if got := c.IsHoliday(tt.day); got != tt.want {
			t.Fatalf("IsHoliday(%s) = %v, want %v", tt.day.Format(dateLayout), got, tt.want)
		}
	}
	if name, _ := c.Lookup(time.Date(2018, 7, 2, 0, 0, 0, 0, time.UTC)); name != "Canada Day" {
		t.Fatalf("Lookup = %q", name)
	}
}

func TestNewRejectsOtherYears(t *testing.T) {
	t.Parallel()
	if _, err := New(2019, map[string]string{"2018-12-25": "Christmas Day"}); err == nil {
		t.Fatal("expected error for a date outside the calendar year")
	}
	if _, err := New(2019, map[string]string{"25/12/2019": "Christmas Day"}); err == nil {
		t.Fatal("expected error for a malformed date")
	}
}

func TestReplaceSwapsTable(t *testing.T) {
	t.Parallel()
	c := Default()
	if err := c.Replace(2019, map[string]string{"2019-01-01": "New Year's Day"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if c.Year() != 2019 {
		t.Fatalf("Year = %d", c.Year())
	}
	if !c.IsHoliday(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected 2019-01-01 to be a holiday after Replace")
	}
	if c.IsHoliday(time.Date(2018, 12, 25, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("old table still answering after Replace")
	}
}
