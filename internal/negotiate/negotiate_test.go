package negotiate

import (
	"bytes"
	"strings"
	"testing"

	"stretchbot/internal/daytime"
	logx "stretchbot/pkg/logx"
)

func TestParseFormats(t *testing.T) {
	t.Parallel()
	n := New(DefaultTime, logx.Nop())
	tests := []struct {
		in   string
		want daytime.TimeOfDay
	}{
		{in: "11:30 AM", want: daytime.New(11, 30, 0)},
		{in: "11:30 am", want: daytime.New(11, 30, 0)},
		{in: "2:05 PM", want: daytime.New(14, 5, 0)},
		{in: "12:00 AM", want: daytime.New(0, 0, 0)},
		{in: "23:15", want: daytime.New(23, 15, 0)},
		{in: "9:45", want: daytime.New(9, 45, 0)},
		{in: "  14:00  ", want: daytime.New(14, 0, 0)},
		{in: "14:00:30", want: daytime.New(14, 0, 30)},
		{in: "14:00:30.250", want: daytime.New(14, 0, 30)},
		{in: "10:15:00-05:00", want: daytime.New(10, 15, 0)},
		{in: "10:15Z", want: daytime.New(10, 15, 0)},
		{in: "off", want: daytime.Off},
		{in: "OFF", want: daytime.Off},
		{in: "Off", want: daytime.Off},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			got := n.Parse(tt.in)
			if got.Defaulted {
				t.Fatalf("Parse(%q) fell back to default", tt.in)
			}
			if got.Time != tt.want {
				t.Fatalf("Parse(%q) = %v, want %v", tt.in, got.Time, tt.want)
			}
		})
	}
}

func TestParseFallsBackWithWarning(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	n := New(DefaultTime, logx.NewJSON(&buf, "debug"))

	got := n.Parse("not-a-time")
	if !got.Defaulted {
		t.Fatal("expected Defaulted")
	}
	if got.Time != daytime.New(11, 30, 0) {
		t.Fatalf("Time = %v, want 11:30", got.Time)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "not-a-time") {
		t.Fatalf("expected a warning mentioning the input, got %q", out)
	}
}

func TestCustomFallback(t *testing.T) {
	t.Parallel()
	n := New(daytime.New(15, 0, 0), logx.Nop())
	if got := n.Parse("whenever"); got.Time != daytime.New(15, 0, 0) {
		t.Fatalf("Time = %v, want 15:00", got.Time)
	}
	if got := New(daytime.Off, logx.Nop()).Parse("??"); got.Time != DefaultTime {
		t.Fatalf("Off fallback should mean DefaultTime, got %v", got.Time)
	}
}
