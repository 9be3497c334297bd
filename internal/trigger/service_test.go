package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "stretchbot/pkg/logx"
)

func TestValidateSpec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		spec string
		ok   bool
	}{
		{"0 30 9 * * MON-FRI", true},
		{"0 * * * * MON-FRI", true},
		{"30 9 * * MON-FRI", true},
		{"@every 1m", true},
		{"", false},
		{"61 * * * *", false},
		{"every day", false},
	}
	for _, tt := range tests {
		err := ValidateSpec(tt.spec)
		if (err == nil) != tt.ok {
			t.Fatalf("ValidateSpec(%q) err=%v, want ok=%v", tt.spec, err, tt.ok)
		}
	}
}

func TestAddCronReplacesByName(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	noop := func(context.Context) error { return nil }

	if err := s.AddCron("ask", "0 30 9 * * MON-FRI", time.Second, noop); err != nil {
		t.Fatalf("AddCron: %v", err)
	}
	if err := s.AddCron("ask", "0 0 10 * * MON-FRI", time.Second, noop); err != nil {
		t.Fatalf("AddCron replace: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Entries) != 1 || snap.Entries[0].Spec != "0 0 10 * * MON-FRI" {
		t.Fatalf("entries = %+v", snap.Entries)
	}
	if snap.Entries[0].Next.IsZero() {
		t.Fatalf("next run not computed before start")
	}
	if err := s.AddCron("bad", "nope", 0, noop); err == nil {
		t.Fatalf("expected invalid spec error")
	}
	if !s.Remove("ask") || s.Remove("ask") {
		t.Fatalf("Remove should report once")
	}
}

func TestJobsRunWithTimeout(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	ran := make(chan bool, 1)
	err := s.AddCron("tick", "@every 1s", 50*time.Millisecond, func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		select {
		case ran <- hasDeadline:
		default:
		}
		return errors.New("ignored")
	})
	if err != nil {
		t.Fatalf("AddCron: %v", err)
	}
	select {
	case hasDeadline := <-ran:
		if !hasDeadline {
			t.Fatalf("job context has no deadline")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("job never ran")
	}
}

func TestRunNowAndApplyTimezone(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	called := false
	_ = s.AddCron("reset", "0 1 1 * * MON-FRI", 0, func(context.Context) error { called = true; return nil })

	if err := s.RunNow(context.Background(), "reset"); err != nil || !called {
		t.Fatalf("RunNow err=%v called=%v", err, called)
	}
	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Fatalf("expected unknown schedule error")
	}

	s.Apply(Config{Timezone: "Not/AZone"})
	if s.Location() != time.Local {
		t.Fatalf("invalid tz should fall back to Local")
	}
}
