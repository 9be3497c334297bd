package reminder

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stretchbot/internal/daytime"
	"stretchbot/internal/eventbus"
	logx "stretchbot/pkg/logx"
)

func newTestScheduler(t *testing.T, offsets ...Offset) *Scheduler {
	t.Helper()
	return New(Config{Offsets: offsets, Location: time.UTC}, nil, logx.Nop())
}

func at(h, m, s int) time.Time {
	return time.Date(2018, 12, 24, h, m, s, 0, time.UTC)
}

func TestScheduleNextBuildsRules(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	s.ScheduleNext(daytime.New(14, 0, 0))

	snap := s.Snapshot()
	want := []daytime.TimeOfDay{daytime.New(13, 0, 0), daytime.New(13, 45, 0), daytime.New(14, 0, 0)}
	if len(snap.Rules) != len(want) {
		t.Fatalf("rules = %d, want %d", len(snap.Rules), len(want))
	}
	for i, r := range snap.Rules {
		if r.FireAt != want[i] {
			t.Fatalf("rule %d FireAt = %v, want %v", i, r.FireAt, want[i])
		}
		if r.FiredToday {
			t.Fatalf("rule %d already fired", i)
		}
	}
}

func TestDueRemindersOncePerMinute(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	s.ScheduleNext(daytime.New(14, 0, 0))

	due := s.DueReminders(at(13, 0, 12))
	if len(due) != 1 || due[0].Offset != time.Hour {
		t.Fatalf("due = %+v, want the 60m rule", due)
	}
	if again := s.DueReminders(at(13, 0, 40)); len(again) != 0 {
		t.Fatalf("second call returned %d rules", len(again))
	}
	if none := s.DueReminders(at(13, 30, 0)); len(none) != 0 {
		t.Fatalf("no rule at 13:30, got %d", len(none))
	}
	// The zero offset still fires during the session minute.
	if last := s.DueReminders(at(14, 0, 30)); len(last) != 1 || last[0].Offset != 0 {
		t.Fatalf("session minute due = %+v", last)
	}
}

func TestNoCatchUpAfterSession(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	s.ScheduleNext(daytime.New(14, 0, 0))

	if due := s.DueReminders(at(14, 1, 0)); len(due) != 0 {
		t.Fatalf("past session returned %d rules", len(due))
	}
	for _, r := range s.Snapshot().Rules {
		if r.FiredToday {
			t.Fatalf("late call must not mark rules: %+v", r)
		}
	}
}

func TestDueRemindersUsesLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("EST", -5*3600)
	s := New(Config{Location: loc}, nil, logx.Nop())
	s.ScheduleNext(daytime.New(11, 30, 0))

	// 15:30 UTC is 10:30 EST, the 60m reminder.
	due := s.DueReminders(time.Date(2018, 12, 24, 15, 30, 0, 0, time.UTC))
	if len(due) != 1 || due[0].FireAt != daytime.New(10, 30, 0) {
		t.Fatalf("due = %+v", due)
	}
}

func TestResetDaily(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	s.ScheduleNext(daytime.New(14, 0, 0))
	_ = s.DueReminders(at(13, 0, 0))
	_ = s.DueReminders(at(13, 45, 0))

	s.ResetDaily()
	for _, r := range s.Snapshot().Rules {
		if r.FiredToday {
			t.Fatalf("rule still fired after reset: %+v", r)
		}
	}
	if due := s.DueReminders(at(13, 0, 0)); len(due) != 1 {
		t.Fatalf("after reset due = %d, want 1", len(due))
	}
}

func TestScheduleOffClearsRules(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	s.ScheduleNext(daytime.New(14, 0, 0))
	s.ScheduleNext(daytime.Off)

	if n := len(s.Snapshot().Rules); n != 0 {
		t.Fatalf("rules after off = %d", n)
	}
	if due := s.DueReminders(at(13, 0, 0)); len(due) != 0 {
		t.Fatalf("due after off = %d", len(due))
	}
	if !s.Session().IsOff() {
		t.Fatalf("session = %v, want off", s.Session())
	}
}

func TestCollidingOffsets(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t,
		Offset{Before: 15 * time.Minute, Template: "a {time}"},
		Offset{Before: 15 * time.Minute, Template: "b {time}"},
		Offset{Before: 0},
	)
	s.ScheduleNext(daytime.New(9, 0, 0))

	due := s.DueReminders(at(8, 45, 0))
	if len(due) != 2 {
		t.Fatalf("colliding due = %d, want 2", len(due))
	}
	if again := s.DueReminders(at(8, 45, 0)); len(again) != 0 {
		t.Fatalf("colliding rules returned twice")
	}
}

func TestConcurrentDueReminders(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	s.ScheduleNext(daytime.New(14, 0, 0))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(s.DueReminders(at(13, 45, 0)))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	if total != 1 {
		t.Fatalf("rule handed out %d times", total)
	}
}

func TestFireSubstitutesAndKeepsFired(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	s := New(Config{Location: time.UTC}, bus, logx.Nop())
	s.ScheduleNext(daytime.New(14, 0, 0))
	<-events // session.scheduled

	due := s.DueReminders(at(13, 0, 0))
	if len(due) != 1 {
		t.Fatalf("due = %d", len(due))
	}

	var got string
	err := s.Fire(due[0], func(msg string) error {
		got = msg
		return errors.New("chat unavailable")
	})
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	if !strings.Contains(got, "02:00 PM") || strings.Contains(got, Placeholder) {
		t.Fatalf("message = %q", got)
	}
	if again := s.DueReminders(at(13, 0, 0)); len(again) != 0 {
		t.Fatalf("failed delivery must not un-fire the rule")
	}

	ev := <-events
	f, ok := ev.Data.(Fired)
	if ev.Type != eventbus.TypeReminderFired || !ok || f.Err == nil {
		t.Fatalf("event = %+v", ev)
	}
}

func TestApplyKeepsFiredFlags(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	s.ScheduleNext(daytime.New(14, 0, 0))
	_ = s.DueReminders(at(13, 0, 0))

	s.Apply(Config{Location: time.UTC, Offsets: []Offset{{Before: time.Hour}, {Before: 30 * time.Minute}}})

	rules := s.Snapshot().Rules
	if len(rules) != 2 {
		t.Fatalf("rules = %d", len(rules))
	}
	if !rules[0].FiredToday || rules[1].FiredToday {
		t.Fatalf("fired flags not carried: %+v", rules)
	}
	if rules[1].Template != DefaultTemplate {
		t.Fatalf("empty template not defaulted")
	}
}
