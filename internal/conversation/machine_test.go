package conversation

import (
	"testing"
	"time"
)

func TestStartStop(t *testing.T) {
	t.Parallel()
	m := New()
	const ctx Key = "42"

	if m.IsOn(ctx) {
		t.Fatal("new context should be idle")
	}
	m.Start(ctx, "confirmTime")
	if !m.IsOn(ctx) {
		t.Fatal("expected conversation on after Start")
	}
	if h, ok := m.Pending(ctx); !ok || h != "confirmTime" {
		t.Fatalf("Pending = %q, %v", h, ok)
	}
	m.Stop(ctx)
	if m.IsOn(ctx) {
		t.Fatal("expected idle after Stop")
	}
	m.Stop(ctx) // idempotent
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
}

func TestStartOverwrites(t *testing.T) {
	t.Parallel()
	m := New()
	m.Start("a", "confirmTime")
	m.Start("a", "other")
	if h, _ := m.Pending("a"); h != "other" {
		t.Fatalf("Pending = %q, want last write to win", h)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestNextRearms(t *testing.T) {
	t.Parallel()
	m := New()
	base := time.Date(2018, 12, 24, 9, 30, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	if m.Next("a") {
		t.Fatal("Next on idle context should report false")
	}
	if m.IsOn("a") {
		t.Fatal("Next must not start a conversation")
	}

	m.Start("a", "confirmTime")
	now = base.Add(5 * time.Minute)
	if !m.Next("a") {
		t.Fatal("Next on pending context should report true")
	}
	st := m.Get("a")
	if st.NextHandler != "confirmTime" || !st.StartedAt.Equal(now) {
		t.Fatalf("state after Next = %+v", st)
	}
}

func TestContextsAreIndependent(t *testing.T) {
	t.Parallel()
	m := New()
	m.Start("a", "confirmTime")
	if m.IsOn("b") {
		t.Fatal("conversation leaked into another context")
	}
}
