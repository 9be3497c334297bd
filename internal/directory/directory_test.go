package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "stretchbot/internal/transport"
	logx "stretchbot/pkg/logx"
)

type fakeResolver struct {
	mu    sync.Mutex
	known map[string]int64
	calls int
}

func (f *fakeResolver) ResolveChat(_ context.Context, username string) (kit.ChatInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	id, ok := f.known[username]
	if !ok {
		return kit.ChatInfo{}, errors.New("Bad Request: chat not found")
	}
	return kit.ChatInfo{ID: id, Username: username}, nil
}

func TestResolveAliasesAndIDs(t *testing.T) {
	t.Parallel()
	d, err := New(Config{Aliases: map[string]string{"#eng": "-100200:7"}}, nil, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	got, err := d.Resolve(ctx, "#ENG")
	if err != nil || got != (kit.ChatTarget{ChatID: -100200, ThreadID: 7}) {
		t.Fatalf("alias = %+v err=%v", got, err)
	}
	got, err = d.Resolve(ctx, "12345")
	if err != nil || got.ChatID != 12345 {
		t.Fatalf("numeric = %+v err=%v", got, err)
	}
	if _, err := d.Resolve(ctx, "@nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown without resolver err = %v", err)
	}
	if _, err := New(Config{Aliases: map[string]string{"#x": "abc"}}, nil, logx.Nop()); err == nil {
		t.Fatalf("expected bad alias error")
	}
}

func TestResolveCachesWithTTL(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{known: map[string]int64{"alice": 42}}
	d, _ := New(Config{TTL: time.Minute}, r, logx.Nop())
	now := time.Date(2018, 12, 24, 9, 30, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := d.Resolve(ctx, "@alice")
		if err != nil || got.ChatID != 42 {
			t.Fatalf("Resolve = %+v err=%v", got, err)
		}
	}
	if r.calls != 1 {
		t.Fatalf("resolver calls = %d, want 1", r.calls)
	}

	now = now.Add(2 * time.Minute)
	_, _ = d.Resolve(ctx, "@alice")
	if r.calls != 2 {
		t.Fatalf("expired entry not refreshed, calls = %d", r.calls)
	}

	d.Invalidate("@alice")
	_, _ = d.Resolve(ctx, "@alice")
	if r.calls != 3 {
		t.Fatalf("invalidate ignored, calls = %d", r.calls)
	}
}

func TestResolveCachesMisses(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{known: map[string]int64{}}
	d, _ := New(Config{}, r, logx.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := d.Resolve(ctx, "@ghost"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	}
	if r.calls != 1 {
		t.Fatalf("miss not cached, calls = %d", r.calls)
	}
}
