package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	kit "stretchbot/internal/transport"
)

func TestJSONLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewJSON(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3), Err(errors.New("boom")), Duration("d", time.Second))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["message"] != "hello" || rec["comp"] != "test" || rec["err"] != "boom" || rec["n"] != float64(3) {
		t.Fatalf("record = %v", rec)
	}
	if c, _ := rec["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller = %v", rec["caller"])
	}
}

func TestLevelsAndNop(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewJSON(&buf, "warn")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	if log.Enabled(LevelDebug) || !log.Enabled(LevelError) {
		t.Fatalf("Enabled mismatch")
	}

	var zero Logger
	if !zero.IsZero() || Nop().IsZero() {
		t.Fatalf("IsZero mismatch")
	}
	zero.Error("nothing happens")
	Nop().With(String("a", "b")).Warn("still nothing")
}

func TestFormatChatRecord(t *testing.T) {
	t.Parallel()
	got := formatChatRecord([]byte(`{"level":"warn","time":"x","message":"slow","comp":"notifier","attempts":3}`))
	want := "[WARN] slow\n- attempts=3\n- comp=notifier"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := formatChatRecord([]byte("not json\n")); got != "not json" {
		t.Fatalf("raw fallback = %q", got)
	}
	if got := truncate(strings.Repeat("x", 20), 12); got != "xxxxxxxxx..." {
		t.Fatalf("truncate = %q", got)
	}
}

type captureSender struct {
	mu   sync.Mutex
	sent []string
	to   []kit.ChatTarget
}

func (c *captureSender) Start(context.Context, chan<- kit.Update) error { return nil }
func (c *captureSender) Stop(context.Context) error                     { return nil }
func (c *captureSender) Self() kit.Identity                             { return kit.Identity{} }
func (c *captureSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	c.to = append(c.to, to)
	return kit.MessageRef{}, nil
}

func (c *captureSender) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func TestServiceChatSink(t *testing.T) {
	t.Parallel()
	sender := &captureSender{}
	svc, log := New(Config{
		Level: "debug",
		Chat:  ChatConfig{Enabled: true, MinLevel: "warn", RatePerSec: 10},
	}, sender)
	defer svc.Close()
	svc.SetChatTarget(kit.ChatTarget{ChatID: -100, ThreadID: 2})

	log.Info("below min level")
	log.Warn("queue full", String("comp", "notifier"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := sender.messages(); len(msgs) > 0 {
			if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "[WARN] queue full") {
				t.Fatalf("chat messages = %q", msgs)
			}
			if sender.to[0].ThreadID != 2 {
				t.Fatalf("target = %+v", sender.to[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no chat message delivered")
}
