package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "stretchbot/pkg/logx"
)

func TestFileStoreValueRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "bot.db")

	st, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, ok, err := st.GetValue(ctx, "paused"); err != nil || ok {
		t.Fatalf("absent key: ok=%v err=%v", ok, err)
	}
	if err := st.SetValue(ctx, "paused", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Values survive a reopen.
	st, err = Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	v, ok, err := st.GetValue(ctx, "paused")
	if err != nil || !ok || v != "true" {
		t.Fatalf("GetValue = %q ok=%v err=%v", v, ok, err)
	}
}

func TestFileStoreAppendAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	st, err := Open(ctx, Config{Driver: "file", Path: filepath.Join(dir, "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, action := range []string{"pause", "unpause"} {
		if err := st.AppendAudit(ctx, AuditEntry{At: time.Now(), ChatID: 7, Action: action, OK: true}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = st.Close()

	f, err := os.Open(filepath.Join(dir, "bot.audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	defer f.Close()
	var got []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, e.Action)
	}
	if len(got) != 2 || got[0] != "pause" || got[1] != "unpause" {
		t.Fatalf("audit actions = %v", got)
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	st, err := Open(context.Background(), Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("none driver: st=%v err=%v", st, err)
	}
	if _, err := Open(context.Background(), Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, err := Open(ctx, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bot.sqlite"), BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	if err := st.SetValue(ctx, "paused", "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.SetValue(ctx, "paused", "true"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v, ok, err := st.GetValue(ctx, "paused")
	if err != nil || !ok || v != "true" {
		t.Fatalf("GetValue = %q ok=%v err=%v", v, ok, err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Action: "relay.forward", Target: "#eng", OK: true}); err != nil {
		t.Fatalf("audit: %v", err)
	}
}
