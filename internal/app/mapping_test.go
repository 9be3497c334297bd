package app

import (
	"strings"
	"testing"
	"time"

	"stretchbot/internal/config"
	"stretchbot/internal/daytime"
	"stretchbot/internal/negotiate"
	"stretchbot/internal/reminder"
)

func TestMapRemindersDefaultsAndTemplates(t *testing.T) {
	t.Parallel()
	rc := mapReminders(&config.Config{}, time.UTC)
	if len(rc.Offsets) != len(reminder.DefaultOffsets()) || rc.Location != time.UTC {
		t.Fatalf("default reminders = %+v", rc)
	}

	rc = mapReminders(&config.Config{Reminders: config.RemindersConfig{Offsets: []config.ReminderOffset{
		{Before: "30m"},
		{Before: "0s", Template: "now! {time}"},
	}}}, time.UTC)
	if len(rc.Offsets) != 2 || rc.Offsets[0].Before != 30*time.Minute || rc.Offsets[0].Template != reminder.DefaultTemplate {
		t.Fatalf("offset 0 = %+v", rc.Offsets[0])
	}
	if rc.Offsets[1].Template != "now! {time}" {
		t.Fatalf("offset 1 = %+v", rc.Offsets[1])
	}
}

func TestMapNegotiation(t *testing.T) {
	t.Parallel()
	fb, st := mapNegotiation(&config.Config{})
	if fb != negotiate.DefaultTime || st != negotiate.DefaultTime {
		t.Fatalf("defaults = %v %v", fb, st)
	}
	fb, st = mapNegotiation(&config.Config{Negotiation: config.NegotiationConfig{DefaultTime: "14:00", StartupTime: "off"}})
	if fb != daytime.New(14, 0, 0) || !st.IsOff() {
		t.Fatalf("custom = %v %v", fb, st)
	}
}

func TestMapNotifierDefaults(t *testing.T) {
	t.Parallel()
	nc := mapNotifier(&config.Config{})
	if !nc.Enabled || nc.Workers != 2 || nc.QueueSize != 256 || nc.RatePerSec != 3 || nc.RetryMax != 3 {
		t.Fatalf("defaults = %+v", nc)
	}
	nc = mapNotifier(&config.Config{Notifier: &config.NotifierConfig{Enabled: false, RetryBase: "2s"}})
	if nc.Enabled || nc.RetryBase != 2*time.Second || nc.RetryMax != 3 {
		t.Fatalf("explicit = %+v", nc)
	}
}

func TestMapNotifierRetryMaxZeroDisablesRetries(t *testing.T) {
	t.Parallel()
	zero := 0
	nc := mapNotifier(&config.Config{Notifier: &config.NotifierConfig{Enabled: true, RetryMax: &zero}})
	if nc.RetryMax != 0 {
		t.Fatalf("retry_max 0 mapped to %d", nc.RetryMax)
	}
	five := 5
	nc = mapNotifier(&config.Config{Notifier: &config.NotifierConfig{Enabled: true, RetryMax: &five}})
	if nc.RetryMax != 5 {
		t.Fatalf("retry_max 5 mapped to %d", nc.RetryMax)
	}
}

func TestMapLoggingChatNeedsTarget(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Logging: config.LoggingConfig{Chat: config.LoggingChat{Enabled: true}}}
	if mapLogging(cfg).Chat.Enabled {
		t.Fatalf("chat sink enabled without a target")
	}
	cfg.Telegram.LogChat = "-100:3"
	if !mapLogging(cfg).Chat.Enabled {
		t.Fatalf("chat sink should be enabled")
	}
	if got := mapLogTarget(cfg); got.ChatID != -100 || got.ThreadID != 3 {
		t.Fatalf("target = %+v", got)
	}
}

func TestValidateTokenFromEnv(t *testing.T) {
	cfg := &config.Config{Bot: config.BotConfig{Channel: "#s", SchedulerUser: "@a"}}
	err := validate(cfg)
	if err == nil || !strings.Contains(err.Error(), TokenEnv) {
		t.Fatalf("expected token error, got %v", err)
	}
	t.Setenv(TokenEnv, "123:abc")
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Schedule.Timezone != config.DefaultTimezone {
		t.Fatalf("defaults not applied: %+v", cfg.Schedule)
	}
}

func TestMapStorageAndRelay(t *testing.T) {
	t.Parallel()
	if sc := mapStorage(&config.Config{}); sc.Driver != "" {
		t.Fatalf("nil storage = %+v", sc)
	}
	sc := mapStorage(&config.Config{Storage: &config.StorageConfig{Driver: "sqlite", Path: "x.db"}})
	if sc.BusyTimeout != time.Second {
		t.Fatalf("busy timeout = %v", sc.BusyTimeout)
	}
	rc := mapRelay(&config.Config{Relay: &config.RelayConfig{Enabled: true, Addr: ":1", APIKey: "k"}})
	if !rc.Enabled || rc.ReadTimeout != 10*time.Second {
		t.Fatalf("relay = %+v", rc)
	}
}
