package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"stretchbot/internal/bot"
	"stretchbot/internal/config"
	"stretchbot/internal/daytime"
	"stretchbot/internal/directory"
	"stretchbot/internal/holiday"
	"stretchbot/internal/mqttpub"
	"stretchbot/internal/negotiate"
	"stretchbot/internal/notifier"
	"stretchbot/internal/reminder"
	"stretchbot/internal/relay"
	"stretchbot/internal/storage"
	kit "stretchbot/internal/transport"
	logx "stretchbot/pkg/logx"
)

// TokenEnv overrides telegram.token when set.
const TokenEnv = "STRETCHBOT_TELEGRAM_TOKEN"

const defaultJobTimeout = 2 * time.Minute

func applyEnv(cfg *config.Config) {
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		cfg.Telegram.Token = tok
	}
}

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled && strings.TrimSpace(cfg.Telegram.LogChat) != "",
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}
}

func mapLogTarget(cfg *config.Config) kit.ChatTarget {
	t, err := directory.ParseTarget(cfg.Telegram.LogChat)
	if err != nil {
		return kit.ChatTarget{}
	}
	return t
}

func mapStorage(cfg *config.Config) storage.Config {
	if cfg.Storage == nil {
		return storage.Config{}
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: config.MustDuration(cfg.Storage.BusyTimeout, time.Second),
	}
}

func mapJobTimeout(cfg *config.Config) time.Duration {
	return config.MustDuration(cfg.Schedule.JobTimeout, defaultJobTimeout)
}

func mapReminders(cfg *config.Config, loc *time.Location) reminder.Config {
	rc := reminder.Config{Location: loc}
	for _, o := range cfg.Reminders.Offsets {
		tpl := o.Template
		if strings.TrimSpace(tpl) == "" {
			tpl = reminder.DefaultTemplate
		}
		rc.Offsets = append(rc.Offsets, reminder.Offset{
			Before:   config.MustDuration(o.Before, 0),
			Template: tpl,
		})
	}
	if len(rc.Offsets) == 0 {
		rc.Offsets = reminder.DefaultOffsets()
	}
	return rc
}

// mapNegotiation returns the fallback reply time and the session seeded at
// startup. "off" as startup time leaves the session unset.
func mapNegotiation(cfg *config.Config) (fallback, startup daytime.TimeOfDay) {
	n := negotiate.New(negotiate.DefaultTime, logx.Nop())
	fallback = negotiate.DefaultTime
	if s := strings.TrimSpace(cfg.Negotiation.DefaultTime); s != "" {
		fallback = n.Parse(s).Time
	}
	startup = fallback
	switch s := strings.TrimSpace(cfg.Negotiation.StartupTime); {
	case strings.EqualFold(s, "off"):
		startup = daytime.Off
	case s != "":
		startup = n.Parse(s).Time
	}
	return fallback, startup
}

func mapHolidays(cfg *config.Config) (*holiday.Calendar, error) {
	if cfg.Holidays == nil {
		return holiday.Default(), nil
	}
	return holiday.New(cfg.Holidays.Year, cfg.Holidays.Dates)
}

func mapDirectory(cfg *config.Config) directory.Config {
	return directory.Config{
		Aliases: cfg.Directory.Aliases,
		TTL:     config.MustDuration(cfg.Directory.TTL, 0),
	}
}

func mapBot(cfg *config.Config) bot.Config {
	return bot.Config{
		Channel:        cfg.Bot.Channel,
		SchedulerUser:  cfg.Bot.SchedulerUser,
		Replies:        cfg.Bot.Replies,
		Workers:        cfg.Bot.Workers,
		QueueSize:      cfg.Bot.QueueSize,
		HandlerTimeout: config.MustDuration(cfg.Bot.HandlerTimeout, 0),
	}
}

// mapNotifier fills defaults; an omitted section means enabled.
func mapNotifier(cfg *config.Config) notifier.Config {
	nc := cfg.Notifier
	if nc == nil {
		nc = &config.NotifierConfig{Enabled: true}
	}
	out := notifier.Config{
		Enabled:       nc.Enabled,
		Workers:       nc.Workers,
		QueueSize:     nc.QueueSize,
		RatePerSec:    nc.RatePerSec,
		RetryMax:      3,
		RetryBase:     config.MustDuration(nc.RetryBase, 500*time.Millisecond),
		RetryMaxDelay: config.MustDuration(nc.RetryMaxDelay, 10*time.Second),
		SendTimeout:   config.MustDuration(nc.SendTimeout, 15*time.Second),
		DedupWindow:   config.MustDuration(nc.DedupWindow, 0),
		DedupMax:      nc.DedupMaxEntries,
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 256
	}
	if out.RatePerSec <= 0 {
		out.RatePerSec = 3
	}
	if nc.RetryMax != nil {
		out.RetryMax = *nc.RetryMax
	}
	return out
}

func mapRelay(cfg *config.Config) relay.Config {
	r := cfg.Relay
	if r == nil {
		return relay.Config{}
	}
	return relay.Config{
		Enabled:         r.Enabled,
		Addr:            r.Addr,
		APIKey:          r.APIKey,
		DefaultChannel:  r.DefaultChannel,
		DefaultUsername: r.DefaultUsername,
		MaxBodyBytes:    r.MaxBodyBytes,
		ReadTimeout:     config.MustDuration(r.ReadTimeout, 10*time.Second),
	}
}

func mapMQTT(cfg *config.Config) mqttpub.Config {
	m := cfg.MQTT
	if m == nil {
		return mqttpub.Config{}
	}
	return mqttpub.Config{
		Enabled:     m.Enabled,
		Broker:      m.Broker,
		Username:    m.Username,
		Password:    m.Password,
		ClientID:    m.ClientID,
		TopicPrefix: m.TopicPrefix,
		QoS:         byte(m.QoS),
	}
}

// validate is the full check run at boot and before every hot reload.
func validate(cfg *config.Config) error {
	cfg.WithDefaults()
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or set %s)", TokenEnv)
	}
	return nil
}
