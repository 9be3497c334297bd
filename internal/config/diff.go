package config

import (
	"reflect"
	"sort"
	"strings"

	logx "stretchbot/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// log fields describing them. Secrets (token, api key, passwords, dsn)
// are reported only as "set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)
	set := func(s string) bool { return strings.TrimSpace(s) != "" }

	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
			logx.Bool("telegram.log_chat_set", set(newCfg.Telegram.LogChat)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.chat", newCfg.Logging.Chat.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule.timezone", newCfg.Schedule.Timezone),
			logx.String("schedule.ask", newCfg.Schedule.Ask),
			logx.String("schedule.remind", newCfg.Schedule.Remind),
			logx.String("schedule.reset", newCfg.Schedule.Reset),
		)
	}
	if !reflect.DeepEqual(oldCfg.Negotiation, newCfg.Negotiation) {
		changed = append(changed, "negotiation")
		attrs = append(attrs, logx.String("negotiation.default_time", newCfg.Negotiation.DefaultTime))
	}
	if !reflect.DeepEqual(oldCfg.Reminders, newCfg.Reminders) {
		changed = append(changed, "reminders")
		attrs = append(attrs, logx.Int("reminders.offsets", len(newCfg.Reminders.Offsets)))
	}
	if !reflect.DeepEqual(oldCfg.Holidays, newCfg.Holidays) {
		changed = append(changed, "holidays")
		if h := newCfg.Holidays; h != nil {
			attrs = append(attrs, logx.Int("holidays.year", h.Year), logx.Int("holidays.count", len(h.Dates)))
		}
	}
	if !reflect.DeepEqual(oldCfg.Directory, newCfg.Directory) {
		changed = append(changed, "directory")
		attrs = append(attrs,
			logx.Int("directory.aliases", len(newCfg.Directory.Aliases)),
			logx.String("directory.ttl", newCfg.Directory.TTL),
		)
	}
	if !reflect.DeepEqual(oldCfg.Bot, newCfg.Bot) {
		changed = append(changed, "bot")
		attrs = append(attrs,
			logx.String("bot.channel", newCfg.Bot.Channel),
			logx.String("bot.scheduler_user", newCfg.Bot.SchedulerUser),
			logx.Int("bot.workers", newCfg.Bot.Workers),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		if n := newCfg.Notifier; n != nil {
			attrs = append(attrs,
				logx.Bool("notifier.enabled", n.Enabled),
				logx.Int("notifier.workers", n.Workers),
				logx.Int("notifier.rate_per_sec", n.RatePerSec),
			)
		}
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if s := newCfg.Storage; s != nil {
			attrs = append(attrs,
				logx.String("storage.driver", s.Driver),
				logx.Bool("storage.path_set", set(s.Path)),
				logx.Bool("storage.dsn_set", set(s.DSN)),
			)
		}
	}
	if !reflect.DeepEqual(oldCfg.Relay, newCfg.Relay) {
		changed = append(changed, "relay")
		if r := newCfg.Relay; r != nil {
			attrs = append(attrs,
				logx.Bool("relay.enabled", r.Enabled),
				logx.String("relay.addr", r.Addr),
				logx.Bool("relay.api_key_set", set(r.APIKey)),
			)
		}
	}
	if !reflect.DeepEqual(oldCfg.MQTT, newCfg.MQTT) {
		changed = append(changed, "mqtt")
		if m := newCfg.MQTT; m != nil {
			attrs = append(attrs,
				logx.Bool("mqtt.enabled", m.Enabled),
				logx.String("mqtt.broker", m.Broker),
				logx.Bool("mqtt.password_set", set(m.Password)),
			)
		}
	}

	sort.Strings(changed)
	return changed, attrs
}
