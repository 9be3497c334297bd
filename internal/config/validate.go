package config

import (
	"errors"
	"fmt"
	"strings"

	"stretchbot/internal/directory"
	"stretchbot/internal/holiday"
	"stretchbot/internal/negotiate"
	"stretchbot/internal/trigger"
	logx "stretchbot/pkg/logx"
)

// Schedule defaults.
const (
	DefaultTimezone   = "America/Toronto"
	DefaultAskSpec    = "0 30 9 * * MON-FRI"
	DefaultRemindSpec = "0 * * * * MON-FRI"
	DefaultResetSpec  = "0 1 1 * * MON-FRI"
)

// WithDefaults fills empty schedule fields. It mutates and returns cfg.
func (c *Config) WithDefaults() *Config {
	s := &c.Schedule
	if strings.TrimSpace(s.Timezone) == "" {
		s.Timezone = DefaultTimezone
	}
	if strings.TrimSpace(s.Ask) == "" {
		s.Ask = DefaultAskSpec
	}
	if strings.TrimSpace(s.Remind) == "" {
		s.Remind = DefaultRemindSpec
	}
	if strings.TrimSpace(s.Reset) == "" {
		s.Reset = DefaultResetSpec
	}
	return c
}

// Validate checks everything that can be checked without the network.
// All problems are reported together.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	dur("telegram.poll_timeout", c.Telegram.PollTimeout)
	if s := strings.TrimSpace(c.Telegram.LogChat); s != "" {
		if _, err := directory.ParseTarget(s); err != nil {
			add(fmt.Errorf("telegram.log_chat: %w", err))
		}
	}

	if tz := strings.TrimSpace(c.Schedule.Timezone); tz != "" {
		if _, err := trigger.LoadLocation(tz); err != nil {
			add(fmt.Errorf("schedule.timezone: %w", err))
		}
	}
	for _, f := range []struct{ path, spec string }{
		{"schedule.ask", c.Schedule.Ask},
		{"schedule.remind", c.Schedule.Remind},
		{"schedule.reset", c.Schedule.Reset},
	} {
		if strings.TrimSpace(f.spec) == "" {
			continue
		}
		if err := trigger.ValidateSpec(f.spec); err != nil {
			add(fmt.Errorf("%s: %w", f.path, err))
		}
	}
	dur("schedule.job_timeout", c.Schedule.JobTimeout)

	n := negotiate.New(negotiate.DefaultTime, logx.Nop())
	if s := strings.TrimSpace(c.Negotiation.DefaultTime); s != "" && n.Parse(s).Defaulted {
		add(fmt.Errorf("negotiation.default_time: unrecognized time %q", s))
	}
	if s := strings.TrimSpace(c.Negotiation.StartupTime); s != "" && !strings.EqualFold(s, "off") && n.Parse(s).Defaulted {
		add(fmt.Errorf("negotiation.startup_time: unrecognized time %q", s))
	}

	for i, o := range c.Reminders.Offsets {
		if strings.TrimSpace(o.Before) == "" {
			add(fmt.Errorf("reminders.offsets[%d].before is required", i))
			continue
		}
		dur(fmt.Sprintf("reminders.offsets[%d].before", i), o.Before)
	}

	if h := c.Holidays; h != nil {
		if _, err := holiday.New(h.Year, h.Dates); err != nil {
			add(fmt.Errorf("holidays: %w", err))
		}
	}

	for name, raw := range c.Directory.Aliases {
		if _, err := directory.ParseTarget(raw); err != nil {
			add(fmt.Errorf("directory.aliases[%s]: %w", name, err))
		}
	}
	dur("directory.ttl", c.Directory.TTL)

	if strings.TrimSpace(c.Bot.Channel) == "" {
		add(errors.New("bot.channel is required"))
	}
	if strings.TrimSpace(c.Bot.SchedulerUser) == "" {
		add(errors.New("bot.scheduler_user is required"))
	}
	if c.Bot.Workers < 0 || c.Bot.QueueSize < 0 {
		add(errors.New("bot.workers and bot.queue_size must be >= 0"))
	}
	dur("bot.handler_timeout", c.Bot.HandlerTimeout)

	if nc := c.Notifier; nc != nil {
		dur("notifier.retry_base", nc.RetryBase)
		dur("notifier.retry_max_delay", nc.RetryMaxDelay)
		dur("notifier.send_timeout", nc.SendTimeout)
		dur("notifier.dedup_window", nc.DedupWindow)
		if nc.Workers < 0 || nc.QueueSize < 0 || nc.RatePerSec < 0 || (nc.RetryMax != nil && *nc.RetryMax < 0) {
			add(errors.New("notifier: counts must be >= 0"))
		}
	}

	if st := c.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				add(fmt.Errorf("storage.path is required for driver %q", st.Driver))
			}
		case "postgres", "postgresql", "pg":
			if strings.TrimSpace(st.DSN) == "" {
				add(errors.New("storage.dsn is required for postgres"))
			}
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", st.Driver))
		}
		dur("storage.busy_timeout", st.BusyTimeout)
	}

	if r := c.Relay; r != nil && r.Enabled {
		if strings.TrimSpace(r.Addr) == "" {
			add(errors.New("relay.addr is required when relay is enabled"))
		}
		if strings.TrimSpace(r.APIKey) == "" {
			add(errors.New("relay.api_key is required when relay is enabled"))
		}
		if r.MaxBodyBytes < 0 {
			add(errors.New("relay.max_body_bytes must be >= 0"))
		}
		dur("relay.read_timeout", r.ReadTimeout)
	}

	if mq := c.MQTT; mq != nil && mq.Enabled {
		if strings.TrimSpace(mq.Broker) == "" {
			add(errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if mq.QoS < 0 || mq.QoS > 2 {
			add(errors.New("mqtt.qos must be 0, 1 or 2"))
		}
	}

	return errors.Join(errs...)
}
