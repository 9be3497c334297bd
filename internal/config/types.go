package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings ("500ms", "10s", "1m").
// Optional sections are pointers; nil means "use defaults" (or disabled,
// for storage, relay and mqtt).
type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Schedule    ScheduleConfig    `json:"schedule"`
	Negotiation NegotiationConfig `json:"negotiation,omitempty"`
	Reminders   RemindersConfig   `json:"reminders,omitempty"`
	Holidays    *HolidaysConfig   `json:"holidays,omitempty"`
	Directory   DirectoryConfig   `json:"directory,omitempty"`
	Bot         BotConfig         `json:"bot"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Relay    *RelayConfig    `json:"relay,omitempty"`
	MQTT     *MQTTConfig     `json:"mqtt,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty and supplied via STRETCHBOT_TELEGRAM_TOKEN.
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// LogChat is "chat_id" or "chat_id:thread_id" for the chat log sink.
	LogChat string `json:"log_chat,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ScheduleConfig holds the three daily triggers. Specs accept 5 or 6 fields
// (seconds optional) and descriptors like "@daily".
//
// Defaults:
//   - timezone: America/Toronto
//   - ask:      "0 30 9 * * MON-FRI"
//   - remind:   "0 * * * * MON-FRI"
//   - reset:    "0 1 1 * * MON-FRI"
type ScheduleConfig struct {
	Timezone   string `json:"timezone"`
	Ask        string `json:"ask,omitempty"`
	Remind     string `json:"remind,omitempty"`
	Reset      string `json:"reset,omitempty"`
	JobTimeout string `json:"job_timeout,omitempty"`
}

type NegotiationConfig struct {
	// DefaultTime is used when a reply can't be parsed ("11:30").
	DefaultTime string `json:"default_time,omitempty"`
	// StartupTime seeds the session at boot; "off" leaves it unset.
	StartupTime string `json:"startup_time,omitempty"`
}

type RemindersConfig struct {
	Offsets []ReminderOffset `json:"offsets,omitempty"`
}

// ReminderOffset fires Before the session. Template may use {time}.
type ReminderOffset struct {
	Before   string `json:"before"`
	Template string `json:"template,omitempty"`
}

// HolidaysConfig replaces the built-in holiday table.
//
//	"holidays": { "year": 2025, "dates": { "2025-12-25": "Christmas Day" } }
type HolidaysConfig struct {
	Year  int               `json:"year"`
	Dates map[string]string `json:"dates"`
}

type DirectoryConfig struct {
	// Aliases maps "#stretch" -> "-100123" or "-100123:7".
	Aliases map[string]string `json:"aliases,omitempty"`
	TTL     string            `json:"ttl,omitempty"`
}

type BotConfig struct {
	Channel        string   `json:"channel"`
	SchedulerUser  string   `json:"scheduler_user"`
	Replies        []string `json:"replies,omitempty"`
	Workers        int      `json:"workers,omitempty"`
	QueueSize      int      `json:"queue_size,omitempty"`
	HandlerTimeout string   `json:"handler_timeout,omitempty"`
}

// NotifierConfig controls the async delivery pipeline. If the whole
// section is omitted the notifier runs enabled with defaults.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        *int   `json:"retry_max,omitempty"` // nil means the default; 0 disables retries
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
}

// StorageConfig controls persistence of the pause flag and the audit log.
//
//	"storage": { "driver": "sqlite", "path": "./data/stretchbot.sqlite" }
//	"storage": { "driver": "postgres", "dsn": "postgres://..." }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// RelayConfig controls the webhook relay. APIKey is never logged.
type RelayConfig struct {
	Enabled         bool   `json:"enabled"`
	Addr            string `json:"addr"`
	APIKey          string `json:"api_key"`
	DefaultChannel  string `json:"default_channel,omitempty"`
	DefaultUsername string `json:"default_username,omitempty"`
	MaxBodyBytes    int64  `json:"max_body_bytes,omitempty"`
	ReadTimeout     string `json:"read_timeout,omitempty"`
}

type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	QoS         int    `json:"qos,omitempty"`
}
