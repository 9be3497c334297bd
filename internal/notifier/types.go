package notifier

import (
	"time"

	kit "stretchbot/internal/transport"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
	DedupWindow   time.Duration
	DedupMax      int
}

// Notification is one outbound message.
type Notification struct {
	// Channel is the human name of the destination ("#eng", "@alice"); it
	// is informational and used for dedup and events.
	Channel string
	Target  kit.ChatTarget
	Text    string
	Options *kit.SendOptions
	// DedupKey, when set, replaces Text in the dedup identity so distinct
	// messages that happen to render the same text are all delivered.
	DedupKey string
}

type HistoryItem struct {
	At      time.Time
	Channel string
	Text    string
}

// Event types published by the notifier besides eventbus.TypeNotifyFailed.
const (
	TypeQueued  = "notify.queued"
	TypeSent    = "notify.sent"
	TypeDropped = "notify.dropped"
	TypeDeduped = "notify.deduped"
)

// Event is the payload of notifier bus events.
type Event struct {
	Channel  string    `json:"channel"`
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Attempts int       `json:"attempts,omitempty"`
	Error    string    `json:"error,omitempty"`
}
