package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Store is the persistence API used by the bot.
type Store interface {
	// GetValue returns ok=false when key is absent.
	GetValue(ctx context.Context, key string) (value string, ok bool, err error)
	SetValue(ctx context.Context, key, value string) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot + JSON Lines audit next to Path
//   - "sqlite": SQLite database at Path
//   - "postgres": PostgreSQL reachable through DSN
//
// An empty Driver or "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 keeps the driver default
}

// AuditEntry records a bot or operator action.
type AuditEntry struct {
	At        time.Time `json:"at"`
	ActorID   int64     `json:"actor_id,omitempty"`
	ActorName string    `json:"actor_name,omitempty"`
	ChatID    int64     `json:"chat_id,omitempty"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"err,omitempty"`
	Meta      string    `json:"meta,omitempty"`
}
