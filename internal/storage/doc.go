// Package storage is the bot's small persistence layer.
//
// It holds string flags (the "paused" toggle) and an append-only audit log
// of operator and bot actions. Drivers: file, sqlite, postgres.
package storage
