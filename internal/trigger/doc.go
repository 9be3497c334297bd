// Package trigger runs named jobs on cron schedules in a configured
// timezone.
//
// Jobs are wrapped with panic recovery and skip-if-still-running, and each
// run gets its own timeout context derived from the context passed to
// Start. Definitions survive Stop/Start and timezone changes.
package trigger
