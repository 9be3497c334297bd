// Package notifier delivers outbound chat messages asynchronously.
//
// It is the bot's delivery collaborator: callers enqueue a Notification and
// return immediately, while a small worker pool sends through a
// transport.Adapter with a shared rate limit, bounded exponential-backoff
// retry and short-window duplicate suppression. A full queue fails fast
// with ErrQueueFull.
//
// For operator visibility the service keeps a small in-memory history of
// recently sent texts.
package notifier
