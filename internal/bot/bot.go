// Package bot wires the stretch negotiation core to a chat transport.
//
// Inbound messages are routed through an explicit, ordered table:
//
//  1. messages written by the bot itself are dropped;
//  2. conversation triggers ("schedule") start or re-arm the time question;
//  3. a pending conversation handler receives the message;
//  4. generic routes (pause, unpause, cancel, status, random reply).
//
// Timer jobs (ask, remind, reset) are plain methods registered with the
// trigger service by the app.
package bot

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stretchbot/internal/conversation"
	"stretchbot/internal/negotiate"
	"stretchbot/internal/notifier"
	"stretchbot/internal/reminder"
	"stretchbot/internal/storage"
	"stretchbot/internal/toggle"
	"stretchbot/internal/trigger"
	kit "stretchbot/internal/transport"
	logx "stretchbot/pkg/logx"
)

type Config struct {
	// Channel receives the daily question and the reminders ("#stretch",
	// "@team", or a numeric chat id).
	Channel string
	// SchedulerUser is the person asked for the time every morning.
	SchedulerUser  string
	Replies        []string
	Workers        int
	QueueSize      int
	HandlerTimeout time.Duration
}

// Notifier delivers outbound messages for jobs.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// Directory resolves configured chat names.
type Directory interface {
	Resolve(ctx context.Context, name string) (kit.ChatTarget, error)
}

// Holidays tells whether a day is excluded.
type Holidays interface {
	IsHoliday(day time.Time) bool
}

// Triggers exposes upcoming timer runs for /status.
type Triggers interface {
	Snapshot() trigger.Snapshot
}

type Deps struct {
	Adapter       kit.Adapter
	Conversations *conversation.Machine
	Negotiator    *negotiate.Negotiator
	Reminders     *reminder.Scheduler
	Toggle        *toggle.Toggle
	Holidays      Holidays
	Directory     Directory
	Notifier      Notifier
	Triggers      Triggers      // optional
	Store         storage.Store // optional; audit trail
	Log           logx.Logger
}

type Bot struct {
	d   Deps
	log logx.Logger

	mu  sync.RWMutex
	cfg Config

	triggers []Route
	pending  map[string]HandlerFunc
	routes   []Route
	mw       []Middleware

	picker *replyPicker
	now    func() time.Time
}

func New(cfg Config, d Deps) *Bot {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	b := &Bot{
		d:      d,
		log:    d.Log.With(logx.String("comp", "bot")),
		picker: newReplyPicker(time.Now().UnixNano()),
		now:    time.Now,
	}
	b.Apply(cfg)
	b.registerRoutes()
	return b
}

func (b *Bot) Apply(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 15 * time.Second
	}
	if len(cfg.Replies) == 0 {
		cfg.Replies = DefaultReplies
	}
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
}

func (b *Bot) config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// KeyFor is the conversation key of a chat: "chat_id" or "chat_id:thread_id".
func KeyFor(t kit.ChatTarget) conversation.Key {
	if t.ThreadID != 0 {
		return conversation.Key(fmt.Sprintf("%d:%d", t.ChatID, t.ThreadID))
	}
	return conversation.Key(fmt.Sprintf("%d", t.ChatID))
}

// Run consumes updates until ctx is done or updates is closed. Messages of
// one chat always land on the same worker, so they are handled in order.
func (b *Bot) Run(ctx context.Context, updates <-chan kit.Update) error {
	cfg := b.config()
	shards := make([]chan *Request, cfg.Workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan *Request, cfg.QueueSize)
		wg.Add(1)
		go func(q <-chan *Request) {
			defer wg.Done()
			for req := range q {
				b.handle(ctx, req)
			}
		}(shards[i])
	}
	b.log.Info("dispatcher started", logx.Int("workers", cfg.Workers))

	defer func() {
		for _, q := range shards {
			close(q)
		}
		wg.Wait()
		b.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			req := b.newRequest(up)
			if req == nil {
				continue
			}
			q := shards[shard(req.Key, len(shards))]
			select {
			case q <- req:
			default:
				req.Logger.Warn("dispatcher queue full; message dropped")
			}
		}
	}
}

func shard(key conversation.Key, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// Dispatch routes one update synchronously.
func (b *Bot) Dispatch(ctx context.Context, up kit.Update) {
	if req := b.newRequest(up); req != nil {
		b.handle(ctx, req)
	}
}

func (b *Bot) newRequest(up kit.Update) *Request {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return nil
	}
	m := up.Message
	self := b.d.Adapter.Self()
	if m.FromID != 0 && m.FromID == self.ID {
		return nil
	}
	chat := kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
	reqID := uuid.NewString()
	return &Request{
		Message: m,
		Chat:    chat,
		Key:     KeyFor(chat),
		Text:    stripMention(m.Text, self.Username),
		ReqID:   reqID,
		Logger: b.log.With(
			logx.String("req_id", reqID),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int("thread_id", chat.ThreadID),
		),
	}
}

func (b *Bot) handle(ctx context.Context, req *Request) {
	route, h := b.match(req)
	if h == nil {
		req.Logger.Trace("no route")
		return
	}
	req.Route = route
	cfg := b.config()
	_ = Chain(h, MWPanicRecover(), MWRequestLog(), MWTimeout(cfg.HandlerTimeout))(ctx, req)
}

// match applies the dispatch order.
func (b *Bot) match(req *Request) (string, HandlerFunc) {
	for _, r := range b.triggers {
		if r.matches(req) {
			return r.Name, r.Handler
		}
	}
	if name, ok := b.d.Conversations.Pending(req.Key); ok {
		if h := b.pending[name]; h != nil {
			return name, h
		}
		req.Logger.Warn("pending handler not registered", logx.String("handler", name))
	}
	for _, r := range b.routes {
		if r.matches(req) {
			return r.Name, r.Handler
		}
	}
	return "", nil
}

func stripMention(text, username string) string {
	text = strings.TrimSpace(text)
	if username == "" {
		return text
	}
	tag := "@" + username
	if i := strings.Index(strings.ToLower(text), strings.ToLower(tag)); i >= 0 {
		text = text[:i] + text[i+len(tag):]
	}
	return strings.TrimSpace(text)
}

func (b *Bot) reply(ctx context.Context, req *Request, text string) error {
	_, err := b.d.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// audit writes e in the background; failures are only logged.
func (b *Bot) audit(e storage.AuditEntry) {
	st := b.d.Store
	if st == nil {
		return
	}
	if e.At.IsZero() {
		e.At = b.now()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.AppendAudit(ctx, e); err != nil {
			b.log.Warn("audit write failed", logx.String("action", e.Action), logx.Err(err))
		}
	}()
}
