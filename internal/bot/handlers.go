package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stretchbot/internal/daytime"
	"stretchbot/internal/storage"
	"stretchbot/internal/toggle"
	logx "stretchbot/pkg/logx"
)

// handleSchedule asks for a time and arms confirmTime, re-arming it when a
// question is already pending.
func (b *Bot) handleSchedule(ctx context.Context, req *Request) error {
	if b.d.Conversations.Next(req.Key) {
		req.Logger.Debug("conversation re-armed", logx.String("handler", HandlerConfirmTime))
	} else {
		b.d.Conversations.Start(req.Key, HandlerConfirmTime)
	}
	return b.reply(ctx, req, replyReschedule)
}

func (b *Bot) handleConfirmTime(ctx context.Context, req *Request) error {
	p := b.d.Negotiator.Parse(req.Text)
	b.d.Reminders.ScheduleNext(p.Time)
	b.d.Conversations.Stop(req.Key)

	b.audit(storage.AuditEntry{
		ActorID:   req.Message.FromID,
		ActorName: req.Message.FromUsername,
		ChatID:    req.Chat.ChatID,
		Action:    "session.set",
		Target:    p.Time.String(),
		OK:        true,
		Meta:      fmt.Sprintf("defaulted=%t", p.Defaulted),
	})

	if p.Time.IsOff() {
		return b.reply(ctx, req, replyOff)
	}
	return b.reply(ctx, req, fmt.Sprintf(replySet, p.Time.Pretty(), b.config().Channel))
}

func (b *Bot) handlePause(ctx context.Context, req *Request) error {
	return b.setPaused(ctx, req, true)
}

func (b *Bot) handleUnpause(ctx context.Context, req *Request) error {
	return b.setPaused(ctx, req, false)
}

func (b *Bot) setPaused(ctx context.Context, req *Request, paused bool) error {
	res := b.d.Toggle.Set(toggle.Paused, paused)
	// The write is async; give it a moment so the reply can tell the truth,
	// but never block the handler on a slow store.
	var err error
	select {
	case err = <-res:
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
	}

	action := "unpause"
	text := replyUnpaused
	if paused {
		action, text = "pause", replyPaused
	}
	e := storage.AuditEntry{
		ActorID:   req.Message.FromID,
		ActorName: req.Message.FromUsername,
		ChatID:    req.Chat.ChatID,
		Action:    action,
		OK:        err == nil,
	}
	if err != nil {
		e.Error = err.Error()
		text = replyToggleError
	}
	b.audit(e)
	return b.reply(ctx, req, text)
}

func (b *Bot) handleCancel(ctx context.Context, req *Request) error {
	b.d.Reminders.ScheduleNext(daytime.Off)
	b.audit(storage.AuditEntry{
		ActorID:   req.Message.FromID,
		ActorName: req.Message.FromUsername,
		ChatID:    req.Chat.ChatID,
		Action:    "cancel",
		OK:        true,
	})
	return b.reply(ctx, req, replyCancelled)
}

func (b *Bot) handleStatus(ctx context.Context, req *Request) error {
	return b.reply(ctx, req, b.StatusText(ctx))
}

// StatusText summarises the paused flag, today's session and the timers.
func (b *Bot) StatusText(ctx context.Context) string {
	snap := b.d.Reminders.Snapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Paused: %t\n", b.d.Toggle.Get(ctx, toggle.Paused))
	fmt.Fprintf(&sb, "Next stretch: %s (%s)\n", snap.Session.Pretty(), snap.Location)
	for _, r := range snap.Rules {
		state := "pending"
		if r.FiredToday {
			state = "sent"
		}
		fmt.Fprintf(&sb, "- reminder %s: %s\n", r.FireAt.Pretty(), state)
	}
	if b.d.Triggers != nil {
		for _, e := range b.d.Triggers.Snapshot().Entries {
			if e.Next.IsZero() {
				continue
			}
			fmt.Fprintf(&sb, "- %s next: %s\n", e.Name, e.Next.Format("Mon 2006-01-02 15:04"))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) handleRandom(ctx context.Context, req *Request) error {
	text := b.picker.pick(b.config().Replies)
	if text == "" {
		return nil
	}
	return b.reply(ctx, req, expandMentions(ctx, b.d.Directory, text))
}
