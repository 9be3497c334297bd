package bot

import (
	"context"
	"fmt"
	"strings"

	"stretchbot/internal/notifier"
	"stretchbot/internal/storage"
	"stretchbot/internal/toggle"
	logx "stretchbot/pkg/logx"
)

// AskForTime opens the daily negotiation in the stretch channel unless the
// bot is paused or today is a holiday.
func (b *Bot) AskForTime(ctx context.Context) error {
	cfg := b.config()
	log := b.log.With(logx.String("job", "ask"))

	if b.d.Toggle.Get(ctx, toggle.Paused) {
		log.Info("paused; not asking for a stretch time")
		return nil
	}
	today := b.now().In(b.d.Reminders.Location())
	if b.d.Holidays != nil && b.d.Holidays.IsHoliday(today) {
		log.Info("holiday; no stretching today", logx.String("date", today.Format("2006-01-02")))
		return nil
	}

	target, err := b.d.Directory.Resolve(ctx, cfg.Channel)
	if err != nil {
		log.Error("stretch channel lookup failed", logx.String("channel", cfg.Channel), logx.Err(err))
		return nil
	}

	user := "@" + strings.TrimPrefix(strings.TrimSpace(cfg.SchedulerUser), "@")
	log.Info("asking for next stretch time", logx.String("user", user))
	b.d.Conversations.Start(KeyFor(target), HandlerConfirmTime)

	err = b.d.Notifier.Notify(ctx, notifier.Notification{
		Channel: cfg.Channel,
		Target:  target,
		Text:    fmt.Sprintf(replyAsk, user),
	})
	b.audit(storage.AuditEntry{ChatID: target.ChatID, Action: "ask", Target: user, OK: err == nil, Error: errString(err)})
	return err
}

// SendReminders fires every reminder due this minute. Nothing fires on a
// holiday.
func (b *Bot) SendReminders(ctx context.Context) error {
	now := b.now()
	if today := now.In(b.d.Reminders.Location()); b.d.Holidays != nil && b.d.Holidays.IsHoliday(today) {
		return nil
	}
	due := b.d.Reminders.DueReminders(now)
	if len(due) == 0 {
		return nil
	}
	cfg := b.config()
	target, resolveErr := b.d.Directory.Resolve(ctx, cfg.Channel)
	for i, r := range due {
		var deliver func(string) error
		if resolveErr != nil {
			deliver = func(string) error { return resolveErr }
		} else {
			// Rules sharing a minute render the same text; the key keeps them apart.
			deliver = notifier.Deliverer(ctx, b.d.Notifier, notifier.Notification{
				Channel:  cfg.Channel,
				Target:   target,
				DedupKey: fmt.Sprintf("reminder|%s|%s|%s|%d", r.Session, r.FireAt, r.Offset, i),
			})
		}
		err := b.d.Reminders.Fire(r, deliver)
		fields := []logx.Field{
			logx.String("fire_at", r.FireAt.String()),
			logx.Duration("offset", r.Offset),
			logx.String("session", r.Session.String()),
		}
		if err != nil {
			b.log.Error("reminder delivery failed", append(fields, logx.Err(err))...)
		} else {
			b.log.Info("reminder sent", fields...)
		}
		b.audit(storage.AuditEntry{Action: "reminder", Target: r.FireAt.String(), OK: err == nil, Error: errString(err)})
	}
	return nil
}

// ResetDaily re-arms today's reminders.
func (b *Bot) ResetDaily(context.Context) error {
	b.d.Reminders.ResetDaily()
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
