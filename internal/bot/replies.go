package bot

import (
	"context"
	"math/rand"
	"regexp"
	"sync"
)

const (
	replyAsk         = "Hey %s! What time is the stretch today?"
	replyReschedule  = "Hey! What time is the stretch today?"
	replySet         = "OK, next stretch is set at %s. I'll send out reminders to %s!"
	replyOff         = "OK, stretch is off for now."
	replyPaused      = "OK, I'll _stop_ asking you about the next stretch time for now."
	replyUnpaused    = "OK, I'll *start* asking you about the next stretch time again."
	replyCancelled   = "OK! I've *cancelled the stretch* for now."
	replyToggleError = "Hmm, I couldn't save that. Try again in a bit?"
)

// mentionTag marks a user inside a reply template: "<@alice> says hi".
var mentionTag = regexp.MustCompile(`<@([\w-]+)>`)

// DefaultReplies answer mentions that match no command. Configured replies
// may tag users with <@username>.
var DefaultReplies = []string{
	"Are my ears burning?",
	"Did someone call my name?",
	"What did you say?",
	"Hmmmm?",
	"I'm busy working on your health!",
	"Flexibility isn't useful, mobility is.",
	"Your body was designed to move, not sit idle. MOVE!",
}

// replyPicker hands out random replies, never the same one twice in a row.
type replyPicker struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last int
}

func newReplyPicker(seed int64) *replyPicker {
	return &replyPicker{rng: rand.New(rand.NewSource(seed)), last: -1}
}

func (p *replyPicker) pick(replies []string) string {
	if len(replies) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(replies) == 1 {
		p.last = 0
		return replies[0]
	}
	i := p.rng.Intn(len(replies))
	if p.last >= 0 && p.last < len(replies) && i == p.last {
		// Shift past the last pick; still uniform over the other n-1.
		i = (i + 1 + p.rng.Intn(len(replies)-1)) % len(replies)
	}
	p.last = i
	return replies[i]
}

// expandMentions rewrites <@name> tags. Names the directory knows become an
// @handle the chat will link; unknown names are left as plain text.
func expandMentions(ctx context.Context, dir Directory, text string) string {
	if dir == nil {
		return mentionTag.ReplaceAllString(text, "$1")
	}
	return mentionTag.ReplaceAllStringFunc(text, func(tag string) string {
		name := mentionTag.FindStringSubmatch(tag)[1]
		if _, err := dir.Resolve(ctx, "@"+name); err != nil {
			return name
		}
		return "@" + name
	})
}
