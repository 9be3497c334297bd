package bot

import (
	"regexp"
	"strings"

	"stretchbot/internal/conversation"
	kit "stretchbot/internal/transport"
	logx "stretchbot/pkg/logx"
)

// Handler names used as conversation continuations.
const HandlerConfirmTime = "confirmTime"

type Request struct {
	Message *kit.Message
	Chat    kit.ChatTarget
	Key     conversation.Key
	// Text is the message text without the bot's @mention.
	Text   string
	Route  string
	ReqID  string
	Logger logx.Logger
}

// Direct reports whether the message is a private chat or mentions the bot.
func (r *Request) Direct() bool {
	return r.Message.IsPrivate || r.Message.Mentioned
}

// Scope limits which messages a route sees.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeDirect
)

type Route struct {
	Name    string
	Scope   Scope
	Match   func(text string) bool
	Handler HandlerFunc
}

func (r Route) matches(req *Request) bool {
	if r.Scope == ScopeDirect && !req.Direct() {
		return false
	}
	return r.Match == nil || r.Match(req.Text)
}

var scheduleRe = regexp.MustCompile(`(?i)\bschedule\b`)

func endsWithWord(word string) func(string) bool {
	return func(text string) bool {
		return strings.HasSuffix(strings.ToLower(strings.TrimSpace(text)), word)
	}
}

func (b *Bot) registerRoutes() {
	b.triggers = []Route{
		{Name: "schedule", Scope: ScopeDirect, Match: scheduleRe.MatchString, Handler: b.handleSchedule},
	}
	b.pending = map[string]HandlerFunc{
		HandlerConfirmTime: b.handleConfirmTime,
	}
	// "unpause" also ends in "pause", so it goes first.
	b.routes = []Route{
		{Name: "unpause", Scope: ScopeDirect, Match: endsWithWord("unpause"), Handler: b.handleUnpause},
		{Name: "pause", Scope: ScopeDirect, Match: endsWithWord("pause"), Handler: b.handlePause},
		{Name: "cancel", Scope: ScopeDirect, Match: endsWithWord("cancel"), Handler: b.handleCancel},
		{Name: "status", Scope: ScopeDirect, Match: endsWithWord("status"), Handler: b.handleStatus},
		{Name: "random", Scope: ScopeDirect, Handler: b.handleRandom},
	}
}
