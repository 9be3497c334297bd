package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsPrivate    bool
	// Mentioned is true when the text addresses the bot by @username.
	Mentioned bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Identity is the bot's own account, used to drop self-authored messages.
type Identity struct {
	ID       int64
	Username string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	Self() Identity
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// ChatInfo is what a platform lookup returns for a chat or user handle.
type ChatInfo struct {
	ID       int64
	Username string
	Title    string
}

// Resolver is an optional adapter capability: look up a chat or user by
// its public handle (e.g. "@stretch_team").
type Resolver interface {
	ResolveChat(ctx context.Context, username string) (ChatInfo, error)
}
