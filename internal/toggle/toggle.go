// Package toggle provides boolean flags persisted in a storage.Store.
//
// Reads never fail: an absent key, a nil store or a store error all read
// as false. Writes are asynchronous; Set hands back a buffered channel that
// receives the single write result.
package toggle

import (
	"context"
	"strconv"
	"strings"
	"time"

	"stretchbot/internal/eventbus"
	"stretchbot/internal/storage"
	logx "stretchbot/pkg/logx"
)

// Paused gates the daily ask trigger.
const Paused = "paused"

// Changed is the event payload published after a successful write.
type Changed struct {
	Key   string
	Value bool
}

type Toggle struct {
	store   storage.Store
	log     logx.Logger
	bus     eventbus.Bus
	timeout time.Duration
}

// New returns a Toggle over st. st may be nil, in which case every flag
// reads false and writes report storage.ErrDisabled.
func New(st storage.Store, bus eventbus.Bus, log logx.Logger) *Toggle {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Toggle{
		store:   st,
		log:     log.With(logx.String("comp", "toggle")),
		bus:     bus,
		timeout: 5 * time.Second,
	}
}

func (t *Toggle) Get(ctx context.Context, key string) bool {
	if t == nil || t.store == nil {
		return false
	}
	v, ok, err := t.store.GetValue(ctx, key)
	if err != nil {
		t.log.Error("toggle read failed; using false", logx.String("key", key), logx.Err(err))
		return false
	}
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		t.log.Warn("toggle value malformed; using false", logx.String("key", key), logx.String("value", v))
		return false
	}
	return b
}

// Set writes the flag in the background. The returned channel is buffered
// and receives exactly one value; callers may ignore it.
func (t *Toggle) Set(key string, v bool) <-chan error {
	res := make(chan error, 1)
	if t == nil || t.store == nil {
		res <- storage.ErrDisabled
		return res
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		err := t.store.SetValue(ctx, key, strconv.FormatBool(v))
		if err != nil {
			t.log.Error("toggle write failed", logx.String("key", key), logx.Bool("value", v), logx.Err(err))
		} else {
			t.bus.Publish(eventbus.Event{Type: eventbus.TypeToggleChanged, Data: Changed{Key: key, Value: v}})
		}
		res <- err
	}()
	return res
}
