package mqttpub

import (
	"context"
	"errors"
	"testing"

	"stretchbot/internal/daytime"
	"stretchbot/internal/eventbus"
	"stretchbot/internal/reminder"
	logx "stretchbot/pkg/logx"
)

func TestMessageFor(t *testing.T) {
	t.Parallel()
	p := New(Config{TopicPrefix: "office/stretch/"}, eventbus.Nop{}, nil, logx.Nop())

	m, ok := p.messageFor(eventbus.Event{Type: eventbus.TypeSessionScheduled, Data: reminder.Scheduled{Session: daytime.New(14, 0, 0), Rules: 3}})
	if !ok || m.topic != "office/stretch/session" || string(m.payload) != "02:00 PM" || !m.retain {
		t.Fatalf("session message = %+v ok=%v", m, ok)
	}

	m, ok = p.messageFor(eventbus.Event{Type: eventbus.TypeSessionScheduled, Data: reminder.Scheduled{Session: daytime.Off}})
	if !ok || string(m.payload) != "off" {
		t.Fatalf("off message = %+v", m)
	}

	m, ok = p.messageFor(eventbus.Event{Type: eventbus.TypeReminderFired, Data: reminder.Fired{Message: "stretch soon"}})
	if !ok || m.topic != "office/stretch/reminder" || m.retain {
		t.Fatalf("reminder message = %+v", m)
	}

	if _, ok := p.messageFor(eventbus.Event{Type: eventbus.TypeReminderFired, Data: reminder.Fired{Message: "x", Err: errors.New("down")}}); ok {
		t.Fatalf("failed deliveries must not be mirrored")
	}
	if _, ok := p.messageFor(eventbus.Event{Type: eventbus.TypeToggleChanged}); ok {
		t.Fatalf("unrelated event mirrored")
	}
}

func TestDefaultsAndBadBroker(t *testing.T) {
	t.Parallel()
	p := New(Config{Broker: "::not a url", QoS: 7}, eventbus.New(), nil, logx.Nop())
	if p.cfg.TopicPrefix != "stretchbot" || p.cfg.ClientID != "stretchbot" || p.cfg.QoS != 1 {
		t.Fatalf("defaults = %+v", p.cfg)
	}
	if err := p.Run(context.Background()); err == nil {
		t.Fatalf("expected broker url error")
	}
}
