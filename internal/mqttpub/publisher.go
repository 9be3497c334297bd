// Package mqttpub mirrors bot events to an MQTT broker so dashboards and
// home automation can show today's stretch time.
//
// Topics (under the configured prefix):
//
//	<prefix>/status    "online" / "offline" (retained, last will)
//	<prefix>/session   pretty session time or "off" (retained)
//	<prefix>/reminder  text of every reminder fired
package mqttpub

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"stretchbot/internal/daytime"
	"stretchbot/internal/eventbus"
	"stretchbot/internal/reminder"
	logx "stretchbot/pkg/logx"
)

type Config struct {
	Enabled     bool
	Broker      string // mqtt://host:1883 or mqtts://host:8883
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

type message struct {
	topic   string
	payload []byte
	retain  bool
}

type Publisher struct {
	cfg     Config
	bus     eventbus.Bus
	session func() daytime.TimeOfDay
	log     logx.Logger
}

// New builds a publisher. session, if set, supplies the current session so
// the retained topic is correct right after every (re)connect.
func New(cfg Config, bus eventbus.Bus, session func() daytime.TimeOfDay, log logx.Logger) *Publisher {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg.TopicPrefix = strings.TrimRight(strings.TrimSpace(cfg.TopicPrefix), "/")
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "stretchbot"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "stretchbot"
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}
	return &Publisher{cfg: cfg, bus: bus, session: session, log: log.With(logx.String("comp", "mqtt"))}
}

// Run connects and forwards bus events until ctx is done. Broker outages
// are retried in the background by autopaho; events published while
// disconnected are dropped.
func (p *Publisher) Run(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil || brokerURL.Host == "" {
		return fmt.Errorf("parse mqtt broker url %q: %w", p.cfg.Broker, errors.Join(err, errors.New("host required")))
	}
	events, unsub := p.bus.Subscribe(64)
	defer unsub()

	statusTopic := p.cfg.TopicPrefix + "/status"
	cc := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   statusTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.log.Info("mqtt connected", logx.String("broker", p.cfg.Broker))
			p.publish(ctx, cm, message{topic: statusTopic, payload: []byte("online"), retain: true})
			if p.session != nil {
				p.publish(ctx, cm, p.sessionMessage(p.session()))
			}
		},
		OnConnectError: func(err error) {
			p.log.Warn("mqtt connection error", logx.Err(err))
		},
		ClientConfig: paho.ClientConfig{ClientID: p.cfg.ClientID},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		cc.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, cc)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.publish(dctx, cm, message{topic: statusTopic, payload: []byte("offline"), retain: true})
			_ = cm.Disconnect(dctx)
			cancel()
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if m, ok := p.messageFor(ev); ok {
				p.publish(ctx, cm, m)
			}
		}
	}
}

func (p *Publisher) messageFor(ev eventbus.Event) (message, bool) {
	switch ev.Type {
	case eventbus.TypeSessionScheduled:
		s, ok := ev.Data.(reminder.Scheduled)
		if !ok {
			return message{}, false
		}
		return p.sessionMessage(s.Session), true
	case eventbus.TypeReminderFired:
		f, ok := ev.Data.(reminder.Fired)
		if !ok || f.Err != nil {
			return message{}, false
		}
		return message{topic: p.cfg.TopicPrefix + "/reminder", payload: []byte(f.Message)}, true
	default:
		return message{}, false
	}
}

func (p *Publisher) sessionMessage(t daytime.TimeOfDay) message {
	return message{topic: p.cfg.TopicPrefix + "/session", payload: []byte(t.Pretty()), retain: true}
}

func (p *Publisher) publish(ctx context.Context, cm *autopaho.ConnectionManager, m message) {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cm.Publish(pctx, &paho.Publish{
		Topic:   m.topic,
		Payload: m.payload,
		QoS:     p.cfg.QoS,
		Retain:  m.retain,
	}); err != nil {
		p.log.Warn("mqtt publish failed", logx.String("topic", m.topic), logx.Err(err))
		return
	}
	p.log.Trace("mqtt published", logx.String("topic", m.topic))
}
