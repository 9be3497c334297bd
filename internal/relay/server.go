// Package relay forwards webhook notifications from other systems into a
// chat.
//
// Routes:
//
//	GET  /                    "Hello!"
//	GET  /health              liveness
//	POST /notify              forward to the default channel
//	POST /notify/{channel}    forward to channel ("eng" becomes "#eng")
//
// Bodies are JSON or application/x-www-form-urlencoded with the fields
// apiKey, text, title, details and username.
package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"stretchbot/internal/eventbus"
	"stretchbot/internal/notifier"
	"stretchbot/internal/storage"
	kit "stretchbot/internal/transport"
	logx "stretchbot/pkg/logx"
)

const (
	DefaultChannel  = "#eng"
	DefaultUsername = "eng-notifications"
)

type Config struct {
	Enabled         bool
	Addr            string
	APIKey          string
	DefaultChannel  string
	DefaultUsername string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
}

// Notifier enqueues outbound messages.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// Directory resolves channel names.
type Directory interface {
	Resolve(ctx context.Context, name string) (kit.ChatTarget, error)
}

// Incoming is the webhook payload.
type Incoming struct {
	APIKey   string `json:"apiKey"`
	Text     string `json:"text"`
	Title    string `json:"title"`
	Details  string `json:"details"`
	Username string `json:"username"`
}

// Forwarded is published on the bus for every accepted payload.
type Forwarded struct {
	ID       string
	Channel  string
	Username string
}

type Server struct {
	log   logx.Logger
	dir   Directory
	notif Notifier
	store storage.Store
	bus   eventbus.Bus

	mu  sync.RWMutex
	cfg Config

	srvMu sync.Mutex
	srv   *http.Server
}

func New(cfg Config, dir Directory, notif Notifier, store storage.Store, bus eventbus.Bus, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Server{
		log:   log.With(logx.String("comp", "relay")),
		dir:   dir,
		notif: notif,
		store: store,
		bus:   bus,
	}
	s.Apply(cfg)
	return s
}

// Apply swaps key, defaults and limits. Addr changes need a restart.
func (s *Server) Apply(cfg Config) {
	if strings.TrimSpace(cfg.DefaultChannel) == "" {
		cfg.DefaultChannel = DefaultChannel
	}
	if strings.TrimSpace(cfg.DefaultUsername) == "" {
		cfg.DefaultUsername = DefaultUsername
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLog)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", s.hello)
	r.Get("/health", s.health)
	r.Post("/notify", s.notify)
	r.Post("/notify/{channel}", s.notify)
	return r
}

// Start listens on the configured address. It returns once the listener
// is bound; serving continues in the background until Stop.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config()
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("relay listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()

	go func() {
		s.log.Info("relay listening", logx.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("relay server failed", logx.Err(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srv = nil
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.log.Info("relay stopped")
	return err
}

func (s *Server) hello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "Hello!")
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notify(w http.ResponseWriter, r *http.Request) {
	cfg := s.config()
	log := s.log.With(logx.String("req_id", chiMiddleware.GetReqID(r.Context())))

	in, err := decodeIncoming(w, r, cfg.MaxBodyBytes)
	if err != nil {
		log.Debug("relay body rejected", logx.Err(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !keyMatches(cfg.APIKey, in.APIKey) {
		log.Warn("relay api key mismatch", logx.String("remote", r.RemoteAddr))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Username) == "" {
		in.Username = cfg.DefaultUsername
	}

	raw := chi.URLParam(r, "channel")
	if u, err := url.PathUnescape(raw); err == nil {
		raw = u
	}
	channel := NormalizeChannel(raw, cfg.DefaultChannel)
	id := uuid.NewString()
	err = s.forward(r.Context(), channel, in)

	e := storage.AuditEntry{Action: "relay.forward", Target: channel, ActorName: in.Username, OK: err == nil, Meta: "id=" + id}
	if err != nil {
		e.Error = err.Error()
	}
	s.audit(e)

	if err != nil {
		log.Error("relay forward failed", logx.String("channel", channel), logx.Err(err))
		http.Error(w, "delivery failed", http.StatusInternalServerError)
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeRelayForwarded, Data: Forwarded{ID: id, Channel: channel, Username: in.Username}})
	log.Info("relay forwarded", logx.String("id", id), logx.String("channel", channel), logx.String("username", in.Username))
	w.Header().Set("X-Relay-Id", id)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) forward(ctx context.Context, channel string, in Incoming) error {
	target, err := s.dir.Resolve(ctx, channel)
	if err != nil {
		return err
	}
	return s.notif.Notify(ctx, notifier.Notification{
		Channel: channel,
		Target:  target,
		Text:    Render(in),
		Options: &kit.SendOptions{DisablePreview: true},
	})
}

func (s *Server) audit(e storage.AuditEntry) {
	if s.store == nil {
		return
	}
	e.At = time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.AppendAudit(ctx, e); err != nil {
		s.log.Warn("audit write failed", logx.Err(err))
	}
}

// NormalizeChannel prefixes bare names with '#'. Names already starting
// with '#' or '@' are kept; empty means def.
func NormalizeChannel(channel, def string) string {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = def
	}
	if channel == "" || channel[0] == '#' || channel[0] == '@' {
		return channel
	}
	// Numeric chat ids pass through untouched.
	if c := channel[0]; c == '-' || (c >= '0' && c <= '9') {
		return channel
	}
	return "#" + channel
}

// Render formats a payload as a chat message.
func Render(in Incoming) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", in.Username, strings.TrimSpace(in.Text))
	title, details := strings.TrimSpace(in.Title), strings.TrimSpace(in.Details)
	if title != "" || details != "" {
		sb.WriteString("\n")
	}
	if title != "" {
		sb.WriteString("\n" + title)
	}
	if details != "" {
		sb.WriteString("\n" + details)
	}
	return sb.String()
}

func decodeIncoming(w http.ResponseWriter, r *http.Request, limit int64) (Incoming, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var in Incoming
	switch mt {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if mt == "multipart/form-data" {
			err = r.ParseMultipartForm(limit)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return in, err
		}
		in = Incoming{
			APIKey:   r.PostForm.Get("apiKey"),
			Text:     r.PostForm.Get("text"),
			Title:    r.PostForm.Get("title"),
			Details:  r.PostForm.Get("details"),
			Username: r.PostForm.Get("username"),
		}
		return in, nil
	default:
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&in); err != nil {
			return in, err
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return in, errors.New("trailing data after JSON body")
		}
		return in, nil
	}
}

func keyMatches(want, got string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("dur", time.Since(start)),
			logx.String("req_id", chiMiddleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
