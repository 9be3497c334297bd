// Package directory maps configured chat names ("#eng", "@alice", "-100123")
// to chat targets.
//
// Lookups go through static aliases first, then numeric ids, then the
// transport's Resolver. Resolver answers are cached for a TTL; a miss is
// cached too (for a shorter time) so a typo in config does not hammer the
// platform API every minute.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	kit "stretchbot/internal/transport"
	logx "stretchbot/pkg/logx"
)

var ErrNotFound = errors.New("chat not found")

const (
	defaultTTL         = 10 * time.Minute
	defaultNegativeTTL = time.Minute
	maxEntries         = 256
)

type Config struct {
	// Aliases maps a name to "chat_id" or "chat_id:thread_id".
	Aliases map[string]string
	TTL     time.Duration
}

type entry struct {
	target  kit.ChatTarget
	err     error
	expires time.Time
}

type Directory struct {
	log      logx.Logger
	resolver kit.Resolver

	mu      sync.Mutex
	aliases map[string]kit.ChatTarget
	ttl     time.Duration
	cache   map[string]entry
	now     func() time.Time
}

// New builds a directory. resolver may be nil; then only aliases and
// numeric ids resolve.
func New(cfg Config, resolver kit.Resolver, log logx.Logger) (*Directory, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Directory{
		log:      log.With(logx.String("comp", "directory")),
		resolver: resolver,
		cache:    map[string]entry{},
		now:      time.Now,
	}
	if err := d.Apply(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Apply swaps aliases and TTL and drops cached lookups.
func (d *Directory) Apply(cfg Config) error {
	aliases := make(map[string]kit.ChatTarget, len(cfg.Aliases))
	for name, raw := range cfg.Aliases {
		t, err := ParseTarget(raw)
		if err != nil {
			return fmt.Errorf("alias %q: %w", name, err)
		}
		aliases[normalize(name)] = t
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	d.mu.Lock()
	d.aliases = aliases
	d.ttl = ttl
	d.cache = map[string]entry{}
	d.mu.Unlock()
	return nil
}

// ParseTarget parses "chat_id" or "chat_id:thread_id".
func ParseTarget(raw string) (kit.ChatTarget, error) {
	raw = strings.TrimSpace(raw)
	idPart, threadPart, hasThread := strings.Cut(raw, ":")
	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil || id == 0 {
		return kit.ChatTarget{}, fmt.Errorf("invalid chat id %q", raw)
	}
	t := kit.ChatTarget{ChatID: id}
	if hasThread {
		th, err := strconv.Atoi(strings.TrimSpace(threadPart))
		if err != nil || th < 0 {
			return kit.ChatTarget{}, fmt.Errorf("invalid thread id %q", raw)
		}
		t.ThreadID = th
	}
	return t, nil
}

// Resolve returns the chat target for name. Unknown names yield an error
// wrapping ErrNotFound.
func (d *Directory) Resolve(ctx context.Context, name string) (kit.ChatTarget, error) {
	key := normalize(name)
	if key == "" {
		return kit.ChatTarget{}, fmt.Errorf("empty name: %w", ErrNotFound)
	}

	d.mu.Lock()
	if t, ok := d.aliases[key]; ok {
		d.mu.Unlock()
		return t, nil
	}
	now := d.now()
	if e, ok := d.cache[key]; ok && now.Before(e.expires) {
		d.mu.Unlock()
		return e.target, e.err
	}
	ttl := d.ttl
	d.mu.Unlock()

	if t, err := ParseTarget(key); err == nil {
		return t, nil
	}
	if d.resolver == nil {
		return kit.ChatTarget{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	info, err := d.resolver.ResolveChat(ctx, strings.TrimLeft(key, "@#"))
	e := entry{expires: now.Add(ttl)}
	if err != nil {
		// Context errors are not cached.
		if ctx.Err() != nil {
			return kit.ChatTarget{}, ctx.Err()
		}
		d.log.Warn("chat lookup failed", logx.String("name", name), logx.Err(err))
		e.err = fmt.Errorf("%s: %w", name, ErrNotFound)
		e.expires = now.Add(min(ttl, defaultNegativeTTL))
	} else {
		e.target = kit.ChatTarget{ChatID: info.ID}
		d.log.Debug("chat resolved", logx.String("name", name), logx.Int64("chat_id", info.ID))
	}

	d.mu.Lock()
	d.cache[key] = e
	d.sweepLocked(now)
	d.mu.Unlock()
	return e.target, e.err
}

// Invalidate drops the cached lookup for name.
func (d *Directory) Invalidate(name string) {
	d.mu.Lock()
	delete(d.cache, normalize(name))
	d.mu.Unlock()
}

func (d *Directory) sweepLocked(now time.Time) {
	for k, e := range d.cache {
		if !now.Before(e.expires) {
			delete(d.cache, k)
		}
	}
	for len(d.cache) > maxEntries {
		var (
			oldest string
			at     time.Time
		)
		for k, e := range d.cache {
			if oldest == "" || e.expires.Before(at) {
				oldest, at = k, e.expires
			}
		}
		delete(d.cache, oldest)
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
