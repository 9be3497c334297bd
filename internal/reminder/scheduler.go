// Package reminder owns today's session time and the reminder rules derived
// from it.
//
// All state lives behind one mutex. DueReminders reads and marks rules in a
// single critical section so a rule is handed out at most once per day, no
// matter how many per-minute ticks race.
package reminder

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"stretchbot/internal/daytime"
	"stretchbot/internal/eventbus"
	logx "stretchbot/pkg/logx"
)

// Placeholder is replaced by the pretty session time when a rule fires.
const Placeholder = "{time}"

// DefaultTemplate is the reminder text used when an offset has none.
const DefaultTemplate = "Hey Healthy and Fit team! Just a reminder that the next stretch will be at " + Placeholder + "!"

// Offset describes one reminder relative to the session.
type Offset struct {
	Before   time.Duration
	Template string
}

// DefaultOffsets fires an hour before, fifteen minutes before and at the
// session time.
func DefaultOffsets() []Offset {
	return []Offset{
		{Before: 60 * time.Minute, Template: DefaultTemplate},
		{Before: 15 * time.Minute, Template: DefaultTemplate},
		{Before: 0, Template: DefaultTemplate},
	}
}

type Config struct {
	Offsets  []Offset
	Location *time.Location
}

// Rule is one reminder for the current session.
type Rule struct {
	FireAt     daytime.TimeOfDay
	Offset     time.Duration
	Template   string
	Session    daytime.TimeOfDay
	FiredToday bool
}

// Message renders the rule's template for its session.
func (r Rule) Message() string {
	return strings.ReplaceAll(r.Template, Placeholder, r.Session.Pretty())
}

// Snapshot is a point-in-time copy of the scheduler state.
type Snapshot struct {
	Session  daytime.TimeOfDay
	Rules    []Rule
	Location string
}

// Scheduled is published after ScheduleNext.
type Scheduled struct {
	Session daytime.TimeOfDay
	Rules   int
}

// Fired is published after every Fire call.
type Fired struct {
	Rule    Rule
	Message string
	Err     error
}

type Scheduler struct {
	log logx.Logger
	bus eventbus.Bus

	mu      sync.Mutex
	loc     *time.Location
	offsets []Offset
	session daytime.TimeOfDay
	rules   []Rule
}

// New returns a scheduler with no session; call ScheduleNext to seed it.
func New(cfg Config, bus eventbus.Bus, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Scheduler{
		log:     log.With(logx.String("comp", "reminder")),
		bus:     bus,
		session: daytime.Off,
	}
	s.applyLocked(cfg)
	return s
}

// Apply swaps offsets and location. If a session is set, its rules are
// regenerated and fired flags are carried over for rules at the same time.
func (s *Scheduler) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(cfg)
	if s.session.IsOff() {
		return
	}
	fired := map[daytime.TimeOfDay]bool{}
	for _, r := range s.rules {
		if r.FiredToday {
			fired[r.FireAt] = true
		}
	}
	s.rules = s.buildLocked(s.session)
	for i := range s.rules {
		s.rules[i].FiredToday = fired[s.rules[i].FireAt]
	}
}

func (s *Scheduler) applyLocked(cfg Config) {
	s.loc = cfg.Location
	if s.loc == nil {
		s.loc = time.Local
	}
	offsets := cfg.Offsets
	if len(offsets) == 0 {
		offsets = DefaultOffsets()
	}
	s.offsets = make([]Offset, len(offsets))
	copy(s.offsets, offsets)
	for i := range s.offsets {
		if strings.TrimSpace(s.offsets[i].Template) == "" {
			s.offsets[i].Template = DefaultTemplate
		}
	}
}

// ScheduleNext sets the session time. Off clears every rule; any other time
// regenerates the full rule set with nothing fired.
func (s *Scheduler) ScheduleNext(t daytime.TimeOfDay) {
	s.mu.Lock()
	s.session = t
	if t.IsOff() {
		s.rules = nil
	} else {
		s.rules = s.buildLocked(t)
	}
	n := len(s.rules)
	s.mu.Unlock()

	s.log.Info("session scheduled", logx.String("session", t.String()), logx.Int("rules", n))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionScheduled, Data: Scheduled{Session: t, Rules: n}})
}

func (s *Scheduler) buildLocked(session daytime.TimeOfDay) []Rule {
	rules := make([]Rule, 0, len(s.offsets))
	for _, o := range s.offsets {
		rules = append(rules, Rule{
			FireAt:   session.Add(-o.Before).Truncate(),
			Offset:   o.Before,
			Template: o.Template,
			Session:  session,
		})
	}
	return rules
}

// DueReminders returns the rules due at now's minute and marks them fired.
// Once now is past the session minute nothing is returned, fired or not.
func (s *Scheduler) DueReminders(now time.Time) []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.IsOff() || len(s.rules) == 0 {
		return nil
	}
	minute := daytime.FromTime(now.In(s.loc)).Truncate()
	if minute > s.session.Truncate() {
		return nil
	}
	var due []Rule
	for i := range s.rules {
		r := &s.rules[i]
		if r.FiredToday || r.FireAt != minute {
			continue
		}
		r.FiredToday = true
		due = append(due, *r)
	}
	return due
}

// ResetDaily clears the fired flag on every rule.
func (s *Scheduler) ResetDaily() {
	s.mu.Lock()
	for i := range s.rules {
		s.rules[i].FiredToday = false
	}
	n := len(s.rules)
	s.mu.Unlock()

	s.log.Debug("reminders reset", logx.Int("rules", n))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeRemindersReset, Data: n})
}

// Fire renders rule and hands it to deliver. The delivery error is returned
// for logging only; the rule stays fired.
func (s *Scheduler) Fire(rule Rule, deliver func(message string) error) error {
	if deliver == nil {
		return errors.New("nil deliver")
	}
	msg := rule.Message()
	err := deliver(msg)
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeReminderFired, Data: Fired{Rule: rule, Message: msg, Err: err}})
	return err
}

// Session returns the current session time.
func (s *Scheduler) Session() daytime.TimeOfDay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Location is the zone DueReminders evaluates in.
func (s *Scheduler) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := make([]Rule, len(s.rules))
	copy(rules, s.rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].FireAt < rules[j].FireAt })
	return Snapshot{Session: s.session, Rules: rules, Location: s.loc.String()}
}
