// Package conversation tracks, per chat context, whether a reply is expected
// and which handler should receive it.
//
// A context is either Idle (no entry) or AwaitingReply(handler). Starting a
// conversation over a pending one replaces it; nothing is stacked.
package conversation

import (
	"sync"
	"time"
)

// Key scopes one conversation, typically a chat (and thread) id.
type Key string

type State struct {
	Active      bool
	NextHandler string
	StartedAt   time.Time
}

type Machine struct {
	mu     sync.Mutex
	states map[Key]State
	now    func() time.Time
}

func New() *Machine {
	return &Machine{states: map[Key]State{}, now: time.Now}
}

// Start moves key to AwaitingReply(handler), overwriting any pending handler.
func (m *Machine) Start(key Key, handler string) {
	m.mu.Lock()
	m.states[key] = State{Active: true, NextHandler: handler, StartedAt: m.now()}
	m.mu.Unlock()
}

// Next re-arms the pending handler for key. It reports false when key is Idle.
func (m *Machine) Next(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[key]
	if !ok || !st.Active {
		return false
	}
	st.StartedAt = m.now()
	m.states[key] = st
	return true
}

func (m *Machine) IsOn(key Key) bool {
	_, ok := m.Pending(key)
	return ok
}

// Pending returns the handler waiting on key.
func (m *Machine) Pending(key Key) (string, bool) {
	m.mu.Lock()
	st, ok := m.states[key]
	m.mu.Unlock()
	if !ok || !st.Active {
		return "", false
	}
	return st.NextHandler, true
}

// Get returns the full state for key; the zero State means Idle.
func (m *Machine) Get(key Key) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[key]
}

// Stop returns key to Idle. Stopping an idle key is a no-op.
func (m *Machine) Stop(key Key) {
	m.mu.Lock()
	delete(m.states, key)
	m.mu.Unlock()
}

// Len reports how many conversations are pending.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
