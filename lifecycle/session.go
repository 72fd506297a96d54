// Package lifecycle tracks the audio session state machine. Its one job
// is policy: audio must never resume unexpectedly after the app is
// foregrounded unless a human re-engaged it, and the Manager is the
// single enforcement point for that rule.
package lifecycle

import (
	"fmt"
	"sync"
	"time"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateSuspended State = "suspended"
	StateStopped   State = "stopped"
)

// Context labels which part of the application owns the session.
type Context string

const (
	ContextNone               Context = "none"
	ContextTraining           Context = "training"
	ContextAuditoryPerception Context = "auditory_perception"
	ContextMusicTheory        Context = "music_theory"
	ContextInterface          Context = "interface"
)

// Session is the full session snapshot delivered to subscribers.
// Exactly one live session exists; a new session fully replaces the old
// one.
type Session struct {
	State            State
	Context          Context
	WasUserInitiated bool
	PreviousState    State // empty until a pause/suspend records one
	SuspendedAt      time.Time
	ComponentID      string
}

// Listener receives the session snapshot after every transition.
type Listener func(Session)

// Manager is the only writer of session state. All transitions notify
// subscribers synchronously after mutation; subscription is the only way
// external code observes the session.
type Manager struct {
	mu        sync.Mutex
	session   Session
	listeners map[int]Listener
	nextID    int
}

// NewManager creates a manager with an idle session.
func NewManager() *Manager {
	return &Manager{
		session:   Session{State: StateIdle, Context: ContextNone},
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Subscribe registers a listener and returns its unsubscribe function.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// StartSession begins a new session. Legal only from idle or stopped;
// the new session fully replaces the previous one.
func (m *Manager) StartSession(ctx Context, componentID string, userInitiated bool) error {
	m.mu.Lock()
	if m.session.State != StateIdle && m.session.State != StateStopped {
		state := m.session.State
		m.mu.Unlock()
		return fmt.Errorf("cannot start session from %q", state)
	}
	m.session = Session{
		State:            StatePlaying,
		Context:          ctx,
		WasUserInitiated: userInitiated,
		ComponentID:      componentID,
	}
	m.notifyLocked()
	return nil
}

// PauseSession moves a playing session to paused.
func (m *Manager) PauseSession() error {
	m.mu.Lock()
	if m.session.State != StatePlaying {
		state := m.session.State
		m.mu.Unlock()
		return fmt.Errorf("cannot pause session from %q", state)
	}
	m.session.PreviousState = StatePlaying
	m.session.State = StatePaused
	m.notifyLocked()
	return nil
}

// SuspendSession records the interruption (tab switch, app background).
// Legal from playing or paused; a no-op when already suspended or
// stopped.
func (m *Manager) SuspendSession() error {
	m.mu.Lock()
	switch m.session.State {
	case StateSuspended, StateStopped:
		m.mu.Unlock()
		return nil
	case StatePlaying, StatePaused:
	default:
		state := m.session.State
		m.mu.Unlock()
		return fmt.Errorf("cannot suspend session from %q", state)
	}
	m.session.PreviousState = m.session.State
	m.session.State = StateSuspended
	m.session.SuspendedAt = time.Now()
	m.notifyLocked()
	return nil
}

// ResumeSession attempts to leave suspension. Resumption is granted only
// if the original session was user-initiated, a valid previous state was
// recorded, and this resume is itself user-initiated. When one of the
// first two conditions fails the session is forced to stopped; when only
// the third fails the resume is rejected and the session stays
// suspended. Returns whether audio activity may resume.
func (m *Manager) ResumeSession(userInitiated bool) bool {
	m.mu.Lock()
	if m.session.State != StateSuspended {
		m.mu.Unlock()
		return false
	}

	if !m.session.WasUserInitiated || m.session.PreviousState == "" {
		m.session.State = StateStopped
		m.session.PreviousState = ""
		m.session.SuspendedAt = time.Time{}
		m.notifyLocked()
		return false
	}
	if !userInitiated {
		m.mu.Unlock()
		return false
	}

	m.session.State = m.session.PreviousState
	m.session.PreviousState = ""
	m.session.SuspendedAt = time.Time{}
	m.notifyLocked()
	return true
}

// StopSession unconditionally resets the session to stopped.
func (m *Manager) StopSession() {
	m.mu.Lock()
	m.session = Session{State: StateStopped, Context: ContextNone}
	m.notifyLocked()
}

// Reset unconditionally returns the session to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.session = Session{State: StateIdle, Context: ContextNone}
	m.notifyLocked()
}

// notifyLocked snapshots state and listeners, releases the lock, then
// invokes listeners synchronously. Listeners therefore always observe a
// fully-updated session and may call back into the manager.
func (m *Manager) notifyLocked() {
	snapshot := m.session
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}
