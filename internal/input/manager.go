// Package input accumulates chords from raw key events for the active challenge.
package input

import (
	"time"

	"github.com/verte-zerg/keydrill/internal/keys"
)

// Timers arms the inactivity timer. The host delivers the token back through
// Manager.Expire when the delay elapses; superseded tokens are ignored, so
// arming again cancels the previous timer.
type Timers interface {
	Arm(delay time.Duration, token uint64)
}

// Callback receives each recognised chord and a snapshot of the buffer.
type Callback func(chord keys.Chord, buffer []keys.Chord)

// Manager holds the chord buffer and the inactivity timer for one challenge.
type Manager struct {
	timeout time.Duration
	timers  Timers
	onInput Callback

	active bool
	buffer []keys.Chord
	token  uint64
	armed  bool
}

// NewManager builds an inactive manager.
func NewManager(timeout time.Duration, timers Timers, onInput Callback) *Manager {
	return &Manager{timeout: timeout, timers: timers, onInput: onInput}
}

// SetTimeout changes the inactivity window for subsequent chords.
func (m *Manager) SetTimeout(d time.Duration) {
	m.timeout = d
}

// Activate starts capturing for a new challenge with an empty buffer.
func (m *Manager) Activate() {
	m.Reset()
	m.active = true
}

// Deactivate stops capturing and drops any buffered chords.
func (m *Manager) Deactivate() {
	m.Reset()
	m.active = false
}

// Active reports whether keys are being captured.
func (m *Manager) Active() bool {
	return m.active
}

// HandleKey processes one key-down event. It reports true when the event was
// consumed, which is every event while active: the host must not route a
// consumed key to any other handler, recognised or not.
func (m *Manager) HandleKey(ev keys.RawKey) bool {
	if !m.active {
		return false
	}
	chord, ok := keys.FromRaw(ev)
	if !ok {
		return true
	}
	m.cancel()
	m.buffer = append(m.buffer, chord)
	if m.onInput != nil {
		m.onInput(chord, m.Buffer())
	}
	// The callback may have reset or deactivated the manager.
	if m.active && len(m.buffer) > 0 {
		m.arm()
	}
	return true
}

// Expire handles a fired inactivity timer. It clears the buffer and reports
// true only when token is the live timer.
func (m *Manager) Expire(token uint64) bool {
	if !m.armed || token != m.token {
		return false
	}
	m.armed = false
	m.buffer = nil
	return true
}

// Reset clears the buffer and cancels the pending timer.
func (m *Manager) Reset() {
	m.buffer = nil
	m.cancel()
}

// Buffer returns a copy of the buffered chords.
func (m *Manager) Buffer() []keys.Chord {
	if len(m.buffer) == 0 {
		return nil
	}
	out := make([]keys.Chord, len(m.buffer))
	copy(out, m.buffer)
	return out
}

func (m *Manager) cancel() {
	if m.armed {
		m.token++
		m.armed = false
	}
}

func (m *Manager) arm() {
	m.token++
	m.armed = true
	if m.timers != nil {
		m.timers.Arm(m.timeout, m.token)
	}
}
