package session

import (
	"strings"
	"sync"
	"time"

	"screening-platform/internal/screening"
	"screening-platform/internal/voice"
)

// Session is the live state of one call attempt in this process. The store
// stays the system of record; a Session can always be rebuilt from it.
type Session struct {
	CallID        string
	ApplicationID string

	mu             sync.Mutex
	providerCallID string
	state          State
	startedAt      time.Time
	endedAt        time.Time
	timer          *time.Timer

	lines     []string
	speaking  bool
	lastError string
}

func newSession(c screening.Call) *Session {
	s := &Session{
		CallID:         c.ID,
		ApplicationID:  c.ApplicationID,
		providerCallID: c.ProviderCallID,
		state:          StateStarting,
	}
	if c.Status == screening.StatusInProgress {
		s.state = StateActive
		if c.StartedAt != nil {
			s.startedAt = *c.StartedAt
		}
	}
	return s
}

// ProviderCallID is empty until the provider accepted the call.
func (s *Session) ProviderCallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providerCallID
}

func (s *Session) setProviderCallID(id string) {
	s.mu.Lock()
	s.providerCallID = id
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition moves to next when the current state is one of from.
func (s *Session) transition(next State, from ...State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.state == f {
			s.state = next
			return true
		}
	}
	return false
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) armTimer(d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fire)
}

func (s *Session) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) markStarted(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		s.startedAt = at
	}
}

func (s *Session) markEnded(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endedAt.IsZero() {
		s.endedAt = at
	}
}

func (s *Session) addTranscript(role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	speaker := "User"
	switch strings.ToLower(role) {
	case "assistant", "bot", "ai":
		speaker = "AI"
	}
	s.mu.Lock()
	s.lines = append(s.lines, speaker+": "+text)
	s.mu.Unlock()
}

func (s *Session) setSpeaking(v bool) {
	s.mu.Lock()
	s.speaking = v
	s.mu.Unlock()
}

func (s *Session) recordError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

// observedSeconds is the duration between call-start and call-end as seen here.
func (s *Session) observedSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() || s.endedAt.IsZero() || s.endedAt.Before(s.startedAt) {
		return 0
	}
	return int(s.endedAt.Sub(s.startedAt).Seconds())
}

// snapshot is the event-captured view of the call.
func (s *Session) snapshot() voice.CallData {
	d := voice.CallData{DurationSeconds: s.observedSeconds()}
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Transcript = strings.Join(s.lines, "\n")
	d.ErrorMessage = s.lastError
	return d
}

// Speaking reports whether someone is currently talking on the call.
func (s *Session) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}
