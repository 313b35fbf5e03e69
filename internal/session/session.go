package session

import (
	"sync"
	"time"

	"github.com/shehryarbajwa/importbridge/pkg/models"
)

// Session is the caller-owned handle of one launched import session
type Session struct {
	id     string
	token  string
	config models.ImportSessionConfig
	launch LaunchRequest
	timer  *time.Timer
	once   sync.Once
	done   chan struct{}

	mu       sync.RWMutex
	state    models.ImportSession
	outcome  models.ImportOutcome
	resolved bool
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Token returns the secret the page presents for this session's events and
// stream
func (s *Session) Token() string {
	return s.token
}

// Config returns the widget configuration the session was launched with
func (s *Session) Config() models.ImportSessionConfig {
	return s.config
}

// Done is closed once the session reaches a terminal status, after any
// backend submission has completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the resolved outcome, if any
func (s *Session) Outcome() (models.ImportOutcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome, s.resolved
}

// Snapshot returns a copy of the session's externally visible state
func (s *Session) Snapshot() *models.ImportSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	if s.state.ResolvedAt != nil {
		t := *s.state.ResolvedAt
		snap.ResolvedAt = &t
	}
	return &snap
}

func (s *Session) record(outcome models.ImportOutcome, status models.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}

	now := time.Now()
	s.outcome = outcome
	s.resolved = true
	s.state.Status = status
	s.state.Outcome = outcome.Kind
	s.state.Message = outcome.Message
	s.state.ResolvedAt = &now
}

func (s *Session) complete(status models.SessionStatus, code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Status = status
	s.state.SubmitCode = code
	if message != "" {
		s.state.Message = message
	}
}
