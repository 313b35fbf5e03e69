package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/importbridge/internal/cookie"
	"github.com/shehryarbajwa/importbridge/internal/log"
	"github.com/shehryarbajwa/importbridge/internal/metrics"
	"github.com/shehryarbajwa/importbridge/internal/page"
	"github.com/shehryarbajwa/importbridge/internal/store"
	"github.com/shehryarbajwa/importbridge/internal/template"
	"github.com/shehryarbajwa/importbridge/internal/widget"
	"github.com/shehryarbajwa/importbridge/pkg/models"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionOutstanding = errors.New("an import session is already outstanding")
	ErrAlreadyResolved    = errors.New("import session already resolved")
	ErrInvalidPage        = errors.New("invalid page URL")
	ErrInvalidToken       = errors.New("invalid session token")
)

const (
	DefaultOwner   = "default"
	timedOutReason = "import session timed out"
)

// Display is the page's container contract
type Display interface {
	Hide(sessionID, elementID string)
	Replace(sessionID, elementID, html string)
	ShowError(sessionID, elementID, message string)
	// Forget drops anything still buffered for the session.
	Forget(sessionID string)
}

// Submitter forwards accepted payloads to the backend
type Submitter interface {
	Target(pageURL *url.URL) (*url.URL, error)
	BuildRequest(pageURL *url.URL, payload json.RawMessage, authToken string, cookies cookie.Source) (*models.SubmissionRequest, error)
	Submit(ctx context.Context, req *models.SubmissionRequest) (*models.SubmissionResult, error)
}

// LaunchRequest describes one import session launch
type LaunchRequest struct {
	Owner     string
	Domain    string
	Subtype   string
	AuthToken string
	// PageURL overrides the submitter's page for resolving load_raw_data.
	PageURL *url.URL
	// Cookies is the ambient store the anti-forgery token is read from.
	Cookies cookie.Source
}

// Options tune session lifetimes
type Options struct {
	Widget        widget.Settings
	Timeout       time.Duration
	SubmitTimeout time.Duration
	// Retention is how long a finished session stays queryable.
	Retention time.Duration
}

// Manager is the import-handoff bridge: it launches import sessions, keeps
// at most one outstanding session per owner, and routes each session's single
// outcome to the backend submission or to a logged no-op.
type Manager struct {
	sessions  sync.Map // map[sessionID]*Session
	catalog   *template.Catalog
	launcher  widget.Launcher
	submitter Submitter
	display   Display
	leases    store.Leaser
	opts      Options
	inflight  sync.WaitGroup
	logger    zerolog.Logger
}

// NewManager creates a new bridge
func NewManager(catalog *template.Catalog, launcher widget.Launcher, submitter Submitter, display Display, leases store.Leaser, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Minute
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 30 * time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 10 * time.Minute
	}

	return &Manager{
		catalog:   catalog,
		launcher:  launcher,
		submitter: submitter,
		display:   display,
		leases:    leases,
		opts:      opts,
		logger:    log.WithComponent("session"),
	}
}

// LaunchImportSession configures and launches the importer for req. It
// returns as soon as the widget is launched; the outcome arrives later via
// Resolve. Launching for an owner whose session is outstanding fails with
// ErrSessionOutstanding.
func (m *Manager) LaunchImportSession(ctx context.Context, req LaunchRequest) (*Session, error) {
	if req.Owner == "" {
		req.Owner = DefaultOwner
	}

	templateKey, mapped := m.catalog.Resolve(req.Domain, req.Subtype)
	if !mapped {
		m.logger.Warn().
			Str("domain", req.Domain).
			Str("subtype", req.Subtype).
			Str("fallback", string(templateKey)).
			Msg("no template mapped, using fallback")
	}

	if req.PageURL != nil {
		if _, err := m.submitter.Target(req.PageURL); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPage, err)
		}
	}

	sessionID := uuid.New().String()
	leaseTTL := m.opts.Timeout + m.opts.SubmitTimeout

	if err := m.leases.Acquire(ctx, req.Owner, sessionID, leaseTTL); err != nil {
		if errors.Is(err, store.ErrLeaseHeld) {
			metrics.LaunchesRejected.Inc()
			return nil, fmt.Errorf("%w for owner %s", ErrSessionOutstanding, req.Owner)
		}
		return nil, err
	}

	now := time.Now()
	s := &Session{
		id:     sessionID,
		token:  uuid.New().String(),
		config: m.opts.Widget.Config(string(templateKey), req.AuthToken),
		launch: req,
		done:   make(chan struct{}),
		state: models.ImportSession{
			ID:          sessionID,
			Owner:       req.Owner,
			Domain:      req.Domain,
			Subtype:     req.Subtype,
			TemplateKey: string(templateKey),
			Status:      models.StatusRunning,
			StartedAt:   now,
			ExpiresAt:   now.Add(m.opts.Timeout),
		},
	}

	m.sessions.Store(sessionID, s)

	// Armed before Launch so an outcome reported during Launch stops it.
	s.mu.Lock()
	s.timer = time.AfterFunc(m.opts.Timeout, func() {
		m.expire(s)
	})
	s.mu.Unlock()

	if err := m.launcher.Launch(ctx, sessionID, s.config); err != nil {
		s.mu.Lock()
		s.timer.Stop()
		s.mu.Unlock()
		m.sessions.Delete(sessionID)
		m.display.Forget(sessionID)
		m.releaseLease(s)
		return nil, fmt.Errorf("failed to launch importer: %w", err)
	}

	metrics.SessionsLaunched.WithLabelValues(req.Domain, req.Subtype, string(templateKey)).Inc()
	m.logger.Info().
		Str("session", sessionID).
		Str("owner", req.Owner).
		Str("template", string(templateKey)).
		Msg("import session launched")

	return s, nil
}

// Resolve delivers the session's outcome. Only the first call for a session
// takes effect; later calls return ErrAlreadyResolved.
func (m *Manager) Resolve(sessionID string, outcome models.ImportOutcome) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	status := statusFor(outcome.Kind)
	if !m.settle(s, outcome, status) {
		return ErrAlreadyResolved
	}
	return nil
}

// Cancel resolves an outstanding session as cancelled.
func (m *Manager) Cancel(sessionID string) error {
	return m.Resolve(sessionID, models.Cancelled())
}

// GetSession retrieves a snapshot of a session by ID
func (m *Manager) GetSession(id string) (*models.ImportSession, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Authorize returns the live handle for a session if token is the one issued
// at launch.
func (m *Manager) Authorize(id, token string) (*Session, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return nil, ErrInvalidToken
	}
	return s, nil
}

// ListSessions returns sessions for an owner, optionally filtered by status,
// oldest first.
func (m *Manager) ListSessions(owner string, status models.SessionStatus) []*models.ImportSession {
	var sessions []*models.ImportSession

	m.sessions.Range(func(key, value interface{}) bool {
		snap := value.(*Session).Snapshot()

		if owner != "" && snap.Owner != owner {
			return true
		}
		if status != "" && snap.Status != status {
			return true
		}

		sessions = append(sessions, snap)
		return true
	})

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions
}

// Wait blocks until in-flight submissions finish or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(id string) (*Session, error) {
	value, ok := m.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return value.(*Session), nil
}

// expire fails a session that never produced an outcome
func (m *Manager) expire(s *Session) {
	if m.settle(s, models.Failed(timedOutReason), models.StatusTimedOut) {
		m.logger.Warn().Str("session", s.id).Msg("import session timed out")
	}
}

// settle applies the first outcome for s and reports whether it won.
func (m *Manager) settle(s *Session, outcome models.ImportOutcome, status models.SessionStatus) bool {
	won := false
	s.once.Do(func() {
		won = true

		s.record(outcome, status)
		metrics.SessionOutcomes.WithLabelValues(string(outcome.Kind)).Inc()

		switch outcome.Kind {
		case models.OutcomeSuccess:
			m.inflight.Add(1)
			go m.submit(s, outcome.Payload)
		case models.OutcomeCancelled:
			m.logger.Info().Str("session", s.id).Msg("import cancelled")
			m.finish(s)
		default:
			m.logger.Error().Str("session", s.id).Str("message", outcome.Message).Msg("import failed")
			m.finish(s)
		}
	})
	return won
}

// submit forwards a success payload and updates the page with the result
func (m *Manager) submit(s *Session, payload json.RawMessage) {
	defer m.inflight.Done()
	defer m.finish(s)

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SubmitTimeout)
	defer cancel()

	req, err := m.submitter.BuildRequest(s.launch.PageURL, payload, s.launch.AuthToken, s.launch.Cookies)
	if err != nil {
		m.logger.Error().Err(err).Str("session", s.id).Msg("failed to build submission")
		s.complete(models.StatusFailed, 0, err.Error())
		m.display.ShowError(s.id, page.LoadingContainerID, "The imported data could not be submitted.")
		return
	}

	result, err := m.submitter.Submit(ctx, req)
	if err != nil {
		m.logger.Error().Err(err).Str("session", s.id).Msg("submission failed")
		s.complete(models.StatusFailed, 0, err.Error())
		m.display.ShowError(s.id, page.LoadingContainerID, "The server could not be reached. Please try again.")
		return
	}

	if !result.OK() {
		msg := fmt.Sprintf("backend rejected submission with status %d", result.StatusCode)
		m.logger.Error().Str("session", s.id).Int("status", result.StatusCode).Msg("submission rejected")
		s.complete(models.StatusFailed, result.StatusCode, msg)
		m.display.ShowError(s.id, page.LoadingContainerID, msg)
		return
	}

	s.complete(models.StatusCompleted, result.StatusCode, "")
	m.display.Hide(s.id, page.ContainerID)
	m.display.Replace(s.id, page.LoadingContainerID, string(result.Body))

	m.logger.Info().
		Str("session", s.id).
		Int("status", result.StatusCode).
		Int("attempts", result.Attempts).
		Msg("import submitted")
}

// finish frees the owner's lease and marks the handle done
func (m *Manager) finish(s *Session) {
	m.releaseLease(s)
	close(s.done)

	time.AfterFunc(m.opts.Retention, func() {
		m.sessions.Delete(s.id)
		m.display.Forget(s.id)
	})
}

func (m *Manager) releaseLease(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.leases.Release(ctx, s.launch.Owner, s.id); err != nil {
		m.logger.Warn().Err(err).Str("session", s.id).Msg("failed to release lease")
	}
}

func statusFor(kind models.OutcomeKind) models.SessionStatus {
	switch kind {
	case models.OutcomeSuccess:
		return models.StatusSubmitting
	case models.OutcomeCancelled:
		return models.StatusCancelled
	default:
		return models.StatusFailed
	}
}
