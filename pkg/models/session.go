package models

import "time"

// SessionStatus represents the current state of an import session
type SessionStatus string

const (
	StatusRunning    SessionStatus = "RUNNING"
	StatusSubmitting SessionStatus = "SUBMITTING"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusCancelled  SessionStatus = "CANCELLED"
	StatusFailed     SessionStatus = "FAILED"
	StatusTimedOut   SessionStatus = "TIMED_OUT"
)

// Outstanding reports whether the session still holds its owner's lease.
func (s SessionStatus) Outstanding() bool {
	return s == StatusRunning || s == StatusSubmitting
}

// ImporterOptions are the fixed behavioral flags handed to the widget.
type ImporterOptions struct {
	BlockImportIfErrors bool `json:"blockImportIfErrors"`
}

// ImportSessionConfig is the immutable widget configuration for one session.
// A fresh value is built for every launch.
type ImportSessionConfig struct {
	ClientID    string          `json:"clientId"`
	TemplateKey string          `json:"templateKey"`
	WebhookKey  string          `json:"webhookKey"`
	UserJWT     string          `json:"userJwt"`
	Config      ImporterOptions `json:"config"`
}

// ImportSession is the externally visible state of an import session
type ImportSession struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner"`
	Domain      string        `json:"domain"`
	Subtype     string        `json:"subtype"`
	TemplateKey string        `json:"templateKey"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	ResolvedAt  *time.Time    `json:"resolvedAt,omitempty"`
	Outcome     OutcomeKind   `json:"outcome,omitempty"`
	Message     string        `json:"message,omitempty"`
	SubmitCode  int           `json:"submitStatusCode,omitempty"`
}

// LaunchSessionRequest is the payload for launching a new import session
type LaunchSessionRequest struct {
	Owner     string `json:"owner"`
	Domain    string `json:"domain"`
	Subtype   string `json:"subtype"`
	AuthToken string `json:"authToken,omitempty"`
	PageURL   string `json:"pageUrl,omitempty"`
}

// LaunchSessionResponse returns the session together with the widget config
// the page needs to instantiate the importer.
type LaunchSessionResponse struct {
	Session *ImportSession      `json:"session"`
	Config  ImportSessionConfig `json:"config"`

	// SessionToken must accompany every later call for this session.
	SessionToken string `json:"sessionToken"`
}
