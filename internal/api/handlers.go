package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/importbridge/internal/auth"
	"github.com/shehryarbajwa/importbridge/internal/cookie"
	"github.com/shehryarbajwa/importbridge/internal/log"
	"github.com/shehryarbajwa/importbridge/internal/page"
	"github.com/shehryarbajwa/importbridge/internal/session"
	"github.com/shehryarbajwa/importbridge/internal/template"
	"github.com/shehryarbajwa/importbridge/pkg/models"
)

const (
	signatureHeader    = "X-Signature"
	sessionTokenHeader = "X-Session-Token"
	maxEventBody       = 10 << 20
)

var errOwnerRequired = errors.New("owner is required")

// Handler holds dependencies for HTTP handlers
type Handler struct {
	sessionMgr    *session.Manager
	pages         *page.Hub
	catalog       *template.Catalog
	tokens        *auth.Minter
	webhookSecret string
	logger        zerolog.Logger
}

// NewHandler creates a new HTTP handler. When tokens has a secret, launches
// and listings require an importer token it minted and are scoped to its
// username. When webhookSecret is set, importer events must be signed.
func NewHandler(sessionMgr *session.Manager, pages *page.Hub, catalog *template.Catalog, tokens *auth.Minter, webhookSecret string) *Handler {
	return &Handler{
		sessionMgr:    sessionMgr,
		pages:         pages,
		catalog:       catalog,
		tokens:        tokens,
		webhookSecret: webhookSecret,
		logger:        log.WithComponent("api"),
	}
}

// LaunchSession handles POST /v1/sessions
func (h *Handler) LaunchSession(w http.ResponseWriter, r *http.Request) {
	var req models.LaunchSessionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Owner == "" {
		req.Owner = r.Header.Get(ownerHeader)
	}
	if req.AuthToken == "" {
		req.AuthToken = bearerToken(r)
	}
	if req.AuthToken == "" {
		http.Error(w, "authToken is required", http.StatusBadRequest)
		return
	}

	if h.tokens != nil && h.tokens.Enabled() {
		claims, err := h.tokens.Parse(req.AuthToken)
		if err != nil {
			h.logger.Warn().Err(err).Msg("rejected launch with invalid token")
			http.Error(w, "Invalid authToken", http.StatusUnauthorized)
			return
		}
		req.Owner = claims.Username
	}

	var pageURL *url.URL
	if req.PageURL != "" {
		u, err := url.Parse(req.PageURL)
		if err != nil || !u.IsAbs() {
			http.Error(w, "pageUrl must be an absolute URL", http.StatusBadRequest)
			return
		}
		pageURL = u
	}

	s, err := h.sessionMgr.LaunchImportSession(r.Context(), session.LaunchRequest{
		Owner:     req.Owner,
		Domain:    req.Domain,
		Subtype:   req.Subtype,
		AuthToken: req.AuthToken,
		PageURL:   pageURL,
		Cookies:   cookie.Header(r.Header.Get("Cookie")),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.LaunchSessionResponse{
		Session:      s.Snapshot(),
		Config:       s.Config(),
		SessionToken: s.Token(),
	})
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorize(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.Snapshot())
}

// ListSessions handles GET /v1/sessions. Results are limited to one owner.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	owner, err := h.requestOwner(r)
	if err != nil {
		if errors.Is(err, errOwnerRequired) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Invalid authToken", http.StatusUnauthorized)
		return
	}
	status := models.SessionStatus(strings.ToUpper(r.URL.Query().Get("status")))

	writeJSON(w, http.StatusOK, h.sessionMgr.ListSessions(owner, status))
}

// CancelSession handles DELETE /v1/sessions/{id}
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.sessionMgr.Cancel(s.ID()); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PostEvent handles POST /v1/sessions/{id}/events, the importer's callback
// into the bridge.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorize(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if h.webhookSecret != "" && !auth.VerifyHMAC(h.webhookSecret, body, r.Header.Get(signatureHeader)) {
		h.logger.Warn().Str("session", s.ID()).Msg("rejected unsigned importer event")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event models.ImporterEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := event.Outcome()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.sessionMgr.Resolve(s.ID(), outcome); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// PageStream handles GET /v1/sessions/{id}/ws. Browsers cannot set headers
// on a websocket handshake, so the session token may come as ?token=.
func (h *Handler) PageStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorize(w, r)
	if !ok {
		return
	}

	h.pages.HandleConnection(w, r, s.ID())
}

// ListTemplates handles GET /v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fallback":  h.catalog.Fallback(),
		"templates": h.catalog.Entries(),
	})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorize resolves {id} and checks the caller's session token. It writes
// the error response itself.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := mux.Vars(r)["id"]

	token := r.Header.Get(sessionTokenHeader)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	s, err := h.sessionMgr.Authorize(id, token)
	if err != nil {
		if errors.Is(err, session.ErrInvalidToken) {
			h.logger.Warn().Str("session", id).Str("route", r.URL.Path).Msg("rejected request without session token")
		}
		writeError(w, err)
		return nil, false
	}
	return s, true
}

// requestOwner is the token's username when tokens are enforced, otherwise
// the owner the caller names.
func (h *Handler) requestOwner(r *http.Request) (string, error) {
	if h.tokens != nil && h.tokens.Enabled() {
		claims, err := h.tokens.Parse(bearerToken(r))
		if err != nil {
			return "", err
		}
		return claims.Username, nil
	}

	owner := getOwnerID(r)
	if owner == "" {
		return "", errOwnerRequired
	}
	return owner, nil
}

func bearerToken(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, session.ErrInvalidPage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, session.ErrSessionOutstanding), errors.Is(err, session.ErrAlreadyResolved):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
