// Package page pushes widget launches and container updates to the browser
// page that owns an import session.
package page

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/importbridge/internal/log"
	"github.com/shehryarbajwa/importbridge/pkg/models"
)

// Element ids the expense pages render
const (
	ContainerID        = "container"
	LoadingContainerID = "loading_container"
)

// Frame actions
const (
	ActionLaunch  = "launch"
	ActionHide    = "hide"
	ActionReplace = "replace"
	ActionError   = "error"
)

const (
	defaultBacklog = 16
	writeTimeout   = 10 * time.Second
)

// Frame is one instruction for the page
type Frame struct {
	Action  string                      `json:"action"`
	Target  string                      `json:"target,omitempty"`
	HTML    string                      `json:"html,omitempty"`
	Message string                      `json:"message,omitempty"`
	Config  *models.ImportSessionConfig `json:"config,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(f Frame) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(f)
}

// Hub fans frames out to the pages subscribed to each session.
// Recent frames are replayed to pages that connect late.
type Hub struct {
	clients     map[string]map[*client]struct{}
	backlog     map[string][]Frame
	backlogSize int
	mu          sync.Mutex
	logger      zerolog.Logger
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[string]map[*client]struct{}),
		backlog:     make(map[string][]Frame),
		backlogSize: defaultBacklog,
		logger:      log.WithComponent("page"),
	}
}

// Publish sends f to every page watching sessionID.
func (h *Hub) Publish(sessionID string, f Frame) {
	h.mu.Lock()
	frames := append(h.backlog[sessionID], f)
	if len(frames) > h.backlogSize {
		frames = frames[len(frames)-h.backlogSize:]
	}
	h.backlog[sessionID] = frames

	targets := make([]*client, 0, len(h.clients[sessionID]))
	for c := range h.clients[sessionID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.mu.Lock()
		err := c.write(f)
		c.mu.Unlock()
		if err != nil {
			h.logger.Warn().Err(err).Str("session", sessionID).Msg("failed to push frame")
		}
	}
}

// Backlog returns the frames a late subscriber would receive.
func (h *Hub) Backlog(sessionID string) []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Frame(nil), h.backlog[sessionID]...)
}

// Forget drops the backlog for a session
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	delete(h.backlog, sessionID)
	h.mu.Unlock()
}

// Hide hides an element on the page.
func (h *Hub) Hide(sessionID, elementID string) {
	h.Publish(sessionID, Frame{Action: ActionHide, Target: elementID})
}

// Replace replaces an element's content with raw HTML.
func (h *Hub) Replace(sessionID, elementID, html string) {
	h.Publish(sessionID, Frame{Action: ActionReplace, Target: elementID, HTML: html})
}

// ShowError renders an error state in an element.
func (h *Hub) ShowError(sessionID, elementID, message string) {
	h.Publish(sessionID, Frame{Action: ActionError, Target: elementID, Message: message})
}

// HandleConnection upgrades the request and streams frames for sessionID
// until the page disconnects. Callers validate the session first.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}
	defer conn.Close()

	c := &client{conn: conn}

	c.mu.Lock()
	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*client]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
	replay := append([]Frame(nil), h.backlog[sessionID]...)
	h.mu.Unlock()

	for _, f := range replay {
		if err := c.write(f); err != nil {
			break
		}
	}
	c.mu.Unlock()

	defer h.remove(sessionID, c)

	h.logger.Debug().Str("session", sessionID).Msg("page connected")

	// Pages never send anything meaningful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("session", sessionID).Msg("page connection closed")
			}
			return
		}
	}
}

func (h *Hub) remove(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients[sessionID], c)
	if len(h.clients[sessionID]) == 0 {
		delete(h.clients, sessionID)
	}
}
