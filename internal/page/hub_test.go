package page

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/importbridge/pkg/models"
)

func dial(t *testing.T, h *Hub, sessionID string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleConnection(w, r, sessionID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestLateSubscriberGetsBacklog(t *testing.T) {
	h := NewHub()
	cfg := &models.ImportSessionConfig{TemplateKey: "hotel_file"}
	h.Publish("s1", Frame{Action: ActionLaunch, Config: cfg})

	conn := dial(t, h, "s1")

	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, ActionLaunch, f.Action)
	require.NotNil(t, f.Config)
	assert.Equal(t, "hotel_file", f.Config.TemplateKey)
}

func TestLiveFramesInOrder(t *testing.T) {
	h := NewHub()
	h.Publish("s1", Frame{Action: ActionLaunch})

	conn := dial(t, h, "s1")

	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, ActionLaunch, f.Action)

	h.Hide("s1", ContainerID)
	h.Replace("s1", LoadingContainerID, "<p>done</p>")

	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, Frame{Action: ActionHide, Target: ContainerID}, f)

	f = Frame{}
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, Frame{Action: ActionReplace, Target: LoadingContainerID, HTML: "<p>done</p>"}, f)
}

func TestFramesAreScopedToSession(t *testing.T) {
	h := NewHub()
	h.ShowError("other", LoadingContainerID, "boom")
	h.Publish("s1", Frame{Action: ActionLaunch})

	conn := dial(t, h, "s1")

	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, ActionLaunch, f.Action)

	assert.Len(t, h.Backlog("other"), 1)
}

func TestBacklogIsBounded(t *testing.T) {
	h := NewHub()
	for i := 0; i < defaultBacklog+5; i++ {
		h.Hide("s1", ContainerID)
	}
	assert.Len(t, h.Backlog("s1"), defaultBacklog)

	h.Forget("s1")
	assert.Empty(t, h.Backlog("s1"))
}
