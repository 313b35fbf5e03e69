package widget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/importbridge/internal/page"
)

func TestSettingsConfig(t *testing.T) {
	s := Settings{ClientID: "client-1", WebhookKey: "hook"}

	cfg := s.Config("air_file", "jwt-1")
	assert.Equal(t, "client-1", cfg.ClientID)
	assert.Equal(t, "air_file", cfg.TemplateKey)
	assert.Equal(t, "hook", cfg.WebhookKey)
	assert.Equal(t, "jwt-1", cfg.UserJWT)
	assert.True(t, cfg.Config.BlockImportIfErrors)

	other := s.Config("hotel_file", "jwt-2")
	assert.Equal(t, "air_file", cfg.TemplateKey)
	assert.Equal(t, "hotel_file", other.TemplateKey)
}

func TestPageLauncherPublishesLaunchFrame(t *testing.T) {
	hub := page.NewHub()
	l := NewPageLauncher(hub)

	cfg := Settings{ClientID: "client-1"}.Config("cars_file", "jwt")
	require.NoError(t, l.Launch(context.Background(), "s1", cfg))

	frames := hub.Backlog("s1")
	require.Len(t, frames, 1)
	assert.Equal(t, page.ActionLaunch, frames[0].Action)
	require.NotNil(t, frames[0].Config)
	assert.Equal(t, cfg, *frames[0].Config)
}

func TestPageLauncherHonoursContext(t *testing.T) {
	hub := page.NewHub()
	l := NewPageLauncher(hub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, l.Launch(ctx, "s1", Settings{}.Config("", "")))
	assert.Empty(t, hub.Backlog("s1"))
}
