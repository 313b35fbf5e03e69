// Package widget is the bridge's view of the hosted file-import widget.
package widget

import (
	"context"
	"fmt"

	"github.com/shehryarbajwa/importbridge/internal/page"
	"github.com/shehryarbajwa/importbridge/pkg/models"
)

// Settings identify the integration tenant with the importer
type Settings struct {
	ClientID   string
	WebhookKey string
}

// Config builds a fresh widget configuration for one session.
// Imports with validation errors are always blocked.
func (s Settings) Config(templateKey, userJWT string) models.ImportSessionConfig {
	return models.ImportSessionConfig{
		ClientID:    s.ClientID,
		TemplateKey: templateKey,
		WebhookKey:  s.WebhookKey,
		UserJWT:     userJWT,
		Config: models.ImporterOptions{
			BlockImportIfErrors: true,
		},
	}
}

// Launcher opens the importer overlay for a session. Outcomes are reported
// back asynchronously, never through Launch.
type Launcher interface {
	Launch(ctx context.Context, sessionID string, cfg models.ImportSessionConfig) error
}

// Publisher delivers frames to the page owning a session
type Publisher interface {
	Publish(sessionID string, f page.Frame)
}

// PageLauncher asks the session's page to instantiate the widget
type PageLauncher struct {
	pages Publisher
}

// NewPageLauncher creates a launcher backed by the page channel
func NewPageLauncher(pages Publisher) *PageLauncher {
	return &PageLauncher{pages: pages}
}

func (l *PageLauncher) Launch(ctx context.Context, sessionID string, cfg models.ImportSessionConfig) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("launch aborted: %w", err)
	}

	l.pages.Publish(sessionID, page.Frame{
		Action: page.ActionLaunch,
		Config: &cfg,
	})
	return nil
}
