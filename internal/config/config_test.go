package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PAGE_URL", "")
	t.Setenv("SUBMIT_MAX_TRIES", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "load_raw_data", cfg.SubmitEndpoint)
	assert.Equal(t, 3, cfg.SubmitMaxTries)
	assert.Equal(t, 15*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 10*time.Minute, cfg.SessionRetention)
	assert.Equal(t, "/travel/hotels/raw_data", cfg.PageURL.Path)
	assert.Equal(t, "", cfg.FallbackTemplateKey)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PAGE_URL", "https://cpr.example.com/travel/air/raw-data")
	t.Setenv("SESSION_TIMEOUT", "2m")
	t.Setenv("SUBMIT_MAX_TRIES", "5")
	t.Setenv("FALLBACK_TEMPLATE_KEY", "generic_file")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "cpr.example.com", cfg.PageURL.Host)
	assert.Equal(t, 2*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 5, cfg.SubmitMaxTries)
	assert.Equal(t, "generic_file", cfg.FallbackTemplateKey)
}

func TestFromEnvRejectsRelativePageURL(t *testing.T) {
	t.Setenv("PAGE_URL", "travel/hotels/raw_data")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsZeroTries(t *testing.T) {
	t.Setenv("PAGE_URL", "")
	t.Setenv("SUBMIT_MAX_TRIES", "0")

	_, err := FromEnv()
	assert.Error(t, err)
}
