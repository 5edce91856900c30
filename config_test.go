package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettings(t *testing.T, args ...string) Settings {
	t.Helper()
	v := viper.New()
	cmd := &cobra.Command{Use: "test"}
	bindSettings(cmd, v)
	require.NoError(t, cmd.ParseFlags(args))
	return loadSettings(v)
}

func TestLoadSettingsDefaults(t *testing.T) {
	s := newTestSettings(t)

	assert.Equal(t, 80, s.HTTPPort)
	assert.Equal(t, 443, s.HTTPSPort)
	assert.Equal(t, "./config", s.ConfigDir)
	assert.False(t, s.AuditEnabled)
	assert.Equal(t, defaultTranscribeURL, s.TranscribeURL)
	assert.Equal(t, 30*time.Second, s.ChatTimeout)
	assert.Equal(t, 60*time.Second, s.TranscribeTimeout)
}

func TestLoadSettingsHighPortMode(t *testing.T) {
	s := newTestSettings(t, "--high-port-mode")

	assert.True(t, s.HighPortMode)
	assert.Equal(t, 8080, s.HTTPPort)
	assert.Equal(t, 8443, s.HTTPSPort)
}

func TestLoadSettingsFromEnvAndFlags(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("CHAT_TIMEOUT", "45s")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	s := newTestSettings(t, "--https-port=-1", "--audit", "--config-dir=/etc/chatrelay")

	assert.Equal(t, 9000, s.HTTPPort)
	assert.Equal(t, -1, s.HTTPSPort)
	assert.True(t, s.AuditEnabled)
	assert.Equal(t, "/etc/chatrelay", s.ConfigDir)
	assert.Zero(t, s.RateLimitRPS)
	assert.Equal(t, 45*time.Second, s.ChatTimeout)
	assert.Equal(t, "sk-env", s.OpenAIKey)
}
