package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koscakluka/ema-workflow/core/sse"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ema-workflow.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 60*time.Second, cfg.Backend.IdleTimeout.Std())
	require.Equal(t, 15, cfg.Dialog.ShortReplyLimit)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: https://workflows.example.com
  idle_timeout: 90s
  framing: line
dialog:
  fallback_contact: Jordan (jordan@example.com)
  steps:
    answer: rag_tool
sessions:
  store: sqlite
  path: /var/lib/ema/sessions.db
  idle_ttl: 2h
`)

	cfg, err := load(path, env(nil))
	require.NoError(t, err)
	require.Equal(t, "https://workflows.example.com", cfg.Backend.BaseURL)
	require.Equal(t, 90*time.Second, cfg.Backend.IdleTimeout.Std())
	require.Equal(t, "line", cfg.Backend.Framing)
	require.Equal(t, "Jordan (jordan@example.com)", cfg.Dialog.FallbackContact)
	require.Equal(t, "rag_tool", cfg.Dialog.Steps.Answer)
	require.Equal(t, Default().Dialog.Steps.Draft, cfg.Dialog.Steps.Draft)
	require.Equal(t, "sqlite", cfg.Sessions.Store)
	require.Equal(t, 2*time.Hour, cfg.Sessions.IdleTTL.Std())
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := load(writeConfig(t, ""), env(nil))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend:\n  base_url: https://file.example.com\n")

	cfg, err := load(path, env(map[string]string{
		"EMA_WORKFLOW_BASE_URL":          "http://env.example.com:9000",
		"EMA_WORKFLOW_IDLE_TIMEOUT":      "0",
		"EMA_WORKFLOW_SHORT_REPLY_LIMIT": "12",
		"EMA_WORKFLOW_SESSION_STORE":     "sqlite",
	}))
	require.NoError(t, err)
	require.Equal(t, "http://env.example.com:9000", cfg.Backend.BaseURL)
	require.Zero(t, cfg.Backend.IdleTimeout)
	require.Equal(t, 12, cfg.Dialog.ShortReplyLimit)
	require.Equal(t, "sqlite", cfg.Sessions.Store)
}

func TestInvalidEnvironment(t *testing.T) {
	_, err := load("", env(map[string]string{"EMA_WORKFLOW_IDLE_TIMEOUT": "soon"}))

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "EMA_WORKFLOW_IDLE_TIMEOUT", cfgErr.Field)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	_, err := load(writeConfig(t, "backend:\n  base_uri: http://typo\n"), env(nil))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "base url", mutate: func(c *Config) { c.Backend.BaseURL = "localhost:8000" }, field: "backend.base_url"},
		{name: "framing", mutate: func(c *Config) { c.Backend.Framing = "chunk" }, field: "backend.framing"},
		{name: "idle timeout", mutate: func(c *Config) { c.Backend.IdleTimeout = -1 }, field: "backend.idle_timeout"},
		{name: "short reply limit", mutate: func(c *Config) { c.Dialog.ShortReplyLimit = 0 }, field: "dialog.short_reply_limit"},
		{name: "store", mutate: func(c *Config) { c.Sessions.Store = "redis" }, field: "sessions.store"},
		{name: "sqlite path", mutate: func(c *Config) { c.Sessions.Store = "sqlite"; c.Sessions.Path = "" }, field: "sessions.path"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := Default()
			testCase.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, testCase.field, cfgErr.Field)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = ""
	cfg.Sessions.Store = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend.base_url")
	require.Contains(t, err.Error(), "sessions.store")
}

func TestParseFraming(t *testing.T) {
	framing, err := ParseFraming("")
	require.NoError(t, err)
	require.Equal(t, sse.FramingEvent, framing)

	framing, err = ParseFraming("line")
	require.NoError(t, err)
	require.Equal(t, sse.FramingLine, framing)

	_, err = ParseFraming("LINE")
	require.Error(t, err)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	require.Equal(t, "ema-workflow configuration", schema["title"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "expected top level properties")
	for _, key := range []string{"backend", "dialog", "sessions", "serve", "chat"} {
		require.Contains(t, properties, key)
	}
}

func TestErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Field: "x", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Equal(t, "invalid config x: boom", err.Error())
}
