package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "api-key", cfg.AuthMode)
	assert.Equal(t, 10, cfg.MaxQuestions)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.Equal(t, 15*time.Second, cfg.SSEKeepAlive)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "none")
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("MAX_QUESTIONS", "3")
	t.Setenv("DB_PATH", "/tmp/taskdraft.db")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.MaxQuestions)
	assert.True(t, cfg.PersistenceEnabled())
	assert.True(t, cfg.ModelEnabled())
}

func TestValidate_AuthModes(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"api-key missing key", Config{AuthMode: "api-key", MaxQuestions: 10, MaxTokens: 100, SSEKeepAlive: time.Second}, true},
		{"api-key with key", Config{AuthMode: "api-key", APIKey: "k", MaxQuestions: 10, MaxTokens: 100, SSEKeepAlive: time.Second}, false},
		{"jwt missing secret", Config{AuthMode: "jwt", MaxQuestions: 10, MaxTokens: 100, SSEKeepAlive: time.Second}, true},
		{"jwt with secret", Config{AuthMode: "jwt", JWTSecret: "s", MaxQuestions: 10, MaxTokens: 100, SSEKeepAlive: time.Second}, false},
		{"none", Config{AuthMode: "none", MaxQuestions: 10, MaxTokens: 100, SSEKeepAlive: time.Second}, false},
		{"unknown", Config{AuthMode: "mtls", MaxQuestions: 10, MaxTokens: 100, SSEKeepAlive: time.Second}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Bounds(t *testing.T) {
	cfg := Config{AuthMode: "none", MaxQuestions: 0, MaxTokens: 100, SSEKeepAlive: time.Second}
	assert.Error(t, cfg.Validate())

	cfg = Config{AuthMode: "none", MaxQuestions: 10, MaxTokens: 0, SSEKeepAlive: time.Second}
	assert.Error(t, cfg.Validate())
}
