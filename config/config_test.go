package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Queue.Concurrency)
	assert.Equal(t, time.Hour, cfg.Queue.Retention)
	assert.Equal(t, []string{"In Review", "Ready for QA"}, cfg.Webhook.TriggerStates)
	assert.Equal(t, 3, cfg.Agent.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.Agent.BreakerReset)
	assert.True(t, cfg.Retention.Enabled)
	assert.Equal(t, 90, cfg.Retention.HistoryDays)
	assert.Equal(t, 30, cfg.Retention.ArtifactDays)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
queue:
  concurrency: 5
webhook:
  trigger_labels: ["qa"]
retention:
  artifact_days: 7
`)
	t.Setenv("QUEUE_CONCURRENCY", "2")
	t.Setenv("TARGET_URL", "https://staging.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Queue.Concurrency, "environment wins over the file")
	assert.Equal(t, []string{"qa"}, cfg.Webhook.TriggerLabels)
	assert.Equal(t, 7, cfg.Retention.ArtifactDays)
	assert.Equal(t, "https://staging.example.com", cfg.Target.URL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Webhook: WebhookConfig{Secret: "s"},
		Agent:   AgentConfig{URL: "http://agent:8080"},
		Target:  TargetConfig{URL: "https://app.example.com"},
		Queue:   QueueConfig{Concurrency: 1},
	}
	require.NoError(t, valid.Validate())

	tests := map[string]func(c *Config){
		"missing secret":    func(c *Config) { c.Webhook.Secret = "" },
		"missing agent":     func(c *Config) { c.Agent.URL = "" },
		"missing target":    func(c *Config) { c.Target.URL = "" },
		"zero concurrency":  func(c *Config) { c.Queue.Concurrency = 0 },
		"negative history":  func(c *Config) { c.Retention.HistoryDays = -1 },
		"negative artifact": func(c *Config) { c.Retention.ArtifactDays = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
