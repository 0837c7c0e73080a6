package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  host: localhost\n  port: 5432\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 5, cfg.Availability.RecentChangesLimit)
	assert.Equal(t, 10*time.Second, cfg.Availability.RecencyWindow())
	assert.Equal(t, 15*time.Second, cfg.Availability.AmbientInterval())
	assert.Equal(t, time.Second, cfg.Availability.FetchTimeout())
	assert.Equal(t, 0.7, cfg.Availability.SeedAvailableRatio)
	assert.Equal(t, 5, cfg.Booking.AlternativesLimit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_Overrides(t *testing.T) {
	raw := `
http:
  address: ":9090"
availability:
  simulate: true
  recent_changes_limit: 3
  recency_window_seconds: 20
kafka:
  brokers: ["localhost:9092"]
  availability_topic: court-availability
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.True(t, cfg.Availability.Simulate)
	assert.Equal(t, 3, cfg.Availability.RecentChangesLimit)
	assert.Equal(t, 20*time.Second, cfg.Availability.RecencyWindow())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "court-availability", cfg.Kafka.AvailabilityTopic)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("http: [unclosed"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: db\n  port: 5432\n  user: u\n  password: p\n  name: courts\n  ssl_mode: disable\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=courts sslmode=disable", cfg.Database.DSN())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
