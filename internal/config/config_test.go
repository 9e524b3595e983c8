package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_ADDRESS", ":9999")
	t.Setenv("PLANNER_MATCH_THRESHOLD", "75")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "run_planner", cfg.Database.Name)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, float64(75), cfg.Planner.MatchThreshold)
	assert.Equal(t, 1, cfg.Planner.CandidateWindowDays)
	assert.Equal(t, 8, cfg.Planner.SummaryWeeks)
	assert.False(t, cfg.Strava.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Strava.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.S3.URLExpiry)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  address: ":7000"
jwt:
  secret: "from-file"
  expiration: "30m"
strava:
  enabled: true
  access_token: "abc"
  sync_schedule: "@every 30m"
  sync_user_email: "runner@example.com"
planner:
  summary_weeks: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.True(t, cfg.Strava.Enabled)
	assert.Equal(t, "abc", cfg.Strava.AccessToken)
	assert.Equal(t, "@every 30m", cfg.Strava.SyncSchedule)
	assert.Equal(t, "runner@example.com", cfg.Strava.SyncUserEmail)
	assert.Equal(t, 4, cfg.Planner.SummaryWeeks)
	assert.Equal(t, float64(60), cfg.Planner.MatchThreshold)
	assert.Equal(t, 52, cfg.Planner.MaxPlanWeeks)
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o600))
	t.Setenv("JWT_SECRET", "x")
	_, err := LoadConfig(dir)
	require.Error(t, err)
}
