package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 90, cfg.Sync.LookbackDays)
	assert.Equal(t, "ALL", cfg.GitHub.Repo)
	assert.True(t, cfg.GitHub.AllRepos())
	assert.Equal(t, time.Monday, cfg.Scheduler.ReportWeekday)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("GITHUB_REPO", "metrics-api")
	t.Setenv("SYNC_LOOKBACK_DAYS", "30")
	t.Setenv("REPORT_WEEKDAY", "friday")
	t.Setenv("SCHEDULER_TIMES", "05:00,17:30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.False(t, cfg.GitHub.AllRepos())
	assert.Equal(t, 30, cfg.Sync.LookbackDays)
	assert.Equal(t, time.Friday, cfg.Scheduler.ReportWeekday)
	assert.Equal(t, []string{"05:00", "17:30"}, cfg.Scheduler.ScheduleTimes)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveLookback(t *testing.T) {
	t.Setenv("SYNC_LOOKBACK_DAYS", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "pulse",
		Password: "pw", DBName: "pulse", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=pulse password=pw dbname=pulse sslmode=disable",
		db.ConnectionString())
}
