package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("OKU_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "Oku API", cfg.AppName)
	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, "gpt-4o-mini", cfg.GradingModel)
	require.Equal(t, 4, cfg.WorkerCount)
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, time.Second, cfg.PollInterval)
	require.Equal(t, 60*time.Second, cfg.JobDeadline)
	require.Equal(t, 2*time.Minute, cfg.VisibilityTimeout)
	require.Equal(t, int64(300*1024), cfg.InlineLimitBytes)
	require.Equal(t, 1024, cfg.InitialBudget)
	require.Equal(t, 4096, cfg.EscalatedBudget)
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("OKU_JWT_SECRET", "secret")
	t.Setenv("OKU_APP_PORT", "9090")
	t.Setenv("OKU_GRADING_MODEL", "gpt-4o")
	t.Setenv("OKU_GRADING_WORKERS", "8")
	t.Setenv("OKU_GRADING_BACKOFF_BASE", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.AppPort)
	require.Equal(t, "gpt-4o", cfg.GradingModel)
	require.Equal(t, 8, cfg.WorkerCount)
	require.Equal(t, 10*time.Second, cfg.BackoffBase)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("OKU_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonEscalatingBudget(t *testing.T) {
	t.Setenv("OKU_JWT_SECRET", "secret")
	t.Setenv("OKU_GRADING_INITIAL_BUDGET", "4096")
	t.Setenv("OKU_GRADING_ESCALATED_BUDGET", "4096")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("OKU_JWT_SECRET", "secret")
	t.Setenv("OKU_GRADING_POLL_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestHTTPAddress(t *testing.T) {
	require.Equal(t, ":8080", Config{AppPort: "8080"}.HTTPAddress())
	require.Equal(t, ":9090", Config{AppPort: ":9090"}.HTTPAddress())
}
