package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 5000.0, cfg.Optimizer.DefaultDailyBudget)
	assert.Equal(t, 6*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Safety.HighRiskDestinations)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DEFAULT_DAILY_BUDGET", "4200")
	t.Setenv("HIGH_RISK_DESTINATIONS", "Chadar Trek, Kinner Kailash ,")
	t.Setenv("FRONTEND_URL", "https://safar.example.com")
	t.Setenv("PREDICTOR_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 4200.0, cfg.Optimizer.DefaultDailyBudget)
	assert.Equal(t, []string{"Chadar Trek", "Kinner Kailash"}, cfg.Safety.HighRiskDestinations)
	assert.Equal(t, []string{"https://safar.example.com"}, cfg.Server.FrontendURLs)
	assert.Equal(t, 3*time.Second, cfg.Predictor.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := []byte(`
optimizer:
  default_daily_budget: 6500
safety:
  high_risk_destinations:
    - Chadar Trek
logging:
  format: console
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6500.0, cfg.Optimizer.DefaultDailyBudget)
	assert.Equal(t, []string{"Chadar Trek"}, cfg.Safety.HighRiskDestinations)
	assert.Equal(t, "json", cfg.Logging.Format, "environment wins over file")
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "safar", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=safar sslmode=disable", d.DSN())

	d.URL = "postgres://u:p@db:5432/safar"
	assert.Equal(t, "postgres://u:p@db:5432/safar", d.DSN())
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "cache.redis_url", envTransformFunc("REDIS_URL"))
	assert.Equal(t, "database.url", envTransformFunc("DATABASE_URL"))
	assert.Empty(t, envTransformFunc("HOME"))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
