package config

import (
	"math"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, SourceCSV, cfg.DataSource)
	assert.Equal(t, "data/fixtures.csv", cfg.FixturesPath)
	assert.Equal(t, 20*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5000, cfg.SimRuns)
	assert.Equal(t, 4, cfg.SimWorkers)
	assert.Equal(t, max(4, runtime.NumCPU()), cfg.SimMaxWorkers)
	assert.Equal(t, int64(0), cfg.SimSeed)
	assert.Equal(t, 5, cfg.SimTopK)
	assert.Equal(t, 2, cfg.SimBottomM)
	assert.InDelta(t, 0.6, cfg.SimCurrentWeight, 1e-9)
	assert.InDelta(t, 0.85, cfg.SimMaxProb, 1e-9)
	assert.Equal(t, "@every 15m", cfg.RefreshSchedule)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.Season)
	assert.Empty(t, cfg.ServedSeason())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SIM_RUNS", "2000")
	t.Setenv("DATA_SOURCE", "Postgres")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("ENV", "production")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--seed", "42", "--workers", "2"}))

	cfg, err := LoadConfig(fs)
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.SimRuns)
	assert.Equal(t, SourcePostgres, cfg.DataSource)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, int64(42), cfg.SimSeed)
	assert.Equal(t, 2, cfg.SimWorkers)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadConfig_SeasonFlagIsNotTheRefreshSeason(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REFRESH_SEASON", "2024")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--season", "2023"}))

	cfg, err := LoadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, "2023", cfg.Season)
	assert.Equal(t, "2024", cfg.RefreshSeason)
	assert.Equal(t, "2024", cfg.ServedSeason())

	cfg.RefreshSeason = ""
	assert.Equal(t, "2023", cfg.ServedSeason(), "the refresh job falls back to SEASON")
}

func TestLoadConfig_WorkersAboveMax(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SIM_MAX_WORKERS", "8")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--workers", "100000"}))

	_, err := LoadConfig(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIM_MAX_WORKERS (8) is below SIM_WORKERS (100000)")
}

func TestLoadConfig_NaN(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SIM_MIN_PROB", "NaN")

	_, err := LoadConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIM_MIN_PROB must be a finite number")
}

func TestLoadConfig_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATA_SOURCE", "mongo")
	t.Setenv("SIM_MIN_PROB", "0.9")

	_, err := LoadConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_SOURCE")
	assert.Contains(t, err.Error(), "probability bounds")
}

func TestValidate(t *testing.T) {
	base := Config{
		DataSource: SourceCSV, FixturesPath: "f.csv",
		SimRuns: 10, SimMaxRuns: 10, SimWorkers: 1, SimMaxWorkers: 1,
		SimCurrentWeight: 0.6, SimBaseWeight: 0.4, SimMinProb: 0.15, SimMaxProb: 0.85,
	}
	require.NoError(t, base.Validate())

	c := base
	c.SimMaxRuns = 5
	assert.ErrorContains(t, c.Validate(), "SIM_MAX_RUNS")

	c = base
	c.SimCurrentWeight, c.SimBaseWeight = 0, 0
	assert.ErrorContains(t, c.Validate(), "SIM_BASE_WEIGHT")

	c = base
	c.SimWorkers, c.SimMaxWorkers = 4, 2
	assert.ErrorContains(t, c.Validate(), "SIM_MAX_WORKERS")

	for _, set := range []func(*Config){
		func(c *Config) { c.SimCurrentWeight = math.NaN() },
		func(c *Config) { c.SimBaseWeight = math.Inf(1) },
		func(c *Config) { c.SimMinProb = math.NaN() },
		func(c *Config) { c.SimMaxProb = math.NaN() },
	} {
		c = base
		set(&c)
		assert.ErrorContains(t, c.Validate(), "must be a finite number")
	}

	c = base
	c.RateLimit = math.NaN()
	assert.ErrorContains(t, c.Validate(), "RATE_LIMIT")

	c = base
	c.DataSource = SourcePostgres
	c.DatabaseURL = ""
	assert.ErrorContains(t, c.Validate(), "DATABASE_URL")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
