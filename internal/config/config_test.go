package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingDotenv(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingDotenv(t))
	require.NoError(t, err)

	assert.Equal(t, "questcore.db", cfg.DBPath)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, LogText, cfg.LogFormat)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QUESTCORE_DB", "/tmp/family.db")
	t.Setenv("QUESTCORE_LOG_FORMAT", "json")
	t.Setenv("QUESTCORE_TIMEZONE", "Europe/Sofia")

	cfg, err := Load(missingDotenv(t))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/family.db", cfg.DBPath)
	assert.Equal(t, LogJSON, cfg.LogFormat)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Sofia", loc.String())
}

func TestLoad_DotenvFile(t *testing.T) {
	// Register restore, then clear so the file value is used.
	t.Setenv("QUESTCORE_METRICS_FILE", "")
	require.NoError(t, os.Unsetenv("QUESTCORE_METRICS_FILE"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("QUESTCORE_METRICS_FILE=/var/lib/node/questcore.prom\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/node/questcore.prom", cfg.MetricsFile)
}

func TestLoad_ProcessEnvWinsOverDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("QUESTCORE_DB=from-file.db\n"), 0o600))
	t.Setenv("QUESTCORE_DB", "from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"unknown store", Config{Store: "postgres", DBPath: "x", LogFormat: LogText, Timezone: "UTC"}, "unknown store"},
		{"firestore needs project", Config{Store: StoreFirestore, LogFormat: LogText, Timezone: "UTC"}, "QUESTCORE_FIREBASE_PROJECT"},
		{"bad log format", Config{Store: StoreSQLite, DBPath: "x", LogFormat: "xml", Timezone: "UTC"}, "unknown log format"},
		{"bad timezone", Config{Store: StoreSQLite, DBPath: "x", LogFormat: LogText, Timezone: "Mars/Olympus"}, "invalid timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("QUESTCORE_STORE", "mongo")

	_, err := Load(missingDotenv(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

type envTestConfig struct {
	Port int `env:"QUESTCORE_TEST_PORT" envDefault:"123"`
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("QUESTCORE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
