package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devzbysiu/dox-sub000/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dox.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaultsForOptionalFields(t *testing.T) {
	path := writeConfig(t, `
watched_dir = "/data/watched"
thumbnails_dir = "/data/thumbnails"
index_dir = "/data/index"
docs_dir = "/data/docs"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/watched", cfg.WatchedDir)
	assert.Equal(t, config.DefaultNotificationsAddr, cfg.NotificationsAddr)
	assert.Equal(t, config.DefaultCooldownTime, cfg.CooldownTime)
	assert.Equal(t, config.DefaultOCRLanguage, cfg.OCRLanguage)
	assert.Equal(t, config.DefaultBusCapacity, cfg.BusCapacity)
	assert.Equal(t, config.DefaultWorkerPoolSize, cfg.WorkerPoolSize)
}

func TestLoad_HonoursExplicitCooldownAndLanguage(t *testing.T) {
	path := writeConfig(t, `
watched_dir = "/data/watched"
thumbnails_dir = "/data/thumbnails"
index_dir = "/data/index"
docs_dir = "/data/docs"
ocr_language = "eng"

[cooldown_time]
secs = 120
nanos = 0
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eng", cfg.OCRLanguage)
	assert.Equal(t, 120*time.Second, cfg.CooldownTime)
}

func TestLoad_MissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
watched_dir = "/data/watched"
thumbnails_dir = "/data/thumbnails"
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingField)
}

func TestResolvePath_PrefersCLIArgOverEnv(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "/env/dox.toml")
	path, err := config.ResolvePath("/cli/dox.toml")
	require.NoError(t, err)
	assert.Equal(t, "/cli/dox.toml", path)
}

func TestResolvePath_FallsBackToEnv(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "/env/dox.toml")
	path, err := config.ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/env/dox.toml", path)
}
