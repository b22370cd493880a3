package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "course_catalog", cfg.Database.Name)
	assert.Equal(t, 2*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 20, cfg.Catalog.DefaultPageSize)
	assert.Equal(t, MediaDriverLocal, cfg.Media.Driver)
	assert.Equal(t, int64(5*1024*1024), cfg.Media.MaxThumbnailBytes)
	assert.Contains(t, cfg.Media.AllowedImageMIMEs, "image/png")
	assert.Equal(t, 100, cfg.Catalog.MaxPageSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("CATALOG_CACHE_TTL", "not-a-duration")
	t.Setenv("CATALOG_MAX_PAGE_SIZE", "-5")
	t.Setenv("MEDIA_DRIVER", "GCS")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 100, cfg.Catalog.MaxPageSize)
	assert.Equal(t, MediaDriverGCS, cfg.Media.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
