package config

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "src", cfg.Src)
	assert.Equal(t, "dist", cfg.Dist)
	assert.Equal(t, "localhost:3000", cfg.Server.Address)
	assert.Equal(t, "sass", cfg.Sass.Binary)
	assert.Equal(t, 90, cfg.Images.JPEGQuality)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
}

func validConfig() *Config {
	cfg := &Config{Src: "src", Dist: "dist", Browsers: "chrome58, safari11"}
	cfg.Log.Level = "info"
	cfg.Images.JPEGQuality = 90
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Dist = "./src"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Images.JPEGQuality = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Browsers = "netscape4"
	assert.Error(t, cfg.Validate())
}

func TestTargets(t *testing.T) {
	targets, err := validConfig().Targets()
	require.NoError(t, err)
	assert.Equal(t, []Target{{Engine: "chrome", Version: "58"}, {Engine: "safari", Version: "11"}}, targets)
}

func TestMode(t *testing.T) {
	var mode Mode
	assert.False(t, mode.IsProduction())
	assert.Equal(t, "development", mode.String())
	assert.Equal(t, "production", Production.String())
}
