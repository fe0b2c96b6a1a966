package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "postgres", mutate: func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Database.DSN = "postgres://localhost/app?sslmode=disable"
		}},
		{name: "empty connection", mutate: func(c *Config) { c.Database.Connection = "" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: true},
		{name: "negative pool", mutate: func(c *Config) { c.Database.MaxOpenConns = -1 }, wantErr: true},
		{name: "unknown level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: true},
		{name: "unknown format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var richErr *errors.Error
			require.True(t, errors.As(err, &richErr))
			assert.Equal(t, errors.CategoryValidation, richErr.Category)
			assert.Equal(t, "INVALID_CONFIG", richErr.TextCode)
			assert.NotEmpty(t, richErr.ValidationErrors)
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	env := "IDENTITY_LOG_LEVEL=debug\nIDENTITY_DATABASE_CONNECTION=from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	t.Setenv("IDENTITY_DATABASE_CONNECTION", "primary")
	t.Setenv("IDENTITY_IDENTITY_ESCAPE_KEYS", "true")
	t.Setenv("IDENTITY_DATABASE_MAX_OPEN_CONNS", "4")
	t.Cleanup(func() { os.Unsetenv("IDENTITY_LOG_LEVEL") })

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "primary", cfg.Database.Connection, "environment wins over .env")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Identity.EscapeKeys)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("IDENTITY_DATABASE_DRIVER", "oracle")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestNewLogger(t *testing.T) {
	tests := []LogConfig{
		{Level: "debug", Format: "console"},
		{Level: "info", Format: "json"},
		{Level: "error", Format: "json"},
		{},
	}

	for _, cfg := range tests {
		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}

	_, err := NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
