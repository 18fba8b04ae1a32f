package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Engine.AutoMerge)
	assert.True(t, cfg.Engine.RemoveDuplicatesOnEnd)
	assert.True(t, cfg.Engine.ConvertTypeInstance)
	assert.True(t, cfg.Engine.StrictVariantScope)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
engine:
  auto_merge: false
  default_base: http://example.org/
logging:
  level: DEBUG
`), 0o644))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.False(t, cfg.Engine.AutoMerge)
		assert.Equal(t, "http://example.org/", cfg.Engine.DefaultBase)
		assert.True(t, cfg.Engine.RemoveDuplicatesOnEnd)
		assert.Equal(t, "DEBUG", cfg.Logging.Level)
		assert.Equal(t, "text", cfg.Logging.Format)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("engine: [unclosed"), 0o644))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "booleans",
			env:  map[string]string{"TMENGINE_AUTO_MERGE": "false", "TMENGINE_REMOVE_DUPLICATES": "0"},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Engine.AutoMerge)
				assert.False(t, cfg.Engine.RemoveDuplicatesOnEnd)
				assert.True(t, cfg.Engine.ConvertTypeInstance)
			},
		},
		{
			name: "yes and on are true",
			env:  map[string]string{"TMENGINE_CONVERT_TYPE_INSTANCE": "on"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Engine.ConvertTypeInstance)
			},
		},
		{
			name: "strings",
			env: map[string]string{
				"TMENGINE_DEFAULT_BASE": "http://example.org/env/",
				"TMENGINE_LOG_FORMAT":   "json",
				"TMENGINE_LOG_OUTPUT":   "stdout",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://example.org/env/", cfg.Engine.DefaultBase)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "stdout", cfg.Logging.Output)
			},
		},
		{
			name: "unset variables keep values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := Default()
			cfg.ApplyEnv()
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{"defaults", func(cfg *Config) {}, false},
		{"lowercase level", func(cfg *Config) { cfg.Logging.Level = "debug" }, false},
		{"strict variant scope off", func(cfg *Config) { cfg.Engine.StrictVariantScope = false }, true},
		{"empty base", func(cfg *Config) { cfg.Engine.DefaultBase = "" }, true},
		{"unknown level", func(cfg *Config) { cfg.Logging.Level = "TRACE" }, true},
		{"unknown format", func(cfg *Config) { cfg.Logging.Format = "xml" }, true},
		{"empty output", func(cfg *Config) { cfg.Logging.Output = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  auto_merge: false\n"), 0o644))
	t.Setenv("TMENGINE_AUTO_MERGE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Engine.AutoMerge, "environment wins over the file")
	assert.Contains(t, cfg.String(), "AutoMerge: true")

	t.Setenv("TMENGINE_LOG_LEVEL", "LOUD")
	_, err = Load("")
	assert.Error(t, err)
}
