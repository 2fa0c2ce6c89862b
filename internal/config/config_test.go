package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucksec/kernelgen/internal/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "kernels", cfg.DescriptorDir)
	assert.Equal(t, ".yaml", cfg.DescriptorExt)
	assert.Equal(t, "/opt/conda/share/jupyter/kernels/", cfg.SavePath)
	assert.Equal(t, "/tmp/_static", cfg.StaticPath)
	assert.Equal(t, "conda", cfg.Conda.ExecPath)
	assert.Equal(t, "raise", cfg.Runner.OnError)
	assert.Empty(t, cfg.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kg.ini")
	content := `[default]
descriptor_dir = envs
save_path = /srv/kernels
static_path =

[conda]
exec_path = /opt/conda/bin/conda

[runner]
on_error = return

[log]
level = warning
enable_console = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "envs", cfg.DescriptorDir)
	assert.Equal(t, ".yaml", cfg.DescriptorExt)
	assert.Equal(t, "/srv/kernels", cfg.SavePath)
	assert.Empty(t, cfg.StaticPath)
	assert.Equal(t, "/opt/conda/bin/conda", cfg.Conda.ExecPath)
	assert.Equal(t, "return", cfg.Runner.OnError)
	assert.False(t, cfg.Log.EnableConsole)

	lc, err := cfg.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, logger.WARN, lc.Level)
}

func TestLoadConfigSearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[default]\ndescriptor_ext = .yml\n"), 0644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ".yml", cfg.DescriptorExt)
	assert.Equal(t, FileName, cfg.Path)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.ini"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, logger.ErrInvalidLevel))

	cfg = Default()
	cfg.Runner.OnError = "ignore"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName)
	cfg := Default()
	cfg.DescriptorDir = "envs"
	cfg.Runner.OnError = "return"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "envs", loaded.DescriptorDir)
	assert.Equal(t, "return", loaded.Runner.OnError)
	assert.Equal(t, cfg.SavePath, loaded.SavePath)
	assert.Equal(t, cfg.Log.EnableConsole, loaded.Log.EnableConsole)
}

func TestLoggerConfigKeepsDefaultLogDir(t *testing.T) {
	cfg := Default()
	cfg.Log.LogDir = ""
	cfg.Log.EnableFile = true

	lc, err := cfg.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, "logs", lc.LogDir)
	assert.True(t, lc.EnableFile)
	assert.Equal(t, logger.INFO, lc.Level)
}
