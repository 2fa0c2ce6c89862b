package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucksec/kernelgen/internal/config"
	"github.com/lucksec/kernelgen/internal/domain"
)

func TestSaveKernelWritesManifestAndStaticFiles(t *testing.T) {
	saveDir := t.TempDir()
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "logo-64x64.png"), []byte("png"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "logo-32x32.png"), []byte("small"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(staticDir, "nested"), 0755))

	// an existing file is overwritten
	require.NoError(t, os.MkdirAll(filepath.Join(saveDir, "demo"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(saveDir, "demo", "logo-64x64.png"), []byte("stale"), 0644))

	repo := NewKernelRepository(config.Default())
	manifest := domain.NewManifest("/envs/demo/bin/python", "Demo")
	kernelDir, err := repo.SaveKernel(saveDir, "demo", manifest, staticDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(saveDir, "demo"), kernelDir)

	data, err := os.ReadFile(filepath.Join(kernelDir, "logo-64x64.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.FileExists(t, filepath.Join(kernelDir, "logo-32x32.png"))
	assert.NoDirExists(t, filepath.Join(kernelDir, "nested"))

	raw, err := os.ReadFile(filepath.Join(kernelDir, "kernel.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"argv\": [")

	var decoded domain.Manifest
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Argv, 5)
	assert.Equal(t, "/envs/demo/bin/python", decoded.Argv[0])
	assert.Equal(t, "-m", decoded.Argv[1])
	assert.Equal(t, "ipykernel_launcher", decoded.Argv[2])
	assert.Equal(t, "-f", decoded.Argv[3])
	assert.Equal(t, domain.ConnectionFilePlaceholder, decoded.Argv[4])
	assert.Equal(t, "Demo", decoded.DisplayName)
	assert.Equal(t, "python", decoded.Language)
}

func TestSaveKernelWithoutStaticDir(t *testing.T) {
	saveDir := filepath.Join(t.TempDir(), "kernels")
	repo := NewKernelRepository(config.Default())

	kernelDir, err := repo.SaveKernel(saveDir, "plain", domain.NewManifest("python", "Plain"), "")
	require.NoError(t, err)

	entries, err := os.ReadDir(kernelDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kernel.json", entries[0].Name())
}

func TestSaveKernelMissingStaticDir(t *testing.T) {
	repo := NewKernelRepository(config.Default())
	_, err := repo.SaveKernel(t.TempDir(), "demo", domain.NewManifest("python", "Demo"), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListAndGetKernels(t *testing.T) {
	cfg := config.Default()
	cfg.SavePath = t.TempDir()
	repo := NewKernelRepository(cfg)

	_, err := repo.SaveKernel(cfg.SavePath, "zeta", domain.NewManifest("/z/python", "Zeta"), "")
	require.NoError(t, err)
	_, err = repo.SaveKernel(cfg.SavePath, "alpha", domain.NewManifest("/a/python", "Alpha"), "")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(cfg.SavePath, "not-a-kernel"), 0755))

	kernels, err := repo.ListKernels()
	require.NoError(t, err)
	require.Len(t, kernels, 2)
	assert.Equal(t, "alpha", kernels[0].Name)
	assert.Equal(t, "Alpha", kernels[0].Manifest.DisplayName)
	assert.Equal(t, "zeta", kernels[1].Name)

	kernel, err := repo.GetKernel("zeta")
	require.NoError(t, err)
	assert.Equal(t, "/z/python", kernel.Manifest.Argv[0])

	_, err = repo.GetKernel("missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListKernelsReportsCorruptManifest(t *testing.T) {
	cfg := config.Default()
	cfg.SavePath = t.TempDir()
	repo := NewKernelRepository(cfg)

	_, err := repo.SaveKernel(cfg.SavePath, "good", domain.NewManifest("/g/python", "Good"), "")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(cfg.SavePath, "broken"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SavePath, "broken", "kernel.json"), []byte("{not json"), 0644))

	_, err = repo.ListKernels()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse kernel broken")
}
