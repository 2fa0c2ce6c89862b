package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucksec/kernelgen/internal/config"
	"github.com/lucksec/kernelgen/internal/domain"
	"github.com/lucksec/kernelgen/internal/repository"
)

func TestCondaServiceCommands(t *testing.T) {
	runner := newFakeRunner()
	cfg := config.Default()
	cfg.Conda.ExecPath = "/opt/conda/bin/conda"
	log, _ := testLogger()
	conda := NewCondaService(cfg, runner, log)

	require.NoError(t, conda.CreateEnvironment(context.Background(), "demo", "3.11"))
	require.Len(t, runner.runs, 1)
	assert.Equal(t, "/opt/conda/bin/conda create -y -n demo python=3.11 ipykernel", runner.runs[0].String())

	python, err := conda.PythonExecutable(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "/opt/conda/envs/demo/bin/python", python)
	require.Len(t, runner.outputs, 1)
	assert.Equal(t, Command{
		Name: "/opt/conda/bin/conda",
		Args: []string{"run", "-n", "demo", "python", "-c", "import sys; print(sys.executable)"},
	}, runner.outputs[0])
}

func TestCondaServiceCreateFailureReturnPolicy(t *testing.T) {
	runner := newFakeRunner()
	runner.policy = ReturnCode
	runner.failAt = 1
	runner.failCode = 2
	log, _ := testLogger()
	conda := NewCondaService(config.Default(), runner, log)

	err := conda.CreateEnvironment(context.Background(), "demo", "3.11")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

type countingKernelRepo struct {
	repository.KernelRepository
	saves int
}

func (c *countingKernelRepo) SaveKernel(saveDir, name string, manifest *domain.Manifest, staticDir string) (string, error) {
	c.saves++
	return c.KernelRepository.SaveKernel(saveDir, name, manifest, staticDir)
}

func newKernelService(t *testing.T, runner *fakeRunner) (KernelService, *countingKernelRepo) {
	t.Helper()
	cfg := config.Default()
	log, _ := testLogger()
	repo := &countingKernelRepo{KernelRepository: repository.NewKernelRepository(cfg)}
	return NewKernelService(NewCondaService(cfg, runner, log), repo, runner, log), repo
}

func TestCreateManifestWithoutSaveDirIsPure(t *testing.T) {
	runner := newFakeRunner()
	svc, repo := newKernelService(t, runner)

	first, err := svc.CreateManifest(context.Background(), "demo", "Demo", "", "/does/not/matter")
	require.NoError(t, err)
	second, err := svc.CreateManifest(context.Background(), "demo", "Demo", "", "/does/not/matter")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
	assert.Zero(t, repo.saves)
	assert.Empty(t, runner.runs)

	assert.Equal(t, []string{
		"/opt/conda/envs/demo/bin/python", "-m", "ipykernel_launcher", "-f", "{connection_file}",
	}, first.Argv)
	assert.Equal(t, "Demo", first.DisplayName)
	assert.Equal(t, "python", first.Language)
}

func TestCreateManifestSavesToDisk(t *testing.T) {
	runner := newFakeRunner()
	svc, repo := newKernelService(t, runner)
	saveDir := t.TempDir()
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "logo-64x64.png"), []byte("png"), 0644))

	manifest, err := svc.CreateManifest(context.Background(), "demo", "Demo", saveDir, staticDir)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.saves)

	raw, err := os.ReadFile(filepath.Join(saveDir, "demo", "kernel.json"))
	require.NoError(t, err)
	var onDisk domain.Manifest
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, *manifest, onDisk)
	assert.FileExists(t, filepath.Join(saveDir, "demo", "logo-64x64.png"))
}

func TestInstallKernel(t *testing.T) {
	runner := newFakeRunner()
	cfg := config.Default()
	log, buf := testLogger()
	svc := NewKernelService(NewCondaService(cfg, runner, log), repository.NewKernelRepository(cfg), runner, log)

	require.NoError(t, svc.InstallKernel(context.Background(), "demo", "Demo"))
	require.Len(t, runner.runs, 1)
	assert.Equal(t, Command{
		Name: "/opt/conda/envs/demo/bin/python",
		Args: []string{"-m", "ipykernel", "install", "--user", "--name=demo"},
	}, runner.runs[0])
	assert.Contains(t, buf.String(), "[INFO] Installing kernel: Demo\n")
}
