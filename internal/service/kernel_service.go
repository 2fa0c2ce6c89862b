package service

import (
	"context"
	"fmt"

	"github.com/lucksec/kernelgen/internal/domain"
	"github.com/lucksec/kernelgen/internal/logger"
	"github.com/lucksec/kernelgen/internal/repository"
)

// KernelService registers environments as notebook kernels
type KernelService interface {
	// CreateManifest builds the kernel manifest of environment name. With a non-empty
	// saveDir it is also written to saveDir/name along with the files of staticDir.
	// The manifest is returned either way.
	CreateManifest(ctx context.Context, name, displayName, saveDir, staticDir string) (*domain.Manifest, error)

	// InstallKernel registers the environment through ipykernel's own install command
	InstallKernel(ctx context.Context, name, displayName string) error
}

type kernelService struct {
	conda   CondaService
	kernels repository.KernelRepository
	runner  CommandRunner
	log     logger.Logger
}

// NewKernelService creates a kernel service
func NewKernelService(conda CondaService, kernels repository.KernelRepository, runner CommandRunner, log logger.Logger) KernelService {
	return &kernelService{
		conda:   conda,
		kernels: kernels,
		runner:  runner,
		log:     log,
	}
}

func (s *kernelService) CreateManifest(ctx context.Context, name, displayName, saveDir, staticDir string) (*domain.Manifest, error) {
	python, err := s.conda.PythonExecutable(ctx, name)
	if err != nil {
		return nil, err
	}

	manifest := domain.NewManifest(python, displayName)
	if saveDir == "" {
		return manifest, nil
	}

	kernelDir, err := s.kernels.SaveKernel(saveDir, name, manifest, staticDir)
	if err != nil {
		return nil, fmt.Errorf("save kernel %s: %w", name, err)
	}
	s.log.Debug("Wrote %s to %s", domain.ManifestFileName, kernelDir)
	return manifest, nil
}

func (s *kernelService) InstallKernel(ctx context.Context, name, displayName string) error {
	s.log.Info("Installing kernel: %s", displayName)

	python, err := s.conda.PythonExecutable(ctx, name)
	if err != nil {
		return err
	}

	cmd := Command{
		Name: python,
		Args: []string{"-m", "ipykernel", "install", "--user", "--name=" + name},
	}
	if err := runChecked(ctx, s.runner, cmd); err != nil {
		return fmt.Errorf("install kernel %s: %w", name, err)
	}
	return nil
}
