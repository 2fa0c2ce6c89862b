package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lucksec/kernelgen/internal/config"
	"github.com/lucksec/kernelgen/internal/domain"
	"github.com/lucksec/kernelgen/internal/logger"
)

// InstallerService installs descriptor dependencies into a provisioned environment
type InstallerService interface {
	// InstallDependencies picks pip or poetry from the descriptor
	InstallDependencies(ctx context.Context, descriptor *domain.Descriptor) error

	// InstallWithPip runs one pip install carrying every dependency
	InstallWithPip(ctx context.Context, environment string, dependencies []string) error

	// InstallWithPoetry bootstraps poetry, then init, add and install in a scratch project
	InstallWithPoetry(ctx context.Context, environment string, dependencies []string) error
}

type installerService struct {
	config *config.Config
	conda  CondaService
	runner CommandRunner
	log    logger.Logger
}

// NewInstallerService creates an installer
func NewInstallerService(cfg *config.Config, conda CondaService, runner CommandRunner, log logger.Logger) InstallerService {
	return &installerService{
		config: cfg,
		conda:  conda,
		runner: runner,
		log:    log,
	}
}

func (s *installerService) InstallDependencies(ctx context.Context, descriptor *domain.Descriptor) error {
	s.log.Info("Installing dependencies with %s", descriptor.Strategy())
	if descriptor.UsePoetry {
		return s.InstallWithPoetry(ctx, descriptor.Name, descriptor.Dependencies)
	}
	return s.InstallWithPip(ctx, descriptor.Name, descriptor.Dependencies)
}

func (s *installerService) InstallWithPip(ctx context.Context, environment string, dependencies []string) error {
	python, err := s.conda.PythonExecutable(ctx, environment)
	if err != nil {
		return err
	}

	args := append([]string{"-m", "pip", "install"}, dependencies...)
	if err := runChecked(ctx, s.runner, Command{Name: python, Args: args}); err != nil {
		return fmt.Errorf("pip install into %s: %w", environment, err)
	}
	return nil
}

func (s *installerService) InstallWithPoetry(ctx context.Context, environment string, dependencies []string) error {
	python, err := s.conda.PythonExecutable(ctx, environment)
	if err != nil {
		return err
	}

	projectDir := filepath.Join(s.config.ScratchDir, environment)
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return fmt.Errorf("create poetry project directory: %w", err)
	}

	steps := []Command{
		{Name: python, Args: []string{"-m", "pip", "install", "poetry"}},
		{Name: python, Args: []string{"-m", "poetry", "init", "-n"}, Dir: projectDir},
		{Name: python, Args: append([]string{"-m", "poetry", "add", "-n"}, dependencies...), Dir: projectDir},
		{Name: python, Args: []string{"-m", "poetry", "install", "-n"}, Dir: projectDir},
	}
	for _, step := range steps {
		if err := runChecked(ctx, s.runner, step); err != nil {
			return fmt.Errorf("poetry install into %s: %w", environment, err)
		}
	}
	return nil
}
