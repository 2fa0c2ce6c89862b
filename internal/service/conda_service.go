package service

import (
	"context"
	"fmt"

	"github.com/lucksec/kernelgen/internal/config"
	"github.com/lucksec/kernelgen/internal/logger"
)

// CondaService provisions conda environments
type CondaService interface {
	// CreateEnvironment creates (or silently replaces) environment name pinned to pythonVersion
	CreateEnvironment(ctx context.Context, name, pythonVersion string) error

	// PythonExecutable asks the environment for the absolute path of its python
	PythonExecutable(ctx context.Context, name string) (string, error)
}

type condaService struct {
	config *config.Config
	runner CommandRunner
	log    logger.Logger
}

// NewCondaService creates a conda service
func NewCondaService(cfg *config.Config, runner CommandRunner, log logger.Logger) CondaService {
	return &condaService{
		config: cfg,
		runner: runner,
		log:    log,
	}
}

func (s *condaService) CreateEnvironment(ctx context.Context, name, pythonVersion string) error {
	cmd := Command{
		Name: s.config.Conda.ExecPath,
		Args: []string{"create", "-y", "-n", name, "python=" + pythonVersion, "ipykernel"},
	}
	if err := runChecked(ctx, s.runner, cmd); err != nil {
		return fmt.Errorf("create conda environment %s: %w", name, err)
	}
	return nil
}

func (s *condaService) PythonExecutable(ctx context.Context, name string) (string, error) {
	cmd := Command{
		Name: s.config.Conda.ExecPath,
		Args: []string{"run", "-n", name, "python", "-c", "import sys; print(sys.executable)"},
	}
	out, err := s.runner.Output(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("resolve python of environment %s: %w", name, err)
	}
	if out == "" {
		return "", fmt.Errorf("resolve python of environment %s: empty output", name)
	}
	s.log.Debug("Python executable of %s: %s", name, out)
	return out, nil
}
