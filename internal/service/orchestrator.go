package service

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lucksec/kernelgen/internal/config"
	"github.com/lucksec/kernelgen/internal/domain"
	"github.com/lucksec/kernelgen/internal/logger"
	"github.com/lucksec/kernelgen/internal/repository"
)

// OrchestratorService drives provision, install and register for each descriptor
type OrchestratorService interface {
	// GenerateAll processes every descriptor in file name order. The first failure
	// aborts the run; environments already processed are left as they are.
	GenerateAll(ctx context.Context) ([]*domain.Kernel, error)

	// Generate processes the single descriptor called name
	Generate(ctx context.Context, name string) (*domain.Kernel, error)
}

type orchestratorService struct {
	config      *config.Config
	descriptors repository.DescriptorRepository
	conda       CondaService
	installer   InstallerService
	kernels     KernelService
	log         logger.Logger
}

// NewOrchestratorService creates the orchestrator
func NewOrchestratorService(
	cfg *config.Config,
	descriptors repository.DescriptorRepository,
	conda CondaService,
	installer InstallerService,
	kernels KernelService,
	log logger.Logger,
) OrchestratorService {
	return &orchestratorService{
		config:      cfg,
		descriptors: descriptors,
		conda:       conda,
		installer:   installer,
		kernels:     kernels,
		log:         log,
	}
}

func (s *orchestratorService) GenerateAll(ctx context.Context) ([]*domain.Kernel, error) {
	runID := uuid.New().String()
	s.log.Info("Run %s started", runID)

	s.log.Info("Listing YAML files in %s", s.config.DescriptorDir)
	files, err := s.descriptors.ListDescriptorFiles()
	if err != nil {
		return nil, err
	}
	s.log.Info("Found %d YAML files", len(files))

	kernels := make([]*domain.Kernel, 0, len(files))
	for _, file := range files {
		s.log.Info("Loading %s", file)
		descriptor, err := s.descriptors.LoadDescriptor(file)
		if err != nil {
			return kernels, err
		}

		kernel, err := s.process(ctx, runID, descriptor)
		if err != nil {
			return kernels, err
		}
		kernels = append(kernels, kernel)
	}

	s.log.Info("Run %s finished: %d kernels", runID, len(kernels))
	return kernels, nil
}

func (s *orchestratorService) Generate(ctx context.Context, name string) (*domain.Kernel, error) {
	runID := uuid.New().String()
	s.log.Info("Run %s started for %s", runID, name)

	descriptor, err := s.descriptors.GetDescriptor(name)
	if err != nil {
		return nil, err
	}
	s.log.Info("Loading %s", descriptor.Path)

	kernel, err := s.process(ctx, runID, descriptor)
	if err != nil {
		return nil, err
	}
	s.log.Info("Run %s finished", runID)
	return kernel, nil
}

func (s *orchestratorService) process(ctx context.Context, runID string, descriptor *domain.Descriptor) (*domain.Kernel, error) {
	s.log.Info("Creating conda environment %s", descriptor.Name)
	if err := s.conda.CreateEnvironment(ctx, descriptor.Name, descriptor.PythonVersion); err != nil {
		return nil, err
	}

	if err := s.installer.InstallDependencies(ctx, descriptor); err != nil {
		return nil, err
	}

	s.log.Info("Creating %s for %s", domain.ManifestFileName, descriptor.Name)
	manifest, err := s.kernels.CreateManifest(ctx, descriptor.Name, descriptor.DisplayName, s.config.SavePath, s.config.StaticPath)
	if err != nil {
		return nil, err
	}

	kernel := &domain.Kernel{
		Name:     descriptor.Name,
		Manifest: manifest,
		RunID:    runID,
	}
	if s.config.SavePath != "" {
		kernel.Dir = filepath.Join(s.config.SavePath, descriptor.Name)
	}
	return kernel, nil
}
