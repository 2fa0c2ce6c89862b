package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lucksec/kernelgen/internal/config"
	"github.com/lucksec/kernelgen/internal/domain"
)

// ErrInvalidDescriptor marks a well-formed document missing required fields
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// DescriptorRepository loads environment descriptors from the descriptor directory
type DescriptorRepository interface {
	// ListDescriptorFiles lists descriptor files (non-recursive), ordered by file name
	ListDescriptorFiles() ([]string, error)

	// LoadDescriptor parses one descriptor file
	LoadDescriptor(path string) (*domain.Descriptor, error)

	// ListDescriptors loads every descriptor, ordered by file name
	ListDescriptors() ([]*domain.Descriptor, error)

	// GetDescriptor loads the descriptor called name
	GetDescriptor(name string) (*domain.Descriptor, error)
}

type descriptorRepository struct {
	config *config.Config
}

// NewDescriptorRepository creates a descriptor repository
func NewDescriptorRepository(cfg *config.Config) DescriptorRepository {
	return &descriptorRepository{
		config: cfg,
	}
}

// descriptorFields are accepted both under metadata: and at the top level
type descriptorFields struct {
	DisplayName   *string `yaml:"display_name"`
	PythonVersion *string `yaml:"python_version"`
	UsePoetry     *bool   `yaml:"use_poetry"`
}

type descriptorFile struct {
	Metadata      *descriptorFields `yaml:"metadata"`
	DisplayName   *string           `yaml:"display_name"`
	PythonVersion *string           `yaml:"python_version"`
	UsePoetry     *bool             `yaml:"use_poetry"`
	Dependencies  *[]string         `yaml:"dependencies"`
}

func (r *descriptorRepository) ListDescriptorFiles() ([]string, error) {
	dir := r.config.DescriptorDir

	// os.ReadDir returns entries sorted by file name, which fixes the processing order
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read descriptor directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != r.config.DescriptorExt {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

func (r *descriptorRepository) LoadDescriptor(path string) (*domain.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", path, err)
	}

	fields := descriptorFields{
		DisplayName:   file.DisplayName,
		PythonVersion: file.PythonVersion,
		UsePoetry:     file.UsePoetry,
	}
	if m := file.Metadata; m != nil {
		if m.DisplayName != nil {
			fields.DisplayName = m.DisplayName
		}
		if m.PythonVersion != nil {
			fields.PythonVersion = m.PythonVersion
		}
		if m.UsePoetry != nil {
			fields.UsePoetry = m.UsePoetry
		}
	}

	var missing []string
	if fields.DisplayName == nil {
		missing = append(missing, "display_name")
	}
	if fields.PythonVersion == nil || *fields.PythonVersion == "" {
		missing = append(missing, "python_version")
	}
	if fields.UsePoetry == nil {
		missing = append(missing, "use_poetry")
	}
	if file.Dependencies == nil {
		missing = append(missing, "dependencies")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w %s: missing %s", ErrInvalidDescriptor, path, strings.Join(missing, ", "))
	}

	base := filepath.Base(path)
	return &domain.Descriptor{
		Name:          strings.TrimSuffix(base, filepath.Ext(base)),
		DisplayName:   *fields.DisplayName,
		PythonVersion: *fields.PythonVersion,
		UsePoetry:     *fields.UsePoetry,
		Dependencies:  *file.Dependencies,
		Path:          path,
	}, nil
}

func (r *descriptorRepository) ListDescriptors() ([]*domain.Descriptor, error) {
	files, err := r.ListDescriptorFiles()
	if err != nil {
		return nil, err
	}

	descriptors := make([]*domain.Descriptor, 0, len(files))
	for _, file := range files {
		descriptor, err := r.LoadDescriptor(file)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors, nil
}

func (r *descriptorRepository) GetDescriptor(name string) (*domain.Descriptor, error) {
	path := filepath.Join(r.config.DescriptorDir, name+r.config.DescriptorExt)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("descriptor %s not found in %s: %w", name, r.config.DescriptorDir, err)
		}
		return nil, fmt.Errorf("stat descriptor %s: %w", name, err)
	}
	return r.LoadDescriptor(path)
}
