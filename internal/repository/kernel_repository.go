package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/lucksec/kernelgen/internal/config"
	"github.com/lucksec/kernelgen/internal/domain"
)

// KernelRepository reads and writes kernel directories (<root>/<name>/kernel.json)
type KernelRepository interface {
	// SaveKernel writes manifest to saveDir/name, copying the files of staticDir next to it.
	// An empty staticDir copies nothing. Returns the kernel directory.
	SaveKernel(saveDir, name string, manifest *domain.Manifest, staticDir string) (string, error)

	// GetKernel reads the manifest of one kernel under the configured save path
	GetKernel(name string) (*domain.Kernel, error)

	// ListKernels lists every kernel under the configured save path, sorted by name
	ListKernels() ([]*domain.Kernel, error)
}

type kernelRepository struct {
	config *config.Config
}

// NewKernelRepository creates a kernel repository
func NewKernelRepository(cfg *config.Config) KernelRepository {
	return &kernelRepository{
		config: cfg,
	}
}

func (r *kernelRepository) SaveKernel(saveDir, name string, manifest *domain.Manifest, staticDir string) (string, error) {
	kernelDir := filepath.Join(saveDir, name)
	if err := os.MkdirAll(kernelDir, 0755); err != nil {
		return "", fmt.Errorf("create kernel directory: %w", err)
	}

	if staticDir != "" {
		if err := copyFiles(staticDir, kernelDir); err != nil {
			return "", err
		}
	}

	data, err := json.MarshalIndent(manifest, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", domain.ManifestFileName, err)
	}
	if err := os.WriteFile(filepath.Join(kernelDir, domain.ManifestFileName), data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", domain.ManifestFileName, err)
	}
	return kernelDir, nil
}

func (r *kernelRepository) GetKernel(name string) (*domain.Kernel, error) {
	kernelDir := filepath.Join(r.config.SavePath, name)
	data, err := os.ReadFile(filepath.Join(kernelDir, domain.ManifestFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("kernel %s not found in %s: %w", name, r.config.SavePath, err)
		}
		return nil, fmt.Errorf("read kernel %s: %w", name, err)
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse kernel %s: %w", name, err)
	}
	return &domain.Kernel{
		Name:     name,
		Dir:      kernelDir,
		Manifest: &manifest,
	}, nil
}

func (r *kernelRepository) ListKernels() ([]*domain.Kernel, error) {
	entries, err := os.ReadDir(r.config.SavePath)
	if err != nil {
		return nil, fmt.Errorf("read kernels directory: %w", err)
	}

	var kernels []*domain.Kernel
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		kernel, err := r.GetKernel(entry.Name())
		if errors.Is(err, os.ErrNotExist) {
			continue // not a kernel directory
		}
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, kernel)
	}

	sort.Slice(kernels, func(i, j int) bool {
		return kernels[i].Name < kernels[j].Name
	})
	return kernels, nil
}

// copyFiles copies the regular files directly inside src into dst, overwriting
func copyFiles(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read static directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
