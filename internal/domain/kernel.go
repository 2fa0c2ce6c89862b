package domain

const (
	// ConnectionFilePlaceholder is substituted by the frontend when it launches the kernel
	ConnectionFilePlaceholder = "{connection_file}"

	KernelLanguage = "python"

	ManifestFileName = "kernel.json"
)

// Manifest is the kernel.json the notebook frontend reads
type Manifest struct {
	Argv        []string `json:"argv"`
	DisplayName string   `json:"display_name"`
	Language    string   `json:"language"`
}

// NewManifest builds the launch manifest for the given python executable
func NewManifest(pythonExecutable, displayName string) *Manifest {
	return &Manifest{
		Argv: []string{
			pythonExecutable,
			"-m",
			"ipykernel_launcher",
			"-f",
			ConnectionFilePlaceholder,
		},
		DisplayName: displayName,
		Language:    KernelLanguage,
	}
}

// Kernel is a manifest already present in a kernels directory
type Kernel struct {
	Name     string    `json:"name"`
	Dir      string    `json:"dir"`
	Manifest *Manifest `json:"manifest"`

	// RunID identifies the generate run that built it, empty when read from disk
	RunID string `json:"run_id,omitempty"`
}
