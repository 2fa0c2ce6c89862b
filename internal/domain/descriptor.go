package domain

// Descriptor describes one environment to create, loaded from <name>.yaml
type Descriptor struct {
	// Name is the file stem and doubles as the conda environment name
	Name string `json:"name" yaml:"-"`

	// DisplayName is the label shown by the notebook frontend
	DisplayName   string `json:"display_name" yaml:"display_name"`
	PythonVersion string `json:"python_version" yaml:"python_version"`

	// UsePoetry selects a throwaway poetry project over a single pip install
	UsePoetry    bool     `json:"use_poetry" yaml:"use_poetry"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`

	// Path is the source file
	Path string `json:"path" yaml:"-"`
}

// Strategy names the dependency installer picked by UsePoetry
func (d *Descriptor) Strategy() string {
	if d.UsePoetry {
		return "poetry"
	}
	return "pip"
}
