package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/lucksec/kernelgen/internal/logger"
)

// FileName is the config file looked up in the working directory and under $HOME/.kernelgen
const FileName = ".kernelgen.ini"

// Config application settings
type Config struct {
	// Directory holding one YAML descriptor per environment
	DescriptorDir string

	// Extension descriptors must carry, including the dot
	DescriptorExt string

	// Kernel directory of the notebook frontend, manifests land in SavePath/<name>
	SavePath string

	// Files copied next to every kernel.json (logos and the like)
	StaticPath string

	// Parent of the throwaway poetry projects
	ScratchDir string

	Conda CondaConfig

	Runner RunnerConfig

	Log LogConfig

	// File the values were read from, empty when defaults only
	Path string
}

// CondaConfig conda related settings
type CondaConfig struct {
	ExecPath string
}

// RunnerConfig command runner settings
type RunnerConfig struct {
	// OnError: raise or return
	OnError string
}

// LogConfig log settings
type LogConfig struct {
	// Level: DEBUG, INFO, WARNING, ERROR
	Level string

	EnableConsole bool

	EnableFile bool

	LogDir string

	LogFile string
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		DescriptorDir: "kernels",
		DescriptorExt: ".yaml",
		SavePath:      "/opt/conda/share/jupyter/kernels/",
		StaticPath:    "/tmp/_static",
		ScratchDir:    os.TempDir(),
		Conda: CondaConfig{
			ExecPath: "conda",
		},
		Runner: RunnerConfig{
			OnError: "raise",
		},
		Log: LogConfig{
			Level:         "INFO",
			EnableConsole: true,
			EnableFile:    false,
			LogDir:        "logs",
		},
	}
}

// LoadConfig reads the config file. An explicit path must exist; otherwise the
// search paths are tried in order and a missing file leaves the defaults.
func LoadConfig(explicitPath string) (*Config, error) {
	config := Default()

	configPath := explicitPath
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	} else {
		for _, path := range searchPaths() {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	if configPath == "" {
		return config, nil
	}

	cfgFile, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	config.Path = configPath

	section := cfgFile.Section("default")
	if v := section.Key("descriptor_dir").String(); v != "" {
		config.DescriptorDir = v
	}
	if v := section.Key("descriptor_ext").String(); v != "" {
		config.DescriptorExt = v
	}
	if section.HasKey("save_path") {
		// an empty save_path is meaningful: build manifests without writing them
		config.SavePath = section.Key("save_path").String()
	}
	if section.HasKey("static_path") {
		config.StaticPath = section.Key("static_path").String()
	}
	if v := section.Key("scratch_dir").String(); v != "" {
		config.ScratchDir = v
	}

	if v := cfgFile.Section("conda").Key("exec_path").String(); v != "" {
		config.Conda.ExecPath = v
	}

	if v := cfgFile.Section("runner").Key("on_error").String(); v != "" {
		config.Runner.OnError = v
	}

	section = cfgFile.Section("log")
	if v := section.Key("level").String(); v != "" {
		config.Log.Level = v
	}
	if section.HasKey("enable_console") {
		b, err := section.Key("enable_console").Bool()
		if err != nil {
			return nil, fmt.Errorf("log.enable_console: %w", err)
		}
		config.Log.EnableConsole = b
	}
	if section.HasKey("enable_file") {
		b, err := section.Key("enable_file").Bool()
		if err != nil {
			return nil, fmt.Errorf("log.enable_file: %w", err)
		}
		config.Log.EnableFile = b
	}
	if v := section.Key("log_dir").String(); v != "" {
		config.Log.LogDir = v
	}
	if v := section.Key("log_file").String(); v != "" {
		config.Log.LogFile = v
	}

	return config, nil
}

// Validate reports configuration errors before anything is run
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Runner.OnError {
	case "raise", "return":
	default:
		return fmt.Errorf("invalid on_error %q: must be raise or return", c.Runner.OnError)
	}
	if c.DescriptorDir == "" {
		return fmt.Errorf("descriptor_dir must not be empty")
	}
	if c.Conda.ExecPath == "" {
		return fmt.Errorf("conda.exec_path must not be empty")
	}
	return nil
}

// LoggerConfig converts the log section for logger.InitLogger
func (c *Config) LoggerConfig() (*logger.Config, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	config := logger.DefaultConfig()
	config.Level = level
	config.EnableConsole = c.Log.EnableConsole
	config.EnableFile = c.Log.EnableFile
	if c.Log.LogDir != "" {
		config.LogDir = c.Log.LogDir
	}
	config.LogFile = c.Log.LogFile
	return config, nil
}

// Save writes the settings as INI, used by `kernelgen config init`
func (c *Config) Save(path string) error {
	cfg := ini.Empty()

	section := cfg.Section("default")
	section.Key("descriptor_dir").SetValue(c.DescriptorDir)
	section.Key("descriptor_ext").SetValue(c.DescriptorExt)
	section.Key("save_path").SetValue(c.SavePath)
	section.Key("static_path").SetValue(c.StaticPath)
	section.Key("scratch_dir").SetValue(c.ScratchDir)

	cfg.Section("conda").Key("exec_path").SetValue(c.Conda.ExecPath)
	cfg.Section("runner").Key("on_error").SetValue(c.Runner.OnError)

	section = cfg.Section("log")
	section.Key("level").SetValue(c.Log.Level)
	section.Key("enable_console").SetValue(fmt.Sprintf("%t", c.Log.EnableConsole))
	section.Key("enable_file").SetValue(fmt.Sprintf("%t", c.Log.EnableFile))
	section.Key("log_dir").SetValue(c.Log.LogDir)
	section.Key("log_file").SetValue(c.Log.LogFile)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return cfg.SaveTo(path)
}

func searchPaths() []string {
	paths := []string{FileName}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".kernelgen", FileName))
	}
	return paths
}
