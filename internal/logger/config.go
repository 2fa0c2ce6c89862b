package logger

// Config controls where log lines go
type Config struct {
	// Level: DEBUG, INFO, WARNING, ERROR
	Level LogLevel

	EnableConsole bool

	EnableFile bool

	LogDir string

	// LogFile defaults to kernelgen-YYYY-MM-DD.log when empty
	LogFile string
}

// DefaultConfig logs INFO and above to stdout only
func DefaultConfig() *Config {
	return &Config{
		Level:         INFO,
		EnableConsole: true,
		EnableFile:    false,
		LogDir:        "logs",
		LogFile:       "",
	}
}
