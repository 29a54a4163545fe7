package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/invoker"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/logger"
)

// LevelEnv overrides logging.level when set
const LevelEnv = "ENIGMA_LOG_LEVEL"

// Config represents the application configuration
type Config struct {
	// Logging configuration
	Logging struct {
		// Level is the minimum log level to output (debug, info, error)
		Level string `json:"level" yaml:"level"`
		// File is the path to the log file. If empty, logs go to stderr only
		File string `json:"file" yaml:"file"`
		// MaxSizeMB is the maximum size of log file before rotation
		MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`
		// LogRetentionDays is how long rotated log files are kept
		LogRetentionDays int `json:"log_retention_days" yaml:"log_retention_days"`
	} `json:"logging" yaml:"logging"`

	// Trace controls how netsh is executed
	Trace struct {
		// Mode is "shell" (powershell -Command) or "direct"
		Mode string `json:"mode" yaml:"mode"`
		// Shell is the interpreter used in shell mode
		Shell string `json:"shell" yaml:"shell"`
		// ShellFlag precedes the command line, e.g. -Command
		ShellFlag string `json:"shell_flag" yaml:"shell_flag"`
		// MaxOutputBytes caps captured stdout and stderr per command
		MaxOutputBytes int `json:"max_output_bytes" yaml:"max_output_bytes"`
	} `json:"trace" yaml:"trace"`

	// EnigmaAPI configures session report publication
	EnigmaAPI struct {
		Upload   bool   `json:"upload" yaml:"upload"`
		Server   string `json:"server" yaml:"server"`
		APIKey   string `json:"api_key" yaml:"api_key"`
		Insecure bool   `json:"insecure" yaml:"insecure"`
	} `json:"enigma_api" yaml:"enigma_api"`

	// Path is the file the configuration was loaded from, empty for defaults
	Path string `json:"-" yaml:"-"`
}

// DefaultPaths returns the locations searched when no config path is given
func DefaultPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			`C:\ProgramData\EnigmaSensor\netsh-capture.json`,
			"netsh-capture.json",
			"netsh-capture.yaml",
		}
	}
	return []string{
		"/etc/enigma-sensor/netsh-capture.json",
		"netsh-capture.json",
		"netsh-capture.yaml",
	}
}

// Default returns a configuration with every default applied
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

// LoadConfig loads configuration from a JSON or YAML file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.Path = configPath
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return &config, nil
}

// Discover loads the first config found among paths. A missing file is not
// an error; defaults are returned when none exist.
func Discover(paths []string) (*Config, error) {
	for _, path := range paths {
		config, err := LoadConfig(path)
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return Default(), nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100 // 100MB default
	}
	if c.Logging.LogRetentionDays == 0 {
		c.Logging.LogRetentionDays = 7
	}
	if c.Trace.Mode == "" {
		c.Trace.Mode = string(invoker.ModeShell)
	}
	if c.Trace.Shell == "" {
		c.Trace.Shell = invoker.DefaultShell
	}
	if c.Trace.ShellFlag == "" {
		c.Trace.ShellFlag = invoker.DefaultShellFlag
	}
	if c.Trace.MaxOutputBytes == 0 {
		c.Trace.MaxOutputBytes = invoker.DefaultMaxOutput
	}
}

// Validate checks the configuration for values that cannot be used
func (c *Config) Validate() error {
	if _, err := logger.ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.MaxSizeMB < 0 {
		return fmt.Errorf("logging.max_size_mb must not be negative: %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.LogRetentionDays < 0 {
		return fmt.Errorf("logging.log_retention_days must not be negative: %d", c.Logging.LogRetentionDays)
	}
	if _, err := invoker.ParseMode(c.Trace.Mode); err != nil {
		return err
	}
	if c.Trace.MaxOutputBytes < 0 {
		return fmt.Errorf("trace.max_output_bytes must not be negative: %d", c.Trace.MaxOutputBytes)
	}
	if c.EnigmaAPI.Upload && (c.EnigmaAPI.Server == "" || c.EnigmaAPI.APIKey == "") {
		return errors.New("enigma_api.server and enigma_api.api_key must be set when enigma_api.upload is enabled")
	}
	return nil
}

// LoggerConfig builds the logger configuration. The LevelEnv environment
// variable takes precedence over logging.level.
func (c *Config) LoggerConfig() (logger.Config, error) {
	levelName := c.Logging.Level
	if env := os.Getenv(LevelEnv); env != "" {
		levelName = env
	}
	level, err := logger.ParseLogLevel(levelName)
	if err != nil {
		return logger.Config{}, fmt.Errorf("invalid log level: %w", err)
	}
	return logger.Config{
		Level:         level,
		File:          c.Logging.File,
		MaxSizeMB:     c.Logging.MaxSizeMB,
		MaxBackups:    3,
		RetentionDays: c.Logging.LogRetentionDays,
	}, nil
}

// InvokerOptions builds the invoker options from the trace section
func (c *Config) InvokerOptions() (invoker.Options, error) {
	mode, err := invoker.ParseMode(c.Trace.Mode)
	if err != nil {
		return invoker.Options{}, err
	}
	return invoker.Options{
		Mode:      mode,
		Shell:     c.Trace.Shell,
		ShellFlag: c.Trace.ShellFlag,
		MaxOutput: c.Trace.MaxOutputBytes,
	}, nil
}
