package supervisor

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/launcher"
	"github.com/stack-tools/stackup/pkg/probe"
	"github.com/stack-tools/stackup/pkg/processfile"
	"github.com/stack-tools/stackup/pkg/readiness"

	"gopkg.in/yaml.v3"
)

const (
	DefaultReadinessTimeout = 30 * time.Second
	DefaultReadinessHost    = "127.0.0.1"
)

// Config represents the top-level configuration file structure. The service
// list is ordered: a later service is never started before an earlier one has
// reported ready.
type Config struct {
	Supervisor   SupervisorConfigOptions        `yaml:"supervisor"`
	Services     []ServiceConfig                `yaml:"services"`
	ProcessFiles *processfile.ProcessFileConfig `yaml:"process_files,omitempty"` // Optional PID file persistence
}

// SupervisorConfigOptions represents supervisor-level configuration
type SupervisorConfigOptions struct {
	LogLevel        string        `yaml:"log_level,omitempty"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout,omitempty"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout,omitempty"`
}

// ServiceConfig represents a single supervised service
type ServiceConfig struct {
	Name      string                   `yaml:"name"`
	Enabled   *bool                    `yaml:"enabled,omitempty"` // Pointer to distinguish unset from false
	Execution launcher.ExecutionConfig `yaml:"execution"`
	Readiness ReadinessConfig          `yaml:"readiness"`
}

// ReadinessConfig describes the network probe target that signals a service
// is ready
type ReadinessConfig struct {
	Host         string        `yaml:"host,omitempty"`
	Port         int           `yaml:"port"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// LoadConfigFromFile loads supervisor configuration from a YAML file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)

	return &config, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *Config) {
	if config.Supervisor.LogLevel == "" {
		config.Supervisor.LogLevel = "info"
	}
	if config.Supervisor.ConnectTimeout == 0 {
		config.Supervisor.ConnectTimeout = probe.DefaultConnectTimeout
	}
	if config.Supervisor.GracefulTimeout == 0 {
		config.Supervisor.GracefulTimeout = launcher.DefaultGracefulTimeout
	}

	for i := range config.Services {
		service := &config.Services[i]

		if service.Enabled == nil {
			enabled := true
			service.Enabled = &enabled
		}
		if service.Readiness.Host == "" {
			service.Readiness.Host = DefaultReadinessHost
		}
		if service.Readiness.Timeout == 0 {
			service.Readiness.Timeout = DefaultReadinessTimeout
		}
		if service.Readiness.PollInterval == 0 {
			service.Readiness.PollInterval = readiness.DefaultPollInterval
		}
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateSupervisorConfig(&config.Supervisor); err != nil {
		return errors.NewValidationError("invalid supervisor configuration", err)
	}

	if err := validateServicesConfig(config.Services); err != nil {
		return errors.NewValidationError("invalid services configuration", err)
	}

	return nil
}

func validateSupervisorConfig(config *SupervisorConfigOptions) error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if config.LogLevel != "" {
		valid := false
		for _, level := range validLogLevels {
			if config.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			return errors.NewValidationError(
				fmt.Sprintf("invalid log level: %s", config.LogLevel),
				nil,
			).WithContext("valid_levels", "debug, info, warn, error")
		}
	}

	if config.ConnectTimeout < 0 {
		return errors.NewValidationError(
			fmt.Sprintf("connect timeout cannot be negative: %s", config.ConnectTimeout), nil)
	}
	if config.GracefulTimeout < 0 {
		return errors.NewValidationError(
			fmt.Sprintf("graceful timeout cannot be negative: %s", config.GracefulTimeout), nil)
	}

	return nil
}

func validateServicesConfig(services []ServiceConfig) error {
	if len(services) == 0 {
		return errors.NewValidationError("at least one service must be configured", nil)
	}

	// Check for duplicate service names
	seenNames := make(map[string]int)
	for i, service := range services {
		if err := ValidateServiceName(service.Name); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid service name at index %d", i),
				err,
			).WithContext("service", service.Name)
		}

		if prevIndex, exists := seenNames[service.Name]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate service name '%s' found at indices %d and %d", service.Name, prevIndex, i),
				nil,
			)
		}
		seenNames[service.Name] = i

		if service.Execution.ExecutablePath == "" {
			return errors.NewValidationError(
				fmt.Sprintf("executable path is required for service at index %d", i),
				nil,
			).WithContext("service", service.Name)
		}

		if err := validateReadinessConfig(service.Readiness); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid readiness configuration for service at index %d", i),
				err,
			).WithContext("service", service.Name)
		}
	}

	return nil
}

func validateReadinessConfig(config ReadinessConfig) error {
	if config.Port < 1 || config.Port > 65535 {
		return errors.NewValidationError(
			fmt.Sprintf("invalid readiness port: %d", config.Port),
			nil,
		).WithContext("valid_range", "1-65535")
	}
	if config.Timeout < 0 {
		return errors.NewValidationError(
			fmt.Sprintf("readiness timeout cannot be negative: %s", config.Timeout), nil)
	}
	if config.PollInterval <= 0 {
		return errors.NewValidationError(
			fmt.Sprintf("poll interval must be positive: %s", config.PollInterval), nil)
	}
	return nil
}

var serviceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateServiceName checks that a service name is non-empty and filesystem
// safe (it becomes part of PID file names)
func ValidateServiceName(name string) error {
	if name == "" {
		return errors.NewValidationError("service name cannot be empty", nil)
	}
	if !serviceNamePattern.MatchString(name) {
		return errors.NewValidationError(
			fmt.Sprintf("service name contains invalid characters: %s", name),
			nil,
		).WithContext("valid_pattern", serviceNamePattern.String())
	}
	return nil
}

// EnabledServices returns the services that should take part in the startup
// sequence, preserving configuration order
func EnabledServices(config *Config) []ServiceConfig {
	enabled := make([]ServiceConfig, 0, len(config.Services))
	for _, service := range config.Services {
		if service.Enabled != nil && !*service.Enabled {
			continue
		}
		enabled = append(enabled, service)
	}
	return enabled
}

// ValidateConfigFile validates a configuration file without running anything.
// This is useful for configuration testing and CI validation.
func ValidateConfigFile(configFile string) error {
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	return nil
}

// ConfigSummary provides a high-level overview of configuration
type ConfigSummary struct {
	LogLevel        string           `json:"log_level"`
	TotalServices   int              `json:"total_services"`
	EnabledServices int              `json:"enabled_services"`
	Services        []ServiceSummary `json:"services"`
	Error           string           `json:"error,omitempty"`
}

// ServiceSummary provides a summary of a single service configuration
type ServiceSummary struct {
	Name           string `json:"name"`
	Enabled        bool   `json:"enabled"`
	ExecutablePath string `json:"executable_path"`
	ReadinessHost  string `json:"readiness_host"`
	ReadinessPort  int    `json:"readiness_port"`
}

// GetConfigSummary returns a human-readable summary of the configuration for
// debugging and operational visibility
func GetConfigSummary(config *Config) ConfigSummary {
	if config == nil {
		return ConfigSummary{Error: "configuration is nil"}
	}

	summary := ConfigSummary{
		LogLevel: config.Supervisor.LogLevel,
		Services: make([]ServiceSummary, 0, len(config.Services)),
	}

	for _, service := range config.Services {
		enabled := false
		if service.Enabled != nil {
			enabled = *service.Enabled
		}

		summary.Services = append(summary.Services, ServiceSummary{
			Name:           service.Name,
			Enabled:        enabled,
			ExecutablePath: service.Execution.ExecutablePath,
			ReadinessHost:  service.Readiness.Host,
			ReadinessPort:  service.Readiness.Port,
		})
	}

	summary.TotalServices = len(summary.Services)
	for _, service := range summary.Services {
		if service.Enabled {
			summary.EnabledServices++
		}
	}

	return summary
}
