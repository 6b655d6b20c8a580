package supervisor

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/launcher"
	"github.com/stack-tools/stackup/pkg/probe"
	"github.com/stack-tools/stackup/pkg/readiness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestExecutable returns a platform-specific executable path that exists
func getTestExecutable() string {
	if runtime.GOOS == "windows" {
		return "C:\\Windows\\System32\\cmd.exe"
	}
	return "/bin/echo"
}

func writeConfigFile(t *testing.T, configYAML string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "stackup.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(configYAML), 0644))
	return configFile
}

const validConfigTemplate = `
supervisor:
  log_level: "info"
  connect_timeout: "500ms"
  graceful_timeout: "10s"

services:
  - name: "database"
    execution:
      executable_path: "EXEC"
      args: ["db"]
    readiness:
      port: 5432
      timeout: "30s"
      poll_interval: "1s"

  - name: "backend"
    execution:
      executable_path: "EXEC"
      args: ["api"]
      environment: ["DATABASE_URL=postgres://localhost:5432/app"]
    readiness:
      host: "localhost"
      port: 8000
      timeout: "30s"

  - name: "frontend"
    enabled: false
    execution:
      executable_path: "EXEC"
    readiness:
      port: 3000
`

func validConfigYAML() string {
	exec := getTestExecutable()
	if runtime.GOOS == "windows" {
		// Escape backslashes for YAML
		exec = strings.ReplaceAll(exec, "\\", "\\\\")
	}
	return strings.ReplaceAll(validConfigTemplate, "EXEC", exec)
}

func TestLoadConfigFromFile(t *testing.T) {
	configFile := writeConfigFile(t, validConfigYAML())

	config, err := LoadConfigFromFile(configFile)

	require.NoError(t, err)
	require.Len(t, config.Services, 3)

	assert.Equal(t, "info", config.Supervisor.LogLevel)
	assert.Equal(t, 500*time.Millisecond, config.Supervisor.ConnectTimeout)
	assert.Equal(t, 10*time.Second, config.Supervisor.GracefulTimeout)

	database := config.Services[0]
	assert.Equal(t, "database", database.Name)
	assert.Equal(t, 5432, database.Readiness.Port)
	assert.Equal(t, 30*time.Second, database.Readiness.Timeout)
	assert.Equal(t, time.Second, database.Readiness.PollInterval)

	backend := config.Services[1]
	assert.Equal(t, "localhost", backend.Readiness.Host)
	assert.Equal(t, []string{"DATABASE_URL=postgres://localhost:5432/app"}, backend.Execution.Environment)

	frontend := config.Services[2]
	require.NotNil(t, frontend.Enabled)
	assert.False(t, *frontend.Enabled)
}

func TestLoadConfigFromFile_AppliesDefaults(t *testing.T) {
	configYAML := `
services:
  - name: "backend"
    execution:
      executable_path: "` + getTestExecutable() + `"
    readiness:
      port: 8000
`
	if runtime.GOOS == "windows" {
		t.Skip("default config fixture uses POSIX paths")
	}

	config, err := LoadConfigFromFile(writeConfigFile(t, configYAML))

	require.NoError(t, err)
	assert.Equal(t, "info", config.Supervisor.LogLevel)
	assert.Equal(t, probe.DefaultConnectTimeout, config.Supervisor.ConnectTimeout)

	backend := config.Services[0]
	require.NotNil(t, backend.Enabled)
	assert.True(t, *backend.Enabled)
	assert.Equal(t, DefaultReadinessHost, backend.Readiness.Host)
	assert.Equal(t, DefaultReadinessTimeout, backend.Readiness.Timeout)
	assert.Equal(t, readiness.DefaultPollInterval, backend.Readiness.PollInterval)
}

func TestLoadConfigFromFile_MissingFile(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

func TestLoadConfigFromFile_MalformedYAML(t *testing.T) {
	configFile := writeConfigFile(t, "services: [not: valid: yaml")

	_, err := LoadConfigFromFile(configFile)

	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestValidateConfig(t *testing.T) {
	baseService := func() ServiceConfig {
		enabled := true
		return ServiceConfig{
			Name:      "backend",
			Enabled:   &enabled,
			Execution: launcher.ExecutionConfig{ExecutablePath: getTestExecutable()},
			Readiness: ReadinessConfig{
				Host:         "127.0.0.1",
				Port:         8000,
				Timeout:      30 * time.Second,
				PollInterval: time.Second,
			},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "nil_config_rejected_separately",
			mutate:      nil,
			expectError: true,
		},
		{
			name: "no_services",
			mutate: func(c *Config) {
				c.Services = nil
			},
			expectError: true,
		},
		{
			name: "invalid_log_level",
			mutate: func(c *Config) {
				c.Supervisor.LogLevel = "verbose"
			},
			expectError: true,
		},
		{
			name: "empty_service_name",
			mutate: func(c *Config) {
				c.Services[0].Name = ""
			},
			expectError: true,
		},
		{
			name: "service_name_with_path_characters",
			mutate: func(c *Config) {
				c.Services[0].Name = "../escape"
			},
			expectError: true,
		},
		{
			name: "duplicate_service_names",
			mutate: func(c *Config) {
				c.Services = append(c.Services, c.Services[0])
			},
			expectError: true,
		},
		{
			name: "missing_executable",
			mutate: func(c *Config) {
				c.Services[0].Execution.ExecutablePath = ""
			},
			expectError: true,
		},
		{
			name: "port_zero",
			mutate: func(c *Config) {
				c.Services[0].Readiness.Port = 0
			},
			expectError: true,
		},
		{
			name: "port_too_large",
			mutate: func(c *Config) {
				c.Services[0].Readiness.Port = 65536
			},
			expectError: true,
		},
		{
			name: "negative_timeout",
			mutate: func(c *Config) {
				c.Services[0].Readiness.Timeout = -time.Second
			},
			expectError: true,
		},
		{
			name: "zero_poll_interval",
			mutate: func(c *Config) {
				c.Services[0].Readiness.PollInterval = 0
			},
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.mutate == nil {
				err := ValidateConfig(nil)
				assert.Error(t, err)
				return
			}

			config := &Config{
				Supervisor: SupervisorConfigOptions{LogLevel: "info"},
				Services:   []ServiceConfig{baseService()},
			}
			tc.mutate(config)

			err := ValidateConfig(config)

			if tc.expectError {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfig_ZeroReadinessTimeoutAllowed(t *testing.T) {
	// A zero timeout is a valid budget: exactly one probe attempt
	config := &Config{
		Services: []ServiceConfig{{
			Name:      "backend",
			Execution: launcher.ExecutionConfig{ExecutablePath: getTestExecutable()},
			Readiness: ReadinessConfig{
				Port:         8000,
				Timeout:      0,
				PollInterval: time.Second,
			},
		}},
	}

	assert.NoError(t, ValidateConfig(config))
}

func TestEnabledServices(t *testing.T) {
	configFile := writeConfigFile(t, validConfigYAML())
	config, err := LoadConfigFromFile(configFile)
	require.NoError(t, err)

	enabled := EnabledServices(config)

	require.Len(t, enabled, 2)
	assert.Equal(t, "database", enabled[0].Name)
	assert.Equal(t, "backend", enabled[1].Name)
}

func TestValidateConfigFile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		configFile := writeConfigFile(t, validConfigYAML())
		assert.NoError(t, ValidateConfigFile(configFile))
	})

	t.Run("invalid", func(t *testing.T) {
		configFile := writeConfigFile(t, `
services:
  - name: "backend"
    execution:
      executable_path: "/bin/echo"
    readiness:
      port: 0
`)
		assert.Error(t, ValidateConfigFile(configFile))
	})

	t.Run("missing", func(t *testing.T) {
		assert.Error(t, ValidateConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))
	})
}

func TestGetConfigSummary(t *testing.T) {
	configFile := writeConfigFile(t, validConfigYAML())
	config, err := LoadConfigFromFile(configFile)
	require.NoError(t, err)

	summary := GetConfigSummary(config)

	assert.Equal(t, 3, summary.TotalServices)
	assert.Equal(t, 2, summary.EnabledServices)
	require.Len(t, summary.Services, 3)
	assert.Equal(t, "database", summary.Services[0].Name)
	assert.Equal(t, 5432, summary.Services[0].ReadinessPort)
	assert.False(t, summary.Services[2].Enabled)
}

func TestGetConfigSummary_NilConfig(t *testing.T) {
	summary := GetConfigSummary(nil)

	assert.NotEmpty(t, summary.Error)
}
