package processfile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/logging"
)

const DefaultAppName = "stackup"

// ServiceContext determines where process files live on disk
type ServiceContext string

const (
	// SystemService places files in the system-wide runtime directory
	SystemService ServiceContext = "system"

	// UserService places files in the current user's data directory
	UserService ServiceContext = "user"

	// SessionService places files in the session temp directory
	SessionService ServiceContext = "session"
)

type ProcessFileConfig struct {
	ServiceContext  ServiceContext `yaml:"service_context,omitempty"`
	AppName         string         `yaml:"app_name,omitempty"`
	BaseDirectory   string         `yaml:"base_directory,omitempty"`
	UseSubdirectory bool           `yaml:"use_subdirectory,omitempty"`
}

// ProcessFileManager generates, writes and removes PID files for supervised
// services
type ProcessFileManager struct {
	config ProcessFileConfig
	logger logging.Logger
}

func NewProcessFileManager(config ProcessFileConfig, logger logging.Logger) *ProcessFileManager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}
	if config.ServiceContext == "" {
		config.ServiceContext = UserService
	}
	return &ProcessFileManager{
		config: config,
		logger: logger,
	}
}

// GeneratePIDFilePath returns the PID file path for a service without touching
// the filesystem
func (m *ProcessFileManager) GeneratePIDFilePath(serviceName string) string {
	return filepath.Join(m.baseDirectory(), serviceName+".pid")
}

// WritePIDFile persists a service's PID, creating directories as needed
func (m *ProcessFileManager) WritePIDFile(serviceName string, pid int) error {
	pidFile := m.GeneratePIDFilePath(serviceName)

	if err := ValidateDirectory(pidFile); err != nil {
		return errors.NewIOError("failed to prepare PID file directory", err).
			WithContext("service", serviceName).WithContext("pid_file", pidFile)
	}

	content := fmt.Sprintf("%d\n", pid)
	if err := os.WriteFile(pidFile, []byte(content), 0644); err != nil {
		return errors.NewIOError("failed to write PID file", err).
			WithContext("service", serviceName).WithContext("pid_file", pidFile)
	}

	m.logger.Debugf("PID file written, service: %s, path: %s, PID: %d", serviceName, pidFile, pid)
	return nil
}

// ReadPIDFile returns the PID recorded for a service
func (m *ProcessFileManager) ReadPIDFile(serviceName string) (int, error) {
	pidFile := m.GeneratePIDFilePath(serviceName)

	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, errors.NewIOError("failed to read PID file", err).
			WithContext("service", serviceName).WithContext("pid_file", pidFile)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.NewValidationError("invalid PID in PID file", err).
			WithContext("service", serviceName).WithContext("pid_file", pidFile)
	}

	return pid, nil
}

// RemovePIDFile deletes a service's PID file; a missing file is not an error
func (m *ProcessFileManager) RemovePIDFile(serviceName string) error {
	pidFile := m.GeneratePIDFilePath(serviceName)

	if err := os.Remove(pidFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewIOError("failed to remove PID file", err).
			WithContext("service", serviceName).WithContext("pid_file", pidFile)
	}

	m.logger.Debugf("PID file removed, service: %s, path: %s", serviceName, pidFile)
	return nil
}

func (m *ProcessFileManager) baseDirectory() string {
	base := m.config.BaseDirectory
	if base == "" {
		base = contextBaseDirectory(m.config.ServiceContext)
	}
	if m.config.UseSubdirectory {
		base = filepath.Join(base, m.config.AppName)
	}
	return base
}

func contextBaseDirectory(serviceContext ServiceContext) string {
	switch serviceContext {
	case SystemService:
		if runtime.GOOS == "windows" {
			if programData := os.Getenv("ProgramData"); programData != "" {
				return programData
			}
			return `C:\ProgramData`
		}
		return "/var/run"
	case SessionService:
		return os.TempDir()
	default: // UserService
		if cacheDir, err := os.UserCacheDir(); err == nil {
			return cacheDir
		}
		return os.TempDir()
	}
}

// ValidateDirectory ensures the directory holding filePath exists, creating
// it when missing
func ValidateDirectory(filePath string) error {
	dir := filepath.Dir(filePath)

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.NewValidationError("process file directory path is not a directory", nil).
				WithContext("directory", dir)
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIOError("failed to create process file directory", err).
			WithContext("directory", dir)
	}
	return nil
}

// GetRecommendedProcessFileConfig maps a deployment scenario to a sensible
// process file configuration
func GetRecommendedProcessFileConfig(scenario string, appName string) ProcessFileConfig {
	if appName == "" {
		appName = DefaultAppName
	}

	switch scenario {
	case "system":
		return ProcessFileConfig{
			ServiceContext:  SystemService,
			AppName:         appName,
			UseSubdirectory: true,
		}
	case "session":
		return ProcessFileConfig{
			ServiceContext:  SessionService,
			AppName:         appName,
			UseSubdirectory: false,
		}
	case "development":
		return ProcessFileConfig{
			ServiceContext:  UserService,
			AppName:         appName,
			BaseDirectory:   filepath.Join(os.TempDir(), appName),
			UseSubdirectory: false,
		}
	default:
		return ProcessFileConfig{
			ServiceContext:  UserService,
			AppName:         appName,
			UseSubdirectory: true,
		}
	}
}
