package launcher

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stack-tools/stackup/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LauncherMockLogger is a simple no-op implementation of Logger for testing
type LauncherMockLogger struct{}

func (m *LauncherMockLogger) Debugf(format string, args ...interface{}) {}
func (m *LauncherMockLogger) Infof(format string, args ...interface{})  {}
func (m *LauncherMockLogger) Warnf(format string, args ...interface{})  {}
func (m *LauncherMockLogger) Errorf(format string, args ...interface{}) {}

// getSleepExecution returns a platform-specific long-running command
func getSleepExecution() ExecutionConfig {
	if runtime.GOOS == "windows" {
		return ExecutionConfig{
			ExecutablePath: "C:\\Windows\\System32\\cmd.exe",
			Args:           []string{"/c", "ping", "-n", "60", "127.0.0.1"},
		}
	}
	return ExecutionConfig{
		ExecutablePath: "/bin/sleep",
		Args:           []string{"60"},
	}
}

// getShortExecution returns a platform-specific command that exits quickly
func getShortExecution() ExecutionConfig {
	if runtime.GOOS == "windows" {
		return ExecutionConfig{
			ExecutablePath: "C:\\Windows\\System32\\cmd.exe",
			Args:           []string{"/c", "echo", "test"},
		}
	}
	return ExecutionConfig{
		ExecutablePath: "/bin/echo",
		Args:           []string{"test"},
	}
}

func TestExecLauncher_StartAndTerminate(t *testing.T) {
	launcher := NewExecLauncher(Options{GracefulTimeout: 2 * time.Second}, &LauncherMockLogger{})

	handle, err := launcher.Start(context.Background(), "test-service", getSleepExecution())

	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, "test-service", handle.ServiceName)
	assert.Greater(t, handle.PID, 0)
	assert.False(t, handle.StartedAt.IsZero())

	err = launcher.Terminate(context.Background(), handle)
	assert.NoError(t, err)
}

func TestExecLauncher_StartCommandNotFound(t *testing.T) {
	launcher := NewExecLauncher(Options{}, &LauncherMockLogger{})

	handle, err := launcher.Start(context.Background(), "broken-service", ExecutionConfig{
		ExecutablePath: "/nonexistent/definitely-not-a-command",
	})

	require.Error(t, err)
	assert.Nil(t, handle)
	assert.True(t, errors.IsLaunchError(err))
}

func TestExecLauncher_StartEmptyExecutable(t *testing.T) {
	launcher := NewExecLauncher(Options{}, &LauncherMockLogger{})

	handle, err := launcher.Start(context.Background(), "empty-service", ExecutionConfig{})

	require.Error(t, err)
	assert.Nil(t, handle)
	assert.True(t, errors.IsValidationError(err))
}

func TestExecLauncher_StartNilContext(t *testing.T) {
	launcher := NewExecLauncher(Options{}, &LauncherMockLogger{})

	handle, err := launcher.Start(nil, "test-service", getShortExecution())

	require.Error(t, err)
	assert.Nil(t, handle)
	assert.True(t, errors.IsValidationError(err))
}

func TestExecLauncher_TerminateAlreadyExited(t *testing.T) {
	launcher := NewExecLauncher(Options{GracefulTimeout: 2 * time.Second}, &LauncherMockLogger{})

	handle, err := launcher.Start(context.Background(), "short-service", getShortExecution())
	require.NoError(t, err)

	// Let the process exit on its own before terminating
	time.Sleep(500 * time.Millisecond)

	err = launcher.Terminate(context.Background(), handle)
	assert.NoError(t, err)
}

func TestExecLauncher_TerminateIsIdempotent(t *testing.T) {
	launcher := NewExecLauncher(Options{GracefulTimeout: 2 * time.Second}, &LauncherMockLogger{})

	handle, err := launcher.Start(context.Background(), "test-service", getSleepExecution())
	require.NoError(t, err)

	require.NoError(t, launcher.Terminate(context.Background(), handle))
	assert.NoError(t, launcher.Terminate(context.Background(), handle))
}

func TestExecLauncher_TerminateNilHandle(t *testing.T) {
	launcher := NewExecLauncher(Options{}, &LauncherMockLogger{})

	assert.NoError(t, launcher.Terminate(context.Background(), nil))
	assert.NoError(t, launcher.Terminate(context.Background(), &ProcessHandle{ServiceName: "detached", PID: 99999}))
}

func TestProcessHandle_String(t *testing.T) {
	var nilHandle *ProcessHandle
	assert.Equal(t, "<nil>", nilHandle.String())

	handle := &ProcessHandle{ServiceName: "database", PID: 4242}
	assert.Equal(t, "database (PID 4242)", handle.String())
}
