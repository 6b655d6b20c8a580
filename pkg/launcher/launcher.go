package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/logging"
)

const (
	DefaultGracefulTimeout = 20 * time.Second

	// forceKillTimeout bounds the wait after a forced kill
	forceKillTimeout = 5 * time.Second
)

// ExecutionConfig describes how to invoke a service's start command
type ExecutionConfig struct {
	ExecutablePath   string   `yaml:"executable_path"`
	Args             []string `yaml:"args,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
	Environment      []string `yaml:"environment,omitempty"`
}

// ProcessHandle captures enough identity about a started service process to
// later terminate it
type ProcessHandle struct {
	ServiceName string
	PID         int
	StartedAt   time.Time

	process  *os.Process
	waitDone chan error
}

// Launcher starts service processes and terminates them again
type Launcher interface {
	// Start invokes the service's start command. A launch error means the
	// command could not even be invoked; whether the service then becomes
	// ready is the readiness waiter's concern.
	Start(ctx context.Context, serviceName string, execution ExecutionConfig) (*ProcessHandle, error)

	// Terminate forcibly ends the process behind the handle, graceful
	// signal first, kill after the graceful timeout. Terminating a nil or
	// already-dead handle is a no-op.
	Terminate(ctx context.Context, handle *ProcessHandle) error
}

type Options struct {
	GracefulTimeout time.Duration
}

type execLauncher struct {
	options Options
	logger  logging.Logger
}

func NewExecLauncher(options Options, logger logging.Logger) Launcher {
	if options.GracefulTimeout <= 0 {
		options.GracefulTimeout = DefaultGracefulTimeout
	}
	return &execLauncher{
		options: options,
		logger:  logger,
	}
}

func (l *execLauncher) Start(ctx context.Context, serviceName string, execution ExecutionConfig) (*ProcessHandle, error) {
	if ctx == nil {
		return nil, errors.NewValidationError("context cannot be nil", nil)
	}
	if execution.ExecutablePath == "" {
		return nil, errors.NewValidationError("executable path cannot be empty", nil).
			WithContext("service", serviceName)
	}

	l.logger.Infof("Starting service process, service: %s, executable: %s", serviceName, execution.ExecutablePath)

	cmd := exec.Command(execution.ExecutablePath, execution.Args...)
	cmd.Dir = execution.WorkingDirectory
	if len(execution.Environment) > 0 {
		cmd.Env = append(os.Environ(), execution.Environment...)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.NewLaunchError("failed to start service command", err).
			WithContext("service", serviceName).
			WithContext("executable_path", execution.ExecutablePath)
	}

	handle := &ProcessHandle{
		ServiceName: serviceName,
		PID:         cmd.Process.Pid,
		StartedAt:   time.Now(),
		process:     cmd.Process,
		waitDone:    make(chan error, 1),
	}

	// Reap the child so it never lingers as a zombie; Terminate consumes
	// the signal to confirm exit.
	go func() {
		state, err := cmd.Process.Wait()
		if err != nil {
			l.logger.Debugf("Process wait failed, service: %s, PID: %d, error: %v", serviceName, handle.PID, err)
			handle.waitDone <- errors.NewProcessError("process wait failed", err).WithContext("pid", handle.PID)
			return
		}
		l.logger.Infof("Process exited, service: %s, PID: %d, status: %v", serviceName, handle.PID, state)
		handle.waitDone <- nil
	}()

	if ctx.Err() != nil {
		l.logger.Infof("Context cancelled during startup, cleaning up, service: %s", serviceName)
		if err := cmd.Process.Kill(); err != nil {
			l.logger.Warnf("Failed to kill process after cancelled startup, service: %s, error: %v", serviceName, err)
		}
		return nil, errors.NewCancelledError("service startup cancelled", ctx.Err()).
			WithContext("service", serviceName)
	}

	l.logger.Infof("Service process started, service: %s, PID: %d", serviceName, handle.PID)

	return handle, nil
}

func (l *execLauncher) Terminate(ctx context.Context, handle *ProcessHandle) error {
	if handle == nil || handle.process == nil {
		l.logger.Debugf("No process to terminate")
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pid := handle.PID

	l.logger.Infof("Terminating process, service: %s, PID: %d", handle.ServiceName, pid)

	if runtime.GOOS != "windows" {
		// Graceful phase first; a signal failure means the process is
		// already gone.
		if err := handle.process.Signal(syscall.SIGTERM); err != nil {
			l.logger.Debugf("Termination signal failed, process already exited, service: %s, PID: %d, error: %v",
				handle.ServiceName, pid, err)
			return nil
		}

		select {
		case err := <-handle.waitDone:
			if err != nil {
				return errors.NewProcessError("process termination failed", err).WithContext("pid", pid)
			}
			l.logger.Infof("Process terminated gracefully, service: %s, PID: %d", handle.ServiceName, pid)
			return nil
		case <-time.After(l.options.GracefulTimeout):
			l.logger.Warnf("Process did not terminate within %s, forcing termination, service: %s, PID: %d",
				l.options.GracefulTimeout, handle.ServiceName, pid)
		case <-ctx.Done():
			l.logger.Warnf("Context cancelled during graceful termination, forcing termination, service: %s, PID: %d",
				handle.ServiceName, pid)
		}
	}

	if err := handle.process.Kill(); err != nil {
		// An already-finished process is not an error on the cleanup path
		l.logger.Debugf("Kill failed, process already exited, service: %s, PID: %d, error: %v",
			handle.ServiceName, pid, err)
		return nil
	}

	select {
	case err := <-handle.waitDone:
		if err != nil {
			return errors.NewProcessError("forced termination failed", err).WithContext("pid", pid)
		}
		l.logger.Infof("Process force terminated, service: %s, PID: %d", handle.ServiceName, pid)
		return nil
	case <-time.After(forceKillTimeout):
		return errors.NewTimeoutError("process did not terminate even after force termination", nil).
			WithContext("pid", pid)
	case <-ctx.Done():
		return errors.NewCancelledError("termination cancelled", ctx.Err()).WithContext("pid", pid)
	}
}

// String identifies the handle in logs and diagnostics
func (h *ProcessHandle) String() string {
	if h == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (PID %d)", h.ServiceName, h.PID)
}
