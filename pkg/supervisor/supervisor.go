package supervisor

import (
	"context"
	"sync"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/launcher"
	"github.com/stack-tools/stackup/pkg/logging"
	"github.com/stack-tools/stackup/pkg/probe"
	"github.com/stack-tools/stackup/pkg/processfile"
	"github.com/stack-tools/stackup/pkg/readiness"
	"github.com/stack-tools/stackup/pkg/registry"
	"github.com/stack-tools/stackup/pkg/supervisor/servicestate"
)

// SupervisorState represents the current state of the startup sequence
type SupervisorState string

const (
	// SupervisorStateIdle is the initial state before Start is called
	SupervisorStateIdle SupervisorState = "idle"

	// SupervisorStateStarting means the ordered startup sequence is in progress
	SupervisorStateStarting SupervisorState = "starting"

	// SupervisorStateReady means every service launched and reported ready
	SupervisorStateReady SupervisorState = "ready"

	// SupervisorStateFailed means a launch error or readiness timeout aborted the sequence
	SupervisorStateFailed SupervisorState = "failed"

	// SupervisorStateStopped means cleanup has run
	SupervisorStateStopped SupervisorState = "stopped"
)

// Supervisor orchestrates the ordered start, readiness confirmation and
// cleanup of a fixed service list
type Supervisor interface {
	// Start runs the startup sequence top to bottom. A later service is
	// never started before an earlier one has reported ready. The first
	// launch error or readiness timeout aborts the whole sequence; there
	// are no retries at this level.
	Start(ctx context.Context) error

	// Stop terminates every recorded process in reverse start order and
	// clears the registry. It is idempotent and safe to invoke from any
	// state; termination failures are collected, never escalated
	// individually.
	Stop(ctx context.Context) error

	GetState() SupervisorState

	// GetFailedService reports which service aborted the sequence, by name
	// and index, when the supervisor is in the failed state
	GetFailedService() (string, int, bool)

	GetServiceStates() map[string]servicestate.ServiceStateInfo
}

type supervisor struct {
	services      []ServiceConfig
	launcher      launcher.Launcher
	waiter        readiness.Waiter
	registry      registry.Registry
	stateMachines map[string]*servicestate.ServiceStateMachine

	state         SupervisorState
	failedService string
	failedIndex   int
	mutex         sync.Mutex

	logger logging.Logger
}

// NewSupervisor creates a supervisor over an ordered, already-validated
// service list. Collaborators are injected to keep the orchestration testable.
func NewSupervisor(
	services []ServiceConfig,
	serviceLauncher launcher.Launcher,
	waiter readiness.Waiter,
	processRegistry registry.Registry,
	logger logging.Logger,
) Supervisor {
	stateMachines := make(map[string]*servicestate.ServiceStateMachine, len(services))
	for _, service := range services {
		ssm := servicestate.NewServiceStateMachine(service.Name, logger)
		if err := ssm.Transition(servicestate.ServiceStateRegistered, "register", nil); err != nil {
			logger.Errorf("Failed to register service state, service: %s, error: %v", service.Name, err)
		}
		stateMachines[service.Name] = ssm
	}

	return &supervisor{
		services:      services,
		launcher:      serviceLauncher,
		waiter:        waiter,
		registry:      processRegistry,
		stateMachines: stateMachines,
		state:         SupervisorStateIdle,
		failedIndex:   -1,
		logger:        logger,
	}
}

// NewSupervisorFromConfig wires the real collaborators (TCP prober, exec
// launcher, PID file backed registry) from a validated configuration
func NewSupervisorFromConfig(config *Config, logger logging.Logger) Supervisor {
	prober := probe.NewTCPProber(probe.Options{
		ConnectTimeout: config.Supervisor.ConnectTimeout,
	}, logger)

	waiter := readiness.NewWaiter(prober, logger)

	serviceLauncher := launcher.NewExecLauncher(launcher.Options{
		GracefulTimeout: config.Supervisor.GracefulTimeout,
	}, logger)

	var pidManager *processfile.ProcessFileManager
	if config.ProcessFiles != nil {
		pidManager = processfile.NewProcessFileManager(*config.ProcessFiles, logger)
	}
	processRegistry := registry.NewRegistry(pidManager, logger)

	return NewSupervisor(EnabledServices(config), serviceLauncher, waiter, processRegistry, logger)
}

func (s *supervisor) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	s.mutex.Lock()
	if s.state != SupervisorStateIdle {
		state := s.state
		s.mutex.Unlock()
		return errors.NewValidationError("startup sequence already ran", nil).
			WithContext("state", string(state))
	}
	s.state = SupervisorStateStarting
	s.mutex.Unlock()

	s.logger.Infof("Starting supervised sequence, services: %d", len(s.services))

	for i, service := range s.services {
		if err := s.startService(ctx, i, service); err != nil {
			s.setFailed(i, service.Name)
			s.logger.Errorf("Startup sequence aborted, service: %s, index: %d, error: %v", service.Name, i, err)
			return err
		}
	}

	s.setState(SupervisorStateReady)
	s.logger.Infof("All services ready, count: %d", len(s.services))

	return nil
}

func (s *supervisor) startService(ctx context.Context, index int, service ServiceConfig) error {
	ssm := s.stateMachines[service.Name]

	if ctx.Err() != nil {
		return errors.NewCancelledError("startup sequence cancelled", ctx.Err()).
			WithContext("service", service.Name).
			WithContext("service_index", index)
	}

	s.logger.Infof("Starting service, name: %s, index: %d", service.Name, index)

	if err := ssm.Transition(servicestate.ServiceStateStarting, "start", nil); err != nil {
		return errors.NewInternalError("failed to transition service to starting state", err).
			WithContext("service", service.Name)
	}

	handle, err := s.launcher.Start(ctx, service.Name, service.Execution)
	if err != nil {
		if transitionErr := ssm.Transition(servicestate.ServiceStateFailed, "start", err); transitionErr != nil {
			s.logger.Errorf("Failed to transition service to failed state, service: %s, error: %v",
				service.Name, transitionErr)
		}
		return err
	}

	if err := s.registry.Record(handle); err != nil {
		s.logger.Errorf("Failed to record process handle, service: %s, error: %v", service.Name, err)
	}

	elapsed, err := s.waiter.WaitUntilReady(ctx, service.Readiness.Host, service.Readiness.Port, readiness.WaitOptions{
		Timeout:      service.Readiness.Timeout,
		PollInterval: service.Readiness.PollInterval,
	})
	if err != nil {
		if transitionErr := ssm.Transition(servicestate.ServiceStateFailed, "wait_ready", err); transitionErr != nil {
			s.logger.Errorf("Failed to transition service to failed state, service: %s, error: %v",
				service.Name, transitionErr)
		}
		return err
	}

	if err := ssm.Transition(servicestate.ServiceStateReady, "start", nil); err != nil {
		s.logger.Errorf("Failed to transition service to ready state, service: %s, error: %v", service.Name, err)
	}

	s.logger.Infof("Service ready, name: %s, index: %d, elapsed: %s", service.Name, index, elapsed)
	return nil
}

func (s *supervisor) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Infof("Running cleanup...")

	// Terminate in reverse start order so dependents go down before their
	// dependencies
	handles := s.registry.All()
	errorCollection := errors.NewErrorCollection()
	for i := len(handles) - 1; i >= 0; i-- {
		handle := handles[i]
		if err := s.launcher.Terminate(ctx, handle); err != nil {
			s.logger.Errorf("Failed to terminate process, handle: %s, error: %v", handle, err)
			errorCollection.Add(errors.NewProcessError("failed to terminate process", err).
				WithContext("service", handle.ServiceName))
		}
	}

	s.registry.Clear()

	for _, service := range s.services {
		ssm := s.stateMachines[service.Name]
		if ssm.CanTransition(servicestate.ServiceStateStopped) {
			if err := ssm.Transition(servicestate.ServiceStateStopped, "stop", nil); err != nil {
				s.logger.Errorf("Failed to transition service to stopped state, service: %s, error: %v",
					service.Name, err)
			}
		}
	}

	s.setState(SupervisorStateStopped)

	if errorCollection.HasErrors() {
		s.logger.Errorf("Some processes failed to terminate: %v", errorCollection.Error())
	}

	s.logger.Infof("Cleanup finished")

	return errorCollection.ToError()
}

func (s *supervisor) GetState() SupervisorState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *supervisor) GetFailedService() (string, int, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failedIndex < 0 {
		return "", -1, false
	}
	return s.failedService, s.failedIndex, true
}

func (s *supervisor) GetServiceStates() map[string]servicestate.ServiceStateInfo {
	states := make(map[string]servicestate.ServiceStateInfo, len(s.stateMachines))
	for name, ssm := range s.stateMachines {
		states[name] = ssm.GetStateInfo()
	}
	return states
}

func (s *supervisor) setState(state SupervisorState) {
	s.mutex.Lock()
	s.state = state
	s.mutex.Unlock()
}

func (s *supervisor) setFailed(index int, serviceName string) {
	s.mutex.Lock()
	s.state = SupervisorStateFailed
	s.failedIndex = index
	s.failedService = serviceName
	s.mutex.Unlock()
}
