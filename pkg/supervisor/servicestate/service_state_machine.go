package servicestate

import (
	"fmt"
	"sync"
	"time"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/logging"
)

// ServiceState represents the current state of a supervised service in its
// startup lifecycle
type ServiceState string

const (
	// ServiceStateUnknown is the initial state before registration
	ServiceStateUnknown ServiceState = "unknown"

	// ServiceStateRegistered means the service is part of the planned sequence
	ServiceStateRegistered ServiceState = "registered"

	// ServiceStateStarting means launch or readiness confirmation is in progress
	ServiceStateStarting ServiceState = "starting"

	// ServiceStateReady means the service accepted a readiness probe
	ServiceStateReady ServiceState = "ready"

	// ServiceStateFailed means the launch failed or readiness timed out
	ServiceStateFailed ServiceState = "failed"

	// ServiceStateStopped means the service was terminated by cleanup
	ServiceStateStopped ServiceState = "stopped"
)

// StateTransition records a single state change with metadata
type StateTransition struct {
	From      ServiceState
	To        ServiceState
	Operation string
	Timestamp time.Time
	Error     error
}

// ServiceStateMachine manages service state transitions with validation
type ServiceStateMachine struct {
	serviceName      string
	currentState     ServiceState
	transitions      []StateTransition
	validTransitions map[ServiceState][]ServiceState
	mutex            sync.RWMutex
	logger           logging.Logger
}

func NewServiceStateMachine(serviceName string, logger logging.Logger) *ServiceStateMachine {
	ssm := &ServiceStateMachine{
		serviceName:  serviceName,
		currentState: ServiceStateUnknown,
		mutex:        sync.RWMutex{},
		logger:       logger,
	}

	ssm.validTransitions = map[ServiceState][]ServiceState{
		ServiceStateUnknown: {
			ServiceStateRegistered, // sequence planned
		},
		ServiceStateRegistered: {
			ServiceStateStarting, // launch begins
			ServiceStateStopped,  // cleanup before this service was reached
		},
		ServiceStateStarting: {
			ServiceStateReady,   // readiness confirmed
			ServiceStateFailed,  // launch error or readiness timeout
			ServiceStateStopped, // cleanup interrupted the start
		},
		ServiceStateReady: {
			ServiceStateStopped, // cleanup
			ServiceStateFailed,  // process died after becoming ready
		},
		ServiceStateFailed: {
			ServiceStateStopped, // cleanup after failure
		},
	}

	return ssm
}

func (ssm *ServiceStateMachine) GetCurrentState() ServiceState {
	ssm.mutex.RLock()
	defer ssm.mutex.RUnlock()
	return ssm.currentState
}

// CanTransition checks if a state transition is valid
func (ssm *ServiceStateMachine) CanTransition(to ServiceState) bool {
	ssm.mutex.RLock()
	defer ssm.mutex.RUnlock()
	return ssm.canTransitionUnsafe(to)
}

// Transition changes the service state with validation
func (ssm *ServiceStateMachine) Transition(to ServiceState, operation string, err error) error {
	ssm.mutex.Lock()
	defer ssm.mutex.Unlock()

	if !ssm.canTransitionUnsafe(to) {
		return errors.NewValidationError(
			fmt.Sprintf("invalid state transition from '%s' to '%s'", ssm.currentState, to),
			nil,
		).WithContext("service", ssm.serviceName).
			WithContext("from_state", string(ssm.currentState)).
			WithContext("to_state", string(to)).
			WithContext("operation", operation)
	}

	from := ssm.currentState
	ssm.transitions = append(ssm.transitions, StateTransition{
		From:      from,
		To:        to,
		Operation: operation,
		Timestamp: time.Now(),
		Error:     err,
	})
	ssm.currentState = to

	if err != nil {
		ssm.logger.Warnf("Service state transition with error, service: %s, %s->%s, operation: %s, error: %v",
			ssm.serviceName, from, to, operation, err)
	} else {
		ssm.logger.Infof("Service state transition, service: %s, %s->%s, operation: %s",
			ssm.serviceName, from, to, operation)
	}

	return nil
}

func (ssm *ServiceStateMachine) canTransitionUnsafe(to ServiceState) bool {
	validStates, exists := ssm.validTransitions[ssm.currentState]
	if !exists {
		return false
	}
	for _, validState := range validStates {
		if validState == to {
			return true
		}
	}
	return false
}

// GetTransitionHistory returns a copy of the complete transition history
func (ssm *ServiceStateMachine) GetTransitionHistory() []StateTransition {
	ssm.mutex.RLock()
	defer ssm.mutex.RUnlock()

	history := make([]StateTransition, len(ssm.transitions))
	copy(history, ssm.transitions)
	return history
}

// ServiceStateInfo provides comprehensive information about service state
type ServiceStateInfo struct {
	ServiceName     string
	CurrentState    ServiceState
	LastTransition  *StateTransition
	TransitionCount int
}

func (ssm *ServiceStateMachine) GetStateInfo() ServiceStateInfo {
	ssm.mutex.RLock()
	defer ssm.mutex.RUnlock()

	var lastTransition *StateTransition
	if len(ssm.transitions) > 0 {
		transition := ssm.transitions[len(ssm.transitions)-1]
		lastTransition = &transition
	}

	return ServiceStateInfo{
		ServiceName:     ssm.serviceName,
		CurrentState:    ssm.currentState,
		LastTransition:  lastTransition,
		TransitionCount: len(ssm.transitions),
	}
}
