package registry

import (
	"sync"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/launcher"
	"github.com/stack-tools/stackup/pkg/logging"
	"github.com/stack-tools/stackup/pkg/processfile"
)

// Registry tracks the handles of every started service so the cleanup path
// can terminate all of them in reverse start order. Current returns the most
// recently recorded handle.
type Registry interface {
	Record(handle *launcher.ProcessHandle) error
	Current() *launcher.ProcessHandle
	All() []*launcher.ProcessHandle
	Clear()
}

type processRegistry struct {
	mutex      sync.Mutex
	order      []string
	handles    map[string]*launcher.ProcessHandle
	pidManager *processfile.ProcessFileManager
	logger     logging.Logger
}

// NewRegistry creates a registry; a nil pidManager disables on-disk PID file
// persistence
func NewRegistry(pidManager *processfile.ProcessFileManager, logger logging.Logger) Registry {
	return &processRegistry{
		handles:    make(map[string]*launcher.ProcessHandle),
		pidManager: pidManager,
		logger:     logger,
	}
}

func (r *processRegistry) Record(handle *launcher.ProcessHandle) error {
	if handle == nil {
		return errors.NewValidationError("handle cannot be nil", nil)
	}
	if handle.ServiceName == "" {
		return errors.NewValidationError("handle service name cannot be empty", nil)
	}

	r.mutex.Lock()
	if _, exists := r.handles[handle.ServiceName]; !exists {
		r.order = append(r.order, handle.ServiceName)
	}
	r.handles[handle.ServiceName] = handle
	r.mutex.Unlock()

	r.logger.Infof("Recorded process handle, service: %s, PID: %d", handle.ServiceName, handle.PID)

	if r.pidManager != nil {
		// The process is already running; a PID file failure is logged,
		// never escalated
		if err := r.pidManager.WritePIDFile(handle.ServiceName, handle.PID); err != nil {
			r.logger.Errorf("Failed to write PID file, service: %s, error: %v", handle.ServiceName, err)
		}
	}

	return nil
}

func (r *processRegistry) Current() *launcher.ProcessHandle {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.order) == 0 {
		return nil
	}
	return r.handles[r.order[len(r.order)-1]]
}

// All returns the recorded handles in start order
func (r *processRegistry) All() []*launcher.ProcessHandle {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	all := make([]*launcher.ProcessHandle, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.handles[name])
	}
	return all
}

func (r *processRegistry) Clear() {
	r.mutex.Lock()
	names := r.order
	r.order = nil
	r.handles = make(map[string]*launcher.ProcessHandle)
	r.mutex.Unlock()

	if r.pidManager != nil {
		for _, name := range names {
			if err := r.pidManager.RemovePIDFile(name); err != nil {
				r.logger.Warnf("Failed to remove PID file, service: %s, error: %v", name, err)
			}
		}
	}

	if len(names) > 0 {
		r.logger.Infof("Registry cleared, removed handles: %d", len(names))
	}
}
