package supervisor

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/logging"
)

// Run loads the configuration, runs the startup sequence and keeps the
// services supervised until a signal arrives or the optional run duration
// elapses. Cleanup is guaranteed on every exit path: success, startup
// failure and external interruption.
func Run(runDuration int, configFile string, logger logging.Logger) error {
	logger.Infof("Supervisor runner starting...")

	logger.Infof("Platform: OS=%s, Arch=%s, CPUs=%d, Go=%s",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())

	logger.Infof("Using CONFIGURATION FILE: %s", configFile)

	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	summary := GetConfigSummary(config)
	logger.Infof("Configuration loaded successfully from %s", configFile)
	logger.Infof("Services configured: %d, enabled: %d", summary.TotalServices, summary.EnabledServices)

	operationCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if runDuration > 0 {
		logger.Infof("Using RUN DURATION of %d seconds", runDuration)
		operationCtx, cancel = context.WithTimeout(operationCtx, time.Duration(runDuration)*time.Second)
		defer cancel()
	}

	logger.Infof("Enabling signal handling...")

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	// A signal mid-startup must short-circuit the current readiness wait
	// and proceed directly to cleanup
	go func() {
		receivedSignal, ok := <-sig
		if !ok {
			return
		}
		logger.Infof("Supervisor runner received signal: %v", receivedSignal)
		cancel()
	}()

	sup := NewSupervisorFromConfig(config, logger)

	// Cleanup runs on every return path below; Stop is idempotent
	defer func() {
		// Reset context to background to allow graceful termination even
		// after cancellation
		if err := sup.Stop(context.Background()); err != nil {
			logger.Errorf("Cleanup reported errors: %v", err)
		}
	}()

	if err := sup.Start(operationCtx); err != nil {
		if failedService, failedIndex, ok := sup.GetFailedService(); ok {
			logger.Errorf("Startup failed, service: %s, index: %d", failedService, failedIndex)
		}
		return err
	}

	logger.Infof("All services are up, supervisor is fully operational")

	<-operationCtx.Done()

	if operationCtx.Err() == context.DeadlineExceeded {
		logger.Infof("Supervisor runner timed out")
	}

	logger.Infof("Supervisor runner stopping...")

	return nil
}
