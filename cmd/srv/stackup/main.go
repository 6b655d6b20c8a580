package main

import (
	"fmt"
	"os"

	"github.com/stack-tools/stackup/pkg/logging"
	"github.com/stack-tools/stackup/pkg/logging/zaplog"
	"github.com/stack-tools/stackup/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string `long:"config" short:"c" description:"Configuration file path (YAML)" required:"true"`
	Validate    bool   `long:"validate" description:"Validate the configuration file and exit"`
	LogLevel    string `long:"log-level" description:"Log level (debug, info, warn, error)" default:"info"`
	RunDuration int    `long:"run-duration" description:"Duration in seconds to run (debug feature)"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s , ", module)
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v", err)
		os.Exit(1)
	}

	if opts.Validate {
		if err := supervisor.ValidateConfigFile(opts.Config); err != nil {
			fmt.Printf("Configuration is invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration is valid: %s\n", opts.Config)
		return
	}

	zapLogger, err := zaplog.NewZapSprintfLogger(opts.LogLevel)
	if err != nil {
		fmt.Printf("Failed to create logger: %v", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	logger := logging.NewLogger(
		logPrefix("stackup"), logging.LogFuncs{
			Debugf: zapLogger.Debugf,
			Infof:  zapLogger.Infof,
			Warnf:  zapLogger.Warnf,
			Errorf: zapLogger.Errorf,
		})

	err = supervisor.Run(opts.RunDuration, opts.Config, logger)
	if err != nil {
		logger.Errorf("Failed to run: %v", err)
		os.Exit(1)
	}
}
