package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_PrefixesMessages(t *testing.T) {
	var lines []string
	record := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	logger := NewLogger("worker: ", LogFuncs{
		Debugf: record,
		Infof:  record,
		Warnf:  record,
		Errorf: record,
	})

	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	logger.Warnf("warn %d", 3)
	logger.Errorf("error %d", 4)

	assert.Equal(t, []string{
		"worker: debug 1",
		"worker: info 2",
		"worker: warn 3",
		"worker: error 4",
	}, lines)
}

func TestNewLogger_NilFuncsAreIgnored(t *testing.T) {
	logger := NewLogger("worker: ", LogFuncs{})

	assert.NotPanics(t, func() {
		logger.Debugf("debug")
		logger.Infof("info")
		logger.Warnf("warn")
		logger.Errorf("error")
	})
}
