package logger

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// root is the logger for bootstrap code (main, server setup, module
// registry) that runs before any module has built its own named logger.
var root = hclog.New(&hclog.LoggerOptions{
	Name: "mediawall",
})

// Info logs a printf-style informational message
func Info(format string, args ...interface{}) {
	root.Info(fmt.Sprintf(format, args...))
}

// Warn logs a printf-style warning
func Warn(format string, args ...interface{}) {
	root.Warn(fmt.Sprintf(format, args...))
}

// Error logs a printf-style error
func Error(format string, args ...interface{}) {
	root.Error(fmt.Sprintf(format, args...))
}
