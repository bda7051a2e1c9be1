package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

var (
	DebugLogger *log.Logger
	InfoLogger  *log.Logger
	WarnLogger  *log.Logger
	ErrorLogger *log.Logger
)

// InitLogging initializes logging. Levels below the configured one are discarded.
func InitLogging(level string) {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	DebugLogger = log.New(os.Stdout, "DEBUG: ", flags)
	InfoLogger = log.New(os.Stdout, "INFO: ", flags)
	WarnLogger = log.New(os.Stdout, "WARN: ", flags)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", flags)

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		WarnLogger.SetOutput(io.Discard)
		fallthrough
	case "warn", "warning":
		InfoLogger.SetOutput(io.Discard)
		fallthrough
	case "info", "":
		DebugLogger.SetOutput(io.Discard)
	}
}

// Debugf logs debug level messages
func Debugf(format string, v ...interface{}) {
	if DebugLogger != nil {
		DebugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Infof logs info level messages
func Infof(format string, v ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Warnf logs warning level messages
func Warnf(format string, v ...interface{}) {
	if WarnLogger != nil {
		WarnLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Errorf logs error level messages
func Errorf(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Output(2, fmt.Sprintf(format, v...))
	}
}
