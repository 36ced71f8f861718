package log

import "fmt"

func Debugf(format string, args ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}

// The L-prefixed variants log through logger, falling back to the default
// logger when logger is nil.

func LDebugf(logger *Logger, format string, args ...any) {
	orDefault(logger).Debug(fmt.Sprintf(format, args...))
}

func LInfof(logger *Logger, format string, args ...any) {
	orDefault(logger).Info(fmt.Sprintf(format, args...))
}

func LWarnf(logger *Logger, format string, args ...any) {
	orDefault(logger).Warn(fmt.Sprintf(format, args...))
}

func LErrorf(logger *Logger, format string, args ...any) {
	orDefault(logger).Error(fmt.Sprintf(format, args...))
}

func orDefault(logger *Logger) *Logger {
	if logger == nil {
		return defaultLogger
	}
	return logger
}
