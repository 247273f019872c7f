package core

import "github.com/hupe1980/agentrt/logging"

// EnsureLogger returns l, or a NoOpLogger when l is nil.
func EnsureLogger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.NoOpLogger{}
	}
	return l
}
