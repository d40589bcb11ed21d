// Package logger holds the process-wide logr sink used by the client.
package logger

import (
	"log"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

var (
	mu sync.RWMutex
	l  = newDefault()
)

func newDefault() logr.Logger {
	stdr.SetVerbosity(envInt(envLogLevel, 0))

	if !envBool(envLogEnable, true) {
		return logr.Discard()
	}

	return stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile))
}

// ReplaceLogger swaps the sink for every logger handed out afterwards.
func ReplaceLogger(logger logr.Logger) {
	mu.Lock()
	l = logger
	mu.Unlock()
}

func GetLogger(name string) logr.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return l.WithName(name)
}

func current() logr.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return l
}
