//go:build deadlock

// Package syncutil provides the locks the emulator session is guarded by.
// Building with -tags=deadlock swaps in go-deadlock for lock-order diagnostics.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}

// DetectionEnabled reports whether locks are instrumented.
const DetectionEnabled = true

// Configure sets how long a lock may be waited on before it is reported, and
// the callback invoked on a report. A nil callback keeps the library default.
func Configure(timeout time.Duration, onDeadlock func()) {
	if timeout > 0 {
		deadlock.Opts.DeadlockTimeout = timeout
	}
	if onDeadlock != nil {
		deadlock.Opts.OnPotentialDeadlock = onDeadlock
	}
}
