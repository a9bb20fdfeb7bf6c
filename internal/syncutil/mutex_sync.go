//go:build !deadlock

// Package syncutil provides the locks the emulator session is guarded by.
// Building with -tags=deadlock swaps in go-deadlock for lock-order diagnostics.
package syncutil

import (
	"sync"
	"time"
)

//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}

//nolint:gocritic // Intentionally embedding sync.RWMutex to expose its interface
type RWMutex struct {
	sync.RWMutex
}

// DetectionEnabled reports whether locks are instrumented.
const DetectionEnabled = false

// Configure is a no-op without the deadlock build tag.
func Configure(time.Duration, func()) {}
