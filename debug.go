// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pn532emu

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/pn532emu/internal/syncutil"
)

// Console output is gated by the debug switch; the session log, when open,
// always receives debug events.
var (
	logMu            syncutil.RWMutex
	debugEnabled     = false
	sessionLogWriter io.Writer
	consoleWriter    io.Writer = os.Stderr
	logger           zerolog.Logger
)

func init() {
	// Enable debug logging if DEBUG environment variable is set
	if os.Getenv("PN532EMU_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
	rebuildLogger()
}

// rebuildLogger must be called with logMu held for writing, or from init.
func rebuildLogger() {
	consoleLevel := zerolog.InfoLevel
	if debugEnabled {
		consoleLevel = zerolog.DebugLevel
	}

	console := &zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        consoleWriter,
			NoColor:    consoleWriter != io.Writer(os.Stderr),
			TimeFormat: "15:04:05.000",
		}},
		Level: consoleLevel,
	}

	level := consoleLevel
	var out io.Writer = console
	if sessionLogWriter != nil {
		out = zerolog.MultiLevelWriter(console, sessionLogWriter)
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Logger returns the package logger. Chips created without WithLogger log
// through it.
func Logger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// SetDebugEnabled enables or disables debug output on the console
func SetDebugEnabled(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	debugEnabled = enabled
	rebuildLogger()
}

// DebugEnabled reports whether debug output is shown on the console.
func DebugEnabled() bool {
	logMu.RLock()
	defer logMu.RUnlock()
	return debugEnabled
}

// Debugf logs a debug message through the package logger.
func Debugf(format string, args ...any) {
	l := Logger()
	l.Debug().Msgf(format, args...)
}
