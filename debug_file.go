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
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

var (
	sessionLogFile *os.File
	sessionLogPath string
)

// InitSessionLog creates a timestamped JSON log file in the current directory
// that receives every debug event, regardless of the console debug switch.
// Returns the path to the created log file.
func InitSessionLog() (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("pn532emu_%s.log", timestamp)

	logFile, err := os.Create(filename) //nolint:gosec // filename is constructed internally, not user input
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	logMu.Lock()
	sessionLogFile = logFile
	sessionLogPath = filename
	sessionLogWriter = logFile
	rebuildLogger()
	logMu.Unlock()

	writeSessionHeader()

	return filename, nil
}

// CloseSessionLog closes the session log file if one is open.
func CloseSessionLog() error {
	logMu.Lock()
	defer logMu.Unlock()

	if sessionLogFile == nil {
		return nil
	}

	logger.Info().Msg("session ended")

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	rebuildLogger()
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the path to the current session log file,
// or empty string if no session log is active.
func GetSessionLogPath() string {
	logMu.RLock()
	defer logMu.RUnlock()
	return sessionLogPath
}

func writeSessionHeader() {
	l := Logger()
	ev := l.Info().
		Int("pid", os.Getpid()).
		Str("os", runtime.GOOS+"/"+runtime.GOARCH).
		Str("go_version", runtime.Version()).
		Str("command_line", strings.Join(os.Args, " "))
	if exe, err := os.Executable(); err == nil {
		ev = ev.Str("executable", exe)
	}
	ev.Msg("session started")
}
