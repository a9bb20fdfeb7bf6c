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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/pn532emu/internal/syncutil"
)

// TraceDirection indicates whether bytes were received or sent by the side
// keeping the trace. The chip receives host frames; a host driver sends them.
type TraceDirection string

const (
	// TraceRX indicates bytes received
	TraceRX TraceDirection = "RX"
	// TraceTX indicates bytes sent
	TraceTX TraceDirection = "TX"
)

// DefaultTraceSize is the number of entries kept when no size is configured.
const DefaultTraceSize = 32

// TraceEntry represents a single frame on the wire
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats the trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// MarshalJSON renders the data as a hex string.
func (e TraceEntry) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(struct {
		Timestamp time.Time      `json:"timestamp"`
		Direction TraceDirection `json:"direction"`
		Data      string         `json:"data"`
		Note      string         `json:"note,omitempty"`
	}{
		Timestamp: e.Timestamp,
		Direction: e.Direction,
		Data:      fmt.Sprintf("%X", e.Data),
		Note:      e.Note,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal trace entry: %w", err)
	}
	return data, nil
}

// TraceableError wraps an error with the wire trace leading up to it
type TraceableError struct {
	Err   error
	Port  string
	Trace []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable trace
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s] Wire trace (%d entries):\n", e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		direction := "<"
		if entry.Direction == TraceTX {
			direction = ">"
		}
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, "  %s %s (%s)\n", direction, formatHexBytes(entry.Data), entry.Note)
		} else {
			_, _ = fmt.Fprintf(&sb, "  %s %s\n", direction, formatHexBytes(entry.Data))
		}
	}
	return sb.String()
}

// formatHexBytes formats bytes as space-separated hex, truncating long data
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	shown := data
	if len(shown) > 32 {
		shown = shown[:32]
	}
	parts := make([]string, len(shown))
	for i, b := range shown {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	out := strings.Join(parts, " ")
	if len(data) > len(shown) {
		out += fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	return out
}

// TraceBuffer is a bounded ring of the most recent frames. It is safe for
// concurrent use.
type TraceBuffer struct {
	port    string
	entries []TraceEntry
	maxSize int
	mu      syncutil.Mutex
}

// NewTraceBuffer creates a trace buffer. A non-positive size uses DefaultTraceSize.
func NewTraceBuffer(port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = DefaultTraceSize
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
		port:    port,
	}
}

// RecordRX records bytes received
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTX records bytes sent
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	entry := TraceEntry{
		Direction: dir,
		Data:      append([]byte(nil), data...),
		Timestamp: time.Now(),
		Note:      note,
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	out := make([]TraceEntry, len(tb.entries))
	copy(out, tb.entries)
	return out
}

// WrapError attaches the current trace to err
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:   err,
		Trace: tb.Entries(),
		Port:  tb.port,
	}
}

// Clear drops all entries
func (tb *TraceBuffer) Clear() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.entries = tb.entries[:0]
}

// GetTrace extracts the trace from an error, if present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
